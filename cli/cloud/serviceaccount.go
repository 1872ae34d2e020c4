package cloud

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"google.golang.org/api/cloudresourcemanager/v1"
	"google.golang.org/api/iam/v1"
	"google.golang.org/api/option"
)

// ServiceAccountClient manages service accounts, their keys and their
// project role bindings.
type ServiceAccountClient struct {
	iamService *iam.Service
	crmService *cloudresourcemanager.Service
}

// NewServiceAccountClient creates a client around the IAM and Cloud Resource
// Manager APIs.
func NewServiceAccountClient(ctx context.Context,
	opts ...option.ClientOption) (*ServiceAccountClient, error) {
	iamService, err := iam.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create iam client: %s", err)
	}

	crmService, err := cloudresourcemanager.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource manager client: %s",
			err)
	}

	return &ServiceAccountClient{
		iamService: iamService,
		crmService: crmService,
	}, nil
}

// Email returns the canonical email of a service account id inside a
// project.
func Email(projectID string, accountID string) string {
	return fmt.Sprintf("%s@%s.iam.gserviceaccount.com", accountID, projectID)
}

// CreateServiceAccount creates a service account and returns its email. An
// account that already exists is reused.
func (c *ServiceAccountClient) CreateServiceAccount(ctx context.Context,
	projectID string, accountID string, displayName string) (string, error) {
	account, err := c.iamService.Projects.ServiceAccounts.Create(
		"projects/"+projectID,
		&iam.CreateServiceAccountRequest{
			AccountId: accountID,
			ServiceAccount: &iam.ServiceAccount{
				DisplayName: displayName,
			},
		}).Context(ctx).Do()
	if err != nil {
		if isStatusError(err, http.StatusConflict) {
			return Email(projectID, accountID), nil
		}
		return "", fmt.Errorf("failed to create service account %q: %s",
			accountID, err)
	}

	return account.Email, nil
}

// CreateKey mints a new key of the service account and returns the decoded
// key file content.
func (c *ServiceAccountClient) CreateKey(ctx context.Context,
	email string) ([]byte, error) {
	key, err := c.iamService.Projects.ServiceAccounts.Keys.Create(
		"projects/-/serviceAccounts/"+email,
		&iam.CreateServiceAccountKeyRequest{}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create a key of %q: %s", email, err)
	}

	keyFile, err := base64.StdEncoding.DecodeString(key.PrivateKeyData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode the key of %q: %s", email,
			err)
	}

	return keyFile, nil
}

// AddProjectRoles grants the given roles ("roles/...") to the service
// account on the project. Roles the account already holds are kept as is.
func (c *ServiceAccountClient) AddProjectRoles(ctx context.Context,
	projectID string, email string, roles []string) error {
	if len(roles) == 0 {
		return nil
	}

	policy, err := c.crmService.Projects.GetIamPolicy(projectID,
		&cloudresourcemanager.GetIamPolicyRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get the iam policy of %q: %s",
			projectID, err)
	}

	member := "serviceAccount:" + email
	for _, role := range roles {
		addPolicyMember(policy, role, member)
	}

	_, err = c.crmService.Projects.SetIamPolicy(projectID,
		&cloudresourcemanager.SetIamPolicyRequest{
			Policy: policy,
		}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update the iam policy of %q: %s",
			projectID, err)
	}

	return nil
}

func addPolicyMember(policy *cloudresourcemanager.Policy, role string,
	member string) {
	for _, binding := range policy.Bindings {
		if binding.Role != role {
			continue
		}
		for _, existing := range binding.Members {
			if existing == member {
				return
			}
		}
		binding.Members = append(binding.Members, member)
		return
	}

	policy.Bindings = append(policy.Bindings,
		&cloudresourcemanager.Binding{
			Role:    role,
			Members: []string{member},
		})
}
