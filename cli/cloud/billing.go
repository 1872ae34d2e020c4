package cloud

import (
	"context"
	"fmt"

	"google.golang.org/api/cloudbilling/v1"
	"google.golang.org/api/option"
)

// BillingClient manages the billing state of projects.
type BillingClient struct {
	service *cloudbilling.APIService
}

// NewBillingClient creates a client around the Cloud Billing API.
func NewBillingClient(ctx context.Context,
	opts ...option.ClientOption) (*BillingClient, error) {
	service, err := cloudbilling.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create billing client: %s", err)
	}

	return &BillingClient{service: service}, nil
}

// ListOpenBillingAccounts returns the billing accounts of the current user
// that are open for use.
func (c *BillingClient) ListOpenBillingAccounts(
	ctx context.Context) ([]*cloudbilling.BillingAccount, error) {
	var accounts []*cloudbilling.BillingAccount
	err := c.service.BillingAccounts.List().Pages(ctx,
		func(response *cloudbilling.ListBillingAccountsResponse) error {
			for _, account := range response.BillingAccounts {
				if account.Open {
					accounts = append(accounts, account)
				}
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list billing accounts: %s", err)
	}

	return accounts, nil
}

// GetBillingInfo returns the billing state of the given project.
func (c *BillingClient) GetBillingInfo(ctx context.Context,
	projectID string) (*cloudbilling.ProjectBillingInfo, error) {
	info, err := c.service.Projects.GetBillingInfo(
		"projects/" + projectID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get billing info of %q: %s",
			projectID, err)
	}

	return info, nil
}

// CheckBillingEnabled reports whether the project is linked to an open
// billing account and returns the resource name of that account.
func (c *BillingClient) CheckBillingEnabled(ctx context.Context,
	projectID string) (bool, string, error) {
	info, err := c.GetBillingInfo(ctx, projectID)
	if err != nil {
		return false, "", err
	}

	return info.BillingEnabled, info.BillingAccountName, nil
}

// EnableProjectBilling links the project to the billing account given by its
// resource name ("billingAccounts/...").
func (c *BillingClient) EnableProjectBilling(ctx context.Context,
	projectID string, accountName string) error {
	info, err := c.service.Projects.UpdateBillingInfo("projects/"+projectID,
		&cloudbilling.ProjectBillingInfo{
			BillingAccountName: accountName,
		}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to enable billing of %q: %s", projectID,
			err)
	}
	if !info.BillingEnabled {
		return fmt.Errorf("billing of %q is still disabled after linking "+
			"account %q", projectID, accountName)
	}

	return nil
}
