package cloud

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/cloudresourcemanager/v1"
	"google.golang.org/api/option"
)

const (
	// The project create SLO is 30s at the 90th percentile, poll with a
	// constant interval well past it.
	projectConfirmAttempts = 20
	projectConfirmInterval = 3 * time.Second
)

// ProjectClient manages Google Cloud projects.
type ProjectClient struct {
	service *cloudresourcemanager.Service

	confirmAttempts uint
	confirmInterval time.Duration
}

// NewProjectClient creates a client around the Cloud Resource Manager API.
func NewProjectClient(ctx context.Context,
	opts ...option.ClientOption) (*ProjectClient, error) {
	service, err := cloudresourcemanager.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource manager client: %s",
			err)
	}

	return &ProjectClient{
		service:         service,
		confirmAttempts: projectConfirmAttempts,
		confirmInterval: projectConfirmInterval,
	}, nil
}

// ProjectExists reports whether the given project id exists. Project ids the
// caller has no access to count as missing, the API hides them the same way.
func (c *ProjectClient) ProjectExists(ctx context.Context,
	projectID string) (bool, error) {
	_, err := c.service.Projects.Get(projectID).Context(ctx).Do()
	if err != nil {
		if isStatusError(err, http.StatusForbidden, http.StatusNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up project %q: %s",
			projectID, err)
	}

	return true, nil
}

// GetProject returns the project resource of the given id.
func (c *ProjectClient) GetProject(ctx context.Context,
	projectID string) (*cloudresourcemanager.Project, error) {
	project, err := c.service.Projects.Get(projectID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to look up project %q: %s",
			projectID, err)
	}

	return project, nil
}

// CreateProject creates a new project and blocks until it becomes visible.
func (c *ProjectClient) CreateProject(ctx context.Context, projectID string,
	projectName string) error {
	operation, err := c.service.Projects.Create(&cloudresourcemanager.Project{
		ProjectId: projectID,
		Name:      projectName,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to create project %q: %s", projectID, err)
	}
	if operation.Name == "" {
		return fmt.Errorf("unexpected response creating project %q",
			projectID)
	}

	return c.confirmProjectCreation(ctx, projectID)
}

func (c *ProjectClient) confirmProjectCreation(ctx context.Context,
	projectID string) error {
	return retry.Do(
		func() error {
			exists, err := c.ProjectExists(ctx, projectID)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if !exists {
				return fmt.Errorf("project %q is not visible yet", projectID)
			}
			return nil
		},
		retry.Attempts(c.confirmAttempts),
		retry.Delay(c.confirmInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
}
