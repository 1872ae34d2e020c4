package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/option"
	"google.golang.org/api/serviceusage/v1"
)

const (
	serviceOperationAttempts = 40
	serviceOperationInterval = 3 * time.Second
)

// ServiceUsageClient enables services on projects.
type ServiceUsageClient struct {
	service *serviceusage.Service

	operationAttempts uint
	operationInterval time.Duration
}

// NewServiceUsageClient creates a client around the Service Usage API.
func NewServiceUsageClient(ctx context.Context,
	opts ...option.ClientOption) (*ServiceUsageClient, error) {
	service, err := serviceusage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create service usage client: %s",
			err)
	}

	return &ServiceUsageClient{
		service:           service,
		operationAttempts: serviceOperationAttempts,
		operationInterval: serviceOperationInterval,
	}, nil
}

// EnableServices enables the given service ids (for example
// "sqladmin.googleapis.com") on the project and waits for the operation to
// finish.
func (c *ServiceUsageClient) EnableServices(ctx context.Context,
	projectID string, serviceIDs []string) error {
	if len(serviceIDs) == 0 {
		return nil
	}

	operation, err := c.service.Services.BatchEnable("projects/"+projectID,
		&serviceusage.BatchEnableServicesRequest{
			ServiceIds: serviceIDs,
		}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to enable services on %q: %s", projectID,
			err)
	}

	return c.waitOperation(ctx, operation.Name)
}

func (c *ServiceUsageClient) waitOperation(ctx context.Context,
	name string) error {
	return retry.Do(
		func() error {
			operation, err := c.service.Operations.Get(name).Context(ctx).Do()
			if err != nil {
				return retry.Unrecoverable(
					fmt.Errorf("failed to poll operation %q: %s", name, err))
			}
			if !operation.Done {
				return fmt.Errorf("operation %q is still running", name)
			}
			if operation.Error != nil {
				return retry.Unrecoverable(
					fmt.Errorf("enabling services failed: %s",
						operation.Error.Message))
			}
			return nil
		},
		retry.Attempts(c.operationAttempts),
		retry.Delay(c.operationInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
}
