package cloud

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/option"
	"google.golang.org/api/sqladmin/v1beta4"
)

const (
	// DatabaseUser is the administrative user of every provisioned
	// Postgres instance.
	DatabaseUser = "postgres"

	databaseVersion = "POSTGRES_9_6"
	databaseTier    = "db-f1-micro"

	// Instance creation regularly takes minutes.
	sqlOperationAttempts = 100
	sqlOperationInterval = 3 * time.Second
)

// SQLClient manages Cloud SQL instances, databases and users.
type SQLClient struct {
	service *sqladmin.Service

	operationAttempts uint
	operationInterval time.Duration
}

// NewSQLClient creates a client around the Cloud SQL Admin API.
func NewSQLClient(ctx context.Context,
	opts ...option.ClientOption) (*SQLClient, error) {
	service, err := sqladmin.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sql admin client: %s", err)
	}

	return &SQLClient{
		service:           service,
		operationAttempts: sqlOperationAttempts,
		operationInterval: sqlOperationInterval,
	}, nil
}

// CreateInstance creates a Postgres instance and waits until it is usable.
// An instance that already exists is reused.
func (c *SQLClient) CreateInstance(ctx context.Context, projectID string,
	instanceName string, region string) error {
	operation, err := c.service.Instances.Insert(projectID,
		&sqladmin.DatabaseInstance{
			Name:            instanceName,
			Region:          region,
			DatabaseVersion: databaseVersion,
			Settings: &sqladmin.Settings{
				Tier: databaseTier,
			},
		}).Context(ctx).Do()
	if err != nil {
		if isStatusError(err, http.StatusConflict) {
			return nil
		}
		return fmt.Errorf("failed to create sql instance %q: %s",
			instanceName, err)
	}

	return c.waitOperation(ctx, projectID, operation.Name)
}

// ConnectionName returns the "<project>:<region>:<instance>" string the
// Cloud SQL proxy connects with.
func (c *SQLClient) ConnectionName(ctx context.Context, projectID string,
	instanceName string) (string, error) {
	instance, err := c.service.Instances.Get(projectID,
		instanceName).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up sql instance %q: %s",
			instanceName, err)
	}

	return instance.ConnectionName, nil
}

// CreateDatabase creates a database inside the instance. A database that
// already exists is reused.
func (c *SQLClient) CreateDatabase(ctx context.Context, projectID string,
	instanceName string, databaseName string) error {
	operation, err := c.service.Databases.Insert(projectID, instanceName,
		&sqladmin.Database{
			Name: databaseName,
		}).Context(ctx).Do()
	if err != nil {
		if isStatusError(err, http.StatusConflict) {
			return nil
		}
		return fmt.Errorf("failed to create database %q: %s", databaseName,
			err)
	}

	return c.waitOperation(ctx, projectID, operation.Name)
}

// SetUserPassword sets the password of a database user.
func (c *SQLClient) SetUserPassword(ctx context.Context, projectID string,
	instanceName string, user string, password string) error {
	operation, err := c.service.Users.Update(projectID, instanceName,
		&sqladmin.User{
			Name:     user,
			Password: password,
		}).Name(user).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to set the password of %q: %s", user, err)
	}

	return c.waitOperation(ctx, projectID, operation.Name)
}

func (c *SQLClient) waitOperation(ctx context.Context, projectID string,
	name string) error {
	return retry.Do(
		func() error {
			operation, err := c.service.Operations.Get(projectID,
				name).Context(ctx).Do()
			if err != nil {
				return retry.Unrecoverable(
					fmt.Errorf("failed to poll operation %q: %s", name, err))
			}
			if operation.Status != "DONE" {
				return fmt.Errorf("operation %q is %s", name,
					operation.Status)
			}
			if operation.Error != nil && len(operation.Error.Errors) > 0 {
				return retry.Unrecoverable(
					fmt.Errorf("sql operation failed: %s",
						operation.Error.Errors[0].Message))
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
