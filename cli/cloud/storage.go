package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// StorageClient manages Cloud Storage buckets and objects.
type StorageClient struct {
	client *storage.Client
}

// NewStorageClient creates a client around the Cloud Storage API.
func NewStorageClient(ctx context.Context,
	opts ...option.ClientOption) (*StorageClient, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %s", err)
	}

	return &StorageClient{client: client}, nil
}

// Close releases the underlying connections.
func (c *StorageClient) Close() error {
	return c.client.Close()
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrBucketNotExist) ||
		errors.Is(err, storage.ErrObjectNotExist) ||
		status.Code(err) == codes.NotFound
}

// EnsureBucket creates the bucket inside the project unless it already
// exists.
func (c *StorageClient) EnsureBucket(ctx context.Context, projectID string,
	bucketName string) error {
	_, err := c.client.Bucket(bucketName).Attrs(ctx)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("failed to look up bucket %q: %s", bucketName, err)
	}

	if err := c.client.Bucket(bucketName).Create(ctx, projectID,
		nil); err != nil {
		return fmt.Errorf("failed to create bucket %q: %s", bucketName, err)
	}

	return nil
}

// MakePublic lets every internet user read the objects of the bucket. The
// static content bucket is served directly by storage.googleapis.com.
func (c *StorageClient) MakePublic(ctx context.Context,
	bucketName string) error {
	handle := c.client.Bucket(bucketName).IAM()
	policy, err := handle.Policy(ctx)
	if err != nil {
		return fmt.Errorf("failed to get the policy of bucket %q: %s",
			bucketName, err)
	}

	policy.Add("allUsers", "roles/storage.objectViewer")
	if err := handle.SetPolicy(ctx, policy); err != nil {
		return fmt.Errorf("failed to make bucket %q public: %s", bucketName,
			err)
	}

	return nil
}

// UploadObject writes the content of reader to an object.
func (c *StorageClient) UploadObject(ctx context.Context, bucketName string,
	objectName string, reader io.Reader) error {
	writer := c.client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	// Static assets and key files are small, upload them in one request
	// instead of a resumable session.
	writer.ChunkSize = 0
	if _, err := io.Copy(writer, reader); err != nil {
		writer.Close()
		return fmt.Errorf("failed to upload object %q: %s", objectName, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to upload object %q: %s", objectName, err)
	}

	return nil
}

// UploadDirectory uploads every file under dir to the bucket, prefixing the
// object names with prefix.
func (c *StorageClient) UploadDirectory(ctx context.Context,
	bucketName string, prefix string, dir string) error {
	return filepath.Walk(dir,
		func(filePath string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(dir, filePath)
			if err != nil {
				return err
			}

			file, err := os.Open(filePath)
			if err != nil {
				return err
			}
			defer file.Close()

			objectName := path.Join(prefix, filepath.ToSlash(rel))
			return c.UploadObject(ctx, bucketName, objectName, file)
		})
}
