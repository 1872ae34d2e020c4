package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/apex/log"

	"github.com/django-cloud/dcd/cli/cloud"
	"github.com/django-cloud/dcd/cli/util"
)

// databaseSecretObject is the object of the secrets bucket the deployed
// application reads its database credentials from.
const databaseSecretObject = "cloudsql.json"

// GAEDeployer deploys the project to Google App Engine.
type GAEDeployer struct {
	gcloud  string
	storage *cloud.StorageClient
}

// NewGAEDeployer creates a deployer around the given gcloud executable and
// storage client. An empty executable selects the gcloud on PATH.
func NewGAEDeployer(gcloudExecutable string,
	storage *cloud.StorageClient) *GAEDeployer {
	if gcloudExecutable == "" {
		gcloudExecutable = "gcloud"
	}

	return &GAEDeployer{gcloud: gcloudExecutable, storage: storage}
}

// SecretsBucket returns the name of the bucket the application reads its
// secrets from.
func SecretsBucket(projectID string) string {
	return "secrets-" + projectID
}

// StageSecrets uploads the database credentials to the secrets bucket of
// the project. App Engine has no secret mounts, the application downloads
// them on startup instead.
func (d *GAEDeployer) StageSecrets(ctx context.Context, projectID string,
	secrets Secrets) error {
	entries, ok := secrets["cloudsql"]
	if !ok {
		return fmt.Errorf("the secrets carry no cloudsql entry")
	}

	// []byte values marshal to base64, the settings module expects plain
	// strings.
	credentials := make(map[string]string, len(entries))
	for key, value := range entries {
		credentials[key] = string(value)
	}
	content, err := json.Marshal(credentials)
	if err != nil {
		return fmt.Errorf("failed to encode the database credentials: %s", err)
	}

	bucketName := SecretsBucket(projectID)
	if err := d.storage.EnsureBucket(ctx, projectID, bucketName); err != nil {
		return err
	}

	return d.storage.UploadObject(ctx, bucketName, databaseSecretObject,
		bytes.NewReader(content))
}

// Deploy runs "gcloud app deploy" on the project and returns the
// application URL. The App Engine application is created first when the
// project does not have one yet.
func (d *GAEDeployer) Deploy(opts Options) (string, error) {
	if err := d.ensureApp(opts); err != nil {
		return "", err
	}

	cmd := exec.Command(d.gcloud, "app", "deploy",
		"--project", opts.ProjectID, "--quiet")
	if err := util.RunCommand(cmd, opts.ProjectDir, opts.Verbose); err != nil {
		return "", fmt.Errorf("failed to deploy to App Engine: %s", err)
	}

	return fmt.Sprintf("https://%s.appspot.com", opts.ProjectID), nil
}

// ensureApp creates the App Engine application of the project unless it
// already exists. An application cannot be deleted or moved, so this runs
// at most once per project.
func (d *GAEDeployer) ensureApp(opts Options) error {
	_, err := util.RunCommandAndGetOutput(d.gcloud, "app", "describe",
		"--project", opts.ProjectID)
	if err == nil {
		log.Debugf("The App Engine application of %q already exists.",
			opts.ProjectID)
		return nil
	}

	cmd := exec.Command(d.gcloud, "app", "create",
		"--project", opts.ProjectID, "--region", opts.Region, "--quiet")
	if err := util.RunCommand(cmd, opts.ProjectDir, opts.Verbose); err != nil {
		return fmt.Errorf("failed to create the App Engine application: %s",
			err)
	}

	return nil
}
