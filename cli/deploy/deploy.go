// Package deploy pushes a generated project to its compute backend. The
// GKE deployer drives docker, gcloud and kubectl; the GAE deployer stages
// database secrets to a bucket and runs "gcloud app deploy".
package deploy

import (
	"fmt"
	"os"
	"path/filepath"
)

// Secrets maps a secret name to its entries. The "cloudsql" secret carries
// the database user and password, service account secrets carry the content
// of their key files.
type Secrets map[string]map[string][]byte

// Options collects everything a deployment needs. The workflow derives the
// resource names once and hands them down here.
type Options struct {
	// ProjectID is the Google Cloud project id.
	ProjectID string
	// ProjectDir is the root of the generated project sources.
	ProjectDir string
	// ProjectName is the Django project name. The Kubernetes manifest,
	// deployment and service carry this name.
	ProjectName string
	// ClusterName is the GKE cluster to deploy into.
	ClusterName string
	// Zone is the compute zone of the cluster.
	Zone string
	// Region is where the App Engine application is hosted.
	Region string
	// ImageTag is the application image, for example "gcr.io/<id>/<name>".
	ImageTag string
	// AccessToken authorizes the image push to the container registry.
	AccessToken string
	// Secrets required by the deployed containers.
	Secrets Secrets
	// SecretsDir is a scratch directory secrets are staged in. It is
	// removed after the deployment.
	SecretsDir string
	// Verbose, if set, streams subprocess and docker output.
	Verbose bool
}

// stageSecretFiles writes the secret entries under dir, one subdirectory
// per secret with one file per entry. Key material lands on disk, so the
// files are readable by the owner only.
func stageSecretFiles(dir string, secrets Secrets) error {
	for name, entries := range secrets {
		secretDir := filepath.Join(dir, name)
		if err := os.MkdirAll(secretDir, 0700); err != nil {
			return fmt.Errorf("failed to stage secret %q: %s", name, err)
		}
		for fileName, content := range entries {
			if err := os.WriteFile(filepath.Join(secretDir, fileName),
				content, 0600); err != nil {
				return fmt.Errorf("failed to stage secret %q: %s", name, err)
			}
		}
	}

	return nil
}
