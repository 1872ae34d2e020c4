package deploy

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/avast/retry-go"

	"github.com/django-cloud/dcd/cli/docker"
	"github.com/django-cloud/dcd/cli/util"
)

const (
	// Load balancer IP allocation takes minutes on a fresh cluster.
	serviceIPAttempts = 60
	serviceIPInterval = 5 * time.Second
)

// GKEDeployer deploys the project to a Google Kubernetes Engine cluster.
type GKEDeployer struct {
	gcloud  string
	kubectl string

	buildPush func(docker.BuildPushOptions, io.Writer) error

	serviceIPAttempts uint
	serviceIPInterval time.Duration
}

// NewGKEDeployer creates a deployer around the given gcloud and kubectl
// executables. Empty strings select the ones on PATH.
func NewGKEDeployer(gcloudExecutable string, kubectlExecutable string) *GKEDeployer {
	if gcloudExecutable == "" {
		gcloudExecutable = "gcloud"
	}
	if kubectlExecutable == "" {
		kubectlExecutable = "kubectl"
	}

	return &GKEDeployer{
		gcloud:            gcloudExecutable,
		kubectl:           kubectlExecutable,
		buildPush:         docker.BuildAndPushImage,
		serviceIPAttempts: serviceIPAttempts,
		serviceIPInterval: serviceIPInterval,
	}
}

// DeployNewApp builds and pushes the application image, makes sure the
// cluster exists, installs the secrets and the manifest and returns the
// application URL once the service has an external IP.
func (d *GKEDeployer) DeployNewApp(opts Options) (string, error) {
	if err := d.buildPush(docker.BuildPushOptions{
		BuildCtxDir: opts.ProjectDir,
		ImageTag:    opts.ImageTag,
		AccessToken: opts.AccessToken,
		Verbose:     opts.Verbose,
	}, os.Stdout); err != nil {
		return "", err
	}

	if err := d.ensureCluster(opts); err != nil {
		return "", err
	}
	if err := d.fetchClusterCredentials(opts); err != nil {
		return "", err
	}
	if err := d.createSecrets(opts); err != nil {
		return "", err
	}

	log.Debugf("Applying the manifest %s.yaml.", opts.ProjectName)
	cmd := exec.Command(d.kubectl, "apply", "-f", opts.ProjectName+".yaml")
	if err := util.RunCommand(cmd, opts.ProjectDir, opts.Verbose); err != nil {
		return "", err
	}

	return d.waitServiceAddress(opts)
}

// UpdateApp rebuilds and pushes the application image and rolls the
// running deployment over to it.
func (d *GKEDeployer) UpdateApp(opts Options) (string, error) {
	if err := d.buildPush(docker.BuildPushOptions{
		BuildCtxDir: opts.ProjectDir,
		ImageTag:    opts.ImageTag,
		AccessToken: opts.AccessToken,
		Verbose:     opts.Verbose,
	}, os.Stdout); err != nil {
		return "", err
	}

	if err := d.fetchClusterCredentials(opts); err != nil {
		return "", err
	}

	cmd := exec.Command(d.kubectl, "rollout", "restart",
		"deployment", opts.ProjectName)
	if err := util.RunCommand(cmd, opts.ProjectDir, opts.Verbose); err != nil {
		return "", err
	}

	cmd = exec.Command(d.kubectl, "rollout", "status",
		"deployment", opts.ProjectName)
	if err := util.RunCommand(cmd, opts.ProjectDir, opts.Verbose); err != nil {
		return "", err
	}

	return d.waitServiceAddress(opts)
}

// ensureCluster creates the cluster unless it already exists.
func (d *GKEDeployer) ensureCluster(opts Options) error {
	_, err := util.RunCommandAndGetOutput(d.gcloud,
		"container", "clusters", "describe", opts.ClusterName,
		"--project", opts.ProjectID, "--zone", opts.Zone,
		"--format", "value(name)")
	if err == nil {
		log.Debugf("Cluster %q already exists.", opts.ClusterName)
		return nil
	}

	log.Infof("Creating cluster '%s'. This takes a few minutes.",
		opts.ClusterName)
	cmd := exec.Command(d.gcloud,
		"container", "clusters", "create", opts.ClusterName,
		"--project", opts.ProjectID, "--zone", opts.Zone,
		"--num-nodes", "2", "--quiet")
	if err := util.RunCommand(cmd, opts.ProjectDir, opts.Verbose); err != nil {
		return fmt.Errorf("failed to create cluster %q: %s",
			opts.ClusterName, err)
	}

	return nil
}

// fetchClusterCredentials points the kubectl context at the cluster.
func (d *GKEDeployer) fetchClusterCredentials(opts Options) error {
	cmd := exec.Command(d.gcloud,
		"container", "clusters", "get-credentials", opts.ClusterName,
		"--project", opts.ProjectID, "--zone", opts.Zone)

	return util.RunCommand(cmd, opts.ProjectDir, opts.Verbose)
}

// createSecrets installs the secrets on the cluster. Existing secrets are
// replaced, an update rotates the database credentials this way.
func (d *GKEDeployer) createSecrets(opts Options) error {
	if err := stageSecretFiles(opts.SecretsDir, opts.Secrets); err != nil {
		return err
	}
	defer os.RemoveAll(opts.SecretsDir)

	for name := range opts.Secrets {
		cmd := exec.Command(d.kubectl, "delete", "secret", name,
			"--ignore-not-found=true")
		if err := util.RunCommand(cmd, opts.ProjectDir,
			opts.Verbose); err != nil {
			return err
		}

		cmd = exec.Command(d.kubectl, "create", "secret", "generic", name,
			"--from-file", opts.SecretsDir+"/"+name)
		if err := util.RunCommand(cmd, opts.ProjectDir,
			opts.Verbose); err != nil {
			return fmt.Errorf("failed to create secret %q: %s", name, err)
		}
	}

	return nil
}

// waitServiceAddress polls the service until the load balancer has an
// external IP and returns the application URL.
func (d *GKEDeployer) waitServiceAddress(opts Options) (string, error) {
	var address string
	err := retry.Do(
		func() error {
			output, err := util.RunCommandAndGetOutput(d.kubectl,
				"get", "service", opts.ProjectName,
				"-o", "jsonpath={.status.loadBalancer.ingress[0].ip}")
			if err != nil {
				return retry.Unrecoverable(
					fmt.Errorf("failed to look up service %q: %s",
						opts.ProjectName, err))
			}

			address = strings.TrimSpace(output)
			if address == "" {
				return fmt.Errorf("service %q has no external ip yet",
					opts.ProjectName)
			}
			return nil
		},
		retry.Attempts(d.serviceIPAttempts),
		retry.Delay(d.serviceIPInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("http://%s/", address), nil
}
