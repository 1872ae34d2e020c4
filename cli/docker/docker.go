// Package docker builds the application image and pushes it to the container
// registry of the project.
package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/apex/log"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/moby/term"
)

const (
	// dockerFileName is a default Dockerfile file name.
	dockerFileName = "Dockerfile"

	// registryUsername is the fixed user name container registries accept
	// an OAuth access token for.
	registryUsername = "oauth2accesstoken"
)

// BuildPushOptions options for building and pushing the application image.
type BuildPushOptions struct {
	// BuildCtxDir docker image build context directory.
	BuildCtxDir string
	// ImageTag - docker image tag, for example "gcr.io/<project>/<name>".
	ImageTag string
	// AccessToken authorizes the push to the registry of the tag.
	AccessToken string
	// Verbose, if set, verbose output is enabled.
	Verbose bool
}

// interruptHandler start goroutine that handles interrupt signal and calls cancellation function.
// The returned function is to be called to stop signal handling.
func interruptHandler(cancelFunc context.CancelFunc) (stopSignalProcessing func()) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	go func() {
		_, ok := <-signals
		if ok {
			fmt.Println("Canceling operation...")
			cancelFunc()
		}
	}()

	return func() {
		close(signals)
		signal.Stop(signals)
		cancelFunc()
	}
}

// displayStream forwards the progress messages of a build or push response
// to writer.
func displayStream(ctx context.Context, body io.ReadCloser, verbose bool,
	writer io.Writer) error {
	defer body.Close()

	if !verbose {
		writer = io.Discard
	}
	termFd, isTerm := term.GetFdInfo(writer)
	if err := jsonmessage.DisplayJSONMessagesStream(body, writer, termFd,
		isTerm, nil); err != nil {
		if ctx.Err() == context.Canceled {
			return fmt.Errorf("the operation is interrupted")
		}
		return err
	}

	return nil
}

// buildDockerImage builds docker image.
func buildDockerImage(dockerClient *client.Client, imageTag string, buildContextDir string,
	verbose bool, writer io.Writer) error {
	buildCtx, err := archive.TarWithOptions(buildContextDir, &archive.TarOptions{})
	if err != nil {
		return err
	}

	opts := types.ImageBuildOptions{
		Dockerfile: dockerFileName,
		Tags:       []string{imageTag},
		Remove:     true,
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer interruptHandler(cancelFunc)()
	buildResponse, err := dockerClient.ImageBuild(ctx, buildCtx, opts)
	if err != nil {
		return fmt.Errorf("docker image build failed: %s", err)
	}
	if buildResponse.Body == nil {
		return nil
	}

	return displayStream(ctx, buildResponse.Body, verbose, writer)
}

// pushDockerImage pushes the image to the registry its tag points at.
func pushDockerImage(dockerClient *client.Client, imageTag string, accessToken string,
	verbose bool, writer io.Writer) error {
	registryAuth, err := registry.EncodeAuthConfig(registry.AuthConfig{
		Username: registryUsername,
		Password: accessToken,
	})
	if err != nil {
		return err
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer interruptHandler(cancelFunc)()
	pushResponse, err := dockerClient.ImagePush(ctx, imageTag, image.PushOptions{
		RegistryAuth: registryAuth,
	})
	if err != nil {
		return fmt.Errorf("docker image push failed: %s", err)
	}

	return displayStream(ctx, pushResponse, verbose, writer)
}

// BuildAndPushImage builds the application image from the project directory
// and pushes it to the container registry.
func BuildAndPushImage(opts BuildPushOptions, writer io.Writer) error {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv,
		client.WithAPIVersionNegotiation())
	if err != nil {
		return err
	}
	defer dockerClient.Close()

	log.Infof("Building docker image '%s'.", opts.ImageTag)
	if err = buildDockerImage(dockerClient, opts.ImageTag, opts.BuildCtxDir,
		opts.Verbose, writer); err != nil {
		return err
	}
	log.Info("Docker image is built.")

	log.Infof("Pushing docker image '%s'.", opts.ImageTag)
	if err = pushDockerImage(dockerClient, opts.ImageTag, opts.AccessToken,
		opts.Verbose, writer); err != nil {
		return err
	}
	log.Info("Docker image is pushed.")

	return nil
}
