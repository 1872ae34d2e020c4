//go:build integration_docker

package docker

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/stretchr/testify/require"
)

const testImageTag = "alpine:dcd_test"

func writeTestDockerfile(t *testing.T) string {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, dockerFileName),
		[]byte("FROM alpine:3.19\n"), 0664))

	return tmpDir
}

func findAndRemoveBuiltImage(t *testing.T, dockerClient *client.Client, expectedTag string) {
	ctx := context.Background()
	imageList, err := dockerClient.ImageList(ctx, image.ListOptions{})
	require.NoError(t, err)
	imgFound := false
	for _, img := range imageList {
		for _, imgTag := range img.RepoTags {
			if imgTag == expectedTag {
				imgFound = true
				dockerClient.ImageRemove(ctx, img.ID, image.RemoveOptions{})
			}
		}
	}
	require.True(t, imgFound)
}

func TestBuildImage(t *testing.T) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv,
		client.WithAPIVersionNegotiation())
	require.NoError(t, err)
	defer dockerClient.Close()

	require.NoError(t, buildDockerImage(dockerClient, testImageTag,
		writeTestDockerfile(t), false, os.Stdout))
	findAndRemoveBuiltImage(t, dockerClient, testImageTag)
}

func TestBuildImageFail(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, dockerFileName),
		[]byte(`FROM alpine:3.19
	COPY /non-existing-file /
	`), 0664))

	dockerClient, err := client.NewClientWithOpts(client.FromEnv,
		client.WithAPIVersionNegotiation())
	require.NoError(t, err)
	defer dockerClient.Close()

	err = buildDockerImage(dockerClient, testImageTag, tmpDir, false, os.Stdout)
	require.Error(t, err)
}

func TestBuildImageOutputVerbose(t *testing.T) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv,
		client.WithAPIVersionNegotiation())
	require.NoError(t, err)
	defer dockerClient.Close()

	tmpDir := t.TempDir()
	out, err := os.Create(filepath.Join(tmpDir, "out.log"))
	require.NoError(t, err)

	require.NoError(t, buildDockerImage(dockerClient, testImageTag,
		writeTestDockerfile(t), true, out))
	out.Close()
	findAndRemoveBuiltImage(t, dockerClient, testImageTag)

	content, err := os.ReadFile(filepath.Join(tmpDir, "out.log"))
	require.NoError(t, err)
	require.True(t, strings.Contains(string(content), "Successfully tagged "+testImageTag))
}

func TestBuildImageOutputQuiet(t *testing.T) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv,
		client.WithAPIVersionNegotiation())
	require.NoError(t, err)
	defer dockerClient.Close()

	tmpDir := t.TempDir()
	out, err := os.Create(filepath.Join(tmpDir, "out.log"))
	require.NoError(t, err)

	require.NoError(t, buildDockerImage(dockerClient, testImageTag,
		writeTestDockerfile(t), false, out))
	out.Close()
	findAndRemoveBuiltImage(t, dockerClient, testImageTag)

	in, err := os.Open(filepath.Join(tmpDir, "out.log"))
	require.NoError(t, err)
	defer in.Close()
	scanner := bufio.NewScanner(in)
	require.False(t, scanner.Scan())
}
