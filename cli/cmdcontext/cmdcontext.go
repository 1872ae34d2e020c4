package cmdcontext

import (
	"bufio"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	goVersion "github.com/hashicorp/go-version"
)

// CmdCtx is the main structure of the program context.
// Contains within itself other structures of CLI modules.
type CmdCtx struct {
	// Cli - CLI context. Contains flags passed when starting
	// Django Cloud CLI and some other parameters.
	Cli CliCtx
	// CommandName contains name of the command.
	CommandName string
}

// CliCtx - CLI context. Contains flags passed when starting
// Django Cloud CLI and some other parameters.
type CliCtx struct {
	// Verbose logging flag. Enables debug log output and streaming
	// of subprocess output instead of a spinner.
	Verbose bool
	// NonInteractive disables console prompts. A parameter that is
	// not passed on the command line and has no default fails the
	// command instead of being asked.
	NonInteractive bool
	// AssumeYes answers confirmation questions with their default.
	AssumeYes bool
	// ConfigHome is the directory for dcd state: crash reports,
	// deploy transcripts and staged secrets.
	ConfigHome string
	// Gcloud describes the Google Cloud SDK executable.
	Gcloud GcloudCli
}

// GcloudCli describes the gcloud executable.
type GcloudCli struct {
	// Executable is a path to the gcloud executable.
	Executable string
	version    *goVersion.Version
}

const sdkVersionPrefix = "Google Cloud SDK "

// GetVersion returns the Google Cloud SDK version reported by the
// gcloud executable. The result is cached.
func (cli *GcloudCli) GetVersion() (*goVersion.Version, error) {
	if cli.version != nil {
		return cli.version, nil
	}

	if cli.Executable == "" {
		return nil, errors.New("gcloud executable is not set")
	}

	out, err := exec.Command(cli.Executable, "version").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to get gcloud version: %s", err)
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, sdkVersionPrefix) {
			continue
		}

		sdkVersion, err := goVersion.NewVersion(strings.TrimPrefix(line, sdkVersionPrefix))
		if err != nil {
			return nil, fmt.Errorf("gcloud version format is not valid: %w", err)
		}

		cli.version = sdkVersion
		return cli.version, nil
	}

	return nil, fmt.Errorf("no Google Cloud SDK version in %q output", cli.Executable)
}
