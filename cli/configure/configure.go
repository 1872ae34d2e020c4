package configure

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/apex/log"

	"github.com/django-cloud/dcd/cli/cmdcontext"
	"github.com/django-cloud/dcd/cli/util"
)

const (
	cliExecutableName = "dcd"

	// configHomeEnvName is an environment variable that overrides the
	// base directory for dcd state.
	configHomeEnvName = "XDG_CONFIG_HOME"

	// configHomeDirName is the dcd state directory name inside the
	// user configuration directory.
	configHomeDirName = "django_cloud"

	defaultDirPerms = 0o750
)

// Subdirectories of the dcd state directory.
const (
	LogPath     = "log"
	CrashPath   = "crash_reports"
	SecretsPath = "secrets"
)

// GetConfigHome returns the dcd state directory:
// $XDG_CONFIG_HOME/django_cloud or ~/.config/django_cloud.
func GetConfigHome() (string, error) {
	if configDir := os.Getenv(configHomeEnvName); configDir != "" {
		return filepath.Join(configDir, configHomeDirName), nil
	}

	homeDir, err := util.GetHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %s", err)
	}

	return filepath.Join(homeDir, ".config", configHomeDirName), nil
}

// LogDir returns the deploy transcript directory, creating it if needed.
func LogDir(configHome string) (string, error) {
	dir := filepath.Join(configHome, LogPath)
	if err := util.CreateDirectory(dir, defaultDirPerms); err != nil {
		return "", err
	}

	return dir, nil
}

// CrashReportDir returns the crash report directory, creating it if needed.
func CrashReportDir(configHome string) (string, error) {
	dir := filepath.Join(configHome, CrashPath)
	if err := util.CreateDirectory(dir, defaultDirPerms); err != nil {
		return "", err
	}

	return dir, nil
}

// SecretsStagingDir returns the directory used to stage secret files of
// a project before they are uploaded, creating it if needed.
func SecretsStagingDir(configHome, projectID string) (string, error) {
	dir := filepath.Join(configHome, SecretsPath, projectID)
	if err := util.CreateDirectory(dir, defaultDirPerms); err != nil {
		return "", err
	}

	return dir, nil
}

// Cli performs initial CLI configuration: loads the state directory
// location and locates the gcloud executable.
func Cli(cmdCtx *cmdcontext.CmdCtx) error {
	if cmdCtx.Cli.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	configHome, err := GetConfigHome()
	if err != nil {
		return err
	}
	cmdCtx.Cli.ConfigHome = configHome

	// The gcloud executable is required by most commands, but its
	// absence is reported by the command that needs it.
	if gcloudPath, err := exec.LookPath("gcloud"); err == nil {
		cmdCtx.Cli.Gcloud.Executable = gcloudPath
	}

	return nil
}
