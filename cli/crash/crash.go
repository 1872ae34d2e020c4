// Package crash persists reports for unhandled errors and points the
// user at the issue tracker. Reports are plain text files under the
// dcd state directory, one per crash.
package crash

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"github.com/django-cloud/dcd/cli/cmdcontext"
	"github.com/django-cloud/dcd/cli/configure"
	"github.com/django-cloud/dcd/cli/util"
	"github.com/django-cloud/dcd/cli/version"
)

// issuesURL is where users are asked to report crashes.
const issuesURL = "https://github.com/django-cloud/dcd/issues/new"

// WriteReport stores a crash report in reportDir and returns its path.
func WriteReport(reportDir, commandName string, args []string, failure interface{}) (
	string, error,
) {
	reportPath := filepath.Join(reportDir, fmt.Sprintf("crash_%s.txt", uuid.New().String()))

	content := fmt.Sprintf(`command: %s
args: %s
version: %s
time: %s
failure: %v

stack:
%s`,
		commandName,
		strings.Join(args, " "),
		version.GetVersion(false, true),
		time.Now().Format(time.RFC3339),
		failure,
		debug.Stack())

	if err := os.WriteFile(reportPath, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("failed to write crash report: %s", err)
	}

	return reportPath, nil
}

// HandleCrash writes a crash report and tells the user how to file a
// bug. It is called from a deferred recover in main, so it must not
// panic itself.
func HandleCrash(cmdCtx *cmdcontext.CmdCtx, failure interface{}) {
	configHome := cmdCtx.Cli.ConfigHome
	if configHome == "" {
		// Crash happened before CLI configuration.
		if home, err := configure.GetConfigHome(); err == nil {
			configHome = home
		}
	}

	reportDir, err := configure.CrashReportDir(configHome)
	if err == nil {
		var reportPath string
		if reportPath, err = WriteReport(reportDir, cmdCtx.CommandName,
			os.Args[1:], failure); err == nil {
			log.Errorf("dcd has encountered and logged an internal error: %v", failure)
			log.Errorf("The error report was saved to %s.", reportPath)
			log.Errorf("Please report the issue at %s and attach the report.", issuesURL)
			return
		}
	}

	// Persisting failed, dump everything to the console instead.
	log.Errorf("%s", util.InternalError("Unhandled internal error: %v",
		version.GetVersion, failure))
}
