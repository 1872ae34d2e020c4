package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/django-cloud/dcd/cli/util"
)

// settingsModuleRe extracts the project module from the
// DJANGO_SETTINGS_MODULE default in manage.py, e.g.
// os.environ.setdefault('DJANGO_SETTINGS_MODULE', 'mysite.settings').
var settingsModuleRe = regexp.MustCompile(
	`DJANGO_SETTINGS_MODULE['"]\s*,\s*['"](?P<project>[A-Za-z_][A-Za-z0-9_]*)\.`)

// DiscoverProjectName reads the Django project name out of the manage.py of
// an existing project directory.
func DiscoverProjectName(projectDir string) (string, error) {
	managePath := filepath.Join(projectDir, "manage.py")
	content, err := os.ReadFile(managePath)
	if err != nil {
		return "", fmt.Errorf("failed to read %q: %s", managePath, err)
	}

	name := util.FindNamedMatches(settingsModuleRe, string(content))["project"]
	if name == "" {
		return "", fmt.Errorf(
			"failed to find the Django settings module in %q", managePath)
	}

	return name, nil
}
