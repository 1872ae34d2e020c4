package cloud

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/django-cloud/dcd/cli/util"
)

// superuserScript is fed to "manage.py shell". Creation is skipped when the
// user already exists so re-runs stay idempotent.
const superuserScript = `from django.contrib.auth import get_user_model

User = get_user_model()
if not User.objects.filter(username=%s).exists():
    User.objects.create_superuser(%s, %s, %s)
`

// ManageRunner runs manage.py commands of the generated project against the
// deployment settings.
type ManageRunner struct {
	// Python is the python executable, "python3" when empty.
	Python string
	// ProjectDir is the root of the generated project.
	ProjectDir string
	// ProjectName selects the "<name>.remote_settings" settings module.
	ProjectName string

	DatabaseUser     string
	DatabasePassword string
	// DatabasePort redirects database traffic to a locally running Cloud
	// SQL proxy. Zero keeps the settings default.
	DatabasePort int
}

func (r *ManageRunner) python() string {
	if r.Python == "" {
		return "python3"
	}

	return r.Python
}

func (r *ManageRunner) env() []string {
	env := append(os.Environ(),
		"DJANGO_SETTINGS_MODULE="+r.ProjectName+".remote_settings",
		"DATABASE_USER="+r.DatabaseUser,
		"DATABASE_PASSWORD="+r.DatabasePassword,
	)
	if r.DatabasePort != 0 {
		env = append(env, fmt.Sprintf("DATABASE_PORT=%d", r.DatabasePort))
	}

	return env
}

// Migrate applies the database migrations.
func (r *ManageRunner) Migrate(showOutput bool) error {
	cmd := exec.Command(r.python(), "manage.py", "migrate")
	cmd.Env = r.env()

	return util.RunCommand(cmd, r.ProjectDir, showOutput)
}

// CollectStatic gathers the static files into the static root of the
// project.
func (r *ManageRunner) CollectStatic(showOutput bool) error {
	cmd := exec.Command(r.python(), "manage.py", "collectstatic", "--noinput")
	cmd.Env = r.env()

	return util.RunCommand(cmd, r.ProjectDir, showOutput)
}

// CreateSuperuser creates the Django superuser unless it already exists.
func (r *ManageRunner) CreateSuperuser(username string, email string,
	password string) error {
	script := fmt.Sprintf(superuserScript, pyLit(username), pyLit(username),
		pyLit(email), pyLit(password))

	cmd := exec.Command(r.python(), "manage.py", "shell")
	cmd.Env = r.env()

	output, err := util.ExecuteCommandGetOutput(cmd, r.ProjectDir,
		[]byte(script))
	if err != nil {
		return fmt.Errorf("failed to create the superuser: %s\n%s", err,
			output)
	}

	return nil
}

// pyLit quotes a value as a Python string literal. JSON string syntax is a
// subset of Python's, which keeps passwords with quotes intact.
func pyLit(value string) string {
	quoted, _ := json.Marshal(value)
	return string(quoted)
}
