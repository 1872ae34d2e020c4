// Package prompt resolves the named parameters of a command, taking each one
// from a pre-supplied argument or from an ordered console dialogue.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"

	"github.com/django-cloud/dcd/cli/cloud"
	"github.com/django-cloud/dcd/cli/console"
	"github.com/django-cloud/dcd/cli/util"
)

// Parameter names shared between the command flags, the prompters and the
// workflows.
const (
	ParamCredentials         = "credentials"
	ParamProjectID           = "project_id"
	ParamProjectName         = "project_name"
	ParamBillingAccount      = "billing_account_name"
	ParamDatabasePassword    = "database_password"
	ParamDjangoDirectoryPath = "django_directory_path"
	ParamDjangoProjectName   = "django_project_name"
	ParamDjangoAppName       = "django_app_name"
	ParamSuperuserLogin      = "django_superuser_login"
	ParamSuperuserPassword   = "django_superuser_password"
	ParamSuperuserEmail      = "django_superuser_email"
)

// Prompter resolves one named parameter.
type Prompter interface {
	// Name returns the parameter name.
	Name() string
	// Validate checks a pre-supplied value of the parameter.
	Validate(ctx context.Context, st *State, value string) error
	// Resolve asks the user for the value and records it on the state.
	Resolve(ctx context.Context, st *State) error
}

// State is the shared resolution state the prompters read from and write
// to, so later prompters can depend on already resolved parameters.
type State struct {
	Console *console.Console
	// Params holds the parameter values by name. Pre-supplied command
	// line arguments are seeded here before resolution starts.
	Params map[string]string

	// Step is the bold step header of the currently running prompter,
	// maintained by Resolve.
	Step string

	// UseExistingProject makes the project prompters validate an already
	// existing project instead of describing a new one.
	UseExistingProject bool
	// Backend is the deployment target, "gke" or "gae".
	Backend string
	// NonInteractive fails resolution instead of asking questions.
	NonInteractive bool
	// AssumeYes answers confirmation questions with yes.
	AssumeYes bool

	// Auth wraps the gcloud account state.
	Auth *cloud.AuthClient
	// ClientOptions carry the resolved Google credentials every API
	// client is constructed with. The credentials prompter fills them in.
	ClientOptions []option.ClientOption

	projects *cloud.ProjectClient
	billing  *cloud.BillingClient
}

// NewState creates a resolution state with an empty parameter map.
func NewState(cons *console.Console, auth *cloud.AuthClient) *State {
	return &State{
		Console: cons,
		Params:  map[string]string{},
		Auth:    auth,
	}
}

// ProjectClient returns the shared resource manager client, created on
// first use with the resolved credentials.
func (st *State) ProjectClient(ctx context.Context) (*cloud.ProjectClient,
	error) {
	if st.projects == nil {
		client, err := cloud.NewProjectClient(ctx, st.ClientOptions...)
		if err != nil {
			return nil, err
		}
		st.projects = client
	}

	return st.projects, nil
}

// BillingClient returns the shared billing client, created on first use
// with the resolved credentials.
func (st *State) BillingClient(ctx context.Context) (*cloud.BillingClient,
	error) {
	if st.billing == nil {
		client, err := cloud.NewBillingClient(ctx, st.ClientOptions...)
		if err != nil {
			return nil, err
		}
		st.billing = client
	}

	return st.billing, nil
}

// ask asks the question until the answer passes validate. An empty answer
// takes the default when one is set. In non-interactive mode the default is
// taken without asking, no default is an error naming the parameter.
func (st *State) ask(name string, question string, defaultValue string,
	validate func(string) error) (string, error) {
	if st.NonInteractive {
		if defaultValue == "" {
			return "", fmt.Errorf("%q is required in non-interactive mode",
				name)
		}
		if validate != nil {
			if err := validate(defaultValue); err != nil {
				return "", err
			}
		}
		st.Console.Printf("%s: %s\n", name, defaultValue)
		return defaultValue, nil
	}

	for {
		answer, err := st.Console.Ask(question)
		if err != nil {
			return "", err
		}
		if answer == "" {
			answer = defaultValue
		}
		if validate != nil {
			if err := validate(answer); err != nil {
				st.Console.Errorf("%s\n", err)
				continue
			}
		}

		return answer, nil
	}
}

// askPassword asks for a password twice with terminal echo disabled.
// A mismatch or an invalid password makes the question asked again.
func (st *State) askPassword(name string) (string, error) {
	if st.NonInteractive {
		return "", fmt.Errorf("%q is required in non-interactive mode", name)
	}

	for {
		password, err := st.Console.AskHidden("Password: ")
		if err != nil {
			return "", err
		}
		if err := ValidatePassword(password); err != nil {
			st.Console.Errorf("%s\n", err)
			continue
		}

		again, err := st.Console.AskHidden("Password (again): ")
		if err != nil {
			return "", err
		}
		if password != again {
			st.Console.Errorf("Passwords do not match, please try again\n")
			continue
		}

		return password, nil
	}
}

// confirm asks a yes/no question. --assume-yes answers yes, non-interactive
// mode takes the default.
func (st *State) confirm(question string, defaultYes bool) (bool, error) {
	if st.AssumeYes {
		return true, nil
	}
	if st.NonInteractive {
		return defaultYes, nil
	}

	return st.Console.Confirm(question, defaultYes)
}

// Resolve resolves every parameter of prompters in order. Pre-supplied
// values short-circuit their prompt and an invalid one aborts resolution
// before anything is asked. The remaining prompters run with a bold step
// header counting only the parameters that are still unresolved.
func Resolve(ctx context.Context, st *State, prompters []Prompter) error {
	var remaining []Prompter
	for _, prompter := range prompters {
		name := prompter.Name()
		value := st.Params[name]
		if value == "" {
			remaining = append(remaining, prompter)
			continue
		}

		if err := prompter.Validate(ctx, st, value); err != nil {
			return err
		}
		display := value
		if strings.HasSuffix(name, "_password") {
			display = "********"
		}
		st.Console.Printf("%s: %s\n", name, display)
	}

	if len(remaining) == 0 {
		return nil
	}

	st.Console.Println(util.Bold(fmt.Sprintf(
		"%d steps to setup your new project", len(remaining))))
	st.Console.Println()

	for i, prompter := range remaining {
		st.Step = util.Bold(fmt.Sprintf("[%d/%d]", i+1, len(remaining)))
		if err := prompter.Resolve(ctx, st); err != nil {
			return err
		}
	}

	return nil
}

// NewCommandPrompters returns the parameter resolution order of "dcd new".
func NewCommandPrompters() []Prompter {
	return []Prompter{
		CredentialsPrompt{},
		ProjectIDPrompt{},
		ProjectNamePrompt{},
		&BillingPrompt{},
		DatabasePasswordPrompt{},
		DirectoryPathPrompt{},
		stringPrompt{
			name:     ParamDjangoProjectName,
			pretty:   "Django project name",
			fallback: "mysite",
			validate: ValidateDjangoProjectName,
		},
		stringPrompt{
			name:     ParamDjangoAppName,
			pretty:   "Django app name",
			fallback: "home",
			validate: ValidateDjangoAppName,
		},
		stringPrompt{
			name:     ParamSuperuserLogin,
			pretty:   "Django superuser login name",
			fallback: "admin",
			validate: ValidateSuperuserLogin,
		},
		SuperuserPasswordPrompt{},
		stringPrompt{
			name:     ParamSuperuserEmail,
			pretty:   "Django superuser email",
			fallback: "test@example.com",
			validate: ValidateSuperuserEmail,
		},
	}
}

// CloudifyCommandPrompters returns the resolution order of "dcd cloudify".
// The Django project and app names are not asked, they are discovered from
// the existing source tree.
func CloudifyCommandPrompters() []Prompter {
	return []Prompter{
		CredentialsPrompt{},
		ProjectIDPrompt{},
		ProjectNamePrompt{},
		&BillingPrompt{},
		DatabasePasswordPrompt{},
		ExistingDirectoryPathPrompt{},
		stringPrompt{
			name:     ParamSuperuserLogin,
			pretty:   "Django superuser login name",
			fallback: "admin",
			validate: ValidateSuperuserLogin,
		},
		SuperuserPasswordPrompt{},
		stringPrompt{
			name:     ParamSuperuserEmail,
			pretty:   "Django superuser email",
			fallback: "test@example.com",
			validate: ValidateSuperuserEmail,
		},
	}
}

// UpdateCommandPrompters returns the resolution order of "dcd update".
func UpdateCommandPrompters() []Prompter {
	return []Prompter{
		CredentialsPrompt{},
		ExistingDirectoryPathPrompt{},
		DatabasePasswordPrompt{},
	}
}
