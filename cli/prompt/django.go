package prompt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/django-cloud/dcd/cli/util"
)

// passwordCharacters is the set of characters a database or superuser
// password may consist of: ASCII letters, digits and punctuation.
const passwordCharacters = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// ValidatePassword checks the password rules shared by the database and the
// Django superuser passwords.
func ValidatePassword(value string) error {
	if len(value) < 6 {
		return fmt.Errorf("Passwords must be at least 6 characters long")
	}
	for _, r := range value {
		if !strings.ContainsRune(passwordCharacters, r) {
			return fmt.Errorf("Invalid character in password: " +
				"use letters, numbers and punctuation")
		}
	}

	return nil
}

var (
	identifierRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	alnumRegexp      = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	emailRegexp      = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)
)

// reservedModuleNames are Python modules imported by the generated code, a
// project or app named after one would shadow them.
var reservedModuleNames = []string{"django", "google", "os", "sys", "test"}

// ValidateDjangoProjectName checks that the name can serve as the Python
// package name of the generated project.
func ValidateDjangoProjectName(value string) error {
	if !identifierRegexp.MatchString(value) {
		return fmt.Errorf("Invalid Django project name %q: must be a valid "+
			"Python identifier", value)
	}
	if slices.Contains(reservedModuleNames, value) {
		return fmt.Errorf("Invalid Django project name %q: clashes with a "+
			"Python module used by the generated project", value)
	}

	return nil
}

// ValidateDjangoAppName checks that the name can serve as the Python package
// name of the generated application.
func ValidateDjangoAppName(value string) error {
	if !identifierRegexp.MatchString(value) {
		return fmt.Errorf("Invalid Django app name %q: must be a valid "+
			"Python identifier", value)
	}
	if slices.Contains(reservedModuleNames, value) {
		return fmt.Errorf("Invalid Django app name %q: clashes with a "+
			"Python module used by the generated project", value)
	}

	return nil
}

// ValidateSuperuserLogin checks the Django superuser login name.
func ValidateSuperuserLogin(value string) error {
	if !alnumRegexp.MatchString(value) {
		return fmt.Errorf("Invalid Django superuser login %q: must be a "+
			"alpha numeric", value)
	}

	return nil
}

// ValidateSuperuserEmail checks the Django superuser email address.
func ValidateSuperuserEmail(value string) error {
	if !emailRegexp.MatchString(value) {
		return fmt.Errorf("Invalid Django superuser email address %q: the "+
			"format should be like \"test@example.com\"", value)
	}

	return nil
}

// ValidateDjangoDirectory checks that the directory holds a Django project.
func ValidateDjangoDirectory(value string) error {
	expanded, err := util.ExpandUser(value)
	if err != nil {
		return err
	}
	if !util.IsRegularFile(filepath.Join(expanded, "manage.py")) {
		return fmt.Errorf("Invalid Django project directory %q: "+
			"manage.py not found", value)
	}

	return nil
}

// stringPrompt asks for a plain string parameter with a default.
type stringPrompt struct {
	name     string
	pretty   string
	fallback string
	validate func(string) error
}

func (p stringPrompt) Name() string { return p.name }

func (p stringPrompt) Validate(ctx context.Context, st *State,
	value string) error {
	return p.validate(value)
}

func (p stringPrompt) Resolve(ctx context.Context, st *State) error {
	question := fmt.Sprintf("%s Enter a value for %s or leave blank to "+
		"use\n[%s]: ", st.Step, p.pretty, p.fallback)
	value, err := st.ask(p.name, question, p.fallback, p.validate)
	if err != nil {
		return err
	}
	st.Params[p.name] = value

	return nil
}

// DatabasePasswordPrompt resolves the password of the "postgres" database
// user.
type DatabasePasswordPrompt struct{}

func (DatabasePasswordPrompt) Name() string { return ParamDatabasePassword }

func (DatabasePasswordPrompt) Validate(ctx context.Context, st *State,
	value string) error {
	return ValidatePassword(value)
}

func (DatabasePasswordPrompt) Resolve(ctx context.Context, st *State) error {
	st.Console.Println(st.Step + " Enter a password for the default " +
		"database user \"postgres\"")
	password, err := st.askPassword(ParamDatabasePassword)
	if err != nil {
		return err
	}
	st.Params[ParamDatabasePassword] = password

	return nil
}

// SuperuserPasswordPrompt resolves the password of the Django superuser
// created during deployment.
type SuperuserPasswordPrompt struct{}

func (SuperuserPasswordPrompt) Name() string { return ParamSuperuserPassword }

func (SuperuserPasswordPrompt) Validate(ctx context.Context, st *State,
	value string) error {
	return ValidatePassword(value)
}

func (SuperuserPasswordPrompt) Resolve(ctx context.Context, st *State) error {
	st.Console.Printf("%s Enter a password for the Django superuser %q\n",
		st.Step, st.Params[ParamSuperuserLogin])
	password, err := st.askPassword(ParamSuperuserPassword)
	if err != nil {
		return err
	}
	st.Params[ParamSuperuserPassword] = password

	return nil
}

// DirectoryPathPrompt resolves the directory the project source is
// generated into. An existing directory needs a replace confirmation, a
// refusal asks for another directory.
type DirectoryPathPrompt struct{}

func (DirectoryPathPrompt) Name() string { return ParamDjangoDirectoryPath }

func (DirectoryPathPrompt) Validate(ctx context.Context, st *State,
	value string) error {
	return nil
}

func (DirectoryPathPrompt) Resolve(ctx context.Context, st *State) error {
	defaultDir, err := defaultProjectDirectory(st.Params[ParamProjectName])
	if err != nil {
		return err
	}
	question := fmt.Sprintf("%s Enter a new directory path to store project "+
		"source, or leave blank to use\n[%s]: ", st.Step, defaultDir)

	for {
		directory, err := st.ask(ParamDjangoDirectoryPath, question,
			defaultDir, nil)
		if err != nil {
			return err
		}
		expanded, err := util.ExpandUser(directory)
		if err != nil {
			return err
		}
		if _, err := os.Stat(expanded); err != nil {
			st.Params[ParamDjangoDirectoryPath] = expanded
			return nil
		}

		replace, err := st.confirm(fmt.Sprintf("The directory '%s' already "+
			"exists, replace it's contents", directory), false)
		if err != nil {
			return err
		}
		if replace {
			st.Params[ParamDjangoDirectoryPath] = expanded
			return nil
		}
		if st.NonInteractive {
			return fmt.Errorf("the directory %q already exists", expanded)
		}
	}
}

// defaultProjectDirectory derives the suggested project directory under the
// user's home from the project name.
func defaultProjectDirectory(projectName string) (string, error) {
	home, err := util.GetHomeDir()
	if err != nil {
		return "", err
	}
	if projectName == "" {
		projectName = "django-project"
	}
	slug := strings.ReplaceAll(strings.ToLower(projectName), " ", "-")

	return filepath.Join(home, slug), nil
}

// ExistingDirectoryPathPrompt resolves the directory of an already existing
// Django project for the commands operating on one.
type ExistingDirectoryPathPrompt struct{}

func (ExistingDirectoryPathPrompt) Name() string {
	return ParamDjangoDirectoryPath
}

func (ExistingDirectoryPathPrompt) Validate(ctx context.Context, st *State,
	value string) error {
	return ValidateDjangoDirectory(value)
}

func (ExistingDirectoryPathPrompt) Resolve(ctx context.Context,
	st *State) error {
	question := fmt.Sprintf("%s Enter the directory path of your existing "+
		"Django project: ", st.Step)
	directory, err := st.ask(ParamDjangoDirectoryPath, question, "",
		ValidateDjangoDirectory)
	if err != nil {
		return err
	}
	expanded, err := util.ExpandUser(directory)
	if err != nil {
		return err
	}
	st.Params[ParamDjangoDirectoryPath] = expanded

	return nil
}
