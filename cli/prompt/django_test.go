package prompt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	valid := []string{"hunter22", "secret", `p@ss!w0rd`, "!\"#$%&'()*+,-"}
	for _, value := range valid {
		assert.NoError(t, ValidatePassword(value), value)
	}

	err := ValidatePassword("short")
	assert.ErrorContains(t, err,
		"Passwords must be at least 6 characters long")

	for _, value := range []string{"pass word", "contraseña", "secret\t1"} {
		assert.ErrorContains(t, ValidatePassword(value),
			"Invalid character in password: use letters, numbers and "+
				"punctuation", value)
	}
}

func TestValidateDjangoProjectName(t *testing.T) {
	valid := []string{"mysite", "my_site2", "_private"}
	for _, value := range valid {
		assert.NoError(t, ValidateDjangoProjectName(value), value)
	}

	invalid := []string{"", "2cool", "my-site", "my site"}
	for _, value := range invalid {
		assert.ErrorContains(t, ValidateDjangoProjectName(value),
			"must be a valid Python identifier", value)
	}

	for _, value := range []string{"django", "test", "os"} {
		assert.ErrorContains(t, ValidateDjangoProjectName(value),
			"clashes with a Python module", value)
	}
}

func TestValidateDjangoAppName(t *testing.T) {
	assert.NoError(t, ValidateDjangoAppName("home"))

	err := ValidateDjangoAppName("my-app")
	assert.ErrorContains(t, err, "Invalid Django app name")
	assert.ErrorContains(t, err, "must be a valid Python identifier")

	err = ValidateDjangoAppName("sys")
	assert.ErrorContains(t, err, "clashes with a Python module")
}

func TestValidateSuperuserLogin(t *testing.T) {
	assert.NoError(t, ValidateSuperuserLogin("admin"))
	assert.NoError(t, ValidateSuperuserLogin("Admin2"))

	for _, value := range []string{"", "admin!", "super user"} {
		assert.ErrorContains(t, ValidateSuperuserLogin(value),
			"must be a alpha numeric", value)
	}
}

func TestValidateSuperuserEmail(t *testing.T) {
	assert.NoError(t, ValidateSuperuserEmail("test@example.com"))
	assert.NoError(t, ValidateSuperuserEmail("first.last@mail.example.org"))

	invalid := []string{"", "not-an-email", "test@example", "a@b@c.com"}
	for _, value := range invalid {
		assert.ErrorContains(t, ValidateSuperuserEmail(value),
			`the format should be like "test@example.com"`, value)
	}
}

func TestValidateDjangoDirectory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	project := filepath.Join(home, "proj")
	require.NoError(t, os.MkdirAll(project, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(project, "manage.py"),
		[]byte("#!/usr/bin/env python\n"), 0644))

	assert.NoError(t, ValidateDjangoDirectory(project))
	assert.NoError(t, ValidateDjangoDirectory("~/proj"))

	err := ValidateDjangoDirectory(filepath.Join(home, "empty"))
	assert.ErrorContains(t, err, "manage.py not found")
}

func TestStringPromptResolveDefault(t *testing.T) {
	st, out, _ := newTestState("")
	st.Step = "[7/11]"

	prompter := stringPrompt{
		name:     ParamDjangoProjectName,
		pretty:   "Django project name",
		fallback: "mysite",
		validate: ValidateDjangoProjectName,
	}
	require.NoError(t, prompter.Resolve(context.Background(), st))

	assert.Equal(t, "mysite", st.Params[ParamDjangoProjectName])
	assert.Contains(t, out.String(), "[7/11] Enter a value for Django "+
		"project name or leave blank to use\n[mysite]: ")
}

func TestStringPromptRepromptsOnInvalid(t *testing.T) {
	st, _, errOut := newTestState("my-site", "mysite2")
	st.Step = "[7/11]"

	prompter := stringPrompt{
		name:     ParamDjangoProjectName,
		pretty:   "Django project name",
		fallback: "mysite",
		validate: ValidateDjangoProjectName,
	}
	require.NoError(t, prompter.Resolve(context.Background(), st))

	assert.Equal(t, "mysite2", st.Params[ParamDjangoProjectName])
	assert.Contains(t, errOut.String(), `Invalid Django project name "my-site"`)
}

func TestDatabasePasswordPromptResolve(t *testing.T) {
	st, out, _ := newTestState("hunter22", "hunter22")
	st.Step = "[5/11]"

	require.NoError(t,
		DatabasePasswordPrompt{}.Resolve(context.Background(), st))

	assert.Equal(t, "hunter22", st.Params[ParamDatabasePassword])
	assert.Contains(t, out.String(), "[5/11] Enter a password for the "+
		"default database user \"postgres\"")
	assert.Contains(t, out.String(), "Password: ")
	assert.Contains(t, out.String(), "Password (again): ")
}

func TestDatabasePasswordPromptNonInteractive(t *testing.T) {
	st, _, _ := newTestState()
	st.NonInteractive = true

	err := DatabasePasswordPrompt{}.Resolve(context.Background(), st)
	require.ErrorContains(t, err,
		`"database_password" is required in non-interactive mode`)
}

func TestSuperuserPasswordPromptResolve(t *testing.T) {
	st, out, _ := newTestState("hunter22", "hunter22")
	st.Step = "[10/11]"
	st.Params[ParamSuperuserLogin] = "admin"

	require.NoError(t,
		SuperuserPasswordPrompt{}.Resolve(context.Background(), st))

	assert.Equal(t, "hunter22", st.Params[ParamSuperuserPassword])
	assert.Contains(t, out.String(),
		`[10/11] Enter a password for the Django superuser "admin"`)
}

func TestDirectoryPathPromptNewDirectory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	st, out, _ := newTestState("")
	st.Step = "[6/11]"
	st.Params[ParamProjectName] = "My Cool App"

	require.NoError(t, DirectoryPathPrompt{}.Resolve(context.Background(), st))

	assert.Equal(t, filepath.Join(home, "my-cool-app"),
		st.Params[ParamDjangoDirectoryPath])
	assert.Contains(t, out.String(), "Enter a new directory path to store "+
		"project source, or leave blank to use")
}

func TestDirectoryPathPromptReplaceExisting(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	existing := filepath.Join(home, "taken")
	require.NoError(t, os.MkdirAll(existing, 0755))

	st, out, _ := newTestState(existing, "y")
	st.Step = "[6/11]"

	require.NoError(t, DirectoryPathPrompt{}.Resolve(context.Background(), st))

	assert.Equal(t, existing, st.Params[ParamDjangoDirectoryPath])
	assert.Contains(t, out.String(), fmt.Sprintf("The directory '%s' "+
		"already exists, replace it's contents [y/N]: ", existing))
}

func TestDirectoryPathPromptRefusalAsksAgain(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	existing := filepath.Join(home, "taken")
	require.NoError(t, os.MkdirAll(existing, 0755))

	st, _, _ := newTestState(existing, "", filepath.Join(home, "fresh"))
	st.Step = "[6/11]"

	require.NoError(t, DirectoryPathPrompt{}.Resolve(context.Background(), st))

	assert.Equal(t, filepath.Join(home, "fresh"),
		st.Params[ParamDjangoDirectoryPath])
}

func TestDirectoryPathPromptNonInteractiveExisting(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, "django-project"),
		0755))

	st, _, _ := newTestState()
	st.NonInteractive = true

	err := DirectoryPathPrompt{}.Resolve(context.Background(), st)
	require.ErrorContains(t, err, "already exists")
}

func TestDirectoryPathPromptAssumeYes(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, "django-project"),
		0755))

	st, _, _ := newTestState()
	st.NonInteractive = true
	st.AssumeYes = true

	require.NoError(t, DirectoryPathPrompt{}.Resolve(context.Background(), st))
	assert.Equal(t, filepath.Join(home, "django-project"),
		st.Params[ParamDjangoDirectoryPath])
}

func TestExistingDirectoryPathPrompt(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	project := filepath.Join(home, "proj")
	require.NoError(t, os.MkdirAll(project, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(project, "manage.py"),
		[]byte("#!/usr/bin/env python\n"), 0644))

	st, out, errOut := newTestState("~/missing", "~/proj")
	st.Step = "[2/3]"

	require.NoError(t,
		ExistingDirectoryPathPrompt{}.Resolve(context.Background(), st))

	assert.Equal(t, project, st.Params[ParamDjangoDirectoryPath])
	assert.Contains(t, out.String(),
		"Enter the directory path of your existing Django project: ")
	assert.Contains(t, errOut.String(),
		`Invalid Django project directory "~/missing"`)
}
