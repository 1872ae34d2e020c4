package builtin_templates

import (
	"embed"

	"github.com/django-cloud/dcd/cli/skeleton/builtin_templates/static"
)

// The all: prefix is required to pick up dotfiles (.dockerignore,
// .gcloudignore) and the __init__.py files, which plain patterns skip.
//
//go:embed all:templates
var TemplatesFs embed.FS

// FileModes contains mapping of file modes by template set name.
var FileModes = map[string]map[string]int{
	"project_template":   static.ProjectFileModes,
	"app_template":       static.AppFileModes,
	"admin_template":     static.AdminFileModes,
	"templates_template": static.TemplatesFileModes,
	"static_template":    static.StaticFileModes,
	"settings_template":  static.SettingsFileModes,
	"deploy_template":    static.DeployFileModes,
}

// Names contains template set names.
var Names = [...]string{"project_template", "app_template", "admin_template",
	"templates_template", "static_template", "settings_template",
	"deploy_template"}
