package skeleton

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/django-cloud/dcd/cli/util"
)

func fileExists(pathname string) bool {
	_, err := os.Stat(pathname)
	return err == nil
}

func allExist(dir string, names ...string) bool {
	for _, name := range names {
		if !fileExists(filepath.Join(dir, name)) {
			return false
		}
	}

	return true
}

// camelCase converts an identifier like "poll_app" to "PollApp".
func camelCase(name string) string {
	var builder strings.Builder
	upper := true
	for _, r := range name {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			builder.WriteRune(unicode.ToUpper(r))
			upper = false
		} else {
			builder.WriteRune(unicode.ToLower(r))
		}
	}

	return builder.String()
}

// projectFilesGenerated reports whether projectDir already contains the
// Django project layout.
func projectFilesGenerated(projectDir string, projectName string) bool {
	return allExist(projectDir, "manage.py", projectName) &&
		fileExists(filepath.Join(projectDir, projectName, "urls.py"))
}

func (g *Generator) generateProjectFiles(opts GenerateOpts) error {
	if projectFilesGenerated(opts.ProjectDir, opts.ProjectName) {
		return nil
	}

	return g.instantiateDirectory("project_template", opts.ProjectDir,
		map[string]string{"project_name": opts.ProjectName},
		map[string]interface{}{
			"ProjectName": opts.ProjectName,
			"AppName":     opts.AppName,
			"DocsVersion": docsVersion,
		})
}

func (g *Generator) generateAppFiles(opts GenerateOpts) error {
	if fileExists(filepath.Join(opts.ProjectDir, opts.AppName)) {
		return nil
	}

	return g.instantiateDirectory("app_template",
		filepath.Join(opts.ProjectDir, opts.AppName), nil,
		map[string]interface{}{
			"AppName":          opts.AppName,
			"CamelCaseAppName": camelCase(opts.AppName),
		})
}

// generateAdminFiles creates the admin overwrite app together with the
// project level templates and static files it serves.
func (g *Generator) generateAdminFiles(opts GenerateOpts) error {
	if fileExists(filepath.Join(opts.ProjectDir, AdminAppName)) {
		return nil
	}

	err := g.instantiateDirectory("admin_template",
		filepath.Join(opts.ProjectDir, AdminAppName), nil,
		map[string]interface{}{
			"ProjectID":   opts.ProjectID,
			"ProjectName": opts.ProjectName,
		})
	if err != nil {
		return err
	}

	err = g.instantiateDirectory("templates_template",
		filepath.Join(opts.ProjectDir, "templates"), nil, nil)
	if err != nil {
		return err
	}

	return g.instantiateDirectory("static_template",
		filepath.Join(opts.ProjectDir, "staticfiles"), nil, nil)
}

var settingsFileNames = []string{"base_settings.py", "local_settings.py",
	"remote_settings.py"}

// settingsGenerated reports whether the project already carries the
// generated settings split.
func settingsGenerated(projectDir string, projectName string) bool {
	return allExist(filepath.Join(projectDir, projectName),
		settingsFileNames...)
}

// settingsExist reports whether the project carries a settings.py of its
// own, written before this tool ran.
func settingsExist(projectDir string, projectName string) bool {
	return fileExists(filepath.Join(projectDir, projectName, "settings.py"))
}

func (g *Generator) generateSettingsFiles(opts GenerateOpts) error {
	if settingsGenerated(opts.ProjectDir, opts.ProjectName) {
		return nil
	}

	secretKey, err := util.RandomString(secretKeyLength, secretKeyAlphabet)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"ProjectID":          opts.ProjectID,
		"ProjectName":        opts.ProjectName,
		"AppName":            opts.AppName,
		"DocsVersion":        docsVersion,
		"SecretKey":          secretKey,
		"DatabaseName":       opts.DatabaseName,
		"BucketName":         opts.BucketName,
		"CloudSQLConnection": opts.connectionString(),
	}

	djangoDir := filepath.Join(opts.ProjectDir, opts.ProjectName)
	if !settingsExist(opts.ProjectDir, opts.ProjectName) {
		return g.instantiateDirectory("settings_template", djangoDir, nil,
			data)
	}

	// The settings file of an existing project becomes the base module the
	// generated local and remote settings import from.
	err = os.Rename(filepath.Join(djangoDir, "settings.py"),
		filepath.Join(djangoDir, "base_settings.py"))
	if err != nil {
		return fmt.Errorf("failed to rename existing settings: %s", err)
	}

	for _, name := range []string{"local_settings", "remote_settings"} {
		err = g.instantiateFile("settings_template", name+".py-tpl",
			filepath.Join(djangoDir, name+".py"), data)
		if err != nil {
			return err
		}
	}

	return nil
}

func (g *Generator) generateDockerFiles(opts GenerateOpts) error {
	if allExist(opts.ProjectDir, "Dockerfile", ".dockerignore") {
		return nil
	}

	data := map[string]interface{}{"ProjectName": opts.ProjectName}
	for _, name := range []string{"Dockerfile-tpl", ".dockerignore"} {
		outName, _ := rewriteName(name)
		err := g.instantiateFile("deploy_template", name,
			filepath.Join(opts.ProjectDir, outName), data)
		if err != nil {
			return err
		}
	}

	return nil
}

func (g *Generator) generateAppEngineFiles(opts GenerateOpts) error {
	if allExist(opts.ProjectDir, "app.yaml", ".gcloudignore") {
		return nil
	}

	data := map[string]interface{}{"ProjectName": opts.ProjectName}
	for _, name := range []string{"app.yaml-tpl", ".gcloudignore"} {
		outName, _ := rewriteName(name)
		err := g.instantiateFile("deploy_template", name,
			filepath.Join(opts.ProjectDir, outName), data)
		if err != nil {
			return err
		}
	}

	return nil
}

func (g *Generator) generateDependencyFile(opts GenerateOpts) error {
	if fileExists(filepath.Join(opts.ProjectDir, "requirements.txt")) {
		return nil
	}

	return g.instantiateFile("deploy_template", "requirements.txt",
		filepath.Join(opts.ProjectDir, "requirements.txt"), nil)
}

// generateKubernetesManifest creates "<project name>.yaml" describing the
// deployment and the load balancer service of the app.
func (g *Generator) generateKubernetesManifest(opts GenerateOpts) error {
	manifestName := opts.ProjectName + ".yaml"
	if fileExists(filepath.Join(opts.ProjectDir, manifestName)) {
		return nil
	}

	return g.instantiateFile("deploy_template", "project_name.yaml-tpl",
		filepath.Join(opts.ProjectDir, manifestName),
		map[string]interface{}{
			"ProjectName":        opts.ProjectName,
			"ImageTag":           opts.ImageTag,
			"CloudSQLConnection": opts.connectionString(),
			"CloudSQLSecrets":    opts.CloudSQLSecrets,
			"DjangoSecrets":      opts.DjangoSecrets,
		})
}
