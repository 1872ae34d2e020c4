// Package skeleton instantiates the source files of a Django project ready
// to be deployed to Google Cloud from the built-in templates.
package skeleton

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/django-cloud/dcd/cli/skeleton/builtin_templates"
	"github.com/django-cloud/dcd/cli/templates"
	"github.com/django-cloud/dcd/cli/util"
)

const (
	// AdminAppName is the name of the generated admin overwrite app.
	AdminAppName = "cloud_admin"

	// DefaultRegion is used when no region is supplied.
	DefaultRegion = "us-west1"

	// docsVersion selects the Django documentation links and the pinned
	// framework generation the templates are written for.
	docsVersion = "4.2"

	// secretKeyAlphabet matches the characters Django itself uses when it
	// generates a settings secret key.
	secretKeyAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*(-_=+)"
	secretKeyLength   = 50

	defaultDirMode = 0o755
)

// Generator instantiates Django source files from the built-in templates.
type Generator struct {
	engine templates.TemplateEngine
	fsys   fs.FS
}

// NewGenerator creates a Generator over the built-in templates.
func NewGenerator() *Generator {
	return &Generator{
		engine: templates.NewDefaultEngine(),
		fsys:   builtin_templates.TemplatesFs,
	}
}

// GenerateOpts describes the Django project to instantiate.
type GenerateOpts struct {
	// ProjectID is the Google Cloud project id.
	ProjectID string
	// ProjectName is the Django project name.
	ProjectName string
	// AppName is the name of the Django application created inside the
	// project.
	AppName string
	// ProjectDir is the directory to place the generated files in. A
	// leading "~" is expanded.
	ProjectDir string
	// BucketName is the Cloud Storage bucket serving static content.
	// Defaults to ProjectID.
	BucketName string
	// DatabaseName defaults to "<project name>-db".
	DatabaseName string
	// InstanceName is the Cloud SQL instance name. Defaults to
	// "<project name>-instance".
	InstanceName string
	// Region is the Google Cloud region hosting the project. Defaults to
	// DefaultRegion.
	Region string
	// ImageTag is the container image reference used in the Kubernetes
	// manifest. Defaults to "gcr.io/<project id>/<project name>".
	ImageTag string
	// CloudSQLSecrets lists the secrets mounted by the Cloud SQL proxy
	// container. Defaults to ["cloudsql-oauth-credentials"].
	CloudSQLSecrets []string
	// DjangoSecrets lists extra secrets mounted by the app container.
	DjangoSecrets []string
}

// withDefaults returns a copy of opts with empty fields filled in and
// ProjectDir resolved to an absolute path.
func (opts GenerateOpts) withDefaults() (GenerateOpts, error) {
	projectDir, err := util.ExpandUser(opts.ProjectDir)
	if err != nil {
		return opts, err
	}
	if projectDir, err = filepath.Abs(projectDir); err != nil {
		return opts, err
	}
	opts.ProjectDir = projectDir

	if opts.BucketName == "" {
		opts.BucketName = opts.ProjectID
	}
	if opts.DatabaseName == "" {
		opts.DatabaseName = opts.ProjectName + "-db"
	}
	if opts.InstanceName == "" {
		opts.InstanceName = opts.ProjectName + "-instance"
	}
	if opts.Region == "" {
		opts.Region = DefaultRegion
	}
	if opts.ImageTag == "" {
		opts.ImageTag = fmt.Sprintf("gcr.io/%s/%s", opts.ProjectID,
			opts.ProjectName)
	}
	if len(opts.CloudSQLSecrets) == 0 {
		opts.CloudSQLSecrets = []string{"cloudsql-oauth-credentials"}
	}

	return opts, nil
}

// connectionString returns the Cloud SQL connection string of the project
// instance in the "<project>:<region>:<instance>" form the proxy expects.
func (opts GenerateOpts) connectionString() string {
	return fmt.Sprintf("%s:%s:%s", opts.ProjectID, opts.Region,
		opts.InstanceName)
}

// GenerateAll instantiates the full set of Django source files into
// opts.ProjectDir. Files generated by an earlier run are detected and left
// untouched, so re-running over the same directory is safe.
func (g *Generator) GenerateAll(opts GenerateOpts) error {
	opts, err := opts.withDefaults()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.ProjectDir, defaultDirMode); err != nil {
		return fmt.Errorf("failed to create project directory: %s", err)
	}

	generate := []func(GenerateOpts) error{
		g.generateProjectFiles,
		g.generateAdminFiles,
		g.generateAppFiles,
		g.generateSettingsFiles,
		g.generateDockerFiles,
		g.generateDependencyFile,
		g.generateKubernetesManifest,
		g.generateAppEngineFiles,
	}
	for _, generateFiles := range generate {
		if err := generateFiles(opts); err != nil {
			return err
		}
	}

	return nil
}
