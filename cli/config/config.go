package config

import (
	"fmt"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"

	"github.com/django-cloud/dcd/cli/util"
)

// ProjectConfigName is the name of the configuration file created in
// the root of a generated project. The update command reads it to find
// the cloud resources belonging to the project.
const ProjectConfigName = ".dcd.yaml"

// ProjectConfig used to store all information from the
// .dcd.yaml configuration file.
type ProjectConfig struct {
	Project *ProjectOpts `mapstructure:"dcd" yaml:"dcd"`
}

// ProjectOpts stores deployment attributes of a generated project.
//
// .dcd.yaml file format:
// dcd:
//   project_id: string
//   django_project_name: string
//   backend: gae | gke
type ProjectOpts struct {
	// ProjectID is the unique id of the Google Cloud Platform project.
	ProjectID string `mapstructure:"project_id" yaml:"project_id"`
	// DjangoProjectName is the name of the generated Django project.
	DjangoProjectName string `mapstructure:"django_project_name" yaml:"django_project_name"`
	// Backend the project was deployed to.
	Backend string `mapstructure:"backend" yaml:"backend"`
}

// Service describes a Google Cloud service to enable before deployment.
type Service struct {
	// Title is a human readable service name.
	Title string `mapstructure:"title" yaml:"title"`
	// Name is the service endpoint, for example sqladmin.googleapis.com.
	Name string `mapstructure:"name" yaml:"name"`
}

// ServiceAccount describes a service account required by a deployment
// container together with the roles to bind and the name of the key
// file the container expects.
type ServiceAccount struct {
	// ID is the account id part of the service account email.
	ID string `mapstructure:"id" yaml:"id"`
	// Name is a human readable display name.
	Name string `mapstructure:"name" yaml:"name"`
	// FileName is the key file name the container mounts.
	FileName string `mapstructure:"file_name" yaml:"file_name"`
	// Roles to bind to the account on the project.
	Roles []string `mapstructure:"roles" yaml:"roles"`
}

// servicesFile is the layout of a services resource file.
type servicesFile struct {
	Services []Service `mapstructure:"services"`
}

// serviceAccountsFile is the layout of a service accounts resource file.
// Accounts are grouped by the deployment container using them.
type serviceAccountsFile struct {
	ServiceAccounts map[string][]ServiceAccount `mapstructure:"service_accounts"`
}

// GetProjectConfig looks for a project configuration file in projectDir,
// parses it and returns the parsed options.
func GetProjectConfig(projectDir string) (*ProjectOpts, error) {
	configPath, err := util.GetYamlFileName(filepath.Join(projectDir, ProjectConfigName), true)
	if err != nil {
		return nil, fmt.Errorf("failed to find configuration file in %q: %w", projectDir, err)
	}

	rawConfig, err := util.ParseYAML(configPath)
	if err != nil {
		return nil, err
	}

	var cfg ProjectConfig
	if err := mapstructure.Decode(rawConfig, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %s", err)
	}

	if cfg.Project == nil {
		return nil, fmt.Errorf("configuration file in %q does not contain dcd section",
			projectDir)
	}

	return cfg.Project, nil
}

// SaveProjectConfig writes the project configuration file to projectDir.
func SaveProjectConfig(projectDir string, opts *ProjectOpts) error {
	if !util.IsDir(projectDir) {
		return fmt.Errorf("%q is not a directory", projectDir)
	}

	return util.WriteYaml(filepath.Join(projectDir, ProjectConfigName),
		ProjectConfig{Project: opts})
}

// decodeResource parses YAML content into the target resource layout.
func decodeResource(content []byte, target interface{}) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return fmt.Errorf("failed to parse YAML: %s", err)
	}

	return mapstructure.Decode(raw, target)
}

// LoadServices parses a services resource file content.
func LoadServices(content []byte) ([]Service, error) {
	var file servicesFile
	if err := decodeResource(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse services: %s", err)
	}

	if len(file.Services) == 0 {
		return nil, fmt.Errorf("services list is empty")
	}

	return file.Services, nil
}

// LoadServiceAccounts parses a service accounts resource file content.
func LoadServiceAccounts(content []byte) (map[string][]ServiceAccount, error) {
	var file serviceAccountsFile
	if err := decodeResource(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse service accounts: %s", err)
	}

	if len(file.ServiceAccounts) == 0 {
		return nil, fmt.Errorf("service accounts list is empty")
	}

	return file.ServiceAccounts, nil
}
