// Package workflow drives the provisioning and deployment pipeline. A
// Manager runs the numbered console sections of the new, cloudify and
// update commands, calling into the cloud clients, the source generator
// and the backend deployers.
package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/fatih/color"
	"github.com/otiai10/copy"
	"github.com/pkg/browser"
	"google.golang.org/api/option"

	"github.com/django-cloud/dcd/cli/cloud"
	"github.com/django-cloud/dcd/cli/config"
	"github.com/django-cloud/dcd/cli/console"
	"github.com/django-cloud/dcd/cli/dcdlog"
	"github.com/django-cloud/dcd/cli/deploy"
	"github.com/django-cloud/dcd/cli/skeleton"
	"github.com/django-cloud/dcd/cli/util"
)

const (
	// BackendGKE deploys to a Kubernetes Engine cluster.
	BackendGKE = "gke"
	// BackendGAE deploys to App Engine.
	BackendGAE = "gae"

	totalNewSteps    = 8
	totalUpdateSteps = 3

	// staticDirName is where collectstatic gathers the static files,
	// relative to the project directory.
	staticDirName = "static"
)

// InvalidConfigError is returned by update when the project configuration
// file is missing or lacks the deployment attributes.
type InvalidConfigError struct {
	ProjectDir string
}

func (e InvalidConfigError) Error() string {
	return fmt.Sprintf("Configuration file in [%s] does not contain enough "+
		"information to update a Django project.", e.ProjectDir)
}

// Clients bundles the cloud API clients the workflows drive.
type Clients struct {
	Projects *cloud.ProjectClient
	Billing  *cloud.BillingClient
	Services *cloud.ServiceUsageClient
	Accounts *cloud.ServiceAccountClient
	SQL      *cloud.SQLClient
	Storage  *cloud.StorageClient
}

// NewClients creates every cloud client from one credentials option set.
func NewClients(ctx context.Context,
	opts ...option.ClientOption) (*Clients, error) {
	projects, err := cloud.NewProjectClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	billing, err := cloud.NewBillingClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	services, err := cloud.NewServiceUsageClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	accounts, err := cloud.NewServiceAccountClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	sql, err := cloud.NewSQLClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	storage, err := cloud.NewStorageClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &Clients{
		Projects: projects,
		Billing:  billing,
		Services: services,
		Accounts: accounts,
		SQL:      sql,
		Storage:  storage,
	}, nil
}

type gkeDeployer interface {
	DeployNewApp(opts deploy.Options) (string, error)
	UpdateApp(opts deploy.Options) (string, error)
}

type gaeDeployer interface {
	StageSecrets(ctx context.Context, projectID string,
		secrets deploy.Secrets) error
	Deploy(opts deploy.Options) (string, error)
}

type manageRunner interface {
	Migrate(showOutput bool) error
	CollectStatic(showOutput bool) error
	CreateSuperuser(username string, email string, password string) error
}

// ManagerOpts describes how to construct a workflow Manager.
type ManagerOpts struct {
	// Console the section headers and results are printed to.
	Console *console.Console
	// Transcript is an optional deploy log every section is appended to.
	Transcript *dcdlog.Logger
	// Clients are the cloud API clients, built from the resolved
	// credentials.
	Clients *Clients
	// Auth mints the registry access token of the image push.
	Auth *cloud.AuthClient
	// Backend is BackendGKE or BackendGAE.
	Backend string
	// Verbose streams subprocess output instead of a spinner.
	Verbose bool
	// OpenBrowser opens the deployed application in the default browser.
	OpenBrowser bool

	// Paths of the external tools. Empty strings select the ones on PATH.
	GcloudPath   string
	KubectlPath  string
	SQLProxyPath string
	PythonPath   string
}

// Manager runs the deployment workflows.
type Manager struct {
	console    *console.Console
	transcript *dcdlog.Logger
	clients    *Clients
	generator  *skeleton.Generator
	backend    string
	verbose    bool

	gke gkeDeployer
	gae gaeDeployer

	startProxy func(connectionName string) (int, func(), error)
	newManage  func(projectDir string, projectName string,
		databasePassword string, port int) manageRunner
	accessToken func(ctx context.Context) (string, error)
	openBrowser func(url string) error
}

// NewManager creates a Manager for the given backend.
func NewManager(opts ManagerOpts) *Manager {
	m := &Manager{
		console:    opts.Console,
		transcript: opts.Transcript,
		clients:    opts.Clients,
		generator:  skeleton.NewGenerator(),
		backend:    opts.Backend,
		verbose:    opts.Verbose,
	}

	m.gke = deploy.NewGKEDeployer(opts.GcloudPath, opts.KubectlPath)
	if opts.Clients != nil {
		m.gae = deploy.NewGAEDeployer(opts.GcloudPath, opts.Clients.Storage)
	}

	proxyPath := opts.SQLProxyPath
	m.startProxy = func(connectionName string) (int, func(), error) {
		proxy, err := cloud.StartSQLProxy(proxyPath, connectionName)
		if err != nil {
			return 0, nil, err
		}
		return proxy.Port, proxy.Stop, nil
	}

	pythonPath := opts.PythonPath
	m.newManage = func(projectDir string, projectName string,
		databasePassword string, port int) manageRunner {
		return &cloud.ManageRunner{
			Python:           pythonPath,
			ProjectDir:       projectDir,
			ProjectName:      projectName,
			DatabaseUser:     cloud.DatabaseUser,
			DatabasePassword: databasePassword,
			DatabasePort:     port,
		}
	}

	auth := opts.Auth
	if auth == nil {
		auth = cloud.NewAuthClient(opts.GcloudPath)
	}
	m.accessToken = func(ctx context.Context) (string, error) {
		token, err := auth.AccessToken(ctx)
		if err != nil {
			return "", err
		}
		return token.AccessToken, nil
	}

	m.openBrowser = func(string) error { return nil }
	if opts.OpenBrowser {
		m.openBrowser = browser.OpenURL
	}

	return m
}

// DeployOpts carries the resolved parameters of a new or cloudify
// deployment.
type DeployOpts struct {
	// ProjectID is the Google Cloud project id.
	ProjectID string
	// ProjectName is the Google Cloud project display name.
	ProjectName string
	// UseExistingProject skips project creation and requires ProjectID to
	// exist.
	UseExistingProject bool
	// BillingAccount is the billing account resource name to link when
	// billing is not enabled yet.
	BillingAccount string
	// DatabasePassword of the default database user.
	DatabasePassword string

	// DjangoProjectName is the Django project module name.
	DjangoProjectName string
	// DjangoAppName is the Django application name. Unused when the
	// sources already exist.
	DjangoAppName string
	// SuperuserLogin, SuperuserEmail and SuperuserPassword describe the
	// Django superuser to create.
	SuperuserLogin    string
	SuperuserEmail    string
	SuperuserPassword string
	// ProjectDir is where the project sources live.
	ProjectDir string
	// GenerateInPlace fills missing files into the existing sources.
	// Without it the sources are instantiated into a scratch directory
	// first and moved into place.
	GenerateInPlace bool

	// Region hosting the project resources. Defaults to
	// skeleton.DefaultRegion.
	Region string
	// BucketName of the static content bucket. Defaults to ProjectID.
	BucketName string
	// SecretsDir is the staging directory of the secret files mounted
	// into the deployment. Defaults to a directory under os.TempDir.
	SecretsDir string
	// Services to enable. Nil selects the embedded defaults of the
	// backend.
	Services []config.Service
	// ServiceAccounts to create, grouped by deployment container. Nil
	// selects the embedded defaults.
	ServiceAccounts map[string][]config.ServiceAccount
}

func (opts DeployOpts) withDefaults() DeployOpts {
	if opts.Region == "" {
		opts.Region = skeleton.DefaultRegion
	}
	if opts.BucketName == "" {
		opts.BucketName = opts.ProjectID
	}
	if opts.SecretsDir == "" {
		opts.SecretsDir = filepath.Join(os.TempDir(),
			"dcd-secrets-"+opts.ProjectID)
	}

	return opts
}

// resourceNames are the cloud resource names derived from the Django
// project name.
type resourceNames struct {
	cluster  string
	database string
	instance string
	image    string
}

// deriveNames converts the Django project name, a Python identifier, into
// the resource names of the deployment.
func deriveNames(projectID string, djangoProjectName string) resourceNames {
	sanitized := strings.ToLower(strings.ReplaceAll(djangoProjectName, "_",
		"-"))

	return resourceNames{
		cluster:  sanitized,
		database: sanitized + "-db",
		instance: sanitized + "-instance",
		image:    fmt.Sprintf("gcr.io/%s/%s", projectID, sanitized),
	}
}

// section prints the numbered section header and appends it to the
// transcript.
func (m *Manager) section(step int, total int, name string) {
	header := fmt.Sprintf("\n**Step %d of %d: %s**\n", step, total, name)
	m.console.Println(util.Bold(header))
	if m.transcript != nil {
		m.transcript.Printf("Step %d of %d: %s", step, total, name)
	}
}

// CreateAndDeployNewProject provisions the project resources, generates the
// Django sources and deploys them. It returns the application URL.
func (m *Manager) CreateAndDeployNewProject(ctx context.Context,
	opts DeployOpts) (string, error) {
	opts = opts.withDefaults()
	names := deriveNames(opts.ProjectID, opts.DjangoProjectName)

	m.section(1, totalNewSteps, "Create GCP Project")
	if err := m.ensureProject(ctx, opts); err != nil {
		return "", err
	}

	m.section(2, totalNewSteps, "Billing Set Up")
	if err := m.ensureBilling(ctx, opts); err != nil {
		return "", err
	}

	m.section(3, totalNewSteps, "Django Source Generation")
	serviceAccounts := opts.ServiceAccounts
	if serviceAccounts == nil {
		var err error
		if serviceAccounts, err = DefaultServiceAccounts(); err != nil {
			return "", err
		}
	}
	if err := m.generateSources(opts, names, serviceAccounts); err != nil {
		return "", err
	}

	m.section(4, totalNewSteps, "Database Set Up (Take Up To 5 Minutes)")
	if err := m.setupDatabase(ctx, opts, names); err != nil {
		return "", err
	}

	m.section(5, totalNewSteps, "Enable Services")
	if err := m.enableServices(ctx, opts); err != nil {
		return "", err
	}

	m.section(6, totalNewSteps,
		"Static Content Serve Set Up (Take Up To 5 Minutes)")
	if err := m.serveStaticContent(ctx, opts); err != nil {
		return "", err
	}

	m.section(7, totalNewSteps,
		"Create Service Account Necessary For Deployment")
	secrets, err := m.generateSecrets(ctx, opts.ProjectID,
		opts.DatabasePassword, serviceAccounts)
	if err != nil {
		return "", err
	}

	appURL, err := m.deploy(ctx, opts, names, secrets)
	if err != nil {
		return "", err
	}

	if err := config.SaveProjectConfig(opts.ProjectDir, &config.ProjectOpts{
		ProjectID:         opts.ProjectID,
		DjangoProjectName: opts.DjangoProjectName,
		Backend:           m.backend,
	}); err != nil {
		return "", err
	}

	m.printSummary(opts, names, appURL)
	m.console.Println(util.Bold(color.GreenString(
		fmt.Sprintf("Your app is running at %s.", appURL))))
	if err := m.openBrowser(appURL); err != nil {
		log.Debugf("Failed to open the browser: %s.", err)
	}

	return appURL, nil
}

// UpdateOpts carries the resolved parameters of an update.
type UpdateOpts struct {
	// ProjectDir is the root of the deployed project sources.
	ProjectDir string
	// DatabasePassword of the default database user.
	DatabasePassword string
	// Region hosting the project resources. Defaults to
	// skeleton.DefaultRegion.
	Region string
}

// UpdateProject migrates the database, refreshes the served static content
// and rolls the deployment over to the current sources. It returns the
// application URL.
func (m *Manager) UpdateProject(ctx context.Context,
	opts UpdateOpts) (string, error) {
	projectConfig, err := config.GetProjectConfig(opts.ProjectDir)
	if err != nil || projectConfig.ProjectID == "" ||
		projectConfig.DjangoProjectName == "" {
		return "", InvalidConfigError{ProjectDir: opts.ProjectDir}
	}
	projectID := projectConfig.ProjectID
	djangoProjectName := projectConfig.DjangoProjectName
	names := deriveNames(projectID, djangoProjectName)

	// The configuration records which backend the project was deployed to.
	// Files written before the gae backend existed lack the attribute, those
	// deployments are on gke.
	backend := projectConfig.Backend
	if backend == "" {
		backend = BackendGKE
	}

	m.section(1, totalUpdateSteps, "Database Migration")
	if err := m.migrateDatabase(ctx, projectID, djangoProjectName,
		opts); err != nil {
		return "", err
	}

	m.section(2, totalUpdateSteps, "Static Content Update")
	if err := m.updateStaticContent(ctx, projectID, djangoProjectName,
		opts); err != nil {
		return "", err
	}

	m.section(3, totalUpdateSteps, "Update Deployment")
	deployOpts := deploy.Options{
		ProjectID:   projectID,
		ProjectDir:  opts.ProjectDir,
		ProjectName: djangoProjectName,
		ClusterName: names.cluster,
		Zone:        zoneOf(regionOrDefault(opts.Region)),
		Region:      regionOrDefault(opts.Region),
		ImageTag:    names.image,
		Verbose:     m.verbose,
	}

	var appURL string
	if backend == BackendGAE {
		appURL, err = m.gae.Deploy(deployOpts)
	} else {
		deployOpts.AccessToken, err = m.accessToken(ctx)
		if err != nil {
			return "", err
		}
		appURL, err = m.gke.UpdateApp(deployOpts)
	}
	if err != nil {
		return "", err
	}

	m.console.Println(util.Bold(color.GreenString(
		fmt.Sprintf("Your app is running at %s.", appURL))))
	if err := m.openBrowser(appURL); err != nil {
		log.Debugf("Failed to open the browser: %s.", err)
	}

	return appURL, nil
}

// ensureProject creates the project, or checks it exists when an existing
// project was requested.
func (m *Manager) ensureProject(ctx context.Context, opts DeployOpts) error {
	if opts.UseExistingProject {
		exists, err := m.clients.Projects.ProjectExists(ctx, opts.ProjectID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("project %q does not exist", opts.ProjectID)
		}
		log.Debugf("Using the existing project %s.", opts.ProjectID)
		return nil
	}

	return m.clients.Projects.CreateProject(ctx, opts.ProjectID,
		opts.ProjectName)
}

// ensureBilling links the billing account unless billing is enabled
// already.
func (m *Manager) ensureBilling(ctx context.Context, opts DeployOpts) error {
	enabled, _, err := m.clients.Billing.CheckBillingEnabled(ctx,
		opts.ProjectID)
	if err != nil {
		return err
	}
	if enabled {
		log.Debugf("Billing of %s is already enabled.", opts.ProjectID)
		return nil
	}

	return m.clients.Billing.EnableProjectBilling(ctx, opts.ProjectID,
		opts.BillingAccount)
}

// secretNames splits the service account ids into the ones mounted by the
// Cloud SQL proxy container and the ones mounted by the app container.
func secretNames(
	accounts map[string][]config.ServiceAccount) ([]string, []string) {
	var cloudSQL, django []string
	for _, account := range accounts["cloud_sql"] {
		cloudSQL = append(cloudSQL, account.ID)
	}
	for _, account := range accounts["django"] {
		django = append(django, account.ID)
	}

	return cloudSQL, django
}

// generateSources instantiates the Django sources. New projects are
// generated into a scratch directory and moved into place, existing ones
// are filled in where they are.
func (m *Manager) generateSources(opts DeployOpts, names resourceNames,
	serviceAccounts map[string][]config.ServiceAccount) error {
	cloudSQLSecrets, djangoSecrets := secretNames(serviceAccounts)
	generateOpts := skeleton.GenerateOpts{
		ProjectID:       opts.ProjectID,
		ProjectName:     opts.DjangoProjectName,
		AppName:         opts.DjangoAppName,
		ProjectDir:      opts.ProjectDir,
		BucketName:      opts.BucketName,
		DatabaseName:    names.database,
		InstanceName:    names.instance,
		Region:          opts.Region,
		ImageTag:        names.image,
		CloudSQLSecrets: cloudSQLSecrets,
		DjangoSecrets:   djangoSecrets,
	}

	if opts.GenerateInPlace {
		return m.generator.GenerateAll(generateOpts)
	}

	scratchDir, err := os.MkdirTemp("", "dcd-project-*")
	if err != nil {
		return fmt.Errorf("failed to create a scratch directory: %s", err)
	}
	defer os.RemoveAll(scratchDir)

	generateOpts.ProjectDir = scratchDir
	if err := m.generator.GenerateAll(generateOpts); err != nil {
		return err
	}

	if err := copy.Copy(scratchDir, opts.ProjectDir); err != nil {
		return fmt.Errorf("failed to move the generated sources to %q: %s",
			opts.ProjectDir, err)
	}

	return nil
}

// setupDatabase provisions the Cloud SQL instance and database, then runs
// the migrations and creates the superuser through a local SQL proxy.
func (m *Manager) setupDatabase(ctx context.Context, opts DeployOpts,
	names resourceNames) error {
	if err := m.clients.SQL.CreateInstance(ctx, opts.ProjectID,
		names.instance, opts.Region); err != nil {
		return err
	}
	if err := m.clients.SQL.CreateDatabase(ctx, opts.ProjectID,
		names.instance, names.database); err != nil {
		return err
	}
	if err := m.clients.SQL.SetUserPassword(ctx, opts.ProjectID,
		names.instance, cloud.DatabaseUser, opts.DatabasePassword); err != nil {
		return err
	}

	connectionName, err := m.clients.SQL.ConnectionName(ctx, opts.ProjectID,
		names.instance)
	if err != nil {
		return err
	}
	port, stopProxy, err := m.startProxy(connectionName)
	if err != nil {
		return err
	}
	defer stopProxy()

	manage := m.newManage(opts.ProjectDir, opts.DjangoProjectName,
		opts.DatabasePassword, port)
	if err := manage.Migrate(m.verbose); err != nil {
		return err
	}

	return manage.CreateSuperuser(opts.SuperuserLogin, opts.SuperuserEmail,
		opts.SuperuserPassword)
}

// enableServices enables the required services on the project.
func (m *Manager) enableServices(ctx context.Context,
	opts DeployOpts) error {
	services := opts.Services
	if services == nil {
		var err error
		if services, err = DefaultServices(m.backend); err != nil {
			return err
		}
	}

	serviceIDs := make([]string, 0, len(services))
	for _, service := range services {
		log.Debugf("Enabling %s.", service.Title)
		serviceIDs = append(serviceIDs, service.Name)
	}

	return m.clients.Services.EnableServices(ctx, opts.ProjectID, serviceIDs)
}

// serveStaticContent gathers the static files and uploads them to the
// public bucket the application serves them from.
func (m *Manager) serveStaticContent(ctx context.Context,
	opts DeployOpts) error {
	manage := m.newManage(opts.ProjectDir, opts.DjangoProjectName,
		opts.DatabasePassword, 0)
	if err := manage.CollectStatic(m.verbose); err != nil {
		return err
	}

	if err := m.clients.Storage.EnsureBucket(ctx, opts.ProjectID,
		opts.BucketName); err != nil {
		return err
	}
	staticDir := filepath.Join(opts.ProjectDir, staticDirName)
	if err := m.clients.Storage.UploadDirectory(ctx, opts.BucketName,
		staticDirName, staticDir); err != nil {
		return err
	}

	return m.clients.Storage.MakePublic(ctx, opts.BucketName)
}

// generateSecrets creates the service accounts with their role bindings and
// assembles the secrets of the deployment containers.
func (m *Manager) generateSecrets(ctx context.Context, projectID string,
	databasePassword string,
	accounts map[string][]config.ServiceAccount) (deploy.Secrets, error) {
	secrets := deploy.Secrets{
		"cloudsql": {
			"username": []byte(cloud.DatabaseUser),
			"password": []byte(databasePassword),
		},
	}

	for _, containerAccounts := range accounts {
		for _, account := range containerAccounts {
			email, err := m.clients.Accounts.CreateServiceAccount(ctx,
				projectID, account.ID, account.Name)
			if err != nil {
				return nil, err
			}
			if err := m.clients.Accounts.AddProjectRoles(ctx, projectID,
				email, account.Roles); err != nil {
				return nil, err
			}
			key, err := m.clients.Accounts.CreateKey(ctx, email)
			if err != nil {
				return nil, err
			}
			secrets[account.ID] = map[string][]byte{account.FileName: key}
		}
	}

	return secrets, nil
}

// deploy runs the backend deployment section and returns the application
// URL.
func (m *Manager) deploy(ctx context.Context, opts DeployOpts,
	names resourceNames, secrets deploy.Secrets) (string, error) {
	deployOpts := deploy.Options{
		ProjectID:   opts.ProjectID,
		ProjectDir:  opts.ProjectDir,
		ProjectName: opts.DjangoProjectName,
		ClusterName: names.cluster,
		Zone:        zoneOf(opts.Region),
		Region:      opts.Region,
		ImageTag:    names.image,
		Secrets:     secrets,
		SecretsDir:  opts.SecretsDir,
		Verbose:     m.verbose,
	}

	if m.backend == BackendGAE {
		if err := m.gae.StageSecrets(ctx, opts.ProjectID, secrets); err != nil {
			return "", err
		}
		m.section(8, totalNewSteps, "Deployment (Take Up To 5 Minutes)")
		return m.gae.Deploy(deployOpts)
	}

	m.section(8, totalNewSteps, "Deployment (Take Up To 20 Minutes)")
	token, err := m.accessToken(ctx)
	if err != nil {
		return "", err
	}
	deployOpts.AccessToken = token

	return m.gke.DeployNewApp(deployOpts)
}

// migrateDatabase applies the migrations of the current sources through a
// local SQL proxy.
func (m *Manager) migrateDatabase(ctx context.Context, projectID string,
	djangoProjectName string, opts UpdateOpts) error {
	names := deriveNames(projectID, djangoProjectName)
	connectionName, err := m.clients.SQL.ConnectionName(ctx, projectID,
		names.instance)
	if err != nil {
		return err
	}
	port, stopProxy, err := m.startProxy(connectionName)
	if err != nil {
		return err
	}
	defer stopProxy()

	manage := m.newManage(opts.ProjectDir, djangoProjectName,
		opts.DatabasePassword, port)

	return manage.Migrate(m.verbose)
}

// updateStaticContent re-gathers the static files and uploads them over the
// served ones.
func (m *Manager) updateStaticContent(ctx context.Context, projectID string,
	djangoProjectName string, opts UpdateOpts) error {
	manage := m.newManage(opts.ProjectDir, djangoProjectName,
		opts.DatabasePassword, 0)
	if err := manage.CollectStatic(m.verbose); err != nil {
		return err
	}

	staticDir := filepath.Join(opts.ProjectDir, staticDirName)

	return m.clients.Storage.UploadDirectory(ctx, projectID, staticDirName,
		staticDir)
}

func regionOrDefault(region string) string {
	if region == "" {
		return skeleton.DefaultRegion
	}

	return region
}

// zoneOf returns the compute zone the cluster is created in.
func zoneOf(region string) string {
	return region + "-a"
}
