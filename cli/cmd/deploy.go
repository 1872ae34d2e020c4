package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/django-cloud/dcd/cli/cloud"
	"github.com/django-cloud/dcd/cli/cmdcontext"
	"github.com/django-cloud/dcd/cli/config"
	"github.com/django-cloud/dcd/cli/configure"
	"github.com/django-cloud/dcd/cli/console"
	"github.com/django-cloud/dcd/cli/dcdlog"
	"github.com/django-cloud/dcd/cli/prompt"
	"github.com/django-cloud/dcd/cli/util"
	"github.com/django-cloud/dcd/cli/workflow"
)

// deployFlags contains the pre-supplied parameters of the new, cloudify
// and update commands. An empty value is resolved by the console dialogue.
type deployFlags struct {
	projectName       string
	projectID         string
	projectPath       string
	billingAccount    string
	databasePassword  string
	djangoProjectName string
	djangoAppName     string
	superuserLogin    string
	superuserPassword string
	superuserEmail    string
	credentials       string

	useExistingProject  bool
	backend             string
	bucketName          string
	servicesPath        string
	serviceAccountsPath string
	assumeYes           bool
}

// registerDeployFlags registers the parameter flags shared by the new and
// cloudify commands. full additionally registers the source generation
// flags that only apply to a project created from scratch.
func registerDeployFlags(cmd *cobra.Command, flags *deployFlags, full bool) {
	cmd.Flags().StringVar(&flags.projectName, "project-name", "",
		"Name of the Google Cloud Platform project. Can be changed")
	cmd.Flags().StringVar(&flags.projectID, "project-id", "",
		"Unique id to use when creating the Google Cloud Platform project. Can not be changed")
	cmd.Flags().StringVar(&flags.projectPath, "project-path", "",
		"Location where the Django project code should be stored")
	cmd.Flags().StringVar(&flags.billingAccount, "billing-account-name", "",
		"Resource name of the billing account to link to the project")
	cmd.Flags().StringVar(&flags.databasePassword, "database-password", "",
		"Password for the default database user")
	cmd.Flags().StringVar(&flags.superuserLogin, "django-superuser-login", "",
		`Login name of the Django superuser e.g. "admin"`)
	cmd.Flags().StringVar(&flags.superuserPassword, "django-superuser-password", "",
		"Password of the Django superuser")
	cmd.Flags().StringVar(&flags.superuserEmail, "django-superuser-email", "",
		"E-mail address of the Django superuser")
	cmd.Flags().BoolVar(&flags.useExistingProject, "use-existing-project", false,
		"Deploy to an already existing Google Cloud Platform project")
	cmd.Flags().StringVar(&flags.backend, "backend", workflow.BackendGKE,
		fmt.Sprintf("Deployment backend: %s | %s",
			workflow.BackendGKE, workflow.BackendGAE))
	cmd.Flags().BoolVarP(&flags.assumeYes, "assume-yes", "y", false,
		"Answer confirmation questions with yes")
	cmd.Flags().StringVar(&flags.credentials, "credentials", "",
		"Path of the credentials file to use for deployment. Test only, do not use")
	cmd.Flags().StringVar(&flags.bucketName, "bucket-name", "",
		"Name of the GCS bucket to serve static content. Test only, do not use")

	if full {
		cmd.Flags().StringVar(&flags.djangoProjectName, "django-project-name", "",
			`Name of the Django project e.g. "mysite"`)
		cmd.Flags().StringVar(&flags.djangoAppName, "django-app-name", "",
			`Name of the Django app e.g. "poll"`)
		cmd.Flags().StringVar(&flags.servicesPath, "services", "",
			"Path of a file with services to enable. Test only, do not use")
		cmd.Flags().StringVar(&flags.serviceAccountsPath, "service-accounts", "",
			"Path of a file with service accounts to create. Test only, do not use")
	}
}

// params returns the pre-supplied parameter values by name. Parameters
// that were not passed on the command line are left out, so the dialogue
// asks for them.
func (flags *deployFlags) params() map[string]string {
	supplied := map[string]string{
		prompt.ParamCredentials:         flags.credentials,
		prompt.ParamProjectID:           flags.projectID,
		prompt.ParamProjectName:         flags.projectName,
		prompt.ParamBillingAccount:      flags.billingAccount,
		prompt.ParamDatabasePassword:    flags.databasePassword,
		prompt.ParamDjangoDirectoryPath: flags.projectPath,
		prompt.ParamDjangoProjectName:   flags.djangoProjectName,
		prompt.ParamDjangoAppName:       flags.djangoAppName,
		prompt.ParamSuperuserLogin:      flags.superuserLogin,
		prompt.ParamSuperuserPassword:   flags.superuserPassword,
		prompt.ParamSuperuserEmail:      flags.superuserEmail,
	}

	params := map[string]string{}
	for name, value := range supplied {
		if value != "" {
			params[name] = value
		}
	}

	return params
}

// requiredBinaries returns the external tools a deployment to the backend
// invokes directly.
func requiredBinaries(backend string) []string {
	binaries := []string{"gcloud", "python3", "cloud_sql_proxy"}
	if backend == workflow.BackendGKE {
		binaries = append(binaries, "kubectl")
	}

	return binaries
}

// checkDeployBinaries checks the external tools of the backend. The image
// build talks to the docker daemon through the SDK, so the docker binary
// itself is only recommended.
func checkDeployBinaries(backend string) error {
	if backend == workflow.BackendGKE {
		util.CheckRecommendedBinaries("docker")
	}

	return util.CheckRequiredBinaries(requiredBinaries(backend)...)
}

// logSdkVersion records the detected Cloud SDK version in the debug log.
func logSdkVersion(cmdCtx *cmdcontext.CmdCtx) {
	sdkVersion, err := cmdCtx.Cli.Gcloud.GetVersion()
	if err != nil {
		log.Debugf("Failed to detect the Google Cloud SDK version: %s.", err)
		return
	}

	log.Debugf("Using Google Cloud SDK %s.", sdkVersion)
}

// newTranscript opens the deploy transcript log. A transcript failure is
// not fatal, the deployment continues without it.
func newTranscript(cmdCtx *cmdcontext.CmdCtx) *dcdlog.Logger {
	logDir, err := configure.LogDir(cmdCtx.Cli.ConfigHome)
	if err != nil {
		log.Warnf("Failed to create the log directory: %s.", err)
		return nil
	}

	return dcdlog.NewLogger(dcdlog.DefaultOpts(logDir))
}

// runDeploy resolves the command parameters and runs the provisioning and
// deployment workflow. generateInPlace keeps the existing sources and only
// fills in the missing deployment files.
func runDeploy(cmdCtx *cmdcontext.CmdCtx, flags *deployFlags,
	prompters []prompt.Prompter, generateInPlace bool,
) error {
	if flags.backend != workflow.BackendGKE &&
		flags.backend != workflow.BackendGAE {
		return util.NewArgError(fmt.Sprintf(
			"backend %q is not supported. Available: %s | %s",
			flags.backend, workflow.BackendGKE, workflow.BackendGAE))
	}
	if err := checkDeployBinaries(flags.backend); err != nil {
		return err
	}
	logSdkVersion(cmdCtx)

	ctx := context.Background()
	cons := console.Default()
	auth := cloud.NewAuthClient(cmdCtx.Cli.Gcloud.Executable)

	st := prompt.NewState(cons, auth)
	st.UseExistingProject = flags.useExistingProject
	st.Backend = flags.backend
	st.NonInteractive = cmdCtx.Cli.NonInteractive
	st.AssumeYes = flags.assumeYes
	for name, value := range flags.params() {
		st.Params[name] = value
	}

	if err := prompt.Resolve(ctx, st, prompters); err != nil {
		return err
	}

	projectDir, err := util.ExpandUser(
		st.Params[prompt.ParamDjangoDirectoryPath])
	if err != nil {
		return err
	}

	djangoProjectName := st.Params[prompt.ParamDjangoProjectName]
	if generateInPlace {
		// The sources already exist, the project name is theirs to dictate.
		if djangoProjectName, err = workflow.DiscoverProjectName(
			projectDir); err != nil {
			return err
		}
	}

	opts := workflow.DeployOpts{
		ProjectID:          st.Params[prompt.ParamProjectID],
		ProjectName:        st.Params[prompt.ParamProjectName],
		UseExistingProject: flags.useExistingProject,
		BillingAccount:     st.Params[prompt.ParamBillingAccount],
		DatabasePassword:   st.Params[prompt.ParamDatabasePassword],
		DjangoProjectName:  djangoProjectName,
		DjangoAppName:      st.Params[prompt.ParamDjangoAppName],
		SuperuserLogin:     st.Params[prompt.ParamSuperuserLogin],
		SuperuserEmail:     st.Params[prompt.ParamSuperuserEmail],
		SuperuserPassword:  st.Params[prompt.ParamSuperuserPassword],
		ProjectDir:         projectDir,
		GenerateInPlace:    generateInPlace,
		BucketName:         flags.bucketName,
	}

	if flags.servicesPath != "" {
		content, err := os.ReadFile(flags.servicesPath)
		if err != nil {
			return fmt.Errorf("failed to read the services file: %s", err)
		}
		if opts.Services, err = config.LoadServices(content); err != nil {
			return err
		}
	}
	if flags.serviceAccountsPath != "" {
		content, err := os.ReadFile(flags.serviceAccountsPath)
		if err != nil {
			return fmt.Errorf("failed to read the service accounts file: %s",
				err)
		}
		if opts.ServiceAccounts, err = config.LoadServiceAccounts(
			content); err != nil {
			return err
		}
	}

	if secretsDir, err := configure.SecretsStagingDir(cmdCtx.Cli.ConfigHome,
		opts.ProjectID); err == nil {
		opts.SecretsDir = secretsDir
	} else {
		log.Debugf("Failed to create the secrets directory: %s.", err)
	}

	clients, err := workflow.NewClients(ctx, st.ClientOptions...)
	if err != nil {
		return err
	}

	manager := workflow.NewManager(workflow.ManagerOpts{
		Console:     cons,
		Transcript:  newTranscript(cmdCtx),
		Clients:     clients,
		Auth:        auth,
		Backend:     flags.backend,
		Verbose:     cmdCtx.Cli.Verbose,
		OpenBrowser: true,
		GcloudPath:  cmdCtx.Cli.Gcloud.Executable,
	})

	_, err = manager.CreateAndDeployNewProject(ctx, opts)
	return err
}

// runUpdate resolves the update parameters and rolls the deployment over
// to the current sources.
func runUpdate(cmdCtx *cmdcontext.CmdCtx, flags *deployFlags) error {
	ctx := context.Background()
	cons := console.Default()
	auth := cloud.NewAuthClient(cmdCtx.Cli.Gcloud.Executable)

	st := prompt.NewState(cons, auth)
	st.NonInteractive = cmdCtx.Cli.NonInteractive
	for name, value := range flags.params() {
		st.Params[name] = value
	}

	if err := prompt.Resolve(ctx, st,
		prompt.UpdateCommandPrompters()); err != nil {
		return err
	}

	projectDir, err := util.ExpandUser(
		st.Params[prompt.ParamDjangoDirectoryPath])
	if err != nil {
		return err
	}

	// The binaries to check depend on the backend the project was deployed
	// to. An unreadable configuration is reported by the workflow itself.
	backend := workflow.BackendGKE
	if projectConfig, err := config.GetProjectConfig(projectDir); err == nil &&
		projectConfig.Backend != "" {
		backend = projectConfig.Backend
	}
	if err := checkDeployBinaries(backend); err != nil {
		return err
	}
	logSdkVersion(cmdCtx)

	clients, err := workflow.NewClients(ctx, st.ClientOptions...)
	if err != nil {
		return err
	}

	manager := workflow.NewManager(workflow.ManagerOpts{
		Console:     cons,
		Transcript:  newTranscript(cmdCtx),
		Clients:     clients,
		Auth:        auth,
		Backend:     backend,
		Verbose:     cmdCtx.Cli.Verbose,
		OpenBrowser: true,
		GcloudPath:  cmdCtx.Cli.Gcloud.Executable,
	})

	_, err = manager.UpdateProject(ctx, workflow.UpdateOpts{
		ProjectDir:       projectDir,
		DatabasePassword: st.Params[prompt.ParamDatabasePassword],
	})
	return err
}
