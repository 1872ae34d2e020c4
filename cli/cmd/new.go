package cmd

import (
	"github.com/spf13/cobra"

	"github.com/django-cloud/dcd/cli/prompt"
	"github.com/django-cloud/dcd/cli/util"
)

// newCtx contains the pre-supplied parameters of the new command.
var newCtx = &deployFlags{}

// NewNewCmd creates a new "new" command.
func NewNewCmd() *cobra.Command {
	var newCmd = &cobra.Command{
		Use:   "new",
		Short: "Create and deploy a new Django project on GKE or GAE",
		Long: `Create and deploy a new Django project on GKE or GAE.

The command creates a Google Cloud Platform project, sets up billing,
generates the Django source code, provisions a Cloud SQL database and a
static content bucket and deploys the result. Parameters that are not
passed as flags are asked interactively.`,
		Run: func(cmd *cobra.Command, args []string) {
			cmdCtx.CommandName = cmd.Name()
			err := runDeploy(&cmdCtx, newCtx, prompt.NewCommandPrompters(),
				false)
			util.HandleCmdErr(cmd, err)
		},
		Example: `
# Create and deploy a new project, answering every question interactively.

    $ dcd new

# Deploy a new Django project into an already created GCP project.

    $ dcd new --use-existing-project --project-id my-project-123

# Deploy on App Engine instead of Kubernetes Engine.

    $ dcd new --backend gae`,
	}

	registerDeployFlags(newCmd, newCtx, true)

	return newCmd
}
