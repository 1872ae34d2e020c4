package cmd

import (
	"github.com/spf13/cobra"

	"github.com/django-cloud/dcd/cli/prompt"
	"github.com/django-cloud/dcd/cli/util"
)

// cloudifyCtx contains the pre-supplied parameters of the cloudify command.
var cloudifyCtx = &deployFlags{}

// NewCloudifyCmd creates a new cloudify command.
func NewCloudifyCmd() *cobra.Command {
	var cloudifyCmd = &cobra.Command{
		Use:   "cloudify",
		Short: "Deploy an existing Django project on GKE or GAE",
		Long: `Deploy an existing Django project on GKE or GAE.

The command provisions the same cloud resources as "dcd new", but keeps
the Django sources found at the project path and only fills in the
missing deployment files. The Django project name is read from the
manage.py of the existing sources.`,
		Run: func(cmd *cobra.Command, args []string) {
			cmdCtx.CommandName = cmd.Name()
			err := runDeploy(&cmdCtx, cloudifyCtx,
				prompt.CloudifyCommandPrompters(), true)
			util.HandleCmdErr(cmd, err)
		},
		Example: `
# Deploy the Django project stored in ~/mysite.

    $ dcd cloudify --project-path ~/mysite`,
	}

	registerDeployFlags(cloudifyCmd, cloudifyCtx, false)

	return cloudifyCmd
}
