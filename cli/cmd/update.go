package cmd

import (
	"github.com/spf13/cobra"

	"github.com/django-cloud/dcd/cli/util"
)

// updateCtx contains the pre-supplied parameters of the update command.
var updateCtx = &deployFlags{}

// NewUpdateCmd creates a new update command.
func NewUpdateCmd() *cobra.Command {
	var updateCmd = &cobra.Command{
		Use:   "update",
		Short: "Update a deployed Django project",
		Long: `Update a deployed Django project.

The command migrates the database, refreshes the served static content
and rolls the deployment over to the current sources. The project must
have been deployed with "dcd new" or "dcd cloudify" before.`,
		Run: func(cmd *cobra.Command, args []string) {
			cmdCtx.CommandName = cmd.Name()
			err := runUpdate(&cmdCtx, updateCtx)
			util.HandleCmdErr(cmd, err)
		},
		Example: `
# Redeploy the Django project stored in ~/mysite.

    $ dcd update --project-path ~/mysite`,
	}

	updateCmd.Flags().StringVar(&updateCtx.projectPath, "project-path", "",
		"Location of the Django project code")
	updateCmd.Flags().StringVar(&updateCtx.databasePassword, "database-password", "",
		"Password for the default database user")
	updateCmd.Flags().StringVar(&updateCtx.credentials, "credentials", "",
		"Path of the credentials file to use for deployment. Test only, do not use")

	return updateCmd
}
