package cmd

import (
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"

	"github.com/django-cloud/dcd/cli/cmdcontext"
	"github.com/django-cloud/dcd/cli/configure"
)

var (
	cmdCtx  cmdcontext.CmdCtx
	rootCmd *cobra.Command
)

// GetCmdCtxPtr returns a pointer to cmdCtx. The crash handler in main
// uses it to name the failed command in the report.
func GetCmdCtxPtr() *cmdcontext.CmdCtx {
	return &cmdCtx
}

// NewCmdRoot creates a new root command.
func NewCmdRoot() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dcd",
		Short: "Django Cloud CLI",
		Long: "Utility for deploying Django applications onto " +
			"Google Cloud Platform",
		Example: `$ dcd new
  $ dcd cloudify --project-path ~/mysite
  $ dcd update --project-path ~/mysite`,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&cmdCtx.Cli.Verbose, "verbose", "V",
		false, "Verbose output: debug logging and subprocess output")
	rootCmd.PersistentFlags().BoolVarP(&cmdCtx.Cli.NonInteractive,
		"non-interactive", "s", false,
		"Fail instead of asking questions on the console")

	rootCmd.AddCommand(
		NewVersionCmd(),
		NewCompletionCmd(),
		NewNewCmd(),
		NewCloudifyCmd(),
		NewUpdateCmd(),
	)

	rootCmd.InitDefaultHelpCmd()

	log.SetHandler(cli.Default)

	return rootCmd
}

// Execute root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf(err.Error())
	}
}

// InitRoot initializes global flags and loads the CLI configuration.
func InitRoot() {
	rootCmd = NewCmdRoot()
	rootCmd.ParseFlags(os.Args)

	if err := configure.Cli(&cmdCtx); err != nil {
		log.Fatalf("Failed to configure Django Cloud CLI: %s", err)
	}
}
