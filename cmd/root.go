package cmd

import (
	"github.com/spf13/cobra"
)

// New creates the root command with all subcommands registered.
func New() *cobra.Command {
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:   "prflow",
		Short: "Issue-to-PR delivery flow analyzer",
		Long: `A CLI tool that correlates Jira issues with the GitHub pull requests
that implement them and reports review, merge, and workflow timing metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, opts)
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	// Add report flags to the root command so `prflow` and `prflow report`
	// work identically
	addReportFlags(rootCmd, opts)

	// Register subcommands
	rootCmd.AddCommand(NewCmdReport(opts))
	rootCmd.AddCommand(NewCmdConfig())
	rootCmd.AddCommand(NewCmdVersion())
	rootCmd.AddCommand(NewCmdRateLimit())

	return rootCmd
}
