// Package commands implements the cdpfglclient CLI: watch (run the backup
// pipeline against configured directories), backup (archive one path), list
// (query stored file records), and restore (reconstruct a file from the
// server). PersistentFlags are synced into a shared flag struct,
// SilenceUsage/SilenceErrors are set so command errors print once, and each
// subcommand lives in its own sibling file.
package commands

import (
	"github.com/spf13/cobra"
)

// Version information injected at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Flags holds the global flags every subcommand reads.
var Flags struct {
	ConfigFile string
	ServerURL  string
	Host       string
	Output     string
}

var rootCmd = &cobra.Command{
	Use:   "cdpfglclient",
	Short: "Continuous data protection backup client",
	Long: `cdpfglclient drives the client half of the backup pipeline: watching
configured directories, chunking and deduplicating file content, and
talking to a cdpfglserver dispatcher over its REST API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		Flags.ConfigFile, _ = cmd.Flags().GetString("config")
		Flags.ServerURL, _ = cmd.Flags().GetString("server")
		Flags.Host, _ = cmd.Flags().GetString("host")
		Flags.Output, _ = cmd.Flags().GetString("output")
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/cdpfgl/config.yaml)")
	rootCmd.PersistentFlags().String("server", "", "Server base URL (overrides config)")
	rootCmd.PersistentFlags().String("host", "", "Host identity to archive/restore under (overrides config)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
