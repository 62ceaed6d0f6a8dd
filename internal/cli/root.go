package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mnemos",
	Short: "Lifecycle and recovery daemon for a graph-backed agent memory store",
	Long: "Mnemos keeps an agent's Neo4j memory graph healthy: importance decay,\n" +
		"archival, consolidation of near-duplicates, integrity validation and\n" +
		"repair, and backup/restore. Single Go binary.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to mnemos.toml")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(maintainCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}
