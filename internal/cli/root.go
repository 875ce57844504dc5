package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "reactions",
	Short: "Bounded emoji reaction store",
	Long:  "Reactions tracks per-message emoji reactions under hard memory bounds, with popularity-weighted eviction and a circuit breaker in front of persistence.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./reactions.yaml or ~/.reactions/reactions.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(statsCmd)
}
