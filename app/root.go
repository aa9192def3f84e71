// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"

	"github.com/CNES/DOI-server-sub001/internal/config"
)

var (
	configPath string // Path to the configuration directory

	cfg config.Config
	err error
)

var rootCmd = &cobra.Command{
	Use:   "doi-server",
	Short: "doi-server is the DOI registration service for the agency's member projects",
	Long: `doi-server fronts the DataCite registration agency for the member's
projects: it authenticates users through the configured identity backend,
maps them to project roles and gates every DOI operation through an
ordered security pipeline.`,
	Args: cobra.OnlyValidArgs,
}

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the configuration directory")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
