package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/mediview/internal/api"
	"github.com/jackzampolin/mediview/internal/config"
	"github.com/jackzampolin/mediview/internal/home"
	"github.com/jackzampolin/mediview/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "mediview",
	Short: "Dashboard for a medical document OCR service",
	Long: `mediview is a dashboard for an external medical document OCR service.

It lets an operator:
  - Upload a PDF or image and read the extracted text page by page
  - Browse submitted jobs and open the result of a finished one
  - View service-wide processing statistics

Sensitive items are always shown masked. OCR, masking and job storage
happen in the service; mediview only calls it.`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.mediview/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "mediview home directory (default: ~/.mediview)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the home directory and loads configuration from
// --config, ./config.yaml or the home directory, in that order.
func loadConfig() (*home.Dir, *config.Manager, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, err
	}
	mgr, err := config.NewManagerWithOptions(config.Options{
		ConfigFile:  cfgFile,
		SearchPaths: []string{".", h.Path()},
	})
	if err != nil {
		return nil, nil, err
	}
	return h, mgr, nil
}
