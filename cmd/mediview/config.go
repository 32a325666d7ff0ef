package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/mediview/internal/api"
	"github.com/jackzampolin/mediview/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage mediview configuration",
}

var configForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file to the home directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		if h.ConfigExists() && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", h.ConfigPath())
		}
		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", h.ConfigPath())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and
MEDIVIEW_* environment overrides are applied. A literal API key is
redacted; ${ENV_VAR} references are shown as written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, mgr, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := *mgr.Get()
		if key := cfg.Service.APIKey; key != "" && !strings.HasPrefix(key, "${") {
			cfg.Service.APIKey = "***"
		}
		return api.Output(cfg)
	},
}

var configDescribeCmd = &cobra.Command{
	Use:   "describe [key]",
	Short: "Describe configuration keys and their defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			desc, err := config.Describe(args[0])
			if err != nil {
				return err
			}
			entry := config.GetDefault(args[0])
			fmt.Printf("%s (default: %v)\n  %s\n", entry.Key, entry.Value, desc)
			return nil
		}
		for _, e := range config.DefaultEntries() {
			fmt.Printf("%-30s %-34v %s\n", e.Key, e.Value, e.Description)
		}
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configDescribeCmd)
	rootCmd.AddCommand(configCmd)
}
