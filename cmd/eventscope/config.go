package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/IshaanNene/eventscope/internal/config"
)

const redacted = "<redacted>"

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("eventscope %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	var showSecrets bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := applyCLIOverrides(cfg); err != nil {
				return err
			}
			if !showSecrets {
				redact(cfg)
			}

			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}

	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print tokens and connection strings unmasked")
	return cmd
}

// redact masks credentials in place.
func redact(cfg *config.Config) {
	for name, pc := range cfg.Platforms {
		if pc.Token != "" {
			pc.Token = redacted
			cfg.Platforms[name] = pc
		}
	}
	if cfg.Export.Mongo.URI != "" {
		cfg.Export.Mongo.URI = redacted
	}
	for i := range cfg.Proxy.URLs {
		cfg.Proxy.URLs[i] = redacted
	}
}
