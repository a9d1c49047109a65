// Package cmd provides the CLI commands for searchbridge.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/searchbridge/internal/config"
	"github.com/kailas-cloud/searchbridge/internal/version"
)

// globalOptions holds flags shared by every command.
type globalOptions struct {
	configPath string
	env        string
}

// NewRootCmd creates the root command for the searchbridge CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "searchbridge",
		Short: "Reconciled full-text search over Elasticsearch",
		Long: `searchbridge compiles structured search requests into Elasticsearch queries
and reconciles every hit with the authoritative record store.

Hits whose record no longer exists are dropped from results and
deleted from the index.`,
		Version:      version.Version,
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate("searchbridge version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to the YAML config (default: config/<env>.yaml)")
	cmd.PersistentFlags().StringVar(&opts.env, "env", "", "Environment name (default: $ENV or local)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newQueryCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *globalOptions) environment() string {
	if o.env != "" {
		return o.env
	}
	return config.GetEnv()
}

func (o *globalOptions) load() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load(o.environment())
	}
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
