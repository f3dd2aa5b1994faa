package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reflow/internal/client"
	"reflow/internal/config"
)

// commandContext lazily resolves configuration and the API client so that
// commands like "config init" work before any config file exists.
type commandContext struct {
	serverFlag *string
	configFlag *string

	cfg    *config.Config
	client *client.Client
}

func newCommandContext(serverFlag, configFlag *string) *commandContext {
	return &commandContext{serverFlag: serverFlag, configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, _, _, err := config.Load(strings.TrimSpace(*c.configFlag))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) apiClient() (*client.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	base := strings.TrimSpace(*c.serverFlag)
	if base == "" {
		cfg, err := c.ensureConfig()
		if err != nil {
			return nil, err
		}
		base = "http://" + cfg.Paths.APIBind
	}
	c.client = client.New(base)
	return c.client, nil
}

func newRootCommand() *cobra.Command {
	var serverFlag string
	var configFlag string

	ctx := newCommandContext(&serverFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:           "reflow",
		Short:         "Reflow OCR session CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Base URL of the reflow daemon API")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newSessionsCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
