package model

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"kubegems.io/hubx/pkg/settings"
	"sigs.k8s.io/yaml"
)

func NewConfigCmd(options *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "settings management",
	}
	cmd.AddCommand(NewConfigViewCmd(options))
	cmd.AddCommand(NewConfigSetCmd(options))
	return cmd
}

func NewConfigViewCmd(options *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "print the settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := settings.NewManager(options.SettingsPath)
			current, err := manager.Load()
			if err != nil {
				return err
			}
			current.Token = maskToken(current.Token)
			content, err := yaml.Marshal(current)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(content))
			return nil
		},
	}
	return cmd
}

func NewConfigSetCmd(options *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "set <key> <value>",
		Short:     "change a setting",
		ValidArgs: settings.Keys(),
		Example: `
  hubx config set download-dir /data/models
  hubx config set theme dark
		`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("config set requires a key and a value, keys: %s", strings.Join(settings.Keys(), ", "))
			}
			manager := settings.NewManager(options.SettingsPath)
			if _, err := manager.Load(); err != nil {
				return err
			}
			return manager.Set(args[0], args[1])
		},
	}
	return cmd
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
