package client

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/ragcore/internal/cli"
)

// ConfigCmd creates the config command.
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage client settings",
	}

	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configSetCmd())
	cmd.AddCommand(configResetCmd())

	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective API URL and where it came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flagURL, _ := cmd.Flags().GetString("api-url")
			source, apiURL := ResolveAPIURL(flagURL)
			path, err := GetConfigPath()
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return cli.PrintJSON(cmd.OutOrStdout(), map[string]string{
					"api_url":     apiURL,
					"source":      string(source),
					"config_path": path,
				})
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "API URL: %s (%s)\n", apiURL, source)
			fmt.Fprintf(w, "Config:  %s\n", path)
			return nil
		},
	}
}

func configSetCmd() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "set <api-url>",
		Short: "Save the API URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !IsValidAPIURL(args[0]) {
				return fmt.Errorf("invalid API URL %q: expected http(s)://host[:port]", args[0])
			}

			config, err := LoadGlobalConfig()
			if err != nil {
				return err
			}
			if config == nil {
				config = &GlobalConfig{}
			}
			config.APIURL = args[0]
			if cmd.Flags().Changed("prefix") {
				config.APIPrefix = prefix
			}

			if err := SaveGlobalConfig(config); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved API URL %s\n", config.APIURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", defaultAPIPrefix, "API route prefix")

	return cmd
}

func configResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove saved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings removed")
			return nil
		},
	}
}
