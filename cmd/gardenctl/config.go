package main

import (
	"fmt"

	"github.com/danmuck/gardenctl/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write or check garden config files",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config template with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		name, _ := cmd.Flags().GetString("name")
		force, _ := cmd.Flags().GetBool("force")

		if err := config.WriteTemplate(out, name, force); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote config template for %s to %s\n", name, out)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Load a config file and report problems",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "config for garden %s is valid\n", cfg.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configValidateCmd)

	configInitCmd.Flags().StringP("out", "o", "gardenctl.toml", "output path")
	configInitCmd.Flags().String("name", config.DefaultGardenConfig().Name, "garden name to write")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
