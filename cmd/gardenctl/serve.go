package main

import (
	"github.com/danmuck/gardenctl/internal/config"
	"github.com/danmuck/gardenctl/internal/garden"
	"github.com/danmuck/gardenctl/internal/logging"
	"github.com/danmuck/gardenctl/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a garden from a TOML config",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")

		logging.ConfigureRuntime()
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		observability.InitLogger("gardenctl", cfg.Name)

		svc, err := garden.NewService(cfg)
		if err != nil {
			return err
		}
		log.Info().
			Str("config", path).
			Str("listen_addr", cfg.HTTP.ListenAddr).
			Str("database", cfg.Database.DSN).
			Bool("event_bus", cfg.Events.RedisAddr != "").
			Msg("garden_configured")
		return svc.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("config", "c", "gardenctl.toml", "path to the garden config file")
}
