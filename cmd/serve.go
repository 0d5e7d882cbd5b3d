package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/abhisek/lessonpath/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.LogMode == "prod" || cfg.LogMode == "production" {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, app.Options{})
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}
		defer a.Close()

		a.Log.Info("starting lessonpath", "version", version, "driver", cfg.DBDriver, "addr", cfg.HTTPAddr)
		return a.Server().Run(ctx, cfg.HTTPAddr)
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Listen address (overrides LESSONPATH_HTTP_ADDR)")
}
