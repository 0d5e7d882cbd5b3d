package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/lessonpath/internal/app"
	"github.com/abhisek/lessonpath/internal/config"
	"github.com/abhisek/lessonpath/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "lessonpath",
	Short:         "Lesson progression and spaced-repetition service",
	Long:          "lessonpath serves lessons and problems, judges submissions, unlocks lessons on a correctness streak and schedules reviews with Leitner boxes.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Database DSN or SQLite path (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().String("driver", "", "Database driver: sqlite or postgres (overrides LESSONPATH_DB_DRIVER)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional dotenv file loaded before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(advanceCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the dotenv file and environment, then applies flag
// overrides. Flags win over environment variables.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return cfg, err
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.DatabaseURL = v
	}
	if v, _ := cmd.Flags().GetString("driver"); v != "" {
		cfg.DBDriver = v
	}
	if f := cmd.Flags().Lookup("addr"); f != nil && f.Changed {
		cfg.HTTPAddr = f.Value.String()
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openApp builds the app for one-shot commands. CLI commands log only
// warnings and errors so their output stays readable.
func openApp(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logger.New("production")
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, app.Options{Log: log})
}
