package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/lessonpath/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dsn, err := cfg.DSN()
		if err != nil {
			return err
		}
		// Open migrates.
		st, err := store.Open(cmd.Context(), cfg.DBDriver, dsn)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		defer st.Close()

		fmt.Printf("Schema up to date (%s).\n", st.Dialect())
		return nil
	},
}
