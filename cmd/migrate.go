package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmehdipour/titletester/internal/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations (dev: DROP & CREATE tables)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, lg, err := bootstrap()
		if err != nil {
			return err
		}

		sqlDB, err := db.NewMySQLConnection(cmd.Context(), cfg.MySQL.DSN, db.MySQLOptsFrom(cfg.MySQL))
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sqlDB.Close()

		sqlPath := filepath.Join("migrations", "001_init.sql")
		sqlBytes, err := os.ReadFile(sqlPath)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", sqlPath, err)
		}

		// the file holds several statements; the DSN needs multiStatements=true
		if _, err := sqlDB.ExecContext(cmd.Context(), string(sqlBytes)); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}

		lg.Info("migration applied", zap.String("file", sqlPath))
		fmt.Fprintln(cmd.OutOrStdout(), ">> Migration complete ✅")
		return nil
	},
}
