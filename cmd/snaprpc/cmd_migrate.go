package main

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"snaprpc/server/internal/config"
	"snaprpc/server/internal/db"
)

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("migrate needs DATABASE_URL or database.url")
			}
			database, err := db.Open(cfg.Database.URL)
			if err != nil {
				return errors.Wrap(err, "open database")
			}
			if sqlDB, err := database.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := db.Migrate(database); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema up to date")
			return nil
		},
	}
}
