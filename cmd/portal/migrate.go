package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/pharmacy_portal/internal/config"
	"github.com/Skotchmaster/pharmacy_portal/internal/db"
	"github.com/Skotchmaster/pharmacy_portal/internal/logging"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the session store tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.StoreSQLite && cfg.StoreDriver != config.StorePostgres {
				return fmt.Errorf("store driver %q has no schema", cfg.StoreDriver)
			}
			l := logging.Build(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

			ctx := cmd.Context()
			gdb, err := db.Open(ctx, cfg)
			if err != nil {
				return err
			}
			if sqlDB, err := gdb.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := db.Migrate(gdb); err != nil {
				return err
			}
			l.Info("migrate_done", "driver", cfg.StoreDriver)
			return nil
		},
	}
}
