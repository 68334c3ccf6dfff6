package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emilianohg/cyclelog/internal/config"
	"github.com/emilianohg/cyclelog/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations to the local database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if cfg.Store.Backend == config.BackendFirestore {
			fmt.Fprintln(out, "The firestore backend has no schema to migrate.")
			return nil
		}

		path, err := cfg.DatabasePath()
		if err != nil {
			return err
		}
		database, err := db.Open(path)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		status, err := db.GetMigrationStatus(database)
		if err != nil {
			return err
		}
		if status.Dirty {
			return fmt.Errorf("database is dirty at version %d, fix it by hand", status.CurrentVersion)
		}
		if !status.Pending {
			fmt.Fprintf(out, "Database is up to date (version %d).\n", status.CurrentVersion)
			return nil
		}

		if check, _ := cmd.Flags().GetBool("check"); check {
			fmt.Fprintf(out, "Pending migrations: version %d to %d.\n", status.CurrentVersion, status.LatestVersion)
			return nil
		}
		if err := db.RunMigrations(database); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		fmt.Fprintf(out, "Migrated %s from version %d to %d.\n", path, status.CurrentVersion, status.LatestVersion)
		return nil
	},
}

func init() {
	migrateCmd.Flags().Bool("check", false, "Only report pending migrations")
}
