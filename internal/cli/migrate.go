package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		db, dbPath, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		version, err := db.SchemaVersion()
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d\n", dbPath, version)
		return nil
	},
}
