package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terra-clan/assessment-engine/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := resolveDSN(cmd)
		if err != nil {
			return err
		}

		if err := storage.MigrateFromDSN(cmd.Context(), dsn); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}
