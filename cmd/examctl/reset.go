package main

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/spf13/cobra"
)

// Tables in dependency order
var resetTables = []string{"sessions", "questions", "candidates"}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all candidates, questions and sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to reset without --yes")
		}

		dsn, err := resolveDSN(cmd)
		if err != nil {
			return err
		}

		keep, _ := cmd.Flags().GetBool("keep-questions")
		tables := resetTables
		if keep {
			tables = []string{"sessions", "candidates"}
		}

		if err := truncate(cmd, dsn, tables); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "reset: %s\n", strings.Join(tables, ", "))
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("yes", false, "Confirm destructive reset")
	resetCmd.Flags().Bool("keep-questions", false, "Keep the question bank")
}

func truncate(cmd *cobra.Command, dsn string, tables []string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	quoted := make([]string, len(tables))
	for i, t := range tables {
		quoted[i] = pq.QuoteIdentifier(t)
	}

	query := "TRUNCATE " + strings.Join(quoted, ", ") + " RESTART IDENTITY CASCADE"
	if _, err := db.ExecContext(cmd.Context(), query); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}
