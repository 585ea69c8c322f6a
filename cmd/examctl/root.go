package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "examctl",
	Short:         "Administer the assessment engine",
	Long:          "examctl runs migrations, seeds the question bank, resets data and issues tokens for the assessment engine.",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		level := slog.LevelInfo
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("dsn", "", "PostgreSQL DSN (overrides DATABASE_DSN env var)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(tokenCmd)
}

// resolveDSN returns the database DSN from --dsn (highest priority), then
// the DATABASE_DSN env var
func resolveDSN(cmd *cobra.Command) (string, error) {
	if dsn, _ := cmd.Flags().GetString("dsn"); dsn != "" {
		return dsn, nil
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		return dsn, nil
	}
	return "", errors.New("database DSN is required: pass --dsn or set DATABASE_DSN")
}
