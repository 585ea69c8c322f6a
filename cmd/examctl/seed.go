package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/terra-clan/assessment-engine/internal/models"
	"github.com/terra-clan/assessment-engine/internal/questionbank"
	"github.com/terra-clan/assessment-engine/internal/storage"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load questions and candidates from YAML files",
	Example: `  examctl seed --file seed/questions.yaml
  examctl seed --dir seed/`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringSlice("file", nil, "Seed file to load (repeatable)")
	seedCmd.Flags().String("dir", "", "Directory of seed files")
	seedCmd.Flags().Int("exam-size", 44, "Questions per exam, used to report shortfalls")
}

func runSeed(cmd *cobra.Command, args []string) error {
	files, _ := cmd.Flags().GetStringSlice("file")
	dir, _ := cmd.Flags().GetString("dir")
	examSize, _ := cmd.Flags().GetInt("exam-size")

	if len(files) == 0 && dir == "" {
		return fmt.Errorf("pass --file or --dir")
	}

	loader := questionbank.NewLoader()
	for _, f := range files {
		if err := loader.LoadFromFile(f); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
	}
	if dir != "" {
		if err := loader.LoadFromDir(dir); err != nil {
			return err
		}
	}

	dsn, err := resolveDSN(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := storage.MigrateFromDSN(ctx, dsn); err != nil {
		return err
	}

	repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{DSN: dsn})
	if err != nil {
		return err
	}
	defer repo.Close()

	summary, err := loader.Seed(ctx, repo)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "questions: %d, candidates: %d (skipped %d existing)\n",
		summary.Questions, summary.Candidates, summary.SkippedCandidates)

	counts, err := repo.CountByLevel(ctx)
	if err != nil {
		return err
	}
	for _, level := range models.LevelOrder {
		fmt.Fprintf(out, "  %-3s %d\n", level, counts[level])
	}

	missing := questionbank.Shortfall(counts, examSize)
	steps := make([]int, 0, len(missing))
	for step := range missing {
		steps = append(steps, int(step))
	}
	sort.Ints(steps)
	for _, step := range steps {
		fmt.Fprintf(out, "warning: step %d needs %d more questions\n", step, missing[models.Step(step)])
	}

	return nil
}
