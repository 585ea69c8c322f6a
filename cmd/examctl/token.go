package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/assessment-engine/internal/auth"
	"github.com/terra-clan/assessment-engine/internal/models"
	"github.com/terra-clan/assessment-engine/internal/storage"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue access and refresh tokens for a candidate",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().String("email", "", "Candidate email")
	tokenCmd.Flags().String("name", "", "Name used when --create makes a new candidate")
	tokenCmd.Flags().String("role", string(models.RoleStudent), "Role used when --create makes a new candidate")
	tokenCmd.Flags().Bool("create", false, "Create the candidate if it does not exist")
	tokenCmd.Flags().Duration("ttl", 2*time.Hour, "Access token lifetime")
	_ = tokenCmd.MarkFlagRequired("email")
}

func runToken(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	create, _ := cmd.Flags().GetBool("create")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	roleName, _ := cmd.Flags().GetString("role")
	role, err := models.ParseRole(roleName)
	if err != nil {
		return err
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return errors.New("JWT_SECRET is required")
	}

	dsn, err := resolveDSN(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{DSN: dsn})
	if err != nil {
		return err
	}
	defer repo.Close()

	candidate, err := repo.FindCandidateByEmail(ctx, email)
	if err != nil {
		return err
	}
	if candidate == nil {
		if !create {
			return fmt.Errorf("candidate %s not found (use --create)", email)
		}

		name, _ := cmd.Flags().GetString("name")
		candidate = &models.Candidate{Name: name, Email: email, Role: role, IsVerified: true}
		if err := repo.CreateCandidate(ctx, candidate); err != nil {
			return err
		}
	}

	issuer, err := auth.NewJWTIssuer(auth.JWTConfig{
		Secret:    secret,
		Issuer:    os.Getenv("JWT_ISSUER"),
		AccessTTL: ttl,
	})
	if err != nil {
		return err
	}

	access, err := issuer.IssueAccess(candidate)
	if err != nil {
		return err
	}
	refresh, err := issuer.IssueRefresh(candidate)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "candidate: %s (%s, %s)\n", candidate.ID, candidate.Email, candidate.Status)
	fmt.Fprintf(out, "access:    %s\n", access)
	fmt.Fprintf(out, "refresh:   %s\n", refresh)
	return nil
}
