// Command unitydesk-admin holds operator tasks that do not belong behind the
// HTTP API: issuing officer tokens, running migrations and checking codes.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/BerylCAtieno/unitydesk-api/internal/db"
	"github.com/BerylCAtieno/unitydesk-api/internal/middleware"
	"github.com/BerylCAtieno/unitydesk-api/internal/models"
	"github.com/BerylCAtieno/unitydesk-api/internal/refid"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "unitydesk-admin",
		Short:         "Administrative tasks for the UnityDesk complaint service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.AddCommand(newTokenCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newRefIDCommand())
	return root
}

func newTokenCommand() *cobra.Command {
	var (
		secret string
		name   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <officer-id>",
		Short: "Issue a signed officer bearer token",
		Long: `Issues an HS256 token accepted by the /api/officer endpoints.

Example:
  unitydesk-admin token officer-42 --name "Asha Rao" --ttl 12h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("no signing secret: pass --secret or set OFFICER_JWT_SECRET")
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive, got %s", ttl)
			}
			token, err := middleware.IssueOfficerToken(secret, args[0], name, ttl)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("OFFICER_JWT_SECRET"), "HMAC signing secret")
	cmd.Flags().StringVar(&name, "name", "", "officer display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	var dbFile, migrationsPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.RunMigrations(dbFile, migrationsPath); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database %s is up to date\n", dbFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbFile, "db", envOr("DATABASE_PATH", "data/unitydesk.db"), "SQLite database file")
	cmd.Flags().StringVar(&migrationsPath, "migrations", envOr("MIGRATIONS_PATH", "internal/db/migrations"), "migrations directory")
	return cmd
}

func newRefIDCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refid",
		Short: "Generate or check complaint reference IDs",
	}

	var department string
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Print a fresh reference ID for a department",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !models.IsKnownDepartment(department) {
				fmt.Fprintf(cmd.ErrOrStderr(), "unknown department %q, using code %s\n", department, models.DefaultDepartmentCode)
			}
			fmt.Fprintln(cmd.OutOrStdout(), refid.Format(refid.Generate(department, nil)))
			return nil
		},
	}
	generate.Flags().StringVarP(&department, "department", "d", "", "department name")

	check := &cobra.Command{
		Use:   "check <code>",
		Short: "Validate a reference ID as a citizen typed it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := refid.Normalize(args[0])
			if !refid.IsValid(code) {
				return fmt.Errorf("%q is not a valid reference ID", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), refid.Format(code))
			return nil
		},
	}

	cmd.AddCommand(generate, check)
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
