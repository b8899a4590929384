package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/hirehub/hirehub-core/migrations"

	"github.com/hirehub/hirehub-core/internal/auth"
	"github.com/hirehub/hirehub-core/internal/infrastructure/config"
	"github.com/hirehub/hirehub-core/internal/infrastructure/database"
	"github.com/hirehub/hirehub-core/internal/infrastructure/logging"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}

	seed := &cobra.Command{
		Use:   "seed",
		Short: "Create the first admin account on an empty database",
		Long: `Create the first admin account when the users table is empty.

The generated password is printed once. Nothing happens when any user
already exists.`,
		Args: cobra.NoArgs,
		RunE: runUsersSeed,
	}
	seed.Flags().String("email", auth.DefaultAdminEmail, "admin email address")

	cmd.AddCommand(seed)
	return cmd
}

func configPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" { //nolint:errcheck // persistent flag always defined
		return p
	}
	if p := os.Getenv("HIREHUB_CONFIG"); p != "" {
		return p
	}
	return "configs/config.yaml"
}

func runUsersSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	email, _ := cmd.Flags().GetString("email") //nolint:errcheck // flag defined above
	if !auth.IsValidEmail(email) {
		return fmt.Errorf("invalid email %q", email)
	}

	ctx := cmd.Context()
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// The password goes to stdout, not the log.
	log := logging.Discard()
	password, err := auth.SeedAdmin(ctx, auth.NewUserRepository(db.DB), email, log.Logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if password == "" {
		fmt.Fprintln(out, "users already exist, nothing seeded")
		return nil
	}
	fmt.Fprintf(out, "created admin %s\npassword: %s\n", email, password)
	return nil
}
