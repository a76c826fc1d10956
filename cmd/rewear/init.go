package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erazemk/rewear/internal/db"
)

func newInitCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and the first admin account",
		Long: `Create the database if needed, apply all migrations and create the
first admin account (REWEAR_ADMIN_EMAIL). The generated password is printed
once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			ctx := cmd.Context()

			database, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := db.Migrate(ctx, database); err != nil {
				return err
			}

			password, err := createAdmin(ctx, database, cfg.AdminEmail, cfg.InitialPoints)
			if errors.Is(err, errAlreadyInitialized) {
				return fmt.Errorf("%w; use the admin API to manage accounts", err)
			}
			if err != nil {
				return fmt.Errorf("creating admin: %w", err)
			}

			printInitResult(cmd.OutOrStdout(), cfg.DB.DSN, cfg.AdminEmail, password)
			return nil
		},
	}
}
