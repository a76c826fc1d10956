package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/erazemk/rewear/internal/config"
	"github.com/erazemk/rewear/internal/db"
	"github.com/erazemk/rewear/internal/logger"
)

// rootOptions holds global flags and the configuration they resolve to.
type rootOptions struct {
	EnvFile string
	Driver  string
	DSN     string
	LogFile string

	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "rewear",
		Short: "ReWear clothing swap marketplace",
		Long: `ReWear lets users list clothing, trade items directly and redeem
listings with points.

Configuration is read from REWEAR_* environment variables, optionally loaded
from a .env file. Flags override the environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load if present")
	cmd.PersistentFlags().StringVarP(&opts.Driver, "driver", "D", "", "database driver (sqlite|postgres)")
	cmd.PersistentFlags().StringVarP(&opts.DSN, "db", "d", "", "database path (sqlite) or DSN (postgres)")
	cmd.PersistentFlags().StringVarP(&opts.LogFile, "log", "l", "", "also write logs to this file")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newInitCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))

	return cmd
}

// load reads the dotenv file, the environment and flag overrides.
func (o *rootOptions) load(cmd *cobra.Command) error {
	if o.EnvFile != "" {
		err := config.LoadDotEnv(o.EnvFile)
		// The default file is optional; an explicit one is not.
		if err != nil && !(errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file")) {
			return fmt.Errorf("loading %s: %w", o.EnvFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.Driver != "" {
		cfg.DB.Driver = o.Driver
	}
	if o.DSN != "" {
		cfg.DB.DSN = o.DSN
	}
	if o.LogFile != "" {
		cfg.Log.File = o.LogFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	o.cfg = cfg
	return nil
}

// setupLogger builds the service logger. Records below error level go to
// stdout, the rest to stderr. If a log file is configured, every record is
// also appended to it. The returned cleanup closes the file.
func setupLogger(cfg *config.Config) (*logger.Logger, func(), error) {
	stdout := io.Writer(os.Stdout)
	stderr := io.Writer(os.Stderr)
	cleanup := func() {}

	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdout = io.MultiWriter(os.Stdout, f)
		stderr = io.MultiWriter(os.Stderr, f)
	}

	log := logger.New(logger.Options{
		Service: "rewear",
		Level:   logger.ParseLevel(cfg.Log.Level),
		Format:  cfg.Log.Format,
		Stdout:  stdout,
		Stderr:  stderr,
	})
	return log, cleanup, nil
}

func openDB(cfg *config.Config) (*db.DB, error) {
	return db.Open(cfg.DB.Driver, cfg.DB.DSN, db.Options{
		MaxOpenConns:    cfg.DB.MaxOpen,
		MaxIdleConns:    cfg.DB.MaxIdle,
		ConnMaxLifetime: cfg.DB.MaxLifetime,
	})
}
