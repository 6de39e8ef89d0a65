package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example config to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", r.configPath)
	r.writePlain("✓ Wrote %s\n", r.configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set spotify.client_id and spotify.client_secret (or SPOTX_CLIENT_ID / SPOTX_CLIENT_SECRET)\n")
	r.writePlain("2. Register %s as a redirect URI for your Spotify app\n", r.config.RedirectURL())
	r.writePlain("3. Run 'spotx auth login'\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
//
// With --status it only reports which migrations are applied; with --rollback it undoes the
// most recent one.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	path := r.config.Database.Path
	r.logger.Info("initializing database", "path", path)

	db, err := shared.NewDatabase(path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	switch {
	case cmd.Bool("rollback"):
		if err := shared.RollbackMigration(db); err != nil {
			return err
		}
		r.writePlain("✓ Rolled back the latest migration in %s\n", path)
		return nil

	case cmd.Bool("status"):
		statuses, err := shared.Migrations(db)
		if err != nil {
			return err
		}
		r.writePlainHeader(fmt.Sprintf("Migrations: %s", path))
		for _, s := range statuses {
			mark := "✗"
			if s.Applied {
				mark = "✓"
			}
			r.writePlain("%s %04d %s\n", mark, s.Version, s.Name)
		}
		return nil
	}

	r.logger.Info("running database migrations")
	applied, err := shared.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", path)
	r.writePlain("✓ Database ready at %s (%d migrations applied)\n", path, applied)
	return nil
}
