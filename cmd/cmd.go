// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/spotx/internal/services"
	"github.com/urfave/cli/v3"
)

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify session",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize in the browser, discarding any current session",
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Show whether a persisted session can be resumed",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Delete the persisted refresh token",
				Action: r.AuthLogout,
			},
		},
	}
}

// exportCommand exports library resources
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export library resources to JSON or CSV files",
		Description: "Resources: " + strings.Join(services.Resources(), ", ") + ".\n" +
			"Exit status is 2 when authentication fails and 3 when some resources fail.",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "resource",
				Aliases: []string{"r"},
				Usage:   "Resource to export (repeatable, default: export.resources)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory (default: export.output_dir or spotify_export_<epoch>)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: json or csv",
			},
			&cli.BoolFlag{
				Name:  "zip",
				Usage: "Also write <output>.zip",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Resources exported concurrently (max 8)",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show live progress in an interactive view",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the export summary as JSON",
			},
		},
		Action: r.Export,
	}
}

// historyCommand lists recorded export runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List previous export runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of runs to show",
				Value:   10,
			},
			&cli.BoolFlag{
				Name:  "auth",
				Usage: "List authentication events instead of export runs",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show one export run and its resources",
				ArgsUsage: "<run-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:      "delete",
				Usage:     "Remove an export run from the history",
				ArgsUsage: "<run-id>",
				Action:    r.HistoryDelete,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "status",
						Usage: "List migrations and whether they are applied",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}
