package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
	"github.com/urfave/cli/v3"
)

// History lists recorded export runs, newest first, or authentication events with --auth.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if err := r.openDatabase(true); err != nil {
		return err
	}

	limit := cmd.Int("limit")
	if limit <= 0 {
		return fmt.Errorf("%w: --limit must be positive", shared.ErrInvalidFlag)
	}

	if cmd.Bool("auth") {
		events, err := r.events.ListAuthEvents(ctx, limit)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(events, true)
		}
		r.printAuthEvents(events)
		return nil
	}

	runs, err := r.runs.List(ctx, limit)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}

	r.writePlainHeader("Export history")
	if len(runs) == 0 {
		r.writePlain("No exports recorded yet.\n")
		return nil
	}
	for _, run := range runs {
		r.writePlain("%s  %-8s %-7s %d/%d  %s\n",
			run.StartedAt.Local().Format(time.DateTime), run.Status, run.Format,
			len(run.Results)-len(run.Failed()), len(run.Results), run.ID)
	}
	return nil
}

// HistoryShow prints one export run with every resource outcome.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("%w: run id", shared.ErrMissingArgument)
	}
	if err := r.openDatabase(true); err != nil {
		return err
	}

	run, err := r.runs.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("export run %s: %w", id, err)
	}
	if cmd.Bool("json") {
		return r.writeJSON(run, true)
	}

	r.printRunSummary(run)
	r.writePlain("Started:  %s\n", run.StartedAt.Local().Format(time.RFC1123))
	if run.FinishedAt != nil {
		r.writePlain("Finished: %s\n", run.FinishedAt.Local().Format(time.RFC1123))
	}
	return nil
}

// HistoryDelete removes a run from the history. Exported files are left in place.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("%w: run id", shared.ErrMissingArgument)
	}
	if err := r.openDatabase(true); err != nil {
		return err
	}

	if err := r.runs.Delete(ctx, id); err != nil {
		return fmt.Errorf("export run %s: %w", id, err)
	}
	return r.writePlain("✓ Deleted export run %s\n", id)
}

func (r *Runner) printAuthEvents(events []models.AuthEvent) {
	r.writePlainHeader("Authentication events")
	if len(events) == 0 {
		r.writePlain("No authentication events recorded yet.\n")
		return
	}
	for _, e := range events {
		line := fmt.Sprintf("%s  %-11s %-9s %-8s", e.CreatedAt.Local().Format(time.DateTime), e.Kind, e.Grant, e.Outcome)
		if e.Detail != "" {
			line += "  " + e.Detail
		}
		r.writePlain("%s\n", line)
	}
}
