package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/desertthunder/spotx/internal/formatter"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/services"
	"github.com/desertthunder/spotx/internal/shared"
	"github.com/desertthunder/spotx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Export fetches the selected library resources and writes them to the output directory.
//
// Authentication happens once up front; a failure there aborts with an authentication error.
// After that each resource succeeds or fails on its own and the summary lists every outcome.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	descs, opts, err := r.exportPlan(cmd)
	if err != nil {
		return err
	}

	useTUI := cmd.Bool("tui")
	if useTUI {
		r.configureLogger(true)
	}

	r.openDatabase(false)
	if err := r.initAuth(); err != nil {
		return err
	}
	opts.Grant = r.config.Spotify.Grant

	if _, err := r.manager.Acquire(ctx); err != nil {
		return err
	}

	var recorder tasks.RunRecorder
	if r.runs != nil {
		recorder = r.runs
	}
	engine := tasks.NewExportEngine(r.spotify, recorder, shared.WithLogger(r.logger, "component", "export"))

	r.logger.Info("starting export", "resources", len(descs), "format", opts.Format, "workers", opts.Workers)

	var run *models.ExportRun
	if useTUI {
		run, err = r.exportTUI(ctx, engine, descs, opts)
	} else {
		run, err = r.exportPlain(ctx, engine, descs, opts)
	}
	if run == nil {
		return err
	}

	if cmd.Bool("json") {
		if writeErr := r.writeJSON(run, true); writeErr != nil {
			return writeErr
		}
		return err
	}
	if !useTUI {
		r.printRunSummary(run)
	}
	return err
}

// exportPlan resolves flags over config into descriptors and engine options.
func (r *Runner) exportPlan(cmd *cli.Command) ([]models.PageDescriptor, tasks.ExportOptions, error) {
	cfg := r.config.Export

	resources := splitList(cmd.StringSlice("resource"))
	if len(resources) == 0 || slices.Contains(resources, "all") {
		resources = cfg.Resources
	}
	if len(resources) == 0 {
		resources = services.Resources()
	}

	descs, err := services.DescribeAll(dedupe(resources), cfg.PageSize)
	if err != nil {
		return nil, tasks.ExportOptions{}, fmt.Errorf("%w: --resource: %v", shared.ErrInvalidFlag, err)
	}

	opts := tasks.ExportOptions{
		OutputDir: cfg.OutputDir,
		Format:    cfg.Format,
		Workers:   cfg.Workers,
		Zip:       cfg.Zip || cmd.Bool("zip"),
	}
	if out := cmd.String("output"); out != "" {
		opts.OutputDir = out
	}
	if opts.OutputDir != "" {
		opts.OutputDir = shared.ExpandPath(opts.OutputDir)
	}
	if format := cmd.String("format"); format != "" {
		opts.Format = strings.ToLower(format)
	}
	if !slices.Contains(formatter.Formats, opts.Format) {
		return nil, tasks.ExportOptions{}, fmt.Errorf("%w: --format must be one of %s, got %q",
			shared.ErrInvalidFlag, strings.Join(formatter.Formats, ", "), opts.Format)
	}
	if workers := cmd.Int("workers"); workers != 0 {
		if workers < 0 {
			return nil, tasks.ExportOptions{}, fmt.Errorf("%w: --workers must be positive", shared.ErrInvalidFlag)
		}
		opts.Workers = workers
	}

	return descs, opts, nil
}

// exportPlain runs the export printing progress lines to the output.
func (r *Runner) exportPlain(
	ctx context.Context,
	engine *tasks.ExportEngine,
	descs []models.PageDescriptor,
	opts tasks.ExportOptions,
) (*models.ExportRun, error) {
	prog := make(chan tasks.ProgressUpdate, 64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range prog {
			switch update.Phase {
			case tasks.FetchResource:
				if update.Step == 0 {
					r.writePlain("%s\n", update.Message)
				} else {
					r.logger.Debug(update.Message)
				}
			case tasks.ResourceDone, tasks.ResourceFailed:
			default:
				r.writePlain("%s\n", update.Message)
			}
		}
	}()

	run, err := engine.ExportAll(ctx, prog, descs, opts)
	close(prog)
	wg.Wait()
	return run, err
}

func (r *Runner) printRunSummary(run *models.ExportRun) {
	r.writePlainln("")
	r.writePlainHeader(fmt.Sprintf("Export %s", run.Status))

	for _, res := range run.Results {
		if res.OK() {
			r.writePlain("✓ %s: %d items → %s\n", res.Resource, res.Items, res.FilePath)
			continue
		}
		r.writePlain("✗ %s\n", res.Err)
	}

	r.writePlain("\nOutput:   %s\n", run.OutputDir)
	if run.ArchivePath != "" {
		r.writePlain("Archive:  %s\n", run.ArchivePath)
	}
	r.writePlain("Run ID:   %s\n", run.ID)
}

// splitList flattens repeated and comma separated flag values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(strings.ToLower(part)); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
