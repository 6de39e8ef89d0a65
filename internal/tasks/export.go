package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alitto/pond"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotx/internal/formatter"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

const (
	defaultWorkers = 4
	maxWorkers     = 8
)

// RunRecorder persists export runs. [repositories.ExportRunRepository] implements it.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *models.ExportRun) error
	AddResult(ctx context.Context, runID string, result models.ResourceResult) error
	FinishRun(ctx context.Context, run *models.ExportRun) error
}

// ExportOptions contains configuration for a library export.
type ExportOptions struct {
	OutputDir string // Output directory (default: spotify_export_{epoch})
	Format    string // json or csv
	Workers   int    // Resources exported concurrently (default 4, max 8)
	Zip       bool   // Also write <OutputDir>.zip
	Grant     string // Grant used to authenticate, recorded with the run
}

// ExportEngine exports library resources concurrently, isolating each resource's failure.
type ExportEngine struct {
	fetcher  PageFetcher
	recorder RunRecorder
	logger   *log.Logger
	now      func() time.Time
}

// NewExportEngine creates an engine. recorder may be nil.
func NewExportEngine(fetcher PageFetcher, recorder RunRecorder, logger *log.Logger) *ExportEngine {
	return &ExportEngine{fetcher: fetcher, recorder: recorder, logger: logger, now: time.Now}
}

// ExportAll fetches and writes every resource in descs on a bounded worker pool.
//
// One resource failing does not stop the others. The returned run always describes every
// resource. The error is nil when all resources succeed; it wraps the authentication error when
// any resource failed on authentication, and [shared.ErrPartialExport] otherwise.
func (e *ExportEngine) ExportAll(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	descs []models.PageDescriptor,
	opts ExportOptions,
) (*models.ExportRun, error) {
	if e.fetcher == nil {
		return nil, fmt.Errorf("%w: page fetcher not initialized", shared.ErrInvalidInput)
	}
	if len(descs) == 0 {
		return nil, fmt.Errorf("%w: no resources selected", shared.ErrMissingArgument)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("spotify_export_%d", e.now().Unix())
	}
	if opts.Format == "" {
		opts.Format = "json"
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	opts.Workers = min(opts.Workers, maxWorkers, len(descs))

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	run := &models.ExportRun{
		ID:        shared.GenerateID(),
		Grant:     opts.Grant,
		OutputDir: opts.OutputDir,
		Format:    opts.Format,
		Status:    models.ExportRunning,
		StartedAt: e.now(),
	}
	e.record("create run", func() error { return e.recorder.CreateRun(ctx, run) })

	results := make([]models.ResourceResult, len(descs))
	errs := make([]error, len(descs))

	pool := pond.New(opts.Workers, len(descs))
	for i, desc := range descs {
		pool.Submit(func() {
			results[i], errs[i] = e.exportResource(ctx, prog, desc, opts)
		})
	}
	pool.StopAndWait()

	var authErr error
	failed := 0
	for i, res := range results {
		if errs[i] != nil {
			failed++
			e.sendProgress(prog, resourceFailedUpdate(i+1, len(descs), res.Resource, errs[i]))
			if authErr == nil && shared.IsAuthError(errs[i]) {
				authErr = errs[i]
			}
		} else {
			e.sendProgress(prog, resourceDoneUpdate(i+1, len(descs), res.Resource, res.Items))
		}
		e.record("add result", func() error { return e.recorder.AddResult(ctx, run.ID, res) })
	}
	run.Results = results

	switch {
	case failed == 0:
		run.Status = models.ExportSuccess
	case failed == len(descs):
		run.Status = models.ExportFailed
	default:
		run.Status = models.ExportPartial
	}

	finished := e.now()
	run.FinishedAt = &finished

	e.sendProgress(prog, manifestUpdate(formatter.ManifestName))
	if _, err := formatter.WriteManifest(opts.OutputDir, run); err != nil {
		e.logger.Warn("failed to write manifest", "error", err)
	}

	if opts.Zip {
		zipPath := opts.OutputDir + ".zip"
		e.sendProgress(prog, archiveUpdate(zipPath))
		if err := formatter.Archive(opts.OutputDir, zipPath); err != nil {
			e.logger.Warn("failed to archive export", "error", err)
		} else {
			run.ArchivePath = zipPath
		}
	}

	e.record("finish run", func() error { return e.recorder.FinishRun(ctx, run) })
	e.sendProgress(prog, exportDoneUpdate(len(descs)-failed, len(descs)))

	switch {
	case authErr != nil:
		return run, authErr
	case failed > 0:
		return run, fmt.Errorf("%w: %d of %d resources failed", shared.ErrPartialExport, failed, len(descs))
	default:
		return run, nil
	}
}

// exportResource fetches and writes one resource.
func (e *ExportEngine) exportResource(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	desc models.PageDescriptor,
	opts ExportOptions,
) (models.ResourceResult, error) {
	start := e.now()
	result := models.ResourceResult{Resource: desc.Resource}
	logger := shared.WithLogger(e.logger, "resource", desc.Resource)

	fail := func(err error) (models.ResourceResult, error) {
		err = &shared.ResourceError{Resource: desc.Resource, Err: err}
		result.Err = err.Error()
		result.Duration = e.now().Sub(start)
		logger.Error("export failed", "error", err)
		return result, err
	}

	e.sendProgress(prog, fetchStartedUpdate(desc.Resource))
	pager := NewPager(e.fetcher, func(resource string, fetched, total int) {
		e.sendProgress(prog, pageFetchedUpdate(resource, fetched, total))
	})

	col, err := pager.FetchAll(ctx, desc)
	if err != nil {
		return fail(err)
	}
	result.Items, result.Total, result.Collection = col.Len(), col.Total, col

	e.sendProgress(prog, writingResourceUpdate(desc.Resource, col.Len()))
	path, err := formatter.WriteCollection(opts.OutputDir, col, opts.Format)
	if err != nil {
		return fail(err)
	}
	result.FilePath = path
	result.Duration = e.now().Sub(start)

	logger.Info("exported", "items", result.Items, "file", path, "duration", result.Duration)
	return result, nil
}

// record runs fn when a recorder is configured, logging rather than failing on error.
func (e *ExportEngine) record(what string, fn func() error) {
	if e.recorder == nil {
		return
	}
	if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Warn("export history not updated", "step", what, "error", err)
	}
}

// sendProgress delivers an update without blocking the export.
func (e *ExportEngine) sendProgress(prog chan<- ProgressUpdate, update ProgressUpdate) {
	if prog == nil {
		return
	}
	select {
	case prog <- update:
	default:
	}
}
