package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
	"github.com/desertthunder/spotx/internal/tasks"
	"github.com/desertthunder/spotx/internal/ui"
)

// exportTUI runs the export behind the interactive progress view.
//
// Logs must already be routed away from the terminal so they do not interfere with rendering.
func (r *Runner) exportTUI(
	ctx context.Context,
	engine *tasks.ExportEngine,
	descs []models.PageDescriptor,
	opts tasks.ExportOptions,
) (*models.ExportRun, error) {
	names := make([]string, len(descs))
	for i, desc := range descs {
		names[i] = desc.Resource
	}

	model := ui.NewModel(ctx, func(ctx context.Context, prog chan<- tasks.ProgressUpdate) (*models.ExportRun, error) {
		return engine.ExportAll(ctx, prog, descs, opts)
	}, names)

	final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	if err != nil {
		return nil, fmt.Errorf("error running TUI: %w", err)
	}

	run, exportErr := final.(*ui.Model).Result()
	if run == nil && exportErr == nil {
		return nil, fmt.Errorf("%w: export cancelled", shared.ErrTimeout)
	}
	return run, exportErr
}
