package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drive runs cmd and feeds each produced message back into the model until no command remains.
func drive(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		require.Less(t, i, 100, "model never settled")
		_, cmd = m.Update(cmd())
	}
}

func TestModel(t *testing.T) {
	t.Run("runs export to result view", func(t *testing.T) {
		run := &models.ExportRun{
			OutputDir: "export",
			Status:    models.ExportPartial,
			Results: []models.ResourceResult{
				{Resource: "tracks", Items: 120, FilePath: "export/tracks.json"},
				{Resource: "artists", Err: "artists: rate limited"},
			},
		}
		export := func(_ context.Context, prog chan<- tasks.ProgressUpdate) (*models.ExportRun, error) {
			prog <- tasks.ProgressUpdate{Phase: tasks.FetchResource, Resource: "tracks", Step: 50, Total: 120}
			prog <- tasks.ProgressUpdate{Phase: tasks.ResourceDone, Resource: "tracks"}
			prog <- tasks.ProgressUpdate{Phase: tasks.ResourceFailed, Resource: "artists", Err: errors.New("rate limited")}
			return run, errors.New("export completed with failures")
		}

		m := NewModel(context.Background(), export, []string{"tracks", "artists"})
		drive(t, m, m.startExport())

		assert.Equal(t, ResultView, m.view)
		got, err := m.Result()
		assert.Same(t, run, got)
		assert.Error(t, err)
		assert.Equal(t, rowDone, m.index["tracks"].state)
		assert.Equal(t, rowFailed, m.index["artists"].state)

		view := m.View()
		assert.Contains(t, view, "1 failed resources")
		assert.Contains(t, view, "export/tracks.json")
		assert.Contains(t, view, "rate limited")
	})

	t.Run("export error without run", func(t *testing.T) {
		export := func(context.Context, chan<- tasks.ProgressUpdate) (*models.ExportRun, error) {
			return nil, errors.New("not authenticated")
		}

		m := NewModel(context.Background(), export, []string{"tracks"})
		drive(t, m, m.startExport())

		assert.Equal(t, ResultView, m.view)
		assert.Contains(t, m.View(), "not authenticated")
	})

	t.Run("progress rendering", func(t *testing.T) {
		m := NewModel(context.Background(), nil, []string{"tracks", "albums", "shows"})

		m.apply(tasks.ProgressUpdate{Phase: tasks.FetchResource, Resource: "tracks", Step: 50, Total: 120})
		m.apply(tasks.ProgressUpdate{Phase: tasks.WriteResource, Resource: "albums", Step: 7, Total: 7})
		m.apply(tasks.ProgressUpdate{Phase: tasks.FetchResource, Resource: "unknown"})

		view := m.View()
		assert.Contains(t, view, "50/120 items")
		assert.Contains(t, view, "writing 7 items")
		assert.Contains(t, view, "waiting")
		assert.Equal(t, 0, m.finished())

		m.apply(tasks.ProgressUpdate{Phase: tasks.ResourceDone, Resource: "albums"})
		m.apply(tasks.ProgressUpdate{Phase: tasks.WriteManifest, Message: "Writing manifest export_manifest.json"})
		assert.Equal(t, 1, m.finished())
		assert.Contains(t, m.View(), "Writing manifest")
	})

	t.Run("details toggle shows errors", func(t *testing.T) {
		m := NewModel(context.Background(), nil, []string{"artists"})
		m.apply(tasks.ProgressUpdate{Phase: tasks.ResourceFailed, Resource: "artists", Err: errors.New("pagination made no progress")})
		assert.False(t, strings.Contains(m.View(), "pagination made no progress"))

		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
		assert.Contains(t, m.View(), "pagination made no progress")
	})

	t.Run("quit cancels export context", func(t *testing.T) {
		m := NewModel(context.Background(), nil, nil)
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
		require.NotNil(t, cmd)
		assert.ErrorIs(t, m.ctx.Err(), context.Canceled)
	})
}
