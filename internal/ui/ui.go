package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ExportView ViewState = iota
	ResultView
)

// ExportFunc runs an export, reporting on prog. The model closes prog after ExportFunc returns.
type ExportFunc func(ctx context.Context, prog chan<- tasks.ProgressUpdate) (*models.ExportRun, error)

type rowState int

const (
	rowPending rowState = iota
	rowFetching
	rowWriting
	rowDone
	rowFailed
)

// resourceRow is the display state of one resource.
type resourceRow struct {
	name    string
	state   rowState
	fetched int
	total   int
	err     error
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	export       ExportFunc
	rows         []*resourceRow
	index        map[string]*resourceRow
	status       string
	width        int
	spinner      spinner.Model
	bar          progress.Model
	progressChan chan tasks.ProgressUpdate
	doneChan     chan exportOutcome
	run          *models.ExportRun
	err          error
	details      bool
	help         help.Model
	keys         keyMap
}

// NewModel creates a TUI model that runs export for the named resources when started.
func NewModel(ctx context.Context, export ExportFunc, resources []string) *Model {
	ctx, cancel := context.WithCancel(ctx)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.ok

	m := &Model{
		ctx:     ctx,
		cancel:  cancel,
		view:    ExportView,
		export:  export,
		index:   make(map[string]*resourceRow, len(resources)),
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
	for _, name := range resources {
		row := &resourceRow{name: name}
		m.rows = append(m.rows, row)
		m.index[name] = row
	}
	return m
}

// Result returns the finished run and its error. Both are nil until the export completes.
func (m *Model) Result() (*models.ExportRun, error) {
	return m.run, m.err
}

// Init starts the export and the spinner.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startExport())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-20))
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		if m.view != ExportView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.apply(msg.data.(tasks.ProgressUpdate))
			return m, m.waitForProgress()
		case MsgExportComplete:
			outcome := msg.data.(exportOutcome)
			m.run, m.err = outcome.run, outcome.err
			m.view = ResultView
			m.progressChan, m.doneChan = nil, nil
			return m, nil
		}
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ExportView:
		return m.renderExport()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.details):
		m.details = !m.details
	}
	return m, nil
}

// apply folds one progress update into the resource rows.
func (m *Model) apply(update tasks.ProgressUpdate) {
	row := m.index[update.Resource]

	switch update.Phase {
	case tasks.FetchResource:
		if row != nil {
			row.state = rowFetching
			if update.Total > 0 || update.Step > 0 {
				row.fetched, row.total = update.Step, update.Total
			}
		}
	case tasks.WriteResource:
		if row != nil {
			row.state = rowWriting
			row.fetched = update.Step
		}
	case tasks.ResourceDone:
		if row != nil {
			row.state = rowDone
		}
	case tasks.ResourceFailed:
		if row != nil {
			row.state = rowFailed
			row.err = update.Err
		}
	case tasks.WriteManifest, tasks.ArchiveExport, tasks.ExportDone:
		m.status = update.Message
	}
}

// finished counts rows that reached a terminal state.
func (m *Model) finished() int {
	n := 0
	for _, row := range m.rows {
		if row.state == rowDone || row.state == rowFailed {
			n++
		}
	}
	return n
}

func (m *Model) startExport() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 64)
	m.doneChan = make(chan exportOutcome, 1)

	prog, done := m.progressChan, m.doneChan
	go func() {
		run, err := m.export(m.ctx, prog)
		close(prog)
		done <- exportOutcome{run: run, err: err}
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	prog, done := m.progressChan, m.doneChan
	return func() tea.Msg {
		if prog == nil {
			return exportCompleteMsg(m.run, m.err)
		}

		update, ok := <-prog
		if !ok {
			outcome := <-done
			return exportCompleteMsg(outcome.run, outcome.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderExport() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Exporting Spotify Library"))
	b.WriteString("\n")

	for _, row := range m.rows {
		b.WriteString(m.renderRow(row))
		b.WriteString("\n")
	}

	percent := 0.0
	if len(m.rows) > 0 {
		percent = float64(m.finished()) / float64(len(m.rows))
	}
	fmt.Fprintf(&b, "\n%s %d/%d\n", m.bar.ViewAs(percent), m.finished(), len(m.rows))

	if m.status != "" {
		fmt.Fprintf(&b, "%s\n", styles.help.Render(m.status))
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderRow(row *resourceRow) string {
	name := styles.name.Render(row.name)

	switch row.state {
	case rowPending:
		return fmt.Sprintf("  %s %s", name, styles.help.Render("waiting"))
	case rowFetching:
		count := "starting"
		if row.total > 0 {
			count = fmt.Sprintf("%d/%d items", row.fetched, row.total)
		}
		return fmt.Sprintf("%s %s %s", m.spinner.View(), name, count)
	case rowWriting:
		return fmt.Sprintf("%s %s writing %d items", m.spinner.View(), name, row.fetched)
	case rowDone:
		return fmt.Sprintf("%s %s %d items", styles.ok.Render("✓"), name, row.fetched)
	case rowFailed:
		line := fmt.Sprintf("%s %s %s", styles.err.Render("✗"), name, styles.err.Render("failed"))
		if m.details && row.err != nil {
			line += "\n    " + styles.warn.Render(row.err.Error())
		}
		return line
	default:
		return ""
	}
}

func (m *Model) renderResult() string {
	var b strings.Builder

	switch {
	case m.run == nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("Export failed: %v", m.err)))
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
		return b.String()
	case m.run.Status == models.ExportSuccess:
		b.WriteString(styles.ok.Render("✓ Export Complete!"))
	case m.run.Status == models.ExportPartial:
		b.WriteString(styles.warn.Render(fmt.Sprintf("Export finished with %d failed resources", len(m.run.Failed()))))
	default:
		b.WriteString(styles.err.Render("Export failed"))
	}
	b.WriteString("\n\n")

	for _, res := range m.run.Results {
		name := styles.name.Render(res.Resource)
		if res.OK() {
			fmt.Fprintf(&b, "%s %s %d items → %s\n", styles.ok.Render("✓"), name, res.Items, res.FilePath)
			continue
		}
		fmt.Fprintf(&b, "%s %s %s\n", styles.err.Render("✗"), name, styles.warn.Render(res.Err))
	}

	fmt.Fprintf(&b, "\nOutput: %s\n", m.run.OutputDir)
	if m.run.ArchivePath != "" {
		fmt.Fprintf(&b, "Archive: %s\n", m.run.ArchivePath)
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}
