// Package tui renders ingestion progress with bubbletea.
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"brdagent/internal/ingest"
)

type ingestModel struct {
	spinner spinner.Model
	repo    string
	phase   string
	done    int
	total   int
	stats   *ingest.Stats
	err     error
	quit    bool
}

// ingestDoneMsg is sent when the ingestion run completes.
type ingestDoneMsg struct {
	stats *ingest.Stats
	err   error
}

// ingestProgressMsg is sent per processed file.
type ingestProgressMsg struct {
	phase string
	done  int
	total int
}

func newIngestModel(repo string) ingestModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle
	return ingestModel{
		spinner: sp,
		repo:    repo,
		phase:   "Analyzing repository...",
	}
}

func (m ingestModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m ingestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.quit = true
			return m, tea.Quit
		}
	case ingestProgressMsg:
		m.phase = msg.phase
		m.done = msg.done
		m.total = msg.total
		return m, nil
	case ingestDoneMsg:
		m.stats = msg.stats
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ingestModel) View() string {
	s := "\n"
	s += titleStyle.Render("  Ingesting "+m.repo) + "\n\n"

	if m.err != nil {
		s += errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n"
		return s
	}
	if m.stats != nil {
		s += successStyle.Render("  ✓ Ingestion complete") + "\n\n"
		s += fmt.Sprintf("  Files:  %d planned, %d processed\n", m.stats.FilesPlanned, m.stats.FilesProcessed)
		s += fmt.Sprintf("  Chunks: %d\n", m.stats.ChunksCreated)
		if len(m.stats.Errors) > 0 {
			s += warnStyle.Render(fmt.Sprintf("  Skipped %d files with errors\n", len(m.stats.Errors)))
		}
		return s
	}

	s += fmt.Sprintf("  %s %s\n", m.spinner.View(), m.phase)
	if m.total > 0 {
		s += fmt.Sprintf("  %d / %d files\n", m.done, m.total)
	}
	s += "\n"
	s += dimStyle.Render("  Press q to abort") + "\n"
	return s
}

// RunIngest drives run with a live progress display and returns its
// result once it finishes or the user aborts.
func RunIngest(repo string, run func(onProgress ingest.ProgressFunc) (*ingest.Stats, error)) (*ingest.Stats, error) {
	p := tea.NewProgram(newIngestModel(repo))

	go func() {
		stats, err := run(func(stage string, done, total int) {
			p.Send(ingestProgressMsg{phase: stage, done: done, total: total})
		})
		p.Send(ingestDoneMsg{stats: stats, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m := final.(ingestModel)
	if m.quit {
		return m.stats, fmt.Errorf("ingestion aborted")
	}
	return m.stats, m.err
}
