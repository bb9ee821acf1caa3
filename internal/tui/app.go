// internal/tui/app.go
//
// Watch view for a batch run. It uses bubbletea (The Elm Architecture):
// the model holds the last snapshot read from disk, Update swaps it when a
// refresh arrives and View renders it. Nothing here talks to the runner
// directly; the persisted progress file is the only input.

package tui

import (
	"errors"
	"time"

	bar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/procedure-runner/internal/logbook"
	"github.com/kingrea/procedure-runner/internal/workflow/progress"
)

const (
	defaultRefreshInterval = time.Second
	followupLines          = 8
)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithRefreshInterval changes how often the snapshot is re-read.
func WithRefreshInterval(d time.Duration) AppOption {
	return func(a *App) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithClock injects the clock used for the footer.
func WithClock(clock func() time.Time) AppOption {
	return func(a *App) {
		if clock != nil {
			a.now = clock
		}
	}
}

type snapshotMsg struct {
	snap      progress.Snapshot
	followups []string
	total     int
	err       error
}

// App is the watch model.
type App struct {
	repo          *progress.Repository
	followupsPath string
	interval      time.Duration
	now           func() time.Time

	snapshot  progress.Snapshot
	loaded    bool
	err       error
	followups []string
	followupN int
	refreshed time.Time

	bar     bar.Model
	spinner spinner.Model

	width  int
	height int
}

// NewApp watches the snapshot at progressPath and tails the follow-up
// journal at followupsPath.
func NewApp(progressPath, followupsPath string, opts ...AppOption) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	a := &App{
		repo:          progress.NewRepository(progressPath),
		followupsPath: followupsPath,
		interval:      defaultRefreshInterval,
		now:           time.Now,
		bar:           bar.New(bar.WithDefaultGradient()),
		spinner:       sp,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.load)
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.bar.Width = max(20, min(msg.Width-10, 80))
		return a, nil

	case snapshotMsg:
		a.refreshed = a.now()
		a.followups = msg.followups
		a.followupN = msg.total
		switch {
		case msg.err == nil:
			a.snapshot = msg.snap
			a.loaded = true
			a.err = nil
		case errors.Is(msg.err, progress.ErrSnapshotNotFound):
			a.loaded = false
			a.err = nil
		default:
			a.err = msg.err
		}
		return a, a.scheduleRefresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return a, tea.Quit
		case "r":
			return a, a.load
		}
	}
	return a, nil
}

func (a *App) load() tea.Msg {
	snap, err := a.repo.Load()
	lines, total := logbook.TailFile(a.followupsPath, followupLines)
	return snapshotMsg{snap: snap, followups: lines, total: total, err: err}
}

func (a *App) scheduleRefresh() tea.Cmd {
	return tea.Tick(a.interval, func(time.Time) tea.Msg {
		return a.load()
	})
}
