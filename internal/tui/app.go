// Package tui is the interactive terminal client: the test catalog, the
// instructions gate, the timed test runner and the result preview.
//
// Every screen is a Bubble Tea model. Network calls run as commands and
// report back as messages, so Update never blocks.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pavelanni/mocktest/internal/catalog"
	"github.com/pavelanni/mocktest/internal/exam"
	"github.com/pavelanni/mocktest/internal/gate"
	"github.com/pavelanni/mocktest/internal/model"
	"github.com/pavelanni/mocktest/internal/review"
)

// Backend is the part of the API client the screens use.
type Backend interface {
	catalog.Source
	exam.Backend
	review.Fetcher
}

// Attempts owns the attempt marker.
type Attempts interface {
	gate.Starter
	exam.Session
	Abandon() error
}

// Options configures the application.
type Options struct {
	Backend  Backend
	Attempts Attempts
	// Explainer is optional; without it the preview offers no explanations.
	Explainer review.Explainer
	// Kind is the catalog tab shown first. Defaults to full-length tests.
	Kind model.TestKind
	// Now replaces time.Now.
	Now func() time.Time

	GateOptions   []gate.InstructionsOption
	RunnerOptions []exam.Option

	// StartTest opens the instructions of this test instead of the catalog.
	StartTest *model.MockTest
	// StartResult opens the preview of this result instead of the catalog.
	StartResult int64
	// Resume opens the runner for the stored attempt.
	Resume bool
}

// screen is one view of the application.
type screen interface {
	init() tea.Cmd
	update(msg tea.Msg) (screen, tea.Cmd)
	view() string
	// leave is called when the app switches away from the screen.
	leave()
}

// Navigation messages. Screens return them as commands; App swaps screens.
type (
	openCatalogMsg      struct{ notice string }
	openInstructionsMsg struct{ test model.MockTest }
	openRunnerMsg       struct{}
	openPreviewMsg      struct{ resultID int64 }
)

// tickMsg is one second of a countdown. gen identifies the screen that
// armed it; a screen drops ticks armed by another.
type tickMsg struct {
	gen int
	at  time.Time
}

func tick(gen int) tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg{gen: gen, at: t}
	})
}

func navigate(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// App is the root model. It routes messages to the active screen.
type App struct {
	ctx    context.Context
	opts   Options
	width  int
	height int
	gen    int
	cur    screen
}

// New builds the application. ctx carries the localizer and bounds every
// network call.
func New(ctx context.Context, opts Options) App {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Kind == "" {
		opts.Kind = model.KindFull
	}
	a := App{ctx: ctx, opts: opts}
	switch {
	case opts.StartTest != nil:
		a.cur = a.instructions(*opts.StartTest, "")
	case opts.StartResult > 0:
		a.cur = a.preview(opts.StartResult)
	case opts.Resume:
		a.cur = a.runner()
	default:
		a.cur = a.catalog("")
	}
	return a
}

// Run starts the program on the alternate screen and blocks until the user quits.
func Run(ctx context.Context, opts Options, teaOpts ...tea.ProgramOption) error {
	teaOpts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, teaOpts...)
	p := tea.NewProgram(New(ctx, opts), teaOpts...)
	final, err := p.Run()
	if app, ok := final.(App); ok && app.cur != nil {
		app.cur.leave()
	}
	if err != nil {
		return fmt.Errorf("run terminal ui: %w", err)
	}
	return nil
}

func (a App) Init() tea.Cmd {
	return a.cur.init()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.cur.leave()
			return a, tea.Quit
		}
	case openCatalogMsg:
		next := a.catalog(msg.notice)
		return a.switchTo(next)
	case openInstructionsMsg:
		next := a.instructions(msg.test, "")
		return a.switchTo(next)
	case openRunnerMsg:
		next := a.runner()
		return a.switchTo(next)
	case openPreviewMsg:
		next := a.preview(msg.resultID)
		return a.switchTo(next)
	}
	next, cmd := a.cur.update(msg)
	a.cur = next
	return a, cmd
}

func (a App) View() string {
	return frame(a.width).Render(a.cur.view())
}

func (a App) switchTo(s screen) (tea.Model, tea.Cmd) {
	a.cur.leave()
	slog.Debug("screen changed", "screen", fmt.Sprintf("%T", s), "gen", a.gen)
	a.cur = s
	return a, s.init()
}

func (a *App) nextGen() int {
	a.gen++
	return a.gen
}

func (a *App) catalog(notice string) screen {
	return newCatalogScreen(a.ctx, catalog.New(a.opts.Backend), a.opts.Attempts, a.opts.Kind, notice)
}

func (a *App) instructions(test model.MockTest, notice string) screen {
	g, err := gate.NewInstructions(test, a.opts.Attempts, a.opts.GateOptions...)
	if err != nil {
		slog.Warn("cannot open instructions", "test_id", test.ID, "error", err)
		return a.catalog(errorNotice(a.ctx, err))
	}
	return newInstructionsScreen(a.ctx, g, a.nextGen(), a.opts.Now)
}

func (a *App) runner() screen {
	opts := append([]exam.Option{exam.WithClock(a.opts.Now)}, a.opts.RunnerOptions...)
	r, err := exam.New(a.opts.Backend, a.opts.Attempts, opts...)
	if err != nil {
		slog.Warn("cannot open test", "error", err)
		return a.catalog(errorNotice(a.ctx, err))
	}
	return newRunnerScreen(a.ctx, r, a.opts.Attempts, a.nextGen())
}

func (a *App) preview(resultID int64) screen {
	return newPreviewScreen(a.ctx, a.opts.Backend, a.opts.Explainer, resultID)
}
