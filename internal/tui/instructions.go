package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pavelanni/mocktest/internal/gate"
	"github.com/pavelanni/mocktest/internal/i18n"
)

// instructionsScreen shows the rules and holds the user for the minimum
// wait. The wait ticks only while the screen is shown.
type instructionsScreen struct {
	ctx    context.Context
	gate   *gate.Instructions
	gen    int
	now    func() time.Time
	notice string
	left   bool
}

func newInstructionsScreen(ctx context.Context, g *gate.Instructions, gen int, now func() time.Time) *instructionsScreen {
	return &instructionsScreen{ctx: ctx, gate: g, gen: gen, now: now}
}

func (s *instructionsScreen) init() tea.Cmd {
	if s.gate.WaitRemaining() == 0 {
		return nil
	}
	return tick(s.gen)
}

func (s *instructionsScreen) leave() { s.left = true }

func (s *instructionsScreen) update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if msg.gen != s.gen || s.left {
			return s, nil
		}
		s.gate.Tick()
		if s.gate.WaitRemaining() > 0 {
			return s, tick(s.gen)
		}
	case tea.KeyMsg:
		switch msg.String() {
		case " ", "space":
			s.gate.Acknowledge(!s.gate.Acknowledged())
			s.notice = ""
		case "esc", "q":
			return s, navigate(openCatalogMsg{})
		case "enter":
			return s.start()
		}
	}
	return s, nil
}

func (s *instructionsScreen) start() (screen, tea.Cmd) {
	if !s.gate.CanStart() {
		if !s.gate.Acknowledged() {
			s.notice = i18n.T(s.ctx, "NoticeAcknowledgeFirst")
		} else {
			s.notice = i18n.Td(s.ctx, "NoticeWaitPending", map[string]any{"Seconds": int(s.gate.WaitRemaining() / time.Second)})
		}
		return s, nil
	}
	if _, err := s.gate.Start(s.now()); err != nil {
		slog.Error("failed to start test", "test_id", s.gate.Test().ID, "error", err)
		s.notice = errorNotice(s.ctx, err)
		return s, nil
	}
	return s, navigate(openRunnerMsg{})
}

func (s *instructionsScreen) view() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(s.gate.Test().Name))
	b.WriteString("\n")
	b.WriteString(subtleStyle.Render(i18n.T(s.ctx, "InstructionsTitle")))
	b.WriteString("\n\n")

	data := s.gate.RuleData()
	for i, id := range gate.RuleIDs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, i18n.Td(s.ctx, id, data))
	}
	b.WriteString("\n")

	box := "[ ]"
	if s.gate.Acknowledged() {
		box = "[x]"
	}
	fmt.Fprintf(&b, "%s %s\n\n", box, i18n.T(s.ctx, "Acknowledge"))

	if wait := s.gate.WaitRemaining(); wait > 0 {
		b.WriteString(subtleStyle.Render(i18n.Td(s.ctx, "StartIn", map[string]any{"Time": clock(wait)})))
	} else if s.gate.CanStart() {
		b.WriteString(selectStyle.Render(i18n.T(s.ctx, "StartReady")))
	} else {
		b.WriteString(subtleStyle.Render(i18n.T(s.ctx, "NoticeAcknowledgeFirst")))
	}
	b.WriteString("\n")
	if s.notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(s.notice))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(subtleStyle.Render(i18n.T(s.ctx, "InstructionsHelp")))
	return b.String()
}
