package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pavelanni/mocktest/internal/exam"
	"github.com/pavelanni/mocktest/internal/i18n"
	"github.com/pavelanni/mocktest/internal/model"
)

type runnerLoadedMsg struct {
	gen int
	err error
}

type submitDoneMsg struct {
	gen       int
	resultID  int64
	automatic bool
	err       error
}

type confirmKind int

const (
	confirmNone confirmKind = iota
	confirmSubmit
	confirmLeave
)

// runnerScreen drives an exam.Runner: it owns the one-second countdown,
// forwards keys to the runner and submits when time runs out.
type runnerScreen struct {
	ctx      context.Context
	runner   *exam.Runner
	attempts Attempts
	gen      int

	confirm confirmKind
	notice  string
	errLine string
	left    bool
	// submitting is set from the moment a submit command is issued, before
	// the runner itself reaches Submitting.
	submitting bool
	jump       jumpInput
}

func newRunnerScreen(ctx context.Context, r *exam.Runner, attempts Attempts, gen int) *runnerScreen {
	return &runnerScreen{ctx: ctx, runner: r, attempts: attempts, gen: gen}
}

func (s *runnerScreen) init() tea.Cmd {
	ctx, r, gen := s.ctx, s.runner, s.gen
	return func() tea.Msg {
		return runnerLoadedMsg{gen: gen, err: r.Load(ctx)}
	}
}

func (s *runnerScreen) leave() {
	s.left = true
	s.runner.Detach()
}

func (s *runnerScreen) submit(automatic bool) tea.Cmd {
	s.submitting = true
	ctx, r, gen := s.ctx, s.runner, s.gen
	return func() tea.Msg {
		id, err := r.Submit(ctx, automatic)
		return submitDoneMsg{gen: gen, resultID: id, automatic: automatic, err: err}
	}
}

func (s *runnerScreen) update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case runnerLoadedMsg:
		if msg.gen != s.gen {
			return s, nil
		}
		if msg.err != nil {
			return s, navigate(openCatalogMsg{notice: errorNotice(s.ctx, msg.err)})
		}
		return s, tick(s.gen)

	case tickMsg:
		if msg.gen != s.gen || s.left {
			return s, nil
		}
		if s.runner.Tick() {
			s.confirm = confirmNone
			s.notice = i18n.T(s.ctx, "NoticeTimeUp")
			return s, s.submit(true)
		}
		if s.runner.State() == exam.Submitted || s.runner.Expired() {
			return s, nil
		}
		return s, tick(s.gen)

	case submitDoneMsg:
		if msg.gen != s.gen {
			return s, nil
		}
		return s.submitted(msg)

	case tea.KeyMsg:
		return s.key(msg.String())
	}
	return s, nil
}

func (s *runnerScreen) submitted(msg submitDoneMsg) (screen, tea.Cmd) {
	switch {
	case errors.Is(msg.err, exam.ErrSubmitInFlight), errors.Is(msg.err, exam.ErrAlreadySubmitted):
		return s, nil
	case msg.err != nil:
		s.submitting = false
		s.errLine = errorNotice(s.ctx, msg.err)
		s.notice = i18n.T(s.ctx, "NoticeSubmitRetry")
		return s, nil
	}
	s.runner.Detach()
	id := "NoticeSubmitted"
	if msg.automatic {
		id = "NoticeAutoSubmitted"
	}
	return s, navigate(openCatalogMsg{notice: i18n.Td(s.ctx, id, map[string]any{"Name": s.runner.TestName()})})
}

func (s *runnerScreen) key(k string) (screen, tea.Cmd) {
	if s.submitting {
		return s, nil
	}
	switch s.confirm {
	case confirmSubmit:
		switch k {
		case "y", "enter":
			s.confirm = confirmNone
			return s, s.submit(false)
		case "n", "esc":
			s.confirm = confirmNone
		}
		return s, nil
	case confirmLeave:
		switch k {
		case "y":
			s.confirm = confirmNone
			if s.runner.State() != exam.Active {
				return s, nil
			}
			s.leave()
			notice := i18n.T(s.ctx, "NoticeAbandoned")
			if err := s.attempts.Abandon(); err != nil {
				slog.Warn("failed to abandon attempt", "error", err)
				notice = errorNotice(s.ctx, err)
			}
			return s, navigate(openCatalogMsg{notice: notice})
		case "n", "esc":
			s.confirm = confirmNone
		}
		return s, nil
	}

	if s.runner.State() != exam.Active {
		return s, nil
	}
	if ok, n := s.jump.key(k); ok {
		if qid, found := paletteTarget(s.runner.Palette(), n); found {
			_ = s.runner.JumpTo(qid)
		}
		return s, nil
	}
	if k == "esc" {
		s.confirm = confirmLeave
		return s, nil
	}
	q, ok := s.runner.Current()
	if !ok {
		return s, nil
	}
	s.errLine = ""

	switch k {
	case "a", "b", "c", "d", "e", "A", "B", "C", "D", "E":
		if err := s.runner.SelectOption(q.ID, strings.ToUpper(k)); err != nil {
			s.errLine = errorNotice(s.ctx, err)
		}
	case "backspace", "delete", "x":
		_ = s.runner.ClearAnswer(q.ID)
	case "m":
		_, _ = s.runner.ToggleReview(q.ID)
	case "right", "l", "n":
		s.runner.Next()
	case "left", "h", "p":
		s.runner.Prev()
	case "tab", "shift+tab":
		s.cycleSection(k == "tab")
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		if qid, found := paletteTarget(s.runner.Palette(), int(k[0]-'0')); found {
			_ = s.runner.JumpTo(qid)
		}
	case "s":
		s.confirm = confirmSubmit
	}
	return s, nil
}

func (s *runnerScreen) cycleSection(forward bool) {
	sections := s.runner.Sections()
	if len(sections) < 2 {
		return
	}
	cur := s.runner.CurrentSection()
	for i, name := range sections {
		if name != cur {
			continue
		}
		step := 1
		if !forward {
			step = len(sections) - 1
		}
		_ = s.runner.ChangeSection(sections[(i+step)%len(sections)])
		return
	}
}

func (s *runnerScreen) view() string {
	var b strings.Builder
	r := s.runner
	fmt.Fprintf(&b, "%s  %s\n\n", titleStyle.Render(r.TestName()),
		noticeStyle.Render(i18n.Td(s.ctx, "TimeLeft", map[string]any{"Time": clock(r.Remaining())})))

	switch r.State() {
	case exam.Loading:
		b.WriteString(subtleStyle.Render(i18n.T(s.ctx, "LoadingTest")))
		return b.String()
	case exam.Submitting:
		b.WriteString(noticeStyle.Render(i18n.T(s.ctx, "Submitting")))
		b.WriteString("\n\n")
	}

	b.WriteString(tabs(r.Sections(), r.CurrentSection()))
	b.WriteString("\n\n")

	if q, ok := r.Current(); ok {
		s.question(&b, q)
	}

	b.WriteString("\n")
	b.WriteString(palette(r.Palette()))
	if prompt := s.jump.prompt(s.ctx); prompt != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(prompt))
	}
	b.WriteString("\n")
	b.WriteString(subtleStyle.Render(i18n.T(s.ctx, "PaletteLegend")))
	b.WriteString("\n")

	switch s.confirm {
	case confirmSubmit:
		sum := r.Summary()
		b.WriteString("\n")
		b.WriteString(boxStyle.Render(i18n.Td(s.ctx, "ConfirmSubmit", map[string]any{
			"Answered":   sum.Answered,
			"Unanswered": sum.Unanswered(),
			"Reviewed":   sum.Reviewed,
			"NotVisited": sum.NotVisited,
		})))
		b.WriteString("\n")
	case confirmLeave:
		b.WriteString("\n")
		b.WriteString(boxStyle.Render(i18n.T(s.ctx, "ConfirmLeave")))
		b.WriteString("\n")
	}
	if s.notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(s.notice))
		b.WriteString("\n")
	}
	if s.errLine != "" {
		b.WriteString(errorStyle.Render(s.errLine))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(subtleStyle.Render(i18n.T(s.ctx, "RunnerHelp")))
	return b.String()
}

func (s *runnerScreen) question(b *strings.Builder, q model.Question) {
	pos, total := s.runner.Position()
	header := i18n.Td(s.ctx, "QuestionN", map[string]any{"N": pos + 1, "Total": total})
	if s.runner.Reviewed(q.ID) {
		header += "  " + noticeStyle.Render(i18n.T(s.ctx, "MarkedForReview"))
	}
	b.WriteString(header)
	b.WriteString("\n\n")
	if q.PassageText != "" {
		b.WriteString(passageStyle.Render(q.PassageText))
		b.WriteString("\n\n")
	}
	if q.Images.Question != "" {
		b.WriteString(subtleStyle.Render(i18n.Td(s.ctx, "ImageRef", map[string]any{"Path": q.Images.Question})))
		b.WriteString("\n")
	}
	b.WriteString(q.Text)
	b.WriteString("\n\n")
	selected := s.runner.Answer(q.ID)
	for i, opt := range q.Options {
		letter := model.Letter(i)
		if letter == selected {
			b.WriteString(selectStyle.Render(fmt.Sprintf("(•) %s. %s", letter, opt)))
		} else {
			fmt.Fprintf(b, "( ) %s. %s", letter, opt)
		}
		b.WriteString("\n")
	}
}
