package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pavelanni/mocktest/internal/catalog"
	"github.com/pavelanni/mocktest/internal/i18n"
	"github.com/pavelanni/mocktest/internal/model"
)

type catalogLoadedMsg struct {
	kind    model.TestKind
	entries []catalog.Entry
	active  *model.Attempt
	err     error
}

// catalogScreen lists the tests of one kind with the latest result of each.
// It reloads every time it is opened.
type catalogScreen struct {
	ctx      context.Context
	cat      *catalog.Catalog
	attempts Attempts

	kind    model.TestKind
	entries []catalog.Entry
	cursor  int
	loading bool
	active  *model.Attempt
	notice  string
	errLine string
}

func newCatalogScreen(ctx context.Context, cat *catalog.Catalog, attempts Attempts, kind model.TestKind, notice string) *catalogScreen {
	return &catalogScreen{ctx: ctx, cat: cat, attempts: attempts, kind: kind, notice: notice}
}

func (s *catalogScreen) init() tea.Cmd {
	return s.load()
}

func (s *catalogScreen) load() tea.Cmd {
	s.loading = true
	s.errLine = ""
	ctx, cat, attempts, kind := s.ctx, s.cat, s.attempts, s.kind
	return func() tea.Msg {
		entries, err := cat.Load(ctx, kind)
		msg := catalogLoadedMsg{kind: kind, entries: entries, err: err}
		if attempts != nil {
			if a, aerr := attempts.Current(); aerr == nil {
				msg.active = &a
			}
		}
		return msg
	}
}

func (s *catalogScreen) leave() {}

func (s *catalogScreen) update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case catalogLoadedMsg:
		if msg.kind != s.kind {
			return s, nil
		}
		s.loading = false
		s.entries = msg.entries
		s.active = msg.active
		s.errLine = errorNotice(s.ctx, msg.err)
		if s.cursor >= len(s.entries) {
			s.cursor = max(len(s.entries)-1, 0)
		}
	case tea.KeyMsg:
		return s.key(msg.String())
	}
	return s, nil
}

func (s *catalogScreen) key(k string) (screen, tea.Cmd) {
	switch k {
	case "q":
		return s, tea.Quit
	case "tab", "shift+tab":
		if s.kind == model.KindFull {
			s.kind = model.KindSubject
		} else {
			s.kind = model.KindFull
		}
		s.entries, s.cursor, s.notice = nil, 0, ""
		return s, s.load()
	case "r":
		s.notice = ""
		return s, s.load()
	case "up", "k":
		if s.cursor > 0 {
			s.cursor--
		}
	case "down", "j":
		if s.cursor+1 < len(s.entries) {
			s.cursor++
		}
	case "enter":
		if s.cursor >= len(s.entries) {
			return s, nil
		}
		e := s.entries[s.cursor]
		if e.Action() == catalog.ActionPreview {
			return s, navigate(openPreviewMsg{resultID: e.Result.ID})
		}
		return s, navigate(openInstructionsMsg{test: e.Test})
	case "c":
		if s.active != nil {
			return s, navigate(openRunnerMsg{})
		}
	case "x":
		if s.active == nil {
			return s, nil
		}
		if err := s.attempts.Abandon(); err != nil {
			s.errLine = errorNotice(s.ctx, err)
			return s, nil
		}
		s.active = nil
		s.notice = i18n.T(s.ctx, "NoticeAbandoned")
	}
	return s, nil
}

func (s *catalogScreen) view() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(i18n.T(s.ctx, "CatalogTitle")))
	b.WriteString("\n\n")
	current := i18n.T(s.ctx, "TabFull")
	if s.kind == model.KindSubject {
		current = i18n.T(s.ctx, "TabSubject")
	}
	b.WriteString(tabs([]string{i18n.T(s.ctx, "TabFull"), i18n.T(s.ctx, "TabSubject")}, current))
	b.WriteString("\n\n")

	if s.active != nil {
		b.WriteString(noticeStyle.Render(i18n.Td(s.ctx, "ResumeBanner", map[string]any{"Name": s.active.TestName})))
		b.WriteString("\n\n")
	}
	if s.notice != "" {
		b.WriteString(noticeStyle.Render(s.notice))
		b.WriteString("\n\n")
	}
	if s.errLine != "" {
		b.WriteString(errorStyle.Render(s.errLine))
		b.WriteString("\n\n")
	}

	switch {
	case s.loading && len(s.entries) == 0:
		b.WriteString(subtleStyle.Render(i18n.T(s.ctx, "Loading")))
		b.WriteString("\n")
	case len(s.entries) == 0:
		b.WriteString(subtleStyle.Render(i18n.T(s.ctx, "CatalogEmpty")))
		b.WriteString("\n")
	}
	for i, e := range s.entries {
		b.WriteString(s.row(i, e))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(subtleStyle.Render(i18n.T(s.ctx, "CatalogHelp")))
	return b.String()
}

func (s *catalogScreen) row(i int, e catalog.Entry) string {
	name := e.Test.Name
	if e.Test.Subject != "" && s.kind == model.KindSubject {
		name = fmt.Sprintf("%s (%s)", name, e.Test.Subject)
	}
	meta := i18n.Td(s.ctx, "TestMeta", map[string]any{
		"Minutes":   int(e.Test.Duration().Minutes()),
		"Questions": e.Test.TotalQuestions,
	})
	status := i18n.T(s.ctx, "NotAttempted")
	if e.Result != nil {
		status = i18n.Td(s.ctx, "ResultLine", map[string]any{
			"Score":      formatNum(e.Result.Score),
			"Percentage": formatNum(float64(e.Result.Percentage)),
		})
	}
	line := fmt.Sprintf("%s  %s  %s", name, subtleStyle.Render(meta), status)
	if i == s.cursor {
		return selectStyle.Render("> ") + selectStyle.Render(line)
	}
	return "  " + line
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
