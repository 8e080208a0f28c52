package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pavelanni/mocktest/internal/i18n"
	"github.com/pavelanni/mocktest/internal/model"
	"github.com/pavelanni/mocktest/internal/review"
)

type previewLoadedMsg struct {
	resultID int64
	preview  *review.Preview
	err      error
}

type explainedMsg struct {
	qid  model.QuestionID
	text string
	err  error
}

// previewScreen walks through a graded result.
type previewScreen struct {
	ctx       context.Context
	fetcher   review.Fetcher
	explainer review.Explainer
	resultID  int64

	p          *review.Preview
	notice     string
	explaining bool
	jump       jumpInput
}

func newPreviewScreen(ctx context.Context, f review.Fetcher, ex review.Explainer, resultID int64) *previewScreen {
	return &previewScreen{ctx: ctx, fetcher: f, explainer: ex, resultID: resultID}
}

func (s *previewScreen) init() tea.Cmd {
	ctx, f, id := s.ctx, s.fetcher, s.resultID
	return func() tea.Msg {
		p, err := review.Load(ctx, f, id)
		return previewLoadedMsg{resultID: id, preview: p, err: err}
	}
}

func (s *previewScreen) leave() {}

func (s *previewScreen) update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case previewLoadedMsg:
		if msg.resultID != s.resultID {
			return s, nil
		}
		if msg.err != nil {
			return s, navigate(openCatalogMsg{notice: errorNotice(s.ctx, msg.err)})
		}
		s.p = msg.preview
	case explainedMsg:
		s.explaining = false
		if msg.err != nil {
			s.notice = errorNotice(s.ctx, msg.err)
			return s, nil
		}
		s.p.SetExplanation(msg.qid, msg.text)
		s.notice = ""
	case tea.KeyMsg:
		return s.key(msg.String())
	}
	return s, nil
}

func (s *previewScreen) key(k string) (screen, tea.Cmd) {
	if s.p != nil && !s.p.Empty() {
		if ok, n := s.jump.key(k); ok {
			if qid, found := paletteTarget(s.p.Palette(), n); found {
				_ = s.p.JumpTo(qid)
			}
			return s, nil
		}
	}
	switch k {
	case "esc", "q":
		return s, navigate(openCatalogMsg{})
	}
	if s.p == nil || s.p.Empty() {
		return s, nil
	}
	s.notice = ""
	switch k {
	case "right", "l", "n":
		s.setNotice(s.p.Next())
	case "left", "h", "p":
		s.setNotice(s.p.Prev())
	case "tab", "shift+tab":
		s.cycleSection(k == "tab")
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		if qid, found := paletteTarget(s.p.Palette(), int(k[0]-'0')); found {
			_ = s.p.JumpTo(qid)
		}
	case "e":
		return s, s.explain()
	}
	return s, nil
}

func (s *previewScreen) setNotice(n review.Notice) {
	switch n {
	case review.NoticeEndOfReview:
		s.notice = i18n.T(s.ctx, "NoticeEndOfReview")
	case review.NoticeStartOfReview:
		s.notice = i18n.T(s.ctx, "NoticeStartOfReview")
	}
}

func (s *previewScreen) cycleSection(forward bool) {
	sections := s.p.Sections()
	if len(sections) < 2 {
		return
	}
	cur := s.p.CurrentSection()
	for i, name := range sections {
		if name != cur {
			continue
		}
		step := 1
		if !forward {
			step = len(sections) - 1
		}
		_ = s.p.ChangeSection(sections[(i+step)%len(sections)])
		return
	}
}

func (s *previewScreen) explain() tea.Cmd {
	q, ok := s.p.Current()
	if !ok || s.explainer == nil || s.explaining || strings.TrimSpace(q.Explanation) != "" {
		return nil
	}
	s.explaining = true
	s.notice = i18n.T(s.ctx, "Explaining")
	ctx, ex := s.ctx, s.explainer
	return func() tea.Msg {
		text, err := ex.Explain(ctx, q)
		return explainedMsg{qid: q.ID, text: strings.TrimSpace(text), err: err}
	}
}

func (s *previewScreen) view() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(i18n.T(s.ctx, "PreviewTitle")))
	b.WriteString("\n\n")
	if s.p == nil {
		b.WriteString(subtleStyle.Render(i18n.T(s.ctx, "Loading")))
		return b.String()
	}

	s.stats(&b)
	if s.p.Empty() {
		b.WriteString(subtleStyle.Render(i18n.T(s.ctx, "NoResultData")))
		b.WriteString("\n\n")
		b.WriteString(subtleStyle.Render(i18n.T(s.ctx, "PreviewHelp")))
		return b.String()
	}

	b.WriteString(tabs(s.p.Sections(), s.p.CurrentSection()))
	b.WriteString("\n\n")
	if q, ok := s.p.Current(); ok {
		s.question(&b, q)
	}
	b.WriteString("\n")
	b.WriteString(palette(s.p.Palette()))
	if prompt := s.jump.prompt(s.ctx); prompt != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(prompt))
	}
	b.WriteString("\n")
	if s.notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(s.notice))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	help := i18n.T(s.ctx, "PreviewHelp")
	if s.explainer != nil {
		help += "  " + i18n.T(s.ctx, "ExplainHelp")
	}
	b.WriteString(subtleStyle.Render(help))
	return b.String()
}

func (s *previewScreen) stats(b *strings.Builder) {
	st := s.p.Stats()
	lines := []string{
		i18n.Td(s.ctx, "ScoreLine", map[string]any{
			"Score":      formatNum(st.Score),
			"Percentage": formatNum(st.Percentage),
			"Verdict":    i18n.T(s.ctx, st.Verdict.MessageID()),
		}),
		i18n.Td(s.ctx, "CountsLine", map[string]any{
			"Correct":     st.Correct,
			"Wrong":       st.Wrong,
			"Unattempted": st.Unattempted,
		}),
	}
	for _, sec := range st.Sections {
		lines = append(lines, i18n.Td(s.ctx, "SectionLine", map[string]any{
			"Name":    sec.SectionName,
			"Marks":   formatNum(sec.Marks),
			"Correct": sec.Correct,
			"Wrong":   sec.Wrong,
		}))
	}
	if a := st.Analytics; a != nil {
		lines = append(lines, i18n.Td(s.ctx, "AnalyticsLine", map[string]any{
			"Rank":       a.Rank,
			"Total":      a.TotalUsers,
			"Percentile": formatNum(a.Percentile),
			"Topper":     formatNum(a.TopperScore),
			"Band":       a.PerformanceBand,
		}))
	}
	b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
	b.WriteString("\n\n")
}

func (s *previewScreen) question(b *strings.Builder, q model.ReviewQuestion) {
	pos, total := s.p.Position()
	b.WriteString(i18n.Td(s.ctx, "QuestionN", map[string]any{"N": pos + 1, "Total": total}))
	if !q.Attempted() {
		b.WriteString("  " + subtleStyle.Render(i18n.T(s.ctx, "Unattempted")))
	}
	b.WriteString("\n\n")
	if passage := s.p.Passage(); passage != "" {
		b.WriteString(passageStyle.Render(passage))
		b.WriteString("\n\n")
	}
	b.WriteString(q.Text)
	b.WriteString("\n\n")
	for i, opt := range q.Options {
		mark := s.p.OptionMark(i)
		prefix := "   "
		switch mark {
		case review.MarkCorrect:
			prefix = " ✓ "
		case review.MarkWrong:
			prefix = " ✗ "
		}
		b.WriteString(markStyles[mark].Render(fmt.Sprintf("%s%s. %s", prefix, model.Letter(i), opt)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	explanation := strings.TrimSpace(q.Explanation)
	if explanation == "" {
		explanation = i18n.T(s.ctx, "NoExplanation")
	}
	b.WriteString(subtleStyle.Render(i18n.T(s.ctx, "ExplanationLabel")))
	b.WriteString("\n")
	b.WriteString(explanation)
	b.WriteString("\n")
}
