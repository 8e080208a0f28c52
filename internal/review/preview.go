// Package review walks through a graded result question by question.
package review

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/pavelanni/mocktest/internal/exam"
	"github.com/pavelanni/mocktest/internal/model"
)

// ErrMissingResult is returned when no result id was given.
var ErrMissingResult = errors.New("no result selected")

// Notice is reported when navigation cannot move further.
type Notice int

const (
	NoticeNone Notice = iota
	// NoticeEndOfReview: Next at the last question of the last section.
	NoticeEndOfReview
	// NoticeStartOfReview: Prev at the first question of the first section.
	NoticeStartOfReview
)

// Fetcher loads a graded result.
type Fetcher interface {
	Preview(ctx context.Context, resultID int64) (model.Result, error)
}

// Preview is the navigation state over a graded result. Unlike the test
// runner, Next and Prev cross section boundaries but never wrap around.
type Preview struct {
	result    model.Result
	questions []model.ReviewQuestion
	byID      map[model.QuestionID]int
	sections  []string
	groups    map[string][]int
	secIdx    int
	pos       int
	passages  map[string]string
}

// Load fetches result resultID. A zero id yields ErrMissingResult without a request.
func Load(ctx context.Context, f Fetcher, resultID int64) (*Preview, error) {
	if resultID <= 0 {
		return nil, ErrMissingResult
	}
	res, err := f.Preview(ctx, resultID)
	if err != nil {
		return nil, fmt.Errorf("load result %d: %w", resultID, err)
	}
	return New(res), nil
}

// New builds a preview over res.
func New(res model.Result) *Preview {
	p := &Preview{
		result:    res,
		questions: slices.Clone(res.Questions),
		byID:      make(map[model.QuestionID]int, len(res.Questions)),
		passages:  make(map[string]string),
	}
	plain := make([]model.Question, len(res.Questions))
	for i, q := range res.Questions {
		plain[i] = q.Question
		p.byID[q.ID] = i
		if q.PassageID != "" && q.PassageText != "" {
			p.passages[q.PassageID] = q.PassageText
		}
	}
	p.sections, p.groups = exam.GroupBySection(plain)
	return p
}

// Result returns a copy of the result, explanations included.
func (p *Preview) Result() model.Result {
	res := p.result
	res.Questions = slices.Clone(p.questions)
	return res
}

// Empty reports whether the result has no questions to review.
func (p *Preview) Empty() bool { return len(p.questions) == 0 }

// Sections returns the section names in order of first appearance.
func (p *Preview) Sections() []string { return append([]string(nil), p.sections...) }

// CurrentSection returns the selected section, or "" for an empty result.
func (p *Preview) CurrentSection() string {
	if len(p.sections) == 0 {
		return ""
	}
	return p.sections[p.secIdx]
}

// Position returns the index of the current question in its section and
// the section's size.
func (p *Preview) Position() (int, int) {
	return p.pos, len(p.groups[p.CurrentSection()])
}

// Current returns the question under the pointer.
func (p *Preview) Current() (model.ReviewQuestion, bool) {
	idx := p.groups[p.CurrentSection()]
	if p.pos < 0 || p.pos >= len(idx) {
		return model.ReviewQuestion{}, false
	}
	return p.questions[idx[p.pos]], true
}

// Next moves forward, into the next section when the current one is done.
func (p *Preview) Next() Notice {
	if p.Empty() {
		return NoticeEndOfReview
	}
	if p.pos+1 < len(p.groups[p.CurrentSection()]) {
		p.pos++
		return NoticeNone
	}
	if p.secIdx+1 < len(p.sections) {
		p.secIdx++
		p.pos = 0
		return NoticeNone
	}
	return NoticeEndOfReview
}

// Prev moves back, into the last question of the previous section when at
// the start of the current one.
func (p *Preview) Prev() Notice {
	if p.Empty() {
		return NoticeStartOfReview
	}
	if p.pos > 0 {
		p.pos--
		return NoticeNone
	}
	if p.secIdx > 0 {
		p.secIdx--
		p.pos = len(p.groups[p.CurrentSection()]) - 1
		return NoticeNone
	}
	return NoticeStartOfReview
}

// ChangeSection selects a section and moves to its first question.
func (p *Preview) ChangeSection(name string) error {
	for i, s := range p.sections {
		if s == name {
			p.secIdx = i
			p.pos = 0
			return nil
		}
	}
	return fmt.Errorf("%w: %q", exam.ErrUnknownSection, name)
}

// JumpTo moves to qid, switching sections if needed.
func (p *Preview) JumpTo(qid model.QuestionID) error {
	i, ok := p.byID[qid]
	if !ok {
		return fmt.Errorf("%w: %s", exam.ErrUnknownQuestion, qid)
	}
	for si, s := range p.sections {
		for pos, idx := range p.groups[s] {
			if idx == i {
				p.secIdx = si
				p.pos = pos
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s", exam.ErrUnknownQuestion, qid)
}

// ReviewColor is the palette colour of a graded question.
func ReviewColor(q model.ReviewQuestion) model.PaletteColor {
	switch {
	case !q.Attempted():
		return model.PaletteNeutral
	case q.IsCorrect:
		return model.PaletteCorrect
	default:
		return model.PaletteWrong
	}
}

// Palette returns one entry per question of the current section. There is
// no "current" colour in review.
func (p *Preview) Palette() []model.PaletteEntry {
	idx := p.groups[p.CurrentSection()]
	out := make([]model.PaletteEntry, 0, len(idx))
	for _, i := range idx {
		q := p.questions[i]
		out = append(out, model.PaletteEntry{QuestionID: q.ID, Color: ReviewColor(q)})
	}
	return out
}

// Mark is the highlight of one option in review.
type Mark int

const (
	MarkPlain Mark = iota
	MarkCorrect
	MarkWrong
)

// OptionMark highlights option i of q: the correct option is MarkCorrect,
// a selected wrong option is MarkWrong.
func OptionMark(q model.ReviewQuestion, i int) Mark {
	letter := model.Letter(i)
	switch {
	case strings.EqualFold(q.Correct, letter):
		return MarkCorrect
	case strings.EqualFold(q.Selected, letter):
		return MarkWrong
	default:
		return MarkPlain
	}
}

// OptionMark highlights option i of the current question.
func (p *Preview) OptionMark(i int) Mark {
	q, ok := p.Current()
	if !ok {
		return MarkPlain
	}
	return OptionMark(q, i)
}

// Passage returns the passage of the current question: the text shared by
// its passage id when known, otherwise its inline text.
func (p *Preview) Passage() string {
	q, ok := p.Current()
	if !ok {
		return ""
	}
	if q.PassageID != "" {
		if text, ok := p.passages[q.PassageID]; ok {
			return text
		}
	}
	return q.PassageText
}

// SetExplanation replaces the explanation of qid.
func (p *Preview) SetExplanation(qid model.QuestionID, text string) {
	if i, ok := p.byID[qid]; ok {
		p.questions[i].Explanation = text
	}
}

// ResolveImage turns a relative image path from the backend into an
// absolute URL under baseURL.
func ResolveImage(baseURL, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
