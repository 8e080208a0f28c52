package review

import "github.com/pavelanni/mocktest/internal/model"

// Verdict is the one-line judgement shown next to the score.
type Verdict string

const (
	VerdictExcellent        Verdict = "Excellent"
	VerdictGood             Verdict = "Good"
	VerdictNeedsImprovement Verdict = "Needs Improvement"
)

// VerdictFor maps a percentage to a verdict: 80 and above is Excellent,
// 60 and above is Good.
func VerdictFor(percentage float64) Verdict {
	switch {
	case percentage >= 80:
		return VerdictExcellent
	case percentage >= 60:
		return VerdictGood
	default:
		return VerdictNeedsImprovement
	}
}

// MessageID returns the i18n message id of the verdict.
func (v Verdict) MessageID() string {
	switch v {
	case VerdictExcellent:
		return "VerdictExcellent"
	case VerdictGood:
		return "VerdictGood"
	default:
		return "VerdictNeedsImprovement"
	}
}

// Stats summarises a result for the side panel.
type Stats struct {
	Score       float64
	Percentage  float64
	Verdict     Verdict
	Correct     int
	Wrong       int
	Unattempted int
	Sections    []model.SectionSummary
	Analytics   *model.Analytics
}

// Stats totals the per-section summary. When the backend sent no section
// summary the totals are counted from the questions.
func (p *Preview) Stats() Stats {
	res := p.result
	s := Stats{
		Score:      res.Score,
		Percentage: float64(res.Percentage),
		Verdict:    VerdictFor(float64(res.Percentage)),
		Sections:   res.SectionsSummary,
		Analytics:  res.Analytics,
	}
	if len(res.SectionsSummary) > 0 {
		for _, sec := range res.SectionsSummary {
			s.Correct += sec.Correct
			s.Wrong += sec.Wrong
			s.Unattempted += sec.Unattempted
		}
		return s
	}
	for _, q := range p.questions {
		switch {
		case !q.Attempted():
			s.Unattempted++
		case q.IsCorrect:
			s.Correct++
		default:
			s.Wrong++
		}
	}
	return s
}

// Export builds the JSON export document of the preview.
func (p *Preview) Export(testName string) model.ResultExport {
	st := p.Stats()
	res := p.result
	exp := model.ResultExport{
		ResultID:       res.ID,
		TestID:         res.MockTestID,
		TestName:       testName,
		Score:          res.Score,
		TotalQuestions: res.TotalQuestions,
		Percentage:     float64(res.Percentage),
		Verdict:        string(st.Verdict),
		Sections:       res.SectionsSummary,
		Analytics:      res.Analytics,
	}
	if !res.SubmittedAt.IsZero() {
		t := res.SubmittedAt.Time
		exp.SubmittedAt = &t
	}
	if exp.Sections == nil {
		exp.Sections = []model.SectionSummary{}
	}
	exp.Questions = make([]model.QuestionExport, 0, len(p.questions))
	for _, q := range p.questions {
		exp.Questions = append(exp.Questions, model.QuestionExport{
			ID:          q.ID,
			Section:     q.Section,
			Text:        q.Text,
			Options:     q.Options,
			Selected:    q.Selected,
			Correct:     q.Correct,
			IsCorrect:   q.IsCorrect,
			Explanation: q.Explanation,
		})
	}
	return exp
}
