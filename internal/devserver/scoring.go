package devserver

import (
	"math"
	"strings"

	"github.com/pavelanni/mocktest/internal/model"
)

const (
	markCorrect = 1.0
	markWrong   = -0.25
)

// gradedAnswer is the stored outcome of one question.
type gradedAnswer struct {
	QuestionID string `json:"question_id"`
	Section    string `json:"section"`
	Selected   string `json:"selected"`
	Correct    string `json:"correct"`
	IsCorrect  bool   `json:"is_correct"`
}

// grading is the outcome of a whole submission.
type grading struct {
	Answers    []gradedAnswer
	Correct    int
	Wrong      int
	Score      float64
	Percentage float64
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// grade scores answers against the key: +1 for a correct option, -0.25 for
// a wrong one, nothing for an unanswered question. Answers to unknown
// question ids are ignored.
func grade(questions []SeedQuestion, answers map[string]string) grading {
	var g grading
	for _, q := range questions {
		sel := strings.ToUpper(strings.TrimSpace(answers[q.ID]))
		ga := gradedAnswer{
			QuestionID: q.ID,
			Section:    q.Section,
			Selected:   sel,
			Correct:    q.Correct,
			IsCorrect:  sel != "" && sel == q.Correct,
		}
		switch {
		case sel == "":
		case ga.IsCorrect:
			g.Correct++
		default:
			g.Wrong++
		}
		g.Answers = append(g.Answers, ga)
	}
	g.Score = round2(float64(g.Correct)*markCorrect + float64(g.Wrong)*markWrong)
	if n := len(questions); n > 0 {
		g.Percentage = round2(g.Score / float64(n) * 100)
	}
	return g
}

// sectionSummary breaks graded answers down by section, in order of first
// appearance. Section percentage is correct answers over section size.
func sectionSummary(answers []gradedAnswer) []model.SectionSummary {
	var order []string
	bySection := make(map[string]*model.SectionSummary)
	for _, a := range answers {
		name := a.Section
		if name == "" {
			name = model.DefaultSection
		}
		s, ok := bySection[name]
		if !ok {
			s = &model.SectionSummary{SectionName: name}
			bySection[name] = s
			order = append(order, name)
		}
		switch {
		case a.Selected == "":
			s.Unattempted++
		case a.IsCorrect:
			s.Attempted++
			s.Correct++
		default:
			s.Attempted++
			s.Wrong++
		}
	}
	out := make([]model.SectionSummary, 0, len(order))
	for _, name := range order {
		s := bySection[name]
		s.Marks = round2(float64(s.Correct)*markCorrect + float64(s.Wrong)*markWrong)
		if total := s.Attempted + s.Unattempted; total > 0 {
			s.Percentage = round2(float64(s.Correct) / float64(total) * 100)
		}
		out = append(out, *s)
	}
	return out
}

// performanceBand names the band of a percentile.
func performanceBand(percentile float64) string {
	switch {
	case percentile >= 90:
		return "Top 10%"
	case percentile >= 75:
		return "Top 25%"
	case percentile >= 50:
		return "Top 50%"
	default:
		return "Needs Improvement"
	}
}

// analytics ranks resultID among all results of its test. ranked must be
// ordered best score first.
func analytics(ranked []resultRow, resultID int64) model.Analytics {
	total := len(ranked)
	a := model.Analytics{TotalUsers: total, Rank: total}
	if total == 0 {
		a.PerformanceBand = performanceBand(0)
		return a
	}
	a.TopperScore = ranked[0].Score
	for i, r := range ranked {
		if r.ID == resultID {
			a.Rank = i + 1
			break
		}
	}
	a.Percentile = round2(float64(total-a.Rank) / float64(total) * 100)
	a.PerformanceBand = performanceBand(a.Percentile)
	return a
}
