package review

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pavelanni/mocktest/internal/model"
)

// Explainer writes an explanation for a graded question.
type Explainer interface {
	Explain(ctx context.Context, q model.ReviewQuestion) (string, error)
}

// FillExplanations asks ex for an explanation of every wrongly answered
// question the backend left without one. Failures are logged and skipped;
// it returns how many explanations were added.
func (p *Preview) FillExplanations(ctx context.Context, ex Explainer) int {
	added := 0
	for i, q := range p.questions {
		if !q.Attempted() || q.IsCorrect || strings.TrimSpace(q.Explanation) != "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		text, err := ex.Explain(ctx, q)
		if err != nil {
			slog.Warn("explanation failed", "question_id", q.ID, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		p.questions[i].Explanation = text
		added++
	}
	slog.Debug("explanations filled", "result_id", p.result.ID, "added", added)
	return added
}
