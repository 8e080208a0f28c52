package exam

import "github.com/pavelanni/mocktest/internal/model"

// Summary counts question states across the whole test.
type Summary struct {
	Total      int
	Answered   int
	Reviewed   int
	NotVisited int
}

// Unanswered returns the number of questions without an answer.
func (s Summary) Unanswered() int { return s.Total - s.Answered }

// PaletteColor returns the colour of one question. Priority is
// reviewed, then current, then answered.
func PaletteColor(reviewed, current, answered bool) model.PaletteColor {
	switch {
	case reviewed:
		return model.PaletteReviewed
	case current:
		return model.PaletteCurrent
	case answered:
		return model.PaletteAnswered
	default:
		return model.PaletteNeutral
	}
}

// Palette returns one entry per question of the current section.
func (r *Runner) Palette() []model.PaletteEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.groups[r.section]
	out := make([]model.PaletteEntry, 0, len(idx))
	for pos, i := range idx {
		id := r.questions[i].ID
		_, answered := r.answers[id]
		out = append(out, model.PaletteEntry{
			QuestionID: id,
			Color:      PaletteColor(r.review[id], pos == r.pos, answered),
		})
	}
	return out
}

// Summary returns answered, reviewed and not-visited counts for the submit
// confirmation.
func (r *Runner) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Summary{Total: len(r.questions)}
	for _, q := range r.questions {
		if _, ok := r.answers[q.ID]; ok {
			s.Answered++
		}
		if r.review[q.ID] {
			s.Reviewed++
		}
		if !r.visited[q.ID] {
			s.NotVisited++
		}
	}
	return s
}
