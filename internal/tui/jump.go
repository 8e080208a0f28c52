package tui

import (
	"context"
	"strconv"

	"github.com/pavelanni/mocktest/internal/i18n"
	"github.com/pavelanni/mocktest/internal/model"
)

// jumpInput collects a "g<number> enter" palette jump for cells past 9.
type jumpInput struct {
	active bool
	digits string
}

// key consumes k while a jump is being typed, or k == "g" to start one.
// target is the 1-based palette number once enter is pressed, else 0.
func (j *jumpInput) key(k string) (handled bool, target int) {
	if !j.active {
		if k == "g" {
			j.active, j.digits = true, ""
			return true, 0
		}
		return false, 0
	}
	switch {
	case len(k) == 1 && k[0] >= '0' && k[0] <= '9':
		if len(j.digits) < 3 {
			j.digits += k
		}
	case k == "backspace":
		if j.digits != "" {
			j.digits = j.digits[:len(j.digits)-1]
		}
	case k == "enter":
		n, _ := strconv.Atoi(j.digits)
		j.active, j.digits = false, ""
		return true, n
	default:
		j.active, j.digits = false, ""
	}
	return true, 0
}

func (j *jumpInput) prompt(ctx context.Context) string {
	if !j.active {
		return ""
	}
	return i18n.Td(ctx, "JumpPrompt", map[string]any{"Number": j.digits})
}

// paletteTarget returns the question behind palette cell n (1-based).
func paletteTarget(entries []model.PaletteEntry, n int) (model.QuestionID, bool) {
	if n < 1 || n > len(entries) {
		return "", false
	}
	return entries[n-1].QuestionID, true
}
