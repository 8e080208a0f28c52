package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pavelanni/mocktest/internal/api"
	"github.com/pavelanni/mocktest/internal/exam"
	"github.com/pavelanni/mocktest/internal/gate"
	"github.com/pavelanni/mocktest/internal/i18n"
	"github.com/pavelanni/mocktest/internal/model"
	"github.com/pavelanni/mocktest/internal/review"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	selectStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	passageStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("8")).PaddingLeft(1)
	boxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).Padding(0, 1)
	activeTab   = lipgloss.NewStyle().Bold(true).Underline(true)
	inactiveTab = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	paletteStyles = map[model.PaletteColor]lipgloss.Style{
		model.PaletteNeutral:  lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("7")),
		model.PaletteReviewed: lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11")),
		model.PaletteCurrent:  lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("12")),
		model.PaletteAnswered: lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("10")),
		model.PaletteCorrect:  lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("10")),
		model.PaletteWrong:    lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("9")),
	}
	markStyles = map[review.Mark]lipgloss.Style{
		review.MarkPlain:   lipgloss.NewStyle(),
		review.MarkCorrect: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		review.MarkWrong:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
)

// frame pads the whole view and wraps it to the terminal width.
func frame(width int) lipgloss.Style {
	s := lipgloss.NewStyle().Padding(0, 1)
	if width > 4 {
		s = s.Width(width - 2)
	}
	return s
}

// palette renders one numbered cell per entry.
func palette(entries []model.PaletteEntry) string {
	cells := make([]string, 0, len(entries))
	for i, e := range entries {
		st, ok := paletteStyles[e.Color]
		if !ok {
			st = paletteStyles[model.PaletteNeutral]
		}
		cells = append(cells, st.Render(fmt.Sprintf(" %d ", i+1)))
	}
	return strings.Join(cells, " ")
}

// tabs renders names with the current one highlighted.
func tabs(names []string, current string) string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == current {
			out = append(out, activeTab.Render(n))
		} else {
			out = append(out, inactiveTab.Render(n))
		}
	}
	return strings.Join(out, "  ")
}

// clock formats a countdown as mm:ss, or h:mm:ss past an hour.
func clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d / time.Second)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s%3600/60, s%60)
	}
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// errorNotice turns an error into a user-facing line.
func errorNotice(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, exam.ErrInvalidSession):
		return i18n.T(ctx, "NoticeNoSession")
	case errors.Is(err, gate.ErrMissingTest):
		return i18n.T(ctx, "NoticeMissingTest")
	case errors.Is(err, review.ErrMissingResult):
		return i18n.T(ctx, "NoticeMissingResult")
	case api.IsAuth(err):
		return i18n.T(ctx, "NoticeSignIn")
	}
	return i18n.Td(ctx, "NoticeError", map[string]any{"Error": api.DetailOf(err)})
}
