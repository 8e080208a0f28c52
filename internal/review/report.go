package review

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/pavelanni/mocktest/internal/model"
)

// ReportOptions controls the standalone HTML report.
type ReportOptions struct {
	Title    string
	ImageURL string // base URL for relative image paths
}

// Report returns a component rendering the whole result as one HTML page:
// the score card, the section table, analytics and every question with its
// options marked.
func Report(p *Preview, opts ReportOptions) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		title := opts.Title
		if title == "" {
			title = fmt.Sprintf("Result %d", p.result.ID)
		}
		ew.printf("<!DOCTYPE html>\n<html lang=\"en\"><head><meta charset=\"utf-8\"><title>%s</title>\n", esc(title))
		ew.printf("<style>%s</style></head><body>\n", reportCSS)
		ew.printf("<h1>%s</h1>\n", esc(title))
		writeScoreCard(ew, p.Stats())
		writeSections(ew, p.Stats().Sections)
		writeAnalytics(ew, p.Stats().Analytics)
		if p.Empty() {
			ew.printf("<p class=\"empty\">No result data available</p>\n")
		}
		for _, section := range p.sections {
			ew.printf("<h2>%s</h2>\n", esc(section))
			for n, i := range p.groups[section] {
				writeQuestion(ew, p, p.questions[i], n+1, opts.ImageURL)
			}
		}
		ew.printf("</body></html>\n")
		return ew.err
	})
}

// WriteHTML renders the report to w.
func WriteHTML(ctx context.Context, w io.Writer, p *Preview, opts ReportOptions) error {
	return Report(p, opts).Render(ctx, w)
}

func writeScoreCard(ew *errWriter, st Stats) {
	ew.printf("<div class=\"card\"><p class=\"score\">Score: %s</p>", esc(formatFloat(st.Score)))
	ew.printf("<p>Percentage: %s%%</p>", esc(formatFloat(st.Percentage)))
	ew.printf("<p class=\"verdict\">%s</p>", esc(string(st.Verdict)))
	ew.printf("<p>Correct: %d &middot; Wrong: %d &middot; Unattempted: %d</p></div>\n",
		st.Correct, st.Wrong, st.Unattempted)
}

func writeSections(ew *errWriter, sections []model.SectionSummary) {
	if len(sections) == 0 {
		return
	}
	ew.printf("<table><thead><tr><th>Section</th><th>Attempted</th><th>Correct</th><th>Wrong</th><th>Unattempted</th><th>Marks</th><th>%%</th></tr></thead><tbody>\n")
	for _, s := range sections {
		ew.printf("<tr><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td><td>%s</td><td>%s</td></tr>\n",
			esc(s.SectionName), s.Attempted, s.Correct, s.Wrong, s.Unattempted,
			esc(formatFloat(s.Marks)), esc(formatFloat(s.Percentage)))
	}
	ew.printf("</tbody></table>\n")
}

func writeAnalytics(ew *errWriter, a *model.Analytics) {
	if a == nil {
		return
	}
	ew.printf("<div class=\"analytics\"><p>Rank %d of %d</p><p>Percentile: %s</p><p>Topper score: %s</p><p>%s</p></div>\n",
		a.Rank, a.TotalUsers, esc(formatFloat(a.Percentile)), esc(formatFloat(a.TopperScore)), esc(a.PerformanceBand))
}

func writeQuestion(ew *errWriter, p *Preview, q model.ReviewQuestion, n int, imageURL string) {
	ew.printf("<div class=\"question %s\" id=\"q-%s\">", ReviewColor(q), esc(string(q.ID)))
	passage := q.PassageText
	if q.PassageID != "" {
		if text, ok := p.passages[q.PassageID]; ok {
			passage = text
		}
	}
	if passage != "" {
		ew.printf("<blockquote>%s</blockquote>", esc(passage))
	}
	writeImage(ew, imageURL, q.Images.Passage)
	ew.printf("<p><strong>Q%d.</strong> %s</p>", n, esc(q.Text))
	writeImage(ew, imageURL, q.Images.Question)
	ew.printf("<ol type=\"A\">")
	for i, opt := range q.Options {
		class := ""
		switch OptionMark(q, i) {
		case MarkCorrect:
			class = " class=\"correct\""
		case MarkWrong:
			class = " class=\"wrong\""
		}
		ew.printf("<li%s>%s</li>", class, esc(opt))
	}
	ew.printf("</ol>")
	selected := q.Selected
	if selected == "" {
		selected = "-"
	}
	ew.printf("<p>Your answer: %s &middot; Correct answer: %s</p>", esc(selected), esc(q.Correct))
	explanation := strings.TrimSpace(q.Explanation)
	if explanation == "" {
		explanation = "No explanation available."
	}
	ew.printf("<p class=\"explanation\"><em>Explanation:</em> %s</p>", esc(explanation))
	writeImage(ew, imageURL, q.Images.Explanation)
	ew.printf("</div>\n")
}

func writeImage(ew *errWriter, base, path string) {
	if path == "" {
		return
	}
	ew.printf("<img src=\"%s\" alt=\"\">", esc(ResolveImage(base, path)))
}

func esc(s string) string { return templ.EscapeString(s) }

// formatFloat prints at most two decimals without trailing zeros.
func formatFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

const reportCSS = `body{font-family:sans-serif;max-width:900px;margin:2em auto;color:#222}
.card{border:1px solid #ccc;border-radius:6px;padding:1em}
.score{font-size:1.4em;font-weight:bold}
table{border-collapse:collapse;margin:1em 0}
th,td{border:1px solid #ccc;padding:4px 8px;text-align:right}
th:first-child,td:first-child{text-align:left}
.question{border-left:4px solid #bbb;padding:0 1em;margin:1em 0}
.question.correct{border-color:#2e7d32}
.question.wrong{border-color:#c62828}
li.correct{color:#2e7d32;font-weight:bold}
li.wrong{color:#c62828;text-decoration:line-through}
blockquote{background:#f5f5f5;padding:.5em 1em}
img{max-width:100%}`
