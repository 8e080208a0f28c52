package review

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pavelanni/mocktest/internal/exam"
	"github.com/pavelanni/mocktest/internal/model"
)

func rq(id, section, selected, correct string) model.ReviewQuestion {
	return model.ReviewQuestion{
		Question: model.Question{
			ID:      model.QuestionID(id),
			Section: section,
			Text:    "Question " + id,
			Options: []string{"one", "two", "three", "four"},
		},
		Selected:  selected,
		Correct:   correct,
		IsCorrect: selected != "" && selected == correct,
	}
}

func sampleResult() model.Result {
	return model.Result{
		ID:         12,
		MockTestID: 5,
		Score:      0.75,
		Percentage: 25,
		Questions: []model.ReviewQuestion{
			rq("1", "Reasoning", "A", "A"),
			rq("2", "Reasoning", "B", "C"),
			rq("3", "English", "", "D"),
		},
		SectionsSummary: []model.SectionSummary{
			{SectionName: "Reasoning", Attempted: 2, Correct: 1, Wrong: 1, Marks: 0.75, Percentage: 50},
			{SectionName: "English", Unattempted: 1},
		},
	}
}

type fakeFetcher struct {
	calls int
	res   model.Result
	err   error
}

func (f *fakeFetcher) Preview(ctx context.Context, id int64) (model.Result, error) {
	f.calls++
	return f.res, f.err
}

func TestLoadMissingResult(t *testing.T) {
	f := &fakeFetcher{}
	if _, err := Load(context.Background(), f, 0); !errors.Is(err, ErrMissingResult) {
		t.Errorf("Load(0) = %v, want ErrMissingResult", err)
	}
	if f.calls != 0 {
		t.Errorf("fetcher called %d times", f.calls)
	}
}

func TestLoadError(t *testing.T) {
	f := &fakeFetcher{err: errors.New("boom")}
	if _, err := Load(context.Background(), f, 3); err == nil {
		t.Error("expected error")
	}
}

func TestNavigationCrossesSections(t *testing.T) {
	p := New(sampleResult())
	if got := p.Sections(); len(got) != 2 || got[0] != "Reasoning" || got[1] != "English" {
		t.Fatalf("Sections() = %v", got)
	}

	if n := p.Prev(); n != NoticeStartOfReview {
		t.Errorf("Prev() at start = %v", n)
	}
	wantIDs := []model.QuestionID{"2", "3"}
	for _, want := range wantIDs {
		if n := p.Next(); n != NoticeNone {
			t.Fatalf("Next() = %v", n)
		}
		q, _ := p.Current()
		if q.ID != want {
			t.Errorf("Current() = %s, want %s", q.ID, want)
		}
	}
	if p.CurrentSection() != "English" {
		t.Errorf("CurrentSection() = %q", p.CurrentSection())
	}
	if n := p.Next(); n != NoticeEndOfReview {
		t.Errorf("Next() at end = %v", n)
	}
	q, _ := p.Current()
	if q.ID != "3" {
		t.Errorf("Next() at end must not move, at %s", q.ID)
	}

	// Prev from the first question of a section lands on the last of the previous one.
	p.Prev()
	q, _ = p.Current()
	if q.ID != "2" || p.CurrentSection() != "Reasoning" {
		t.Errorf("Prev() = %s in %s", q.ID, p.CurrentSection())
	}
}

func TestJumpAndChangeSection(t *testing.T) {
	p := New(sampleResult())
	if err := p.JumpTo("3"); err != nil {
		t.Fatal(err)
	}
	if p.CurrentSection() != "English" {
		t.Errorf("JumpTo did not switch section: %q", p.CurrentSection())
	}
	if err := p.ChangeSection("Reasoning"); err != nil {
		t.Fatal(err)
	}
	if pos, total := p.Position(); pos != 0 || total != 2 {
		t.Errorf("Position() = %d/%d", pos, total)
	}
	if err := p.JumpTo("99"); !errors.Is(err, exam.ErrUnknownQuestion) {
		t.Errorf("JumpTo(99) = %v", err)
	}
	if err := p.ChangeSection("Maths"); !errors.Is(err, exam.ErrUnknownSection) {
		t.Errorf("ChangeSection(Maths) = %v", err)
	}
}

func TestEmptyResult(t *testing.T) {
	p := New(model.Result{ID: 1})
	if !p.Empty() {
		t.Fatal("Empty() = false")
	}
	if _, ok := p.Current(); ok {
		t.Error("Current() on empty result")
	}
	if p.Next() != NoticeEndOfReview || p.Prev() != NoticeStartOfReview {
		t.Error("navigation on empty result should report notices")
	}
}

func TestPalette(t *testing.T) {
	p := New(sampleResult())
	got := p.Palette()
	want := []model.PaletteColor{model.PaletteCorrect, model.PaletteWrong}
	if len(got) != len(want) {
		t.Fatalf("Palette() len = %d", len(got))
	}
	for i := range want {
		if got[i].Color != want[i] {
			t.Errorf("Palette()[%d] = %s, want %s", i, got[i].Color, want[i])
		}
	}
	p.ChangeSection("English")
	if c := p.Palette()[0].Color; c != model.PaletteNeutral {
		t.Errorf("unattempted colour = %s", c)
	}
}

func TestOptionMark(t *testing.T) {
	tests := []struct {
		name string
		q    model.ReviewQuestion
		i    int
		want Mark
	}{
		{"correct option", rq("1", "S", "B", "C"), 2, MarkCorrect},
		{"selected wrong", rq("1", "S", "B", "C"), 1, MarkWrong},
		{"other option", rq("1", "S", "B", "C"), 0, MarkPlain},
		{"selected correct", rq("1", "S", "C", "C"), 2, MarkCorrect},
		{"unattempted", rq("1", "S", "", "C"), 1, MarkPlain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OptionMark(tt.q, tt.i); got != tt.want {
				t.Errorf("OptionMark() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPassage(t *testing.T) {
	q1 := rq("1", "English", "A", "A")
	q1.PassageID = "p1"
	q1.PassageText = "The shared passage."
	q2 := rq("2", "English", "A", "B")
	q2.PassageID = "p1"
	q3 := rq("3", "English", "", "B")
	q3.PassageText = "Inline only."

	p := New(model.Result{ID: 1, Questions: []model.ReviewQuestion{q1, q2, q3}})
	want := []string{"The shared passage.", "The shared passage.", "Inline only."}
	for i, w := range want {
		if got := p.Passage(); got != w {
			t.Errorf("question %d Passage() = %q, want %q", i+1, got, w)
		}
		p.Next()
	}
}

func TestVerdictFor(t *testing.T) {
	tests := []struct {
		pct  float64
		want Verdict
	}{
		{100, VerdictExcellent},
		{80, VerdictExcellent},
		{79.99, VerdictGood},
		{60, VerdictGood},
		{59, VerdictNeedsImprovement},
		{-5, VerdictNeedsImprovement},
	}
	for _, tt := range tests {
		if got := VerdictFor(tt.pct); got != tt.want {
			t.Errorf("VerdictFor(%v) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}

func TestStats(t *testing.T) {
	st := New(sampleResult()).Stats()
	if st.Correct != 1 || st.Wrong != 1 || st.Unattempted != 1 {
		t.Errorf("totals = %d/%d/%d", st.Correct, st.Wrong, st.Unattempted)
	}
	if st.Verdict != VerdictNeedsImprovement {
		t.Errorf("Verdict = %q", st.Verdict)
	}

	res := sampleResult()
	res.SectionsSummary = nil
	st = New(res).Stats()
	if st.Correct != 1 || st.Wrong != 1 || st.Unattempted != 1 {
		t.Errorf("totals from questions = %d/%d/%d", st.Correct, st.Wrong, st.Unattempted)
	}
}

type fakeExplainer struct {
	asked []model.QuestionID
	err   error
}

func (f *fakeExplainer) Explain(ctx context.Context, q model.ReviewQuestion) (string, error) {
	f.asked = append(f.asked, q.ID)
	return "Because C follows from the premise.", f.err
}

func TestFillExplanations(t *testing.T) {
	res := sampleResult()
	res.Questions[0].Explanation = ""
	p := New(res)
	ex := &fakeExplainer{}
	if n := p.FillExplanations(context.Background(), ex); n != 1 {
		t.Errorf("FillExplanations() = %d, want 1", n)
	}
	if len(ex.asked) != 1 || ex.asked[0] != "2" {
		t.Errorf("asked for %v, want only the wrong answer", ex.asked)
	}
	p.JumpTo("2")
	q, _ := p.Current()
	if !strings.HasPrefix(q.Explanation, "Because") {
		t.Errorf("Explanation = %q", q.Explanation)
	}

	failing := New(sampleResult())
	if n := failing.FillExplanations(context.Background(), &fakeExplainer{err: errors.New("down")}); n != 0 {
		t.Errorf("FillExplanations() with failing explainer = %d", n)
	}
}

func TestPreviewOwnsQuestions(t *testing.T) {
	res := sampleResult()
	p := New(res)
	p.SetExplanation("2", "C is the only match.")

	if got := res.Questions[1].Explanation; got != "" {
		t.Errorf("caller's result changed: explanation %q", got)
	}
	out := p.Result()
	if got := out.Questions[1].Explanation; got != "C is the only match." {
		t.Errorf("Result() explanation = %q", got)
	}

	out.Questions[1].Explanation = "edited"
	p.JumpTo("2")
	if q, _ := p.Current(); q.Explanation != "C is the only match." {
		t.Errorf("editing Result() leaked into the preview: %q", q.Explanation)
	}
}

func TestWriteHTML(t *testing.T) {
	res := sampleResult()
	res.Questions[1].Text = "Is 2 < 3?"
	res.Questions[1].Images.Question = "uploads/q2.png"
	p := New(res)
	var buf bytes.Buffer
	if err := WriteHTML(context.Background(), &buf, p, ReportOptions{Title: "SBI PO Mock 5", ImageURL: "http://localhost:8000/"}); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"<title>SBI PO Mock 5</title>",
		"Is 2 &lt; 3?",
		`<li class="correct">three</li>`,
		`<li class="wrong">two</li>`,
		"No explanation available.",
		`src="http://localhost:8000/uploads/q2.png"`,
		"<h2>English</h2>",
		"Needs Improvement",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestResolveImage(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"http://h:8000", "uploads/a.png", "http://h:8000/uploads/a.png"},
		{"http://h:8000/", "/uploads/a.png", "http://h:8000/uploads/a.png"},
		{"http://h:8000", "https://cdn/x.png", "https://cdn/x.png"},
		{"http://h:8000", "  ", ""},
	}
	for _, tt := range tests {
		if got := ResolveImage(tt.base, tt.path); got != tt.want {
			t.Errorf("ResolveImage(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}

func TestExport(t *testing.T) {
	exp := New(sampleResult()).Export("SBI PO Mock 5")
	if exp.ResultID != 12 || exp.TestID != 5 || exp.TestName != "SBI PO Mock 5" {
		t.Errorf("export header = %+v", exp)
	}
	if len(exp.Questions) != 3 || exp.Questions[1].Selected != "B" {
		t.Errorf("export questions = %+v", exp.Questions)
	}
	if exp.SubmittedAt != nil {
		t.Error("SubmittedAt should be omitted when unknown")
	}
}
