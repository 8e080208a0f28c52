package exam

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pavelanni/mocktest/internal/attempt"
	"github.com/pavelanni/mocktest/internal/model"
)

type fakeBackend struct {
	paper     model.TestPaper
	resumeErr error

	resumeCalls atomic.Int32
	submitCalls atomic.Int32

	mu        sync.Mutex
	submitted []model.Submission
	attempts  []string
	submitErr error
	resultID  int64
	// release, when set, blocks Submit until closed.
	release chan struct{}
}

func (f *fakeBackend) Resume(ctx context.Context, testID int64) (model.TestPaper, error) {
	f.resumeCalls.Add(1)
	if f.resumeErr != nil {
		return model.TestPaper{}, f.resumeErr
	}
	return f.paper, nil
}

func (f *fakeBackend) Submit(ctx context.Context, testID int64, attemptID string, sub model.Submission) (model.SubmitResponse, error) {
	f.submitCalls.Add(1)
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, sub)
	f.attempts = append(f.attempts, attemptID)
	if f.submitErr != nil {
		return model.SubmitResponse{}, f.submitErr
	}
	return model.SubmitResponse{Message: "submitted", ResultID: f.resultID}, nil
}

type fakeSession struct {
	a       *model.Attempt
	cleared int
}

func (s *fakeSession) Current() (model.Attempt, error) {
	if s.a == nil || !s.a.Valid() {
		return model.Attempt{}, attempt.ErrNoAttempt
	}
	return *s.a, nil
}

func (s *fakeSession) Clear() error {
	s.cleared++
	s.a = nil
	return nil
}

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func samplePaper() model.TestPaper {
	return model.TestPaper{
		TestName:        "SBI PO Mock 1",
		DurationMinutes: 60,
		Questions: []model.Question{
			{ID: "Q1", Section: "Reasoning", Text: "r1", Options: []string{"a", "b", "c", "d", "e"}},
			{ID: "Q2", Section: "Reasoning", Text: "r2", Options: []string{"a", "b", "c", "d"}},
			{ID: "Q3", Section: "Quant", Text: "q1", Options: []string{"a", "b", "c"}},
			{ID: "Q4", Section: "Reasoning", Text: "r3", Options: []string{"a", "b", "c", "d", "e"}},
			{ID: "Q5", Section: "English", Text: "e1", Options: []string{"a", "b", "c", "d", "e"}},
		},
	}
}

func newTestRunner(t *testing.T, started time.Time) (*Runner, *fakeBackend, *fakeSession) {
	t.Helper()
	fb := &fakeBackend{paper: samplePaper(), resultID: 77}
	fs := &fakeSession{a: &model.Attempt{TestID: 3, StartedAt: started, Duration: time.Hour}}
	r, err := Open(context.Background(), fb, fs, WithClock(func() time.Time { return testNow }), WithAttemptID("attempt-test"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return r, fb, fs
}

func TestOpenWithoutSessionMakesNoNetworkCall(t *testing.T) {
	tests := []struct {
		name string
		a    *model.Attempt
	}{
		{"no marker", nil},
		{"missing start time", &model.Attempt{TestID: 3, Duration: time.Hour}},
		{"missing test id", &model.Attempt{StartedAt: testNow, Duration: time.Hour}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeBackend{paper: samplePaper()}
			_, err := Open(context.Background(), fb, &fakeSession{a: tt.a})
			if !errors.Is(err, ErrInvalidSession) {
				t.Fatalf("Open() error = %v, want ErrInvalidSession", err)
			}
			if n := fb.resumeCalls.Load(); n != 0 {
				t.Errorf("expected no network call, got %d", n)
			}
		})
	}
}

func TestOpenLoadFailure(t *testing.T) {
	fb := &fakeBackend{resumeErr: errors.New("boom")}
	fs := &fakeSession{a: &model.Attempt{TestID: 3, StartedAt: testNow, Duration: time.Hour}}
	r, err := Open(context.Background(), fb, fs)
	if err == nil {
		t.Fatal("expected load error")
	}
	if r == nil || r.State() != Failed {
		t.Fatalf("expected runner in Failed state, got %v", r)
	}
	if r.LoadErr() == nil {
		t.Error("expected LoadErr to be set")
	}
	if err := r.SelectOption("Q1", "A"); !errors.Is(err, ErrNotActive) {
		t.Errorf("SelectOption on failed runner: got %v", err)
	}
}

func TestRemainingOnOpen(t *testing.T) {
	tests := []struct {
		name    string
		started time.Time
		want    time.Duration
	}{
		{"fifty minutes elapsed", testNow.Add(-3000 * time.Second), 600 * time.Second},
		{"expired", testNow.Add(-2 * time.Hour), 0},
		{"future start", testNow.Add(time.Hour), time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTestRunner(t, tt.started)
			if got := r.Remaining(); got != tt.want {
				t.Errorf("Remaining() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSectionsFirstAppearance(t *testing.T) {
	r, _, _ := newTestRunner(t, testNow)
	got := r.Sections()
	want := []string{"Reasoning", "Quant", "English"}
	if len(got) != len(want) {
		t.Fatalf("Sections() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Sections() = %v, want %v", got, want)
		}
	}
	if r.CurrentSection() != "Reasoning" {
		t.Errorf("CurrentSection() = %q", r.CurrentSection())
	}
	if _, n := r.Position(); n != 3 {
		t.Errorf("Reasoning has %d questions, want 3", n)
	}
}

func TestSectionOrderDefaultsBlank(t *testing.T) {
	got := SectionOrder([]model.Question{{ID: "1"}, {ID: "2", Section: "Quant"}, {ID: "3", Section: model.DefaultSection}})
	if len(got) != 2 || got[0] != model.DefaultSection || got[1] != "Quant" {
		t.Errorf("SectionOrder() = %v", got)
	}
}

func TestSelectAndClear(t *testing.T) {
	r, _, _ := newTestRunner(t, testNow)

	if err := r.SelectOption("Q1", "b"); err != nil {
		t.Fatalf("SelectOption: %v", err)
	}
	if got := r.Answer("Q1"); got != "B" {
		t.Errorf("Answer(Q1) = %q, want B", got)
	}

	// Selecting the same option twice is idempotent.
	if err := r.SelectOption("Q1", "B"); err != nil {
		t.Fatalf("SelectOption: %v", err)
	}
	if got := len(r.Answers()); got != 1 {
		t.Errorf("expected 1 answer, got %d", got)
	}

	// A new option overwrites.
	if err := r.SelectOption("Q1", "E"); err != nil {
		t.Fatalf("SelectOption: %v", err)
	}
	if got := r.Answer("Q1"); got != "E" {
		t.Errorf("Answer(Q1) = %q, want E", got)
	}

	if err := r.ClearAnswer("Q1"); err != nil {
		t.Fatalf("ClearAnswer: %v", err)
	}
	if got := r.Answer("Q1"); got != "" {
		t.Errorf("Answer(Q1) after clear = %q", got)
	}
	// Clearing again is a no-op.
	if err := r.ClearAnswer("Q1"); err != nil {
		t.Errorf("second ClearAnswer: %v", err)
	}
}

func TestSelectOptionValidation(t *testing.T) {
	r, _, _ := newTestRunner(t, testNow)

	tests := []struct {
		name    string
		qid     model.QuestionID
		letter  string
		wantErr error
	}{
		{"valid", "Q3", "C", nil},
		{"beyond option count", "Q3", "D", ErrInvalidOption},
		{"not a letter", "Q1", "Z", ErrInvalidOption},
		{"empty", "Q1", "", ErrInvalidOption},
		{"unknown question", "Q99", "A", ErrUnknownQuestion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.SelectOption(tt.qid, tt.letter)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SelectOption(%s, %q) = %v, want %v", tt.qid, tt.letter, err, tt.wantErr)
			}
		})
	}
}

func TestToggleReviewInvolution(t *testing.T) {
	r, _, _ := newTestRunner(t, testNow)

	on, err := r.ToggleReview("Q2")
	if err != nil || !on {
		t.Fatalf("first toggle = %v, %v", on, err)
	}
	if !r.Reviewed("Q2") {
		t.Error("expected Q2 reviewed")
	}
	on, err = r.ToggleReview("Q2")
	if err != nil || on {
		t.Fatalf("second toggle = %v, %v", on, err)
	}
	if r.Reviewed("Q2") {
		t.Error("expected Q2 not reviewed after two toggles")
	}
	if _, err := r.ToggleReview("nope"); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("ToggleReview(unknown) = %v", err)
	}
}

func TestNavigationBounds(t *testing.T) {
	r, _, _ := newTestRunner(t, testNow)

	if r.Prev() {
		t.Error("Prev() at first question should report false")
	}
	if pos, _ := r.Position(); pos != 0 {
		t.Errorf("pointer moved to %d", pos)
	}

	if !r.Next() || !r.Next() {
		t.Fatal("expected two successful Next() calls")
	}
	q, _ := r.Current()
	if q.ID != "Q4" {
		t.Errorf("third Reasoning question = %s, want Q4", q.ID)
	}
	if r.Next() {
		t.Error("Next() at last question of the section should report false")
	}
	if r.CurrentSection() != "Reasoning" {
		t.Errorf("Next() must not leave the section, now in %q", r.CurrentSection())
	}
	if !r.Prev() {
		t.Error("Prev() from the last question should succeed")
	}
}

func TestJumpToAndChangeSection(t *testing.T) {
	r, _, _ := newTestRunner(t, testNow)

	if err := r.JumpTo("Q5"); err != nil {
		t.Fatalf("JumpTo: %v", err)
	}
	if r.CurrentSection() != "English" {
		t.Errorf("JumpTo did not switch section: %q", r.CurrentSection())
	}
	if q, _ := r.Current(); q.ID != "Q5" {
		t.Errorf("Current() = %s, want Q5", q.ID)
	}

	if err := r.JumpTo("Q4"); err != nil {
		t.Fatalf("JumpTo: %v", err)
	}
	if pos, _ := r.Position(); pos != 2 {
		t.Errorf("Position() = %d, want 2", pos)
	}

	if err := r.ChangeSection("Quant"); err != nil {
		t.Fatalf("ChangeSection: %v", err)
	}
	if pos, _ := r.Position(); pos != 0 {
		t.Errorf("ChangeSection should reset pointer, got %d", pos)
	}
	if err := r.ChangeSection("GK"); !errors.Is(err, ErrUnknownSection) {
		t.Errorf("ChangeSection(unknown) = %v", err)
	}
	if err := r.JumpTo("missing"); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("JumpTo(unknown) = %v", err)
	}
}

func TestPalettePriority(t *testing.T) {
	tests := []struct {
		reviewed, current, answered bool
		want                        model.PaletteColor
	}{
		{true, true, true, model.PaletteReviewed},
		{true, false, false, model.PaletteReviewed},
		{false, true, true, model.PaletteCurrent},
		{false, false, true, model.PaletteAnswered},
		{false, false, false, model.PaletteNeutral},
	}
	for _, tt := range tests {
		if got := PaletteColor(tt.reviewed, tt.current, tt.answered); got != tt.want {
			t.Errorf("PaletteColor(%v, %v, %v) = %s, want %s", tt.reviewed, tt.current, tt.answered, got, tt.want)
		}
	}

	r, _, _ := newTestRunner(t, testNow)
	_ = r.SelectOption("Q2", "A")
	_ = r.SelectOption("Q4", "A")
	_, _ = r.ToggleReview("Q4")
	_, _ = r.ToggleReview("Q1")

	got := r.Palette()
	want := []model.PaletteEntry{
		{QuestionID: "Q1", Color: model.PaletteReviewed},
		{QuestionID: "Q2", Color: model.PaletteAnswered},
		{QuestionID: "Q4", Color: model.PaletteReviewed},
	}
	if len(got) != len(want) {
		t.Fatalf("Palette() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Palette()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	r.Next()
	if c := r.Palette()[1].Color; c != model.PaletteCurrent {
		t.Errorf("current answered question should be %s, got %s", model.PaletteCurrent, c)
	}
}

func TestSummary(t *testing.T) {
	r, _, _ := newTestRunner(t, testNow)
	_ = r.SelectOption("Q1", "A")
	_ = r.SelectOption("Q3", "A")
	_, _ = r.ToggleReview("Q3")
	r.Next()

	s := r.Summary()
	if s.Total != 5 || s.Answered != 2 || s.Reviewed != 1 {
		t.Errorf("Summary() = %+v", s)
	}
	// Q1 and Q2 were shown.
	if s.NotVisited != 3 {
		t.Errorf("NotVisited = %d, want 3", s.NotVisited)
	}
	if s.Unanswered() != 3 {
		t.Errorf("Unanswered() = %d, want 3", s.Unanswered())
	}
}

func TestTickFiresOnce(t *testing.T) {
	r, _, _ := newTestRunner(t, testNow.Add(-3597*time.Second))
	if got := r.Remaining(); got != 3*time.Second {
		t.Fatalf("Remaining() = %v, want 3s", got)
	}

	fired := 0
	for i := 0; i < 10; i++ {
		if r.Tick() {
			fired++
			if i != 2 {
				t.Errorf("fired on tick %d, want tick 2", i)
			}
		}
	}
	if fired != 1 {
		t.Errorf("Tick() fired %d times, want exactly 1", fired)
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining() = %v, want 0", r.Remaining())
	}
}

func TestTickExpiredOnOpen(t *testing.T) {
	r, _, _ := newTestRunner(t, testNow.Add(-2*time.Hour))
	if !r.Tick() {
		t.Error("first tick of an expired attempt should fire")
	}
	if r.Tick() {
		t.Error("second tick must not fire")
	}
}

func TestTickFollowsClock(t *testing.T) {
	now := testNow
	fb := &fakeBackend{paper: samplePaper(), resultID: 77}
	fs := &fakeSession{a: &model.Attempt{TestID: 3, StartedAt: testNow.Add(-50 * time.Minute), Duration: time.Hour}}
	r, err := Open(context.Background(), fb, fs, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	now = now.Add(time.Second)
	r.Tick()
	if got := r.Remaining(); got != 10*time.Minute-time.Second {
		t.Fatalf("Remaining() = %v after one second", got)
	}

	// A stalled UI (a slow failed submit, a suspended terminal) catches up.
	now = now.Add(15 * time.Second)
	r.Tick()
	if got := r.Remaining(); got != 10*time.Minute-16*time.Second {
		t.Errorf("Remaining() = %v after a 15s stall, want %v", got, 10*time.Minute-16*time.Second)
	}

	now = testNow.Add(time.Hour)
	if !r.Tick() {
		t.Error("tick past the deadline should fire")
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining() = %v, want 0", r.Remaining())
	}
}

func TestDetachedTickIsInert(t *testing.T) {
	r, _, _ := newTestRunner(t, testNow.Add(-3599*time.Second))
	r.Detach()
	if r.Tick() {
		t.Error("detached runner must not fire")
	}
	if r.Remaining() != time.Second {
		t.Errorf("detached tick changed remaining to %v", r.Remaining())
	}
}

func TestSubmitPayloadOnlyAnswered(t *testing.T) {
	r, fb, fs := newTestRunner(t, testNow.Add(-600*time.Second))
	if err := r.SelectOption("Q1", "B"); err != nil {
		t.Fatal(err)
	}
	_, _ = r.ToggleReview("Q2")

	id, err := r.Submit(context.Background(), false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != 77 {
		t.Errorf("result id = %d, want 77", id)
	}
	if len(fb.submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(fb.submitted))
	}
	sub := fb.submitted[0]
	if len(sub.Answers) != 1 || sub.Answers["Q1"] != "B" {
		t.Errorf("answers = %v, want only Q1=B", sub.Answers)
	}
	if sub.TimeTakenSeconds != 600 {
		t.Errorf("time taken = %d, want 600", sub.TimeTakenSeconds)
	}
	if fb.attempts[0] != "attempt-test" {
		t.Errorf("attempt id = %q", fb.attempts[0])
	}
	if r.State() != Submitted {
		t.Errorf("state = %s, want submitted", r.State())
	}
	if fs.cleared != 1 {
		t.Errorf("marker cleared %d times, want 1", fs.cleared)
	}

	if _, err := r.Submit(context.Background(), false); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("second Submit() = %v, want ErrAlreadySubmitted", err)
	}
	if err := r.SelectOption("Q1", "A"); !errors.Is(err, ErrNotActive) {
		t.Errorf("SelectOption after submit = %v, want ErrNotActive", err)
	}
}

func TestSubmitFailureReturnsToActive(t *testing.T) {
	r, fb, fs := newTestRunner(t, testNow)
	fb.submitErr = errors.New("connection reset")

	if _, err := r.Submit(context.Background(), false); err == nil {
		t.Fatal("expected submit error")
	}
	if r.State() != Active {
		t.Errorf("state = %s, want active", r.State())
	}
	if fs.cleared != 0 {
		t.Error("marker must stay after a failed submission")
	}
	if n := fb.submitCalls.Load(); n != 1 {
		t.Errorf("expected one call, no automatic retry; got %d", n)
	}

	// The user may submit again.
	fb.submitErr = nil
	if _, err := r.Submit(context.Background(), false); err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if r.State() != Submitted {
		t.Errorf("state = %s, want submitted", r.State())
	}
}

func TestSubmitWithoutResultID(t *testing.T) {
	r, fb, _ := newTestRunner(t, testNow)
	fb.resultID = 0
	if _, err := r.Submit(context.Background(), true); !errors.Is(err, ErrNoResult) {
		t.Fatalf("Submit() = %v, want ErrNoResult", err)
	}
	if r.State() != Active {
		t.Errorf("state = %s, want active", r.State())
	}
}

func TestSubmitLatch(t *testing.T) {
	r, fb, _ := newTestRunner(t, testNow)
	fb.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := r.Submit(context.Background(), true)
		done <- err
	}()

	// Wait until the first submission reached the backend.
	for fb.submitCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	if _, err := r.Submit(context.Background(), false); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("concurrent Submit() = %v, want ErrSubmitInFlight", err)
	}
	if r.Tick() {
		t.Error("tick during submission must not fire")
	}

	close(fb.release)
	if err := <-done; err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if n := fb.submitCalls.Load(); n != 1 {
		t.Errorf("backend saw %d submissions, want 1", n)
	}
}

func TestAutoSubmitExactlyOnce(t *testing.T) {
	r, fb, _ := newTestRunner(t, testNow.Add(-3598*time.Second))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if r.Tick() {
			if _, err := r.Submit(ctx, true); err != nil {
				t.Fatalf("auto submit: %v", err)
			}
		}
	}
	if n := fb.submitCalls.Load(); n != 1 {
		t.Errorf("auto-submit ran %d times, want 1", n)
	}
}
