// Package exam runs a timed attempt: answers, review flags, navigation,
// the countdown and the one-shot submission.
package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/mocktest/internal/attempt"
	"github.com/pavelanni/mocktest/internal/model"
)

var (
	ErrInvalidSession   = errors.New("no valid test session")
	ErrNotActive        = errors.New("test is not active")
	ErrInvalidOption    = errors.New("invalid option")
	ErrUnknownQuestion  = errors.New("unknown question")
	ErrUnknownSection   = errors.New("unknown section")
	ErrSubmitInFlight   = errors.New("submission already in progress")
	ErrAlreadySubmitted = errors.New("test already submitted")
	ErrNoResult         = errors.New("backend returned no result id")
)

// State is the lifecycle stage of a Runner.
type State int

const (
	Loading State = iota
	Active
	Submitting
	Submitted
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Active:
		return "active"
	case Submitting:
		return "submitting"
	case Submitted:
		return "submitted"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Backend is the part of the API client the runner uses.
type Backend interface {
	Resume(ctx context.Context, testID int64) (model.TestPaper, error)
	Submit(ctx context.Context, testID int64, attemptID string, sub model.Submission) (model.SubmitResponse, error)
}

// Session resolves and clears the attempt marker.
type Session interface {
	Current() (model.Attempt, error)
	Clear() error
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithAttemptID fixes the submission attempt id instead of generating one.
func WithAttemptID(id string) Option {
	return func(r *Runner) { r.attemptID = id }
}

// Runner holds the state of one attempt. It is safe for concurrent use.
type Runner struct {
	mu sync.Mutex

	backend   Backend
	session   Session
	now       func() time.Time
	attempt   model.Attempt
	attemptID string

	state     State
	loadErr   error
	testName  string
	questions []model.Question
	byID      map[model.QuestionID]int
	sections  []string
	groups    map[string][]int
	section   string
	pos       int

	answers map[model.QuestionID]string
	review  map[model.QuestionID]bool
	visited map[model.QuestionID]bool

	remaining time.Duration
	attached  bool
	expired   bool
	resultID  int64
}

// New resolves the attempt marker and prepares a runner in the Loading
// state. It makes no network call; a missing or incomplete marker yields
// ErrInvalidSession.
func New(backend Backend, session Session, opts ...Option) (*Runner, error) {
	r := &Runner{
		backend:  backend,
		session:  session,
		now:      time.Now,
		state:    Loading,
		attached: true,
		answers:  make(map[model.QuestionID]string),
		review:   make(map[model.QuestionID]bool),
		visited:  make(map[model.QuestionID]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.attemptID == "" {
		r.attemptID = "attempt-" + uuid.NewString()
	}

	a, err := session.Current()
	if errors.Is(err, attempt.ErrNoAttempt) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("resolve attempt: %w", err)
	}
	if !a.Valid() {
		return nil, ErrInvalidSession
	}
	r.attempt = a
	r.testName = a.TestName
	r.remaining = attempt.Remaining(a, r.now())
	return r, nil
}

// Open is New followed by Load.
func Open(ctx context.Context, backend Backend, session Session, opts ...Option) (*Runner, error) {
	r, err := New(backend, session, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.Load(ctx); err != nil {
		return r, err
	}
	return r, nil
}

// Load fetches the question paper and activates the runner. On failure
// the runner moves to Failed.
func (r *Runner) Load(ctx context.Context) error {
	r.mu.Lock()
	if r.state != Loading {
		r.mu.Unlock()
		return ErrNotActive
	}
	testID := r.attempt.TestID
	r.mu.Unlock()

	paper, err := r.backend.Resume(ctx, testID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.state = Failed
		r.loadErr = err
		slog.Error("failed to load test", "test_id", testID, "error", err)
		return fmt.Errorf("load test %d: %w", testID, err)
	}

	r.questions = paper.Questions
	r.byID = make(map[model.QuestionID]int, len(paper.Questions))
	for i, q := range paper.Questions {
		r.byID[q.ID] = i
	}
	r.sections, r.groups = GroupBySection(paper.Questions)
	if len(r.sections) > 0 {
		r.section = r.sections[0]
	}
	r.pos = 0
	if r.testName == "" {
		r.testName = paper.TestName
	}
	r.remaining = attempt.Remaining(r.attempt, r.now())
	r.state = Active
	r.markVisited()
	slog.Info("test loaded", "test_id", testID, "questions", len(r.questions),
		"sections", len(r.sections), "remaining", r.remaining)
	return nil
}

// State returns the current lifecycle stage.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// LoadErr returns the error that moved the runner to Failed.
func (r *Runner) LoadErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadErr
}

// TestID returns the id of the test being taken.
func (r *Runner) TestID() int64 { return r.attempt.TestID }

// TestName returns the display name of the test.
func (r *Runner) TestName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.testName
}

// AttemptID returns the id sent with the submission.
func (r *Runner) AttemptID() string { return r.attemptID }

// ResultID returns the result id after a successful submission.
func (r *Runner) ResultID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resultID
}

// Remaining returns the time left on the countdown.
func (r *Runner) Remaining() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}

// Sections returns the section names in display order.
func (r *Runner) Sections() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sections...)
}

// CurrentSection returns the name of the selected section.
func (r *Runner) CurrentSection() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.section
}

// Position returns the zero-based index of the current question within
// its section and the section's size.
func (r *Runner) Position() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos, len(r.groups[r.section])
}

// Current returns the question under the pointer.
func (r *Runner) Current() (model.Question, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current()
}

func (r *Runner) current() (model.Question, bool) {
	idx := r.groups[r.section]
	if r.pos < 0 || r.pos >= len(idx) {
		return model.Question{}, false
	}
	return r.questions[idx[r.pos]], true
}

func (r *Runner) markVisited() {
	if q, ok := r.current(); ok {
		r.visited[q.ID] = true
	}
}

// Answer returns the selected letter for qid, or "".
func (r *Runner) Answer(qid model.QuestionID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.answers[qid]
}

// Answers returns a copy of the answer map.
func (r *Runner) Answers() map[model.QuestionID]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.answers)
}

// Reviewed reports whether qid is marked for review.
func (r *Runner) Reviewed(qid model.QuestionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.review[qid]
}

// SelectOption records letter as the answer to qid, replacing any previous
// answer. The letter must name one of the question's options.
func (r *Runner) SelectOption(qid model.QuestionID, letter string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Active {
		return ErrNotActive
	}
	i, ok := r.byID[qid]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, qid)
	}
	opt, ok := model.OptionIndex(letter)
	if !ok || opt >= len(r.questions[i].Options) {
		return fmt.Errorf("%w: %q for question %s", ErrInvalidOption, letter, qid)
	}
	r.answers[qid] = model.Letter(opt)
	return nil
}

// ClearAnswer removes the answer to qid, if any.
func (r *Runner) ClearAnswer(qid model.QuestionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Active {
		return ErrNotActive
	}
	if _, ok := r.byID[qid]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, qid)
	}
	delete(r.answers, qid)
	return nil
}

// ToggleReview flips the review flag of qid and returns the new value.
func (r *Runner) ToggleReview(qid model.QuestionID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Active {
		return false, ErrNotActive
	}
	if _, ok := r.byID[qid]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownQuestion, qid)
	}
	if r.review[qid] {
		delete(r.review, qid)
		return false, nil
	}
	r.review[qid] = true
	return true, nil
}

// Next moves to the following question of the current section. At the
// last question it does nothing and returns false.
func (r *Runner) Next() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Active || r.pos+1 >= len(r.groups[r.section]) {
		return false
	}
	r.pos++
	r.markVisited()
	return true
}

// Prev moves to the preceding question of the current section. At the
// first question it does nothing and returns false.
func (r *Runner) Prev() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Active || r.pos == 0 {
		return false
	}
	r.pos--
	r.markVisited()
	return true
}

// JumpTo moves the pointer to qid, switching sections if needed.
func (r *Runner) JumpTo(qid model.QuestionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Active {
		return ErrNotActive
	}
	i, ok := r.byID[qid]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, qid)
	}
	section := r.questions[i].Section
	if section == "" {
		section = model.DefaultSection
	}
	for pos, idx := range r.groups[section] {
		if idx == i {
			r.section = section
			r.pos = pos
			r.markVisited()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownQuestion, qid)
}

// ChangeSection selects a section and resets the pointer to its first question.
func (r *Runner) ChangeSection(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Active {
		return ErrNotActive
	}
	if _, ok := r.groups[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSection, name)
	}
	r.section = name
	r.pos = 0
	r.markVisited()
	return nil
}

// Tick advances the countdown by one second, or further when the clock
// shows less time left, so the countdown never lags behind the clock. It
// returns true exactly once: on the tick that finds no time left while the
// runner is active and attached. The caller then submits automatically.
func (r *Runner) Tick() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Active || !r.attached || r.expired {
		return false
	}
	if r.remaining > 0 {
		r.remaining = min(r.remaining-time.Second, attempt.Remaining(r.attempt, r.now()))
		if r.remaining < 0 {
			r.remaining = 0
		}
	}
	if r.remaining == 0 {
		r.expired = true
		slog.Info("time is up", "test_id", r.attempt.TestID)
		return true
	}
	return false
}

// Expired reports whether the countdown has run out.
func (r *Runner) Expired() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expired
}

// Detach marks the runner as no longer displayed. Later ticks are ignored.
func (r *Runner) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached = false
}

// Submit sends the answers. Only one submission can be in flight; callers
// racing with it get ErrSubmitInFlight and callers after a successful one
// get ErrAlreadySubmitted. On success the attempt marker is cleared and
// the result id returned. On failure the runner becomes Active again so
// the user can retry; nothing is retried automatically.
func (r *Runner) Submit(ctx context.Context, automatic bool) (int64, error) {
	r.mu.Lock()
	switch r.state {
	case Active:
	case Submitting:
		r.mu.Unlock()
		return 0, ErrSubmitInFlight
	case Submitted:
		r.mu.Unlock()
		return 0, ErrAlreadySubmitted
	default:
		r.mu.Unlock()
		return 0, ErrNotActive
	}
	r.state = Submitting
	sub := model.Submission{
		Answers:          maps.Clone(r.answers),
		TimeTakenSeconds: r.timeTaken(),
	}
	testID := r.attempt.TestID
	r.mu.Unlock()

	slog.Info("submitting test", "test_id", testID, "attempt_id", r.attemptID,
		"answered", len(sub.Answers), "automatic", automatic)
	resp, err := r.backend.Submit(ctx, testID, r.attemptID, sub)
	if err == nil && resp.ResultID <= 0 {
		err = ErrNoResult
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.state = Active
		slog.Error("submission failed", "test_id", testID, "automatic", automatic, "error", err)
		return 0, fmt.Errorf("submit test %d: %w", testID, err)
	}
	r.state = Submitted
	r.resultID = resp.ResultID
	if err := r.session.Clear(); err != nil {
		slog.Warn("failed to clear attempt marker", "error", err)
	}
	slog.Info("test submitted", "test_id", testID, "result_id", resp.ResultID)
	return resp.ResultID, nil
}

func (r *Runner) timeTaken() int {
	dur := r.attempt.Duration
	if dur <= 0 {
		dur = model.DefaultDuration
	}
	taken := dur - r.remaining
	if taken < 0 {
		taken = 0
	}
	return int(taken / time.Second)
}
