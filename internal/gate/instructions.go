// Package gate holds the checks a user passes before taking a test: a
// valid session and the acknowledged instructions.
package gate

import (
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/mocktest/internal/model"
)

var (
	ErrMissingTest = errors.New("no test selected")
	ErrNotReady    = errors.New("instructions not acknowledged")
	ErrWaitPending = errors.New("instructions wait has not elapsed")
)

// MinimumWait is how long the instructions stay on screen before the test
// can start.
const MinimumWait = 60 * time.Second

// WrongAnswerPenalty is the mark deducted for each wrong answer.
const WrongAnswerPenalty = 0.25

// RuleIDs are the message ids of the instructions, in display order.
var RuleIDs = []string{
	"RuleDuration",
	"RulePenalty",
	"RuleDoNotClose",
	"RuleTimerStarts",
	"RuleNavigation",
	"RuleMarkForReview",
	"RuleAutoSubmit",
}

// Starter records the start of an attempt.
type Starter interface {
	Begin(test model.MockTest, now time.Time) (model.Attempt, error)
}

// Instructions is the pre-test screen state: the user must acknowledge the
// rules and wait MinimumWait before starting.
type Instructions struct {
	test         model.MockTest
	starter      Starter
	acknowledged bool
	wait         time.Duration
}

// InstructionsOption configures Instructions.
type InstructionsOption func(*Instructions)

// WithWait overrides MinimumWait.
func WithWait(d time.Duration) InstructionsOption {
	return func(g *Instructions) {
		if d >= 0 {
			g.wait = d
		}
	}
}

// NewInstructions returns the gate for test. A test without an id yields
// ErrMissingTest.
func NewInstructions(test model.MockTest, starter Starter, opts ...InstructionsOption) (*Instructions, error) {
	if test.ID <= 0 {
		return nil, ErrMissingTest
	}
	g := &Instructions{test: test, starter: starter, wait: MinimumWait}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Test returns the test being introduced.
func (g *Instructions) Test() model.MockTest { return g.test }

// RuleData is the template data for the messages in RuleIDs.
func (g *Instructions) RuleData() map[string]any {
	return map[string]any{
		"Minutes": int(g.test.Duration() / time.Minute),
		"Penalty": fmt.Sprintf("%.2f", WrongAnswerPenalty),
	}
}

// Acknowledge sets the "I have read the instructions" flag.
func (g *Instructions) Acknowledge(ok bool) { g.acknowledged = ok }

// Acknowledged reports the flag.
func (g *Instructions) Acknowledged() bool { return g.acknowledged }

// Tick counts one second off the wait.
func (g *Instructions) Tick() {
	if g.wait > 0 {
		g.wait -= time.Second
		if g.wait < 0 {
			g.wait = 0
		}
	}
}

// WaitRemaining returns the time left before the test may start.
func (g *Instructions) WaitRemaining() time.Duration { return g.wait }

// CanStart reports whether the rules were acknowledged and the wait elapsed.
func (g *Instructions) CanStart() bool { return g.acknowledged && g.wait == 0 }

// Start writes the attempt marker and returns the attempt for the runner.
func (g *Instructions) Start(now time.Time) (model.Attempt, error) {
	if !g.acknowledged {
		return model.Attempt{}, ErrNotReady
	}
	if g.wait > 0 {
		return model.Attempt{}, ErrWaitPending
	}
	a, err := g.starter.Begin(g.test, now)
	if err != nil {
		return model.Attempt{}, fmt.Errorf("start test %d: %w", g.test.ID, err)
	}
	return a, nil
}
