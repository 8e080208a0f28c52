// Package attempt owns the marker of the test the user is currently taking.
//
// The marker is written when the user starts a test from the instructions
// screen, read when the runner opens, and cleared after a successful
// submission or when the user abandons the attempt.
package attempt

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/mocktest/internal/model"
)

// ErrNoAttempt is returned when no usable attempt marker is stored.
var ErrNoAttempt = errors.New("no active attempt")

// Storage persists the single attempt record.
type Storage interface {
	SaveAttempt(a model.Attempt) error
	GetAttempt() (*model.Attempt, error)
	ClearAttempt() error
}

// Tracker reads and writes the attempt marker.
type Tracker struct {
	st Storage
}

// New creates a Tracker backed by st.
func New(st Storage) *Tracker {
	return &Tracker{st: st}
}

// Begin replaces any existing marker with a fresh attempt of test started at now.
func (t *Tracker) Begin(test model.MockTest, now time.Time) (model.Attempt, error) {
	if test.ID <= 0 {
		return model.Attempt{}, fmt.Errorf("begin attempt: invalid test id %d", test.ID)
	}
	a := model.Attempt{
		TestID:    test.ID,
		TestName:  test.Name,
		StartedAt: now.UTC(),
		Duration:  test.Duration(),
	}
	if err := t.st.SaveAttempt(a); err != nil {
		return model.Attempt{}, fmt.Errorf("save attempt: %w", err)
	}
	slog.Info("attempt started", "test_id", a.TestID, "duration", a.Duration)
	return a, nil
}

// Current returns the stored attempt. A missing record, or one without a
// test id or start time, yields ErrNoAttempt.
func (t *Tracker) Current() (model.Attempt, error) {
	a, err := t.st.GetAttempt()
	if err != nil {
		return model.Attempt{}, fmt.Errorf("read attempt: %w", err)
	}
	if a == nil || !a.Valid() {
		return model.Attempt{}, ErrNoAttempt
	}
	if a.Duration <= 0 {
		a.Duration = model.DefaultDuration
	}
	return *a, nil
}

// Clear removes the marker after a successful submission.
func (t *Tracker) Clear() error {
	if err := t.st.ClearAttempt(); err != nil {
		return fmt.Errorf("clear attempt: %w", err)
	}
	return nil
}

// Abandon removes the marker without submitting. The backend keeps no
// record of the abandoned attempt.
func (t *Tracker) Abandon() error {
	a, err := t.st.GetAttempt()
	if err != nil {
		return fmt.Errorf("read attempt: %w", err)
	}
	if a == nil {
		return ErrNoAttempt
	}
	if err := t.Clear(); err != nil {
		return err
	}
	slog.Info("attempt abandoned", "test_id", a.TestID)
	return nil
}

// Remaining returns how much of the attempt's time is left at now.
// Elapsed time is floored to whole seconds, the result never drops below
// zero, and a start time in the future leaves the full duration.
func Remaining(a model.Attempt, now time.Time) time.Duration {
	dur := a.Duration
	if dur <= 0 {
		dur = model.DefaultDuration
	}
	elapsed := now.Sub(a.StartedAt)
	if elapsed < 0 {
		return dur
	}
	elapsed = elapsed.Truncate(time.Second)
	if elapsed >= dur {
		return 0
	}
	return dur - elapsed
}
