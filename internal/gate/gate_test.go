package gate

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/pavelanni/mocktest/internal/api"
	"github.com/pavelanni/mocktest/internal/model"
)

type fakeStarter struct {
	begun []model.MockTest
	err   error
}

func (f *fakeStarter) Begin(test model.MockTest, now time.Time) (model.Attempt, error) {
	if f.err != nil {
		return model.Attempt{}, f.err
	}
	f.begun = append(f.begun, test)
	return model.Attempt{TestID: test.ID, TestName: test.Name, StartedAt: now, Duration: test.Duration()}, nil
}

func TestInstructionsMissingTest(t *testing.T) {
	if _, err := NewInstructions(model.MockTest{}, &fakeStarter{}); !errors.Is(err, ErrMissingTest) {
		t.Errorf("NewInstructions() = %v, want ErrMissingTest", err)
	}
}

func TestInstructionsWaitAndAcknowledge(t *testing.T) {
	st := &fakeStarter{}
	g, err := NewInstructions(model.MockTest{ID: 1, Name: "Mock", DurationMinutes: 20}, st)
	if err != nil {
		t.Fatal(err)
	}
	if g.WaitRemaining() != MinimumWait {
		t.Fatalf("WaitRemaining() = %v", g.WaitRemaining())
	}

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := g.Start(now); !errors.Is(err, ErrNotReady) {
		t.Errorf("Start() before acknowledge = %v, want ErrNotReady", err)
	}

	g.Acknowledge(true)
	if g.CanStart() {
		t.Error("CanStart() must wait for the countdown")
	}
	if _, err := g.Start(now); !errors.Is(err, ErrWaitPending) {
		t.Errorf("Start() during wait = %v, want ErrWaitPending", err)
	}

	for i := 0; i < 59; i++ {
		g.Tick()
	}
	if g.CanStart() {
		t.Error("CanStart() after 59 ticks should be false")
	}
	g.Tick()
	if !g.CanStart() {
		t.Fatal("CanStart() after 60 ticks should be true")
	}
	g.Tick()
	if g.WaitRemaining() != 0 {
		t.Errorf("wait went below zero: %v", g.WaitRemaining())
	}

	// Un-ticking the box blocks the start again.
	g.Acknowledge(false)
	if g.CanStart() {
		t.Error("CanStart() without acknowledgement should be false")
	}
	g.Acknowledge(true)

	a, err := g.Start(now)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if a.TestID != 1 || a.Duration != 20*time.Minute || !a.StartedAt.Equal(now) {
		t.Errorf("attempt = %+v", a)
	}
	if len(st.begun) != 1 {
		t.Errorf("Begin called %d times", len(st.begun))
	}
}

func TestInstructionsStartError(t *testing.T) {
	st := &fakeStarter{err: errors.New("disk full")}
	g, _ := NewInstructions(model.MockTest{ID: 2}, st, WithWait(0))
	g.Acknowledge(true)
	if _, err := g.Start(time.Now()); err == nil {
		t.Error("expected error from Start")
	}
}

func TestRuleData(t *testing.T) {
	g, _ := NewInstructions(model.MockTest{ID: 2, DurationMinutes: 45}, &fakeStarter{})
	data := g.RuleData()
	if data["Minutes"] != 45 {
		t.Errorf("Minutes = %v", data["Minutes"])
	}
	if data["Penalty"] != "0.25" {
		t.Errorf("Penalty = %v", data["Penalty"])
	}
}

type fakeProfiles struct {
	calls int
	err   error
}

func (f *fakeProfiles) Profile(ctx context.Context) (model.Profile, error) {
	f.calls++
	if f.err != nil {
		return model.Profile{}, f.err
	}
	return model.Profile{Username: "asha"}, nil
}

func TestSessionCheck(t *testing.T) {
	tests := []struct {
		name      string
		creds     api.CredentialProvider
		err       error
		wantAuth  bool
		wantErr   bool
		wantCalls int
	}{
		{"no credentials", &api.BearerCredentials{}, nil, true, true, 0},
		{"accepted", &api.BearerCredentials{Token: "t"}, nil, false, false, 1},
		{"rejected", &api.BearerCredentials{Token: "t"}, &api.Error{Kind: api.KindAuth, Status: http.StatusUnauthorized}, true, true, 1},
		{"backend down", &api.BearerCredentials{Token: "t"}, &api.Error{Kind: api.KindNetwork}, false, true, 1},
		{"nil provider always asks", nil, nil, false, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeProfiles{err: tt.err}
			p, err := NewSession(src, tt.creds).Check(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
			if api.IsAuth(err) != tt.wantAuth {
				t.Errorf("IsAuth = %v, want %v", api.IsAuth(err), tt.wantAuth)
			}
			if src.calls != tt.wantCalls {
				t.Errorf("profile calls = %d, want %d", src.calls, tt.wantCalls)
			}
			if err == nil && p.Username != "asha" {
				t.Errorf("profile = %+v", p)
			}
		})
	}
}
