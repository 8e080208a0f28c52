package api

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pavelanni/mocktest/internal/devserver"
	"github.com/pavelanni/mocktest/internal/model"
)

func newDevBackend(t *testing.T) (*Client, *memCookies, func(email string) string) {
	t.Helper()
	seed, err := devserver.DefaultSeed()
	if err != nil {
		t.Fatal(err)
	}
	var mu sync.Mutex
	codes := map[string]string{}
	s, err := devserver.New(":memory:", seed, devserver.WithOTPDelivery(func(email, code string) {
		mu.Lock()
		defer mu.Unlock()
		codes[email] = code
	}))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	cookies := newMemCookies()
	c := New(srv.URL, NewCookieCredentials(cookies), WithRetry(fastRetry))
	return c, cookies, func(email string) string {
		mu.Lock()
		defer mu.Unlock()
		return codes[email]
	}
}

func TestIntegrationTakeTest(t *testing.T) {
	c, cookies, _ := newDevBackend(t)
	ctx := context.Background()

	if _, err := c.ResultsSummary(ctx); !IsAuth(err) {
		t.Fatalf("ResultsSummary before login = %v, want auth error", err)
	}

	acct, err := c.Login(ctx, "demo@example.com", "demo1234")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if acct.Username != "demo" {
		t.Errorf("account = %+v", acct)
	}
	if v, _ := cookies.GetCredential(SessionCookie); v == "" {
		t.Fatal("session cookie not stored")
	}

	tests, err := c.ListTests(ctx, model.KindFull)
	if err != nil {
		t.Fatal(err)
	}
	if len(tests) == 0 || tests[0].Duration().Minutes() != 20 {
		t.Fatalf("tests = %+v", tests)
	}

	paper, err := c.Resume(ctx, tests[0].ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if len(paper.Questions) != 9 || paper.Questions[0].PassageID != "P1" || len(paper.Questions[0].Options) != 5 {
		t.Fatalf("paper = %+v", paper)
	}

	answers := map[model.QuestionID]string{"1": "C", "4": "A"}
	resp, err := c.Submit(ctx, tests[0].ID, "attempt-it", model.Submission{Answers: answers, TimeTakenSeconds: 300})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	summary, err := c.ResultsSummary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary) != 1 || summary[0].ID != resp.ResultID || summary[0].SubmittedAt.IsZero() {
		t.Errorf("summary = %+v", summary)
	}

	res, err := c.Preview(ctx, resp.ResultID)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if res.Score != 0.75 || len(res.Questions) != 9 || res.Analytics == nil {
		t.Errorf("result = %+v", res)
	}
	if q := res.Questions[0]; !q.IsCorrect || q.Text == "" || q.PassageText == "" {
		t.Errorf("first question = %+v", q)
	}
	if q := res.Questions[3]; q.IsCorrect || q.Selected != "A" || q.Correct != "C" {
		t.Errorf("fourth question = %+v", q)
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Profile(ctx); !IsAuth(err) {
		t.Errorf("Profile after logout = %v", err)
	}
}

func TestIntegrationAccountFlows(t *testing.T) {
	c, _, otpFor := newDevBackend(t)
	ctx := context.Background()

	p, err := c.Signup(ctx, SignupRequest{
		FullName: "Asha Rao", Username: "asha", Email: "asha@example.com", Password: "secret1", Gender: "female",
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if p.Username != "asha" {
		t.Errorf("profile = %+v", p)
	}
	_, err = c.Signup(ctx, SignupRequest{FullName: "A", Username: "asha", Email: "x@example.com", Password: "secret1"})
	if KindOf(err) != KindValidation || DetailOf(err) != "Username already taken" {
		t.Errorf("duplicate signup = %v", err)
	}

	if _, err := c.ForgotPassword(ctx, "nobody@example.com"); !IsNotFound(err) {
		t.Errorf("ForgotPassword(unknown) = %v", err)
	}
	if _, err := c.ForgotPassword(ctx, "asha@example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.VerifyOTP(ctx, "asha@example.com", otpFor("asha@example.com")); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if _, err := c.ResetPassword(ctx, "asha@example.com", "newpass1"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Login(ctx, "asha@example.com", "secret1"); err == nil {
		t.Error("old password still accepted")
	}
	if _, err := c.Login(ctx, "asha@example.com", "newpass1"); err != nil {
		t.Fatalf("Login with new password: %v", err)
	}

	got, err := c.UpdateProfile(ctx, model.ProfileDetails{FullName: "Asha R.", DOB: "2001-04-09", Gender: "female"})
	if err != nil {
		t.Fatal(err)
	}
	if got.FullName != "Asha R." {
		t.Errorf("updated = %+v", got)
	}
	prof, err := c.Profile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if prof.Details.DOB != "2001-04-09" {
		t.Errorf("profile after update = %+v", prof)
	}
}
