// Package devserver is an in-process implementation of the mock-test
// backend, used for local development and integration tests.
package devserver

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/mocktest/internal/forms"
	"github.com/pavelanni/mocktest/internal/model"
)

const sessionCookieName = "session"

// Server holds the backend state.
type Server struct {
	db            *db
	now           func() time.Time
	deliverOTP    func(email, code string)
	secureCookies bool
	requestLog    bool
}

// Option configures a Server.
type Option func(*Server)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithOTPDelivery sets how password reset codes reach the user. The
// default logs them.
func WithOTPDelivery(fn func(email, code string)) Option {
	return func(s *Server) { s.deliverOTP = fn }
}

// WithSecureCookies sets the Secure flag on the session cookie.
func WithSecureCookies(on bool) Option {
	return func(s *Server) { s.secureCookies = on }
}

// WithRequestLog enables per-request access logging.
func WithRequestLog(on bool) Option {
	return func(s *Server) { s.requestLog = on }
}

// New opens the database at path (":memory:" for a throwaway backend) and
// applies seed.
func New(path string, seed Seed, opts ...Option) (*Server, error) {
	s := &Server{
		now: time.Now,
		deliverOTP: func(email, code string) {
			slog.Info("password reset code issued", "email", email, "otp", code)
		},
	}
	for _, o := range opts {
		o(s)
	}
	d, err := openDB(path, func() time.Time { return s.now() })
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := d.apply(seed); err != nil {
		d.Close()
		return nil, fmt.Errorf("apply seed: %w", err)
	}
	if err := d.cleanupExpiredSessions(); err != nil {
		slog.Warn("failed to clean up expired sessions", "error", err)
	}
	s.db = d
	return s, nil
}

// Import applies an additional seed file, once per distinct content.
func (s *Server) Import(name string, data []byte) error {
	return s.db.importFile(name, data)
}

// Close releases the database.
func (s *Server) Close() error { return s.db.Close() }

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	if s.requestLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	s.Routes(r)
	return r
}

// Routes registers all HTTP routes.
func (s *Server) Routes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Post("/forgot-password", s.handleForgotPassword)
		r.Post("/verify-otp", s.handleVerifyOTP)
		r.Post("/reset-password", s.handleResetPassword)
		r.With(s.requireAuth).Get("/profile", s.handleProfile)
		r.With(s.requireAuth).Put("/profile", s.handleUpdateProfile)
	})
	r.Route("/mocktests", func(r chi.Router) {
		r.Get("/full", s.handleListTests(model.KindFull))
		r.Get("/subject", s.handleListTests(model.KindSubject))
		r.Get("/{testID}/resume", s.handleResume)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/results/summary", s.handleResultsSummary)
			r.Post("/{testID}/submit/{attemptID}", s.handleSubmit)
			r.Get("/result/{resultID}/preview", s.handlePreview)
		})
	})
}

type ctxKey struct{}

func userFromContext(ctx context.Context) *user {
	u, _ := ctx.Value(ctxKey{}).(*user)
	return u
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// requireAuth checks the session cookie or bearer token.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		u, err := s.db.authSessionUser(token)
		if err != nil {
			slog.Error("failed to get auth session", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if u == nil {
			writeError(w, http.StatusUnauthorized, "Session expired or invalid")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

type fieldIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// writeValidation reports invalid input as a 422 with one entry per field.
func writeValidation(w http.ResponseWriter, err error) {
	fields := forms.FieldErrors(err)
	if fields == nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []fieldIssue{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}},
		})
		return
	}
	issues := make([]fieldIssue, 0, len(fields))
	for name, msg := range fields {
		issues = append(issues, fieldIssue{Loc: []string{"body", name}, Msg: msg, Type: "value_error"})
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": issues})
}

// decodeForm decodes the request body into form and validates it.
func decodeForm(w http.ResponseWriter, r *http.Request, form any) bool {
	if err := json.NewDecoder(r.Body).Decode(form); err != nil {
		writeValidation(w, fmt.Errorf("invalid JSON body: %w", err))
		return false
	}
	if err := forms.Validate(form); err != nil {
		writeValidation(w, err)
		return false
	}
	return true
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var f forms.Signup
	if !decodeForm(w, r, &f) {
		return
	}
	if u, err := s.db.userByUsername(f.Username); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	} else if u != nil {
		writeError(w, http.StatusBadRequest, "Username already taken")
		return
	}
	if u, err := s.db.userByEmail(f.Email); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	} else if u != nil {
		writeError(w, http.StatusBadRequest, "Email already registered")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(f.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	u := user{
		Username:     f.Username,
		Email:        f.Email,
		PasswordHash: string(hash),
		Details:      model.ProfileDetails{FullName: f.FullName, DOB: f.DOB, Gender: f.Gender},
	}
	id, err := s.db.createUser(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        id,
		"username":  u.Username,
		"email":     u.Email,
		"full_name": u.Details.FullName,
		"dob":       u.Details.DOB,
		"gender":    u.Details.Gender,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var f forms.Login
	if !decodeForm(w, r, &f) {
		return
	}
	u, err := s.db.userByEmail(f.Email)
	if err != nil {
		slog.Error("login lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(f.Password)) != nil {
		slog.Warn("failed login attempt", "email", f.Email)
		writeError(w, http.StatusBadRequest, "Invalid email or password")
		return
	}
	token, err := s.db.createAuthSession(u.ID)
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.setSessionCookie(w, token, int(authSessionTTL.Seconds()))
	slog.Info("user logged in", "username", u.Username)
	writeJSON(w, http.StatusOK, map[string]string{
		"msg":      "Login successful",
		"username": u.Username,
		"email":    u.Email,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := s.db.deleteAuthSession(token); err != nil {
			slog.Error("failed to delete auth session", "error", err)
		}
	}
	s.setSessionCookie(w, "", -1)
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Logged out"})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFromContext(r.Context()).profile())
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var f forms.Profile
	if !decodeForm(w, r, &f) {
		return
	}
	u := userFromContext(r.Context())
	details := model.ProfileDetails{FullName: f.FullName, DOB: f.DOB, Gender: f.Gender}
	if err := s.db.updateProfile(u.ID, details); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"msg": "Profile updated", "profile": details})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var f forms.Forgot
	if !decodeForm(w, r, &f) {
		return
	}
	u, err := s.db.userByEmail(f.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "Email not found")
		return
	}
	code, err := newOTP()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := s.db.saveOTP(f.Email, code); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.deliverOTP(f.Email, code)
	writeJSON(w, http.StatusOK, map[string]string{"msg": "OTP sent to email"})
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var f forms.OTP
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeValidation(w, fmt.Errorf("invalid JSON body: %w", err))
		return
	}
	email := strings.TrimSpace(f.Email)
	code, err := s.db.otp(email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if code == "" || code != strings.TrimSpace(f.Code) {
		writeError(w, http.StatusBadRequest, "Invalid OTP")
		return
	}
	if err := s.db.markOTPVerified(email); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"msg": "OTP verified"})
}

type resetRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"new_password"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, fmt.Errorf("invalid JSON body: %w", err))
		return
	}
	// The confirmation is checked client-side; the wire body carries only the new password.
	f := forms.Reset{Email: req.Email, NewPassword: req.NewPassword, Confirm: req.NewPassword}
	if err := forms.Validate(&f); err != nil {
		writeValidation(w, err)
		return
	}
	u, err := s.db.userByEmail(f.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "Email not found")
		return
	}
	verified, err := s.db.otpVerified(f.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !verified {
		writeError(w, http.StatusBadRequest, "OTP not verified")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(f.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := s.db.setPasswordHash(f.Email, string(hash)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.db.deleteOTP(f.Email); err != nil {
		slog.Warn("failed to delete OTP", "email", f.Email, "error", err)
	}
	slog.Info("password reset", "username", u.Username)
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Password reset successful"})
}

func (s *Server) handleListTests(kind model.TestKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tests, err := s.db.listTests(kind)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, tests)
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// loadTest resolves the {testID} URL parameter, writing the error response
// when it fails.
func (s *Server) loadTest(w http.ResponseWriter, r *http.Request) (*storedTest, []SeedQuestion, bool) {
	id, ok := pathID(r, "testID")
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid test id")
		return nil, nil, false
	}
	t, err := s.db.test(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, nil, false
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "Test not found")
		return nil, nil, false
	}
	qs, err := s.db.questions(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, nil, false
	}
	return t, qs, true
}

type resumeQuestion struct {
	ID               string   `json:"question_id"`
	Section          string   `json:"section"`
	Question         string   `json:"question"`
	Options          []string `json:"options"`
	PassageID        string   `json:"passage_id,omitempty"`
	PassageText      string   `json:"passage_text"`
	QuestionImage    string   `json:"question_image"`
	PassageImage     string   `json:"passage_image"`
	ExplanationImage string   `json:"explanation_image"`
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	t, qs, ok := s.loadTest(w, r)
	if !ok {
		return
	}
	questions := make([]resumeQuestion, 0, len(qs))
	for _, q := range qs {
		questions = append(questions, resumeQuestion{
			ID:               q.ID,
			Section:          q.Section,
			Question:         q.Text,
			Options:          q.Options,
			PassageID:        q.PassageID,
			PassageText:      q.PassageText,
			QuestionImage:    q.QuestionImage,
			PassageImage:     q.PassageImage,
			ExplanationImage: q.ExplanationImage,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"attempt_id":       fmt.Sprintf("attempt-%d-%d", t.ID, s.now().Unix()),
		"test_name":        t.Name,
		"duration_minutes": t.DurationMinutes,
		"questions":        questions,
		"answers_snapshot": map[string]string{},
		"remaining_time":   t.DurationMinutes * 60,
		"current_question": 0,
	})
}

type submitRequest struct {
	Answers          map[string]string `json:"answers"`
	TimeTakenSeconds int               `json:"time_taken_seconds"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	t, qs, ok := s.loadTest(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, fmt.Errorf("invalid JSON body: %w", err))
		return
	}
	u := userFromContext(r.Context())
	g := grade(qs, req.Answers)
	id, err := s.db.insertResult(resultRow{
		UserID:         u.ID,
		MockTestID:     t.ID,
		AttemptID:      chi.URLParam(r, "attemptID"),
		Score:          g.Score,
		TotalQuestions: len(qs),
		Percentage:     strconv.FormatFloat(g.Percentage, 'f', -1, 64),
		Status:         "completed",
		TimeTaken:      req.TimeTakenSeconds,
		Details:        g.Answers,
		SubmittedAt:    s.now().UTC(),
	})
	if err != nil {
		slog.Error("failed to save result", "test_id", t.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Database insert failed: "+err.Error())
		return
	}
	slog.Info("test submitted", "test_id", t.ID, "user", u.Username, "result_id", id,
		"correct", g.Correct, "wrong", g.Wrong, "score", g.Score)
	writeJSON(w, http.StatusOK, map[string]any{"msg": "submitted", "result_id": id})
}

type summaryRow struct {
	ID             int64   `json:"id"`
	MockTestID     int64   `json:"mocktest_id"`
	Score          float64 `json:"score"`
	TotalQuestions int     `json:"total_questions"`
	Percentage     string  `json:"percentage"`
	Status         string  `json:"status"`
	SubmittedAt    string  `json:"submitted_at"`
}

// backendTime formats timestamps the way the backend does: ISO 8601
// without a zone designator, in UTC.
func backendTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000")
}

func (s *Server) handleResultsSummary(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.resultsByUser(userFromContext(r.Context()).ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]summaryRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, summaryRow{
			ID:             row.ID,
			MockTestID:     row.MockTestID,
			Score:          row.Score,
			TotalQuestions: row.TotalQuestions,
			Percentage:     row.Percentage,
			Status:         row.Status,
			SubmittedAt:    backendTime(row.SubmittedAt),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type previewQuestion struct {
	ID               string   `json:"question_id"`
	QuestionText     string   `json:"question_text"`
	Options          []string `json:"options"`
	Selected         string   `json:"selected"`
	Correct          string   `json:"correct"`
	IsCorrect        bool     `json:"is_correct"`
	Section          string   `json:"section"`
	PassageID        string   `json:"passage_id"`
	PassageText      string   `json:"passage_text"`
	Explanation      string   `json:"explanation"`
	QuestionImage    string   `json:"question_image"`
	ExplanationImage string   `json:"explanation_image"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "resultID")
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid result id")
		return
	}
	res, err := s.db.result(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if res == nil || res.UserID != userFromContext(r.Context()).ID {
		writeError(w, http.StatusNotFound, "Result not found")
		return
	}
	qs, err := s.db.questions(res.MockTestID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	byID := make(map[string]SeedQuestion, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}

	questions := make([]previewQuestion, 0, len(res.Details))
	for _, a := range res.Details {
		q := byID[a.QuestionID]
		section := q.Section
		if section == "" {
			section = a.Section
		}
		questions = append(questions, previewQuestion{
			ID:               a.QuestionID,
			QuestionText:     q.Text,
			Options:          q.Options,
			Selected:         a.Selected,
			Correct:          a.Correct,
			IsCorrect:        a.IsCorrect,
			Section:          section,
			PassageID:        q.PassageID,
			PassageText:      q.PassageText,
			Explanation:      q.Explanation,
			QuestionImage:    q.QuestionImage,
			ExplanationImage: q.ExplanationImage,
		})
	}

	ranked, err := s.db.resultsByTest(res.MockTestID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":               res.ID,
		"mocktest_id":      res.MockTestID,
		"score":            res.Score,
		"total_questions":  res.TotalQuestions,
		"percentage":       res.Percentage,
		"submitted_at":     backendTime(res.SubmittedAt),
		"questions":        questions,
		"sections_summary": sectionSummary(res.Details),
		"analytics":        analytics(ranked, res.ID),
	})
}

// newOTP returns a random six-digit code.
func newOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate OTP: %w", err)
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}
