package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultSection is used for questions that carry no section name.
const DefaultSection = "General"

// DefaultDuration applies when a test does not report its own duration.
const DefaultDuration = 60 * time.Minute

// MaxOptions is the largest number of answer options a question may have.
const MaxOptions = 5

// TestKind selects one of the two test listings.
type TestKind string

const (
	// KindFull lists full-length mock tests.
	KindFull TestKind = "full"
	// KindSubject lists subject-wise mock tests.
	KindSubject TestKind = "subject"
)

// QuestionID identifies a question. The backend emits it either as a JSON
// number or as a string, so it is kept in canonical string form.
type QuestionID string

// UnmarshalJSON accepts both `"12"` and `12`.
func (id *QuestionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = QuestionID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("question id: %w", err)
	}
	*id = QuestionID(n.String())
	return nil
}

// Percent is a percentage the backend may encode as a number or a numeric string.
type Percent float64

// UnmarshalJSON accepts `80`, `80.5`, `"80.5"` and `""`.
func (p *Percent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*p = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("percentage %q: %w", s, err)
		}
		*p = Percent(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("percentage: %w", err)
	}
	*p = Percent(f)
	return nil
}

// Timestamp decodes the backend's timestamps, which may lack a zone offset.
// Zone-less values are taken as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON accepts RFC 3339 and zone-less ISO 8601 strings.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp %q: unrecognised format", s)
}

// MarshalJSON writes RFC 3339, or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// MockTest is one entry of a test listing.
type MockTest struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Subject         string `json:"subject,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	TotalQuestions  int    `json:"total_questions"`
}

// Duration returns the test duration, falling back to DefaultDuration.
func (t MockTest) Duration() time.Duration {
	if t.DurationMinutes <= 0 {
		return DefaultDuration
	}
	return time.Duration(t.DurationMinutes) * time.Minute
}

// ResultSummary is one row of the signed-in user's results summary.
type ResultSummary struct {
	ID             int64     `json:"id"`
	MockTestID     int64     `json:"mocktest_id"`
	Score          float64   `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	Percentage     Percent   `json:"percentage"`
	Status         string    `json:"status,omitempty"`
	SubmittedAt    Timestamp `json:"submitted_at"`
}

// Images groups the optional image URLs attached to a question.
type Images struct {
	Question    string `json:"question,omitempty"`
	Passage     string `json:"passage,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// Question is a multiple-choice question as served for a test run.
type Question struct {
	ID          QuestionID `json:"question_id"`
	Section     string     `json:"section"`
	Text        string     `json:"question"`
	Options     []string   `json:"options"`
	PassageID   string     `json:"passage_id,omitempty"`
	PassageText string     `json:"passage_text,omitempty"`
	Images      Images     `json:"-"`
}

// questionWire mirrors the backend's flat question object.
type questionWire struct {
	ID               QuestionID `json:"question_id"`
	Section          string     `json:"section"`
	Question         string     `json:"question"`
	QuestionText     string     `json:"question_text,omitempty"`
	Options          []string   `json:"options"`
	OptionA          string     `json:"option_a,omitempty"`
	OptionB          string     `json:"option_b,omitempty"`
	OptionC          string     `json:"option_c,omitempty"`
	OptionD          string     `json:"option_d,omitempty"`
	OptionE          string     `json:"option_e,omitempty"`
	PassageID        string     `json:"passage_id,omitempty"`
	PassageText      string     `json:"passage_text,omitempty"`
	QuestionImage    string     `json:"question_image,omitempty"`
	PassageImage     string     `json:"passage_image,omitempty"`
	ExplanationImage string     `json:"explanation_image,omitempty"`
}

func (w questionWire) question() Question {
	text := w.Question
	if text == "" {
		text = w.QuestionText
	}
	options := w.Options
	if len(options) == 0 {
		options = []string{w.OptionA, w.OptionB, w.OptionC, w.OptionD, w.OptionE}
	}
	section := strings.TrimSpace(w.Section)
	if section == "" {
		section = DefaultSection
	}
	return Question{
		ID:          w.ID,
		Section:     section,
		Text:        text,
		Options:     trimOptions(options),
		PassageID:   w.PassageID,
		PassageText: w.PassageText,
		Images: Images{
			Question:    w.QuestionImage,
			Passage:     w.PassageImage,
			Explanation: w.ExplanationImage,
		},
	}
}

// UnmarshalJSON decodes the backend's flat representation, including the
// legacy option_a..option_e columns.
func (q *Question) UnmarshalJSON(data []byte) error {
	var w questionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*q = w.question()
	return nil
}

// MarshalJSON writes the backend's flat representation.
func (q Question) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.wire())
}

func (q Question) wire() questionWire {
	return questionWire{
		ID:               q.ID,
		Section:          q.Section,
		Question:         q.Text,
		Options:          q.Options,
		PassageID:        q.PassageID,
		PassageText:      q.PassageText,
		QuestionImage:    q.Images.Question,
		PassageImage:     q.Images.Passage,
		ExplanationImage: q.Images.Explanation,
	}
}

// trimOptions drops trailing blank options and caps the list at MaxOptions.
func trimOptions(options []string) []string {
	if len(options) > MaxOptions {
		options = options[:MaxOptions]
	}
	out := make([]string, len(options))
	for i, o := range options {
		out[i] = strings.TrimSpace(o)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

// Letter returns the option letter for a zero-based option index.
func Letter(i int) string {
	return string(rune('A' + i))
}

// OptionIndex converts an option letter to its zero-based index.
func OptionIndex(letter string) (int, bool) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if len(letter) != 1 || letter[0] < 'A' || letter[0] >= 'A'+MaxOptions {
		return 0, false
	}
	return int(letter[0] - 'A'), true
}

// TestPaper is the payload of the resume endpoint.
type TestPaper struct {
	TestName        string     `json:"test_name"`
	DurationMinutes int        `json:"duration_minutes"`
	Questions       []Question `json:"questions"`
}

// Attempt is the locally persisted marker of an in-progress test.
type Attempt struct {
	TestID    int64
	TestName  string
	StartedAt time.Time
	Duration  time.Duration
}

// Valid reports whether the attempt has a test and a start time.
func (a Attempt) Valid() bool {
	return a.TestID > 0 && !a.StartedAt.IsZero()
}

// Submission is the body of the submit endpoint.
type Submission struct {
	Answers          map[QuestionID]string `json:"answers"`
	TimeTakenSeconds int                   `json:"time_taken_seconds"`
}

// SubmitResponse is returned by the submit endpoint.
type SubmitResponse struct {
	Message  string `json:"msg"`
	ResultID int64  `json:"result_id"`
}

// ReviewQuestion is a graded question in a result preview.
type ReviewQuestion struct {
	Question
	Selected    string
	Correct     string
	IsCorrect   bool
	Explanation string
}

type reviewWire struct {
	questionWire
	Selected    string `json:"selected"`
	Correct     string `json:"correct"`
	IsCorrect   bool   `json:"is_correct"`
	Explanation string `json:"explanation"`
}

// UnmarshalJSON decodes a graded question.
func (rq *ReviewQuestion) UnmarshalJSON(data []byte) error {
	var w reviewWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*rq = ReviewQuestion{
		Question:    w.question(),
		Selected:    strings.ToUpper(strings.TrimSpace(w.Selected)),
		Correct:     strings.ToUpper(strings.TrimSpace(w.Correct)),
		IsCorrect:   w.IsCorrect,
		Explanation: w.Explanation,
	}
	return nil
}

// MarshalJSON writes the graded question in the backend's flat form.
func (rq ReviewQuestion) MarshalJSON() ([]byte, error) {
	return json.Marshal(reviewWire{
		questionWire: rq.Question.wire(),
		Selected:     rq.Selected,
		Correct:      rq.Correct,
		IsCorrect:    rq.IsCorrect,
		Explanation:  rq.Explanation,
	})
}

// Attempted reports whether the user picked an option.
func (rq ReviewQuestion) Attempted() bool { return rq.Selected != "" }

// SectionSummary is the per-section breakdown of a result.
type SectionSummary struct {
	SectionName string  `json:"section_name"`
	Attempted   int     `json:"attempted"`
	Correct     int     `json:"correct"`
	Wrong       int     `json:"wrong"`
	Unattempted int     `json:"unattempted"`
	Marks       float64 `json:"marks"`
	Percentage  float64 `json:"percentage"`
}

// Analytics compares a result against every other attempt of the test.
type Analytics struct {
	TopperScore     float64 `json:"topper_score"`
	Rank            int     `json:"rank"`
	TotalUsers      int     `json:"total_users"`
	Percentile      float64 `json:"percentile"`
	PerformanceBand string  `json:"performance_band"`
}

// Result is a graded attempt as returned by the preview endpoint.
type Result struct {
	ID              int64            `json:"id"`
	MockTestID      int64            `json:"mocktest_id"`
	Score           float64          `json:"score"`
	TotalQuestions  int              `json:"total_questions"`
	Percentage      Percent          `json:"percentage"`
	SubmittedAt     Timestamp        `json:"submitted_at"`
	Questions       []ReviewQuestion `json:"questions"`
	SectionsSummary []SectionSummary `json:"sections_summary"`
	Analytics       *Analytics       `json:"analytics,omitempty"`
}

// Account identifies a signed-in user as reported by login.
type Account struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ProfileDetails are the editable profile fields.
type ProfileDetails struct {
	FullName string `json:"full_name"`
	DOB      string `json:"dob"`
	Gender   string `json:"gender"`
}

// Profile is the signed-in user's account.
type Profile struct {
	ID       int64          `json:"id,omitempty"`
	Username string         `json:"username"`
	Email    string         `json:"email"`
	Details  ProfileDetails `json:"profile"`
}

// PaletteColor is the status colour of one question in a palette.
type PaletteColor string

const (
	PaletteNeutral  PaletteColor = "neutral"
	PaletteReviewed PaletteColor = "reviewed"
	PaletteCurrent  PaletteColor = "current"
	PaletteAnswered PaletteColor = "answered"
	PaletteCorrect  PaletteColor = "correct"
	PaletteWrong    PaletteColor = "wrong"
)

// PaletteEntry is one cell of a palette.
type PaletteEntry struct {
	QuestionID QuestionID
	Color      PaletteColor
}
