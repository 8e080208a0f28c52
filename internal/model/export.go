package model

import "time"

// ResultExport is the JSON document written by `mocktest preview --json`.
type ResultExport struct {
	ResultID       int64            `json:"result_id"`
	TestID         int64            `json:"test_id"`
	TestName       string           `json:"test_name,omitempty"`
	Score          float64          `json:"score"`
	TotalQuestions int              `json:"total_questions"`
	Percentage     float64          `json:"percentage"`
	Verdict        string           `json:"verdict"`
	SubmittedAt    *time.Time       `json:"submitted_at,omitempty"`
	Sections       []SectionSummary `json:"sections"`
	Analytics      *Analytics       `json:"analytics,omitempty"`
	Questions      []QuestionExport `json:"questions"`
}

// QuestionExport holds per-question data for export.
type QuestionExport struct {
	ID          QuestionID `json:"question_id"`
	Section     string     `json:"section"`
	Text        string     `json:"text"`
	Options     []string   `json:"options"`
	Selected    string     `json:"selected,omitempty"`
	Correct     string     `json:"correct"`
	IsCorrect   bool       `json:"is_correct"`
	Explanation string     `json:"explanation,omitempty"`
}
