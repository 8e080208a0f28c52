// Package syllabus provides the built-in exam pattern and syllabus reference.
package syllabus

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed data/exams.json
var dataFS embed.FS

// Detail is one labelled fact about an exam.
type Detail struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// PatternRow is one paper of a prelims or mains pattern.
type PatternRow struct {
	Subject   string `json:"subject"`
	Questions int    `json:"questions"`
	Marks     int    `json:"marks"`
	Duration  string `json:"duration"`
}

// Subject lists the topics of one subject.
type Subject struct {
	Subject string   `json:"subject"`
	Topics  []string `json:"topics"`
}

// Exam is the full reference entry of one exam.
type Exam struct {
	Name            string       `json:"name"`
	Details         []Detail     `json:"details"`
	PrelimsPattern  []PatternRow `json:"prelims_pattern"`
	MainsPattern    []PatternRow `json:"mains_pattern"`
	PrelimsSyllabus []Subject    `json:"prelims_syllabus"`
	MainsSyllabus   []Subject    `json:"mains_syllabus"`
	Interview       string       `json:"interview"`
}

// Totals sums questions and marks of a pattern.
func Totals(rows []PatternRow) (questions, marks int) {
	for _, r := range rows {
		questions += r.Questions
		marks += r.Marks
	}
	return questions, marks
}

var (
	once    sync.Once
	exams   []Exam
	loadErr error
)

func load() ([]Exam, error) {
	once.Do(func() {
		data, err := dataFS.ReadFile("data/exams.json")
		if err != nil {
			loadErr = fmt.Errorf("read syllabus: %w", err)
			return
		}
		if err := json.Unmarshal(data, &exams); err != nil {
			loadErr = fmt.Errorf("parse syllabus: %w", err)
		}
	})
	return exams, loadErr
}

// Names returns the exam names in display order.
func Names() []string {
	all, err := load()
	if err != nil {
		return nil
	}
	names := make([]string, len(all))
	for i, e := range all {
		names[i] = e.Name
	}
	return names
}

// Lookup finds an exam by name, ignoring case and surrounding spaces.
func Lookup(name string) (Exam, error) {
	all, err := load()
	if err != nil {
		return Exam{}, err
	}
	name = strings.TrimSpace(name)
	for _, e := range all {
		if strings.EqualFold(e.Name, name) {
			return e, nil
		}
	}
	return Exam{}, fmt.Errorf("unknown exam %q (available: %s)", name, strings.Join(Names(), ", "))
}
