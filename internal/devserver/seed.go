package devserver

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/mocktest/internal/model"
)

//go:embed seed/default.json
var defaultSeed []byte

// SeedQuestion is one question with its answer key.
type SeedQuestion struct {
	ID               string   `json:"question_id"`
	Section          string   `json:"section"`
	Text             string   `json:"question"`
	Options          []string `json:"options"`
	Correct          string   `json:"correct"`
	Explanation      string   `json:"explanation,omitempty"`
	PassageID        string   `json:"passage_id,omitempty"`
	PassageText      string   `json:"passage_text,omitempty"`
	QuestionImage    string   `json:"question_image,omitempty"`
	PassageImage     string   `json:"passage_image,omitempty"`
	ExplanationImage string   `json:"explanation_image,omitempty"`
}

// SeedTest is a mock test with its questions.
type SeedTest struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Kind            model.TestKind `json:"kind"`
	Subject         string         `json:"subject,omitempty"`
	DurationMinutes int            `json:"duration_minutes"`
	Questions       []SeedQuestion `json:"questions"`
}

// SeedUser is an account created at start-up. Password is plain text.
type SeedUser struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
	DOB      string `json:"dob,omitempty"`
	Gender   string `json:"gender,omitempty"`
}

// Seed is the initial content of the backend.
type Seed struct {
	Users []SeedUser `json:"users"`
	Tests []SeedTest `json:"tests"`
}

// DefaultSeed returns the built-in demo content.
func DefaultSeed() (Seed, error) {
	return ParseSeed(defaultSeed)
}

// ParseSeed decodes and checks a seed document.
func ParseSeed(data []byte) (Seed, error) {
	var s Seed
	if err := json.Unmarshal(data, &s); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return s, s.validate()
}

func (s Seed) validate() error {
	ids := make(map[int64]bool)
	for _, t := range s.Tests {
		if t.ID <= 0 || strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("test %d %q: id and name are required", t.ID, t.Name)
		}
		if ids[t.ID] {
			return fmt.Errorf("duplicate test id %d", t.ID)
		}
		ids[t.ID] = true
		if t.Kind != model.KindFull && t.Kind != model.KindSubject {
			return fmt.Errorf("test %d: unknown kind %q", t.ID, t.Kind)
		}
		qids := make(map[string]bool)
		for _, q := range t.Questions {
			if q.ID == "" || qids[q.ID] {
				return fmt.Errorf("test %d: missing or duplicate question id %q", t.ID, q.ID)
			}
			qids[q.ID] = true
			idx, ok := model.OptionIndex(q.Correct)
			if !ok || idx >= len(q.Options) {
				return fmt.Errorf("test %d question %s: correct option %q out of range", t.ID, q.ID, q.Correct)
			}
		}
	}
	return nil
}

// apply loads the seed into d. Existing users are kept; tests are replaced.
func (d *db) apply(s Seed) error {
	for _, u := range s.Users {
		existing, err := d.userByEmail(u.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", u.Username, err)
		}
		if _, err := d.createUser(user{
			Username:     u.Username,
			Email:        u.Email,
			PasswordHash: string(hash),
			Details:      model.ProfileDetails{FullName: u.FullName, DOB: u.DOB, Gender: u.Gender},
		}); err != nil {
			return fmt.Errorf("create user %s: %w", u.Username, err)
		}
	}
	for _, t := range s.Tests {
		for i := range t.Questions {
			q := &t.Questions[i]
			q.Correct = strings.ToUpper(strings.TrimSpace(q.Correct))
			if strings.TrimSpace(q.Section) == "" {
				q.Section = model.DefaultSection
			}
		}
		dur := t.DurationMinutes
		if dur <= 0 {
			dur = int(model.DefaultDuration.Minutes())
		}
		st := storedTest{
			MockTest: model.MockTest{ID: t.ID, Name: t.Name, Subject: t.Subject, DurationMinutes: dur},
			Kind:     t.Kind,
		}
		if err := d.upsertTest(st, t.Questions); err != nil {
			return fmt.Errorf("store test %d: %w", t.ID, err)
		}
	}
	slog.Info("seed applied", "users", len(s.Users), "tests", len(s.Tests))
	return nil
}

// importFile applies a seed file unless the same content was imported
// before under name. A changed file is skipped so results of earlier runs
// keep matching their questions.
func (d *db) importFile(name string, data []byte) error {
	hash := sha256sum(data)
	stored, err := d.importedHash(name)
	if err != nil {
		return fmt.Errorf("check import status for %s: %w", name, err)
	}
	if stored == hash {
		slog.Info("seed file unchanged, skipping", "path", name)
		return nil
	}
	if stored != "" {
		slog.Warn("seed file changed since last import, skipping to avoid breaking existing results", "path", name)
		return nil
	}
	s, err := ParseSeed(data)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := d.apply(s); err != nil {
		return err
	}
	if err := d.setImportedHash(name, hash); err != nil {
		return fmt.Errorf("record import for %s: %w", name, err)
	}
	slog.Info("imported seed file", "path", name, "tests", len(s.Tests))
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
