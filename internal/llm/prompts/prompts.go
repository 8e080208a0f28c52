package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/mocktest/internal/model"
)

// FS holds the built-in explanation templates.
//
//go:embed templates/*.txt
var FS embed.FS

var systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)

// maxTextRunes caps question and passage text sent to the model.
const maxTextRunes = 4000

// PromptVariant selects how long an explanation should be.
type PromptVariant string

const (
	// PromptBrief asks for one or two sentences.
	PromptBrief PromptVariant = "brief"
	// PromptStandard is the default.
	PromptStandard PromptVariant = "standard"
	// PromptDetailed asks for a worked solution with a shortcut.
	PromptDetailed PromptVariant = "detailed"
)

var validVariants = map[PromptVariant]bool{
	PromptBrief:    true,
	PromptStandard: true,
	PromptDetailed: true,
}

var (
	loadOnce         sync.Once
	loadErr          error
	explainTemplates map[PromptVariant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// ExplainData holds template data for explanation prompts.
type ExplainData struct {
	Section  string
	Passage  string
	Question string
	Options  []string
	Correct  string
	Selected string
}

// Load loads prompt templates from fsys, which must contain
// templates/explain_<variant>.txt. Templates are loaded only once.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		explainTemplates = make(map[PromptVariant]*template.Template)
		for _, v := range []PromptVariant{PromptBrief, PromptStandard, PromptDetailed} {
			file := "templates/explain_" + string(v) + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + file + ": " + err.Error())
				return
			}
			tmpl, err := template.New("explain").Parse(string(content))
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + file + ": " + err.Error())
				return
			}
			explainTemplates[v] = tmpl
		}
	})
	return loadErr
}

// BuildExplainPrompt builds the system prompt asking why q's correct option
// is right.
func BuildExplainPrompt(variant PromptVariant, q model.ReviewQuestion) (string, error) {
	if explainTemplates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := explainTemplates[variant]
	if !ok {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	options := make([]string, len(q.Options))
	for i, o := range q.Options {
		options[i] = model.Letter(i) + ") " + sanitizeText(o)
	}
	selected := q.Selected
	if selected == "" {
		selected = "[not answered]"
	}
	data := ExplainData{
		Section:  q.Section,
		Passage:  sanitizeText(q.PassageText),
		Question: sanitizeText(q.Text),
		Options:  options,
		Correct:  q.Correct,
		Selected: selected,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitizeText strips tags that could be mistaken for prompt structure and
// truncates overly long text.
func sanitizeText(s string) string {
	s = systemInstructionsRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxTextRunes {
		runes := []rune(s)
		s = string(runes[:maxTextRunes]) + " [truncated]"
	}
	return s
}
