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

	"github.com/pavelanni/tutorportal/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxAnswerRunes = 10000

// PromptVariant represents a suggestion prompt variant.
type PromptVariant string

const (
	// PromptStrict is a strict variant for core courses.
	PromptStrict PromptVariant = "strict"
	// PromptStandard is the default variant.
	PromptStandard PromptVariant = "standard"
	// PromptLenient is a lenient variant for electives.
	PromptLenient PromptVariant = "lenient"
)

var validVariants = map[PromptVariant]bool{
	PromptStrict:   true,
	PromptStandard: true,
	PromptLenient:  true,
}

var (
	loadOnce        sync.Once
	loadErr         error
	suggestTemplate map[PromptVariant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// SuggestData holds template data for suggestion prompts.
type SuggestData struct {
	Title       string
	Description string
	Answer      string
}

// Load parses the embedded prompt templates once.
func Load() error {
	loadOnce.Do(func() {
		loadErr = load(templateFS)
	})
	return loadErr
}

func load(fsys fs.FS) error {
	tmpls := make(map[PromptVariant]*template.Template)
	for v := range validVariants {
		file := "templates/suggest_" + string(v) + ".txt"
		content, err := fs.ReadFile(fsys, file)
		if err != nil {
			return fmt.Errorf("read prompt file %s: %w", file, err)
		}
		tmpl, err := template.New(string(v)).Parse(string(content))
		if err != nil {
			return fmt.Errorf("parse prompt template %s: %w", file, err)
		}
		tmpls[v] = tmpl
	}
	suggestTemplate = tmpls
	return nil
}

// BuildSuggestPrompt renders the suggestion prompt for one answer.
func BuildSuggestPrompt(variant PromptVariant, q model.Question, a model.Answer) (string, error) {
	if err := Load(); err != nil {
		return "", err
	}
	tmpl, ok := suggestTemplate[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	data := SuggestData{
		Title:       q.Title,
		Description: q.Description,
		Answer:      sanitizeAnswer(a.Text),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}

	return answer
}
