package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pavelanni/tutorportal/internal/model"
	"github.com/pavelanni/tutorportal/internal/store"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-questions FILE...",
		Short: "Import questions from JSON files into the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := setup(cmd)
			db, err := store.New(v.GetString("db"))
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			return loadQuestions(db, args)
		},
	}
	cmd.Flags().String("db", "tutorportal.db", "SQLite database path")
	addCommonFlags(cmd)
	return cmd
}

// loadQuestions imports each file once. A file whose content changed since
// its import is skipped so existing answers keep pointing at the same
// questions.
func loadQuestions(db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}

		if storedHash == hash {
			slog.Info("questions file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("questions file changed since last import, skipping to avoid breaking existing answers",
				"path", path)
			continue
		}

		var imports []model.QuestionImport
		if err := json.Unmarshal(data, &imports); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		// Check the whole file first so a bad question imports nothing.
		questions := make([]model.Question, 0, len(imports))
		for i, qi := range imports {
			q, err := importedQuestion(qi)
			if err != nil {
				return fmt.Errorf("%s: question %d: %w", path, i+1, err)
			}
			questions = append(questions, q)
		}

		if err := db.ImportQuestions(path, hash, questions); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		slog.Info("imported questions", "path", path, "count", len(questions))
	}

	return nil
}

func importedQuestion(qi model.QuestionImport) (model.Question, error) {
	q := model.Question{
		Title:       qi.Title,
		Description: qi.Description,
		Type:        qi.Type,
		ExpiresAt:   qi.ExpiresAt,
		VisibleAt:   qi.VisibleAt,
		Options:     qi.Options,
	}
	if q.Title == "" {
		return q, errors.New("title is required")
	}
	if q.Type == "" {
		q.Type = model.QuestionText
	}
	switch q.Type {
	case model.QuestionText:
		if len(q.Options) > 0 {
			return q, errors.New("text questions take no options")
		}
	case model.QuestionMultipleChoice:
		correct := 0
		for _, o := range q.Options {
			if o.Correct {
				correct++
			}
		}
		if len(q.Options) < 2 || correct == 0 {
			return q, errors.New("multiple choice needs at least two options and one correct option")
		}
	default:
		return q, fmt.Errorf("unknown question type %q", q.Type)
	}
	return q, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
