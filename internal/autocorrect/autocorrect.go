// Package autocorrect grades multiple-choice answers once their question
// has expired.
package autocorrect

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pavelanni/tutorportal/internal/grade"
	"github.com/pavelanni/tutorportal/internal/i18n"
	"github.com/pavelanni/tutorportal/internal/model"
)

// Store is the persistence the sweep needs.
type Store interface {
	ListExpiredMultipleChoice(now time.Time) ([]model.Question, error)
	ListUncorrectedAnswers(questionID int64) ([]model.Answer, error)
	UpsertCorrection(c model.Correction) (model.Correction, error)
	CleanupExpiredSessions() (int64, error)
}

// Result summarizes one sweep.
type Result struct {
	Questions int
	Graded    int
	Failed    int
}

// Sweeper corrects answers to expired multiple-choice questions.
type Sweeper struct {
	store Store
}

// New returns a Sweeper backed by s.
func New(s Store) *Sweeper {
	return &Sweeper{store: s}
}

// Run grades every uncorrected answer of every multiple-choice question
// that expired before now. A failing answer is logged and skipped.
func (sw *Sweeper) Run(ctx context.Context, now time.Time) (Result, error) {
	var res Result
	questions, err := sw.store.ListExpiredMultipleChoice(now)
	if err != nil {
		return res, fmt.Errorf("list expired questions: %w", err)
	}

	for _, q := range questions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		answers, err := sw.store.ListUncorrectedAnswers(q.ID)
		if err != nil {
			slog.Error("list uncorrected answers", "question_id", q.ID, "error", err)
			res.Failed++
			continue
		}
		if len(answers) == 0 {
			continue
		}
		res.Questions++

		for _, a := range answers {
			c := Correct(ctx, q, a)
			if _, err := sw.store.UpsertCorrection(c); err != nil {
				slog.Error("auto-correct answer", "answer_id", a.ID, "question_id", q.ID, "error", err)
				res.Failed++
				continue
			}
			res.Graded++
		}
	}
	return res, nil
}

// Correct builds the correction for a multiple-choice answer: A when the
// answer text names a correct option, F otherwise.
func Correct(ctx context.Context, q model.Question, a model.Answer) model.Correction {
	c := model.Correction{AnswerID: a.ID, Grade: grade.F, Feedback: i18n.T(ctx, "AutoCorrectWrong")}
	if matchesCorrectOption(q.Options, a.Text) {
		c.Grade = grade.A
		c.Feedback = i18n.T(ctx, "AutoCorrectRight")
	}
	return c
}

func matchesCorrectOption(opts []model.Option, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, o := range opts {
		if o.Correct && strings.EqualFold(strings.TrimSpace(o.Text), text) {
			return true
		}
	}
	return false
}

// Schedule registers the sweep and an expired-session cleanup on a cron
// scheduler. The caller starts and stops it. An empty spec disables the
// sweep; sessions are still cleaned hourly.
func Schedule(sw *Sweeper, spec string, timeout time.Duration) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	if spec != "" {
		_, err := c.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			res, err := sw.Run(ctx, time.Now())
			if err != nil {
				slog.Error("auto-correction sweep", "error", err)
				return
			}
			if res.Graded > 0 || res.Failed > 0 {
				slog.Info("auto-correction sweep", "questions", res.Questions, "graded", res.Graded, "failed", res.Failed)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("add sweep schedule %q: %w", spec, err)
		}
	}

	_, err := c.AddFunc("@hourly", func() {
		n, err := sw.store.CleanupExpiredSessions()
		if err != nil {
			slog.Error("cleanup expired sessions", "error", err)
			return
		}
		if n > 0 {
			slog.Info("cleaned up expired sessions", "count", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("add session cleanup: %w", err)
	}
	return c, nil
}
