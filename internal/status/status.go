// Package status decides what a student sees for each question: corrected,
// waiting for some correction step, lost or still open.
package status

import (
	"sort"
	"time"

	"github.com/pavelanni/tutorportal/internal/grade"
	"github.com/pavelanni/tutorportal/internal/model"
)

// Status is the display state of one (question, answer, correction) triple.
type Status string

const (
	Correct                  Status = "CORRECT"
	Incorrect                Status = "INCORRECT"
	AwaitingAutoCorrection   Status = "AWAITING_AUTO_CORRECTION"
	AwaitingExpiry           Status = "AWAITING_EXPIRY"
	AwaitingManualCorrection Status = "AWAITING_MANUAL_CORRECTION"
	Lost                     Status = "LOST"
	// Pending means not answered yet while the question is still open.
	Pending Status = "PENDING"
)

// All lists every status in display order.
func All() []Status {
	return []Status{Correct, Incorrect, AwaitingAutoCorrection, AwaitingExpiry, AwaitingManualCorrection, Lost, Pending}
}

// Resolved reports whether a correction decided the status.
func (s Status) Resolved() bool {
	return s == Correct || s == Incorrect
}

// Resolve computes the status for a question given the student's answer
// and its latest correction, either of which may be nil. The first
// matching rule wins.
func Resolve(q model.Question, a *model.Answer, c *model.Correction, now time.Time) Status {
	if a != nil && c != nil {
		if grade.IsCorrect(c.Grade) {
			return Correct
		}
		return Incorrect
	}
	expired := q.Expired(now)
	if a == nil {
		if expired {
			return Lost
		}
		return Pending
	}
	if q.Type == model.QuestionMultipleChoice && q.ExpiresAt != nil {
		if expired {
			return AwaitingAutoCorrection
		}
		return AwaitingExpiry
	}
	return AwaitingManualCorrection
}

// LatestCorrection returns the most recently created correction, or nil.
// The input order is not trusted.
func LatestCorrection(corrections []model.Correction) *model.Correction {
	if len(corrections) == 0 {
		return nil
	}
	sorted := make([]model.Correction, len(corrections))
	copy(sorted, corrections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return &sorted[0]
}

// LatestAnswers indexes answers by question, keeping the newest one when a
// student answered the same question more than once.
func LatestAnswers(answers []model.Answer) map[int64]model.Answer {
	out := make(map[int64]model.Answer, len(answers))
	for _, a := range answers {
		prev, ok := out[a.QuestionID]
		if !ok || a.CreatedAt.After(prev.CreatedAt) {
			out[a.QuestionID] = a
		}
	}
	return out
}

// Entry is the resolved status of one question for one student.
type Entry struct {
	Question   model.Question    `json:"question"`
	Answer     *model.Answer     `json:"answer,omitempty"`
	Correction *model.Correction `json:"correction,omitempty"`
	Status     Status            `json:"status"`
}

// ResolveAll resolves every question against a student's answers.
// corrections is keyed by answer ID; lists need not be sorted.
func ResolveAll(questions []model.Question, answers []model.Answer, corrections map[int64][]model.Correction, now time.Time) []Entry {
	byQuestion := LatestAnswers(answers)
	entries := make([]Entry, 0, len(questions))
	for _, q := range questions {
		e := Entry{Question: q}
		if a, ok := byQuestion[q.ID]; ok {
			e.Answer = &a
			e.Correction = LatestCorrection(corrections[a.ID])
		}
		e.Status = Resolve(q, e.Answer, e.Correction, now)
		entries = append(entries, e)
	}
	return entries
}

// Count tallies entries per status.
func Count(entries []Entry) map[Status]int {
	out := make(map[Status]int)
	for _, e := range entries {
		out[e.Status]++
	}
	return out
}
