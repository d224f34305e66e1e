// Package weekly buckets dated records into Sunday-to-Saturday weeks and
// summarizes how much of each week a student completed.
package weekly

import (
	"sort"
	"time"

	"github.com/pavelanni/tutorportal/internal/grade"
	"github.com/pavelanni/tutorportal/internal/model"
	"github.com/pavelanni/tutorportal/internal/status"
)

// NoDateKey names the bucket of records without a usable date.
const NoDateKey = "no-date"

const keyLayout = "2006-01-02"

// WeekStart returns midnight of the Sunday at or before t, in t's location.
func WeekStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d-int(t.Weekday()), 0, 0, 0, 0, t.Location())
}

// Key formats a week start as its bucket key.
func Key(start time.Time) string {
	return start.Format(keyLayout)
}

// Bucket holds the records of one week. Undated is set only on the
// NoDateKey bucket.
type Bucket[T any] struct {
	Key     string
	Start   time.Time
	Undated bool
	Items   []T
}

// GroupByWeek buckets records by the week of the date returned by dateFn.
// Records for which dateFn reports false are dropped when dropUndated is
// set and collected into the NoDateKey bucket otherwise. Buckets come back
// newest week first, with the undated bucket last.
func GroupByWeek[T any](records []T, dateFn func(T) (time.Time, bool), dropUndated bool) []Bucket[T] {
	byKey := make(map[string]*Bucket[T])
	var undated *Bucket[T]
	for _, r := range records {
		d, ok := dateFn(r)
		if !ok || d.IsZero() {
			if dropUndated {
				continue
			}
			if undated == nil {
				undated = &Bucket[T]{Key: NoDateKey, Undated: true}
			}
			undated.Items = append(undated.Items, r)
			continue
		}
		start := WeekStart(d)
		key := Key(start)
		b, ok := byKey[key]
		if !ok {
			b = &Bucket[T]{Key: key, Start: start}
			byKey[key] = b
		}
		b.Items = append(b.Items, r)
	}

	out := make([]Bucket[T], 0, len(byKey)+1)
	for _, b := range byKey {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.After(out[j].Start)
	})
	if undated != nil {
		out = append(out, *undated)
	}
	return out
}

// AsMap flattens buckets into a key -> records map.
func AsMap[T any](buckets []Bucket[T]) map[string][]T {
	out := make(map[string][]T, len(buckets))
	for _, b := range buckets {
		out[b.Key] = b.Items
	}
	return out
}

// QuestionDate reads a question's creation date in loc.
func QuestionDate(loc *time.Location) func(model.Question) (time.Time, bool) {
	return func(q model.Question) (time.Time, bool) {
		if q.CreatedAt == nil {
			return time.Time{}, false
		}
		return q.CreatedAt.In(loc), true
	}
}

// CorrectionDate reads a correction's creation date in loc.
func CorrectionDate(loc *time.Location) func(model.Correction) (time.Time, bool) {
	return func(c model.Correction) (time.Time, bool) {
		return c.CreatedAt.In(loc), !c.CreatedAt.IsZero()
	}
}

// Completion counts a week's questions and how many the student answered.
type Completion struct {
	Total    int `json:"total"`
	Answered int `json:"answered"`
}

// CompletionForWeek counts weekQuestions that have an answer among
// studentAnswers.
func CompletionForWeek(weekQuestions []model.Question, studentAnswers []model.Answer) Completion {
	answered := make(map[int64]bool, len(studentAnswers))
	for _, a := range studentAnswers {
		answered[a.QuestionID] = true
	}
	c := Completion{Total: len(weekQuestions)}
	for _, q := range weekQuestions {
		if answered[q.ID] {
			c.Answered++
		}
	}
	return c
}

// Summary describes one week for one student.
type Summary struct {
	Week       string                `json:"week"`
	Start      *time.Time            `json:"start,omitempty"`
	Completion Completion            `json:"completion"`
	Statuses   map[status.Status]int `json:"statuses"`
	// Suggested is derived from the share of correct answers; empty for
	// weeks without questions.
	Suggested grade.LetterGrade `json:"suggested_grade,omitempty"`
	Entries   []status.Entry    `json:"entries"`
}

// Summarize groups resolved entries by the week their question was
// created in and computes completion, status counts and a suggested grade
// per week. Undated questions land in the NoDateKey summary.
func Summarize(entries []status.Entry, loc *time.Location) []Summary {
	qDate := QuestionDate(loc)
	buckets := GroupByWeek(entries, func(e status.Entry) (time.Time, bool) {
		return qDate(e.Question)
	}, false)

	out := make([]Summary, 0, len(buckets))
	for _, b := range buckets {
		s := Summary{
			Week:     b.Key,
			Statuses: status.Count(b.Items),
			Entries:  b.Items,
		}
		if !b.Undated {
			start := b.Start
			s.Start = &start
		}
		var questions []model.Question
		var answers []model.Answer
		for _, e := range b.Items {
			questions = append(questions, e.Question)
			if e.Answer != nil {
				answers = append(answers, *e.Answer)
			}
		}
		s.Completion = CompletionForWeek(questions, answers)
		if g, ok := grade.FromPoints(float64(s.Statuses[status.Correct]), float64(s.Completion.Total)); ok {
			s.Suggested = g
		}
		out = append(out, s)
	}
	return out
}
