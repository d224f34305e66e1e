package autocorrect

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pavelanni/tutorportal/internal/grade"
	"github.com/pavelanni/tutorportal/internal/i18n"
	"github.com/pavelanni/tutorportal/internal/model"
	"github.com/pavelanni/tutorportal/internal/store"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	m.Run()
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func timePtr(t time.Time) *time.Time { return &t }

func TestCorrect(t *testing.T) {
	q := model.Question{
		Type: model.QuestionMultipleChoice,
		Options: []model.Option{
			{Text: "Paris", Correct: true},
			{Text: "Lyon"},
		},
	}
	tests := []struct {
		answer string
		want   grade.LetterGrade
	}{
		{"Paris", grade.A},
		{"  paris ", grade.A},
		{"Lyon", grade.F},
		{"", grade.F},
		{"Marseille", grade.F},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			c := Correct(context.Background(), q, model.Answer{ID: 7, Text: tt.answer})
			if c.Grade != tt.want {
				t.Errorf("Grade = %s, want %s", c.Grade, tt.want)
			}
			if c.AnswerID != 7 {
				t.Errorf("AnswerID = %d, want 7", c.AnswerID)
			}
			if c.Feedback == "" {
				t.Error("feedback should be set")
			}
		})
	}
}

func TestRun(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	studentID, err := s.CreateUser(model.User{Username: "ana", Role: model.UserRoleStudent, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	opts := []model.Option{{Text: "4", Correct: true}, {Text: "5"}}
	expired, err := s.InsertQuestion(model.Question{
		Title: "2+2", Type: model.QuestionMultipleChoice, Options: opts,
		ExpiresAt: timePtr(now.Add(-time.Hour)),
	})
	if err != nil {
		t.Fatalf("InsertQuestion: %v", err)
	}
	open, err := s.InsertQuestion(model.Question{
		Title: "3+1", Type: model.QuestionMultipleChoice, Options: opts,
		ExpiresAt: timePtr(now.Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("InsertQuestion: %v", err)
	}

	right, _ := s.InsertAnswer(model.Answer{StudentID: studentID, QuestionID: expired, Text: "4"})
	wrong, _ := s.InsertAnswer(model.Answer{StudentID: studentID, QuestionID: expired, Text: "5"})
	pending, _ := s.InsertAnswer(model.Answer{StudentID: studentID, QuestionID: open, Text: "4"})

	sw := New(s)
	res, err := sw.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Questions != 1 || res.Graded != 2 || res.Failed != 0 {
		t.Errorf("Result = %+v, want 1 question, 2 graded", res)
	}

	check := func(answerID int64, want grade.LetterGrade) {
		t.Helper()
		cs, err := s.ListCorrectionsForAnswer(answerID)
		if err != nil {
			t.Fatalf("ListCorrectionsForAnswer: %v", err)
		}
		if want == "" {
			if len(cs) != 0 {
				t.Errorf("answer %d: expected no correction, got %+v", answerID, cs)
			}
			return
		}
		if len(cs) != 1 || cs[0].Grade != want {
			t.Errorf("answer %d: corrections %+v, want one %s", answerID, cs, want)
		}
	}
	check(right, grade.A)
	check(wrong, grade.F)
	check(pending, "")

	// A second sweep finds nothing left to grade.
	res, err = sw.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res.Graded != 0 {
		t.Errorf("second sweep graded %d answers", res.Graded)
	}
}

type failingStore struct {
	questions []model.Question
	answers   []model.Answer
	upserts   int
}

func (f *failingStore) ListExpiredMultipleChoice(time.Time) ([]model.Question, error) {
	return f.questions, nil
}

func (f *failingStore) ListUncorrectedAnswers(int64) ([]model.Answer, error) {
	return f.answers, nil
}

func (f *failingStore) UpsertCorrection(c model.Correction) (model.Correction, error) {
	f.upserts++
	if c.AnswerID == 1 {
		return c, errors.New("disk full")
	}
	return c, nil
}

func (f *failingStore) CleanupExpiredSessions() (int64, error) { return 0, nil }

func TestRunSkipsFailingAnswer(t *testing.T) {
	f := &failingStore{
		questions: []model.Question{{ID: 1, Type: model.QuestionMultipleChoice}},
		answers:   []model.Answer{{ID: 1, QuestionID: 1}, {ID: 2, QuestionID: 1}},
	}
	res, err := New(f).Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Graded != 1 || res.Failed != 1 || f.upserts != 2 {
		t.Errorf("Result = %+v upserts=%d, want 1 graded 1 failed 2 upserts", res, f.upserts)
	}
}

func TestSchedule(t *testing.T) {
	sw := New(&failingStore{})
	c, err := Schedule(sw, "@every 1m", time.Minute)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if n := len(c.Entries()); n != 2 {
		t.Errorf("entries = %d, want 2", n)
	}

	c, err = Schedule(sw, "", time.Minute)
	if err != nil {
		t.Fatalf("Schedule disabled: %v", err)
	}
	if n := len(c.Entries()); n != 1 {
		t.Errorf("entries = %d, want 1 (session cleanup only)", n)
	}

	if _, err := Schedule(sw, "not a schedule", time.Minute); err == nil {
		t.Error("expected error for invalid schedule")
	}
}
