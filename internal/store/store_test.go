package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/pavelanni/tutorportal/internal/grade"
	"github.com/pavelanni/tutorportal/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestUser(t *testing.T, s *Store, username string, role model.UserRole) int64 {
	t.Helper()
	id, err := s.CreateUser(model.User{
		Username:     username,
		DisplayName:  "User " + username,
		PasswordHash: "hash",
		Role:         role,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("insertTestUser: %v", err)
	}
	return id
}

func insertTestQuestion(t *testing.T, s *Store, q model.Question) int64 {
	t.Helper()
	if q.Title == "" {
		q.Title = "question"
	}
	if q.Type == "" {
		q.Type = model.QuestionText
	}
	id, err := s.InsertQuestion(q)
	if err != nil {
		t.Fatalf("insertTestQuestion: %v", err)
	}
	return id
}

func insertTestAnswer(t *testing.T, s *Store, studentID, questionID int64, text string) int64 {
	t.Helper()
	id, err := s.InsertAnswer(model.Answer{StudentID: studentID, QuestionID: questionID, Text: text})
	if err != nil {
		t.Fatalf("insertTestAnswer: %v", err)
	}
	return id
}

func timePtr(t time.Time) *time.Time { return &t }

func TestQuestionCRUD(t *testing.T) {
	s := newTestStore(t)

	count, err := s.QuestionCount()
	if err != nil {
		t.Fatalf("QuestionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 questions, got %d", count)
	}

	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	id := insertTestQuestion(t, s, model.Question{
		Title:     "Capital of France?",
		Type:      model.QuestionMultipleChoice,
		ExpiresAt: &expires,
		Options: []model.Option{
			{Text: "Paris", Correct: true},
			{Text: "Lyon"},
		},
	})

	q, err := s.GetQuestion(id)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q.Title != "Capital of France?" {
		t.Errorf("expected title, got %q", q.Title)
	}
	if q.Type != model.QuestionMultipleChoice {
		t.Errorf("expected multiple choice, got %q", q.Type)
	}
	if q.ExpiresAt == nil || !q.ExpiresAt.Equal(expires) {
		t.Errorf("expected expires_at %v, got %v", expires, q.ExpiresAt)
	}
	if q.VisibleAt != nil {
		t.Errorf("expected nil visible_at, got %v", q.VisibleAt)
	}
	if q.CreatedAt == nil {
		t.Error("expected created_at to be set")
	}
	if len(q.Options) != 2 || !q.Options[0].Correct || q.Options[1].Text != "Lyon" {
		t.Errorf("unexpected options %+v", q.Options)
	}

	_, err = s.GetQuestion(9999)
	if err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows, got %v", err)
	}

	q.Title = "Capital city of France?"
	q.ExpiresAt = nil
	if err := s.UpdateQuestion(q); err != nil {
		t.Fatalf("UpdateQuestion: %v", err)
	}
	q, _ = s.GetQuestion(id)
	if q.Title != "Capital city of France?" || q.ExpiresAt != nil {
		t.Errorf("update not applied: %+v", q)
	}

	if err := s.UpdateQuestion(model.Question{ID: 9999, Title: "x", Type: model.QuestionText}); err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows updating missing question, got %v", err)
	}
}

func TestVisibleAndExpiredQuestions(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	insertTestQuestion(t, s, model.Question{Title: "open"})
	insertTestQuestion(t, s, model.Question{Title: "hidden", VisibleAt: timePtr(now.Add(time.Hour))})
	insertTestQuestion(t, s, model.Question{Title: "shown", VisibleAt: timePtr(now.Add(-time.Hour))})
	insertTestQuestion(t, s, model.Question{Title: "mc expired", Type: model.QuestionMultipleChoice, ExpiresAt: timePtr(now.Add(-time.Minute))})
	insertTestQuestion(t, s, model.Question{Title: "mc open", Type: model.QuestionMultipleChoice, ExpiresAt: timePtr(now.Add(time.Hour))})
	insertTestQuestion(t, s, model.Question{Title: "text expired", ExpiresAt: timePtr(now.Add(-time.Minute))})

	visible, err := s.ListVisibleQuestions(now)
	if err != nil {
		t.Fatalf("ListVisibleQuestions: %v", err)
	}
	if len(visible) != 5 {
		t.Errorf("expected 5 visible questions, got %d", len(visible))
	}
	for _, q := range visible {
		if q.Title == "hidden" {
			t.Error("hidden question listed as visible")
		}
	}

	expired, err := s.ListExpiredMultipleChoice(now)
	if err != nil {
		t.Fatalf("ListExpiredMultipleChoice: %v", err)
	}
	if len(expired) != 1 || expired[0].Title != "mc expired" {
		t.Errorf("expected only 'mc expired', got %+v", expired)
	}
}

func TestAnswers(t *testing.T) {
	s := newTestStore(t)
	alice := insertTestUser(t, s, "alice", model.UserRoleStudent)
	bob := insertTestUser(t, s, "bob", model.UserRoleStudent)
	q1 := insertTestQuestion(t, s, model.Question{Title: "Q1"})
	q2 := insertTestQuestion(t, s, model.Question{Title: "Q2"})

	a1 := insertTestAnswer(t, s, alice, q1, "alice q1")
	insertTestAnswer(t, s, alice, q2, "alice q2")
	insertTestAnswer(t, s, bob, q1, "bob q1")

	tests := []struct {
		name   string
		filter AnswerFilter
		want   int
	}{
		{"all", AnswerFilter{}, 3},
		{"by student", AnswerFilter{StudentID: alice}, 2},
		{"by question", AnswerFilter{QuestionID: q1}, 2},
		{"by both", AnswerFilter{StudentID: bob, QuestionID: q1}, 1},
		{"none", AnswerFilter{StudentID: bob, QuestionID: q2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListAnswers(tt.filter)
			if err != nil {
				t.Fatalf("ListAnswers: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d answers, got %d", tt.want, len(got))
			}
		})
	}

	if err := s.UpdateAnswer(a1, "new text", "img/a1.png"); err != nil {
		t.Fatalf("UpdateAnswer: %v", err)
	}
	a, err := s.GetAnswer(a1)
	if err != nil {
		t.Fatalf("GetAnswer: %v", err)
	}
	if a.Text != "new text" || a.ImagePath != "img/a1.png" {
		t.Errorf("update not applied: %+v", a)
	}

	if _, err := s.UpsertCorrection(model.Correction{AnswerID: a1, Grade: grade.B}); err != nil {
		t.Fatalf("UpsertCorrection: %v", err)
	}
	if err := s.DeleteAnswer(a1); err != nil {
		t.Fatalf("DeleteAnswer: %v", err)
	}
	if _, err := s.GetAnswer(a1); err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows after delete, got %v", err)
	}
	corrections, _ := s.ListCorrectionsForAnswer(a1)
	if len(corrections) != 0 {
		t.Error("expected corrections removed with the answer")
	}
}

func TestUpsertCorrection(t *testing.T) {
	s := newTestStore(t)
	alice := insertTestUser(t, s, "alice", model.UserRoleStudent)
	q := insertTestQuestion(t, s, model.Question{Title: "Q"})
	a := insertTestAnswer(t, s, alice, q, "answer")

	uncorrected, err := s.ListUncorrectedAnswers(q)
	if err != nil {
		t.Fatalf("ListUncorrectedAnswers: %v", err)
	}
	if len(uncorrected) != 1 {
		t.Fatalf("expected 1 uncorrected answer, got %d", len(uncorrected))
	}

	first, err := s.UpsertCorrection(model.Correction{AnswerID: a, Grade: grade.C, Feedback: "ok"})
	if err != nil {
		t.Fatalf("UpsertCorrection: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("expected an ID for the new correction")
	}

	second, err := s.UpsertCorrection(model.Correction{AnswerID: a, Grade: grade.AMinus, Feedback: "better"})
	if err != nil {
		t.Fatalf("UpsertCorrection update: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected update of correction %d, got new %d", first.ID, second.ID)
	}
	if second.Grade != grade.AMinus || second.Feedback != "better" {
		t.Errorf("unexpected correction after update: %+v", second)
	}

	list, err := s.ListCorrectionsForAnswer(a)
	if err != nil {
		t.Fatalf("ListCorrectionsForAnswer: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected one correction, got %d", len(list))
	}

	byAnswer, err := s.CorrectionsByAnswerForStudent(alice)
	if err != nil {
		t.Fatalf("CorrectionsByAnswerForStudent: %v", err)
	}
	if len(byAnswer[a]) != 1 {
		t.Errorf("expected correction keyed by answer %d, got %v", a, byAnswer)
	}

	if err := s.UpdateCorrection(first.ID, grade.F, "wrong"); err != nil {
		t.Fatalf("UpdateCorrection: %v", err)
	}
	c, _ := s.GetCorrection(first.ID)
	if c.Grade != grade.F {
		t.Errorf("expected F after update, got %s", c.Grade)
	}

	uncorrected, _ = s.ListUncorrectedAnswers(q)
	if len(uncorrected) != 0 {
		t.Errorf("expected no uncorrected answers, got %d", len(uncorrected))
	}
}

func TestDeleteQuestionCascades(t *testing.T) {
	s := newTestStore(t)
	alice := insertTestUser(t, s, "alice", model.UserRoleStudent)
	q := insertTestQuestion(t, s, model.Question{Title: "Q"})
	a := insertTestAnswer(t, s, alice, q, "answer")
	if _, err := s.UpsertCorrection(model.Correction{AnswerID: a, Grade: grade.A}); err != nil {
		t.Fatalf("UpsertCorrection: %v", err)
	}

	if err := s.DeleteQuestion(q); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	answers, _ := s.ListAnswers(AnswerFilter{QuestionID: q})
	if len(answers) != 0 {
		t.Errorf("expected answers deleted, got %d", len(answers))
	}
	if err := s.DeleteQuestion(q); err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows deleting twice, got %v", err)
	}
}

func TestWeeklyGrades(t *testing.T) {
	s := newTestStore(t)
	alice := insertTestUser(t, s, "alice", model.UserRoleStudent)
	week := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	obtained, total := 8.0, 10.0

	id, err := s.UpsertWeeklyGrade(model.WeeklyGrade{
		Scored: model.Scored{
			StudentID:      alice,
			PointsObtained: &obtained,
			TotalPoints:    &total,
			Grade:          grade.BPlus,
			Feedback:       "good week",
		},
		WeekStartDate: &week,
	})
	if err != nil {
		t.Fatalf("UpsertWeeklyGrade: %v", err)
	}

	obtained = 9.5
	again, err := s.UpsertWeeklyGrade(model.WeeklyGrade{
		Scored: model.Scored{
			StudentID:      alice,
			PointsObtained: &obtained,
			TotalPoints:    &total,
			Grade:          grade.APlus,
		},
		WeekStartDate: &week,
	})
	if err != nil {
		t.Fatalf("UpsertWeeklyGrade update: %v", err)
	}
	if again != id {
		t.Errorf("expected same row %d, got %d", id, again)
	}

	prev := week.AddDate(0, 0, -7)
	if _, err := s.UpsertWeeklyGrade(model.WeeklyGrade{
		Scored:        model.Scored{StudentID: alice, Grade: grade.C},
		WeekStartDate: &prev,
	}); err != nil {
		t.Fatalf("UpsertWeeklyGrade previous week: %v", err)
	}

	list, err := s.ListWeeklyGrades(alice)
	if err != nil {
		t.Fatalf("ListWeeklyGrades: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 weekly grades, got %d", len(list))
	}
	if !list[0].WeekStartDate.Equal(week) {
		t.Errorf("expected most recent week first, got %v", list[0].WeekStartDate)
	}
	if list[0].Grade != grade.APlus || *list[0].PointsObtained != 9.5 {
		t.Errorf("unexpected first grade %+v", list[0])
	}
	if list[1].PointsObtained != nil || list[1].TotalPoints != nil {
		t.Errorf("expected no points on second grade, got %+v", list[1])
	}
}

func TestWeeklyGradeUniquePerWeek(t *testing.T) {
	s := newTestStore(t)
	alice := insertTestUser(t, s, "alice", model.UserRoleStudent)

	insert := `INSERT INTO weekly_grades (student_id, week_start, grade, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.Exec(insert, alice, "2026-03-08", grade.B, time.Now()); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := s.db.Exec(insert, alice, "2026-03-08", grade.C, time.Now()); err == nil {
		t.Error("expected unique violation for a second grade in the same week")
	}

	// The upsert updates the existing row instead.
	week := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	if _, err := s.UpsertWeeklyGrade(model.WeeklyGrade{
		Scored:        model.Scored{StudentID: alice, Grade: grade.A},
		WeekStartDate: &week,
	}); err != nil {
		t.Fatalf("UpsertWeeklyGrade: %v", err)
	}
	list, err := s.ListWeeklyGrades(alice)
	if err != nil {
		t.Fatalf("ListWeeklyGrades: %v", err)
	}
	if len(list) != 1 || list[0].Grade != grade.A {
		t.Errorf("expected one updated grade, got %+v", list)
	}

	// Undated grades do not collide with each other.
	for i := 0; i < 2; i++ {
		if _, err := s.UpsertWeeklyGrade(model.WeeklyGrade{Scored: model.Scored{StudentID: alice, Grade: grade.C}}); err != nil {
			t.Fatalf("undated upsert %d: %v", i, err)
		}
	}
	if list, _ := s.ListWeeklyGrades(alice); len(list) != 3 {
		t.Errorf("expected 3 weekly grades, got %d", len(list))
	}
}

func TestExamGrades(t *testing.T) {
	s := newTestStore(t)
	alice := insertTestUser(t, s, "alice", model.UserRoleStudent)
	examID, err := s.InsertExam(model.Exam{Title: "Midterm"})
	if err != nil {
		t.Fatalf("InsertExam: %v", err)
	}
	exam, err := s.GetExam(examID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if exam.Title != "Midterm" {
		t.Errorf("expected title Midterm, got %q", exam.Title)
	}

	id, err := s.UpsertExamGrade(model.ExamGrade{Scored: model.Scored{StudentID: alice, Grade: grade.B}, ExamID: examID})
	if err != nil {
		t.Fatalf("UpsertExamGrade: %v", err)
	}
	again, err := s.UpsertExamGrade(model.ExamGrade{Scored: model.Scored{StudentID: alice, Grade: grade.A, Feedback: "regraded"}, ExamID: examID})
	if err != nil {
		t.Fatalf("UpsertExamGrade update: %v", err)
	}
	if again != id {
		t.Errorf("expected same row %d, got %d", id, again)
	}

	list, err := s.ListExamGrades(alice)
	if err != nil {
		t.Fatalf("ListExamGrades: %v", err)
	}
	if len(list) != 1 || list[0].Grade != grade.A || list[0].Feedback != "regraded" {
		t.Errorf("unexpected exam grades %+v", list)
	}

	exams, _ := s.ListExams()
	if len(exams) != 1 {
		t.Errorf("expected 1 exam, got %d", len(exams))
	}
}

func TestUsersAndSessions(t *testing.T) {
	s := newTestStore(t)
	id := insertTestUser(t, s, "teacher1", model.UserRoleTeacher)
	insertTestUser(t, s, "student1", model.UserRoleStudent)

	u, err := s.GetUserByUsername("teacher1")
	if err != nil || u == nil {
		t.Fatalf("GetUserByUsername: %v %v", u, err)
	}
	if u.ID != id || !u.Active {
		t.Errorf("unexpected user %+v", u)
	}
	missing, err := s.GetUserByUsername("nobody")
	if err != nil || missing != nil {
		t.Errorf("expected nil user, got %v %v", missing, err)
	}

	students, _ := s.ListUsers(model.UserRoleStudent)
	if len(students) != 1 {
		t.Errorf("expected 1 student, got %d", len(students))
	}
	all, _ := s.ListUsers("")
	if len(all) != 2 {
		t.Errorf("expected 2 users, got %d", len(all))
	}

	if err := s.ToggleUserActive(id); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	u, _ = s.GetUserByID(id)
	if u.Active {
		t.Error("expected user to be inactive")
	}

	sess, err := s.CreateAuthSession(id, time.Hour)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	got, err := s.GetAuthSession(sess.ID)
	if err != nil || got == nil || got.UserID != id {
		t.Fatalf("GetAuthSession: %+v %v", got, err)
	}

	stale, err := s.CreateAuthSession(id, -time.Minute)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	removed, err := s.CleanupExpiredSessions()
	if err != nil {
		t.Fatalf("CleanupExpiredSessions: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 expired session removed, got %d", removed)
	}
	if got, _ := s.GetAuthSession(stale.ID); got != nil {
		t.Error("expected expired session to be gone")
	}

	if err := s.DeleteAuthSession(sess.ID); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	if got, _ := s.GetAuthSession(sess.ID); got != nil {
		t.Error("expected session to be deleted")
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	hash, err := s.GetImportedFileHash("/some/path.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash("/some/path.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/path.json")
	if hash != "abc123" {
		t.Errorf("expected 'abc123', got %q", hash)
	}

	if err := s.SetImportedFileHash("/some/path.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/path.json")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}

func TestImportQuestions(t *testing.T) {
	s := newTestStore(t)
	questions := []model.Question{
		{Title: "one", Type: model.QuestionText},
		{Title: "two", Type: model.QuestionMultipleChoice, Options: []model.Option{{Text: "a", Correct: true}, {Text: "b"}}},
	}
	if err := s.ImportQuestions("q.json", "h1", questions); err != nil {
		t.Fatalf("ImportQuestions: %v", err)
	}
	n, _ := s.QuestionCount()
	if n != 2 {
		t.Errorf("expected 2 questions, got %d", n)
	}
	if hash, _ := s.GetImportedFileHash("q.json"); hash != "h1" {
		t.Errorf("expected hash h1, got %q", hash)
	}
	list, err := s.ListQuestions()
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	for _, q := range list {
		if q.Title == "two" && len(q.Options) != 2 {
			t.Errorf("expected 2 options, got %+v", q.Options)
		}
	}
}

func TestImportQuestionsRollsBack(t *testing.T) {
	s := newTestStore(t)
	// The trigger makes the third insert fail.
	if _, err := s.db.Exec(`CREATE TRIGGER reject_bad BEFORE INSERT ON questions
		WHEN NEW.title = 'bad' BEGIN SELECT RAISE(ABORT, 'bad title'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	questions := []model.Question{
		{Title: "one", Type: model.QuestionText},
		{Title: "two", Type: model.QuestionText},
		{Title: "bad", Type: model.QuestionText},
	}
	if err := s.ImportQuestions("q.json", "h1", questions); err == nil {
		t.Fatal("expected error from failing insert")
	}
	if n, _ := s.QuestionCount(); n != 0 {
		t.Errorf("expected no questions after rollback, got %d", n)
	}
	if hash, _ := s.GetImportedFileHash("q.json"); hash != "" {
		t.Errorf("expected no hash after rollback, got %q", hash)
	}
}

func TestExportGradebook(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	insertTestUser(t, s, "prof", model.UserRoleTeacher)
	ana := insertTestUser(t, s, "ana", model.UserRoleStudent)
	bia := insertTestUser(t, s, "bia", model.UserRoleStudent)

	q1 := insertTestQuestion(t, s, model.Question{})
	insertTestQuestion(t, s, model.Question{ExpiresAt: timePtr(now.Add(-time.Hour))})
	insertTestQuestion(t, s, model.Question{VisibleAt: timePtr(now.Add(time.Hour))})
	a := insertTestAnswer(t, s, ana, q1, "x")
	if _, err := s.UpsertCorrection(model.Correction{AnswerID: a, Grade: grade.F}); err != nil {
		t.Fatalf("UpsertCorrection: %v", err)
	}
	examID, err := s.InsertExam(model.Exam{Title: "Final"})
	if err != nil {
		t.Fatalf("InsertExam: %v", err)
	}
	if _, err := s.UpsertExamGrade(model.ExamGrade{Scored: model.Scored{StudentID: ana, Grade: grade.B}, ExamID: examID}); err != nil {
		t.Fatalf("UpsertExamGrade: %v", err)
	}

	gb, err := s.ExportGradebook(now)
	if err != nil {
		t.Fatalf("ExportGradebook: %v", err)
	}
	if len(gb.Students) != 2 || len(gb.Exams) != 1 {
		t.Fatalf("got %d students %d exams, want 2 and 1", len(gb.Students), len(gb.Exams))
	}
	byID := map[int64]model.StudentGradebook{}
	for _, sg := range gb.Students {
		byID[sg.StudentID] = sg
	}

	got := byID[ana]
	if got.StatusCounts["INCORRECT"] != 1 || got.StatusCounts["LOST"] != 1 || len(got.StatusCounts) != 2 {
		t.Errorf("ana counts = %v", got.StatusCounts)
	}
	if len(got.ExamGrades) != 1 {
		t.Errorf("ana exam grades = %d, want 1", len(got.ExamGrades))
	}
	got = byID[bia]
	if got.StatusCounts["PENDING"] != 1 || got.StatusCounts["LOST"] != 1 {
		t.Errorf("bia counts = %v", got.StatusCounts)
	}
}
