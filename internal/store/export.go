package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/tutorportal/internal/model"
	"github.com/pavelanni/tutorportal/internal/status"
)

// ExportGradebook builds export-ready gradebook entries for every student.
// Status counts cover the questions visible at now.
func (s *Store) ExportGradebook(now time.Time) (*model.GradebookExport, error) {
	students, err := s.ListUsers(model.UserRoleStudent)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	questions, err := s.ListVisibleQuestions(now)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	exams, err := s.ListExams()
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}

	out := &model.GradebookExport{GeneratedAt: now, Exams: exams}
	for _, u := range students {
		answers, err := s.ListAnswers(AnswerFilter{StudentID: u.ID})
		if err != nil {
			return nil, fmt.Errorf("list answers of %s: %w", u.Username, err)
		}
		corrections, err := s.CorrectionsByAnswerForStudent(u.ID)
		if err != nil {
			return nil, fmt.Errorf("list corrections of %s: %w", u.Username, err)
		}
		weekly, err := s.ListWeeklyGrades(u.ID)
		if err != nil {
			return nil, fmt.Errorf("list weekly grades of %s: %w", u.Username, err)
		}
		examGrades, err := s.ListExamGrades(u.ID)
		if err != nil {
			return nil, fmt.Errorf("list exam grades of %s: %w", u.Username, err)
		}

		counts := make(map[string]int)
		for st, n := range status.Count(status.ResolveAll(questions, answers, corrections, now)) {
			counts[string(st)] = n
		}

		out.Students = append(out.Students, model.StudentGradebook{
			StudentID:    u.ID,
			Username:     u.Username,
			DisplayName:  u.DisplayName,
			WeeklyGrades: weekly,
			ExamGrades:   examGrades,
			StatusCounts: counts,
		})
	}
	return out, nil
}
