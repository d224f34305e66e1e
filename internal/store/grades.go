package store

import (
	"database/sql"
	"time"

	"github.com/pavelanni/tutorportal/internal/model"
)

const weekLayout = "2006-01-02"

// InsertExam creates an exam.
func (s *Store) InsertExam(e model.Exam) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO exams (title, description, created_at) VALUES (?, ?, ?)`,
		e.Title, e.Description, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetExam returns an exam by ID.
func (s *Store) GetExam(id int64) (model.Exam, error) {
	var e model.Exam
	err := s.db.QueryRow(`SELECT id, title, description, created_at FROM exams WHERE id = ?`, id).
		Scan(&e.ID, &e.Title, &e.Description, &e.CreatedAt)
	return e, err
}

// ListExams returns all exams, newest first.
func (s *Store) ListExams() ([]model.Exam, error) {
	rows, err := s.db.Query(`SELECT id, title, description, created_at FROM exams ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// UpsertWeeklyGrade creates the grade for a student's week or updates the
// existing one. Week start dates are stored as calendar dates; undated
// grades never conflict and are always inserted.
func (s *Store) UpsertWeeklyGrade(g model.WeeklyGrade) (int64, error) {
	var week *string
	if g.WeekStartDate != nil {
		w := g.WeekStartDate.Format(weekLayout)
		week = &w
	}

	res, err := s.db.Exec(
		`INSERT INTO weekly_grades (student_id, week_start, points_obtained, total_points, grade, feedback, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(student_id, week_start) DO UPDATE SET
		   points_obtained = excluded.points_obtained,
		   total_points = excluded.total_points,
		   grade = excluded.grade,
		   feedback = excluded.feedback`,
		g.StudentID, week, g.PointsObtained, g.TotalPoints, g.Grade, g.Feedback, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	if week == nil {
		return res.LastInsertId()
	}
	var id int64
	err = s.db.QueryRow(
		`SELECT id FROM weekly_grades WHERE student_id = ? AND week_start = ?`, g.StudentID, *week,
	).Scan(&id)
	return id, err
}

// ListWeeklyGrades returns weekly grades, most recent week first. A zero
// studentID lists every student.
func (s *Store) ListWeeklyGrades(studentID int64) ([]model.WeeklyGrade, error) {
	query := `SELECT id, student_id, week_start, points_obtained, total_points, grade, feedback, created_at FROM weekly_grades`
	var args []any
	if studentID != 0 {
		query += ` WHERE student_id = ?`
		args = append(args, studentID)
	}
	query += ` ORDER BY week_start DESC, created_at DESC`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.WeeklyGrade
	for rows.Next() {
		var g model.WeeklyGrade
		var week sql.NullString
		if err := rows.Scan(&g.ID, &g.StudentID, &week, &g.PointsObtained, &g.TotalPoints, &g.Grade, &g.Feedback, &g.CreatedAt); err != nil {
			return nil, err
		}
		if week.Valid {
			t, err := time.Parse(weekLayout, week.String)
			if err != nil {
				return nil, err
			}
			g.WeekStartDate = &t
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// UpsertExamGrade creates or updates a student's grade for an exam.
func (s *Store) UpsertExamGrade(g model.ExamGrade) (int64, error) {
	_, err := s.db.Exec(
		`INSERT INTO exam_grades (student_id, exam_id, points_obtained, total_points, grade, feedback, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(student_id, exam_id) DO UPDATE SET
		   points_obtained = excluded.points_obtained,
		   total_points = excluded.total_points,
		   grade = excluded.grade,
		   feedback = excluded.feedback`,
		g.StudentID, g.ExamID, g.PointsObtained, g.TotalPoints, g.Grade, g.Feedback, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRow(`SELECT id FROM exam_grades WHERE student_id = ? AND exam_id = ?`, g.StudentID, g.ExamID).Scan(&id)
	return id, err
}

// ListExamGrades returns exam grades, newest first. A zero studentID lists
// every student.
func (s *Store) ListExamGrades(studentID int64) ([]model.ExamGrade, error) {
	query := `SELECT id, student_id, exam_id, points_obtained, total_points, grade, feedback, created_at FROM exam_grades`
	var args []any
	if studentID != 0 {
		query += ` WHERE student_id = ?`
		args = append(args, studentID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ExamGrade
	for rows.Next() {
		var g model.ExamGrade
		if err := rows.Scan(&g.ID, &g.StudentID, &g.ExamID, &g.PointsObtained, &g.TotalPoints, &g.Grade, &g.Feedback, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
