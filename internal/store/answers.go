package store

import (
	"time"

	"github.com/pavelanni/tutorportal/internal/model"
)

const answerColumns = `id, student_id, question_id, text, image_path, created_at`

// AnswerFilter narrows ListAnswers. Zero fields mean no filtering.
type AnswerFilter struct {
	StudentID  int64
	QuestionID int64
}

func scanAnswer(sc scanner) (model.Answer, error) {
	var a model.Answer
	err := sc.Scan(&a.ID, &a.StudentID, &a.QuestionID, &a.Text, &a.ImagePath, &a.CreatedAt)
	return a, err
}

// InsertAnswer stores a student's answer.
func (s *Store) InsertAnswer(a model.Answer) (int64, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO answers (student_id, question_id, text, image_path, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.StudentID, a.QuestionID, a.Text, a.ImagePath, a.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateAnswer replaces the text and image of an answer.
func (s *Store) UpdateAnswer(id int64, text, imagePath string) error {
	res, err := s.db.Exec(`UPDATE answers SET text = ?, image_path = ? WHERE id = ?`, text, imagePath, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// DeleteAnswer removes an answer and its corrections.
func (s *Store) DeleteAnswer(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM corrections WHERE answer_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM answers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := expectRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

// GetAnswer returns an answer by ID.
func (s *Store) GetAnswer(id int64) (model.Answer, error) {
	return scanAnswer(s.db.QueryRow(`SELECT `+answerColumns+` FROM answers WHERE id = ?`, id))
}

// ListAnswers returns answers matching the filter, newest first.
func (s *Store) ListAnswers(f AnswerFilter) ([]model.Answer, error) {
	query := `SELECT ` + answerColumns + ` FROM answers WHERE 1=1`
	var args []any
	if f.StudentID != 0 {
		query += ` AND student_id = ?`
		args = append(args, f.StudentID)
	}
	if f.QuestionID != 0 {
		query += ` AND question_id = ?`
		args = append(args, f.QuestionID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// ListUncorrectedAnswers returns a question's answers that have no correction yet.
func (s *Store) ListUncorrectedAnswers(questionID int64) ([]model.Answer, error) {
	rows, err := s.db.Query(
		`SELECT `+answerColumns+` FROM answers a
		 WHERE a.question_id = ? AND NOT EXISTS (SELECT 1 FROM corrections c WHERE c.answer_id = a.id)
		 ORDER BY a.id`, questionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
