package store

import (
	"database/sql"
	"time"

	"github.com/pavelanni/tutorportal/internal/grade"
	"github.com/pavelanni/tutorportal/internal/model"
)

const correctionColumns = `id, answer_id, grade, feedback, created_at`

func scanCorrection(sc scanner) (model.Correction, error) {
	var c model.Correction
	err := sc.Scan(&c.ID, &c.AnswerID, &c.Grade, &c.Feedback, &c.CreatedAt)
	return c, err
}

func (s *Store) queryCorrections(query string, args ...any) ([]model.Correction, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Correction
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertCorrection creates the correction for an answer, or updates the
// latest one if the answer was already corrected. It returns the stored row.
func (s *Store) UpsertCorrection(c model.Correction) (model.Correction, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return c, err
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRow(
		`SELECT id FROM corrections WHERE answer_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, c.AnswerID,
	).Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}
		res, err := tx.Exec(
			`INSERT INTO corrections (answer_id, grade, feedback, created_at) VALUES (?, ?, ?, ?)`,
			c.AnswerID, c.Grade, c.Feedback, c.CreatedAt,
		)
		if err != nil {
			return c, err
		}
		if c.ID, err = res.LastInsertId(); err != nil {
			return c, err
		}
	case err != nil:
		return c, err
	default:
		if _, err := tx.Exec(
			`UPDATE corrections SET grade = ?, feedback = ? WHERE id = ?`, c.Grade, c.Feedback, existingID,
		); err != nil {
			return c, err
		}
		if c, err = scanCorrection(tx.QueryRow(`SELECT `+correctionColumns+` FROM corrections WHERE id = ?`, existingID)); err != nil {
			return c, err
		}
	}
	return c, tx.Commit()
}

// UpdateCorrection changes the grade and feedback of a correction.
func (s *Store) UpdateCorrection(id int64, g grade.LetterGrade, feedback string) error {
	res, err := s.db.Exec(`UPDATE corrections SET grade = ?, feedback = ? WHERE id = ?`, g, feedback, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// GetCorrection returns a correction by ID.
func (s *Store) GetCorrection(id int64) (model.Correction, error) {
	return scanCorrection(s.db.QueryRow(`SELECT `+correctionColumns+` FROM corrections WHERE id = ?`, id))
}

// ListCorrections returns all corrections, newest first.
func (s *Store) ListCorrections() ([]model.Correction, error) {
	return s.queryCorrections(`SELECT ` + correctionColumns + ` FROM corrections ORDER BY created_at DESC, id DESC`)
}

// ListCorrectionsForAnswer returns an answer's corrections, newest first.
func (s *Store) ListCorrectionsForAnswer(answerID int64) ([]model.Correction, error) {
	return s.queryCorrections(
		`SELECT `+correctionColumns+` FROM corrections WHERE answer_id = ? ORDER BY created_at DESC, id DESC`, answerID,
	)
}

// CorrectionsByAnswerForStudent returns every correction of a student's
// answers keyed by answer ID.
func (s *Store) CorrectionsByAnswerForStudent(studentID int64) (map[int64][]model.Correction, error) {
	list, err := s.queryCorrections(
		`SELECT c.id, c.answer_id, c.grade, c.feedback, c.created_at
		 FROM corrections c JOIN answers a ON a.id = c.answer_id
		 WHERE a.student_id = ? ORDER BY c.created_at DESC, c.id DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]model.Correction)
	for _, c := range list {
		out[c.AnswerID] = append(out[c.AnswerID], c)
	}
	return out, nil
}
