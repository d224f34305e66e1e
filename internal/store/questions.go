package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/tutorportal/internal/model"
)

const questionColumns = `id, title, description, type, expires_at, visible_at, options, created_at`

func scanQuestion(sc scanner) (model.Question, error) {
	var q model.Question
	var options string
	if err := sc.Scan(&q.ID, &q.Title, &q.Description, &q.Type, &q.ExpiresAt, &q.VisibleAt, &options, &q.CreatedAt); err != nil {
		return q, err
	}
	if options != "" {
		if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
			return q, fmt.Errorf("decode options of question %d: %w", q.ID, err)
		}
	}
	return q, nil
}

func queryQuestions(db *sql.DB, query string, args ...any) ([]model.Question, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func encodeOptions(opts []model.Option) (string, error) {
	if opts == nil {
		opts = []model.Option{}
	}
	b, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("encode options: %w", err)
	}
	return string(b), nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertQuestion(db execer, q model.Question) (int64, error) {
	options, err := encodeOptions(q.Options)
	if err != nil {
		return 0, err
	}
	if q.CreatedAt == nil {
		now := time.Now()
		q.CreatedAt = &now
	}
	res, err := db.Exec(
		`INSERT INTO questions (title, description, type, expires_at, visible_at, options, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.Title, q.Description, q.Type, q.ExpiresAt, q.VisibleAt, options, q.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertQuestion stores a question. A missing creation date is set to now.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	return insertQuestion(s.db, q)
}

// ImportQuestions stores the questions of one file and records the file's
// content hash in a single transaction. Either all of them land or none.
func (s *Store) ImportQuestions(path, hash string, questions []model.Question) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, q := range questions {
		if _, err := insertQuestion(tx, q); err != nil {
			return fmt.Errorf("insert question %d: %w", i+1, err)
		}
	}
	if err := setMetadata(tx, importKeyPrefix+path, hash); err != nil {
		return fmt.Errorf("record import hash: %w", err)
	}
	return tx.Commit()
}

// UpdateQuestion replaces a question's metadata. The creation date is kept.
func (s *Store) UpdateQuestion(q model.Question) error {
	options, err := encodeOptions(q.Options)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE questions SET title = ?, description = ?, type = ?, expires_at = ?, visible_at = ?, options = ?
		 WHERE id = ?`,
		q.Title, q.Description, q.Type, q.ExpiresAt, q.VisibleAt, options, q.ID,
	)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// DeleteQuestion removes a question together with its answers and their corrections.
func (s *Store) DeleteQuestion(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM corrections WHERE answer_id IN (SELECT id FROM answers WHERE question_id = ?)`, id,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM answers WHERE question_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := expectRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	return scanQuestion(s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
}

// ListQuestions returns all questions, newest first.
func (s *Store) ListQuestions() ([]model.Question, error) {
	return queryQuestions(s.db, `SELECT `+questionColumns+` FROM questions ORDER BY created_at DESC, id DESC`)
}

// ListVisibleQuestions returns the questions students may see at now.
func (s *Store) ListVisibleQuestions(now time.Time) ([]model.Question, error) {
	questions, err := s.ListQuestions()
	if err != nil {
		return nil, err
	}
	visible := questions[:0]
	for _, q := range questions {
		if q.Visible(now) {
			visible = append(visible, q)
		}
	}
	return visible, nil
}

// ListExpiredMultipleChoice returns multiple-choice questions whose answer
// window closed before now.
func (s *Store) ListExpiredMultipleChoice(now time.Time) ([]model.Question, error) {
	questions, err := queryQuestions(s.db,
		`SELECT `+questionColumns+` FROM questions WHERE type = ? AND expires_at IS NOT NULL ORDER BY id`,
		model.QuestionMultipleChoice,
	)
	if err != nil {
		return nil, err
	}
	expired := questions[:0]
	for _, q := range questions {
		if q.Expired(now) {
			expired = append(expired, q)
		}
	}
	return expired, nil
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// expectRow turns an update that touched nothing into sql.ErrNoRows.
func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
