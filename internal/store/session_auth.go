package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/tutorportal/internal/model"
)

// CreateAuthSession records a new session for a user. The session ID
// becomes the bearer token's jti.
func (s *Store) CreateAuthSession(userID int64, ttl time.Duration) (model.AuthSession, error) {
	now := time.Now()
	sess := model.AuthSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	_, err := s.db.Exec(
		`INSERT INTO auth_sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return model.AuthSession{}, err
	}
	return sess, nil
}

// GetAuthSession returns the auth session for the given ID, or nil if not found/expired.
func (s *Store) GetAuthSession(id string) (*model.AuthSession, error) {
	var sess model.AuthSession
	err := s.db.QueryRow(
		`SELECT id, user_id, created_at, expires_at FROM auth_sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = s.DeleteAuthSession(id)
		return nil, nil
	}
	return &sess, nil
}

// DeleteAuthSession removes a session.
func (s *Store) DeleteAuthSession(id string) error {
	_, err := s.db.Exec(`DELETE FROM auth_sessions WHERE id = ?`, id)
	return err
}

// CleanupExpiredSessions removes all expired auth sessions.
func (s *Store) CleanupExpiredSessions() (int64, error) {
	sessions, err := s.db.Query(`SELECT id, expires_at FROM auth_sessions`)
	if err != nil {
		return 0, err
	}
	var expired []string
	now := time.Now()
	for sessions.Next() {
		var id string
		var exp time.Time
		if err := sessions.Scan(&id, &exp); err != nil {
			sessions.Close()
			return 0, err
		}
		if now.After(exp) {
			expired = append(expired, id)
		}
	}
	if err := sessions.Err(); err != nil {
		sessions.Close()
		return 0, err
	}
	sessions.Close()

	for _, id := range expired {
		if err := s.DeleteAuthSession(id); err != nil {
			return 0, err
		}
	}
	return int64(len(expired)), nil
}
