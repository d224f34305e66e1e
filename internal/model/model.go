package model

import (
	"context"
	"errors"
	"time"

	"github.com/pavelanni/tutorportal/internal/grade"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsStaff reports whether the user may manage questions and corrections.
func (u *User) IsStaff() bool {
	return u != nil && (u.Role == UserRoleTeacher || u.Role == UserRoleAdmin)
}

// AuthSession represents an issued bearer token. ID is the token's jti.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type sessionCtxKey struct{}

// ContextWithSessionID stores the auth session ID (token jti) in context.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, id)
}

// SessionIDFromContext retrieves the auth session ID from context.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionCtxKey{}).(string)
	return id
}

// QuestionType distinguishes free-text questions from multiple choice.
type QuestionType string

const (
	QuestionText           QuestionType = "TEXT"
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
)

// Option is one choice of a multiple-choice question.
type Option struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

// Question represents a question published by a teacher.
type Question struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Type        QuestionType `json:"type"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	VisibleAt   *time.Time   `json:"visible_at,omitempty"`
	Options     []Option     `json:"options,omitempty"`
	CreatedAt   *time.Time   `json:"created_at,omitempty"`
}

// Expired reports whether the answer window closed before now.
func (q Question) Expired(now time.Time) bool {
	return q.ExpiresAt != nil && q.ExpiresAt.Before(now)
}

// Visible reports whether students may see the question at now.
func (q Question) Visible(now time.Time) bool {
	return q.VisibleAt == nil || !q.VisibleAt.After(now)
}

// Answer is a student's submission for a question.
type Answer struct {
	ID         int64     `json:"id"`
	StudentID  int64     `json:"student_id"`
	QuestionID int64     `json:"question_id"`
	Text       string    `json:"text"`
	ImagePath  string    `json:"image_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Correction is a grade plus feedback attached to an answer.
type Correction struct {
	ID        int64             `json:"id"`
	AnswerID  int64             `json:"answer_id"`
	Grade     grade.LetterGrade `json:"grade"`
	Feedback  string            `json:"feedback"`
	CreatedAt time.Time         `json:"created_at"`
}

// Exam groups exam grades under a title.
type Exam struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// ErrPartialPoints is returned when only one of the point fields is set.
var ErrPartialPoints = errors.New("points_obtained and total_points must be given together")

// ErrInvalidPoints is returned when the points cannot produce a percentage.
var ErrInvalidPoints = errors.New("points_obtained must lie between 0 and total_points")

// Scored holds the fields weekly and exam grades share.
type Scored struct {
	StudentID      int64             `json:"student_id"`
	PointsObtained *float64          `json:"points_obtained,omitempty"`
	TotalPoints    *float64          `json:"total_points,omitempty"`
	Grade          grade.LetterGrade `json:"grade"`
	Feedback       string            `json:"feedback"`
	CreatedAt      time.Time         `json:"created_at"`
}

// DeriveGrade sets Grade from the points when both are present. Without
// points the stored grade must already be a valid letter grade.
func (s *Scored) DeriveGrade() error {
	switch {
	case s.PointsObtained == nil && s.TotalPoints == nil:
		if !s.Grade.Valid() {
			return errors.New("grade is required when no points are given")
		}
		return nil
	case s.PointsObtained == nil || s.TotalPoints == nil:
		return ErrPartialPoints
	}
	g, ok := grade.FromPoints(*s.PointsObtained, *s.TotalPoints)
	if !ok {
		return ErrInvalidPoints
	}
	s.Grade = g
	return nil
}

// WeeklyGrade is a teacher's grade for one student's week.
type WeeklyGrade struct {
	ID int64 `json:"id"`
	Scored
	WeekStartDate *time.Time `json:"week_start_date,omitempty"`
}

// ExamGrade is a teacher's grade for one student's exam.
type ExamGrade struct {
	ID int64 `json:"id"`
	Scored
	ExamID int64 `json:"exam_id"`
}

// PortalConfig holds runtime parameters set via CLI flags.
type PortalConfig struct {
	Lang          string         // default UI language for labels
	Location      *time.Location // week boundaries are computed here
	PromptVariant string         // suggestion prompt variant (strict, standard, lenient)
	JWTSecret     string
	TokenTTL      time.Duration
	CORSOrigins   []string
}

// QuestionImport is used for loading questions from JSON.
type QuestionImport struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Type        QuestionType `json:"type"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	VisibleAt   *time.Time   `json:"visible_at,omitempty"`
	Options     []Option     `json:"options,omitempty"`
}
