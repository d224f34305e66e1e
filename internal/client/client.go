// Package client talks to a tutorportal server over its REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/tutorportal/internal/model"
)

// maxInflight bounds concurrent correction fetches in Snapshot.
const maxInflight = 4

// Client is a bearer-token REST client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	now     func() time.Time
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		now:     time.Now,
	}
}

// WithToken sets the bearer token used for every request.
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// Login exchanges credentials for a token and keeps it on the client.
func (c *Client) Login(ctx context.Context, username, password string) (*model.User, error) {
	var resp struct {
		Token string      `json:"token"`
		User  *model.User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"username": username, "password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.Token
	return resp.User, nil
}

// Questions lists the questions the caller can see.
func (c *Client) Questions(ctx context.Context) ([]model.Question, error) {
	var qs []model.Question
	return qs, c.do(ctx, http.MethodGet, "/questions", nil, &qs)
}

// Answers lists a student's answers. A zero studentID means the caller's own.
func (c *Client) Answers(ctx context.Context, studentID int64) ([]model.Answer, error) {
	path := "/answers/my-answers"
	if studentID != 0 {
		path = "/answers?student_id=" + strconv.FormatInt(studentID, 10)
	}
	var as []model.Answer
	return as, c.do(ctx, http.MethodGet, path, nil, &as)
}

// CorrectionsForAnswer lists an answer's corrections, newest first.
func (c *Client) CorrectionsForAnswer(ctx context.Context, answerID int64) ([]model.Correction, error) {
	var cs []model.Correction
	return cs, c.do(ctx, http.MethodGet, "/corrections/answer/"+strconv.FormatInt(answerID, 10), nil, &cs)
}

// Users lists users, optionally filtered by role. Admin only.
func (c *Client) Users(ctx context.Context, role model.UserRole) ([]model.User, error) {
	path := "/users"
	if role != "" {
		path += "?role=" + string(role)
	}
	var us []model.User
	return us, c.do(ctx, http.MethodGet, path, nil, &us)
}

// WeeklyGrades lists a student's weekly grades.
func (c *Client) WeeklyGrades(ctx context.Context, studentID int64) ([]model.WeeklyGrade, error) {
	var gs []model.WeeklyGrade
	return gs, c.do(ctx, http.MethodGet, "/weekly-grades/student/"+strconv.FormatInt(studentID, 10), nil, &gs)
}

// Snapshot is everything needed to resolve one student's statuses.
type Snapshot struct {
	Questions   []model.Question
	Answers     []model.Answer
	Corrections map[int64][]model.Correction
}

// Snapshot fetches questions and answers concurrently, then each answer's
// corrections with bounded concurrency. A failed call is logged and leaves
// its part empty; only context cancellation aborts the whole fetch.
// Questions not yet visible to students are dropped, since staff callers
// receive them too.
func (c *Client) Snapshot(ctx context.Context, studentID int64) (*Snapshot, error) {
	snap := &Snapshot{Corrections: make(map[int64][]model.Correction)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		qs, err := c.Questions(gctx)
		if err != nil {
			slog.Warn("fetch questions failed", "error", err)
			return nil
		}
		now := c.now()
		for _, q := range qs {
			if q.Visible(now) {
				snap.Questions = append(snap.Questions, q)
			}
		}
		return nil
	})
	g.Go(func() error {
		as, err := c.Answers(gctx, studentID)
		if err != nil {
			slog.Warn("fetch answers failed", "student_id", studentID, "error", err)
			return nil
		}
		snap.Answers = as
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([][]model.Correction, len(snap.Answers))
	cg, cctx := errgroup.WithContext(ctx)
	cg.SetLimit(maxInflight)
	for i, a := range snap.Answers {
		cg.Go(func() error {
			cs, err := c.CorrectionsForAnswer(cctx, a.ID)
			if err != nil {
				slog.Warn("fetch corrections failed", "answer_id", a.ID, "error", err)
				return nil
			}
			results[i] = cs
			return nil
		})
	}
	_ = cg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, a := range snap.Answers {
		if len(results[i]) > 0 {
			snap.Corrections[a.ID] = results[i]
		}
	}
	return snap, nil
}
