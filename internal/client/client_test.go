package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pavelanni/tutorportal/internal/grade"
	"github.com/pavelanni/tutorportal/internal/model"
)

// fakeServer mimics the endpoints Snapshot uses. Corrections for answer 2
// fail with a 500.
func fakeServer(t *testing.T, failQuestions bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSON(w, map[string]string{"error": "invalid credentials"})
			return
		}
		writeJSON(w, map[string]any{"token": "tok", "user": model.User{ID: 9, Username: body["username"]}})
	})
	mux.HandleFunc("GET /questions", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if failQuestions {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		// Staff see questions that are still hidden from students.
		hidden := time.Date(2999, 1, 1, 0, 0, 0, 0, time.UTC)
		writeJSON(w, []model.Question{{ID: 1, Title: "Q1"}, {ID: 2, Title: "Q2"}, {ID: 3, Title: "Hidden", VisibleAt: &hidden}})
	})
	mux.HandleFunc("GET /answers", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("student_id") != "5" {
			t.Errorf("student_id = %q, want 5", r.URL.Query().Get("student_id"))
		}
		writeJSON(w, []model.Answer{{ID: 1, QuestionID: 1}, {ID: 2, QuestionID: 2}, {ID: 3, QuestionID: 2}})
	})
	mux.HandleFunc("GET /corrections/answer/{id}", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.PathValue("id") {
		case "1":
			writeJSON(w, []model.Correction{{ID: 10, AnswerID: 1, Grade: grade.A}})
		case "2":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			writeJSON(w, []model.Correction{})
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestLogin(t *testing.T) {
	srv, _ := fakeServer(t, false)
	c := New(srv.URL + "/")

	_, err := c.Login(context.Background(), "ana", "bad")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Message != "invalid credentials" {
		t.Fatalf("expected 401 APIError, got %v", err)
	}

	u, err := c.Login(context.Background(), "ana", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.ID != 9 || c.token != "tok" {
		t.Errorf("user = %+v token = %q", u, c.token)
	}
}

func TestSnapshot(t *testing.T) {
	srv, calls := fakeServer(t, false)
	c := New(srv.URL).WithToken("tok")

	snap, err := c.Snapshot(context.Background(), 5)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Questions) != 2 || len(snap.Answers) != 3 {
		t.Errorf("got %d questions %d answers", len(snap.Questions), len(snap.Answers))
	}
	for _, q := range snap.Questions {
		if q.ID == 3 {
			t.Error("hidden question should be dropped")
		}
	}
	if cs := snap.Corrections[1]; len(cs) != 1 || cs[0].Grade != grade.A {
		t.Errorf("corrections[1] = %+v", cs)
	}
	if _, ok := snap.Corrections[2]; ok {
		t.Error("failed fetch should leave corrections[2] empty")
	}
	if n := calls.Load(); n != 5 {
		t.Errorf("calls = %d, want 5", n)
	}
}

func TestSnapshotHiddenQuestionBecomesVisible(t *testing.T) {
	srv, _ := fakeServer(t, false)
	c := New(srv.URL).WithToken("tok")
	c.now = func() time.Time { return time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC) }

	snap, err := c.Snapshot(context.Background(), 5)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Questions) != 3 {
		t.Errorf("questions = %d, want 3 once visible_at has passed", len(snap.Questions))
	}
}

func TestSnapshotDegradesOnFailure(t *testing.T) {
	srv, _ := fakeServer(t, true)
	c := New(srv.URL).WithToken("tok")

	snap, err := c.Snapshot(context.Background(), 5)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Questions) != 0 {
		t.Errorf("questions = %d, want 0", len(snap.Questions))
	}
	if len(snap.Answers) != 3 {
		t.Errorf("answers = %d, want 3 despite question failure", len(snap.Answers))
	}
}

func TestSnapshotCanceled(t *testing.T) {
	srv, _ := fakeServer(t, false)
	c := New(srv.URL).WithToken("tok")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Snapshot(ctx, 5); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
