package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appI18n "github.com/pavelanni/tutorportal/internal/i18n"
	"github.com/pavelanni/tutorportal/internal/llm"
	"github.com/pavelanni/tutorportal/internal/model"
	"github.com/pavelanni/tutorportal/internal/store"
)

// Suggester proposes a correction for a text answer.
type Suggester interface {
	SuggestCorrection(ctx context.Context, q model.Question, a model.Answer) (*llm.Suggestion, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	suggester Suggester
	tokens    *tokenIssuer
	config    model.PortalConfig
	now       func() time.Time
}

// New creates a new Handler. suggester may be nil, in which case the
// suggestion endpoint answers 503.
func New(s *store.Store, sg Suggester, cfg model.PortalConfig) (*Handler, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Handler{
		store:     s,
		suggester: sg,
		tokens:    newTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		config:    cfg,
		now:       time.Now,
	}, nil
}

// Router builds the full HTTP handler with middleware.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept-Language"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(appI18n.Middleware())
	h.Routes(r)
	return r
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/auth/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/auth/logout", h.handleLogout)

		r.Route("/questions", func(r chi.Router) {
			r.Get("/", h.handleListQuestions)
			r.Get("/quantity", h.handleQuestionQuantity)
			r.Get("/{id}", h.handleGetQuestion)
			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.UserRoleTeacher, model.UserRoleAdmin))
				r.Post("/", h.handleCreateQuestion)
				r.Put("/{id}", h.handleUpdateQuestion)
				r.Delete("/{id}", h.handleDeleteQuestion)
			})
		})

		r.Route("/answers", func(r chi.Router) {
			r.Get("/", h.handleListAnswers)
			r.Get("/my-answers", h.handleMyAnswers)
			r.With(requireRole(model.UserRoleStudent)).Post("/", h.handleCreateAnswer)
			r.Put("/{id}", h.handleUpdateAnswer)
			r.Delete("/{id}", h.handleDeleteAnswer)
			r.With(requireRole(model.UserRoleTeacher, model.UserRoleAdmin)).
				Get("/question/{id}", h.handleAnswersForQuestion)
		})

		r.Route("/corrections", func(r chi.Router) {
			r.Get("/answer/{id}", h.handleCorrectionsForAnswer)
			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.UserRoleTeacher, model.UserRoleAdmin))
				r.Get("/", h.handleListCorrections)
				r.Post("/", h.handleCreateCorrection)
				r.Put("/{id}", h.handleUpdateCorrection)
				r.Post("/answer/{id}/suggest", h.handleSuggestCorrection)
			})
		})

		r.Route("/weekly-grades", func(r chi.Router) {
			r.Get("/student/{id}", h.handleWeeklyGradesForStudent)
			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.UserRoleTeacher, model.UserRoleAdmin))
				r.Get("/", h.handleListWeeklyGrades)
				r.Post("/", h.handleUpsertWeeklyGrade)
			})
		})

		r.Route("/exams", func(r chi.Router) {
			r.Get("/", h.handleListExams)
			r.With(requireRole(model.UserRoleTeacher, model.UserRoleAdmin)).Post("/", h.handleCreateExam)
		})

		r.Route("/exam-grades", func(r chi.Router) {
			r.Get("/student/{id}", h.handleExamGradesForStudent)
			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.UserRoleTeacher, model.UserRoleAdmin))
				r.Get("/", h.handleListExamGrades)
				r.Post("/", h.handleUpsertExamGrade)
			})
		})

		r.Get("/me/status", h.handleMyStatus)
		r.Get("/me/weeks", h.handleMyWeeks)
		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleTeacher, model.UserRoleAdmin))
			r.Get("/students/{id}/status", h.handleStudentStatus)
			r.Get("/students/{id}/weeks", h.handleStudentWeeks)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/", h.handleListUsers)
			r.Post("/", h.handleCreateUser)
			r.Post("/{id}/toggle", h.handleToggleUserActive)
		})
	})
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeStoreError maps a store error to a response. Missing rows become 404.
func writeStoreError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	slog.Error("store error", "entity", what, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// decodeJSON reads a request body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	if fields := validateStruct(dst); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: fields})
		return false
	}
	return true
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
