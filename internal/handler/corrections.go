package handler

import (
	"log/slog"
	"net/http"

	"github.com/pavelanni/tutorportal/internal/grade"
	"github.com/pavelanni/tutorportal/internal/model"
)

// gradeInput is a grade given either as a letter or as a ten-point score.
type gradeInput struct {
	Grade string   `json:"grade" validate:"omitempty,lettergrade"`
	Score *float64 `json:"score"`
}

// resolve returns the letter grade, preferring the score when both are set.
func (in gradeInput) resolve() (grade.LetterGrade, string) {
	if in.Score != nil {
		g, ok := grade.FromTenPoint(*in.Score)
		if !ok {
			return "", "score must be between 0 and 10"
		}
		return g, ""
	}
	if in.Grade == "" {
		return "", "grade or score is required"
	}
	g, err := grade.Parse(in.Grade)
	if err != nil {
		return "", err.Error()
	}
	return g, ""
}

type correctionRequest struct {
	AnswerID int64 `json:"answer_id" validate:"required,gt=0"`
	gradeInput
	Feedback string `json:"feedback" validate:"max=5000"`
}

type correctionUpdateRequest struct {
	gradeInput
	Feedback string `json:"feedback" validate:"max=5000"`
}

func writeCorrections(w http.ResponseWriter, cs []model.Correction) {
	if cs == nil {
		cs = []model.Correction{}
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *Handler) handleListCorrections(w http.ResponseWriter, r *http.Request) {
	cs, err := h.store.ListCorrections()
	if err != nil {
		writeStoreError(w, "corrections", err)
		return
	}
	writeCorrections(w, cs)
}

func (h *Handler) handleCorrectionsForAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if u := model.UserFromContext(r.Context()); !u.IsStaff() {
		a, err := h.store.GetAnswer(id)
		if err != nil {
			writeStoreError(w, "answer", err)
			return
		}
		if a.StudentID != u.ID {
			writeError(w, http.StatusForbidden, "not your answer")
			return
		}
	}
	cs, err := h.store.ListCorrectionsForAnswer(id)
	if err != nil {
		writeStoreError(w, "corrections", err)
		return
	}
	writeCorrections(w, cs)
}

func (h *Handler) handleCreateCorrection(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	g, msg := req.resolve()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if _, err := h.store.GetAnswer(req.AnswerID); err != nil {
		writeStoreError(w, "answer", err)
		return
	}
	c, err := h.store.UpsertCorrection(model.Correction{
		AnswerID:  req.AnswerID,
		Grade:     g,
		Feedback:  req.Feedback,
		CreatedAt: h.now(),
	})
	if err != nil {
		writeStoreError(w, "correction", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleUpdateCorrection(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req correctionUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	g, msg := req.resolve()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := h.store.UpdateCorrection(id, g, req.Feedback); err != nil {
		writeStoreError(w, "correction", err)
		return
	}
	c, err := h.store.GetCorrection(id)
	if err != nil {
		writeStoreError(w, "correction", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleSuggestCorrection(w http.ResponseWriter, r *http.Request) {
	if h.suggester == nil {
		writeError(w, http.StatusServiceUnavailable, "suggestions are not configured")
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	a, err := h.store.GetAnswer(id)
	if err != nil {
		writeStoreError(w, "answer", err)
		return
	}
	q, err := h.store.GetQuestion(a.QuestionID)
	if err != nil {
		writeStoreError(w, "question", err)
		return
	}
	if q.Type != model.QuestionText {
		writeError(w, http.StatusBadRequest, "suggestions are only available for text answers")
		return
	}

	s, err := h.suggester.SuggestCorrection(r.Context(), q, a)
	if err != nil {
		slog.Error("suggestion failed", "answer_id", a.ID, "error", err)
		writeError(w, http.StatusBadGateway, "suggestion failed")
		return
	}
	writeJSON(w, http.StatusOK, s)
}
