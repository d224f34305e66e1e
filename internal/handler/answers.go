package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/pavelanni/tutorportal/internal/model"
	"github.com/pavelanni/tutorportal/internal/store"
)

type answerRequest struct {
	QuestionID int64  `json:"question_id" validate:"required,gt=0"`
	Text       string `json:"text" validate:"required_without=ImagePath,max=20000"`
	ImagePath  string `json:"image_path" validate:"max=500"`
}

type answerUpdateRequest struct {
	Text      string `json:"text" validate:"required_without=ImagePath,max=20000"`
	ImagePath string `json:"image_path" validate:"max=500"`
}

func writeAnswers(w http.ResponseWriter, answers []model.Answer) {
	if answers == nil {
		answers = []model.Answer{}
	}
	writeJSON(w, http.StatusOK, answers)
}

func queryID(r *http.Request, key string) (int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func (h *Handler) handleListAnswers(w http.ResponseWriter, r *http.Request) {
	u := model.UserFromContext(r.Context())
	var f store.AnswerFilter
	var err error
	if f.QuestionID, err = queryID(r, "question_id"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid question_id")
		return
	}
	if u.IsStaff() {
		if f.StudentID, err = queryID(r, "student_id"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid student_id")
			return
		}
	} else {
		f.StudentID = u.ID
	}
	answers, err := h.store.ListAnswers(f)
	if err != nil {
		writeStoreError(w, "answers", err)
		return
	}
	writeAnswers(w, answers)
}

func (h *Handler) handleMyAnswers(w http.ResponseWriter, r *http.Request) {
	u := model.UserFromContext(r.Context())
	answers, err := h.store.ListAnswers(store.AnswerFilter{StudentID: u.ID})
	if err != nil {
		writeStoreError(w, "answers", err)
		return
	}
	writeAnswers(w, answers)
}

func (h *Handler) handleAnswersForQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	answers, err := h.store.ListAnswers(store.AnswerFilter{QuestionID: id})
	if err != nil {
		writeStoreError(w, "answers", err)
		return
	}
	writeAnswers(w, answers)
}

func (h *Handler) handleCreateAnswer(w http.ResponseWriter, r *http.Request) {
	u := model.UserFromContext(r.Context())
	var req answerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	q, err := h.store.GetQuestion(req.QuestionID)
	if err != nil {
		writeStoreError(w, "question", err)
		return
	}
	now := h.now()
	if !q.Visible(now) {
		writeError(w, http.StatusNotFound, "question not found")
		return
	}
	if q.Expired(now) {
		writeError(w, http.StatusConflict, "question has expired")
		return
	}

	existing, err := h.store.ListAnswers(store.AnswerFilter{StudentID: u.ID, QuestionID: q.ID})
	if err != nil {
		writeStoreError(w, "answers", err)
		return
	}
	if len(existing) > 0 {
		writeError(w, http.StatusConflict, "question already answered")
		return
	}

	id, err := h.store.InsertAnswer(model.Answer{
		StudentID:  u.ID,
		QuestionID: q.ID,
		Text:       req.Text,
		ImagePath:  req.ImagePath,
		CreatedAt:  now,
	})
	if err != nil {
		writeStoreError(w, "answer", err)
		return
	}
	a, err := h.store.GetAnswer(id)
	if err != nil {
		writeStoreError(w, "answer", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// ownAnswer loads an answer the current student owns and may still change.
func (h *Handler) ownAnswer(w http.ResponseWriter, r *http.Request) (model.Answer, bool) {
	id, ok := idParam(w, r)
	if !ok {
		return model.Answer{}, false
	}
	a, err := h.store.GetAnswer(id)
	if err != nil {
		writeStoreError(w, "answer", err)
		return a, false
	}
	u := model.UserFromContext(r.Context())
	if a.StudentID != u.ID {
		writeError(w, http.StatusForbidden, "not your answer")
		return a, false
	}
	q, err := h.store.GetQuestion(a.QuestionID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		writeStoreError(w, "question", err)
		return a, false
	}
	if err == nil && q.Expired(h.now()) {
		writeError(w, http.StatusConflict, "question has expired")
		return a, false
	}
	return a, true
}

func (h *Handler) handleUpdateAnswer(w http.ResponseWriter, r *http.Request) {
	a, ok := h.ownAnswer(w, r)
	if !ok {
		return
	}
	var req answerUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.store.UpdateAnswer(a.ID, req.Text, req.ImagePath); err != nil {
		writeStoreError(w, "answer", err)
		return
	}
	a.Text, a.ImagePath = req.Text, req.ImagePath
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleDeleteAnswer(w http.ResponseWriter, r *http.Request) {
	var id int64
	if u := model.UserFromContext(r.Context()); u.IsStaff() {
		var ok bool
		if id, ok = idParam(w, r); !ok {
			return
		}
	} else {
		a, ok := h.ownAnswer(w, r)
		if !ok {
			return
		}
		id = a.ID
	}
	if err := h.store.DeleteAnswer(id); err != nil {
		writeStoreError(w, "answer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
