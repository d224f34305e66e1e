package handler

import (
	"net/http"
	"time"

	"github.com/pavelanni/tutorportal/internal/model"
)

type optionRequest struct {
	Text    string `json:"text" validate:"required,max=500"`
	Correct bool   `json:"correct"`
}

type questionRequest struct {
	Title       string             `json:"title" validate:"required,max=200"`
	Description string             `json:"description" validate:"max=10000"`
	Type        model.QuestionType `json:"type" validate:"required,oneof=TEXT MULTIPLE_CHOICE"`
	ExpiresAt   *time.Time         `json:"expires_at"`
	VisibleAt   *time.Time         `json:"visible_at"`
	Options     []optionRequest    `json:"options" validate:"omitempty,dive"`
}

// check enforces the rules validator tags cannot express.
func (req questionRequest) check() string {
	if req.Type == model.QuestionText {
		if len(req.Options) > 0 {
			return "text questions take no options"
		}
		return ""
	}
	if len(req.Options) < 2 {
		return "multiple-choice questions need at least two options"
	}
	for _, o := range req.Options {
		if o.Correct {
			return ""
		}
	}
	return "multiple-choice questions need a correct option"
}

func (req questionRequest) toModel() model.Question {
	q := model.Question{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		ExpiresAt:   req.ExpiresAt,
		VisibleAt:   req.VisibleAt,
	}
	for _, o := range req.Options {
		q.Options = append(q.Options, model.Option{Text: o.Text, Correct: o.Correct})
	}
	return q
}

// forStudent hides which options are correct.
func forStudent(q model.Question) model.Question {
	if len(q.Options) == 0 {
		return q
	}
	opts := make([]model.Option, len(q.Options))
	for i, o := range q.Options {
		opts[i] = model.Option{Text: o.Text}
	}
	q.Options = opts
	return q
}

// questionsFor lists the questions the current user may see.
func (h *Handler) questionsFor(u *model.User) ([]model.Question, error) {
	if u.IsStaff() {
		return h.store.ListQuestions()
	}
	qs, err := h.store.ListVisibleQuestions(h.now())
	if err != nil {
		return nil, err
	}
	for i := range qs {
		qs[i] = forStudent(qs[i])
	}
	return qs, nil
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := h.questionsFor(model.UserFromContext(r.Context()))
	if err != nil {
		writeStoreError(w, "questions", err)
		return
	}
	if qs == nil {
		qs = []model.Question{}
	}
	writeJSON(w, http.StatusOK, qs)
}

func (h *Handler) handleQuestionQuantity(w http.ResponseWriter, r *http.Request) {
	u := model.UserFromContext(r.Context())
	if u.IsStaff() {
		n, err := h.store.QuestionCount()
		if err != nil {
			writeStoreError(w, "questions", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"quantity": n})
		return
	}
	qs, err := h.questionsFor(u)
	if err != nil {
		writeStoreError(w, "questions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"quantity": len(qs)})
}

func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	q, err := h.store.GetQuestion(id)
	if err != nil {
		writeStoreError(w, "question", err)
		return
	}
	if u := model.UserFromContext(r.Context()); !u.IsStaff() {
		if !q.Visible(h.now()) {
			writeError(w, http.StatusNotFound, "question not found")
			return
		}
		q = forStudent(q)
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.check(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	id, err := h.store.InsertQuestion(req.toModel())
	if err != nil {
		writeStoreError(w, "question", err)
		return
	}
	q, err := h.store.GetQuestion(id)
	if err != nil {
		writeStoreError(w, "question", err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req questionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.check(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	q := req.toModel()
	q.ID = id
	if err := h.store.UpdateQuestion(q); err != nil {
		writeStoreError(w, "question", err)
		return
	}
	updated, err := h.store.GetQuestion(id)
	if err != nil {
		writeStoreError(w, "question", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteQuestion(id); err != nil {
		writeStoreError(w, "question", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
