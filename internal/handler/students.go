package handler

import (
	"net/http"

	"github.com/pavelanni/tutorportal/internal/grade"
	appI18n "github.com/pavelanni/tutorportal/internal/i18n"
	"github.com/pavelanni/tutorportal/internal/model"
	"github.com/pavelanni/tutorportal/internal/status"
	"github.com/pavelanni/tutorportal/internal/store"
	"github.com/pavelanni/tutorportal/internal/weekly"
)

type statusView struct {
	status.Entry
	Label        string `json:"label"`
	GradeDisplay string `json:"grade_display"`
}

type weekView struct {
	weekly.Summary
	Label            string       `json:"label"`
	Progress         string       `json:"progress"`
	SuggestedDisplay string       `json:"suggested_grade_display"`
	Entries          []statusView `json:"entries"`
}

// resolveStudent resolves the status of every question the student can see.
func (h *Handler) resolveStudent(studentID int64, redact bool) ([]status.Entry, error) {
	now := h.now()
	questions, err := h.store.ListVisibleQuestions(now)
	if err != nil {
		return nil, err
	}
	answers, err := h.store.ListAnswers(store.AnswerFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	corrections, err := h.store.CorrectionsByAnswerForStudent(studentID)
	if err != nil {
		return nil, err
	}
	if redact {
		for i := range questions {
			questions[i] = forStudent(questions[i])
		}
	}
	return status.ResolveAll(questions, answers, corrections, now), nil
}

func (h *Handler) statusViews(r *http.Request, entries []status.Entry) []statusView {
	out := make([]statusView, 0, len(entries))
	for _, e := range entries {
		v := statusView{Entry: e, Label: appI18n.StatusLabel(r.Context(), string(e.Status))}
		if e.Correction != nil {
			v.GradeDisplay = grade.Display(string(e.Correction.Grade))
		}
		out = append(out, v)
	}
	return out
}

func (h *Handler) weekViews(r *http.Request, entries []status.Entry) []weekView {
	ctx := r.Context()
	summaries := weekly.Summarize(entries, h.config.Location)
	out := make([]weekView, 0, len(summaries))
	for _, s := range summaries {
		v := weekView{
			Summary:  s,
			Progress: appI18n.Tp(ctx, "QuestionsAnswered", s.Completion.Total, map[string]any{"Answered": s.Completion.Answered}),
			Entries:  h.statusViews(r, s.Entries),
		}
		if s.Start == nil {
			v.Label = appI18n.T(ctx, "NoDate")
		} else {
			v.Label = appI18n.Td(ctx, "WeekOf", map[string]any{"Date": s.Week})
		}
		if s.Suggested != "" {
			v.SuggestedDisplay = grade.Display(string(s.Suggested))
		}
		out = append(out, v)
	}
	return out
}

func (h *Handler) writeStatus(w http.ResponseWriter, r *http.Request, studentID int64, redact bool) {
	entries, err := h.resolveStudent(studentID, redact)
	if err != nil {
		writeStoreError(w, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, h.statusViews(r, entries))
}

func (h *Handler) writeWeeks(w http.ResponseWriter, r *http.Request, studentID int64, redact bool) {
	entries, err := h.resolveStudent(studentID, redact)
	if err != nil {
		writeStoreError(w, "weeks", err)
		return
	}
	writeJSON(w, http.StatusOK, h.weekViews(r, entries))
}

func (h *Handler) handleMyStatus(w http.ResponseWriter, r *http.Request) {
	u := model.UserFromContext(r.Context())
	h.writeStatus(w, r, u.ID, !u.IsStaff())
}

func (h *Handler) handleMyWeeks(w http.ResponseWriter, r *http.Request) {
	u := model.UserFromContext(r.Context())
	h.writeWeeks(w, r, u.ID, !u.IsStaff())
}

func (h *Handler) handleStudentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok || !h.requireStudent(w, id) {
		return
	}
	h.writeStatus(w, r, id, false)
}

func (h *Handler) handleStudentWeeks(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok || !h.requireStudent(w, id) {
		return
	}
	h.writeWeeks(w, r, id, false)
}
