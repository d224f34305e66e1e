package handler

import (
	"net/http"
	"time"

	"github.com/pavelanni/tutorportal/internal/grade"
	"github.com/pavelanni/tutorportal/internal/model"
	"github.com/pavelanni/tutorportal/internal/weekly"
)

// scoredRequest carries either points or a letter grade.
type scoredRequest struct {
	StudentID      int64    `json:"student_id" validate:"required,gt=0"`
	PointsObtained *float64 `json:"points_obtained" validate:"omitempty,gte=0"`
	TotalPoints    *float64 `json:"total_points" validate:"omitempty,gt=0"`
	Grade          string   `json:"grade" validate:"omitempty,lettergrade"`
	Feedback       string   `json:"feedback" validate:"max=5000"`
}

// toScored derives the grade from the points when they are present.
func (req scoredRequest) toScored() (model.Scored, error) {
	s := model.Scored{
		StudentID:      req.StudentID,
		PointsObtained: req.PointsObtained,
		TotalPoints:    req.TotalPoints,
		Feedback:       req.Feedback,
	}
	if req.Grade != "" {
		g, err := grade.Parse(req.Grade)
		if err != nil {
			return s, err
		}
		s.Grade = g
	}
	return s, s.DeriveGrade()
}

type weeklyGradeRequest struct {
	scoredRequest
	WeekStartDate string `json:"week_start_date" validate:"required,datetime=2006-01-02"`
}

type examRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
}

type examGradeRequest struct {
	scoredRequest
	ExamID int64 `json:"exam_id" validate:"required,gt=0"`
}

// studentParam resolves {id} to a student the caller may read. Students
// may only read their own records.
func (h *Handler) studentParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := idParam(w, r)
	if !ok {
		return 0, false
	}
	if u := model.UserFromContext(r.Context()); !u.IsStaff() && u.ID != id {
		writeError(w, http.StatusForbidden, "forbidden")
		return 0, false
	}
	return id, true
}

// requireStudent checks that id names an existing student.
func (h *Handler) requireStudent(w http.ResponseWriter, id int64) bool {
	u, err := h.store.GetUserByID(id)
	if err != nil {
		writeStoreError(w, "student", err)
		return false
	}
	if u == nil || u.Role != model.UserRoleStudent {
		writeError(w, http.StatusNotFound, "student not found")
		return false
	}
	return true
}

func (h *Handler) writeWeeklyGrades(w http.ResponseWriter, studentID int64) {
	gs, err := h.store.ListWeeklyGrades(studentID)
	if err != nil {
		writeStoreError(w, "weekly grades", err)
		return
	}
	if gs == nil {
		gs = []model.WeeklyGrade{}
	}
	writeJSON(w, http.StatusOK, gs)
}

func (h *Handler) handleListWeeklyGrades(w http.ResponseWriter, r *http.Request) {
	h.writeWeeklyGrades(w, 0)
}

func (h *Handler) handleWeeklyGradesForStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.studentParam(w, r)
	if !ok {
		return
	}
	h.writeWeeklyGrades(w, id)
}

func (h *Handler) handleUpsertWeeklyGrade(w http.ResponseWriter, r *http.Request) {
	var req weeklyGradeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	scored, err := req.toScored()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.requireStudent(w, req.StudentID) {
		return
	}
	day, err := time.ParseInLocation("2006-01-02", req.WeekStartDate, h.config.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid week_start_date")
		return
	}
	start := weekly.WeekStart(day)

	id, err := h.store.UpsertWeeklyGrade(model.WeeklyGrade{Scored: scored, WeekStartDate: &start})
	if err != nil {
		writeStoreError(w, "weekly grade", err)
		return
	}
	g := model.WeeklyGrade{ID: id, Scored: scored, WeekStartDate: &start}
	writeJSON(w, http.StatusOK, g)
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.store.ListExams()
	if err != nil {
		writeStoreError(w, "exams", err)
		return
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	writeJSON(w, http.StatusOK, exams)
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := h.store.InsertExam(model.Exam{Title: req.Title, Description: req.Description})
	if err != nil {
		writeStoreError(w, "exam", err)
		return
	}
	e, err := h.store.GetExam(id)
	if err != nil {
		writeStoreError(w, "exam", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) writeExamGrades(w http.ResponseWriter, studentID int64) {
	gs, err := h.store.ListExamGrades(studentID)
	if err != nil {
		writeStoreError(w, "exam grades", err)
		return
	}
	if gs == nil {
		gs = []model.ExamGrade{}
	}
	writeJSON(w, http.StatusOK, gs)
}

func (h *Handler) handleListExamGrades(w http.ResponseWriter, r *http.Request) {
	h.writeExamGrades(w, 0)
}

func (h *Handler) handleExamGradesForStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.studentParam(w, r)
	if !ok {
		return
	}
	h.writeExamGrades(w, id)
}

func (h *Handler) handleUpsertExamGrade(w http.ResponseWriter, r *http.Request) {
	var req examGradeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	scored, err := req.toScored()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.requireStudent(w, req.StudentID) {
		return
	}
	if _, err := h.store.GetExam(req.ExamID); err != nil {
		writeStoreError(w, "exam", err)
		return
	}
	id, err := h.store.UpsertExamGrade(model.ExamGrade{Scored: scored, ExamID: req.ExamID})
	if err != nil {
		writeStoreError(w, "exam grade", err)
		return
	}
	writeJSON(w, http.StatusOK, model.ExamGrade{ID: id, Scored: scored, ExamID: req.ExamID})
}
