package model

import "time"

// GradebookExport is the top-level structure for gradebook export.
type GradebookExport struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Exams       []Exam             `json:"exams"`
	Students    []StudentGradebook `json:"students"`
}

// StudentGradebook holds one student's grades and answer status counts.
type StudentGradebook struct {
	StudentID    int64          `json:"student_id"`
	Username     string         `json:"username"`
	DisplayName  string         `json:"display_name"`
	WeeklyGrades []WeeklyGrade  `json:"weekly_grades"`
	ExamGrades   []ExamGrade    `json:"exam_grades"`
	StatusCounts map[string]int `json:"status_counts"`
}
