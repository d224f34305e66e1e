// Package export writes the gradebook as JSON or as an Excel workbook.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/tutorportal/internal/grade"
	"github.com/pavelanni/tutorportal/internal/model"
	"github.com/pavelanni/tutorportal/internal/status"
)

// Sheet names in the workbook.
const (
	SheetWeekly = "Weekly grades"
	SheetExams  = "Exam grades"
	SheetStatus = "Status summary"
)

// Format names an output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// FormatFromPath picks the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return FormatXLSX
	}
	return FormatJSON
}

// Write writes gb to w in the given format.
func Write(w io.Writer, gb *model.GradebookExport, f Format) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, gb)
	case FormatXLSX:
		return WriteXLSX(w, gb)
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

// WriteJSON writes the gradebook as indented JSON.
func WriteJSON(w io.Writer, gb *model.GradebookExport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(gb)
}

// WriteXLSX writes the gradebook as a workbook with one sheet for weekly
// grades, one for exam grades and one for answer status counts.
func WriteXLSX(w io.Writer, gb *model.GradebookExport) error {
	f := excelize.NewFile()
	defer f.Close()

	examTitles := make(map[int64]string, len(gb.Exams))
	for _, e := range gb.Exams {
		examTitles[e.ID] = e.Title
	}

	weekly := [][]any{{"Student", "Username", "Week", "Points", "Total", "Grade", "Feedback"}}
	exams := [][]any{{"Student", "Username", "Exam", "Points", "Total", "Grade", "Feedback"}}
	statusHeader := []any{"Student", "Username"}
	for _, st := range status.All() {
		statusHeader = append(statusHeader, string(st))
	}
	summary := [][]any{statusHeader}

	for _, sg := range gb.Students {
		for _, g := range sg.WeeklyGrades {
			week := ""
			if g.WeekStartDate != nil {
				week = g.WeekStartDate.Format("2006-01-02")
			}
			weekly = append(weekly, []any{
				sg.DisplayName, sg.Username, week,
				floatCell(g.PointsObtained), floatCell(g.TotalPoints),
				grade.Display(string(g.Grade)), g.Feedback,
			})
		}
		for _, g := range sg.ExamGrades {
			title := examTitles[g.ExamID]
			if title == "" {
				title = fmt.Sprintf("#%d", g.ExamID)
			}
			exams = append(exams, []any{
				sg.DisplayName, sg.Username, title,
				floatCell(g.PointsObtained), floatCell(g.TotalPoints),
				grade.Display(string(g.Grade)), g.Feedback,
			})
		}
		row := []any{sg.DisplayName, sg.Username}
		for _, st := range status.All() {
			row = append(row, sg.StatusCounts[string(st)])
		}
		summary = append(summary, row)
	}

	// The default sheet becomes the weekly sheet.
	if err := f.SetSheetName("Sheet1", SheetWeekly); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetExams, SheetStatus} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	for name, rows := range map[string][][]any{SheetWeekly: weekly, SheetExams: exams, SheetStatus: summary} {
		if err := writeRows(f, name, rows); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func floatCell(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
