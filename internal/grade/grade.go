// Package grade maps scores and percentages to letter grades and back.
package grade

import (
	"fmt"
	"math"
	"strings"
)

// LetterGrade is a letter grade in its wire form (A_PLUS, A, A_MINUS, ...).
type LetterGrade string

const (
	APlus  LetterGrade = "A_PLUS"
	A      LetterGrade = "A"
	AMinus LetterGrade = "A_MINUS"
	BPlus  LetterGrade = "B_PLUS"
	B      LetterGrade = "B"
	BMinus LetterGrade = "B_MINUS"
	CPlus  LetterGrade = "C_PLUS"
	C      LetterGrade = "C"
	CMinus LetterGrade = "C_MINUS"
	DPlus  LetterGrade = "D_PLUS"
	D      LetterGrade = "D"
	F      LetterGrade = "F"
)

// step is one rung of the grading ladder: the lowest percentage that
// still earns the grade, plus its display and ten-point representations.
type step struct {
	grade   LetterGrade
	minPct  float64
	display string
	tenPt   string
}

// ladder is ordered highest grade first. Both the percentage and the
// ten-point scales read from it.
var ladder = []step{
	{APlus, 95, "A+", "9.5"},
	{A, 90, "A", "9.0"},
	{AMinus, 85, "A-", "8.5"},
	{BPlus, 80, "B+", "8.0"},
	{B, 70, "B", "7.0"},
	{BMinus, 65, "B-", "6.5"},
	{CPlus, 60, "C+", "6.0"},
	{C, 50, "C", "5.0"},
	{CMinus, 45, "C-", "4.5"},
	{DPlus, 40, "D+", "4.0"},
	{D, 30, "D", "3.0"},
	{F, math.Inf(-1), "F", "0"},
}

var (
	byToken   = make(map[LetterGrade]step, len(ladder))
	byDisplay = make(map[string]LetterGrade, len(ladder))
	rank      = make(map[LetterGrade]int, len(ladder))
)

func init() {
	for i, s := range ladder {
		byToken[s.grade] = s
		byDisplay[s.display] = s.grade
		rank[s.grade] = len(ladder) - i
	}
}

// All returns the twelve letter grades, highest first.
func All() []LetterGrade {
	out := make([]LetterGrade, len(ladder))
	for i, s := range ladder {
		out[i] = s.grade
	}
	return out
}

// Valid reports whether g is one of the twelve wire tokens.
func (g LetterGrade) Valid() bool {
	_, ok := byToken[g]
	return ok
}

// Rank orders grades academically: F is 1, A+ is 12, unknown values are 0.
func (g LetterGrade) Rank() int {
	return rank[g]
}

// String returns the display form.
func (g LetterGrade) String() string {
	return Display(string(g))
}

// FromPercentage maps a percentage to a letter grade. The first rung whose
// lower bound is met wins.
func FromPercentage(p float64) LetterGrade {
	for _, s := range ladder {
		if p >= s.minPct {
			return s.grade
		}
	}
	return F
}

// FromTenPoint maps a 0-10 score (manual text correction) to a letter
// grade. ok is false for NaN or values outside [0, 10].
func FromTenPoint(v float64) (LetterGrade, bool) {
	if math.IsNaN(v) || v < 0 || v > 10 {
		return "", false
	}
	return FromPercentage(v * 10), true
}

// FromPoints derives the grade of a points-based record. ok is false when
// total is not positive or obtained falls outside [0, total].
func FromPoints(obtained, total float64) (LetterGrade, bool) {
	if math.IsNaN(obtained) || math.IsNaN(total) || total <= 0 || obtained < 0 || obtained > total {
		return "", false
	}
	return FromPercentage(obtained / total * 100), true
}

// Display renders a grade for humans: A_PLUS becomes "A+", A_MINUS "A-".
// Values already in display form come back unchanged, empty input becomes
// "N/A" and anything unrecognized is returned as is.
func Display(s string) string {
	if s == "" {
		return "N/A"
	}
	if st, ok := byToken[LetterGrade(s)]; ok {
		return st.display
	}
	return s
}

// TenPointApprox returns the representative ten-point value used to
// pre-fill an edit field. It is not an inverse of FromTenPoint.
func TenPointApprox(g LetterGrade) string {
	if st, ok := byToken[g]; ok {
		return st.tenPt
	}
	return ""
}

// Parse accepts a grade in wire or display form, ignoring surrounding
// whitespace and case.
func Parse(s string) (LetterGrade, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if g := LetterGrade(s); g.Valid() {
		return g, nil
	}
	if g, ok := byDisplay[s]; ok {
		return g, nil
	}
	return "", fmt.Errorf("unknown letter grade %q", s)
}

// IsCorrect reports whether a stored grade counts as a correct answer.
// Auto-correction only ever writes A or F, so everything except F (and an
// absent grade) is correct. The rule is applied regardless of question type.
func IsCorrect(g LetterGrade) bool {
	if g == "" {
		return false
	}
	if parsed, err := Parse(string(g)); err == nil {
		g = parsed
	}
	return g != F
}
