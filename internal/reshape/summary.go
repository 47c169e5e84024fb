package reshape

import (
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"

	"gradegrid/domain/grid"
)

// Summary describes a transformed table for previews and request logs.
type Summary struct {
	Rows     int `json:"rows"`
	Students int `json:"students"`
	Courses  int `json:"courses"`

	CoursesPerStudent LoadStats `json:"courses_per_student"`

	// CreditsPerStudent covers only credit cells that read as numbers.
	CreditsPerStudent LoadStats `json:"credits_per_student"`
	NonNumericCredits int       `json:"non_numeric_credits"`
}

// LoadStats is a small distribution summary.
type LoadStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summarize reports student, course and per-student load figures for t.
// It does not modify the table.
func Summarize(t *grid.Table) Summary {
	summary := Summary{Rows: t.Len()}
	if t.Len() == 0 {
		return summary
	}

	var order []string
	courseCounts := make(map[string]float64)
	creditTotals := make(map[string]float64)
	courses := make(map[string]struct{})

	for _, row := range t.Rows {
		student := row.RollNo.Text
		if _, seen := courseCounts[student]; !seen {
			order = append(order, student)
		}
		courseCounts[student]++
		courses[row.CourseCode.Text] = struct{}{}

		credit, err := strconv.ParseFloat(strings.TrimSpace(row.Credit.Text), 64)
		if err != nil {
			summary.NonNumericCredits++
			continue
		}
		creditTotals[student] += credit
	}

	summary.Students = len(order)
	summary.Courses = len(courses)

	loads := make([]float64, 0, len(order))
	credits := make([]float64, 0, len(order))
	for _, student := range order {
		loads = append(loads, courseCounts[student])
		if total, ok := creditTotals[student]; ok {
			credits = append(credits, total)
		}
	}

	summary.CoursesPerStudent = describe(loads)
	summary.CreditsPerStudent = describe(credits)
	return summary
}

func describe(data []float64) LoadStats {
	var ls LoadStats
	if len(data) == 0 {
		return ls
	}
	ls.Mean, _ = stats.Mean(data)
	ls.Median, _ = stats.Median(data)
	ls.Min, _ = stats.Min(data)
	ls.Max, _ = stats.Max(data)
	return ls
}
