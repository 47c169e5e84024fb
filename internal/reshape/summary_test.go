package reshape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradegrid/domain/grid"
)

func TestSummarize(t *testing.T) {
	g := semesterSheet(
		[]string{"Algebra", "Physics", "Chemistry"},
		[]string{"S001", "S002", "S003"},
		[][]string{
			{"A", "", "B"},
			{"C", "A+", "D"},
			{"", "B", ""},
		},
	)
	table, err := Reshape(g)
	require.NoError(t, err)

	summary := Summarize(table)
	assert.Equal(t, 6, summary.Rows)
	assert.Equal(t, 3, summary.Students)
	assert.Equal(t, 3, summary.Courses)
	assert.Equal(t, 0, summary.NonNumericCredits)

	// loads: S001=2, S002=3, S003=1
	assert.InDelta(t, 2.0, summary.CoursesPerStudent.Mean, 1e-9)
	assert.InDelta(t, 2.0, summary.CoursesPerStudent.Median, 1e-9)
	assert.Equal(t, 1.0, summary.CoursesPerStudent.Min)
	assert.Equal(t, 3.0, summary.CoursesPerStudent.Max)

	// credits are 1, 2, 3 for the three courses: S001=4, S002=6, S003=2
	assert.InDelta(t, 4.0, summary.CreditsPerStudent.Mean, 1e-9)
	assert.Equal(t, 2.0, summary.CreditsPerStudent.Min)
	assert.Equal(t, 6.0, summary.CreditsPerStudent.Max)
}

func TestSummarize_NonNumericCredits(t *testing.T) {
	table := &grid.Table{Rows: []grid.OutputRow{
		{RollNo: grid.Text("S1"), Credit: grid.Text("four"), CourseCode: grid.Text("C1")},
		{RollNo: grid.Text("S1"), Credit: grid.Number("3"), CourseCode: grid.Text("C2")},
		{RollNo: grid.Text("S2"), Credit: grid.Text("-"), CourseCode: grid.Text("C1")},
	}}

	summary := Summarize(table)
	assert.Equal(t, 2, summary.Students)
	assert.Equal(t, 2, summary.Courses)
	assert.Equal(t, 2, summary.NonNumericCredits)
	assert.Equal(t, 3.0, summary.CreditsPerStudent.Max)
	assert.Equal(t, 3.0, summary.CreditsPerStudent.Mean)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(&grid.Table{}))
	assert.Equal(t, Summary{}, Summarize(nil))
}
