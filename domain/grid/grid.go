// Package grid holds the cell grid decoded from a semester grade sheet and the
// long-format table produced from it.
package grid

import "strings"

// Layout of a semester grade sheet. Rows and columns are 0-indexed.
const (
	SubjectRow    = 0 // course names, plus the TOTAL CREDIT marker
	CourseCodeRow = 1
	CreditRow     = 3
	LabelRow      = 4
	FirstDataRow  = 5

	RollNumberColumn = 1
	FirstBlockColumn = 3
	BlockWidth       = 5
	GradeOffset      = 3

	// MinRows is the number of header rows that must be present before any
	// data row.
	MinRows = FirstDataRow

	TotalCreditMarker = "TOTAL CREDIT"
)

// Header is the fixed first row of every transformed table.
var Header = []string{"RollNo", "CourseSlot Name", "CourseCode", "CourseName"}

// Cell is a single decoded spreadsheet value. The zero value is an empty cell.
type Cell struct {
	Text    string `json:"text"`
	Numeric bool   `json:"numeric,omitempty"`
}

// Text returns a non-numeric cell.
func Text(s string) Cell { return Cell{Text: s} }

// Number returns a cell that was numeric in the source workbook. The raw text
// is kept as-is.
func Number(s string) Cell { return Cell{Text: s, Numeric: true} }

// IsBlank reports whether the cell holds nothing but whitespace.
func (c Cell) IsBlank() bool {
	return strings.TrimSpace(c.Text) == ""
}

func (c Cell) String() string { return c.Text }

// Row is one spreadsheet row. Rows may be ragged.
type Row []Cell

// At returns the cell at column col, or an empty cell when the row is
// shorter than that.
func (r Row) At(col int) Cell {
	if col < 0 || col >= len(r) {
		return Cell{}
	}
	return r[col]
}

// Has reports whether the row physically holds a cell at col.
func (r Row) Has(col int) bool {
	return col >= 0 && col < len(r)
}

// Grid is the first sheet of a workbook as ordered rows.
type Grid []Row

// FromStrings builds a grid of text cells.
func FromStrings(rows [][]string) Grid {
	g := make(Grid, len(rows))
	for i, row := range rows {
		r := make(Row, len(row))
		for j, v := range row {
			r[j] = Text(v)
		}
		g[i] = r
	}
	return g
}

// Strings flattens the grid into plain text.
func (g Grid) Strings() [][]string {
	out := make([][]string, len(g))
	for i, row := range g {
		r := make([]string, len(row))
		for j, c := range row {
			r[j] = c.Text
		}
		out[i] = r
	}
	return out
}

// OutputRow is one student/course pair of the transformed table.
type OutputRow struct {
	RollNo     Cell `json:"roll_no"`
	Credit     Cell `json:"credit"`
	CourseCode Cell `json:"course_code"`
	CourseName Cell `json:"course_name"`
}

// Cells returns the row in header order.
func (r OutputRow) Cells() Row {
	return Row{r.RollNo, r.Credit, r.CourseCode, r.CourseName}
}

// Table is the long-format result: Header followed by Rows.
type Table struct {
	Rows []OutputRow
}

// Len returns the number of output rows, not counting the header.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Grid renders the table, header first, as a grid ready for encoding.
func (t *Table) Grid() Grid {
	g := make(Grid, 0, t.Len()+1)
	header := make(Row, len(Header))
	for i, h := range Header {
		header[i] = Text(h)
	}
	g = append(g, header)
	if t == nil {
		return g
	}
	for _, r := range t.Rows {
		g = append(g, r.Cells())
	}
	return g
}
