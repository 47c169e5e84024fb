// Package reshape turns a wide semester grade sheet into one row per student
// per course taken.
//
// The sheet layout is positional (see the constants in domain/grid): course
// names, codes and credits live in header rows 0, 1 and 3; every data row
// from row 5 carries the roll number in column 1 followed by repeating
// five-column course blocks starting at column 3. A block applies to a
// student when its grade cell, three columns into the block, is filled in.
// The TOTAL CREDIT marker in row 0 ends the blocks.
package reshape

import (
	"strings"

	"gradegrid/domain/grid"
	apperrors "gradegrid/internal/errors"
)

// Reshape walks g and returns the long-format table. Cell values are copied
// through untouched. Output order is by data row, then by block position.
func Reshape(g grid.Grid) (*grid.Table, error) {
	if len(g) < grid.MinRows {
		return nil, apperrors.MalformedGrid("grade sheet has %d rows, need at least %d header rows", len(g), grid.MinRows)
	}

	boundary, err := TotalCreditIndex(g[grid.SubjectRow])
	if err != nil {
		return nil, err
	}

	subjects := g[grid.SubjectRow]
	codes := g[grid.CourseCodeRow]
	credits := g[grid.CreditRow]

	table := &grid.Table{}
	for i := grid.FirstDataRow; i < len(g); i++ {
		row := g[i]
		rollNumber := row.At(grid.RollNumberColumn)

		for col := grid.FirstBlockColumn; col < boundary; col += grid.BlockWidth {
			if row.At(col + grid.GradeOffset).IsBlank() {
				continue
			}

			credit, err := headerCell(credits, grid.CreditRow, col)
			if err != nil {
				return nil, err
			}
			code, err := headerCell(codes, grid.CourseCodeRow, col)
			if err != nil {
				return nil, err
			}
			name, err := headerCell(subjects, grid.SubjectRow, col)
			if err != nil {
				return nil, err
			}

			table.Rows = append(table.Rows, grid.OutputRow{
				RollNo:     rollNumber,
				Credit:     credit,
				CourseCode: code,
				CourseName: name,
			})
		}
	}

	return table, nil
}

// TotalCreditIndex returns the column of the TOTAL CREDIT marker in the
// subject row.
func TotalCreditIndex(subjects grid.Row) (int, error) {
	for col, cell := range subjects {
		if strings.TrimSpace(cell.Text) == grid.TotalCreditMarker {
			return col, nil
		}
	}
	return -1, apperrors.MalformedGrid("row %d has no %q column", grid.SubjectRow, grid.TotalCreditMarker)
}

// BlockCount is the number of course blocks visited per data row for a
// given TOTAL CREDIT column.
func BlockCount(totalCreditIndex int) int {
	n := 0
	for col := grid.FirstBlockColumn; col < totalCreditIndex; col += grid.BlockWidth {
		n++
	}
	return n
}

func headerCell(header grid.Row, rowIndex, col int) (grid.Cell, error) {
	if !header.Has(col) {
		return grid.Cell{}, apperrors.MalformedGrid("header row %d has no cell at column %d", rowIndex, col)
	}
	return header[col], nil
}
