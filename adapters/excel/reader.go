package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"gradegrid/domain/grid"
	apperrors "gradegrid/internal/errors"
)

// File formats the reader understands
const (
	FormatXLSX = "xlsx"
	FormatXLS  = "xls"
	FormatCSV  = "csv"
)

// FormatOf picks the decoder for a file name. Unknown extensions are handed
// to the xlsx decoder.
func FormatOf(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		return FormatXLS
	case ".csv":
		return FormatCSV
	default:
		return FormatXLSX
	}
}

// DataReader decodes the first sheet of a workbook into a grid
type DataReader struct {
	config ExcelConfig
}

// NewDataReader creates a reader for xlsx, legacy xls and csv files
func NewDataReader(config ExcelConfig) *DataReader {
	return &DataReader{config: config.withDefaults()}
}

// Decode reads the first sheet of the workbook at path
func (r *DataReader) Decode(ctx context.Context, path string) (grid.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format := FormatOf(path)
	log.Printf("[DataReader] Starting to read %s file: %s", format, filepath.Base(path))
	start := time.Now()

	var (
		g   grid.Grid
		err error
	)
	switch format {
	case FormatXLS:
		g, err = r.readXLS(path)
	case FormatCSV:
		g, err = r.readCSV(path)
	default:
		g, err = r.readXLSX(path)
	}
	if err != nil {
		return nil, err
	}
	if len(g) == 0 {
		return nil, apperrors.DecodeError("worksheet is empty", nil)
	}

	log.Printf("[DataReader] %s file read in %.2fms (%d rows)", strings.ToUpper(format), float64(time.Since(start).Nanoseconds())/1e6, len(g))
	return g, nil
}

// readXLSX reads the first sheet by index with raw cell values, keeping
// whether each cell was numeric
func (r *DataReader) readXLSX(path string) (grid.Grid, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.DecodeError("failed to open Excel file", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, apperrors.DecodeError("no worksheet found", nil)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.DecodeError(fmt.Sprintf("failed to read sheet %q", sheet), err)
	}

	g := make(grid.Grid, len(rows))
	for i, row := range rows {
		out := make(grid.Row, len(row))
		for j, value := range row {
			if value == "" {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, apperrors.DecodeError("cell reference out of range", err)
			}
			cellType, err := f.GetCellType(sheet, ref)
			if err != nil {
				return nil, apperrors.DecodeError(fmt.Sprintf("failed to read cell %s", ref), err)
			}
			// cells without a type attribute are numbers
			if cellType == excelize.CellTypeNumber || cellType == excelize.CellTypeUnset {
				out[j] = grid.Number(value)
			} else {
				out[j] = grid.Text(value)
			}
		}
		g[i] = out
	}
	return g, nil
}

// readXLS reads the first worksheet of a legacy BIFF workbook
func (r *DataReader) readXLS(path string) (g grid.Grid, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.IOError("failed to open staged upload", err)
	}
	defer file.Close()

	// the BIFF parser panics on some truncated streams
	defer func() {
		if p := recover(); p != nil {
			g, err = nil, apperrors.DecodeError("corrupt xls workbook", fmt.Errorf("%v", p))
		}
	}()

	workbook, err := xls.OpenReader(file, r.config.Charset)
	if err != nil {
		return nil, apperrors.DecodeError("failed to open xls workbook", err)
	}
	if workbook.NumSheets() == 0 {
		return nil, apperrors.DecodeError("no worksheet found", nil)
	}
	sheet := workbook.GetSheet(0)
	if sheet == nil {
		return nil, apperrors.DecodeError("no worksheet found", nil)
	}

	g = make(grid.Grid, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			g = append(g, grid.Row{})
			continue
		}
		out := make(grid.Row, row.LastCol())
		for j := range out {
			out[j] = grid.Text(row.Col(j))
		}
		g = append(g, out)
	}
	return trimTrailingEmptyRows(g), nil
}

func (r *DataReader) readCSV(path string) (grid.Grid, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.IOError("failed to open staged upload", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = r.config.CSVComma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.DecodeError("failed to read CSV file", err)
		}
		rows = append(rows, record)
	}
	return grid.FromStrings(rows), nil
}

func trimTrailingEmptyRows(g grid.Grid) grid.Grid {
	for len(g) > 0 {
		last := g[len(g)-1]
		empty := true
		for _, c := range last {
			if c.Text != "" {
				empty = false
				break
			}
		}
		if !empty {
			break
		}
		g = g[:len(g)-1]
	}
	return g
}
