package excel

import (
	"context"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gradegrid/domain/grid"
	apperrors "gradegrid/internal/errors"
)

// DataWriter encodes a transformed table into a single-sheet workbook
type DataWriter struct {
	config ExcelConfig
}

// NewDataWriter creates a workbook writer
func NewDataWriter(config ExcelConfig) *DataWriter {
	return &DataWriter{config: config.withDefaults()}
}

// Encode writes the table to path. The path must carry an xlsx-family
// extension.
func (w *DataWriter) Encode(ctx context.Context, table *grid.Table, path string) error {
	f, err := w.build(ctx, table)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := f.SaveAs(path); err != nil {
		return apperrors.EncodeError("failed to save workbook", err)
	}
	log.Printf("[DataWriter] Wrote %d rows to sheet %s", table.Len()+1, w.config.SheetName)
	return nil
}

// EncodeTo streams the workbook bytes to out
func (w *DataWriter) EncodeTo(ctx context.Context, table *grid.Table, out io.Writer) error {
	f, err := w.build(ctx, table)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteTo(out); err != nil {
		return apperrors.EncodeError("failed to write workbook", err)
	}
	return nil
}

func (w *DataWriter) build(ctx context.Context, table *grid.Table) (*excelize.File, error) {
	f := excelize.NewFile()

	defaultSheet := f.GetSheetName(0)
	if defaultSheet != w.config.SheetName {
		if err := f.SetSheetName(defaultSheet, w.config.SheetName); err != nil {
			_ = f.Close()
			return nil, apperrors.EncodeError("invalid sheet name", err)
		}
	}

	sw, err := f.NewStreamWriter(w.config.SheetName)
	if err != nil {
		_ = f.Close()
		return nil, apperrors.EncodeError("failed to open sheet writer", err)
	}

	for i, row := range table.Grid() {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				_ = f.Close()
				return nil, err
			}
		}
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			_ = f.Close()
			return nil, apperrors.EncodeError("row out of range", err)
		}
		if err := sw.SetRow(ref, cellValues(row)); err != nil {
			_ = f.Close()
			return nil, apperrors.EncodeError("failed to write row", err)
		}
	}

	if err := sw.Flush(); err != nil {
		_ = f.Close()
		return nil, apperrors.EncodeError("failed to flush sheet", err)
	}
	return f, nil
}

// cellValues keeps numeric source cells numeric in the output; everything
// else is written as text.
func cellValues(row grid.Row) []interface{} {
	values := make([]interface{}, len(row))
	for i, c := range row {
		if c.Numeric {
			if n, err := strconv.ParseFloat(strings.TrimSpace(c.Text), 64); err == nil {
				values[i] = n
				continue
			}
		}
		values[i] = c.Text
	}
	return values
}
