package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"gradegrid/adapters/excel"
	"gradegrid/domain/grid"
	"gradegrid/internal/reshape"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var sheetName string

	rootCmd := &cobra.Command{
		Use:           "gradegrid",
		Short:         "Convert semester grade sheets without the desktop app",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&sheetName, "sheet", excel.DefaultExcelConfig().SheetName, "Name of the output worksheet")

	excelConfig := func() excel.ExcelConfig {
		cfg := excel.DefaultExcelConfig()
		cfg.SheetName = sheetName
		return cfg
	}

	rootCmd.AddCommand(
		newReshapeCmd(excelConfig),
		newPreviewCmd(excelConfig),
	)
	return rootCmd
}

func newReshapeCmd(excelConfig func() excel.ExcelConfig) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "reshape <input>",
		Short: "Write one row per student and graded course to a workbook",
		Long: "Reads the first sheet of an .xlsx, .xls or .csv grade sheet and writes the\n" +
			"transformed table as .xlsx. Use -o - to write the workbook to stdout.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := excelConfig()
			table, err := load(cmd.Context(), cfg, args[0])
			if err != nil {
				return err
			}

			writer := excel.NewDataWriter(cfg)
			if output == "-" {
				return writer.EncodeTo(cmd.Context(), table, cmd.OutOrStdout())
			}
			if output == "" {
				output = defaultOutput(args[0])
			}
			if err := writer.Encode(cmd.Context(), table, output); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows to %s\n", table.Len(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output workbook (default <input>_transformed.xlsx)")
	return cmd
}

func newPreviewCmd(excelConfig func() excel.ExcelConfig) *cobra.Command {
	var rows int

	cmd := &cobra.Command{
		Use:   "preview <input>",
		Short: "Show the first transformed rows and a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := load(cmd.Context(), excelConfig(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printPreview(out, table, rows, shouldUseTable(out))
			fmt.Fprintln(out)
			fmt.Fprintln(out, summaryLine(reshape.Summarize(table)))
			return nil
		},
	}
	cmd.Flags().IntVarP(&rows, "rows", "n", 20, "Number of rows to show (0 for all)")
	return cmd
}

func load(ctx context.Context, cfg excel.ExcelConfig, path string) (*grid.Table, error) {
	g, err := excel.NewDataReader(cfg).Decode(ctx, path)
	if err != nil {
		return nil, err
	}
	table, err := reshape.Reshape(g)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

func defaultOutput(input string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + "_transformed.xlsx"
}

func printPreview(out io.Writer, table *grid.Table, limit int, pretty bool) {
	rows := table.Grid().Strings()[1:]
	truncated := 0
	if limit > 0 && len(rows) > limit {
		truncated = len(rows) - limit
		rows = rows[:limit]
	}

	if pretty {
		fmt.Fprintln(out, renderTable(grid.Header, rows, []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft}))
	} else {
		fmt.Fprintln(out, strings.Join(grid.Header, "\t"))
		for _, row := range rows {
			fmt.Fprintln(out, strings.Join(row, "\t"))
		}
	}
	if truncated > 0 {
		fmt.Fprintf(out, "... %d more rows\n", truncated)
	}
}

func summaryLine(s reshape.Summary) string {
	line := fmt.Sprintf("%d rows, %d students, %d courses; courses per student mean %.1f (min %.0f, max %.0f)",
		s.Rows, s.Students, s.Courses, s.CoursesPerStudent.Mean, s.CoursesPerStudent.Min, s.CoursesPerStudent.Max)
	if s.NonNumericCredits > 0 {
		line += fmt.Sprintf("; %d credits are not numbers", s.NonNumericCredits)
	}
	return line
}
