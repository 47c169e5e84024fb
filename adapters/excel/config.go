package excel

// ExcelConfig holds configuration for reading grade sheets and writing the
// transformed workbook
type ExcelConfig struct {
	// SheetName names the single sheet of the written workbook
	SheetName string `json:"sheet_name" toml:"sheet_name"`
	// Charset is passed to the legacy .xls decoder
	Charset string `json:"charset" toml:"charset"`
	// CSVComma is the field separator for .csv uploads
	CSVComma rune `json:"csv_comma" toml:"csv_comma"`
}

// DefaultExcelConfig returns sensible defaults for Excel processing
func DefaultExcelConfig() ExcelConfig {
	return ExcelConfig{
		SheetName: "TransformedData",
		Charset:   "utf-8",
		CSVComma:  ',',
	}
}

func (c ExcelConfig) withDefaults() ExcelConfig {
	d := DefaultExcelConfig()
	if c.SheetName == "" {
		c.SheetName = d.SheetName
	}
	if c.Charset == "" {
		c.Charset = d.Charset
	}
	if c.CSVComma == 0 {
		c.CSVComma = d.CSVComma
	}
	return c
}
