package core

// csv.go implements the import/export contract for patrimônio CSV files.
//
// Parsing treats the first non-blank line as the header and skips blank or
// whitespace-only lines. The tokenizer accepts both \n and \r\n. Spreadsheets
// on older Macs still emit bare \r line breaks, which the tokenizer reads as a
// single line; when the first pass finds no data rows and the text contains
// bare \r, the text is parsed once more with \r treated as the line break.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// utf8BOM is prefixed to exports so spreadsheet tools detect UTF-8.
const utf8BOM = "\uFEFF"

// ParseOptions controls header validation on import.
type ParseOptions struct {
	// RequireDescription also requires the Descrica07 column.
	RequireDescription bool
}

type newline int

const (
	newlineLF newline = iota // \n and \r\n
	newlineCR                // bare \r
)

func (n newline) String() string {
	if n == newlineCR {
		return `\r`
	}
	return `\n`
}

// ParseCSV parses CSV text into records keyed by header name.
func ParseCSV(text string, opts ParseOptions) ([]RawRecord, error) {
	primary, alternate := guessNewline(text)

	rows, err := tokenize(text, primary)
	if (err != nil || len(rows) <= 1) && containsNewline(text, alternate) {
		retried, retryErr := tokenize(text, alternate)
		if retryErr == nil && len(retried) > 1 {
			slog.Debug("csv parsed with alternate line breaks",
				"first", primary.String(),
				"used", alternate.String(),
			)
			rows, err = retried, nil
		}
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := normalizeHeader(rows[0])
	data := rows[1:]
	if len(data) == 0 {
		return nil, nil
	}

	required := []string{ColumnID}
	if opts.RequireDescription {
		required = append(required, ColumnDescription)
	}
	for _, col := range required {
		if !hasColumn(header, col) {
			return nil, &ParseError{Reason: ReasonMissingRequiredColumn, Column: col}
		}
	}

	records := make([]RawRecord, 0, len(data))
	for _, row := range data {
		rec := make(RawRecord, len(header))
		for i, name := range header {
			if i < len(row) {
				rec[name] = row[i]
			} else {
				rec[name] = ""
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// guessNewline picks the line-break convention to try first and the one to
// fall back to.
func guessNewline(text string) (primary, alternate newline) {
	if !strings.Contains(text, "\n") && hasBareCR(text) {
		return newlineCR, newlineLF
	}
	return newlineLF, newlineCR
}

func containsNewline(text string, n newline) bool {
	if n == newlineCR {
		return hasBareCR(text)
	}
	return strings.Contains(text, "\n")
}

func hasBareCR(text string) bool {
	for i := 0; i < len(text); i++ {
		if text[i] == '\r' && (i+1 == len(text) || text[i+1] != '\n') {
			return true
		}
	}
	return false
}

// tokenize splits text into rows, dropping blank and whitespace-only lines.
func tokenize(text string, n newline) ([][]string, error) {
	if n == newlineCR {
		text = strings.ReplaceAll(text, "\r\n", "\n")
		text = strings.ReplaceAll(text, "\r", "\n")
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			perr := &ParseError{Reason: ReasonMalformedRow, Message: err.Error(), Err: err}
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				perr.Line = csvErr.Line
				perr.Message = csvErr.Err.Error()
			}
			return nil, perr
		}
		if isEmptyRow(row) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func normalizeHeader(row []string) []string {
	header := make([]string, len(row))
	for i, name := range row {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		header[i] = strings.TrimSpace(name)
	}
	return header
}

func hasColumn(header []string, name string) bool {
	for _, h := range header {
		if h == name {
			return true
		}
	}
	return false
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// SerializeOptions controls export formatting.
type SerializeOptions struct {
	// BOM prefixes the output with a UTF-8 byte-order mark.
	BOM bool

	// IncludeCheckedAt appends a data_conferencia column.
	IncludeCheckedAt bool
}

// CheckedAtLayout formats the data_conferencia column.
const CheckedAtLayout = "02/01/2006 15:04:05"

// SerializeCSV writes items in the export column order. Values containing
// the delimiter, a quote or a line break are quoted with quotes doubled.
func SerializeCSV(w io.Writer, items []Item, opts SerializeOptions) error {
	if opts.BOM {
		if _, err := io.WriteString(w, utf8BOM); err != nil {
			return fmt.Errorf("write bom: %w", err)
		}
	}

	header := append([]string(nil), ExportColumns...)
	if opts.IncludeCheckedAt {
		header = append(header, ColumnCheckedAt)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(header))
	for _, item := range items {
		row[0] = item.ID
		row[1] = item.Description
		row[2] = item.Responsible
		row[3] = string(item.Status)
		row[4] = item.OriginalResponsible
		if opts.IncludeCheckedAt {
			row[5] = ""
			if item.Processed() && !item.CheckedAt.IsZero() {
				row[5] = item.CheckedAt.Format(CheckedAtLayout)
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write item %s: %w", item.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportFileName returns "<prefix>_<YYYY-MM-DD>.csv".
func ExportFileName(prefix string, t time.Time) string {
	if prefix == "" {
		prefix = "report"
	}
	return fmt.Sprintf("%s_%s.csv", prefix, t.Format(time.DateOnly))
}
