package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		opts    ParseOptions
		wantIDs []string
	}{
		{
			name:    "basic",
			text:    sampleCSV,
			wantIDs: []string{"T001", "T002", "T003", "T004", "T005"},
		},
		{
			name:    "crlf line breaks",
			text:    "nr_tombo,nome\r\nT1,A\r\nT2,B\r\n",
			wantIDs: []string{"T1", "T2"},
		},
		{
			name:    "bare cr line breaks",
			text:    "nr_tombo,nome\rT1,A\rT2,B\r",
			wantIDs: []string{"T1", "T2"},
		},
		{
			name:    "blank and whitespace lines skipped",
			text:    "\nnr_tombo,nome\n\n   \nT1,A\n\t\nT2,B\n",
			wantIDs: []string{"T1", "T2"},
		},
		{
			name:    "bom on header",
			text:    "\uFEFFnr_tombo,nome\nT1,A\n",
			wantIDs: []string{"T1"},
		},
		{
			name:    "header only",
			text:    "nr_tombo,Descrica07,nome\n",
			wantIDs: nil,
		},
		{
			name:    "empty text",
			text:    "",
			wantIDs: nil,
		},
		{
			name:    "header only without tombo column is not an error",
			text:    "codigo,nome\n",
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ParseCSV(tt.text, tt.opts)
			if err != nil {
				t.Fatalf("ParseCSV() error = %v", err)
			}
			if len(records) != len(tt.wantIDs) {
				t.Fatalf("got %d records, want %d", len(records), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got := records[i][ColumnID]; got != id {
					t.Errorf("record %d id = %q, want %q", i, got, id)
				}
			}
		})
	}
}

func TestParseCSV_QuotedFields(t *testing.T) {
	records := mustParse(t, sampleCSV)

	if got := records[4][ColumnDescription]; got != `Monitor LG 24"` {
		t.Errorf("description = %q, want %q", got, `Monitor LG 24"`)
	}

	records = mustParse(t, "nr_tombo,Descrica07\nT1,\"linha 1\nlinha 2\"\nT2,\"a, b\"\n")
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if got := records[0][ColumnDescription]; got != "linha 1\nlinha 2" {
		t.Errorf("multi-line field = %q", got)
	}
	if got := records[1][ColumnDescription]; got != "a, b" {
		t.Errorf("comma field = %q", got)
	}
}

func TestParseCSV_RaggedRows(t *testing.T) {
	records := mustParse(t, "nr_tombo,Descrica07,nome\nT1\nT2,Desc,Nome,extra\n")

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if got := records[0][ColumnResponsible]; got != "" {
		t.Errorf("short row nome = %q, want empty", got)
	}
	if got := records[1][ColumnResponsible]; got != "Nome" {
		t.Errorf("long row nome = %q, want Nome", got)
	}
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		opts       ParseOptions
		wantReason ParseReason
		wantColumn string
	}{
		{
			name:       "missing tombo column",
			text:       "codigo,nome\n1,A\n",
			wantReason: ReasonMissingRequiredColumn,
			wantColumn: ColumnID,
		},
		{
			name:       "missing description when required",
			text:       "nr_tombo,nome\nT1,A\n",
			opts:       ParseOptions{RequireDescription: true},
			wantReason: ReasonMissingRequiredColumn,
			wantColumn: ColumnDescription,
		},
		{
			name:       "unterminated quote",
			text:       "nr_tombo,nome\nT1,\"Alice\n",
			wantReason: ReasonMalformedRow,
		},
		{
			name:       "bare quote",
			text:       "nr_tombo,nome\nT1,Ali\"ce\n",
			wantReason: ReasonMalformedRow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ParseCSV(tt.text, tt.opts)
			if records != nil {
				t.Errorf("records = %v, want nil", records)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *ParseError", err)
			}
			if pe.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", pe.Reason, tt.wantReason)
			}
			if pe.Column != tt.wantColumn {
				t.Errorf("Column = %q, want %q", pe.Column, tt.wantColumn)
			}
			if tt.wantReason == ReasonMalformedRow && pe.Line == 0 {
				t.Error("malformed row error has no line number")
			}
		})
	}
}

func TestSerializeCSV(t *testing.T) {
	items := []Item{
		{ID: "T001", Description: "Mesa", Responsible: "Alice", OriginalResponsible: "Alice", Status: StatusFound},
		{ID: "T005", Description: `Monitor LG 24"`, Responsible: "Novo Responsavel", OriginalResponsible: "Charlie", Status: StatusTransferRequested},
		{ID: "T006", Description: "a, b", Status: StatusPending},
	}

	var buf bytes.Buffer
	if err := SerializeCSV(&buf, items, SerializeOptions{}); err != nil {
		t.Fatalf("SerializeCSV() error = %v", err)
	}

	want := "nr_tombo,Descrica07,nome,status,original_responsavel\n" +
		"T001,Mesa,Alice,Encontrado,Alice\n" +
		"T005,\"Monitor LG 24\"\"\",Novo Responsavel,Transferência Solicitada,Charlie\n" +
		"T006,\"a, b\",,Pendente,\n"
	if got := buf.String(); got != want {
		t.Errorf("SerializeCSV() =\n%s\nwant\n%s", got, want)
	}
}

func TestSerializeCSV_Options(t *testing.T) {
	checked := time.Date(2024, 3, 15, 14, 30, 5, 0, time.UTC)
	items := []Item{
		{ID: "T1", Status: StatusFound, CheckedAt: checked},
		{ID: "T2", Status: StatusPending},
	}

	var buf bytes.Buffer
	err := SerializeCSV(&buf, items, SerializeOptions{BOM: true, IncludeCheckedAt: true})
	if err != nil {
		t.Fatalf("SerializeCSV() error = %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "\uFEFFnr_tombo,") {
		t.Errorf("output does not start with BOM + header: %q", out[:20])
	}
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if !strings.HasSuffix(lines[0], ",data_conferencia") {
		t.Errorf("header = %q, want data_conferencia column", lines[0])
	}
	if !strings.HasSuffix(lines[1], ",15/03/2024 14:30:05") {
		t.Errorf("checked row = %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], ",Pendente,,") {
		t.Errorf("pending row = %q, want empty data_conferencia", lines[2])
	}
}

func TestCSVRoundTrip(t *testing.T) {
	store := loadedStore(t, sampleCSV)

	var buf bytes.Buffer
	if err := SerializeCSV(&buf, store.All(), SerializeOptions{BOM: true}); err != nil {
		t.Fatalf("SerializeCSV() error = %v", err)
	}

	text, err := DecodeText(&buf, "")
	if err != nil {
		t.Fatalf("DecodeText() error = %v", err)
	}
	reloaded := NewItemStore()
	reloaded.Load(mustParse(t, text))

	got, want := reloaded.All(), store.All()
	if len(got) != len(want) {
		t.Fatalf("round trip has %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Description != want[i].Description || got[i].Responsible != want[i].Responsible {
			t.Errorf("item %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestExportFileName(t *testing.T) {
	day := time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC)

	if got := ExportFileName("", day); got != "report_2024-03-05.csv" {
		t.Errorf("ExportFileName() = %q", got)
	}
	if got := ExportFileName("conferencia", day); got != "conferencia_2024-03-05.csv" {
		t.Errorf("ExportFileName() = %q", got)
	}
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		encoding string
		want     string
	}{
		{name: "utf-8 default", input: []byte("nr_tombo\nT1"), want: "nr_tombo\nT1"},
		{name: "utf-8 bom stripped", input: []byte("\xEF\xBB\xBFnr_tombo"), encoding: "utf-8", want: "nr_tombo"},
		{name: "windows-1252", input: []byte("Descri\xe7\xe3o"), encoding: "windows-1252", want: "Descrição"},
		{name: "latin1 label", input: []byte("respons\xe1vel"), encoding: "latin1", want: "responsável"},
		{name: "invalid utf-8 replaced", input: []byte("a\xffb"), want: "a\uFFFDb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeText(bytes.NewReader(tt.input), tt.encoding)
			if err != nil {
				t.Fatalf("DecodeText() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeText_UnknownEncoding(t *testing.T) {
	_, err := DecodeText(strings.NewReader("x"), "klingon")

	var pe *ParseError
	if !errors.As(err, &pe) || pe.Reason != ReasonUnreadable {
		t.Fatalf("error = %v, want unreadable ParseError", err)
	}
}
