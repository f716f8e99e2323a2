package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column is one table column; numeric columns align right.
type column struct {
	title   string
	numeric bool
}

var itemColumns = []column{
	{title: "Tombo"},
	{title: "Descrição"},
	{title: "Responsável"},
	{title: "Status"},
	{title: "Responsável original"},
}

// renderTable draws rows under cols. Headers keep their case since they are
// Portuguese labels. A non-empty footer is drawn below a separator.
func renderTable(cols []column, rows [][]string, footer []string) string {
	if len(cols) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Format.Footer = text.FormatDefault

	tw.AppendHeader(toRow(cols, headerCells(cols)))
	for _, r := range rows {
		tw.AppendRow(toRow(cols, r))
	}
	if len(footer) > 0 {
		tw.AppendFooter(toRow(cols, footer))
	}

	configs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		align := text.AlignLeft
		if c.numeric {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignFooter: align, AlignHeader: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func headerCells(cols []column) []string {
	cells := make([]string, len(cols))
	for i, c := range cols {
		cells[i] = c.title
	}
	return cells
}

// toRow pads or truncates cells to the column count.
func toRow(cols []column, cells []string) table.Row {
	row := make(table.Row, len(cols))
	for i := range cols {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
