package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column is one table column; numeric columns right-align their cells.
type column struct {
	title   string
	numeric bool
}

var (
	jobColumns = []column{
		{title: "ID"},
		{title: "Label"},
		{title: "Status"},
		{title: "Progress", numeric: true},
		{title: "Stage"},
		{title: "Created"},
	}
	subscriptionColumns = []column{
		{title: "ID"},
		{title: "Label"},
		{title: "Player"},
		{title: "Episodes", numeric: true},
		{title: "Next check"},
		{title: "Last checked"},
	}
)

// renderTable draws rows under columns with rounded borders. Missing trailing
// cells render empty and surplus cells are dropped.
func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		header[i] = col.title
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if col.numeric {
			configs[i].Align = text.AlignRight
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, cells := range rows {
		row := make(table.Row, len(columns))
		for i := range row {
			row[i] = ""
			if i < len(cells) {
				row[i] = cells[i]
			}
		}
		tw.AppendRow(row)
	}
	return tw.Render() + "\n"
}
