package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column. A maxWidth of zero leaves the column
// unbounded; longer cells are truncated with an ellipsis.
type column struct {
	title    string
	right    bool
	maxWidth int
}

func left(title string) column { return column{title: title} }
func right(title string) column { return column{title: title, right: true} }

func (c column) clip(width int) column {
	c.maxWidth = width
	return c
}

func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.title
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if c.right {
			configs[i].Align = text.AlignRight
		}
		if c.maxWidth > 0 {
			configs[i].WidthMax = c.maxWidth
			configs[i].WidthMaxEnforcer = clipCell
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
	return tw.Render()
}

func clipCell(cell string, maxLen int) string {
	if maxLen < 2 || text.RuneWidthWithoutEscSequences(cell) <= maxLen {
		return cell
	}
	return text.Trim(cell, maxLen-1) + "…"
}

func formatBytes(size int64) string {
	return humanize.IBytes(uint64(max(size, 0)))
}

// formatAge renders d in the largest whole unit: 45m, 3h, 12d.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "<1m"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	}
}
