package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"datefixer/internal/walker"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func newTableWriter(headers []string, aligns []columnAlignment) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	configs := make([]table.ColumnConfig, len(headers))
	for i, h := range headers {
		header[i] = h
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)
	return tw
}

// renderTable pads short rows and drops cells beyond the header width.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	if len(headers) == 0 {
		return ""
	}
	tw := newTableWriter(headers, aligns)
	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

// renderSourceSummary lists resolved files per strategy, followed by the
// files that produced no write, with the modified total as footer.
func renderSourceSummary(stats walker.Stats) string {
	tw := newTableWriter([]string{"Source", "Count"}, []columnAlignment{alignLeft, alignRight})
	for _, source := range slices.Sorted(maps.Keys(stats.BySource)) {
		tw.AppendRow(table.Row{source, fmt.Sprint(stats.BySource[source])})
	}
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"unresolved", fmt.Sprint(stats.Unresolved)})
	tw.AppendRow(table.Row{"excluded", fmt.Sprint(stats.Excluded)})
	tw.AppendRow(table.Row{"failed", fmt.Sprint(stats.Failed)})
	tw.AppendFooter(table.Row{"modified", fmt.Sprint(stats.Modified)})
	return tw.Render()
}
