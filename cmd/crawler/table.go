package main

import (
	"io"

	"github.com/emilyzhang/assetcrawlr/extractiondb"
	"github.com/jedib0t/go-pretty/v6/table"
)

// renderFiles prints one row per extracted file followed by the totals.
func renderFiles(w io.Writer, r *extractiondb.ExtractionResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("%s (%s)", r.URL, r.Status)

	t.AppendHeader(table.Row{"Path", "Type", "MIME", "Size"})
	for _, f := range r.Files {
		t.AppendRow(table.Row{f.Path, f.Type, f.MimeType, f.Size})
	}
	t.AppendFooter(table.Row{"Total", "", r.TotalFiles, r.TotalSize})
	t.Render()
}
