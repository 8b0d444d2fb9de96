package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/BioHazard786/beamshare/internal/files"
)

type TransferSummary struct {
	Status   string
	Files    int
	Total    int64
	Duration time.Duration
	Location string
}

// AverageSpeed is in bytes per second.
func (s TransferSummary) AverageSpeed() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Total) / s.Duration.Seconds()
}

func SummaryView(title string, s TransferSummary) string {
	t := table.NewWriter()
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"Status", s.Status})
	t.AppendRow(table.Row{"Files", fmt.Sprintf("%d", s.Files)})
	t.AppendRow(table.Row{"Total Size", files.FormatSize(s.Total)})
	t.AppendRow(table.Row{"Duration", files.FormatDuration(s.Duration)})
	t.AppendRow(table.Row{"Avg Speed", files.FormatSpeed(s.AverageSpeed())})
	if s.Location != "" {
		t.AppendRow(table.Row{"Saved To", s.Location})
	}

	style := table.StyleRounded
	style.Title.Align = text.AlignCenter
	style.Color.Header = text.Colors{text.FgCyan, text.Bold}
	t.SetStyle(style)
	return t.Render()
}

func RenderSummary(w io.Writer, title string, s TransferSummary) {
	fmt.Fprintln(w, SummaryView(title, s))
}
