package monitoring

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/tangocommunity/crawler/internal/model"
)

// RenderDashboard writes a table of lane states to w.
func RenderDashboard(w io.Writer, states []model.LaneState) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Crawler lanes")
	t.AppendHeader(table.Row{"Lane", "Status", "Last", "Every", "Runs", "Last run", "Duration", "Next run"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})

	for _, s := range states {
		t.AppendRow(table.Row{
			s.Lane,
			statusText(s.Status),
			statusText(s.LastStatus),
			s.Interval,
			s.RunCount,
			formatTime(s.LastRunAt),
			s.LastDuration.Round(time.Millisecond),
			formatTime(s.NextRunAt),
		})
	}
	t.Render()
}

// RenderSummary writes the per-source results of one lane run to w.
func RenderSummary(w io.Writer, s *model.RunSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(string(s.Lane))
	t.AppendHeader(table.Row{"Source", "Status", "Found", "Created", "Updated", "Skipped", "Errors", "Duration"})
	for _, r := range s.Results {
		t.AppendRow(table.Row{
			r.SourceName, r.Status(), r.Found, r.Created, r.Updated, r.Skipped, len(r.Errors),
			r.Duration.Round(time.Millisecond),
		})
	}
	t.AppendFooter(table.Row{
		"Total", "", s.Found, s.Created, s.Updated, s.Skipped, s.Errors,
		s.Duration.Round(time.Millisecond),
	})
	t.Render()
}

func statusText(s model.TaskStatus) string {
	switch s {
	case model.TaskOK:
		return text.FgGreen.Sprint(s)
	case model.TaskError:
		return text.FgRed.Sprint(s)
	case model.TaskRunning:
		return text.FgYellow.Sprint(s)
	case "":
		return "-"
	default:
		return string(s)
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
