package output

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/chatrelay/chatrelay/internal/relay/engine"
	"github.com/chatrelay/chatrelay/internal/relay/ratelimit"
)

func statsTable(stats engine.Stats) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Active requests", stats.ActiveRequests},
		{"Processed", stats.Processed},
		{"Success rate", fmt.Sprintf("%.1f%%", stats.SuccessRate*100)},
		{"Average latency", stats.AverageLatency.Round(time.Millisecond).String()},
		{"Image jobs active", stats.ImageQueue.Active},
		{"Image jobs queued", stats.ImageQueue.Queued},
		{"Image jobs processed", stats.ImageQueue.Processed},
		{"Image jobs failed", stats.ImageQueue.Failed},
		{"Image avg timing", stats.ImageQueue.AverageTiming.Round(time.Millisecond).String()},
	})
	return t.Render()
}

func windowsTable(windows []ratelimit.WindowInfo) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"User", "Kind", "Count", "Resets", "Blocked until", "Violations"})

	for _, w := range windows {
		blocked := ""
		if !w.BlockedUntil.IsZero() {
			blocked = w.BlockedUntil.UTC().Format(time.RFC3339)
		}
		t.AppendRow(table.Row{
			w.UserID,
			string(w.Kind),
			w.Count,
			w.ResetAt.UTC().Format(time.RFC3339),
			blocked,
			w.Violations,
		})
	}

	t.AppendFooter(table.Row{"", "", "", "", "total", len(windows)})
	return t.Render()
}

func vipsTable(ids []int64) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"VIP user"})
	for _, id := range ids {
		t.AppendRow(table.Row{id})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d total", len(ids))})
	return t.Render()
}
