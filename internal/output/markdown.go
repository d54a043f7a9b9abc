package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/chatrelay/chatrelay/internal/relay/engine"
	"github.com/chatrelay/chatrelay/internal/relay/ratelimit"
)

func statsMarkdown(stats engine.Stats) string {
	var sb strings.Builder
	sb.WriteString("## Relay stats\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	rows := [][2]string{
		{"Active requests", fmt.Sprintf("%d", stats.ActiveRequests)},
		{"Processed", fmt.Sprintf("%d", stats.Processed)},
		{"Success rate", fmt.Sprintf("%.1f%%", stats.SuccessRate*100)},
		{"Average latency", stats.AverageLatency.Round(time.Millisecond).String()},
		{"Image jobs active", fmt.Sprintf("%d", stats.ImageQueue.Active)},
		{"Image jobs queued", fmt.Sprintf("%d", stats.ImageQueue.Queued)},
		{"Image jobs processed", fmt.Sprintf("%d", stats.ImageQueue.Processed)},
		{"Image jobs failed", fmt.Sprintf("%d", stats.ImageQueue.Failed)},
		{"Image avg timing", stats.ImageQueue.AverageTiming.Round(time.Millisecond).String()},
	}
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", r[0], r[1]))
	}
	return sb.String()
}

func windowsMarkdown(windows []ratelimit.WindowInfo) string {
	var sb strings.Builder
	sb.WriteString("## Rate-limit windows\n\n")
	sb.WriteString("| User | Kind | Count | Resets | Blocked until | Violations |\n")
	sb.WriteString("|------|------|-------|--------|---------------|------------|\n")
	for _, w := range windows {
		blocked := ""
		if !w.BlockedUntil.IsZero() {
			blocked = w.BlockedUntil.UTC().Format(time.RFC3339)
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %d | %s | %s | %d |\n",
			w.UserID,
			escapeMarkdownCell(string(w.Kind)),
			w.Count,
			w.ResetAt.UTC().Format(time.RFC3339),
			blocked,
			w.Violations,
		))
	}
	return sb.String()
}

func vipsMarkdown(ids []int64) string {
	var sb strings.Builder
	sb.WriteString("## VIP users\n\n")
	if len(ids) == 0 {
		sb.WriteString("_none_\n")
		return sb.String()
	}
	for _, id := range ids {
		sb.WriteString(fmt.Sprintf("- %d\n", id))
	}
	return sb.String()
}

func escapeMarkdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
