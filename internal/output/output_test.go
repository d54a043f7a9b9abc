package output

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chatrelay/chatrelay/internal/relay/engine"
	"github.com/chatrelay/chatrelay/internal/relay/imagequeue"
	"github.com/chatrelay/chatrelay/internal/relay/ratelimit"
)

func sampleStats() engine.Stats {
	return engine.Stats{
		ActiveRequests: 2,
		Processed:      120,
		SuccessRate:    0.95,
		AverageLatency: 840 * time.Millisecond,
		ImageQueue: imagequeue.Stats{
			Active:        1,
			Queued:        2,
			Processed:     30,
			Succeeded:     28,
			Failed:        2,
			AverageTiming: 12 * time.Second,
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, f)

	f, err = ParseFormat("MD")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, f)

	f, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func TestRenderStatsTable(t *testing.T) {
	out, err := RenderStats(FormatTable, sampleStats())
	require.NoError(t, err)
	require.Contains(t, out, "Active requests")
	require.Contains(t, out, "95.0%")
	require.Contains(t, out, "840ms")
}

func TestRenderStatsJSON(t *testing.T) {
	out, err := RenderStats(FormatJSON, sampleStats())
	require.NoError(t, err)

	var decoded engine.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Equal(t, int64(120), decoded.Processed)
	require.Equal(t, int64(2), decoded.ImageQueue.Failed)
}

func TestRenderStatsMarkdown(t *testing.T) {
	out, err := RenderStats(FormatMarkdown, sampleStats())
	require.NoError(t, err)
	require.Contains(t, out, "## Relay stats")
	require.Contains(t, out, "| Processed | 120 |")
}

func TestRenderWindows(t *testing.T) {
	reset := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	windows := []ratelimit.WindowInfo{
		{UserID: 42, Kind: ratelimit.ActionText, Count: 3, ResetAt: reset, Violations: 1},
		{UserID: 7, Kind: ratelimit.ActionImage, Count: 1, ResetAt: reset, BlockedUntil: reset.Add(time.Minute)},
	}

	out, err := RenderWindows(FormatTable, windows)
	require.NoError(t, err)
	require.Contains(t, out, "42")
	require.Contains(t, out, string(ratelimit.ActionImage))

	out, err = RenderWindows(FormatMarkdown, windows)
	require.NoError(t, err)
	require.Contains(t, out, "| 42 |")
	require.Contains(t, out, "2026-08-29T12:01:00Z")
}

func TestRenderVIPs(t *testing.T) {
	out, err := RenderVIPs(FormatTable, []int64{42, 7})
	require.NoError(t, err)
	require.Contains(t, out, "2 total")

	out, err = RenderVIPs(FormatMarkdown, nil)
	require.NoError(t, err)
	require.Contains(t, out, "_none_")
}
