// Package output renders relay stats and admin listings for the CLI.
package output

import (
	"fmt"
	"strings"

	"github.com/chatrelay/chatrelay/internal/relay/engine"
	"github.com/chatrelay/chatrelay/internal/relay/ratelimit"
)

// Format selects a rendering style for CLI output.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat resolves a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatTable, "":
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json, or markdown)", s)
	}
}

// RenderStats renders an engine stats snapshot in the given format.
func RenderStats(f Format, stats engine.Stats) (string, error) {
	switch f {
	case FormatJSON:
		return jsonRender(stats)
	case FormatMarkdown:
		return statsMarkdown(stats), nil
	default:
		return statsTable(stats), nil
	}
}

// RenderWindows renders active rate-limit windows in the given format.
func RenderWindows(f Format, windows []ratelimit.WindowInfo) (string, error) {
	switch f {
	case FormatJSON:
		return jsonRender(windows)
	case FormatMarkdown:
		return windowsMarkdown(windows), nil
	default:
		return windowsTable(windows), nil
	}
}

// RenderVIPs renders the VIP roster in the given format.
func RenderVIPs(f Format, ids []int64) (string, error) {
	switch f {
	case FormatJSON:
		return jsonRender(ids)
	case FormatMarkdown:
		return vipsMarkdown(ids), nil
	default:
		return vipsTable(ids), nil
	}
}
