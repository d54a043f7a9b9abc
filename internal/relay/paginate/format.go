package paginate

import (
	"strings"
	"unicode/utf8"
)

// separatorRunes are the characters decorative rule lines are built
// from. A line of three or more of them (ignoring surrounding spaces)
// is dropped entirely.
const separatorRunes = "-=_*─—═"

// markerRunes are the leading glyphs stripped from each line when
// followed by whitespace: heading and bullet decoration the transport
// cannot render.
const markerRunes = "#*•◦▪►➤"

// Format strips decorative artifacts from raw model output: leading
// marker glyphs per line, long rule runs, and runs of blank lines
// collapsed to a single blank line. The result is trimmed. Format is
// idempotent.
func Format(raw string) string {
	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	blankRun := 0

	for _, line := range lines {
		line = stripLine(line)
		if strings.TrimSpace(line) == "" {
			blankRun++
			if blankRun > 1 {
				continue
			}
			cleaned = append(cleaned, "")
			continue
		}
		blankRun = 0
		cleaned = append(cleaned, line)
	}

	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

func stripLine(line string) string {
	if isSeparatorLine(line) {
		return ""
	}

	trimmed := strings.TrimLeft(line, markerRunes)
	if trimmed != line && (trimmed == "" || strings.HasPrefix(trimmed, " ") || strings.HasPrefix(trimmed, "\t")) {
		return strings.TrimLeft(trimmed, " \t")
	}
	return line
}

func isSeparatorLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if utf8.RuneCountInString(trimmed) < 3 {
		return false
	}
	for _, r := range trimmed {
		if !strings.ContainsRune(separatorRunes, r) {
			return false
		}
	}
	return true
}
