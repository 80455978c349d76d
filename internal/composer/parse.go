package composer

import "strings"

// parseSections extracts the two labelled sections out of a free-text model
// response. Markers are matched case-insensitively at line starts, in either
// order. When the direct-answer marker is missing entirely the whole
// response is used as the direct answer, so a model that ignores the format
// still produces a usable result.
func parseSections(raw string) (direct, community string) {
	var directB, communityB, preamble strings.Builder
	section := &preamble
	sawDirect := false

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if rest, ok := cutMarker(trimmed, markerDirect); ok {
			sawDirect = true
			section = &directB
			appendLine(section, rest)
			continue
		}
		if rest, ok := cutMarker(trimmed, markerCommunity); ok {
			section = &communityB
			appendLine(section, rest)
			continue
		}
		appendLine(section, line)
	}

	direct = strings.TrimSpace(directB.String())
	community = strings.TrimSpace(communityB.String())
	if !sawDirect {
		direct = strings.TrimSpace(preamble.String())
	}
	if direct == "" {
		direct = strings.TrimSpace(raw)
	}
	return direct, community
}

// cutMarker strips a case-insensitive marker prefix from a line. Slicing by
// the marker's byte length cannot panic; landing mid-rune just fails the
// fold comparison.
func cutMarker(line, marker string) (string, bool) {
	if len(line) < len(marker) || !strings.EqualFold(line[:len(marker)], marker) {
		return "", false
	}
	return strings.TrimSpace(line[len(marker):]), true
}

func appendLine(b *strings.Builder, line string) {
	if line == "" {
		return
	}
	b.WriteString(line)
	b.WriteByte('\n')
}
