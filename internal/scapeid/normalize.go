package scapeid

import (
	"strings"

	"pathevo/internal/grid"
)

// Normalize canonicalizes scape names. Built-in layouts are matched ignoring
// case, separators and a "scape" prefix, so "Scape_Open-11" names open11.
// Other names are lower-cased with separators folded to '-'.
func Normalize(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.Trim(normalized, "-")
	if normalized == "" {
		return ""
	}
	if canonical, ok := knownLayout(normalized); ok {
		return canonical
	}
	return normalized
}

func knownLayout(normalized string) (string, bool) {
	for _, candidate := range aliasCandidates(normalized) {
		compact := strings.ReplaceAll(candidate, "-", "")
		if compact == "default" {
			return grid.DefaultLayout, true
		}
		for _, layout := range grid.LayoutNames() {
			if compact == layout {
				return layout, true
			}
		}
	}
	return "", false
}

func aliasCandidates(normalized string) []string {
	candidates := []string{normalized}
	candidate := strings.TrimPrefix(normalized, "scape-")
	if candidate == normalized {
		candidate = strings.TrimPrefix(candidate, "scape")
	}
	candidate = strings.Trim(candidate, "-")
	if candidate != "" && candidate != normalized {
		candidates = append(candidates, candidate)
	}
	return candidates
}
