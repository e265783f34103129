package filter

import (
	"strconv"
	"strings"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
)

// Shared coercion helpers for assembling a FilterState from raw transport
// input. Every entry point must use these so that equivalent raw inputs
// produce an equal FilterState. Malformed values normalize to "absent" or a
// default rather than erroring, keeping the UI responsive to stray input.

// DefaultPerPage is the page size used when the transport supplies none.
const DefaultPerPage = 16

// DecimalParam parses a decimal bound. Empty or malformed input yields nil.
func DecimalParam(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

// BoolParam parses a flag the way form posts and query vars send them.
func BoolParam(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// SortParam normalizes a sort key; unknown keys fall back to relevance.
func SortParam(raw string) string {
	raw = strings.TrimSpace(raw)
	if domain.IsValidSort(raw) {
		return raw
	}
	return domain.SortRelevance
}

// PageParam parses a 1-indexed page number, clamped to >= 1.
func PageParam(raw string) int {
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 1 {
		return n
	}
	return 1
}

// PerPageParam parses a page size, bounded to (0, 100].
func PerPageParam(raw string) int {
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 && n <= 100 {
		return n
	}
	return DefaultPerPage
}

// AttributeSelectionsParam decodes repeated "Label:term1|term2" entries into
// attribute selections. Malformed entries are skipped per the
// silent-normalization policy for stray input.
func AttributeSelectionsParam(entries []string) map[string][]string {
	out := make(map[string][]string)
	for _, entry := range entries {
		label, raw, ok := strings.Cut(entry, ":")
		label = strings.TrimSpace(label)
		if !ok || label == "" {
			continue
		}
		for _, term := range strings.Split(raw, "|") {
			if term = strings.TrimSpace(term); term != "" {
				out[label] = append(out[label], term)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// CSVParam splits a comma-separated list, trimming entries and dropping empties.
func CSVParam(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
