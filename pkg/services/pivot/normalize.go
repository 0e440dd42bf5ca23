package pivot

import (
	"encoding/json"
	"strings"
)

// NotAvailable is the grouping key of empty values. It always sorts last.
const NotAvailable = "N/A"

// GroupKey pairs the key records are bucketed by with the value shown for it.
type GroupKey struct {
	Key     string
	Display any
}

// NormalizeGroupKey derives the grouping key of a raw cell value.
// JSON looking values keep their raw text as key and expose the decoded value for display.
func NormalizeGroupKey(raw string) GroupKey {
	if raw == "" {
		return GroupKey{Key: NotAvailable, Display: NotAvailable}
	}

	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		var decoded any
		unescaped := strings.ReplaceAll(raw, `\"`, `"`)
		if err := json.Unmarshal([]byte(unescaped), &decoded); err != nil {
			return GroupKey{Key: raw, Display: raw}
		}
		return GroupKey{Key: raw, Display: decoded}
	}

	return GroupKey{Key: raw, Display: raw}
}

// compareKeys orders grouping keys ascending with NotAvailable pinned to the end.
func compareKeys(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == NotAvailable:
		return 1
	case b == NotAvailable:
		return -1
	default:
		return strings.Compare(a, b)
	}
}
