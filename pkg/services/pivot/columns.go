package pivot

import (
	"fmt"
	"slices"
	"strings"

	"github.com/de-tools/pivot-reports/pkg/models/domain"
)

const detectionSampleSize = 10

var aggregableKeywords = []string{
	"price", "cost", "amount", "total", "spend", "revenue", "charge", "fee",
}

// reserved names are rejected as column names, matched as substrings.
var reservedColumnNames = []string{"__proto__", "constructor", "prototype"}

// ColumnValidationError reports requested columns that cannot be used.
type ColumnValidationError struct {
	Missing []string
	Unsafe  []string
}

func (e *ColumnValidationError) Error() string {
	var parts []string
	if len(e.Unsafe) > 0 {
		parts = append(parts, fmt.Sprintf("invalid column name: %s", strings.Join(e.Unsafe, ", ")))
	}
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing columns in CSV: %s", strings.Join(e.Missing, ", ")))
	}
	return strings.Join(parts, "; ")
}

// AutoDetectAggregableColumns picks price-like columns that hold numbers in the sample.
func AutoDetectAggregableColumns(records []domain.Record, columns []string) []string {
	sample := records
	if len(sample) > detectionSampleSize {
		sample = sample[:detectionSampleSize]
	}

	detected := make([]string, 0)
	for _, column := range columns {
		if !looksAggregable(column) {
			continue
		}
		for _, record := range sample {
			if _, ok := ParseAmount(record[column]); ok {
				detected = append(detected, column)
				break
			}
		}
	}
	return detected
}

func looksAggregable(column string) bool {
	lower := strings.ToLower(column)
	for _, keyword := range aggregableKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// ValidateColumnsExist checks that every requested column is present and safe to use.
// Empty names are ignored.
func ValidateColumnsExist(available []string, groupBy string, columnSets ...[]string) error {
	requested := []string{groupBy}
	for _, set := range columnSets {
		requested = append(requested, set...)
	}

	verr := &ColumnValidationError{}
	for _, column := range requested {
		if column == "" {
			continue
		}
		if isReserved(column) {
			if !slices.Contains(verr.Unsafe, column) {
				verr.Unsafe = append(verr.Unsafe, column)
			}
			continue
		}
		if !slices.Contains(available, column) && !slices.Contains(verr.Missing, column) {
			verr.Missing = append(verr.Missing, column)
		}
	}

	if len(verr.Missing) > 0 || len(verr.Unsafe) > 0 {
		return verr
	}
	return nil
}

func isReserved(column string) bool {
	for _, name := range reservedColumnNames {
		if strings.Contains(column, name) {
			return true
		}
	}
	return false
}
