package pivot

import (
	"regexp"
	"strings"

	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/shopspring/decimal"
)

const (
	defaultCurrency = "USD"
	totalsPrecision = 2
)

// leadingNumber matches the numeric prefix of a cell such as "0.50 EUR".
var leadingNumber = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

var bareDot = strings.NewReplacer(".e", "e", ".E", "E")

// ParseAmount parses the leading number of a cell and ignores trailing text
// like a unit. Cells that do not start with a number report false.
func ParseAmount(value string) (decimal.Decimal, bool) {
	number := leadingNumber.FindString(strings.TrimSpace(value))
	if number == "" {
		return decimal.Zero, false
	}
	number = strings.TrimSuffix(bareDot.Replace(strings.TrimPrefix(number, "+")), ".")
	if rest, ok := strings.CutPrefix(number, "-."); ok {
		number = "-0." + rest
	} else if strings.HasPrefix(number, ".") {
		number = "0" + number
	}
	d, err := decimal.NewFromString(number)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// SumColumn adds up a column over records. Cells that do not parse count as zero.
func SumColumn(records []domain.Record, column string) decimal.Decimal {
	sum := decimal.Zero
	for _, record := range records {
		if amount, ok := ParseAmount(record[column]); ok {
			sum = sum.Add(amount)
		}
	}
	return sum
}

// ComputeTotals sums every column and rounds each result to cents.
func ComputeTotals(records []domain.Record, columns []string) domain.Totals {
	totals := make(domain.Totals, len(columns))
	for _, column := range columns {
		totals[column] = RoundTotal(SumColumn(records, column))
	}
	return totals
}

// RoundTotal rounds half away from zero on the cents digit.
func RoundTotal(d decimal.Decimal) float64 {
	return d.Round(totalsPrecision).InexactFloat64()
}

// DetectCurrency returns the first non empty currency cell, USD otherwise.
func DetectCurrency(records []domain.Record) string {
	for _, record := range records {
		if currency := record["currency"]; currency != "" {
			return currency
		}
	}
	return defaultCurrency
}
