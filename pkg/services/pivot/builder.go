package pivot

import (
	"slices"

	"github.com/de-tools/pivot-reports/pkg/models/domain"
)

// Pivot is the result of one grouping level: nested nodes, or breakdown
// leaves once the grouping columns are exhausted.
type Pivot struct {
	Nodes  []domain.GroupNode
	Leaves []domain.BreakdownLeaf
}

type bucket struct {
	key     string
	display any
	records []domain.Record
}

// groupRecords buckets records by the normalized value of column.
// Records keep their input order inside a bucket; buckets come back sorted.
func groupRecords(records []domain.Record, column string) []*bucket {
	index := make(map[string]*bucket)
	buckets := make([]*bucket, 0)

	for _, record := range records {
		gk := NormalizeGroupKey(record[column])
		b, ok := index[gk.Key]
		if !ok {
			b = &bucket{key: gk.Key, display: gk.Display}
			index[gk.Key] = b
			buckets = append(buckets, b)
		}
		b.records = append(b.records, record)
	}

	slices.SortStableFunc(buckets, func(a, b *bucket) int {
		return compareKeys(a.key, b.key)
	})
	return buckets
}

// BuildPivot groups records by each of internalGroupBy in turn and ends with a
// breakdown over the first breakdown column. Further breakdown columns are ignored.
func BuildPivot(
	records []domain.Record,
	internalGroupBy []string,
	breakdown []string,
	aggregable []string,
) Pivot {
	return buildLevel(records, internalGroupBy, breakdown, aggregable, 0)
}

func buildLevel(
	records []domain.Record,
	internalGroupBy []string,
	breakdown []string,
	aggregable []string,
	level int,
) Pivot {
	if level >= len(internalGroupBy) {
		return Pivot{Leaves: buildBreakdown(records, breakdown, aggregable)}
	}

	column := internalGroupBy[level]
	buckets := groupRecords(records, column)

	nodes := make([]domain.GroupNode, 0, len(buckets))
	for _, b := range buckets {
		child := buildLevel(b.records, internalGroupBy, breakdown, aggregable, level+1)
		nodes = append(nodes, domain.GroupNode{
			Column:   column,
			Key:      b.key,
			Value:    b.display,
			Children: child.Nodes,
			Leaves:   child.Leaves,
			Totals:   ComputeTotals(b.records, aggregable),
			Count:    len(b.records),
			Level:    level,
		})
	}

	return Pivot{Nodes: nodes}
}

func buildBreakdown(records []domain.Record, breakdown []string, aggregable []string) []domain.BreakdownLeaf {
	if len(breakdown) == 0 {
		return []domain.BreakdownLeaf{{
			Count:  len(records),
			Totals: ComputeTotals(records, aggregable),
		}}
	}

	column := breakdown[0]
	buckets := groupRecords(records, column)

	leaves := make([]domain.BreakdownLeaf, 0, len(buckets))
	for _, b := range buckets {
		leaves = append(leaves, domain.BreakdownLeaf{
			BreakdownColumn: &column,
			BreakdownKey:    b.key,
			BreakdownValue:  b.display,
			Count:           len(b.records),
			Totals:          ComputeTotals(b.records, aggregable),
		})
	}
	return leaves
}
