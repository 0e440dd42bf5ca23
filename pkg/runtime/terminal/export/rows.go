package export

import (
	"github.com/de-tools/pivot-reports/pkg/models/domain"
)

// Row is one printable line of an account pivot.
type Row struct {
	Depth  int
	Column string
	Key    string
	Count  int
	Totals []float64
}

// Rows flattens the groups of an account depth first, in document order.
// Leaves without a breakdown column repeat their parent and are skipped.
func Rows(account domain.AccountReport, priceColumns []string) []Row {
	var rows []Row
	for _, group := range account.Groups {
		rows = append(rows, Row{
			Column: group.GroupColumn,
			Key:    group.GroupKey,
			Count:  group.Count,
			Totals: totalsOf(group.Totals, priceColumns),
		})
		rows = appendNodes(rows, group.NestedGroups, 1, priceColumns)
		rows = appendLeaves(rows, group.Leaves, 1, priceColumns)
	}
	return rows
}

func appendNodes(rows []Row, nodes []domain.GroupNode, depth int, priceColumns []string) []Row {
	for _, node := range nodes {
		rows = append(rows, Row{
			Depth:  depth,
			Column: node.Column,
			Key:    node.Key,
			Count:  node.Count,
			Totals: totalsOf(node.Totals, priceColumns),
		})
		rows = appendNodes(rows, node.Children, depth+1, priceColumns)
		rows = appendLeaves(rows, node.Leaves, depth+1, priceColumns)
	}
	return rows
}

func appendLeaves(rows []Row, leaves []domain.BreakdownLeaf, depth int, priceColumns []string) []Row {
	for _, leaf := range leaves {
		if leaf.BreakdownColumn == nil {
			continue
		}
		rows = append(rows, Row{
			Depth:  depth,
			Column: *leaf.BreakdownColumn,
			Key:    leaf.BreakdownKey,
			Count:  leaf.Count,
			Totals: totalsOf(leaf.Totals, priceColumns),
		})
	}
	return rows
}

func totalsOf(totals domain.Totals, priceColumns []string) []float64 {
	values := make([]float64, len(priceColumns))
	for i, column := range priceColumns {
		values[i] = totals[column]
	}
	return values
}
