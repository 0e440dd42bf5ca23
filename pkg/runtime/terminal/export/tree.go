package export

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/de-tools/pivot-reports/pkg/services/pivot"
	"github.com/pterm/pterm"
)

// TreeRenderer prints every account of a pivot document as a pterm tree.
type TreeRenderer struct {
	writer io.Writer
}

func NewTreeRenderer(writer io.Writer) *TreeRenderer {
	if writer == nil {
		writer = os.Stdout
	}
	return &TreeRenderer{writer: writer}
}

func (r *TreeRenderer) Handle(doc *domain.ReportDocument) error {
	for _, account := range doc.Accounts {
		root := pterm.TreeNode{
			Text: fmt.Sprintf("Account %s: %s", account.AccountID,
				describe(account.TotalCount, account.GrandTotals, doc.PriceColumns, account.Currency)),
			Children: treeNodes(Rows(account, doc.PriceColumns), doc.PriceColumns, account.Currency),
		}

		rendered, err := pterm.DefaultTree.WithRoot(root).Srender()
		if err != nil {
			return fmt.Errorf("failed to render account %s: %w", account.AccountID, err)
		}
		if _, err := fmt.Fprintln(r.writer, rendered); err != nil {
			return err
		}
	}
	return nil
}

// treeNodes rebuilds the hierarchy from depth annotated rows.
func treeNodes(rows []Row, priceColumns []string, currency string) []pterm.TreeNode {
	var nodes []pterm.TreeNode
	for i := 0; i < len(rows); {
		depth := rows[i].Depth
		end := i + 1
		for end < len(rows) && rows[end].Depth > depth {
			end++
		}

		row := rows[i]
		totals := make(domain.Totals, len(priceColumns))
		for j, column := range priceColumns {
			totals[column] = row.Totals[j]
		}
		nodes = append(nodes, pterm.TreeNode{
			Text:     fmt.Sprintf("%s: %s", row.Key, describe(row.Count, totals, priceColumns, currency)),
			Children: treeNodes(rows[i+1:end], priceColumns, currency),
		})
		i = end
	}
	return nodes
}

func describe(count int, totals domain.Totals, priceColumns []string, currency string) string {
	parts := []string{fmt.Sprintf("%d records", count)}
	for _, column := range priceColumns {
		part := fmt.Sprintf("%s %.2f", pivot.Label(column), totals[column])
		if currency != "" {
			part += " " + currency
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}
