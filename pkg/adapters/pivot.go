package adapters

import (
	"maps"

	"github.com/de-tools/pivot-reports/pkg/models/api"
	"github.com/de-tools/pivot-reports/pkg/models/domain"
)

func MapReportDocumentDomainToApi(d *domain.ReportDocument) *api.ReportDocument {
	if d == nil {
		return nil
	}

	res := &api.ReportDocument{
		Accounts:     make([]api.AccountReport, 0, len(d.Accounts)),
		Currency:     d.Currency,
		PriceColumns: nonNil(d.PriceColumns),
		Metadata: api.ReportMetadata{
			TotalRecords:    d.Metadata.TotalRecords,
			GroupBy:         d.Metadata.GroupBy,
			InternalGroupBy: nonNil(d.Metadata.InternalGroupBy),
			ShowTotalBy:     nonNil(d.Metadata.ShowTotalBy),
			PriceColumns:    nonNil(d.Metadata.PriceColumns),
			GeneratedAt:     d.Metadata.GeneratedAt,
		},
	}
	for _, account := range d.Accounts {
		res.Accounts = append(res.Accounts, MapAccountReportDomainToApi(account))
	}
	return res
}

func MapAccountReportDomainToApi(r domain.AccountReport) api.AccountReport {
	res := api.AccountReport{
		AccountID:   r.AccountID,
		Groups:      make([]api.MainGroup, 0, len(r.Groups)),
		GrandTotals: mapTotals(r.GrandTotals),
		TotalCount:  r.TotalCount,
		Currency:    r.Currency,
	}
	for _, g := range r.Groups {
		res.Groups = append(res.Groups, api.MainGroup{
			GroupValue:   g.GroupValue,
			GroupColumn:  g.GroupColumn,
			NestedGroups: mapChildren(g.NestedGroups, g.Leaves),
			Totals:       mapTotals(g.Totals),
			Count:        g.Count,
		})
	}
	return res
}

func MapGroupNodeDomainToApi(n domain.GroupNode) api.GroupNode {
	return api.GroupNode{
		Column:   n.Column,
		Value:    n.Value,
		Children: mapChildren(n.Children, n.Leaves),
		Totals:   mapTotals(n.Totals),
		Count:    n.Count,
		Level:    n.Level,
	}
}

func MapBreakdownLeafDomainToApi(l domain.BreakdownLeaf) api.BreakdownLeaf {
	return api.BreakdownLeaf{
		BreakdownColumn: l.BreakdownColumn,
		BreakdownValue:  l.BreakdownValue,
		Count:           l.Count,
		Totals:          mapTotals(l.Totals),
	}
}

// mapChildren renders the nested level: groups when there are any, leaves otherwise.
func mapChildren(nodes []domain.GroupNode, leaves []domain.BreakdownLeaf) any {
	if len(nodes) > 0 {
		res := make([]api.GroupNode, 0, len(nodes))
		for _, n := range nodes {
			res = append(res, MapGroupNodeDomainToApi(n))
		}
		return res
	}

	res := make([]api.BreakdownLeaf, 0, len(leaves))
	for _, l := range leaves {
		res = append(res, MapBreakdownLeafDomainToApi(l))
	}
	return res
}

func mapTotals(t domain.Totals) api.Totals {
	if t == nil {
		return api.Totals{}
	}
	return api.Totals(maps.Clone(t))
}
