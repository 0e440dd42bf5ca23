package api

import "time"

type Totals map[string]float64

// GroupNode.Children holds either []GroupNode or []BreakdownLeaf.
type GroupNode struct {
	Column   string `json:"column"`
	Value    any    `json:"value"`
	Children any    `json:"children"`
	Totals   Totals `json:"totals"`
	Count    int    `json:"count"`
	Level    int    `json:"level"`
}

type BreakdownLeaf struct {
	BreakdownColumn *string `json:"breakdownColumn"`
	BreakdownValue  any     `json:"breakdownValue"`
	Count           int     `json:"count"`
	Totals          Totals  `json:"totals"`
}

// MainGroup.NestedGroups holds either []GroupNode or []BreakdownLeaf.
type MainGroup struct {
	GroupValue   any    `json:"groupValue"`
	GroupColumn  string `json:"groupColumn"`
	NestedGroups any    `json:"nestedGroups"`
	Totals       Totals `json:"totals"`
	Count        int    `json:"count"`
}

type AccountReport struct {
	AccountID   string      `json:"accountId"`
	Groups      []MainGroup `json:"groups"`
	GrandTotals Totals      `json:"grandTotals"`
	TotalCount  int         `json:"totalCount"`
	Currency    string      `json:"currency"`
}

type ReportMetadata struct {
	TotalRecords    int       `json:"totalRecords"`
	GroupBy         string    `json:"groupBy"`
	InternalGroupBy []string  `json:"internalGroupBy"`
	ShowTotalBy     []string  `json:"showTotalBy"`
	PriceColumns    []string  `json:"priceColumns"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

type ReportDocument struct {
	Accounts     []AccountReport `json:"accounts"`
	Currency     string          `json:"currency"`
	PriceColumns []string        `json:"priceColumns"`
	Metadata     ReportMetadata  `json:"metadata"`
}
