package domain

import "time"

// Record is a single CSV row keyed by column name.
type Record map[string]string

// Totals maps an aggregable column to its rounded sum.
type Totals map[string]float64

// GroupNode is one nested grouping level of a pivot.
// Exactly one of Children or Leaves is set: the innermost level carries leaves.
type GroupNode struct {
	Column   string
	Key      string
	Value    any
	Children []GroupNode
	Leaves   []BreakdownLeaf
	Totals   Totals
	Count    int
	Level    int
}

// BreakdownLeaf is the innermost per-category summary of a group.
// BreakdownColumn is nil when no breakdown dimension is configured.
type BreakdownLeaf struct {
	BreakdownColumn *string
	BreakdownKey    string
	BreakdownValue  any
	Count           int
	Totals          Totals
}

// MainGroup is a root-level group of an account report.
type MainGroup struct {
	GroupColumn  string
	GroupKey     string
	GroupValue   any
	NestedGroups []GroupNode
	Leaves       []BreakdownLeaf
	Totals       Totals
	Count        int
}

type AccountReport struct {
	AccountID   string
	Groups      []MainGroup
	GrandTotals Totals
	TotalCount  int
	Currency    string
}

type ReportMetadata struct {
	TotalRecords    int
	GroupBy         string
	InternalGroupBy []string
	ShowTotalBy     []string
	PriceColumns    []string
	GeneratedAt     time.Time
}

// ReportDocument is the complete pivot produced from one CSV source.
type ReportDocument struct {
	Accounts     []AccountReport
	Currency     string
	PriceColumns []string
	Metadata     ReportMetadata
}
