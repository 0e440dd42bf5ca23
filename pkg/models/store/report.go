package store

import "time"

// ReportRequest is the persisted lifecycle record.
// Payload holds the JSON encoded request parameters.
type ReportRequest struct {
	RequestID   string     `json:"requestId"`
	Owner       string     `json:"owner"`
	Payload     []byte     `json:"payload"`
	Ready       bool       `json:"ready"`
	CSVPath     *string    `json:"csvPath"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

// ReportPatch lists the fields an update may change. Nil fields are left untouched.
type ReportPatch struct {
	Ready       *bool
	CSVPath     *string
	CompletedAt *time.Time
}

// Apply copies the set fields of p onto r.
func (p ReportPatch) Apply(r *ReportRequest) {
	if p.Ready != nil {
		r.Ready = *p.Ready
	}
	if p.CSVPath != nil {
		path := *p.CSVPath
		r.CSVPath = &path
	}
	if p.CompletedAt != nil {
		at := *p.CompletedAt
		r.CompletedAt = &at
	}
}

// ReportParameters is the JSON shape of ReportRequest.Payload.
type ReportParameters struct {
	AccountID          string   `json:"account_id,omitempty"`
	DateFrom           string   `json:"date_from"`
	DateTo             string   `json:"date_to"`
	IncludeSubaccounts bool     `json:"include_subaccounts"`
	GroupBy            string   `json:"group_by,omitempty"`
	InternalGroupBy    []string `json:"internal_group_by,omitempty"`
	ShowTotalBy        []string `json:"show_total_by,omitempty"`
	PriceColumns       []string `json:"price_columns,omitempty"`
}
