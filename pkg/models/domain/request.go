package domain

import "time"

type ReportStatus string

const (
	ReportStatusPending ReportStatus = "pending"
	ReportStatusReady   ReportStatus = "ready"
)

// ReportParameters are the filters and pivot settings of a report request.
type ReportParameters struct {
	AccountID          string
	DateFrom           string
	DateTo             string
	IncludeSubaccounts bool
	GroupBy            string
	InternalGroupBy    []string
	ShowTotalBy        []string
	PriceColumns       []string
}

// AccountIDs returns the account filter as a list; empty means all accounts.
func (p ReportParameters) AccountIDs() []string {
	if p.AccountID == "" {
		return nil
	}
	return []string{p.AccountID}
}

// ReportRequest is the lifecycle record of one external report request.
type ReportRequest struct {
	RequestID   string
	Payload     ReportParameters
	Owner       string
	Ready       bool
	CSVPath     *string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

func (r ReportRequest) Status() ReportStatus {
	if r.Ready {
		return ReportStatusReady
	}
	return ReportStatusPending
}
