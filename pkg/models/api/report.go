package api

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// StringList decodes either a JSON array of strings or a comma separated string.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = compact(list)
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return err
	}
	*s = compact(strings.Split(joined, ","))
	return nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// FlexBool decodes a JSON boolean or a form style string ("true", "on", "1").
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = FlexBool(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.EqualFold(s, "on") {
		*b = true
		return nil
	}
	parsed, err := strconv.ParseBool(s)
	if err != nil {
		*b = false
		return nil
	}
	*b = FlexBool(parsed)
	return nil
}

type ReportParameters struct {
	AccountID          string     `json:"accountId,omitempty"`
	DateFrom           string     `json:"dateFrom"`
	DateTo             string     `json:"dateTo"`
	IncludeSubaccounts FlexBool   `json:"includeSubaccounts"`
	GroupBy            string     `json:"groupBy"`
	InternalGroupBy    StringList `json:"internalGroupBy"`
	ShowTotalBy        StringList `json:"showTotalBy"`
	PriceColumns       StringList `json:"priceColumns"`
}

type SubmitReportRequest struct {
	ReportParameters
	Profile string `json:"profile,omitempty"`
}

type SubmitReportResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

type ReportRequest struct {
	RequestID   string           `json:"requestId"`
	Payload     ReportParameters `json:"payload"`
	Owner       string           `json:"owner,omitempty"`
	Ready       bool             `json:"ready"`
	CSVPath     *string          `json:"csvPath"`
	CreatedAt   time.Time        `json:"createdAt"`
	CompletedAt *time.Time       `json:"completedAt"`
}

type ReadinessResponse struct {
	Success bool           `json:"success"`
	Ready   bool           `json:"ready,omitempty"`
	CSVPath *string        `json:"csvPath,omitempty"`
	Payload *ReportRequest `json:"payload,omitempty"`
	Message string         `json:"message,omitempty"`
}

type HistoryResponse struct {
	Success bool            `json:"success"`
	Reports []ReportRequest `json:"reports"`
}

// CallbackNotification is what the reports API posts once a report is ready.
type CallbackNotification struct {
	RequestID string `json:"request_id"`
	Links     struct {
		DownloadReport struct {
			Href string `json:"href"`
		} `json:"download_report"`
	} `json:"_links"`
}

type CallbackResponse struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

type PivotRequest struct {
	ReportParameters
	CSVPath   string `json:"csvPath,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type RunReportRequest struct {
	SubmitReportRequest
}

type PivotReport struct {
	Title           string          `json:"title"`
	Data            *ReportDocument `json:"data"`
	DateFrom        string          `json:"dateFrom,omitempty"`
	DateTo          string          `json:"dateTo,omitempty"`
	AccountID       string          `json:"accountId,omitempty"`
	GroupBy         string          `json:"groupBy"`
	InternalGroupBy []string        `json:"internalGroupBy"`
	ShowTotalBy     []string        `json:"showTotalBy"`
	PriceColumns    []string        `json:"priceColumns"`
}

type PivotResponse struct {
	Success bool         `json:"success"`
	CSVPath string       `json:"csvPath,omitempty"`
	Report  *PivotReport `json:"report,omitempty"`
	Message string       `json:"message,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
