package adapters

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/de-tools/pivot-reports/pkg/models/api"
	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/de-tools/pivot-reports/pkg/models/store"
)

func MapStoreReportRequestToDomain(r *store.ReportRequest) (*domain.ReportRequest, error) {
	if r == nil {
		return nil, nil
	}

	var payload store.ReportParameters
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload of %s: %w", r.RequestID, err)
		}
	}

	return &domain.ReportRequest{
		RequestID:   r.RequestID,
		Payload:     MapStoreParametersToDomain(payload),
		Owner:       r.Owner,
		Ready:       r.Ready,
		CSVPath:     r.CSVPath,
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
	}, nil
}

func MapDomainReportRequestToStore(r *domain.ReportRequest) (*store.ReportRequest, error) {
	payload, err := json.Marshal(MapDomainParametersToStore(r.Payload))
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload of %s: %w", r.RequestID, err)
	}

	return &store.ReportRequest{
		RequestID:   r.RequestID,
		Owner:       r.Owner,
		Payload:     payload,
		Ready:       r.Ready,
		CSVPath:     r.CSVPath,
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
	}, nil
}

func MapStoreParametersToDomain(p store.ReportParameters) domain.ReportParameters {
	return domain.ReportParameters{
		AccountID:          p.AccountID,
		DateFrom:           p.DateFrom,
		DateTo:             p.DateTo,
		IncludeSubaccounts: p.IncludeSubaccounts,
		GroupBy:            p.GroupBy,
		InternalGroupBy:    slices.Clone(p.InternalGroupBy),
		ShowTotalBy:        slices.Clone(p.ShowTotalBy),
		PriceColumns:       slices.Clone(p.PriceColumns),
	}
}

func MapDomainParametersToStore(p domain.ReportParameters) store.ReportParameters {
	return store.ReportParameters{
		AccountID:          p.AccountID,
		DateFrom:           p.DateFrom,
		DateTo:             p.DateTo,
		IncludeSubaccounts: p.IncludeSubaccounts,
		GroupBy:            p.GroupBy,
		InternalGroupBy:    slices.Clone(p.InternalGroupBy),
		ShowTotalBy:        slices.Clone(p.ShowTotalBy),
		PriceColumns:       slices.Clone(p.PriceColumns),
	}
}

func MapApiParametersToDomain(p api.ReportParameters) domain.ReportParameters {
	return domain.ReportParameters{
		AccountID:          p.AccountID,
		DateFrom:           p.DateFrom,
		DateTo:             p.DateTo,
		IncludeSubaccounts: bool(p.IncludeSubaccounts),
		GroupBy:            p.GroupBy,
		InternalGroupBy:    nonNil(p.InternalGroupBy),
		ShowTotalBy:        nonNil(p.ShowTotalBy),
		PriceColumns:       nonNil(p.PriceColumns),
	}
}

func MapDomainParametersToApi(p domain.ReportParameters) api.ReportParameters {
	return api.ReportParameters{
		AccountID:          p.AccountID,
		DateFrom:           p.DateFrom,
		DateTo:             p.DateTo,
		IncludeSubaccounts: api.FlexBool(p.IncludeSubaccounts),
		GroupBy:            p.GroupBy,
		InternalGroupBy:    nonNil(p.InternalGroupBy),
		ShowTotalBy:        nonNil(p.ShowTotalBy),
		PriceColumns:       nonNil(p.PriceColumns),
	}
}

func MapReportRequestDomainToApi(r domain.ReportRequest) api.ReportRequest {
	return api.ReportRequest{
		RequestID:   r.RequestID,
		Payload:     MapDomainParametersToApi(r.Payload),
		Owner:       r.Owner,
		Ready:       r.Ready,
		CSVPath:     r.CSVPath,
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return slices.Clone(values)
}
