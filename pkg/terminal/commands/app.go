package commands

import (
	"context"

	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/de-tools/pivot-reports/pkg/services/config"
	"github.com/de-tools/pivot-reports/pkg/services/reports"
)

// Application is the wired service layer the online commands work against.
type Application interface {
	RunReport(ctx context.Context, profile string, params domain.ReportParameters) (*reports.PivotResult, error)
	Service() reports.Service
	Profiles() config.Registry
	Close() error
}

// AppFactory builds the application from the configuration selected on the command line.
type AppFactory func(ctx context.Context) (Application, error)

// HistoryReporter prints report request records.
type HistoryReporter interface {
	HandleHistory(requests []domain.ReportRequest) error
}
