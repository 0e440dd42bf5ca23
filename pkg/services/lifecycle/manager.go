package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/pivot-reports/pkg/adapters"
	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/de-tools/pivot-reports/pkg/models/store"
	"github.com/de-tools/pivot-reports/pkg/store/reports"
	"github.com/rs/zerolog"
)

const (
	DefaultPollInterval = 4 * time.Second
	DefaultPollBudget   = 5 * time.Minute
	DefaultMaxAge       = 24 * time.Hour
	DefaultHistoryLimit = 20
)

var ErrPollTimeout = errors.New("report was not ready within the polling budget")

type Config struct {
	PollInterval time.Duration
	PollBudget   time.Duration
}

// Manager drives report requests from PENDING to READY.
type Manager interface {
	Create(ctx context.Context, requestID string, payload domain.ReportParameters, owner string) (*domain.ReportRequest, error)
	// MarkReady is idempotent; a second delivery overwrites csvPath and completedAt.
	MarkReady(ctx context.Context, requestID string, csvPath string) (*domain.ReportRequest, error)
	Get(ctx context.Context, requestID string) (*domain.ReportRequest, error)
	History(ctx context.Context, owner string, limit int) ([]domain.ReportRequest, error)
	WaitReady(ctx context.Context, requestID string) (*domain.ReportRequest, error)
	CleanupExpired(ctx context.Context, maxAge time.Duration) (int, error)
}

type manager struct {
	store  reports.Store
	config Config
	now    func() time.Time
}

func NewManager(store reports.Store, config Config) (Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("report store is nil")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.PollBudget <= 0 {
		config.PollBudget = DefaultPollBudget
	}

	return &manager{
		store:  store,
		config: config,
		now:    time.Now,
	}, nil
}

func (m *manager) Create(
	ctx context.Context,
	requestID string,
	payload domain.ReportParameters,
	owner string,
) (*domain.ReportRequest, error) {
	if requestID == "" {
		return nil, fmt.Errorf("request id is required")
	}

	r := &domain.ReportRequest{
		RequestID: requestID,
		Payload:   payload,
		Owner:     owner,
		CreatedAt: m.now().UTC(),
	}

	record, err := adapters.MapDomainReportRequestToStore(r)
	if err != nil {
		return nil, err
	}
	if err := m.store.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create report request %s: %w", requestID, err)
	}

	zerolog.Ctx(ctx).Info().
		Str("request_id", requestID).
		Str("owner", owner).
		Msg("report request created")
	return r, nil
}

func (m *manager) MarkReady(ctx context.Context, requestID string, csvPath string) (*domain.ReportRequest, error) {
	if csvPath == "" {
		return nil, fmt.Errorf("csv path is required")
	}

	ready := true
	completedAt := m.now().UTC()
	updated, err := m.store.Update(ctx, requestID, store.ReportPatch{
		Ready:       &ready,
		CSVPath:     &csvPath,
		CompletedAt: &completedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark report %s ready: %w", requestID, err)
	}

	zerolog.Ctx(ctx).Info().
		Str("request_id", requestID).
		Str("csv_path", csvPath).
		Msg("report ready")
	return adapters.MapStoreReportRequestToDomain(updated)
}

func (m *manager) Get(ctx context.Context, requestID string) (*domain.ReportRequest, error) {
	record, err := m.store.Fetch(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get report %s: %w", requestID, err)
	}
	return adapters.MapStoreReportRequestToDomain(record)
}

func (m *manager) History(ctx context.Context, owner string, limit int) ([]domain.ReportRequest, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	records, err := m.store.List(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	if len(records) > limit {
		records = records[:limit]
	}

	res := make([]domain.ReportRequest, 0, len(records))
	for _, record := range records {
		r, err := adapters.MapStoreReportRequestToDomain(record)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("request_id", record.RequestID).Msg("skipping unreadable report")
			continue
		}
		res = append(res, *r)
	}
	return res, nil
}

func (m *manager) CleanupExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	cutoff := m.now().UTC().Add(-maxAge)
	deleted, err := m.store.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up reports: %w", err)
	}

	zerolog.Ctx(ctx).Info().
		Int("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("expired reports cleaned up")
	return deleted, nil
}
