package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/pivot-reports/pkg/adapters"
	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/de-tools/pivot-reports/pkg/store/reports"
	"github.com/rs/zerolog"
)

// WaitReady checks the request every poll interval until it is ready, the
// poll budget is spent, the request disappears or ctx is done. The first
// check happens one interval after the call.
func (m *manager) WaitReady(ctx context.Context, requestID string) (*domain.ReportRequest, error) {
	logger := zerolog.Ctx(ctx).With().Str("request_id", requestID).Logger()

	// time.Now carries a monotonic reading; wall clock jumps do not move the deadline.
	deadline := time.Now().Add(m.config.PollBudget)
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	timeout := time.NewTimer(m.config.PollBudget)
	defer timeout.Stop()

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout.C:
			logger.Warn().Int("attempts", attempt).Msg("polling budget exhausted")
			return nil, ErrPollTimeout
		case <-ticker.C:
		}

		attempt++
		record, err := m.store.Fetch(ctx, requestID)
		switch {
		case errors.Is(err, reports.ErrNotFound):
			return nil, fmt.Errorf("failed to poll report %s: %w", requestID, err)
		case err != nil:
			logger.Warn().Err(err).Int("attempt", attempt).Msg("poll failed, retrying")
		case record.Ready:
			logger.Info().Int("attempts", attempt).Msg("report ready")
			return adapters.MapStoreReportRequestToDomain(record)
		default:
			logger.Debug().Int("attempt", attempt).Msg("report not ready yet")
		}

		if !time.Now().Before(deadline) {
			logger.Warn().Int("attempts", attempt).Msg("polling budget exhausted")
			return nil, ErrPollTimeout
		}
	}
}
