package reports

import (
	"context"
	"errors"
	"time"

	"github.com/de-tools/pivot-reports/pkg/models/store"
)

var (
	ErrNotFound      = errors.New("report request not found")
	ErrAlreadyExists = errors.New("report request already exists")
)

// Store persists report lifecycle records. Implementations serialise
// writes per request id so concurrent updates never lose a field.
type Store interface {
	Create(ctx context.Context, r *store.ReportRequest) error
	Fetch(ctx context.Context, requestID string) (*store.ReportRequest, error)
	// Update applies patch atomically and returns the updated record.
	Update(ctx context.Context, requestID string, patch store.ReportPatch) (*store.ReportRequest, error)
	// List returns the records of owner, newest first. An empty owner lists everything.
	List(ctx context.Context, owner string) ([]*store.ReportRequest, error)
	// DeleteCreatedBefore removes every record created before cutoff, ready or not.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}
