package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/pivot-reports/pkg/models/store"
	"github.com/de-tools/pivot-reports/pkg/store/duckdb"
	storereports "github.com/de-tools/pivot-reports/pkg/store/reports"
)

const selectColumns = `request_id, owner, payload, ready, csv_path, created_at, completed_at`

type sqlStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (storereports.Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &sqlStore{
		db: db,
	}, nil
}

// Open boots a DuckDB database at path and returns a store on top of it.
func Open(_ context.Context, path string) (storereports.Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: path})
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", path, err)
	}
	return NewStore(db)
}

func (s *sqlStore) conn(ctx context.Context) duckdb.Querier {
	return duckdb.Conn(ctx, s.db)
}

func (s *sqlStore) Create(ctx context.Context, r *store.ReportRequest) error {
	query := `
		INSERT INTO report_requests (` + selectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`

	res, err := s.conn(ctx).ExecContext(ctx, query,
		r.RequestID,
		r.Owner,
		string(r.Payload),
		r.Ready,
		nullString(r.CSVPath),
		r.CreatedAt,
		nullTime(r.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert report request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert report request: %w", err)
	}
	if affected == 0 {
		return storereports.ErrAlreadyExists
	}
	return nil
}

func (s *sqlStore) Fetch(ctx context.Context, requestID string) (*store.ReportRequest, error) {
	return fetch(ctx, s.conn(ctx), requestID)
}

func fetch(ctx context.Context, q duckdb.Querier, requestID string) (*store.ReportRequest, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM report_requests WHERE request_id = ?`,
		requestID,
	)

	r, err := scanReportRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storereports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query report request: %w", err)
	}
	return r, nil
}

func (s *sqlStore) Update(
	ctx context.Context,
	requestID string,
	patch store.ReportPatch,
) (*store.ReportRequest, error) {
	var r *store.ReportRequest
	err := duckdb.InTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		r, err = update(ctx, tx, requestID, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func update(ctx context.Context, tx *sql.Tx, requestID string, patch store.ReportPatch) (*store.ReportRequest, error) {
	r, err := fetch(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	patch.Apply(r)

	_, err = tx.ExecContext(ctx, `
		UPDATE report_requests
		SET ready = ?, csv_path = ?, completed_at = ?
		WHERE request_id = ?`,
		r.Ready,
		nullString(r.CSVPath),
		nullTime(r.CompletedAt),
		requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("update report request: %w", err)
	}
	return r, nil
}

func (s *sqlStore) List(ctx context.Context, owner string) ([]*store.ReportRequest, error) {
	query := `SELECT ` + selectColumns + ` FROM report_requests`
	var args []any
	if owner != "" {
		query += ` WHERE owner = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY created_at DESC, request_id ASC`

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query report requests: %w", err)
	}
	defer rows.Close()

	res := make([]*store.ReportRequest, 0)
	for rows.Next() {
		r, err := scanReportRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report request: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report requests: %w", err)
	}
	return res, nil
}

func (s *sqlStore) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM report_requests WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired report requests: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired report requests: %w", err)
	}
	return int(affected), nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReportRequest(row scanner) (*store.ReportRequest, error) {
	var (
		r           store.ReportRequest
		payload     string
		csvPath     sql.NullString
		completedAt sql.NullTime
	)

	if err := row.Scan(
		&r.RequestID,
		&r.Owner,
		&payload,
		&r.Ready,
		&csvPath,
		&r.CreatedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}

	r.Payload = []byte(payload)
	if csvPath.Valid {
		r.CSVPath = &csvPath.String
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return &r, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
