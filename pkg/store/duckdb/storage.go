package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"
)

const ReportRequestsSchema = `
	CREATE TABLE IF NOT EXISTS report_requests (
		request_id VARCHAR PRIMARY KEY,
		owner VARCHAR NOT NULL DEFAULT '',
		payload VARCHAR NOT NULL,
		ready BOOLEAN NOT NULL DEFAULT FALSE,
		csv_path VARCHAR NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		completed_at TIMESTAMP NULL
	);
`

const ReportRequestsCreatedAtIndex = `
	CREATE INDEX IF NOT EXISTS report_requests_created_at ON report_requests (created_at);
`

var bootQueries = []string{
	ReportRequestsSchema,
	ReportRequestsCreatedAtIndex,
}

type Settings struct {
	DbPath string
}

func NewDB(settings Settings) (*sql.DB, error) {
	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=4", settings.DbPath), func(exec driver.ExecerContext) error {
		bootQueries := append([]string{}, bootQueries...)

		for _, query := range bootQueries {
			_, err := exec.ExecContext(context.Background(), query, nil)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(c)
	return db, nil
}
