package backends

import (
	"context"

	duckreports "github.com/de-tools/pivot-reports/pkg/store/duckdb/reports"
	redisreports "github.com/de-tools/pivot-reports/pkg/store/redis/reports"
	"github.com/de-tools/pivot-reports/pkg/store/reports"
)

const (
	Memory = "memory"
	DuckDB = "duckdb"
	Redis  = "redis"
)

// NewRegistry returns a registry with every built-in report store backend.
func NewRegistry() reports.Registry {
	r := reports.NewRegistry()

	// registration on a fresh registry cannot collide
	_ = r.Register(Memory, func(context.Context, string) (reports.Store, error) {
		return reports.NewMemoryStore(), nil
	})
	_ = r.Register(DuckDB, duckreports.Open)
	_ = r.Register(Redis, redisreports.Open)

	return r
}
