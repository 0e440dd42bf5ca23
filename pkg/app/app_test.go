package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/de-tools/pivot-reports/pkg/services/config"
	"github.com/de-tools/pivot-reports/pkg/services/requester"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.PublicURL = "http://127.0.0.1"
	cfg.Storage.Root = t.TempDir()
	cfg.Profiles.APIKey = "key"
	cfg.Profiles.APISecret = "secret"
	return cfg
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(config.LogConfig{Level: "warn"}, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	logger = NewLogger(config.LogConfig{Level: "nonsense"}, &buf)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(zerolog.NewTestWriter(t))

	t.Run("memory backend", func(t *testing.T) {
		a, err := New(ctx, setupConfig(t), logger)
		require.NoError(t, err)
		defer a.Close()

		assert.NotNil(t, a.Service())
		profiles, err := a.Profiles().GetProfiles(ctx)
		require.NoError(t, err)
		require.Len(t, profiles, 1)
		assert.Equal(t, "default", profiles[0].Name)

		history, err := a.Service().History(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("duckdb backend", func(t *testing.T) {
		cfg := setupConfig(t)
		cfg.Store.Backend = "duckdb"
		cfg.Store.DuckDB.Path = ""

		a, err := New(ctx, cfg, logger)
		require.NoError(t, err)
		assert.NoError(t, a.Close())
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := setupConfig(t)
		cfg.Store.Backend = "cassandra"

		_, err := New(ctx, cfg, logger)
		assert.ErrorContains(t, err, "cassandra")
	})

	t.Run("invalid schedule", func(t *testing.T) {
		cfg := setupConfig(t)
		cfg.Cleanup.Schedule = "every now and then"

		_, err := New(ctx, cfg, logger)
		assert.Error(t, err)
	})
}

func TestApp_Serve(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	a, err := New(context.Background(), setupConfig(t), logger)
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background()))
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestApp_RunReport_LogsThroughAppLogger(t *testing.T) {
	reportsAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"title":"Unauthorized"}`))
	}))
	defer reportsAPI.Close()

	var buf bytes.Buffer
	logger := zerolog.New(zerolog.SyncWriter(&buf))

	cfg := setupConfig(t)
	cfg.Reports.APIURL = reportsAPI.URL
	a, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.RunReport(context.Background(), "", domain.ReportParameters{
		AccountID: "74c96a88",
		DateFrom:  "2025-01-01",
		DateTo:    "2025-01-31",
		GroupBy:   "status",
	})
	assert.ErrorIs(t, err, requester.ErrRequestRejected)
	assert.Contains(t, buf.String(), "reports API rejected the request")
}
