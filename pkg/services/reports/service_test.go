package reports

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/de-tools/pivot-reports/pkg/services/archive"
	"github.com/de-tools/pivot-reports/pkg/services/config"
	"github.com/de-tools/pivot-reports/pkg/services/lifecycle"
	"github.com/de-tools/pivot-reports/pkg/services/requester"
	"github.com/de-tools/pivot-reports/pkg/services/token"
	"github.com/de-tools/pivot-reports/pkg/storage/local"
	storereports "github.com/de-tools/pivot-reports/pkg/store/reports"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const reportCSV = `account_id,status,total_price,currency
74c96a88,read,0.50,EUR
74c96a88,read,0.20,EUR
74c96a88,rejected,0.00,EUR
`

type mockRequester struct {
	mock.Mock
}

func (m *mockRequester) Request(
	ctx context.Context,
	creds domain.Credentials,
	params domain.ReportParameters,
	callbackURL string,
) (*requester.Response, error) {
	args := m.Called(ctx, creds, params, callbackURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*requester.Response), args.Error(1)
}

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, creds domain.Credentials, href string) ([]byte, error) {
	args := m.Called(ctx, creds, href)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type mockMirror struct {
	mock.Mock
}

func (m *mockMirror) Upload(ctx context.Context, requestID, localPath string) (string, error) {
	args := m.Called(ctx, requestID, localPath)
	return args.String(0), args.Error(1)
}

type fixture struct {
	service   Service
	requester *mockRequester
	fetcher   *mockFetcher
	mirror    *mockMirror
	lifecycle lifecycle.Manager
	signer    token.Signer
	root      *local.Root
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	root, err := local.NewRoot(t.TempDir())
	require.NoError(t, err)

	profiles, err := config.NewRegistry("", "default", domain.Credentials{APIKey: "key", APISecret: "secret"})
	require.NoError(t, err)

	signer, err := token.NewSigner("test-secret", time.Hour)
	require.NoError(t, err)

	manager, err := lifecycle.NewManager(storereports.NewMemoryStore(), lifecycle.Config{
		PollInterval: 10 * time.Millisecond,
		PollBudget:   2 * time.Second,
	})
	require.NoError(t, err)

	f := &fixture{
		requester: &mockRequester{},
		fetcher:   &mockFetcher{},
		mirror:    &mockMirror{},
		lifecycle: manager,
		signer:    signer,
		root:      root,
	}

	f.service, err = NewService(Dependencies{
		Profiles:  profiles,
		Requester: f.requester,
		Fetcher:   f.fetcher,
		Extractor: archive.NewExtractor(0),
		Signer:    signer,
		Lifecycle: manager,
		Root:      root,
		Mirror:    f.mirror,
		PublicURL: "https://pivot.example.com/",
	})
	require.NoError(t, err)
	return f
}

func zipArchive(t *testing.T, name, content string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	entry, err := w.Create(name)
	require.NoError(t, err)
	_, err = entry.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func validParams() domain.ReportParameters {
	return domain.ReportParameters{
		AccountID: "74c96a88",
		DateFrom:  "2025-01-01",
		DateTo:    "2025-01-31",
		GroupBy:   "status",
	}
}

func TestNewService(t *testing.T) {
	_, err := NewService(Dependencies{})
	assert.Error(t, err)
}

func TestValidateDates(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr bool
	}{
		{name: "valid range", from: "2025-01-01", to: "2025-01-31"},
		{name: "same day", from: "2025-01-01", to: "2025-01-01"},
		{name: "missing from", to: "2025-01-31", wantErr: true},
		{name: "bad format", from: "01/01/2025", to: "2025-01-31", wantErr: true},
		{name: "reversed", from: "2025-02-01", to: "2025-01-31", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDates(domain.ReportParameters{DateFrom: tt.from, DateTo: tt.to})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParameters)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMergeParameters(t *testing.T) {
	stored := domain.ReportParameters{
		AccountID:    "74c96a88",
		DateFrom:     "2025-01-01",
		DateTo:       "2025-01-31",
		GroupBy:      "status",
		PriceColumns: []string{"total_price"},
	}

	merged := MergeParameters(domain.ReportParameters{GroupBy: "country"}, stored)
	assert.Equal(t, "country", merged.GroupBy)
	assert.Equal(t, "74c96a88", merged.AccountID)
	assert.Equal(t, []string{"total_price"}, merged.PriceColumns)
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending request", func(t *testing.T) {
		f := setupFixture(t)
		var callbackURL string
		f.requester.On("Request", mock.Anything, domain.Credentials{APIKey: "key", APISecret: "secret"}, validParams(), mock.Anything).
			Run(func(args mock.Arguments) { callbackURL = args.String(3) }).
			Return(&requester.Response{RequestID: "req-1"}, nil)

		id, err := f.service.Submit(ctx, "", validParams())
		require.NoError(t, err)
		assert.Equal(t, "req-1", id)

		r, err := f.service.Get(ctx, "req-1")
		require.NoError(t, err)
		assert.False(t, r.Ready)
		assert.Equal(t, "default", r.Owner)

		require.True(t, strings.HasPrefix(callbackURL, "https://pivot.example.com"+CallbackPath))
		raw, err := url.PathUnescape(strings.TrimPrefix(callbackURL, "https://pivot.example.com"+CallbackPath))
		require.NoError(t, err)
		claims, err := f.signer.Verify(raw)
		require.NoError(t, err)
		assert.Equal(t, "default", claims.Owner)
		assert.Equal(t, "status", claims.Payload.GroupBy)
	})

	t.Run("invalid dates never reach the API", func(t *testing.T) {
		f := setupFixture(t)
		params := validParams()
		params.DateTo = "2024-12-31"

		_, err := f.service.Submit(ctx, "", params)
		assert.ErrorIs(t, err, ErrInvalidParameters)
		f.requester.AssertNotCalled(t, "Request")
	})

	t.Run("unknown profile", func(t *testing.T) {
		f := setupFixture(t)
		_, err := f.service.Submit(ctx, "eu", validParams())
		assert.ErrorIs(t, err, config.ErrProfileNotFound)
	})

	t.Run("rejected request is not recorded", func(t *testing.T) {
		f := setupFixture(t)
		f.requester.On("Request", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, requester.ErrRequestRejected)

		_, err := f.service.Submit(ctx, "", validParams())
		assert.ErrorIs(t, err, requester.ErrRequestRejected)

		history, err := f.service.History(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestService_HandleCallback(t *testing.T) {
	ctx := context.Background()
	href := "https://api.example.com/v3/media/abc"

	t.Run("extracts and marks ready", func(t *testing.T) {
		f := setupFixture(t)
		_, err := f.lifecycle.Create(ctx, "req-1", validParams(), "default")
		require.NoError(t, err)

		raw, err := f.signer.Sign("default", validParams())
		require.NoError(t, err)

		f.fetcher.On("Fetch", mock.Anything, domain.Credentials{APIKey: "key", APISecret: "secret"}, href).
			Return(zipArchive(t, "../../evil.csv", reportCSV), nil)
		f.mirror.On("Upload", mock.Anything, "req-1", mock.Anything).Return("s3://bucket/req-1/evil.csv", nil)

		require.NoError(t, f.service.HandleCallback(ctx, raw, Notification{RequestID: "req-1", DownloadHref: href}))

		r, err := f.service.Get(ctx, "req-1")
		require.NoError(t, err)
		assert.True(t, r.Ready)
		require.NotNil(t, r.CSVPath)
		assert.Equal(t, "req-1/evil.csv", *r.CSVPath)
		assert.FileExists(t, filepath.Join(f.root.Path(), "req-1", "evil.csv"))

		_, err = os.Stat(filepath.Join(f.root.Path(), "..", "evil.csv"))
		assert.True(t, os.IsNotExist(err))
		f.mirror.AssertExpectations(t)
	})

	t.Run("unknown request is recreated from the token", func(t *testing.T) {
		f := setupFixture(t)
		raw, err := f.signer.Sign("default", validParams())
		require.NoError(t, err)

		f.fetcher.On("Fetch", mock.Anything, mock.Anything, href).Return(zipArchive(t, "report.csv", reportCSV), nil)
		f.mirror.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("no bucket"))

		require.NoError(t, f.service.HandleCallback(ctx, raw, Notification{RequestID: "req-2", DownloadHref: href}))

		r, err := f.service.Get(ctx, "req-2")
		require.NoError(t, err)
		assert.True(t, r.Ready)
		assert.Equal(t, "status", r.Payload.GroupBy)
		assert.Equal(t, "default", r.Owner)
	})

	t.Run("token of another owner", func(t *testing.T) {
		f := setupFixture(t)
		_, err := f.lifecycle.Create(ctx, "req-1", validParams(), "eu")
		require.NoError(t, err)

		raw, err := f.signer.Sign("default", validParams())
		require.NoError(t, err)

		err = f.service.HandleCallback(ctx, raw, Notification{RequestID: "req-1", DownloadHref: href})
		assert.ErrorIs(t, err, ErrForeignCallback)
		f.fetcher.AssertNotCalled(t, "Fetch")

		r, err := f.service.Get(ctx, "req-1")
		require.NoError(t, err)
		assert.False(t, r.Ready)
	})

	t.Run("token of another account", func(t *testing.T) {
		f := setupFixture(t)
		_, err := f.lifecycle.Create(ctx, "req-1", validParams(), "default")
		require.NoError(t, err)

		other := validParams()
		other.AccountID = "ffffffff"
		raw, err := f.signer.Sign("default", other)
		require.NoError(t, err)

		err = f.service.HandleCallback(ctx, raw, Notification{RequestID: "req-1", DownloadHref: href})
		assert.ErrorIs(t, err, ErrForeignCallback)
		f.fetcher.AssertNotCalled(t, "Fetch")
	})

	t.Run("forged token", func(t *testing.T) {
		f := setupFixture(t)
		err := f.service.HandleCallback(ctx, "not-a-token", Notification{RequestID: "req-1", DownloadHref: href})
		assert.ErrorIs(t, err, token.ErrInvalidToken)
		f.fetcher.AssertNotCalled(t, "Fetch")
	})

	t.Run("unsafe request id", func(t *testing.T) {
		f := setupFixture(t)
		raw, err := f.signer.Sign("default", validParams())
		require.NoError(t, err)

		err = f.service.HandleCallback(ctx, raw, Notification{RequestID: "../escape", DownloadHref: href})
		assert.ErrorIs(t, err, local.ErrInvalidID)
	})

	t.Run("archive without csv", func(t *testing.T) {
		f := setupFixture(t)
		raw, err := f.signer.Sign("default", validParams())
		require.NoError(t, err)
		f.fetcher.On("Fetch", mock.Anything, mock.Anything, href).Return(zipArchive(t, "readme.txt", "hi"), nil)

		err = f.service.HandleCallback(ctx, raw, Notification{RequestID: "req-3", DownloadHref: href})
		assert.ErrorIs(t, err, archive.ErrNoCSV)
	})
}

func TestService_Pivot(t *testing.T) {
	ctx := context.Background()

	writeCSV := func(t *testing.T, f *fixture) string {
		dir, err := f.root.RequestDir("req-1")
		require.NoError(t, err)
		path := filepath.Join(dir, "report.csv")
		require.NoError(t, os.WriteFile(path, []byte(reportCSV), 0o600))
		return path
	}

	t.Run("by csv path", func(t *testing.T) {
		f := setupFixture(t)
		writeCSV(t, f)

		res, err := f.service.Pivot(ctx, PivotInput{
			CSVPath: "req-1/report.csv",
			Params:  domain.ReportParameters{GroupBy: "status", PriceColumns: []string{"total_price"}},
		})
		require.NoError(t, err)
		assert.Equal(t, "req-1/report.csv", res.CSVPath)
		require.Len(t, res.Document.Accounts, 1)
		assert.Equal(t, 0.70, res.Document.Accounts[0].GrandTotals["total_price"])
	})

	t.Run("by request id uses stored parameters", func(t *testing.T) {
		f := setupFixture(t)
		path := writeCSV(t, f)
		_, err := f.lifecycle.Create(ctx, "req-1", validParams(), "default")
		require.NoError(t, err)
		_, err = f.lifecycle.MarkReady(ctx, "req-1", path)
		require.NoError(t, err)

		res, err := f.service.Pivot(ctx, PivotInput{RequestID: "req-1"})
		require.NoError(t, err)
		assert.Equal(t, "req-1/report.csv", res.CSVPath)
		assert.NotContains(t, res.CSVPath, f.root.Path())
		assert.Equal(t, "status", res.Params.GroupBy)

		history, err := f.service.History(ctx, "")
		require.NoError(t, err)
		require.Len(t, history, 1)
		require.NotNil(t, history[0].CSVPath)
		assert.Equal(t, "req-1/report.csv", *history[0].CSVPath)
		assert.Equal(t, 3, res.Document.Metadata.TotalRecords)
	})

	t.Run("pending request", func(t *testing.T) {
		f := setupFixture(t)
		_, err := f.lifecycle.Create(ctx, "req-1", validParams(), "default")
		require.NoError(t, err)

		_, err = f.service.Pivot(ctx, PivotInput{RequestID: "req-1"})
		assert.ErrorIs(t, err, ErrNotReady)
	})

	t.Run("unknown request", func(t *testing.T) {
		f := setupFixture(t)
		_, err := f.service.Pivot(ctx, PivotInput{RequestID: "missing"})
		assert.ErrorIs(t, err, storereports.ErrNotFound)
	})

	t.Run("path outside the root", func(t *testing.T) {
		f := setupFixture(t)
		_, err := f.service.Pivot(ctx, PivotInput{
			CSVPath: "../../etc/passwd.csv",
			Params:  domain.ReportParameters{GroupBy: "status"},
		})
		assert.ErrorIs(t, err, local.ErrUnsafePath)
	})

	t.Run("missing group by", func(t *testing.T) {
		f := setupFixture(t)
		_, err := f.service.Pivot(ctx, PivotInput{CSVPath: "req-1/report.csv"})
		assert.ErrorIs(t, err, ErrInvalidParameters)
	})
}

func TestService_Run(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)

	dir, err := f.root.RequestDir("req-run")
	require.NoError(t, err)
	path := filepath.Join(dir, "report.csv")
	require.NoError(t, os.WriteFile(path, []byte(reportCSV), 0o600))

	f.requester.On("Request", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			go func() {
				for {
					if _, err := f.lifecycle.Get(ctx, "req-run"); err == nil {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				_, _ = f.lifecycle.MarkReady(ctx, "req-run", path)
			}()
		}).
		Return(&requester.Response{RequestID: "req-run"}, nil)

	res, err := f.service.Run(ctx, "", validParams())
	require.NoError(t, err)
	assert.Equal(t, "req-run/report.csv", res.CSVPath)
	require.Len(t, res.Document.Accounts, 1)
	assert.Equal(t, "74c96a88", res.Document.Accounts[0].AccountID)
	assert.Equal(t, 3, res.Document.Accounts[0].TotalCount)
}
