package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/de-tools/pivot-reports/pkg/models/api"
	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/de-tools/pivot-reports/pkg/services/lifecycle"
	"github.com/de-tools/pivot-reports/pkg/services/pivot"
	"github.com/de-tools/pivot-reports/pkg/services/reports"
	"github.com/de-tools/pivot-reports/pkg/storage/local"
	storereports "github.com/de-tools/pivot-reports/pkg/store/reports"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Submit(ctx context.Context, profile string, params domain.ReportParameters) (string, error) {
	args := m.Called(ctx, profile, params)
	return args.String(0), args.Error(1)
}

func (m *mockService) Get(ctx context.Context, requestID string) (*domain.ReportRequest, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReportRequest), args.Error(1)
}

func (m *mockService) HandleCallback(ctx context.Context, rawToken string, n reports.Notification) error {
	args := m.Called(ctx, rawToken, n)
	return args.Error(0)
}

func (m *mockService) Pivot(ctx context.Context, in reports.PivotInput) (*reports.PivotResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reports.PivotResult), args.Error(1)
}

func (m *mockService) Run(ctx context.Context, profile string, params domain.ReportParameters) (*reports.PivotResult, error) {
	args := m.Called(ctx, profile, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reports.PivotResult), args.Error(1)
}

func (m *mockService) History(ctx context.Context, profile string) ([]domain.ReportRequest, error) {
	args := m.Called(ctx, profile)
	return args.Get(0).([]domain.ReportRequest), args.Error(1)
}

func setupRouter(service *mockService) http.Handler {
	router := chi.NewRouter()
	router.Route("/api/v1", NewHandler(service).Routes)
	return router
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func samplePivotResult() *reports.PivotResult {
	return &reports.PivotResult{
		CSVPath: "/data/req-1/report.csv",
		Params: domain.ReportParameters{
			AccountID: "74c96a88",
			DateFrom:  "2025-01-01",
			DateTo:    "2025-01-31",
			GroupBy:   "status",
		},
		Document: &domain.ReportDocument{
			Accounts: []domain.AccountReport{{
				AccountID:   "74c96a88",
				GrandTotals: domain.Totals{"total_price": 0.7},
				TotalCount:  2,
				Currency:    "EUR",
			}},
			Currency:     "EUR",
			PriceColumns: []string{"total_price"},
			Metadata:     domain.ReportMetadata{TotalRecords: 2, GroupBy: "status"},
		},
	}
}

func TestSubmit(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(*mockService)
		expectedStatus int
		expected       api.SubmitReportResponse
	}{
		{
			name: "success",
			body: `{"accountId":"74c96a88","dateFrom":"2025-01-01","dateTo":"2025-01-31","groupBy":"status","priceColumns":"total_price, price"}`,
			setupMock: func(m *mockService) {
				m.On("Submit", mock.Anything, "", domain.ReportParameters{
					AccountID:       "74c96a88",
					DateFrom:        "2025-01-01",
					DateTo:          "2025-01-31",
					GroupBy:         "status",
					InternalGroupBy: []string{},
					ShowTotalBy:     []string{},
					PriceColumns:    []string{"total_price", "price"},
				}).Return("req-1", nil)
			},
			expectedStatus: http.StatusOK,
			expected:       api.SubmitReportResponse{Success: true, RequestID: "req-1"},
		},
		{
			name: "missing dates",
			body: `{"groupBy":"status"}`,
			setupMock: func(m *mockService) {
				m.On("Submit", mock.Anything, "", mock.Anything).
					Return("", fmt.Errorf("%w: dateFrom and dateTo are required", reports.ErrInvalidParameters))
			},
			expectedStatus: http.StatusBadRequest,
			expected: api.SubmitReportResponse{
				Message: "invalid report parameters: dateFrom and dateTo are required",
			},
		},
		{
			name: "upstream failure",
			body: `{"dateFrom":"2025-01-01","dateTo":"2025-01-31","profile":"eu"}`,
			setupMock: func(m *mockService) {
				m.On("Submit", mock.Anything, "eu", mock.Anything).Return("", errors.New("connection refused"))
			},
			expectedStatus: http.StatusOK,
			expected:       api.SubmitReportResponse{Message: "Failed to request the report"},
		},
		{
			name:           "invalid body",
			body:           `{`,
			setupMock:      func(m *mockService) {},
			expectedStatus: http.StatusBadRequest,
			expected:       api.SubmitReportResponse{Message: "invalid request body"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(mockService)
			tt.setupMock(service)

			rec := do(t, setupRouter(service), http.MethodPost, "/api/v1/reports", tt.body)
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.expected, decode[api.SubmitReportResponse](t, rec))
			service.AssertExpectations(t)
		})
	}
}

func TestReadiness(t *testing.T) {
	service := new(mockService)
	csvPath := "/data/req-1/report.csv"
	completed := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	service.On("Get", mock.Anything, "req-1").Return(&domain.ReportRequest{
		RequestID:   "req-1",
		Owner:       "default",
		Payload:     domain.ReportParameters{DateFrom: "2025-01-01", DateTo: "2025-01-31"},
		Ready:       true,
		CSVPath:     &csvPath,
		CreatedAt:   completed.Add(-time.Minute),
		CompletedAt: &completed,
	}, nil)
	service.On("Get", mock.Anything, "missing").Return(nil, fmt.Errorf("wrapped: %w", storereports.ErrNotFound))
	router := setupRouter(service)

	rec := do(t, router, http.MethodGet, "/api/v1/reports/req-1/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	res := decode[api.ReadinessResponse](t, rec)
	assert.True(t, res.Success)
	assert.True(t, res.Ready)
	require.NotNil(t, res.CSVPath)
	assert.Equal(t, csvPath, *res.CSVPath)
	require.NotNil(t, res.Payload)
	assert.Equal(t, "2025-01-01", res.Payload.Payload.DateFrom)

	rec = do(t, router, http.MethodGet, "/api/v1/reports/missing/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, api.ReadinessResponse{Message: "Request ID not found"}, decode[api.ReadinessResponse](t, rec))
}

func TestCallback(t *testing.T) {
	const body = `{"request_id":"req-1","_links":{"download_report":{"href":"https://api.example.com/media/1"}}}`

	tests := []struct {
		name      string
		body      string
		setupMock func(*mockService)
		expected  api.CallbackResponse
	}{
		{
			name: "success",
			body: body,
			setupMock: func(m *mockService) {
				m.On("HandleCallback", mock.Anything, "tok", reports.Notification{
					RequestID:    "req-1",
					DownloadHref: "https://api.example.com/media/1",
				}).Return(nil)
			},
			expected: api.CallbackResponse{Success: true},
		},
		{
			name:      "missing link",
			body:      `{"request_id":"req-1"}`,
			setupMock: func(m *mockService) {},
			expected:  api.CallbackResponse{Message: "Invalid callback"},
		},
		{
			name: "processing failure stays vague",
			body: body,
			setupMock: func(m *mockService) {
				m.On("HandleCallback", mock.Anything, "tok", mock.Anything).
					Return(errors.New("signature is invalid"))
			},
			expected: api.CallbackResponse{Message: "Callback could not be processed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(mockService)
			tt.setupMock(service)

			rec := do(t, setupRouter(service), http.MethodPost, "/api/v1/reports/callback/tok", tt.body)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.expected, decode[api.CallbackResponse](t, rec))
			service.AssertExpectations(t)
		})
	}
}

func TestPivot(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		err            error
		expectedStatus int
	}{
		{name: "success", body: `{"csvPath":"req-1/report.csv","groupBy":"status"}`, expectedStatus: http.StatusOK},
		{name: "no source", body: `{"groupBy":"status"}`, expectedStatus: http.StatusBadRequest},
		{name: "not ready", body: `{"requestId":"req-1"}`, err: reports.ErrNotReady, expectedStatus: http.StatusConflict},
		{name: "unsafe path", body: `{"csvPath":"../x.csv","groupBy":"a"}`, err: local.ErrUnsafePath, expectedStatus: http.StatusBadRequest},
		{
			name:           "missing column",
			body:           `{"csvPath":"a.csv","groupBy":"nope"}`,
			err:            &pivot.ColumnValidationError{Missing: []string{"nope"}},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{name: "empty source", body: `{"csvPath":"a.csv","groupBy":"a"}`, err: pivot.ErrEmptySource, expectedStatus: http.StatusUnprocessableEntity},
		{name: "unknown request", body: `{"requestId":"x"}`, err: storereports.ErrNotFound, expectedStatus: http.StatusNotFound},
		{name: "internal", body: `{"csvPath":"a.csv","groupBy":"a"}`, err: errors.New("disk"), expectedStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(mockService)
			if tt.err != nil {
				service.On("Pivot", mock.Anything, mock.Anything).Return(nil, tt.err)
			} else {
				service.On("Pivot", mock.Anything, mock.Anything).Return(samplePivotResult(), nil)
			}

			rec := do(t, setupRouter(service), http.MethodPost, "/api/v1/reports/pivot", tt.body)
			assert.Equal(t, tt.expectedStatus, rec.Code)

			res := decode[api.PivotResponse](t, rec)
			if tt.expectedStatus != http.StatusOK {
				assert.False(t, res.Success)
				assert.NotEmpty(t, res.Message)
				return
			}
			require.NotNil(t, res.Report)
			assert.Equal(t, "Pivot Report", res.Report.Title)
			assert.Equal(t, "status", res.Report.GroupBy)
			require.Len(t, res.Report.Data.Accounts, 1)
			assert.Equal(t, 0.7, res.Report.Data.Accounts[0].GrandTotals["total_price"])
		})
	}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{name: "success", expectedStatus: http.StatusOK},
		{name: "timeout", err: lifecycle.ErrPollTimeout, expectedStatus: http.StatusRequestTimeout},
		{name: "invalid", err: reports.ErrInvalidParameters, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(mockService)
			if tt.err != nil {
				service.On("Run", mock.Anything, "", mock.Anything).Return(nil, tt.err)
			} else {
				service.On("Run", mock.Anything, "", mock.Anything).Return(samplePivotResult(), nil)
			}

			rec := do(t, setupRouter(service), http.MethodPost, "/api/v1/reports/run",
				`{"dateFrom":"2025-01-01","dateTo":"2025-01-31","groupBy":"status"}`)
			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestHistory(t *testing.T) {
	service := new(mockService)
	service.On("History", mock.Anything, "eu").Return([]domain.ReportRequest{
		{RequestID: "req-2", Owner: "eu"},
		{RequestID: "req-1", Owner: "eu"},
	}, nil)

	rec := do(t, setupRouter(service), http.MethodGet, "/api/v1/reports/history?profile=eu", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	res := decode[api.HistoryResponse](t, rec)
	require.Len(t, res.Reports, 2)
	assert.Equal(t, "req-2", res.Reports[0].RequestID)
}
