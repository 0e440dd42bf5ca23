package requester

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/de-tools/pivot-reports/pkg/httpclient"
	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var creds = domain.Credentials{APIKey: "key", APISecret: "secret"}

var params = domain.ReportParameters{
	AccountID:       "74c96a88",
	DateFrom:        "2025-02-01",
	DateTo:          "2025-02-03",
	GroupBy:         "status",
	InternalGroupBy: []string{"message_body"},
}

func newRequester(url string) Requester {
	return New(url, httpclient.New(httpclient.Options{Timeout: time.Second, RetryMax: 0}))
}

func TestBuildPayload(t *testing.T) {
	p := BuildPayload(params, "https://pivot.example.com/api/v1/reports/callback/tok")
	assert.Equal(t, "74c96a88", p.AccountID)
	assert.Equal(t, "2025-02-01T00:00:00+00:00", p.DateStart)
	assert.Equal(t, "2025-02-03T23:59:59+00:00", p.DateEnd)
	assert.Equal(t, "false", p.IncludeSubaccounts)
	assert.Equal(t, "true", p.IncludeMessage)
	assert.Equal(t, "MESSAGES", p.Product)
	assert.Equal(t, "outbound", p.Direction)

	p = BuildPayload(domain.ReportParameters{IncludeSubaccounts: true, GroupBy: "message_body"}, "")
	assert.Equal(t, "true", p.IncludeSubaccounts)
	assert.Equal(t, "false", p.IncludeMessage)
}

func TestRequester_Request(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v2/reports", r.URL.Path)

			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "key", user)
			assert.Equal(t, "secret", pass)

			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "https://cb/tok", body["callback_url"])
			assert.Equal(t, "true", body["include_message"])

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{
				"request_id": "aaaaaaaa-bbbb-cccc-dddd-0123456789ab",
				"request_status": "PENDING",
				"_links": {"self": {"href": "https://api.example.com/v2/reports/aaaaaaaa"}}
			}`))
		}))
		defer srv.Close()

		resp, err := newRequester(srv.URL).Request(ctx, creds, params, "https://cb/tok")
		require.NoError(t, err)
		assert.Equal(t, "aaaaaaaa-bbbb-cccc-dddd-0123456789ab", resp.RequestID)
		assert.Equal(t, "https://api.example.com/v2/reports/aaaaaaaa", resp.StatusURL)
	})

	t.Run("rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"title":"Unauthorized"}`))
		}))
		defer srv.Close()

		_, err := newRequester(srv.URL).Request(ctx, creds, params, "https://cb/tok")
		assert.ErrorIs(t, err, ErrRequestRejected)
	})

	t.Run("missing request id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"request_status":"PENDING"}`))
		}))
		defer srv.Close()

		_, err := newRequester(srv.URL).Request(ctx, creds, params, "https://cb/tok")
		assert.ErrorIs(t, err, ErrRequestRejected)
	})

	t.Run("server error is not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(`{"request_id":"second"}`))
		}))
		defer srv.Close()

		client := httpclient.New(httpclient.Options{Timeout: time.Second, RetryMax: 2})
		client.RetryWaitMin = time.Millisecond
		client.RetryWaitMax = time.Millisecond

		resp, err := New(srv.URL, client).Request(ctx, creds, params, "https://cb/tok")
		assert.ErrorIs(t, err, ErrRequestRejected)
		assert.Nil(t, resp)
		assert.Equal(t, int32(1), calls.Load())
	})
}
