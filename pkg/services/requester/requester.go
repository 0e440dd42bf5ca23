package requester

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/de-tools/pivot-reports/pkg/httpclient"
	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "https://api.nexmo.com"
	reportsPath    = "/v2/reports"

	product   = "MESSAGES"
	direction = "outbound"

	messageBodyColumn = "message_body"
	maxErrorBody      = 512
)

var ErrRequestRejected = errors.New("report request rejected")

type Response struct {
	RequestID string
	StatusURL string
}

// Requester asks the reports API to build a report and call back when it is ready.
type Requester interface {
	Request(
		ctx context.Context,
		creds domain.Credentials,
		params domain.ReportParameters,
		callbackURL string,
	) (*Response, error)
}

type Payload struct {
	AccountID          string `json:"account_id"`
	DateStart          string `json:"date_start"`
	DateEnd            string `json:"date_end"`
	IncludeSubaccounts string `json:"include_subaccounts"`
	IncludeMessage     string `json:"include_message"`
	Product            string `json:"product"`
	Direction          string `json:"direction"`
	CallbackURL        string `json:"callback_url"`
}

type reportResponse struct {
	RequestID     string `json:"request_id"`
	RequestStatus string `json:"request_status"`
	Links         struct {
		Self struct {
			Href string `json:"href"`
		} `json:"self"`
	} `json:"_links"`
}

type httpRequester struct {
	baseURL string
	client  *retryablehttp.Client
}

func New(baseURL string, client *retryablehttp.Client) Requester {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &httpRequester{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (r *httpRequester) Request(
	ctx context.Context,
	creds domain.Credentials,
	params domain.ReportParameters,
	callbackURL string,
) (*Response, error) {
	logger := zerolog.Ctx(ctx)

	body, err := json.Marshal(BuildPayload(params, callbackURL))
	if err != nil {
		return nil, fmt.Errorf("encode report request: %w", err)
	}

	// A repeated POST would order a second report.
	req, err := retryablehttp.NewRequestWithContext(httpclient.WithoutRetries(ctx), http.MethodPost, r.baseURL+reportsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build report request: %w", err)
	}
	req.SetBasicAuth(creds.APIKey, creds.APISecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call reports API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logger.Warn().
			Int("status", resp.StatusCode).
			Str("body", string(snippet)).
			Msg("reports API rejected the request")
		return nil, fmt.Errorf("%w: status %d", ErrRequestRejected, resp.StatusCode)
	}

	var decoded reportResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: undecodable response: %v", ErrRequestRejected, err)
	}
	if decoded.RequestID == "" {
		return nil, fmt.Errorf("%w: response carries no request id", ErrRequestRejected)
	}

	logger.Info().
		Str("request_id", decoded.RequestID).
		Str("status", decoded.RequestStatus).
		Msg("report requested")

	return &Response{
		RequestID: decoded.RequestID,
		StatusURL: decoded.Links.Self.Href,
	}, nil
}

// BuildPayload renders the reports API body. Dates cover whole UTC days.
func BuildPayload(params domain.ReportParameters, callbackURL string) Payload {
	includeMessage := slices.Contains(params.PriceColumns, messageBodyColumn) ||
		slices.Contains(params.InternalGroupBy, messageBodyColumn)

	return Payload{
		AccountID:          params.AccountID,
		DateStart:          params.DateFrom + "T00:00:00+00:00",
		DateEnd:            params.DateTo + "T23:59:59+00:00",
		IncludeSubaccounts: strconv.FormatBool(params.IncludeSubaccounts),
		IncludeMessage:     strconv.FormatBool(includeMessage),
		Product:            product,
		Direction:          direction,
		CallbackURL:        callbackURL,
	}
}
