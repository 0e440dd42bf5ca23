package reports

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/de-tools/pivot-reports/pkg/services/archive"
	"github.com/de-tools/pivot-reports/pkg/services/config"
	"github.com/de-tools/pivot-reports/pkg/services/lifecycle"
	"github.com/de-tools/pivot-reports/pkg/services/pivot"
	"github.com/de-tools/pivot-reports/pkg/services/requester"
	"github.com/de-tools/pivot-reports/pkg/services/token"
	"github.com/de-tools/pivot-reports/pkg/storage/local"
	"github.com/de-tools/pivot-reports/pkg/storage/s3"
	storereports "github.com/de-tools/pivot-reports/pkg/store/reports"
	"github.com/rs/zerolog"
)

const (
	CallbackPath = "/api/v1/reports/callback/"
	dateLayout   = "2006-01-02"
)

var (
	ErrInvalidParameters = errors.New("invalid report parameters")
	ErrNotReady          = errors.New("report is not ready yet")
	ErrForeignCallback   = errors.New("callback token was issued for another request")
)

// Notification is the callback sent by the reports API once a report is built.
type Notification struct {
	RequestID    string
	DownloadHref string
}

// PivotInput selects the CSV to analyse, either directly or through a ready request.
type PivotInput struct {
	CSVPath   string
	RequestID string
	Params    domain.ReportParameters
}

type PivotResult struct {
	CSVPath  string
	Params   domain.ReportParameters
	Document *domain.ReportDocument
}

type Service interface {
	Submit(ctx context.Context, profile string, params domain.ReportParameters) (string, error)
	Get(ctx context.Context, requestID string) (*domain.ReportRequest, error)
	HandleCallback(ctx context.Context, rawToken string, n Notification) error
	Pivot(ctx context.Context, in PivotInput) (*PivotResult, error)
	Run(ctx context.Context, profile string, params domain.ReportParameters) (*PivotResult, error)
	History(ctx context.Context, profile string) ([]domain.ReportRequest, error)
}

type Dependencies struct {
	Profiles  config.Registry
	Requester requester.Requester
	Fetcher   archive.Fetcher
	Extractor archive.Extractor
	Signer    token.Signer
	Lifecycle lifecycle.Manager
	Analyser  *pivot.Analyser
	Root      *local.Root
	// Mirror is optional.
	Mirror    s3.Mirror
	PublicURL string
}

type service struct {
	deps Dependencies
}

func NewService(deps Dependencies) (Service, error) {
	switch {
	case deps.Profiles == nil:
		return nil, fmt.Errorf("profiles registry is nil")
	case deps.Requester == nil:
		return nil, fmt.Errorf("requester is nil")
	case deps.Fetcher == nil || deps.Extractor == nil:
		return nil, fmt.Errorf("archive fetcher and extractor are required")
	case deps.Signer == nil:
		return nil, fmt.Errorf("token signer is nil")
	case deps.Lifecycle == nil:
		return nil, fmt.Errorf("lifecycle manager is nil")
	case deps.Root == nil:
		return nil, fmt.Errorf("storage root is nil")
	}
	if deps.Analyser == nil {
		deps.Analyser = pivot.NewAnalyser()
	}
	deps.PublicURL = strings.TrimRight(deps.PublicURL, "/")

	return &service{deps: deps}, nil
}

func (s *service) Submit(ctx context.Context, profile string, params domain.ReportParameters) (string, error) {
	if err := ValidateDates(params); err != nil {
		return "", err
	}
	if profile == "" {
		profile = s.deps.Profiles.DefaultProfile()
	}

	creds, err := s.deps.Profiles.GetCredentials(ctx, profile)
	if err != nil {
		return "", err
	}

	signed, err := s.deps.Signer.Sign(profile, params)
	if err != nil {
		return "", err
	}
	callbackURL := s.deps.PublicURL + CallbackPath + url.PathEscape(signed)

	resp, err := s.deps.Requester.Request(ctx, creds, params, callbackURL)
	if err != nil {
		return "", err
	}

	if _, err := s.deps.Lifecycle.Create(ctx, resp.RequestID, params, profile); err != nil {
		return "", err
	}
	return resp.RequestID, nil
}

func (s *service) Get(ctx context.Context, requestID string) (*domain.ReportRequest, error) {
	r, err := s.deps.Lifecycle.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.hideRoot(r)
	return r, nil
}

// hideRoot rewrites the stored csv path relative to the storage root.
func (s *service) hideRoot(r *domain.ReportRequest) {
	if r.CSVPath != nil {
		rel := s.deps.Root.Relative(*r.CSVPath)
		r.CSVPath = &rel
	}
}

func (s *service) HandleCallback(ctx context.Context, rawToken string, n Notification) error {
	logger := zerolog.Ctx(ctx).With().Str("request_id", n.RequestID).Logger()

	claims, err := s.deps.Signer.Verify(rawToken)
	if err != nil {
		return err
	}
	if n.RequestID == "" || n.DownloadHref == "" {
		return fmt.Errorf("%w: callback without request id or download link", ErrInvalidParameters)
	}

	dir, err := s.deps.Root.RequestDir(n.RequestID)
	if err != nil {
		return err
	}

	existing, err := s.deps.Lifecycle.Get(ctx, n.RequestID)
	switch {
	case errors.Is(err, storereports.ErrNotFound):
	case err != nil:
		return err
	case existing.Owner != claims.Owner || existing.Payload.AccountID != claims.Payload.AccountID:
		logger.Warn().
			Str("owner", existing.Owner).
			Str("token_owner", claims.Owner).
			Msg("callback token does not match the stored request")
		return ErrForeignCallback
	}

	creds, err := s.deps.Profiles.GetCredentials(ctx, claims.Owner)
	if err != nil {
		return err
	}

	data, err := s.deps.Fetcher.Fetch(ctx, creds, n.DownloadHref)
	if err != nil {
		return err
	}

	csvPath, err := s.deps.Extractor.ExtractCSV(data, dir)
	if err != nil {
		return err
	}
	logger.Info().Str("csv_path", csvPath).Msg("report extracted")

	if s.deps.Mirror != nil {
		if _, err := s.deps.Mirror.Upload(ctx, n.RequestID, csvPath); err != nil {
			logger.Error().Err(err).Msg("failed to mirror report")
		}
	}

	_, err = s.deps.Lifecycle.MarkReady(ctx, n.RequestID, csvPath)
	if errors.Is(err, storereports.ErrNotFound) {
		// records of a previous process are gone; the token still carries the parameters
		logger.Warn().Msg("callback for unknown request, recreating it from the token")
		if _, err := s.deps.Lifecycle.Create(ctx, n.RequestID, claims.Payload, claims.Owner); err != nil &&
			!errors.Is(err, storereports.ErrAlreadyExists) {
			return err
		}
		_, err = s.deps.Lifecycle.MarkReady(ctx, n.RequestID, csvPath)
	}
	return err
}

func (s *service) Pivot(ctx context.Context, in PivotInput) (*PivotResult, error) {
	params := in.Params
	csvPath := in.CSVPath

	if in.RequestID != "" {
		r, err := s.deps.Lifecycle.Get(ctx, in.RequestID)
		if err != nil {
			return nil, err
		}
		if !r.Ready || r.CSVPath == nil {
			return nil, ErrNotReady
		}
		csvPath = *r.CSVPath
		params = MergeParameters(params, r.Payload)
	}

	if csvPath == "" {
		return nil, fmt.Errorf("%w: csvPath or requestId is required", ErrInvalidParameters)
	}
	if params.GroupBy == "" {
		return nil, fmt.Errorf("%w: groupBy is required", ErrInvalidParameters)
	}

	resolved, err := s.deps.Root.ResolveCSV(csvPath)
	if err != nil {
		return nil, err
	}

	doc, err := s.deps.Analyser.AnalyseFile(ctx, resolved, pivot.QueryFromParameters(params))
	if err != nil {
		return nil, err
	}

	return &PivotResult{
		CSVPath:  s.deps.Root.Relative(resolved),
		Params:   params,
		Document: doc,
	}, nil
}

func (s *service) Run(ctx context.Context, profile string, params domain.ReportParameters) (*PivotResult, error) {
	if params.GroupBy == "" {
		return nil, fmt.Errorf("%w: groupBy is required", ErrInvalidParameters)
	}

	requestID, err := s.Submit(ctx, profile, params)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	r, err := s.deps.Lifecycle.WaitReady(ctx, requestID)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().
		Str("request_id", requestID).
		Dur("waited", time.Since(started)).
		Msg("report ready, analysing")

	return s.Pivot(ctx, PivotInput{RequestID: r.RequestID, Params: params})
}

func (s *service) History(ctx context.Context, profile string) ([]domain.ReportRequest, error) {
	if profile == "" {
		profile = s.deps.Profiles.DefaultProfile()
	}
	history, err := s.deps.Lifecycle.History(ctx, profile, lifecycle.DefaultHistoryLimit)
	if err != nil {
		return nil, err
	}
	for i := range history {
		s.hideRoot(&history[i])
	}
	return history, nil
}

// ValidateDates checks that both dates are YYYY-MM-DD and ordered.
func ValidateDates(params domain.ReportParameters) error {
	if params.DateFrom == "" || params.DateTo == "" {
		return fmt.Errorf("%w: dateFrom and dateTo are required", ErrInvalidParameters)
	}
	from, err := time.Parse(dateLayout, params.DateFrom)
	if err != nil {
		return fmt.Errorf("%w: dateFrom must be YYYY-MM-DD", ErrInvalidParameters)
	}
	to, err := time.Parse(dateLayout, params.DateTo)
	if err != nil {
		return fmt.Errorf("%w: dateTo must be YYYY-MM-DD", ErrInvalidParameters)
	}
	if to.Before(from) {
		return fmt.Errorf("%w: dateTo is before dateFrom", ErrInvalidParameters)
	}
	return nil
}

// MergeParameters fills the empty pivot settings of p from stored.
func MergeParameters(p, stored domain.ReportParameters) domain.ReportParameters {
	if p.AccountID == "" {
		p.AccountID = stored.AccountID
	}
	if p.DateFrom == "" {
		p.DateFrom = stored.DateFrom
	}
	if p.DateTo == "" {
		p.DateTo = stored.DateTo
	}
	if p.GroupBy == "" {
		p.GroupBy = stored.GroupBy
	}
	if len(p.InternalGroupBy) == 0 {
		p.InternalGroupBy = stored.InternalGroupBy
	}
	if len(p.ShowTotalBy) == 0 {
		p.ShowTotalBy = stored.ShowTotalBy
	}
	if len(p.PriceColumns) == 0 {
		p.PriceColumns = stored.PriceColumns
	}
	return p
}
