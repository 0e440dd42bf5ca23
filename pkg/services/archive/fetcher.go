package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

const DefaultMaxArchiveBytes int64 = 512 << 20

var (
	ErrFetchFailed     = errors.New("report download failed")
	ErrArchiveTooLarge = errors.New("report archive exceeds the size limit")
	ErrUntrustedHost   = errors.New("download link points to a host that is not allowed")
)

// Fetcher downloads a finished report archive.
type Fetcher interface {
	Fetch(ctx context.Context, creds domain.Credentials, href string) ([]byte, error)
}

type httpFetcher struct {
	client       *retryablehttp.Client
	maxBytes     int64
	allowedHosts []string
}

// NewFetcher builds a fetcher that only sends credentials to allowedHosts
// (host or host:port, case-insensitive). No hosts means no restriction.
func NewFetcher(client *retryablehttp.Client, maxBytes int64, allowedHosts ...string) Fetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxArchiveBytes
	}
	hosts := make([]string, 0, len(allowedHosts))
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}
	return &httpFetcher{
		client:       client,
		maxBytes:     maxBytes,
		allowedHosts: hosts,
	}
}

func (f *httpFetcher) checkHost(href string) error {
	u, err := url.Parse(href)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrUntrustedHost, u.Scheme)
	}
	if len(f.allowedHosts) == 0 {
		return nil
	}
	host := strings.ToLower(u.Host)
	for _, allowed := range f.allowedHosts {
		if host == allowed || (!strings.Contains(allowed, ":") && strings.ToLower(u.Hostname()) == allowed) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUntrustedHost, u.Host)
}

func (f *httpFetcher) Fetch(ctx context.Context, creds domain.Credentials, href string) ([]byte, error) {
	if err := f.checkHost(href); err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	req.SetBasicAuth(creds.APIKey, creds.APISecret)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, ErrArchiveTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, ErrArchiveTooLarge
	}

	zerolog.Ctx(ctx).Debug().Int("bytes", len(data)).Msg("report archive downloaded")
	return data, nil
}
