package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultRetryMax = 2
)

type noRetryKey struct{}

// WithoutRetries marks requests made with ctx as single shot. Use it for calls
// that must not be repeated, such as a POST that creates a billable resource.
func WithoutRetries(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryKey{}, true)
}

func retriesDisabled(ctx context.Context) bool {
	disabled, _ := ctx.Value(noRetryKey{}).(bool)
	return disabled
}

// checkRetry applies the default policy unless the request opted out.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if retriesDisabled(ctx) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

type Options struct {
	Timeout  time.Duration
	RetryMax int
	Logger   *zerolog.Logger
}

// New builds a retrying client for calls to the reports API.
func New(opts Options) *retryablehttp.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}

	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = opts.Timeout
	client.RetryMax = opts.RetryMax
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.CheckRetry = checkRetry
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = nil
	if opts.Logger != nil {
		client.Logger = leveledLogger{logger: opts.Logger}
	}
	return client
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger *zerolog.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Trace().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}
