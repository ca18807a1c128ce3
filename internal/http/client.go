// Package http builds the proxy-aware, retrying HTTP clients used by the
// remote file stores.
package http

import (
	"context"
	"crypto/tls"
	"fmt"
	nethttp "net/http"
	"os"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/http2"

	"github.com/rescale/filequery/internal/config"
	"github.com/rescale/filequery/internal/constants"
	"github.com/rescale/filequery/internal/logging"
)

// CreateClient returns a proxy-aware client with HTTP/2 enabled where it is
// safe. Proxies often break HTTP/2 multiplexing, so HTTP/2 is disabled when
// a proxy is active unless FORCE_HTTP2=true. DISABLE_HTTP2=true forces
// HTTP/1.1.
func CreateClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	client, err := ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	// NTLM wraps the transport, nothing more to tune
	tr, ok := client.Transport.(*nethttp.Transport)
	if !ok {
		return client, nil
	}

	tr.ForceAttemptHTTP2 = true
	if err := http2.ConfigureTransport(tr); err != nil && logger != nil {
		logger.Debug().Err(err).Msg("HTTP/2 not configured")
	}

	if os.Getenv("DISABLE_HTTP2") == "true" || (proxyActive(cfg) && os.Getenv("FORCE_HTTP2") != "true") {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	return client, nil
}

func proxyActive(cfg *config.Config) bool {
	switch cfg.ProxyMode {
	case "no-proxy", "":
		return false
	case "system":
		return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		return true
	}
}

// NewRetryClient wraps base with retryablehttp. Credential failures are not
// retried; see RetryPolicy.
func NewRetryClient(base *nethttp.Client, logger *logging.Logger) *retryablehttp.Client {
	if logger == nil {
		logger = logging.Nop()
	}
	retryClient := retryablehttp.NewClient()
	if base != nil {
		retryClient.HTTPClient = base
	}
	retryClient.RetryMax = constants.RemoteAPIMaxRetries
	retryClient.RetryWaitMin = constants.RemoteAPIRetryWaitMin
	retryClient.RetryWaitMax = constants.RemoteAPIRetryWaitMax
	retryClient.CheckRetry = RetryPolicy
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = &retryLogger{logger: logger}
	return retryClient
}

// RetryPolicy defers to retryablehttp's default policy but never retries
// 401/403 responses, which only repeat with the same credentials.
func RetryPolicy(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if resp != nil && (resp.StatusCode == nethttp.StatusUnauthorized || resp.StatusCode == nethttp.StatusForbidden) {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings, not all info
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

var _ retryablehttp.LeveledLogger = (*retryLogger)(nil)

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}
