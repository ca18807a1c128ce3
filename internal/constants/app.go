package constants

import (
	"time"
)

// Application identity
const (
	// AppName - binary and config directory name
	AppName = "filequery"

	// AppID - fyne application identifier
	AppID = "com.rescale.filequery"

	// EnvPrefix - prefix for environment variable overrides (FILEQUERY_API_KEY, ...)
	EnvPrefix = "FILEQUERY_"
)

// Fetching
const (
	// DefaultScope - folder whose contents are queried when none is configured
	DefaultScope = "root"

	// DefaultFetchTimeout - upper bound for a single query execution (60 seconds)
	// Zero in config disables the timeout; superseding still cancels early.
	DefaultFetchTimeout = 60 * time.Second

	// MsgErrorRetrieval - user-facing notice shown when a fetch fails.
	// The previous result list stays on screen.
	MsgErrorRetrieval = "Error while retrieving files"
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// Remote file API
const (
	// RemoteAPIRatePerSec - sustained request rate towards the file API
	RemoteAPIRatePerSec = 5.0

	// RemoteAPIBurst - requests allowed in a burst before throttling
	RemoteAPIBurst = 10

	// RemoteAPIMaxRetries - retryablehttp RetryMax for query calls
	RemoteAPIMaxRetries = 4

	// RemoteAPIRetryWaitMin / RemoteAPIRetryWaitMax - backoff bounds
	RemoteAPIRetryWaitMin = 500 * time.Millisecond
	RemoteAPIRetryWaitMax = 10 * time.Second

	// RemoteAPIMaxResponseBytes - cap on a query response body (32 MB)
	RemoteAPIMaxResponseBytes = 32 * 1024 * 1024
)

// Object stores
const (
	// ObjectMetadataConcurrency - parallel HeadObject calls when listing S3
	ObjectMetadataConcurrency = 16

	// ObjectListPageSize - keys requested per list page
	ObjectListPageSize = 1000
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for network connections (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPClientTimeout - overall timeout for a metadata request (120 seconds)
	HTTPClientTimeout = 120 * time.Second
)

// UI
const (
	// SpinnerRefreshInterval - redraw interval of the CLI fetch spinner
	SpinnerRefreshInterval = 100 * time.Millisecond

	// ModifiedDateLayout - how modification times are shown in result rows
	ModifiedDateLayout = "2006-01-02 15:04:05 MST"
)
