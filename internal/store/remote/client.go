// Package remote queries a file-metadata HTTP API.
//
// Requests are GET {base}/api/v1/files?q=<query>&scope=<scope>[&pageToken=...]
// authenticated with "Authorization: Token <key>". The query parameter is the
// rendered filter expression; the server evaluates it and answers with
// {"files": [...], "nextPageToken": "..."}.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/rescale/filequery/internal/constants"
	"github.com/rescale/filequery/internal/http"
	"github.com/rescale/filequery/internal/logging"
	"github.com/rescale/filequery/internal/models"
	"github.com/rescale/filequery/internal/query"
)

const filesPath = "/api/v1/files"

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *nethttp.Client // proxy-aware base client, nethttp.DefaultClient when nil
	RateLimit  float64         // requests per second, constants.RemoteAPIRatePerSec when zero
	Logger     *logging.Logger
}

// Client is a fetch.Executor backed by the file-metadata API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
	logger     *logging.Logger
}

// NewClient creates a new API client
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if _, err := url.ParseRequestURI(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", opts.BaseURL, err)
	}
	if opts.APIKey == "" {
		return nil, errors.New("API key is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger("remote", nil)
	}
	ratePerSec := opts.RateLimit
	if ratePerSec <= 0 {
		ratePerSec = constants.RemoteAPIRatePerSec
	}

	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		httpClient: http.NewRetryClient(opts.HTTPClient, logger),
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), constants.RemoteAPIBurst),
		logger:     logger,
	}, nil
}

type listResponse struct {
	Files         []models.FileMetadata `json:"files"`
	NextPageToken string                `json:"nextPageToken,omitempty"`
}

// ExecuteQuery fetches every page of records matching q within scope.
func (c *Client) ExecuteQuery(ctx context.Context, scope string, q query.Query) ([]models.FileMetadata, error) {
	var (
		files     []models.FileMetadata
		pageToken string
		pages     int
	)
	for {
		page, err := c.listPage(ctx, scope, q, pageToken)
		if err != nil {
			return nil, err
		}
		pages++
		files = append(files, page.Files...)
		if page.NextPageToken == "" || page.NextPageToken == pageToken {
			break
		}
		pageToken = page.NextPageToken
	}

	c.logger.Debug().
		Str("query", q.String()).
		Str("scope", scope).
		Int("pages", pages).
		Int("count", len(files)).
		Msg("Listed files")
	return files, nil
}

func (c *Client) listPage(ctx context.Context, scope string, q query.Query, pageToken string) (*listResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter cancelled: %w", err)
	}

	params := url.Values{}
	params.Set("q", q.String())
	params.Set("scope", scope)
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	reqURL := c.baseURL + filesPath + "?" + params.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list files request failed: %w", err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, constants.RemoteAPIMaxResponseBytes)
	if resp.StatusCode != nethttp.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(body, 512))
		return nil, fmt.Errorf("list files failed: %w", &http.StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		})
	}

	var page listResponse
	if err := json.NewDecoder(body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode file list: %w", err)
	}
	return &page, nil
}
