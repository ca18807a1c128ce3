package remote

import (
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rescale/filequery/internal/catalog"
	"github.com/rescale/filequery/internal/http"
	"github.com/rescale/filequery/internal/logging"
	"github.com/rescale/filequery/internal/models"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(Options{
		BaseURL:    srv.URL + "/",
		APIKey:     "secret",
		HTTPClient: srv.Client(),
		RateLimit:  1000,
		Logger:     logging.Nop(),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	c.httpClient.RetryWaitMin = time.Millisecond
	c.httpClient.RetryWaitMax = 5 * time.Millisecond
	return c
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Options{APIKey: "k"}); err == nil {
		t.Error("expected error for missing base URL")
	}
	if _, err := NewClient(Options{BaseURL: "not a url", APIKey: "k"}); err == nil {
		t.Error("expected error for invalid base URL")
	}
	if _, err := NewClient(Options{BaseURL: "https://files.example.com"}); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestExecuteQuerySendsRenderedQuery(t *testing.T) {
	entry, _ := catalog.Default().Entry(5)

	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path != "/api/v1/files" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Token secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "('root' in parents or mimeType = 'text/plain')" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("scope"); got != "root" {
			t.Errorf("scope = %q", got)
		}
		json.NewEncoder(w).Encode(listResponse{Files: []models.FileMetadata{
			{ID: "1", Title: "notes.txt", MimeType: "text/plain"},
		}})
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv).ExecuteQuery(context.Background(), "root", entry.Query)
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	if len(got) != 1 || got[0].Title != "notes.txt" {
		t.Errorf("ExecuteQuery() = %+v", got)
	}
}

func TestExecuteQueryFollowsPages(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.URL.Query().Get("pageToken") {
		case "":
			json.NewEncoder(w).Encode(listResponse{
				Files:         []models.FileMetadata{{ID: "1"}, {ID: "2"}},
				NextPageToken: "p2",
			})
		case "p2":
			json.NewEncoder(w).Encode(listResponse{Files: []models.FileMetadata{{ID: "3"}}})
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("pageToken"))
		}
	}))
	defer srv.Close()

	entry, _ := catalog.Default().Entry(0)
	got, err := newTestClient(t, srv).ExecuteQuery(context.Background(), "root", entry.Query)
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	if len(got) != 3 || got[2].ID != "3" {
		t.Errorf("ExecuteQuery() = %+v, want 3 records", got)
	}
}

func TestExecuteQueryRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(nethttp.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(listResponse{Files: []models.FileMetadata{{ID: "1"}}})
	}))
	defer srv.Close()

	entry, _ := catalog.Default().Entry(1)
	got, err := newTestClient(t, srv).ExecuteQuery(context.Background(), "root", entry.Query)
	if err != nil || len(got) != 1 {
		t.Fatalf("ExecuteQuery() = %v, %v", got, err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestExecuteQueryStatusError(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.Error(w, "bad token", nethttp.StatusUnauthorized)
	}))
	defer srv.Close()

	entry, _ := catalog.Default().Entry(1)
	_, err := newTestClient(t, srv).ExecuteQuery(context.Background(), "root", entry.Query)

	var statusErr *http.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want *http.StatusError", err)
	}
	if statusErr.StatusCode != nethttp.StatusUnauthorized || statusErr.Body != "bad token" {
		t.Errorf("unexpected status error %+v", statusErr)
	}
	if http.ClassifyError(err) != http.ErrorTypeCredential {
		t.Errorf("ClassifyError() = %s, want credential", http.ErrorTypeName(http.ClassifyError(err)))
	}
}

func TestExecuteQueryMalformedBody(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	entry, _ := catalog.Default().Entry(1)
	if _, err := newTestClient(t, srv).ExecuteQuery(context.Background(), "root", entry.Query); err == nil {
		t.Error("expected decode error")
	}
}

func TestExecuteQueryCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	entry, _ := catalog.Default().Entry(1)
	_, err := newTestClient(t, srv).ExecuteQuery(ctx, "root", entry.Query)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
