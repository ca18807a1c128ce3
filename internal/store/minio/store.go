// Package minio serves file metadata from a MinIO (or other S3-compatible)
// bucket, listing objects together with their user metadata.
package minio

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rescale/filequery/internal/http"
	"github.com/rescale/filequery/internal/logging"
	"github.com/rescale/filequery/internal/models"
	"github.com/rescale/filequery/internal/query"
	"github.com/rescale/filequery/internal/store"
)

// Lister is the subset of *minio.Client the store uses.
type Lister interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// Options configures the client built by New.
type Options struct {
	Endpoint  string // host:port
	Bucket    string
	Prefix    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Transport nethttp.RoundTripper
	Logger    *logging.Logger
}

// Store is a fetch.Executor over a MinIO bucket.
type Store struct {
	client Lister
	bucket string
	prefix string
	retry  http.Config
	logger *logging.Logger
}

// New creates the MinIO client and a store over it.
func New(opts Options) (*Store, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if opts.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:    opts.UseSSL,
		Region:    opts.Region,
		Transport: opts.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return NewWithClient(client, opts.Bucket, opts.Prefix, opts.Logger), nil
}

// NewWithClient creates a store over an existing lister.
func NewWithClient(client Lister, bucket, prefix string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewLogger("minio", nil)
	}
	return &Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		retry:  http.DefaultConfig(),
		logger: logger,
	}
}

// ExecuteQuery lists the objects in scope and returns those matching q.
func (s *Store) ExecuteQuery(ctx context.Context, scope string, q query.Query) ([]models.FileMetadata, error) {
	listPrefix := store.ListPrefix(s.prefix, scope)

	var objects []store.Object
	err := http.ExecuteWithRetry(ctx, s.retry, func(ctx context.Context) error {
		objects = objects[:0]

		// cancel stops the listing goroutine if we return early
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
			Prefix:       listPrefix,
			Recursive:    true,
			WithMetadata: true,
		}) {
			if info.Err != nil {
				return info.Err
			}
			if info.Key == "" || strings.HasSuffix(info.Key, "/") {
				continue
			}
			objects = append(objects, objectFromInfo(info))
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s/%s: %w", s.bucket, listPrefix, err)
	}

	records := make([]models.FileMetadata, len(objects))
	for i, obj := range objects {
		records[i] = store.RecordFromObject(s.prefix, obj)
	}
	matched := store.Apply(records, scope, q)

	s.logger.Debug().
		Str("bucket", s.bucket).
		Str("prefix", listPrefix).
		Int("listed", len(objects)).
		Int("matched", len(matched)).
		Msg("Queried objects")
	return matched, nil
}

func objectFromInfo(info minio.ObjectInfo) store.Object {
	obj := store.Object{
		Key:         info.Key,
		Modified:    info.LastModified,
		ContentType: info.ContentType,
	}
	if len(info.UserMetadata) > 0 {
		obj.Metadata = make(map[string]string, len(info.UserMetadata))
		for k, v := range info.UserMetadata {
			obj.Metadata[k] = v
		}
	}
	// content type may only be present among the listed metadata
	if obj.ContentType == "" {
		for k, v := range obj.Metadata {
			if strings.EqualFold(k, "content-type") {
				obj.ContentType = v
			}
		}
	}
	return obj
}
