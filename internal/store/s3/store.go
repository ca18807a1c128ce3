// Package s3 serves file metadata from an S3 bucket. Objects are listed below
// a prefix, user metadata is read with HeadObject and the query is applied
// locally.
package s3

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/rescale/filequery/internal/constants"
	"github.com/rescale/filequery/internal/http"
	"github.com/rescale/filequery/internal/logging"
	"github.com/rescale/filequery/internal/models"
	"github.com/rescale/filequery/internal/query"
	"github.com/rescale/filequery/internal/store"
)

// API is the subset of the S3 client the store uses.
type API interface {
	s3.ListObjectsV2APIClient
	s3.HeadObjectAPIClient
}

// Options configures the S3 client built by New.
type Options struct {
	Bucket     string
	Prefix     string
	Region     string
	Endpoint   string // S3-compatible endpoint, AWS when empty
	AccessKey  string // static credentials, default chain when empty
	SecretKey  string
	HTTPClient *nethttp.Client
	Logger     *logging.Logger
}

// Store is a fetch.Executor over an S3 bucket.
type Store struct {
	client API
	bucket string
	prefix string
	retry  http.Config
	logger *logging.Logger
}

// New loads AWS configuration and creates a store.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.HTTPClient != nil {
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(opts.HTTPClient))
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, opts.Bucket, opts.Prefix, opts.Logger), nil
}

// NewWithClient creates a store over an existing client.
func NewWithClient(client API, bucket, prefix string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewLogger("s3", nil)
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
		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket:  aws.String(s.bucket),
			Prefix:  aws.String(listPrefix),
			MaxKeys: aws.Int32(constants.ObjectListPageSize),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return err
			}
			for _, obj := range page.Contents {
				key := aws.ToString(obj.Key)
				if key == "" || key[len(key)-1] == '/' {
					continue // folder placeholder
				}
				objects = append(objects, store.Object{Key: key, Modified: aws.ToTime(obj.LastModified)})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list s3://%s/%s: %w", s.bucket, listPrefix, err)
	}

	if err := s.headAll(ctx, objects); err != nil {
		return nil, err
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

// headAll fills content type and user metadata with bounded concurrency.
func (s *Store) headAll(ctx context.Context, objects []store.Object) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.ObjectMetadataConcurrency)

	for i := range objects {
		obj := &objects[i]
		g.Go(func() error {
			return http.ExecuteWithRetry(ctx, s.retry, func(ctx context.Context) error {
				out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
					Bucket: aws.String(s.bucket),
					Key:    aws.String(obj.Key),
				})
				if err != nil {
					return fmt.Errorf("failed to read metadata of %s: %w", obj.Key, err)
				}
				obj.ContentType = aws.ToString(out.ContentType)
				obj.Metadata = out.Metadata
				return nil
			})
		})
	}
	return g.Wait()
}
