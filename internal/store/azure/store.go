// Package azure serves file metadata from an Azure blob container. Blob
// metadata is returned with the listing, so no per-blob calls are made.
package azure

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/rescale/filequery/internal/http"
	"github.com/rescale/filequery/internal/logging"
	"github.com/rescale/filequery/internal/models"
	"github.com/rescale/filequery/internal/query"
	"github.com/rescale/filequery/internal/store"
)

// Lister is the subset of *azblob.Client the store uses.
type Lister interface {
	NewListBlobsFlatPager(containerName string, o *azblob.ListBlobsFlatOptions) *runtime.Pager[azblob.ListBlobsFlatResponse]
}

// Options configures the client built by New.
type Options struct {
	ServiceURL  string // https://<account>.blob.core.windows.net/, may carry a SAS token
	Container   string
	Prefix      string
	AccountName string // shared key credentials, anonymous or SAS when empty
	AccountKey  string
	HTTPClient  *nethttp.Client
	Logger      *logging.Logger
}

// Store is a fetch.Executor over an Azure blob container.
type Store struct {
	client    Lister
	container string
	prefix    string
	retry     http.Config
	logger    *logging.Logger
}

// New creates the azblob client and a store over it.
func New(opts Options) (*Store, error) {
	if opts.ServiceURL == "" {
		return nil, errors.New("service URL is required")
	}
	if opts.Container == "" {
		return nil, errors.New("container is required")
	}

	clientOpts := &azblob.ClientOptions{}
	if opts.HTTPClient != nil {
		clientOpts.ClientOptions = azcore.ClientOptions{
			Transport: opts.HTTPClient,
		}
	}

	var (
		client *azblob.Client
		err    error
	)
	if opts.AccountName != "" && opts.AccountKey != "" {
		cred, credErr := azblob.NewSharedKeyCredential(opts.AccountName, opts.AccountKey)
		if credErr != nil {
			return nil, fmt.Errorf("invalid Azure shared key: %w", credErr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(opts.ServiceURL, cred, clientOpts)
	} else {
		client, err = azblob.NewClientWithNoCredential(opts.ServiceURL, clientOpts)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	return NewWithClient(client, opts.Container, opts.Prefix, opts.Logger), nil
}

// NewWithClient creates a store over an existing lister.
func NewWithClient(client Lister, containerName, prefix string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewLogger("azure", nil)
	}
	return &Store{
		client:    client,
		container: containerName,
		prefix:    prefix,
		retry:     http.DefaultConfig(),
		logger:    logger,
	}
}

// ExecuteQuery lists the blobs in scope and returns those matching q.
func (s *Store) ExecuteQuery(ctx context.Context, scope string, q query.Query) ([]models.FileMetadata, error) {
	listPrefix := store.ListPrefix(s.prefix, scope)

	var objects []store.Object
	err := http.ExecuteWithRetry(ctx, s.retry, func(ctx context.Context) error {
		objects = objects[:0]
		opts := &azblob.ListBlobsFlatOptions{
			Include: container.ListBlobsInclude{Metadata: true},
		}
		if listPrefix != "" {
			opts.Prefix = &listPrefix
		}

		pager := s.client.NewListBlobsFlatPager(s.container, opts)
		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return err
			}
			if page.Segment == nil {
				continue
			}
			for _, item := range page.Segment.BlobItems {
				if obj, ok := objectFromBlob(item); ok {
					objects = append(objects, obj)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list container %s: %w", s.container, err)
	}

	records := make([]models.FileMetadata, len(objects))
	for i, obj := range objects {
		records[i] = store.RecordFromObject(s.prefix, obj)
	}
	matched := store.Apply(records, scope, q)

	s.logger.Debug().
		Str("container", s.container).
		Str("prefix", listPrefix).
		Int("listed", len(objects)).
		Int("matched", len(matched)).
		Msg("Queried blobs")
	return matched, nil
}

func objectFromBlob(item *container.BlobItem) (store.Object, bool) {
	if item == nil || item.Name == nil || strings.HasSuffix(*item.Name, "/") {
		return store.Object{}, false
	}
	obj := store.Object{Key: *item.Name}
	if props := item.Properties; props != nil {
		if props.LastModified != nil {
			obj.Modified = *props.LastModified
		}
		if props.ContentType != nil {
			obj.ContentType = *props.ContentType
		}
	}
	if len(item.Metadata) > 0 {
		obj.Metadata = make(map[string]string, len(item.Metadata))
		for k, v := range item.Metadata {
			if v != nil {
				obj.Metadata[k] = *v
			}
		}
	}
	return obj, true
}
