// Package services wires configuration, the query catalog, a file store and
// the fetch controller together. It is frontend-agnostic: the CLI and the GUI
// both drive a QueryService.
package services

import (
	"context"
	"fmt"

	"github.com/rescale/filequery/internal/catalog"
	"github.com/rescale/filequery/internal/config"
	"github.com/rescale/filequery/internal/events"
	"github.com/rescale/filequery/internal/fetch"
	"github.com/rescale/filequery/internal/http"
	"github.com/rescale/filequery/internal/logging"
	"github.com/rescale/filequery/internal/store/azure"
	"github.com/rescale/filequery/internal/store/memory"
	"github.com/rescale/filequery/internal/store/minio"
	"github.com/rescale/filequery/internal/store/remote"
	"github.com/rescale/filequery/internal/store/s3"
)

// QueryService owns the fetch controller for one configured store.
type QueryService struct {
	cfg        *config.Config
	eventBus   *events.EventBus
	logger     *logging.Logger
	catalog    *catalog.Catalog
	controller *fetch.Controller
}

// NewQueryService validates cfg, builds the executor for its backend and
// starts a controller publishing on eventBus.
func NewQueryService(ctx context.Context, cfg *config.Config, eventBus *events.EventBus, logger *logging.Logger) (*QueryService, error) {
	if logger == nil {
		logger = logging.NewLogger("query-service", eventBus)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cat, err := LoadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	exec, err := NewExecutor(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	controller, err := fetch.NewController(cat, exec,
		fetch.WithScope(cfg.Scope),
		fetch.WithEventBus(eventBus),
		fetch.WithLogger(logger.Named("fetch")),
		fetch.WithFetchTimeout(cfg.FetchTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch controller: %w", err)
	}

	logger.Info().
		Str("backend", cfg.Backend).
		Str("scope", cfg.Scope).
		Int("queries", cat.Count()).
		Msg("Query service ready")

	return &QueryService{
		cfg:        cfg,
		eventBus:   eventBus,
		logger:     logger,
		catalog:    cat,
		controller: controller,
	}, nil
}

// Catalog returns the query catalog in use.
func (s *QueryService) Catalog() *catalog.Catalog {
	return s.catalog
}

// Controller returns the fetch controller.
func (s *QueryService) Controller() *fetch.Controller {
	return s.controller
}

// Config returns the configuration the service was built from.
func (s *QueryService) Config() *config.Config {
	return s.cfg
}

// Close stops in-flight fetches.
func (s *QueryService) Close() {
	s.controller.Close()
}

// LoadCatalog returns the catalog named by cfg.CatalogFile, or the built-in
// catalog when none is configured.
func LoadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogFile == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return cat, nil
}

// NewExecutor builds the store for cfg.Backend.
func NewExecutor(ctx context.Context, cfg *config.Config, logger *logging.Logger) (fetch.Executor, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	if cfg.Backend == config.BackendMemory {
		if cfg.RecordsFile == "" {
			return memory.New(memory.Sample()), nil
		}
		return memory.LoadFile(cfg.RecordsFile)
	}

	httpClient, err := http.CreateClient(cfg, logger.Named("http"))
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	switch cfg.Backend {
	case config.BackendRemote:
		return remote.NewClient(remote.Options{
			BaseURL:    cfg.APIBaseURL,
			APIKey:     config.ResolveAPIKey("", cfg.APIKey, config.GetDefaultTokenPath()),
			HTTPClient: httpClient,
			RateLimit:  cfg.RateLimit,
			Logger:     logger.Named("remote"),
		})

	case config.BackendS3:
		return s3.New(ctx, s3.Options{
			Bucket:     cfg.Bucket,
			Prefix:     cfg.Prefix,
			Region:     cfg.Region,
			Endpoint:   cfg.Endpoint,
			AccessKey:  cfg.AccessKey,
			SecretKey:  cfg.SecretKey,
			HTTPClient: httpClient,
			Logger:     logger.Named("s3"),
		})

	case config.BackendAzure:
		return azure.New(azure.Options{
			ServiceURL:  cfg.AzureServiceURL,
			Container:   cfg.Container,
			Prefix:      cfg.Prefix,
			AccountName: cfg.AccessKey,
			AccountKey:  cfg.SecretKey,
			HTTPClient:  httpClient,
			Logger:      logger.Named("azure"),
		})

	case config.BackendMinio:
		return minio.New(minio.Options{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Transport: httpClient.Transport,
			Logger:    logger.Named("minio"),
		})
	}

	return nil, fmt.Errorf("unsupported backend: %q", cfg.Backend)
}
