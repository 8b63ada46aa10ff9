// Package app wires configuration into a running import service.
package app

import (
	"context"

	"github.com/rpattn/tradeflow/internal/analysis"
	"github.com/rpattn/tradeflow/internal/config"
	"github.com/rpattn/tradeflow/internal/db"
	"github.com/rpattn/tradeflow/internal/enrichment"
	"github.com/rpattn/tradeflow/internal/filestore"
	"github.com/rpattn/tradeflow/internal/ingestion"
	"github.com/rpattn/tradeflow/internal/repository"
	sqliterepo "github.com/rpattn/tradeflow/internal/repository/sqlite"
)

// Stores bundles the persistence the import service needs.
type Stores struct {
	Jobs      ingestion.JobStatusStore
	Shipments ingestion.ShipmentStore
	Errors    ingestion.ErrorLog
	close     func()
}

func (s Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStores connects to the configured database. Postgres is migrated before use.
func OpenStores(ctx context.Context, cfg config.DatabaseConfig) (Stores, error) {
	if cfg.Driver == config.DriverSQLite {
		conn, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return Stores{}, err
		}
		return Stores{
			Jobs:      sqliterepo.NewImportJobRepository(conn.DB),
			Shipments: sqliterepo.NewShipmentRepository(conn.DB),
			Errors:    sqliterepo.NewImportErrorRepository(conn.DB),
			close:     func() { _ = conn.Close() },
		}, nil
	}

	if err := db.RunMigrations(cfg.Postgres); err != nil {
		return Stores{}, err
	}
	conn, err := db.NewConnection(ctx, cfg.Postgres)
	if err != nil {
		return Stores{}, err
	}
	return Stores{
		Jobs:      repository.NewImportJobRepository(conn.Pool),
		Shipments: repository.NewShipmentRepository(conn.Pool),
		Errors:    repository.NewImportErrorRepository(conn.Pool),
		close:     conn.Close,
	}, nil
}

// ServiceOptions maps the import, analysis and enrichment sections onto service options.
func ServiceOptions(cfg config.Config) []ingestion.Option {
	opts := []ingestion.Option{
		ingestion.WithBatchSize(cfg.Import.BatchSize),
		ingestion.WithBatchPause(cfg.Import.BatchPause),
		ingestion.WithMaxSpreadsheetBytes(cfg.Import.MaxSpreadsheetBytes),
		ingestion.WithMaxConcurrentJobs(cfg.Import.MaxConcurrentJobs),
		ingestion.WithJobTimeout(cfg.Import.JobTimeout),
		ingestion.WithReportInterval(cfg.Import.ReportInterval),
		ingestion.WithAnalysisRequired(cfg.Analysis.Required),
	}
	if cfg.Analysis.URL != "" {
		opts = append(opts, ingestion.WithAnalyzer(analysis.NewClient(cfg.Analysis.URL, cfg.Analysis.APIKey, cfg.Analysis.Timeout)))
	}
	if cfg.Enrichment.URL != "" {
		opts = append(opts, ingestion.WithCompanyEnricher(
			enrichment.NewClient(cfg.Enrichment.URL, cfg.Enrichment.APIKey),
			cfg.Enrichment.Departments,
			cfg.Enrichment.Concurrency,
		))
		opts = append(opts, ingestion.WithEnrichmentTimeout(cfg.Enrichment.Timeout))
	}
	return opts
}

// Runtime is a configured service plus the resources it holds.
type Runtime struct {
	Config  config.Config
	Stores  Stores
	Files   filestore.Store
	Service *ingestion.Service
}

// New builds the import service described by cfg.
func New(ctx context.Context, cfg config.Config) (*Runtime, error) {
	stores, err := OpenStores(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	files, err := filestore.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		stores.Close()
		return nil, err
	}
	service := ingestion.NewService(stores.Jobs, stores.Shipments, stores.Errors, files, ServiceOptions(cfg)...)
	return &Runtime{Config: cfg, Stores: stores, Files: files, Service: service}, nil
}

// Close drains running jobs and releases the database.
func (r *Runtime) Close(ctx context.Context) error {
	err := r.Service.Shutdown(ctx)
	r.Stores.Close()
	return err
}
