package ingestion

import (
	"context"

	"github.com/rpattn/tradeflow/internal/domain"
	"github.com/rpattn/tradeflow/internal/repository"

	"github.com/google/uuid"
)

// JobStatusStore is the polled job state the orchestrator advances.
type JobStatusStore interface {
	Create(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.ImportJob, error)
	List(ctx context.Context, organizationID uuid.UUID, limit int, offset int) ([]domain.ImportJob, error)
	Transition(ctx context.Context, id uuid.UUID, from domain.ImportJobStatus, to domain.ImportJobStatus) error
	UpdateProgress(ctx context.Context, id uuid.UUID, progress domain.JobProgress) error
	MarkCompleted(ctx context.Context, id uuid.UUID, progress domain.JobProgress) error
	MarkFailed(ctx context.Context, id uuid.UUID, details domain.ErrorDetails) error
}

// ShipmentStore persists shipments and answers duplicate lookups.
type ShipmentStore interface {
	Exists(ctx context.Context, key domain.DuplicateKey) (bool, error)
	Insert(ctx context.Context, shipment domain.Shipment) error
}

// ErrorLog records row and job level import errors.
type ErrorLog interface {
	Record(ctx context.Context, entry domain.ImportError) error
	List(ctx context.Context, jobID uuid.UUID, limit int, offset int) ([]domain.ImportError, error)
}

// FileStore fetches uploaded files.
type FileStore interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

// SizedFileStore is a FileStore that can report an object's size before it is fetched.
type SizedFileStore interface {
	FileStore
	Size(ctx context.Context, path string) (int64, error)
}

// AnalysisRequest is the sample sent to the file analysis service.
type AnalysisRequest struct {
	Sample     []map[string]string `json:"sample"`
	Format     domain.FileFormat   `json:"format"`
	FileName   string              `json:"file_name"`
	TotalCount int                 `json:"total_count"`
}

// Guidance is advisory output of the file analysis service.
type Guidance struct {
	DetectedFormat  string            `json:"detected_format,omitempty"`
	ColumnMapping   map[string]string `json:"column_mapping,omitempty"`
	Recommendations []string          `json:"recommendations,omitempty"`
}

// Analyzer calls the remote file analysis service.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (Guidance, error)
}

// CompanyEnricher queues a company for out-of-band enrichment.
type CompanyEnricher interface {
	Enqueue(ctx context.Context, companyName string, departments []string) error
}

var (
	_ JobStatusStore = (repository.ImportJobRepository)(nil)
	_ ShipmentStore  = (repository.ShipmentRepository)(nil)
	_ ErrorLog       = (repository.ImportErrorRepository)(nil)
)
