package repository

import (
	"context"
	"errors"

	"github.com/rpattn/tradeflow/internal/domain"

	"github.com/google/uuid"
)

var (
	// ErrJobStatusConflict indicates that a job cannot transition to the requested state.
	ErrJobStatusConflict = errors.New("import job status conflict")
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateShipment is returned when the shipment unique index rejects an insert.
	ErrDuplicateShipment = errors.New("duplicate shipment")
)

// ImportJobRepository persists import job state. Status changes are conditional on the current status.
type ImportJobRepository interface {
	Create(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.ImportJob, error)
	List(ctx context.Context, organizationID uuid.UUID, limit int, offset int) ([]domain.ImportJob, error)
	Transition(ctx context.Context, id uuid.UUID, from domain.ImportJobStatus, to domain.ImportJobStatus) error
	UpdateProgress(ctx context.Context, id uuid.UUID, progress domain.JobProgress) error
	MarkCompleted(ctx context.Context, id uuid.UUID, progress domain.JobProgress) error
	MarkFailed(ctx context.Context, id uuid.UUID, details domain.ErrorDetails) error
}

// ShipmentRepository stores imported trade shipments.
type ShipmentRepository interface {
	Exists(ctx context.Context, key domain.DuplicateKey) (bool, error)
	Insert(ctx context.Context, shipment domain.Shipment) error
}

// ImportErrorRepository stores row and job level import errors.
type ImportErrorRepository interface {
	Record(ctx context.Context, entry domain.ImportError) error
	List(ctx context.Context, jobID uuid.UUID, limit int, offset int) ([]domain.ImportError, error)
}

func clampPage(limit int, offset int, defaultLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
