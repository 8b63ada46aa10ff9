package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/rpattn/tradeflow/internal/domain"
	"github.com/rpattn/tradeflow/internal/repository"

	"github.com/google/uuid"
)

const (
	// DefaultBatchSize is the number of records written between progress updates.
	DefaultBatchSize = 500
	// DefaultBatchPause is the pause between batches.
	DefaultBatchPause = 100 * time.Millisecond
)

// WriteRequest carries validated records for one job.
type WriteRequest struct {
	JobID          uuid.UUID
	OrganizationID uuid.UUID
	Records        []domain.TradeRecord
}

// BatchProgress is reported after every batch.
type BatchProgress struct {
	CurrentBatch int
	TotalBatches int
	Processed    int
	Duplicates   int
	Errors       int
	Percentage   float64
}

// WriteResult summarises a completed write.
type WriteResult struct {
	Processed  int
	Duplicates int
	Errors     int
	Batches    int
	// Companies holds distinct company names of inserted shipments in insert order.
	Companies []string
}

// BatchWriter inserts records in batches and suppresses duplicates.
type BatchWriter struct {
	shipments ShipmentStore
	errorLog  ErrorLog
	batchSize int
	pause     time.Duration
}

// NewBatchWriter builds a writer. Non-positive sizes fall back to defaults; a negative pause disables pausing.
func NewBatchWriter(shipments ShipmentStore, errorLog ErrorLog, batchSize int, pause time.Duration) *BatchWriter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if pause == 0 {
		pause = DefaultBatchPause
	}
	if pause < 0 {
		pause = 0
	}
	return &BatchWriter{
		shipments: shipments,
		errorLog:  errorLog,
		batchSize: batchSize,
		pause:     pause,
	}
}

// BatchSize returns the effective batch size.
func (w *BatchWriter) BatchSize() int { return w.batchSize }

// Write persists records batch by batch. Row failures are counted and logged; only context
// cancellation or a failing callback stops the write.
func (w *BatchWriter) Write(ctx context.Context, req WriteRequest, onBatch func(context.Context, BatchProgress) error) (WriteResult, error) {
	batches := chunk(req.Records, w.batchSize)
	result := WriteResult{Batches: len(batches)}
	seen := make(map[string]struct{}, len(req.Records))
	companies := make(map[string]struct{})
	total := len(req.Records)

	for idx, batch := range batches {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		for _, record := range batch {
			shipment := ToShipment(record, req.OrganizationID, req.JobID)
			key := shipment.Key().String()

			if _, dup := seen[key]; dup {
				result.Duplicates++
				continue
			}

			exists, err := w.shipments.Exists(ctx, shipment.Key())
			if err != nil {
				result.Errors++
				w.recordRowError(ctx, req, record, fmt.Errorf("duplicate lookup failed: %w", err))
				continue
			}
			if exists {
				seen[key] = struct{}{}
				result.Duplicates++
				continue
			}

			if err := w.shipments.Insert(ctx, shipment); err != nil {
				if errors.Is(err, repository.ErrDuplicateShipment) {
					seen[key] = struct{}{}
					result.Duplicates++
					continue
				}
				result.Errors++
				w.recordRowError(ctx, req, record, err)
				continue
			}

			seen[key] = struct{}{}
			result.Processed++
			if _, ok := companies[shipment.CompanyName]; !ok {
				companies[shipment.CompanyName] = struct{}{}
				result.Companies = append(result.Companies, shipment.CompanyName)
			}
		}

		if onBatch != nil {
			done := result.Processed + result.Duplicates + result.Errors
			progress := BatchProgress{
				CurrentBatch: idx + 1,
				TotalBatches: len(batches),
				Processed:    result.Processed,
				Duplicates:   result.Duplicates,
				Errors:       result.Errors,
				Percentage:   percentage(done, total),
			}
			if err := onBatch(ctx, progress); err != nil {
				return result, err
			}
		}

		if idx < len(batches)-1 && w.pause > 0 {
			if err := sleepContext(ctx, w.pause); err != nil {
				return result, err
			}
		}
	}

	return result, nil
}

func (w *BatchWriter) recordRowError(ctx context.Context, req WriteRequest, record domain.TradeRecord, err error) {
	if w.errorLog == nil {
		return
	}
	rowNumber := record.RowNumber
	entry := domain.ImportError{
		ImportJobID:    req.JobID,
		OrganizationID: req.OrganizationID,
		RowNumber:      &rowNumber,
		ErrorCode:      domain.ErrorCodeRowWriteError,
		ErrorDetail:    truncateError(err.Error()),
		RawData:        record.Raw,
	}
	if logErr := w.errorLog.Record(ctx, entry); logErr != nil {
		slog.WarnContext(ctx, "failed to record import row error", "job", req.JobID, "row", rowNumber, "error", logErr)
	}
}

// ToShipment maps an enriched record onto its persisted row.
func ToShipment(record domain.TradeRecord, organizationID uuid.UUID, jobID uuid.UUID) domain.Shipment {
	companyName := record.String(domain.FieldCompanyName)
	year, _ := record.Number(domain.FieldYear)
	month, _ := record.Number(domain.FieldMonth)

	return domain.Shipment{
		OrganizationID:       organizationID,
		ImportJobID:          jobID,
		CompanyName:          companyName,
		CompanyKey:           domain.NormalizeCompanyKey(companyName),
		ShipperName:          optionalString(record, domain.FieldShipperName),
		ConsigneeName:        optionalString(record, domain.FieldConsigneeName),
		OriginCountry:        record.String(domain.FieldOriginCountry),
		DestinationCountry:   record.String(domain.FieldDestinationCountry),
		OriginState:          optionalString(record, domain.FieldOriginState),
		DestinationState:     record.String(domain.FieldDestinationState),
		OriginCity:           optionalString(record, domain.FieldOriginCity),
		DestinationCity:      optionalString(record, domain.FieldDestinationCity),
		OriginPort:           optionalString(record, domain.FieldOriginPort),
		DestinationPort:      optionalString(record, domain.FieldDestinationPort),
		HSCode:               record.String(domain.FieldHSCode),
		CommodityCode:        record.String(domain.FieldCommodityCode),
		CommodityDescription: record.String(domain.FieldCommodityDescription),
		CommodityCategory:    record.String(domain.FieldCommodityCategory),
		TransportationMode:   record.String(domain.FieldTransportationMode),
		TransportMode:        record.String(domain.FieldTransportMode),
		CarrierName:          optionalString(record, domain.FieldCarrierName),
		VesselName:           optionalString(record, domain.FieldVesselName),
		BillOfLading:         optionalString(record, domain.FieldBillOfLading),
		WeightKg:             optionalNumber(record, domain.FieldWeightKg),
		ValueUSD:             optionalNumber(record, domain.FieldValueUSD),
		ShipmentDate:         optionalDate(record, domain.FieldShipmentDate),
		ArrivalDate:          optionalDate(record, domain.FieldArrivalDate),
		TradeMonth:           record.String(domain.FieldTradeMonth),
		TradeYear:            int(year),
		TradeMonthNumber:     int(month),
	}
}

func optionalString(record domain.TradeRecord, field domain.Field) *string {
	value := record.String(field)
	if value == "" {
		return nil
	}
	return &value
}

func optionalNumber(record domain.TradeRecord, field domain.Field) *float64 {
	value, ok := record.Number(field)
	if !ok {
		return nil
	}
	return &value
}

func optionalDate(record domain.TradeRecord, field domain.Field) *time.Time {
	value, ok := record.Date(field)
	if !ok {
		return nil
	}
	return &value
}

// chunk splits a slice into sub-slices of at most size elements.
func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 || size <= 0 {
		return nil
	}

	numChunks := (len(items) + size - 1) / size
	result := make([][]T, 0, numChunks)

	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		result = append(result, items[i:end])
	}

	return result
}

func percentage(done int, total int) float64 {
	if total <= 0 {
		return 100
	}
	return math.Round(float64(done)/float64(total)*10000) / 100
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
