package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpattn/tradeflow/internal/domain"
	"github.com/rpattn/tradeflow/internal/repository"

	"github.com/google/uuid"
)

func enrichedRecords(t *testing.T, rows ...[2]string) []domain.TradeRecord {
	t.Helper()
	enricher := NewEnricher(fixedClock, 0)
	out := make([]domain.TradeRecord, 0, len(rows))
	for i, row := range rows {
		values := map[domain.Field]domain.Value{domain.FieldShipperName: domain.StringValue(row[0])}
		if row[1] != "" {
			date, err := time.Parse("2006-01-02", row[1])
			if err != nil {
				t.Fatalf("bad date %q", row[1])
			}
			values[domain.FieldShipmentDate] = domain.DateValue(date)
		}
		record := recordWith(values)
		record.RowNumber = i + 2
		enriched, err := enricher.EnrichRecord(record, i+1)
		if err != nil {
			t.Fatalf("enrich: %v", err)
		}
		out = append(out, enriched)
	}
	return out
}

func TestBatchWriterSuppressesDuplicatesWithinBatch(t *testing.T) {
	store := newStubShipmentStore()
	writer := NewBatchWriter(store, &stubErrorLog{}, 10, -1)
	records := enrichedRecords(t,
		[2]string{"Acme Co", "2024-03-01"},
		[2]string{"ACME  co", "2024-03-01"},
		[2]string{"Acme Co", "2024-03-02"},
	)

	result, err := writer.Write(context.Background(), WriteRequest{JobID: uuid.New(), OrganizationID: uuid.New(), Records: records}, nil)
	if err != nil {
		t.Fatalf("write returned error: %v", err)
	}
	if result.Processed != 2 || result.Duplicates != 1 || result.Errors != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Companies) != 1 || result.Companies[0] != "Acme Co" {
		t.Fatalf("expected one distinct company, got %v", result.Companies)
	}
}

func TestBatchWriterCountsStoreOutcomes(t *testing.T) {
	store := newStubShipmentStore()
	errorLog := &stubErrorLog{}
	store.insertErr = func(s domain.Shipment) error {
		switch s.CompanyName {
		case "Racer":
			return repository.ErrDuplicateShipment
		case "Broken":
			return errors.New("connection reset")
		}
		return nil
	}
	writer := NewBatchWriter(store, errorLog, 2, -1)
	jobID := uuid.New()
	records := enrichedRecords(t,
		[2]string{"Acme", "2024-03-01"},
		[2]string{"Racer", "2024-03-01"},
		[2]string{"Broken", "2024-03-01"},
	)

	var reports []BatchProgress
	result, err := writer.Write(context.Background(), WriteRequest{JobID: jobID, OrganizationID: uuid.New(), Records: records},
		func(_ context.Context, p BatchProgress) error {
			reports = append(reports, p)
			return nil
		})
	if err != nil {
		t.Fatalf("write returned error: %v", err)
	}
	if result.Processed != 1 || result.Duplicates != 1 || result.Errors != 1 || result.Batches != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	if len(reports) != 2 {
		t.Fatalf("expected a report per batch, got %d", len(reports))
	}
	if reports[0].CurrentBatch != 1 || reports[0].TotalBatches != 2 || reports[0].Percentage != 66.67 {
		t.Fatalf("unexpected first report: %+v", reports[0])
	}
	if reports[1].Percentage != 100 || reports[1].Errors != 1 {
		t.Fatalf("unexpected final report: %+v", reports[1])
	}

	if n := errorLog.countCode(jobID, domain.ErrorCodeRowWriteError); n != 1 {
		t.Fatalf("expected one write error entry, got %d", n)
	}
	entry := errorLog.entries[0]
	if entry.RowNumber == nil || *entry.RowNumber != 4 {
		t.Fatalf("expected row 4, got %v", entry.RowNumber)
	}
}

func TestBatchWriterLookupFailureIsRowError(t *testing.T) {
	store := newStubShipmentStore()
	store.existsErr = errors.New("timeout")
	writer := NewBatchWriter(store, nil, 0, -1)

	result, err := writer.Write(context.Background(), WriteRequest{Records: enrichedRecords(t, [2]string{"Acme", ""})}, nil)
	if err != nil {
		t.Fatalf("write returned error: %v", err)
	}
	if result.Errors != 1 || result.Processed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if writer.BatchSize() != DefaultBatchSize {
		t.Fatalf("expected default batch size, got %d", writer.BatchSize())
	}
}

func TestBatchWriterStopsOnCallbackError(t *testing.T) {
	writer := NewBatchWriter(newStubShipmentStore(), nil, 1, -1)
	stop := errors.New("job cancelled")
	records := enrichedRecords(t, [2]string{"A", ""}, [2]string{"B", ""})

	result, err := writer.Write(context.Background(), WriteRequest{Records: records}, func(context.Context, BatchProgress) error {
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("expected first batch written before stop, got %d", result.Processed)
	}
}

func TestBatchWriterPauseHonoursCancellation(t *testing.T) {
	writer := NewBatchWriter(newStubShipmentStore(), nil, 1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	records := enrichedRecords(t, [2]string{"A", ""}, [2]string{"B", ""})

	_, err := writer.Write(ctx, WriteRequest{Records: records}, func(context.Context, BatchProgress) error {
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestToShipmentMapsOptionalFields(t *testing.T) {
	record := enrichedRecords(t, [2]string{"Acme  Corp", "2024-03-15"})[0]
	record.Set(domain.FieldWeightKg, domain.NumberValue(12.5))

	shipment := ToShipment(record, uuid.New(), uuid.New())

	if shipment.CompanyKey != "acme corp" {
		t.Fatalf("unexpected company key %q", shipment.CompanyKey)
	}
	if shipment.ShipperName == nil || *shipment.ShipperName != "Acme  Corp" {
		t.Fatalf("unexpected shipper %v", shipment.ShipperName)
	}
	if shipment.ConsigneeName != nil || shipment.ValueUSD != nil {
		t.Fatalf("absent fields must stay nil")
	}
	if shipment.WeightKg == nil || *shipment.WeightKg != 12.5 {
		t.Fatalf("unexpected weight %v", shipment.WeightKg)
	}
	if shipment.TradeYear != 2024 || shipment.TradeMonthNumber != 3 || shipment.TradeMonth != "2024-03" {
		t.Fatalf("unexpected trade period %d/%d/%s", shipment.TradeYear, shipment.TradeMonthNumber, shipment.TradeMonth)
	}
	if shipment.ArrivalDate == nil || !shipment.ArrivalDate.Equal(*shipment.ShipmentDate) {
		t.Fatalf("expected cross-filled arrival date")
	}
}

func TestChunk(t *testing.T) {
	chunks := chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(chunks) != 3 || len(chunks[2]) != 1 || chunks[2][0] != 5 {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
	if chunk([]int{}, 3) != nil || chunk([]int{1}, 0) != nil {
		t.Fatalf("expected nil for empty input or size")
	}
}
