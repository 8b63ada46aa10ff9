package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestImportJobStatusTransitions(t *testing.T) {
	chain := []ImportJobStatus{
		ImportJobStatusQueued,
		ImportJobStatusProcessing,
		ImportJobStatusParsed,
		ImportJobStatusEnriching,
		ImportJobStatusProcessingBatches,
		ImportJobStatusCompleted,
	}
	for i := 0; i < len(chain)-1; i++ {
		if !chain[i].CanTransitionTo(chain[i+1]) {
			t.Fatalf("expected %s -> %s to be allowed", chain[i], chain[i+1])
		}
		if !chain[i].CanTransitionTo(ImportJobStatusError) {
			t.Fatalf("expected %s -> error to be allowed", chain[i])
		}
		if i+2 < len(chain) && chain[i].CanTransitionTo(chain[i+2]) {
			t.Fatalf("expected %s -> %s to be rejected", chain[i], chain[i+2])
		}
	}

	for _, terminal := range []ImportJobStatus{ImportJobStatusCompleted, ImportJobStatusError} {
		if !terminal.Terminal() {
			t.Fatalf("expected %s to be terminal", terminal)
		}
		if terminal.CanTransitionTo(ImportJobStatusError) || terminal.CanTransitionTo(ImportJobStatusQueued) {
			t.Fatalf("terminal status %s must not transition", terminal)
		}
	}

	if ImportJobStatus("paused").Valid() {
		t.Fatalf("unknown status reported valid")
	}
	if ImportJobStatusProcessing.CanTransitionTo(ImportJobStatusQueued) {
		t.Fatalf("backwards transition allowed")
	}
}

func TestParseFileFormat(t *testing.T) {
	cases := map[string]FileFormat{
		"CSV":             FileFormatCSV,
		".csv":            FileFormatCSV,
		"text/xml":        FileFormatXML,
		" xlsx ":          FileFormatXLSX,
		"xls":             FileFormatXLSX,
		"excel":           FileFormatXLSX,
		"application/xml": FileFormatXML,
	}
	for in, want := range cases {
		got, ok := ParseFileFormat(in)
		if !ok || got != want {
			t.Fatalf("ParseFileFormat(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseFileFormat("pdf"); ok {
		t.Fatalf("pdf must not be supported")
	}

	if got, ok := FileFormatFromName("Manifest.XLSX"); !ok || got != FileFormatXLSX {
		t.Fatalf("unexpected format from name: %q %v", got, ok)
	}
	if _, ok := FileFormatFromName("README"); ok {
		t.Fatalf("name without extension must not resolve")
	}
}

func TestMetadataAndErrorDetailsJSON(t *testing.T) {
	meta := ProcessingMetadata{BatchSize: 500, TotalBatches: 3, ProgressPercentage: 66.67, RecordsParsed: 1200}
	raw, err := meta.ToJSON()
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	back, err := ProcessingMetadataFromJSON(raw)
	if err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	if back.TotalBatches != 3 || back.RecordsParsed != 1200 || back.Analysis != nil {
		t.Fatalf("unexpected metadata: %+v", back)
	}
	if empty, err := ProcessingMetadataFromJSON(nil); err != nil || empty.BatchSize != 0 {
		t.Fatalf("expected zero metadata for empty input, got %+v %v", empty, err)
	}

	var nilDetails *ErrorDetails
	if raw, err := nilDetails.ToJSON(); err != nil || raw != nil {
		t.Fatalf("nil details should marshal to nil, got %s %v", raw, err)
	}
	if details, err := ErrorDetailsFromJSON([]byte("null")); err != nil || details != nil {
		t.Fatalf("null details should hydrate to nil, got %+v %v", details, err)
	}
}

func TestImportJobAccounted(t *testing.T) {
	job := ImportJob{ProcessedRecords: 7, DuplicateRecords: 2, ErrorRecords: 1}
	if job.Accounted() != 10 {
		t.Fatalf("expected 10 accounted records, got %d", job.Accounted())
	}
}

func TestDuplicateKey(t *testing.T) {
	org := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	shipment := Shipment{OrganizationID: org, CompanyKey: NormalizeCompanyKey("  ACME   Co "), ShipmentDate: &date}
	if got := shipment.Key().String(); got != org.String()+"|acme co|2024-03-01" {
		t.Fatalf("unexpected key %q", got)
	}
	undated := DuplicateKey{OrganizationID: org, CompanyKey: "acme co"}
	if got := undated.String(); got != org.String()+"|acme co|-" {
		t.Fatalf("unexpected undated key %q", got)
	}
}

func TestErrorCodeRowScoped(t *testing.T) {
	for _, code := range []ErrorCode{ErrorCodeRowParseError, ErrorCodeRowValidationFailure, ErrorCodeRowWriteError} {
		if !code.RowScoped() {
			t.Fatalf("%s should be row scoped", code)
		}
	}
	for _, code := range []ErrorCode{ErrorCodeNoValidRecords, ErrorCodeInternal, ErrorCodeDownloadFailed} {
		if code.RowScoped() {
			t.Fatalf("%s should be job scoped", code)
		}
	}
}
