package ingestion

import (
	"errors"
	"testing"
	"time"

	"github.com/rpattn/tradeflow/internal/domain"

	"github.com/xuri/excelize/v2"
)

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name     string
		fileName string
		declared string
		want     domain.FileFormat
		wantErr  bool
	}{
		{name: "extension", fileName: "shipments.CSV", want: domain.FileFormatCSV},
		{name: "declared wins", fileName: "export.txt", declared: "xml", want: domain.FileFormatXML},
		{name: "declared alias", fileName: "upload", declared: "excel", want: domain.FileFormatXLSX},
		{name: "unknown declared falls back to extension", fileName: "a.xlsx", declared: "binary", want: domain.FileFormatXLSX},
		{name: "unsupported", fileName: "report.pdf", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectFormat(tc.fileName, tc.declared)
			if tc.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestParseCSVStripsBOMAndSkipsBlankRows(t *testing.T) {
	payload := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Shipper,Weight\nAcme,10\n,\nGlobex,\"1,200\"\n")...)

	result, err := Parse(payload, domain.FileFormatCSV, ParseOptions{})
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Records))
	}

	first := result.Records[0]
	if first.RowNumber != 2 {
		t.Fatalf("expected first data row on line 2, got %d", first.RowNumber)
	}
	if first.Columns[0].Name != "Shipper" || first.Columns[0].Value != "Acme" {
		t.Fatalf("BOM not stripped from header: %+v", first.Columns)
	}
	second := result.Records[1].Map()
	if second["Weight"] != "1,200" || result.Records[1].RowNumber != 4 {
		t.Fatalf("unexpected second record: %+v", result.Records[1])
	}
}

func TestParseCSVShortRowsPadWithBlanks(t *testing.T) {
	result, err := Parse([]byte("A,B,C\n1\n"), domain.FileFormatCSV, ParseOptions{})
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
	row := result.Records[0].Map()
	if row["A"] != "1" || row["B"] != "" || row["C"] != "" {
		t.Fatalf("unexpected row: %v", row)
	}
}

func TestParseEmptyPayload(t *testing.T) {
	for _, format := range []domain.FileFormat{domain.FileFormatCSV, domain.FileFormatXML, domain.FileFormatXLSX} {
		result, err := Parse(nil, format, ParseOptions{})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", format, err)
		}
		if len(result.Records) != 0 || len(result.Skipped) != 0 {
			t.Fatalf("%s: expected empty result, got %+v", format, result)
		}
	}
}

func TestParseUnknownFormat(t *testing.T) {
	_, err := Parse([]byte("x"), domain.FileFormat("pdf"), ParseOptions{})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestParseXMLFlattensRecords(t *testing.T) {
	payload := []byte(`<?xml version="1.0"?>
<Shipments>
  <Shipment>
    <Shipper>Acme Co</Shipper>
    <Origin><Country>CN</Country></Origin>
    <Weight>1200</Weight>
  </Shipment>
  <Record>
    <Shipper>Globex</Shipper>
  </Record>
  <Shipment>
    <Shipper>  </Shipper>
  </Shipment>
</Shipments>`)

	result, err := Parse(payload, domain.FileFormatXML, ParseOptions{})
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Records))
	}
	first := result.Records[0].Map()
	if first["Shipper"] != "Acme Co" || first["Country"] != "CN" || first["Weight"] != "1200" {
		t.Fatalf("unexpected first record: %v", first)
	}
	if result.Records[0].RowNumber != 3 {
		t.Fatalf("expected record starting on line 3, got %d", result.Records[0].RowNumber)
	}
	if result.Records[1].Map()["Shipper"] != "Globex" {
		t.Fatalf("unexpected second record: %v", result.Records[1].Map())
	}
}

func TestParseXMLSyntaxErrorKeepsEarlierRecords(t *testing.T) {
	payload := []byte(`<shipments>
<shipment><Shipper>Acme</Shipper></shipment>
<shipment><Shipper>Broken</Shiper></shipment>
<shipment><Shipper>Never read</Shipper></shipment>
</shipments>`)

	result, err := Parse(payload, domain.FileFormatXML, ParseOptions{})
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
	if len(result.Skipped) != 1 {
		t.Fatalf("expected 1 skipped row, got %d", len(result.Skipped))
	}
	if result.Skipped[0].RowNumber != 3 {
		t.Fatalf("expected syntax error on line 3, got %d", result.Skipped[0].RowNumber)
	}
}

func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestParseSpreadsheet(t *testing.T) {
	payload := buildWorkbook(t, [][]any{
		{},
		{"Shipper", "Origin Country", "Date"},
		{"Acme Co", "CN", "2024-03-01"},
		{"", "", ""},
		{"Globex", "DE", "2024-04-01"},
	})

	result, err := Parse(payload, domain.FileFormatXLSX, ParseOptions{})
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Records))
	}
	if result.Records[0].RowNumber != 3 || result.Records[1].RowNumber != 5 {
		t.Fatalf("unexpected row numbers: %d, %d", result.Records[0].RowNumber, result.Records[1].RowNumber)
	}
	if got := result.Records[1].Map()["Origin Country"]; got != "DE" {
		t.Fatalf("expected DE, got %q", got)
	}
}

func TestParseSpreadsheetSizeCap(t *testing.T) {
	payload := buildWorkbook(t, [][]any{{"Shipper"}, {"Acme"}})

	_, err := Parse(payload, domain.FileFormatXLSX, ParseOptions{MaxSpreadsheetBytes: int64(len(payload) - 1)})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}

	if _, err := Parse(payload, domain.FileFormatXLSX, ParseOptions{MaxSpreadsheetBytes: int64(len(payload))}); err != nil {
		t.Fatalf("expected payload at the cap to parse, got %v", err)
	}
}

func TestParseSpreadsheetRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("not a zip archive"), domain.FileFormatXLSX, ParseOptions{})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

// buildDatedWorkbook writes two Acme rows whose dates are real date cells: a time.Time value and a
// serial number styled with Excel's built-in short date format.
func buildDatedWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)

	rows := [][]any{
		{"Shipper", "Origin Country", "Destination Country", "Weight", "Date"},
		{"Acme Co", "CN", "US", 1200.5, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"Acme Co", "CN", "US", 800, 45421},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	shortDate, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		t.Fatalf("new style: %v", err)
	}
	if err := f.SetCellStyle(sheet, "E3", "E3", shortDate); err != nil {
		t.Fatalf("set style: %v", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestParseSpreadsheetKeepsDateCells(t *testing.T) {
	result, err := Parse(buildDatedWorkbook(t), domain.FileFormatXLSX, ParseOptions{})
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Records))
	}

	want := []time.Time{
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC),
	}
	for i, raw := range result.Records {
		record := NormalizeRecord(raw)
		got, ok := record.Date(domain.FieldShipmentDate)
		if !ok {
			t.Fatalf("row %d: date cell %q did not normalize", raw.RowNumber, raw.Map()["Date"])
		}
		if !got.Equal(want[i]) {
			t.Fatalf("row %d: expected %s, got %s", raw.RowNumber, want[i].Format("2006-01-02"), got.Format("2006-01-02"))
		}
	}

	weight, ok := NormalizeRecord(result.Records[0]).Number(domain.FieldWeightKg)
	if !ok || weight != 1200.5 {
		t.Fatalf("expected weight 1200.5, got %v %v", weight, ok)
	}
}
