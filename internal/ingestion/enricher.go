package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rpattn/tradeflow/internal/domain"
)

const (
	// DefaultReportInterval is how many records pass between enrichment progress reports.
	DefaultReportInterval = 100

	placeholderHSCode     = "0000000000"
	placeholderCategory   = "00"
	unknownValue          = "Unknown"
	unknownCommodity      = "Unknown Commodity"
	tradeDescriptionRunes = 30
	transportModeOcean    = "ocean"
	transportModeAir      = "air"
)

// EnrichProgressFunc receives the number of records enriched so far.
type EnrichProgressFunc func(ctx context.Context, done int, total int) error

// EnrichFailure is a record that could not be completed.
type EnrichFailure struct {
	Record domain.TradeRecord
	Err    error
}

// Enricher fills every field a downstream destination requires.
type Enricher struct {
	now            func() time.Time
	reportInterval int
	required       []domain.Field
}

// NewEnricher builds an enricher. now supplies the fallback trade month.
func NewEnricher(now func() time.Time, reportInterval int) *Enricher {
	if now == nil {
		now = time.Now
	}
	if reportInterval <= 0 {
		reportInterval = DefaultReportInterval
	}
	return &Enricher{
		now:            now,
		reportInterval: reportInterval,
		required:       RequiredFields(),
	}
}

// Enrich completes records in order. Progress is reported every report interval and once at the end.
func (e *Enricher) Enrich(ctx context.Context, records []domain.TradeRecord, onProgress EnrichProgressFunc) ([]domain.TradeRecord, []EnrichFailure, error) {
	enriched := make([]domain.TradeRecord, 0, len(records))
	var failures []EnrichFailure
	total := len(records)
	now := e.now()

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		out, err := e.enrichRecord(record, i+1, now)
		if err != nil {
			failures = append(failures, EnrichFailure{Record: record, Err: err})
		} else {
			enriched = append(enriched, out)
		}

		done := i + 1
		if onProgress != nil && (done%e.reportInterval == 0 || done == total) {
			if err := onProgress(ctx, done, total); err != nil {
				return nil, nil, err
			}
		}
	}
	return enriched, failures, nil
}

// EnrichRecord completes a single record found at 1-based position n.
func (e *Enricher) EnrichRecord(record domain.TradeRecord, n int) (domain.TradeRecord, error) {
	return e.enrichRecord(record, n, e.now())
}

func (e *Enricher) enrichRecord(source domain.TradeRecord, n int, now time.Time) (domain.TradeRecord, error) {
	record := source.Clone()

	record.Set(domain.FieldCompanyName, domain.StringValue(companyName(source, n)))

	mode := transportModeOcean
	if strings.Contains(strings.ToLower(source.String(domain.FieldTransportationMode)), transportModeAir) {
		mode = transportModeAir
	}
	record.Set(domain.FieldTransportationMode, domain.StringValue(mode))
	record.Set(domain.FieldTransportMode, domain.StringValue(mode))

	setDefault(&record, domain.FieldOriginCountry, unknownValue)
	setDefault(&record, domain.FieldDestinationCountry, unknownValue)
	setDefault(&record, domain.FieldHSCode, placeholderHSCode)
	setDefault(&record, domain.FieldCommodityDescription, unknownCommodity)
	setDefault(&record, domain.FieldDestinationState, unknownValue)

	hsCode := record.String(domain.FieldHSCode)
	record.Set(domain.FieldCommodityCode, domain.StringValue(hsCode))
	record.Set(domain.FieldCommodityCategory, domain.StringValue(commodityCategory(hsCode)))

	shipment, hasShipment := record.Date(domain.FieldShipmentDate)
	arrival, hasArrival := record.Date(domain.FieldArrivalDate)
	switch {
	case hasShipment && !hasArrival:
		record.Set(domain.FieldArrivalDate, domain.DateValue(shipment))
	case hasArrival && !hasShipment:
		record.Set(domain.FieldShipmentDate, domain.DateValue(arrival))
	}

	reference := now
	switch {
	case hasShipment:
		reference = shipment
	case hasArrival:
		reference = arrival
	}
	record.Set(domain.FieldTradeMonth, domain.StringValue(reference.Format("2006-01")))
	record.Set(domain.FieldYear, domain.NumberValue(float64(reference.Year())))
	record.Set(domain.FieldMonth, domain.NumberValue(float64(reference.Month())))

	var missing []string
	for _, field := range e.required {
		if !record.Has(field) {
			missing = append(missing, string(field))
		}
	}
	if len(missing) > 0 {
		return domain.TradeRecord{}, fmt.Errorf("enrichment left mandatory fields empty: %s", strings.Join(missing, ", "))
	}
	return record, nil
}

func companyName(record domain.TradeRecord, n int) string {
	for _, field := range []domain.Field{domain.FieldShipperName, domain.FieldConsigneeName, domain.FieldCompanyName} {
		if name := record.String(field); name != "" {
			return name
		}
	}
	origin := record.String(domain.FieldOriginCountry)
	description := record.String(domain.FieldCommodityDescription)
	if origin != "" && description != "" {
		return fmt.Sprintf("%s Trader - %s", origin, firstRunes(description, tradeDescriptionRunes))
	}
	return fmt.Sprintf("Unknown Company %d", n)
}

func commodityCategory(hsCode string) string {
	digits := make([]rune, 0, 2)
	for _, r := range hsCode {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
			if len(digits) == 2 {
				return string(digits)
			}
		}
	}
	return placeholderCategory
}

func setDefault(record *domain.TradeRecord, field domain.Field, value string) {
	if !record.Has(field) {
		record.Set(field, domain.StringValue(value))
	}
}

func firstRunes(value string, n int) string {
	runes := []rune(value)
	if len(runes) <= n {
		return value
	}
	return strings.TrimSpace(string(runes[:n]))
}
