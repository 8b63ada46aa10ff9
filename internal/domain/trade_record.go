package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Field is a canonical trade record attribute.
type Field string

const (
	FieldShipperName          Field = "shipper_name"
	FieldConsigneeName        Field = "consignee_name"
	FieldCompanyName          Field = "company_name"
	FieldOriginCountry        Field = "origin_country"
	FieldDestinationCountry   Field = "destination_country"
	FieldOriginState          Field = "origin_state"
	FieldDestinationState     Field = "destination_state"
	FieldOriginCity           Field = "origin_city"
	FieldDestinationCity      Field = "destination_city"
	FieldOriginPort           Field = "origin_port"
	FieldDestinationPort      Field = "destination_port"
	FieldHSCode               Field = "hs_code"
	FieldCommodityDescription Field = "commodity_description"
	FieldTransportationMode   Field = "transportation_mode"
	FieldCarrierName          Field = "carrier_name"
	FieldVesselName           Field = "vessel_name"
	FieldBillOfLading         Field = "bill_of_lading"
	FieldWeightKg             Field = "weight_kg"
	FieldValueUSD             Field = "value_usd"
	FieldShipmentDate         Field = "shipment_date"
	FieldArrivalDate          Field = "arrival_date"

	// Derived during enrichment.
	FieldCommodityCode     Field = "commodity_code"
	FieldCommodityCategory Field = "commodity_category"
	FieldTransportMode     Field = "transport_mode"
	FieldTradeMonth        Field = "trade_month"
	FieldYear              Field = "year"
	FieldMonth             Field = "month"
)

// SourceFields lists the fields a source column may normalize to.
var SourceFields = []Field{
	FieldShipperName,
	FieldConsigneeName,
	FieldCompanyName,
	FieldOriginCountry,
	FieldDestinationCountry,
	FieldOriginState,
	FieldDestinationState,
	FieldOriginCity,
	FieldDestinationCity,
	FieldOriginPort,
	FieldDestinationPort,
	FieldHSCode,
	FieldCommodityDescription,
	FieldTransportationMode,
	FieldCarrierName,
	FieldVesselName,
	FieldBillOfLading,
	FieldWeightKg,
	FieldValueUSD,
	FieldShipmentDate,
	FieldArrivalDate,
}

// DerivedFields lists fields that only enrichment produces.
var DerivedFields = []Field{
	FieldCommodityCode,
	FieldCommodityCategory,
	FieldTransportMode,
	FieldTradeMonth,
	FieldYear,
	FieldMonth,
}

var knownFields = func() map[Field]struct{} {
	known := make(map[Field]struct{}, len(SourceFields)+len(DerivedFields))
	for _, f := range SourceFields {
		known[f] = struct{}{}
	}
	for _, f := range DerivedFields {
		known[f] = struct{}{}
	}
	return known
}()

// Valid reports whether the field belongs to the canonical vocabulary.
func (f Field) Valid() bool {
	_, ok := knownFields[f]
	return ok
}

// IsNumeric reports whether raw values for the field coerce to numbers.
func (f Field) IsNumeric() bool {
	name := string(f)
	return strings.Contains(name, "weight") || strings.Contains(name, "value")
}

// IsDate reports whether raw values for the field coerce to calendar dates.
func (f Field) IsDate() bool {
	return strings.Contains(string(f), "date")
}

// ValueKind tags the payload carried by a Value.
type ValueKind uint8

const (
	ValueAbsent ValueKind = iota
	ValueString
	ValueNumber
	ValueDate
)

func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "string"
	case ValueNumber:
		return "number"
	case ValueDate:
		return "date"
	default:
		return "absent"
	}
}

// Value is a typed field value. The zero Value is absent.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	date time.Time
}

// StringValue wraps a string.
func StringValue(s string) Value {
	return Value{kind: ValueString, str: s}
}

// NumberValue wraps a number.
func NumberValue(n float64) Value {
	return Value{kind: ValueNumber, num: n}
}

// DateValue wraps a calendar date, truncated to midnight UTC.
func DateValue(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: ValueDate, date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (v Value) Kind() ValueKind { return v.kind }

// Present reports whether the value carries a usable payload. Blank strings are not present.
func (v Value) Present() bool {
	switch v.kind {
	case ValueString:
		return strings.TrimSpace(v.str) != ""
	case ValueNumber, ValueDate:
		return true
	default:
		return false
	}
}

func (v Value) Str() (string, bool) {
	if v.kind != ValueString {
		return "", false
	}
	return v.str, true
}

func (v Value) Number() (float64, bool) {
	if v.kind != ValueNumber {
		return 0, false
	}
	return v.num, true
}

func (v Value) Date() (time.Time, bool) {
	if v.kind != ValueDate {
		return time.Time{}, false
	}
	return v.date, true
}

// String renders the value for logs and raw error payloads.
func (v Value) String() string {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case ValueDate:
		return v.date.Format("2006-01-02")
	default:
		return ""
	}
}

// TradeRecord is one shipment line moving through the pipeline.
type TradeRecord struct {
	RowNumber int
	Raw       map[string]string
	fields    map[Field]Value
}

// NewTradeRecord creates an empty record for the given source row.
func NewTradeRecord(rowNumber int, raw map[string]string) TradeRecord {
	return TradeRecord{
		RowNumber: rowNumber,
		Raw:       raw,
		fields:    make(map[Field]Value),
	}
}

// Set stores a value; absent values remove the field.
func (r *TradeRecord) Set(f Field, v Value) {
	if r.fields == nil {
		r.fields = make(map[Field]Value)
	}
	if !v.Present() {
		delete(r.fields, f)
		return
	}
	r.fields[f] = v
}

func (r TradeRecord) Get(f Field) (Value, bool) {
	v, ok := r.fields[f]
	if !ok || !v.Present() {
		return Value{}, false
	}
	return v, true
}

func (r TradeRecord) Has(f Field) bool {
	_, ok := r.Get(f)
	return ok
}

// String returns the field rendered as text, or "" when absent.
func (r TradeRecord) String(f Field) string {
	v, ok := r.Get(f)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.String())
}

// Number returns the numeric payload of a field.
func (r TradeRecord) Number(f Field) (float64, bool) {
	v, ok := r.Get(f)
	if !ok {
		return 0, false
	}
	return v.Number()
}

// Date returns the date payload of a field.
func (r TradeRecord) Date(f Field) (time.Time, bool) {
	v, ok := r.Get(f)
	if !ok {
		return time.Time{}, false
	}
	return v.Date()
}

// Fields returns the populated fields in lexical order.
func (r TradeRecord) Fields() []Field {
	out := make([]Field, 0, len(r.fields))
	for f, v := range r.fields {
		if v.Present() {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a copy with its own field map. Raw is shared.
func (r TradeRecord) Clone() TradeRecord {
	clone := NewTradeRecord(r.RowNumber, r.Raw)
	for f, v := range r.fields {
		clone.fields[f] = v
	}
	return clone
}
