package ingestion

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rpattn/tradeflow/internal/domain"

	"github.com/xuri/excelize/v2"
)

var (
	timeLayouts = []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006/01/02",
		"01/02/2006",
		"1/2/2006",
		"01/02/06",
		"02.01.2006",
		"02-01-2006",
		"02-Jan-2006",
		"2-Jan-2006",
		"02 Jan 2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"20060102",
	}

	// Excel serial day numbers outside this range are treated as plain numbers.
	minExcelSerial = 1.0
	maxExcelSerial = 2958465.0
)

// fieldAliases maps column names, lowercased and stripped to alphanumerics, to canonical fields.
var fieldAliases = map[string]domain.Field{
	"shippername":          domain.FieldShipperName,
	"shipper":              domain.FieldShipperName,
	"shipperfullname":      domain.FieldShipperName,
	"shippercompany":       domain.FieldShipperName,
	"exporter":             domain.FieldShipperName,
	"exportername":         domain.FieldShipperName,
	"supplier":             domain.FieldShipperName,
	"suppliername":         domain.FieldShipperName,
	"seller":               domain.FieldShipperName,
	"consigneename":        domain.FieldConsigneeName,
	"consignee":            domain.FieldConsigneeName,
	"consigneefullname":    domain.FieldConsigneeName,
	"importer":             domain.FieldConsigneeName,
	"importername":         domain.FieldConsigneeName,
	"buyer":                domain.FieldConsigneeName,
	"buyername":            domain.FieldConsigneeName,
	"notifyparty":          domain.FieldConsigneeName,
	"companyname":          domain.FieldCompanyName,
	"company":              domain.FieldCompanyName,
	"companyfullname":      domain.FieldCompanyName,
	"organisation":         domain.FieldCompanyName,
	"organization":         domain.FieldCompanyName,
	"origincountry":        domain.FieldOriginCountry,
	"countryoforigin":      domain.FieldOriginCountry,
	"shippercountry":       domain.FieldOriginCountry,
	"exportcountry":        domain.FieldOriginCountry,
	"fromcountry":          domain.FieldOriginCountry,
	"origin":               domain.FieldOriginCountry,
	"destinationcountry":   domain.FieldDestinationCountry,
	"countryofdestination": domain.FieldDestinationCountry,
	"consigneecountry":     domain.FieldDestinationCountry,
	"importcountry":        domain.FieldDestinationCountry,
	"tocountry":            domain.FieldDestinationCountry,
	"destination":          domain.FieldDestinationCountry,
	"originstate":          domain.FieldOriginState,
	"shipperstate":         domain.FieldOriginState,
	"fromstate":            domain.FieldOriginState,
	"destinationstate":     domain.FieldDestinationState,
	"consigneestate":       domain.FieldDestinationState,
	"tostate":              domain.FieldDestinationState,
	"state":                domain.FieldDestinationState,
	"origincity":           domain.FieldOriginCity,
	"shippercity":          domain.FieldOriginCity,
	"fromcity":             domain.FieldOriginCity,
	"destinationcity":      domain.FieldDestinationCity,
	"consigneecity":        domain.FieldDestinationCity,
	"tocity":               domain.FieldDestinationCity,
	"city":                 domain.FieldDestinationCity,
	"originport":           domain.FieldOriginPort,
	"portoflading":         domain.FieldOriginPort,
	"portofloading":        domain.FieldOriginPort,
	"loadingport":          domain.FieldOriginPort,
	"foreignport":          domain.FieldOriginPort,
	"destinationport":      domain.FieldDestinationPort,
	"portofunlading":       domain.FieldDestinationPort,
	"portofdischarge":      domain.FieldDestinationPort,
	"dischargeport":        domain.FieldDestinationPort,
	"usport":               domain.FieldDestinationPort,
	"hscode":               domain.FieldHSCode,
	"hs":                   domain.FieldHSCode,
	"hts":                  domain.FieldHSCode,
	"htscode":              domain.FieldHSCode,
	"harmonizedcode":       domain.FieldHSCode,
	"tariffcode":           domain.FieldHSCode,
	"commoditycode":        domain.FieldHSCode,
	"commoditydescription": domain.FieldCommodityDescription,
	"commodity":            domain.FieldCommodityDescription,
	"description":          domain.FieldCommodityDescription,
	"productdescription":   domain.FieldCommodityDescription,
	"goodsdescription":     domain.FieldCommodityDescription,
	"product":              domain.FieldCommodityDescription,
	"cargodescription":     domain.FieldCommodityDescription,
	"transportationmode":   domain.FieldTransportationMode,
	"transportmode":        domain.FieldTransportationMode,
	"modeoftransport":      domain.FieldTransportationMode,
	"shipmentmode":         domain.FieldTransportationMode,
	"mode":                 domain.FieldTransportationMode,
	"carriername":          domain.FieldCarrierName,
	"carrier":              domain.FieldCarrierName,
	"shippingline":         domain.FieldCarrierName,
	"vesselname":           domain.FieldVesselName,
	"vessel":               domain.FieldVesselName,
	"ship":                 domain.FieldVesselName,
	"billoflading":         domain.FieldBillOfLading,
	"billofladingnumber":   domain.FieldBillOfLading,
	"bol":                  domain.FieldBillOfLading,
	"bolnumber":            domain.FieldBillOfLading,
	"bl":                   domain.FieldBillOfLading,
	"blnumber":             domain.FieldBillOfLading,
	"weightkg":             domain.FieldWeightKg,
	"weight":               domain.FieldWeightKg,
	"grossweight":          domain.FieldWeightKg,
	"grossweightkg":        domain.FieldWeightKg,
	"netweight":            domain.FieldWeightKg,
	"kg":                   domain.FieldWeightKg,
	"kilograms":            domain.FieldWeightKg,
	"valueusd":             domain.FieldValueUSD,
	"value":                domain.FieldValueUSD,
	"usdvalue":             domain.FieldValueUSD,
	"declaredvalue":        domain.FieldValueUSD,
	"totalvalue":           domain.FieldValueUSD,
	"customsvalue":         domain.FieldValueUSD,
	"fobvalue":             domain.FieldValueUSD,
	"shipmentdate":         domain.FieldShipmentDate,
	"shipdate":             domain.FieldShipmentDate,
	"shippeddate":          domain.FieldShipmentDate,
	"departuredate":        domain.FieldShipmentDate,
	"exportdate":           domain.FieldShipmentDate,
	"date":                 domain.FieldShipmentDate,
	"arrivaldate":          domain.FieldArrivalDate,
	"arrival":              domain.FieldArrivalDate,
	"importdate":           domain.FieldArrivalDate,
	"eta":                  domain.FieldArrivalDate,
	"deliverydate":         domain.FieldArrivalDate,
}

// NormalizeFieldName maps a source column name onto the canonical vocabulary.
func NormalizeFieldName(raw string) (domain.Field, bool) {
	key := normalizeKey(raw)
	if key == "" {
		return "", false
	}
	field, ok := fieldAliases[key]
	return field, ok
}

func normalizeKey(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToLower(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Coerce converts a raw cell into the value type of field. Unusable input or an unknown field yields an absent value.
func Coerce(raw string, field domain.Field) (domain.Value, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !field.Valid() {
		return domain.Value{}, false
	}
	switch {
	case field.IsNumeric():
		n, ok := parseNumber(raw)
		if !ok {
			return domain.Value{}, false
		}
		return domain.NumberValue(n), true
	case field.IsDate():
		t, ok := parseDate(raw)
		if !ok {
			return domain.Value{}, false
		}
		return domain.DateValue(t), true
	default:
		return domain.StringValue(raw), true
	}
}

func parseNumber(raw string) (float64, bool) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial >= minExcelSerial && serial <= maxExcelSerial {
		ts, convErr := excelize.ExcelDateToTime(serial, false)
		if convErr == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// NormalizeRecord maps a raw row onto canonical fields. When two columns share a field the first non-empty value wins.
func NormalizeRecord(raw RawRecord) domain.TradeRecord {
	record := domain.NewTradeRecord(raw.RowNumber, raw.Map())
	for _, col := range raw.Columns {
		field, ok := NormalizeFieldName(col.Name)
		if !ok || record.Has(field) {
			continue
		}
		value, ok := Coerce(col.Value, field)
		if !ok {
			continue
		}
		record.Set(field, value)
	}
	return record
}
