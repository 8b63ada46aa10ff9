package ingestion

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/rpattn/tradeflow/internal/domain"
)

// Destination is a downstream table and the fields it cannot accept empty.
type Destination struct {
	Name     string
	Required []domain.Field
}

// Destinations lists every table fed by an import.
var Destinations = []Destination{
	{
		Name: "trade_shipments",
		Required: []domain.Field{
			domain.FieldCompanyName,
			domain.FieldTransportationMode,
			domain.FieldOriginCountry,
			domain.FieldDestinationCountry,
			domain.FieldHSCode,
		},
	},
	{
		Name: "trade_analytics",
		Required: []domain.Field{
			domain.FieldOriginCountry,
			domain.FieldDestinationCountry,
			domain.FieldHSCode,
			domain.FieldTradeMonth,
			domain.FieldYear,
			domain.FieldMonth,
		},
	},
	{
		Name: "commodity_flows",
		Required: []domain.Field{
			domain.FieldHSCode,
			domain.FieldCommodityCode,
			domain.FieldCommodityDescription,
			domain.FieldCommodityCategory,
		},
	},
	{
		Name: "regional_trade",
		Required: []domain.Field{
			domain.FieldDestinationState,
			domain.FieldTransportMode,
			domain.FieldYear,
			domain.FieldMonth,
		},
	},
}

var tradeMonthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// RequiredFields returns the union of mandatory fields across destinations, in first-seen order.
func RequiredFields() []domain.Field {
	seen := make(map[domain.Field]struct{})
	var fields []domain.Field
	for _, dest := range Destinations {
		for _, field := range dest.Required {
			if _, ok := seen[field]; ok {
				continue
			}
			seen[field] = struct{}{}
			fields = append(fields, field)
		}
	}
	return fields
}

// ValidationIssue is one failed check, rendered as "<destination>.<field>: <reason>".
type ValidationIssue struct {
	Destination string
	Field       domain.Field
	Reason      string
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("%s.%s: %s", i.Destination, i.Field, i.Reason)
}

// ValidationResult reports every check a record failed.
type ValidationResult struct {
	Issues []ValidationIssue
}

// Valid reports whether the record passed every destination.
func (r ValidationResult) Valid() bool {
	return len(r.Issues) == 0
}

// Error joins the issues into one row error message.
func (r ValidationResult) Error() string {
	parts := make([]string, len(r.Issues))
	for i, issue := range r.Issues {
		parts[i] = issue.String()
	}
	return strings.Join(parts, "; ")
}

// Validator checks records against every destination contract.
type Validator struct {
	destinations []Destination
}

// NewValidator builds a validator for the given destinations, or all of them when none are passed.
func NewValidator(destinations ...Destination) *Validator {
	if len(destinations) == 0 {
		destinations = Destinations
	}
	return &Validator{destinations: destinations}
}

// Validate checks one record.
func (v *Validator) Validate(record domain.TradeRecord) ValidationResult {
	var result ValidationResult
	for _, dest := range v.destinations {
		for _, field := range dest.Required {
			if reason := checkField(record, field); reason != "" {
				result.Issues = append(result.Issues, ValidationIssue{
					Destination: dest.Name,
					Field:       field,
					Reason:      reason,
				})
			}
		}
	}
	return result
}

// Rejection is a record dropped by validation.
type Rejection struct {
	Record domain.TradeRecord
	Result ValidationResult
}

// Partition splits records into those that passed and those that did not, keeping input order.
func (v *Validator) Partition(records []domain.TradeRecord) ([]domain.TradeRecord, []Rejection) {
	valid := make([]domain.TradeRecord, 0, len(records))
	var rejected []Rejection
	for _, record := range records {
		result := v.Validate(record)
		if result.Valid() {
			valid = append(valid, record)
			continue
		}
		rejected = append(rejected, Rejection{Record: record, Result: result})
	}
	return valid, rejected
}

func checkField(record domain.TradeRecord, field domain.Field) string {
	value, ok := record.Get(field)
	if !ok {
		return "missing"
	}

	switch field {
	case domain.FieldYear:
		n, ok := value.Number()
		if !ok || n != math.Trunc(n) {
			return "must be a whole number"
		}
		if n < 1900 || n > 2100 {
			return fmt.Sprintf("%v out of range 1900-2100", n)
		}
	case domain.FieldMonth:
		n, ok := value.Number()
		if !ok || n != math.Trunc(n) {
			return "must be a whole number"
		}
		if n < 1 || n > 12 {
			return fmt.Sprintf("%v out of range 1-12", n)
		}
	case domain.FieldTradeMonth:
		if !tradeMonthPattern.MatchString(strings.TrimSpace(value.String())) {
			return fmt.Sprintf("%q is not YYYY-MM", value.String())
		}
	default:
		if value.Kind() == domain.ValueString && strings.TrimSpace(value.String()) == "" {
			return "blank"
		}
	}
	return ""
}
