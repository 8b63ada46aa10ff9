package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/rpattn/tradeflow/internal/domain"
	"github.com/rpattn/tradeflow/internal/repository"
)

const dateLayout = "2006-01-02"

// ShipmentRepository stores trade shipments in SQLite.
type ShipmentRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ repository.ShipmentRepository = (*ShipmentRepository)(nil)

// NewShipmentRepository wires a sql.DB implementation.
func NewShipmentRepository(db *sql.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Exists reports whether a shipment with the same duplicate key is stored.
func (r *ShipmentRepository) Exists(ctx context.Context, key domain.DuplicateKey) (bool, error) {
	where := sq.Eq{
		"organization_id": key.OrganizationID.String(),
		"company_key":     key.CompanyKey,
		"shipment_date":   nil,
	}
	if key.ShipmentDate != nil {
		where["shipment_date"] = key.ShipmentDate.Format(dateLayout)
	}
	query, args, err := sq.Select("1").From("trade_shipments").Where(where).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("check shipment exists: %w", err)
	}
	defer rows.Close()
	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("check shipment exists: %w", err)
	}
	return found, nil
}

// Insert writes one shipment. A unique index collision returns repository.ErrDuplicateShipment.
func (r *ShipmentRepository) Insert(ctx context.Context, s domain.Shipment) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CompanyKey == "" {
		s.CompanyKey = domain.NormalizeCompanyKey(s.CompanyName)
	}

	query, args, err := sq.Insert("trade_shipments").
		SetMap(map[string]any{
			"id":                    s.ID.String(),
			"organization_id":       s.OrganizationID.String(),
			"import_job_id":         s.ImportJobID.String(),
			"company_name":          s.CompanyName,
			"company_key":           s.CompanyKey,
			"shipper_name":          nullString(s.ShipperName),
			"consignee_name":        nullString(s.ConsigneeName),
			"origin_country":        s.OriginCountry,
			"destination_country":   s.DestinationCountry,
			"origin_state":          nullString(s.OriginState),
			"destination_state":     s.DestinationState,
			"origin_city":           nullString(s.OriginCity),
			"destination_city":      nullString(s.DestinationCity),
			"origin_port":           nullString(s.OriginPort),
			"destination_port":      nullString(s.DestinationPort),
			"hs_code":               s.HSCode,
			"commodity_code":        s.CommodityCode,
			"commodity_description": s.CommodityDescription,
			"commodity_category":    s.CommodityCategory,
			"transportation_mode":   s.TransportationMode,
			"transport_mode":        s.TransportMode,
			"carrier_name":          nullString(s.CarrierName),
			"vessel_name":           nullString(s.VesselName),
			"bill_of_lading":        nullString(s.BillOfLading),
			"weight_kg":             nullFloat(s.WeightKg),
			"value_usd":             nullFloat(s.ValueUSD),
			"shipment_date":         formatDate(s.ShipmentDate),
			"arrival_date":          formatDate(s.ArrivalDate),
			"trade_month":           s.TradeMonth,
			"trade_year":            s.TradeYear,
			"trade_month_number":    s.TradeMonthNumber,
			"created_at":            formatTime(r.now()),
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateShipment
		}
		return fmt.Errorf("insert shipment: %w", err)
	}
	return nil
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
