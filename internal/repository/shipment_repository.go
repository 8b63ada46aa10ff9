package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/tradeflow/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type shipmentRepository struct {
	pool *pgxpool.Pool
}

// NewShipmentRepository wires a repository for trade shipments.
func NewShipmentRepository(pool *pgxpool.Pool) ShipmentRepository {
	return &shipmentRepository{pool: pool}
}

func (r *shipmentRepository) Exists(ctx context.Context, key domain.DuplicateKey) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(
		ctx,
		`SELECT EXISTS (
			SELECT 1 FROM trade_shipments
			WHERE organization_id = $1
			  AND company_key = $2
			  AND shipment_date IS NOT DISTINCT FROM $3
		)`,
		key.OrganizationID,
		key.CompanyKey,
		dateParam(key.ShipmentDate),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check shipment exists: %w", err)
	}
	return exists, nil
}

func (r *shipmentRepository) Insert(ctx context.Context, s domain.Shipment) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CompanyKey == "" {
		s.CompanyKey = domain.NormalizeCompanyKey(s.CompanyName)
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO trade_shipments (
			id, organization_id, import_job_id, company_name, company_key, shipper_name, consignee_name,
			origin_country, destination_country, origin_state, destination_state, origin_city, destination_city,
			origin_port, destination_port, hs_code, commodity_code, commodity_description, commodity_category,
			transportation_mode, transport_mode, carrier_name, vessel_name, bill_of_lading, weight_kg, value_usd,
			shipment_date, arrival_date, trade_month, trade_year, trade_month_number
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31
		)`,
		s.ID,
		s.OrganizationID,
		s.ImportJobID,
		s.CompanyName,
		s.CompanyKey,
		s.ShipperName,
		s.ConsigneeName,
		s.OriginCountry,
		s.DestinationCountry,
		s.OriginState,
		s.DestinationState,
		s.OriginCity,
		s.DestinationCity,
		s.OriginPort,
		s.DestinationPort,
		s.HSCode,
		s.CommodityCode,
		s.CommodityDescription,
		s.CommodityCategory,
		s.TransportationMode,
		s.TransportMode,
		s.CarrierName,
		s.VesselName,
		s.BillOfLading,
		s.WeightKg,
		s.ValueUSD,
		dateParam(s.ShipmentDate),
		dateParam(s.ArrivalDate),
		s.TradeMonth,
		s.TradeYear,
		s.TradeMonthNumber,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateShipment
		}
		return fmt.Errorf("insert shipment: %w", err)
	}
	return nil
}

func dateParam(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}
