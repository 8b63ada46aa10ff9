package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Shipment is the persisted form of an enriched trade record.
type Shipment struct {
	ID                   uuid.UUID  `json:"id"`
	OrganizationID       uuid.UUID  `json:"organization_id"`
	ImportJobID          uuid.UUID  `json:"import_job_id"`
	CompanyName          string     `json:"company_name"`
	CompanyKey           string     `json:"company_key"`
	ShipperName          *string    `json:"shipper_name,omitempty"`
	ConsigneeName        *string    `json:"consignee_name,omitempty"`
	OriginCountry        string     `json:"origin_country"`
	DestinationCountry   string     `json:"destination_country"`
	OriginState          *string    `json:"origin_state,omitempty"`
	DestinationState     string     `json:"destination_state"`
	OriginCity           *string    `json:"origin_city,omitempty"`
	DestinationCity      *string    `json:"destination_city,omitempty"`
	OriginPort           *string    `json:"origin_port,omitempty"`
	DestinationPort      *string    `json:"destination_port,omitempty"`
	HSCode               string     `json:"hs_code"`
	CommodityCode        string     `json:"commodity_code"`
	CommodityDescription string     `json:"commodity_description"`
	CommodityCategory    string     `json:"commodity_category"`
	TransportationMode   string     `json:"transportation_mode"`
	TransportMode        string     `json:"transport_mode"`
	CarrierName          *string    `json:"carrier_name,omitempty"`
	VesselName           *string    `json:"vessel_name,omitempty"`
	BillOfLading         *string    `json:"bill_of_lading,omitempty"`
	WeightKg             *float64   `json:"weight_kg,omitempty"`
	ValueUSD             *float64   `json:"value_usd,omitempty"`
	ShipmentDate         *time.Time `json:"shipment_date,omitempty"`
	ArrivalDate          *time.Time `json:"arrival_date,omitempty"`
	TradeMonth           string     `json:"trade_month"`
	TradeYear            int        `json:"trade_year"`
	TradeMonthNumber     int        `json:"trade_month_number"`
	CreatedAt            time.Time  `json:"created_at"`
}

// DuplicateKey identifies a shipment for duplicate suppression within a tenant.
type DuplicateKey struct {
	OrganizationID uuid.UUID
	CompanyKey     string
	ShipmentDate   *time.Time
}

// String renders the key for in-memory sets.
func (k DuplicateKey) String() string {
	date := "-"
	if k.ShipmentDate != nil {
		date = k.ShipmentDate.Format("2006-01-02")
	}
	return k.OrganizationID.String() + "|" + k.CompanyKey + "|" + date
}

// Key returns the duplicate detection key of the shipment.
func (s Shipment) Key() DuplicateKey {
	return DuplicateKey{
		OrganizationID: s.OrganizationID,
		CompanyKey:     s.CompanyKey,
		ShipmentDate:   s.ShipmentDate,
	}
}

// NormalizeCompanyKey lowercases a company name and collapses inner whitespace.
func NormalizeCompanyKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
