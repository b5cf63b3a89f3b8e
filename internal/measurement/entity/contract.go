package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Contract is owned by the contracts module; this service only reads it to
// resolve tenant ownership and the technical retention percentage.
type Contract struct {
	ID                  string          `json:"id" gorm:"primaryKey;size:32"`
	TenantID            string          `json:"tenant_id" gorm:"size:32;not null;index"`
	Code                string          `json:"code" gorm:"size:50"`
	ContractorName      string          `json:"contractor_name" gorm:"size:200"`
	TechnicalRetention  decimal.Decimal `json:"technical_retention_pct" gorm:"type:decimal(5,2);default:0"`
	Status              string          `json:"status" gorm:"size:20;default:active"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`

	Items []ContractItem `json:"items,omitempty" gorm:"foreignKey:ContractID"`
}

func (Contract) TableName() string {
	return "contracts"
}

// ContractItem is a priced line of the contracted scope. Immutable by
// convention once a posted bulletin references it.
type ContractItem struct {
	ID                 string          `json:"id" gorm:"primaryKey;size:32"`
	ContractID         string          `json:"contract_id" gorm:"size:32;not null;index"`
	ItemNumber         string          `json:"item_number" gorm:"size:20"`
	ServiceName        string          `json:"service_name" gorm:"size:200;not null"`
	Unit               string          `json:"unit" gorm:"size:10;not null"`
	UnitPrice          decimal.Decimal `json:"unit_price" gorm:"type:decimal(18,4);not null"`
	ContractedQuantity decimal.Decimal `json:"contracted_quantity" gorm:"type:decimal(18,4);not null"`
	SortOrder          int             `json:"sort_order" gorm:"default:0"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (ContractItem) TableName() string {
	return "contract_items"
}

// Measurement units accepted on contract and additive lines.
var ValidUnits = map[string]bool{
	"M2":   true,
	"M3":   true,
	"ML":   true,
	"KG":   true,
	"VB":   true,
	"DIA":  true,
	"UNID": true,
	"M":    true,
	"TON":  true,
	"L":    true,
}
