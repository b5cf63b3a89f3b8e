package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bulletin statuses. The status gates which operations are legal; see
// workflow.Next for the approval transitions.
const (
	BulletinStatusDraft              = "draft"
	BulletinStatusSubmitted          = "submitted"
	BulletinStatusPlanningApproved   = "planning_approved"
	BulletinStatusManagementApproved = "management_approved"
	BulletinStatusContractorAgreed   = "contractor_agreed"
	BulletinStatusRejected           = "rejected"
)

// Approval stages, in chain order.
const (
	StagePlanning   = "planning"
	StageManagement = "management"
	StageContractor = "contractor"
)

// Approval actions.
const (
	ActionApproved = "approved"
	ActionRejected = "rejected"
)

// MeasurementBulletin is one periodic billing statement (BM) for a contract.
// Monetary figures are derived at read time, never stored; discount_value is
// the only monetary input persisted on the header.
type MeasurementBulletin struct {
	ID            string          `json:"id" gorm:"primaryKey;size:32"`
	TenantID      string          `json:"tenant_id" gorm:"size:32;not null;index"`
	ContractID    string          `json:"contract_id" gorm:"size:32;not null;uniqueIndex:idx_bulletin_contract_bm,priority:1"`
	BMNumber      int             `json:"bm_number" gorm:"not null;uniqueIndex:idx_bulletin_contract_bm,priority:2"`
	SheetNumber   int             `json:"sheet_number" gorm:"default:1"`
	PeriodStart   time.Time       `json:"period_start" gorm:"not null"`
	PeriodEnd     time.Time       `json:"period_end" gorm:"not null"`
	DueDate       *time.Time      `json:"due_date"`
	DiscountValue decimal.Decimal `json:"discount_value" gorm:"type:decimal(18,4);default:0"`
	Observations  string          `json:"observations" gorm:"type:text"`
	Status        string          `json:"status" gorm:"size:30;not null;default:draft;index"`
	CreatedBy     string          `json:"created_by" gorm:"size:32"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Contract  *Contract             `json:"contract,omitempty" gorm:"foreignKey:ContractID"`
	Items     []MeasurementItem     `json:"items,omitempty" gorm:"foreignKey:BulletinID"`
	Additives []MeasurementAdditive `json:"additives,omitempty" gorm:"foreignKey:BulletinID"`
	Approvals []MeasurementApproval `json:"approvals,omitempty" gorm:"foreignKey:BulletinID"`
}

func (MeasurementBulletin) TableName() string {
	return "measurement_bulletins"
}

// Editable reports whether items and additives may still be replaced.
func (b *MeasurementBulletin) Editable() bool {
	return b.Status == BulletinStatusDraft || b.Status == BulletinStatusRejected
}

// MeasurementItem bills one contract item for the bulletin's period.
// Omitted contract items imply zero quantity.
type MeasurementItem struct {
	ID                 string          `json:"id" gorm:"primaryKey;size:32"`
	BulletinID         string          `json:"bulletin_id" gorm:"size:32;not null;index"`
	ContractItemID     string          `json:"contract_item_id" gorm:"size:32;not null;index"`
	QuantityThisPeriod decimal.Decimal `json:"quantity_this_period" gorm:"type:decimal(18,4);not null;default:0"`
	CreatedAt          time.Time       `json:"created_at"`

	ContractItem *ContractItem `json:"contract_item,omitempty" gorm:"foreignKey:ContractItemID"`
}

func (MeasurementItem) TableName() string {
	return "measurement_items"
}

// MeasurementAdditive is a self-contained extra-contractual line. Its
// contracted quantity is informational only and never accumulated.
type MeasurementAdditive struct {
	ID                 string          `json:"id" gorm:"primaryKey;size:32"`
	BulletinID         string          `json:"bulletin_id" gorm:"size:32;not null;index"`
	ItemNumber         string          `json:"item_number" gorm:"size:20"`
	ServiceName        string          `json:"service_name" gorm:"size:200;not null"`
	Unit               string          `json:"unit" gorm:"size:10;not null"`
	UnitPrice          decimal.Decimal `json:"unit_price" gorm:"type:decimal(18,4);not null"`
	ContractedQuantity decimal.Decimal `json:"contracted_quantity" gorm:"type:decimal(18,4);not null"`
	QuantityThisPeriod decimal.Decimal `json:"quantity_this_period" gorm:"type:decimal(18,4);not null;default:0"`
	SortOrder          int             `json:"sort_order" gorm:"default:0"`
	CreatedAt          time.Time       `json:"created_at"`
}

func (MeasurementAdditive) TableName() string {
	return "measurement_additives"
}

// MeasurementApproval is the append-only audit record of one workflow
// decision. Rows are never updated or deleted while the bulletin lives.
type MeasurementApproval struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	BulletinID string    `json:"bulletin_id" gorm:"size:32;not null;index"`
	Stage      string    `json:"stage" gorm:"size:20;not null"`
	Action     string    `json:"action" gorm:"size:20;not null"`
	UserID     string    `json:"user_id" gorm:"size:32;not null"`
	Notes      string    `json:"notes" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
}

func (MeasurementApproval) TableName() string {
	return "measurement_approvals"
}
