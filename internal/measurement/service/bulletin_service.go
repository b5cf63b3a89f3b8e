package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/construtiva/obratrack/internal/measurement/entity"
	"github.com/construtiva/obratrack/internal/measurement/figures"
	"github.com/construtiva/obratrack/internal/measurement/repository"
	"github.com/construtiva/obratrack/internal/measurement/workflow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Actor roles carried in the auth claims.
const (
	RoleAdmin      = "admin"
	RoleEngineer   = "engineer"
	RoleSupervisor = "supervisor"
	RoleInspector  = "inspector"
)

// minPositive is the smallest accepted unit price / contracted quantity.
var minPositive = decimal.New(1, -4)

// BulletinService drives the bulletin lifecycle: creation, wholesale edits,
// submission, the approval chain and draft deletion. Every mutation
// re-validates contract ownership under the caller's tenant first.
type BulletinService struct {
	contracts *repository.ContractRepository
	bulletins *repository.BulletinRepository
	accum     *AccumulationService
	logger    *zap.Logger
}

func NewBulletinService(contracts *repository.ContractRepository, bulletins *repository.BulletinRepository, accum *AccumulationService, logger *zap.Logger) *BulletinService {
	return &BulletinService{contracts: contracts, bulletins: bulletins, accum: accum, logger: logger}
}

// ItemInput bills one contract item for the period.
type ItemInput struct {
	ContractItemID     string          `json:"contract_item_id" binding:"required"`
	QuantityThisPeriod decimal.Decimal `json:"quantity_this_period"`
}

// AdditiveInput is one extra-contractual line.
type AdditiveInput struct {
	ItemNumber         string          `json:"item_number"`
	ServiceName        string          `json:"service_name" binding:"required"`
	Unit               string          `json:"unit" binding:"required"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	ContractedQuantity decimal.Decimal `json:"contracted_quantity"`
	QuantityThisPeriod decimal.Decimal `json:"quantity_this_period"`
	SortOrder          int             `json:"sort_order"`
}

// CreateBulletinRequest creates a bulletin in draft.
type CreateBulletinRequest struct {
	ContractID    string          `json:"contract_id" binding:"required"`
	BMNumber      int             `json:"bm_number" binding:"required"`
	SheetNumber   int             `json:"sheet_number"`
	PeriodStart   string          `json:"period_start" binding:"required"`
	PeriodEnd     string          `json:"period_end" binding:"required"`
	DueDate       *string         `json:"due_date"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	Observations  string          `json:"observations"`
	Items         []ItemInput     `json:"items"`
	Additives     []AdditiveInput `json:"additives"`
}

// UpdateBulletinRequest replaces the bulletin's children wholesale and
// updates the editable header fields. Contract and BM number are fixed at
// creation.
type UpdateBulletinRequest struct {
	SheetNumber   int             `json:"sheet_number"`
	PeriodStart   string          `json:"period_start" binding:"required"`
	PeriodEnd     string          `json:"period_end" binding:"required"`
	DueDate       *string         `json:"due_date"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	Observations  string          `json:"observations"`
	Items         []ItemInput     `json:"items"`
	Additives     []AdditiveInput `json:"additives"`
}

// ApproveBulletinRequest records one decision of the approval chain.
type ApproveBulletinRequest struct {
	Stage  string `json:"stage" binding:"required"`
	Action string `json:"action" binding:"required"`
	Notes  string `json:"notes"`
}

// PreviewFiguresRequest computes figures for an unsaved payload so editing
// UIs can show amounts before committing.
type PreviewFiguresRequest struct {
	ContractID    string          `json:"contract_id" binding:"required"`
	BMNumber      int             `json:"bm_number" binding:"required"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	Items         []ItemInput     `json:"items"`
	Additives     []AdditiveInput `json:"additives"`
}

// BulletinDetail is the full read model of one bulletin: rows plus the
// accumulated mapping and the derived figures, computed fresh on every read.
type BulletinDetail struct {
	*entity.MeasurementBulletin
	Accumulated map[string]decimal.Decimal `json:"accumulated"`
	Figures     figures.Figures            `json:"figures"`
}

// List returns a tenant's bulletins, filtered and paginated.
func (s *BulletinService) List(ctx context.Context, tenantID string, page, pageSize int, filters map[string]string) ([]entity.MeasurementBulletin, int64, error) {
	return s.bulletins.FindAll(ctx, tenantID, page, pageSize, filters)
}

// Get loads a bulletin with accumulated quantities and computed figures.
func (s *BulletinService) Get(ctx context.Context, tenantID, id string) (*BulletinDetail, error) {
	b, err := s.bulletins.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	accumulated, err := s.accum.Accumulated(ctx, tenantID, b.ContractID, b.BMNumber)
	if err != nil {
		return nil, err
	}

	retention := decimal.Zero
	if b.Contract != nil {
		retention = b.Contract.TechnicalRetention
	}

	return &BulletinDetail{
		MeasurementBulletin: b,
		Accumulated:         accumulated,
		Figures:             figures.Compute(b.Items, b.Additives, accumulated, b.DiscountValue, retention),
	}, nil
}

// Create validates the payload, checks contract ownership and inserts the
// bulletin with all children atomically. Inspectors cannot author
// bulletins.
func (s *BulletinService) Create(ctx context.Context, tenantID, userID, role string, req *CreateBulletinRequest) (*entity.MeasurementBulletin, error) {
	if role == RoleInspector {
		return nil, ErrPermission
	}
	if req.BMNumber <= 0 {
		return nil, invalid("bm_number must be positive")
	}

	periodStart, periodEnd, dueDate, err := parsePeriod(req.PeriodStart, req.PeriodEnd, req.DueDate)
	if err != nil {
		return nil, err
	}
	if req.DiscountValue.IsNegative() {
		return nil, invalid("discount_value cannot be negative")
	}

	contract, err := s.contracts.FindForTenant(ctx, tenantID, req.ContractID)
	if err != nil {
		return nil, err
	}

	catalog, err := s.contractItemCatalog(ctx, contract.ID)
	if err != nil {
		return nil, err
	}

	sheet := req.SheetNumber
	if sheet <= 0 {
		sheet = 1
	}

	b := &entity.MeasurementBulletin{
		ID:            newID(),
		TenantID:      tenantID,
		ContractID:    contract.ID,
		BMNumber:      req.BMNumber,
		SheetNumber:   sheet,
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		DueDate:       dueDate,
		DiscountValue: req.DiscountValue,
		Observations:  req.Observations,
		Status:        entity.BulletinStatusDraft,
		CreatedBy:     userID,
	}

	items, err := buildItems(b.ID, req.Items, catalog)
	if err != nil {
		return nil, err
	}
	additives, err := buildAdditives(b.ID, req.Additives)
	if err != nil {
		return nil, err
	}

	if err := s.bulletins.CreateWithChildren(ctx, b, items, additives); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, invalid(fmt.Sprintf("bm_number %d already exists for this contract", req.BMNumber))
		}
		return nil, err
	}
	s.accum.Invalidate(ctx, contract.ID)

	s.logger.Info("bulletin created",
		zap.String("bulletin_id", b.ID),
		zap.String("contract_id", contract.ID),
		zap.Int("bm_number", b.BMNumber),
		zap.String("created_by", userID))

	return s.bulletins.FindByID(ctx, tenantID, b.ID)
}

// Update replaces the item and additive sets and the editable header
// fields. Only draft and rejected bulletins may be edited; saving a
// rejected bulletin resets it to draft, restarting the approval chain from
// scratch.
func (s *BulletinService) Update(ctx context.Context, tenantID, role, id string, req *UpdateBulletinRequest) (*entity.MeasurementBulletin, error) {
	if role == RoleInspector {
		return nil, ErrPermission
	}

	b, err := s.bulletins.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !b.Editable() {
		return nil, fmt.Errorf("%w: bulletin is %s", ErrStateConflict, b.Status)
	}

	periodStart, periodEnd, dueDate, err := parsePeriod(req.PeriodStart, req.PeriodEnd, req.DueDate)
	if err != nil {
		return nil, err
	}
	if req.DiscountValue.IsNegative() {
		return nil, invalid("discount_value cannot be negative")
	}

	catalog, err := s.contractItemCatalog(ctx, b.ContractID)
	if err != nil {
		return nil, err
	}

	items, err := buildItems(b.ID, req.Items, catalog)
	if err != nil {
		return nil, err
	}
	additives, err := buildAdditives(b.ID, req.Additives)
	if err != nil {
		return nil, err
	}

	sheet := req.SheetNumber
	if sheet <= 0 {
		sheet = 1
	}
	headerUpdates := map[string]interface{}{
		"sheet_number":   sheet,
		"period_start":   periodStart,
		"period_end":     periodEnd,
		"due_date":       dueDate,
		"discount_value": req.DiscountValue,
		"observations":   req.Observations,
		"updated_at":     time.Now(),
	}
	// A rejected bulletin cannot be patched forward: saving it re-enters
	// draft and the chain starts over.
	if b.Status == entity.BulletinStatusRejected {
		headerUpdates["status"] = entity.BulletinStatusDraft
	}

	if err := s.bulletins.ReplaceChildren(ctx, b.ID, headerUpdates, items, additives); err != nil {
		if errors.Is(err, repository.ErrStale) {
			// Lost a race: the bulletin left its editable status between the
			// read and the write.
			return nil, fmt.Errorf("%w: bulletin is no longer editable", ErrStateConflict)
		}
		return nil, err
	}
	s.accum.Invalidate(ctx, b.ContractID)

	return s.bulletins.FindByID(ctx, tenantID, b.ID)
}

// Submit moves a draft into the approval chain. Re-submitting anything
// other than a draft is rejected, never silently accepted.
func (s *BulletinService) Submit(ctx context.Context, tenantID, id string) error {
	b, err := s.bulletins.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if b.Status != entity.BulletinStatusDraft {
		return fmt.Errorf("%w: bulletin is %s", ErrStateConflict, b.Status)
	}

	err = s.bulletins.UpdateStatus(ctx, b.ID, entity.BulletinStatusDraft, entity.BulletinStatusSubmitted)
	if errors.Is(err, repository.ErrStale) {
		// Lost a race: the status moved between the read and the update.
		return fmt.Errorf("%w: bulletin is no longer a draft", ErrStateConflict)
	}
	if err != nil {
		return err
	}

	s.logger.Info("bulletin submitted", zap.String("bulletin_id", b.ID))
	return nil
}

// Approve applies one stage decision. The stage/status match and the
// approval record insert run inside one transaction, so concurrent
// approvers cannot both advance the bulletin.
func (s *BulletinService) Approve(ctx context.Context, tenantID, userID, id string, req *ApproveBulletinRequest) (*entity.MeasurementApproval, string, error) {
	if !workflow.ValidStage(req.Stage) {
		return nil, "", invalid("unknown approval stage: " + req.Stage)
	}
	if !workflow.ValidAction(req.Action) {
		return nil, "", invalid("unknown approval action: " + req.Action)
	}

	approval := &entity.MeasurementApproval{
		ID:         newID(),
		BulletinID: id,
		Stage:      req.Stage,
		Action:     req.Action,
		UserID:     userID,
		Notes:      req.Notes,
	}

	next, err := s.bulletins.ApplyApproval(ctx, tenantID, id, approval)
	if err != nil {
		var it *workflow.ErrInvalidTransition
		if errors.As(err, &it) {
			return nil, "", fmt.Errorf("%w: %s", ErrStateConflict, it.Error())
		}
		if errors.Is(err, repository.ErrStale) {
			// A concurrent approval committed first; this decision rolled
			// back without recording anything.
			return nil, "", fmt.Errorf("%w: bulletin status changed concurrently", ErrStateConflict)
		}
		return nil, "", err
	}

	s.logger.Info("bulletin approval recorded",
		zap.String("bulletin_id", id),
		zap.String("stage", req.Stage),
		zap.String("action", req.Action),
		zap.String("next_status", next),
		zap.String("user_id", userID))

	return approval, next, nil
}

// Delete removes a draft bulletin and cascades to its children. Restricted
// to admins.
func (s *BulletinService) Delete(ctx context.Context, tenantID, role, id string) error {
	if role != RoleAdmin {
		return ErrPermission
	}

	b, err := s.bulletins.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if b.Status != entity.BulletinStatusDraft {
		return fmt.Errorf("%w: only drafts can be deleted, bulletin is %s", ErrStateConflict, b.Status)
	}

	err = s.bulletins.DeleteCascade(ctx, tenantID, id)
	if errors.Is(err, repository.ErrStale) {
		return fmt.Errorf("%w: bulletin is no longer a draft", ErrStateConflict)
	}
	if err != nil {
		return err
	}
	s.accum.Invalidate(ctx, b.ContractID)

	s.logger.Info("bulletin deleted", zap.String("bulletin_id", id))
	return nil
}

// Preview computes figures for an unsaved payload against the current
// contract data and accumulation history.
func (s *BulletinService) Preview(ctx context.Context, tenantID string, req *PreviewFiguresRequest) (*figures.Figures, error) {
	if req.BMNumber <= 0 {
		return nil, invalid("bm_number must be positive")
	}
	if req.DiscountValue.IsNegative() {
		return nil, invalid("discount_value cannot be negative")
	}

	contract, err := s.contracts.FindForTenant(ctx, tenantID, req.ContractID)
	if err != nil {
		return nil, err
	}

	catalog, err := s.contractItemCatalog(ctx, contract.ID)
	if err != nil {
		return nil, err
	}

	items, err := buildItems("", req.Items, catalog)
	if err != nil {
		return nil, err
	}
	additives, err := buildAdditives("", req.Additives)
	if err != nil {
		return nil, err
	}

	accumulated, err := s.accum.Accumulated(ctx, tenantID, contract.ID, req.BMNumber)
	if err != nil {
		return nil, err
	}

	f := figures.Compute(items, additives, accumulated, req.DiscountValue, contract.TechnicalRetention)
	return &f, nil
}

func (s *BulletinService) contractItemCatalog(ctx context.Context, contractID string) (map[string]*entity.ContractItem, error) {
	contractItems, err := s.contracts.FindItems(ctx, contractID)
	if err != nil {
		return nil, err
	}
	catalog := make(map[string]*entity.ContractItem, len(contractItems))
	for i := range contractItems {
		catalog[contractItems[i].ID] = &contractItems[i]
	}
	return catalog, nil
}

func buildItems(bulletinID string, inputs []ItemInput, catalog map[string]*entity.ContractItem) ([]entity.MeasurementItem, error) {
	items := make([]entity.MeasurementItem, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		ci, ok := catalog[in.ContractItemID]
		if !ok {
			return nil, invalid("contract item " + in.ContractItemID + " does not belong to the contract")
		}
		if seen[in.ContractItemID] {
			return nil, invalid("contract item " + in.ContractItemID + " is billed twice")
		}
		seen[in.ContractItemID] = true
		if in.QuantityThisPeriod.IsNegative() {
			return nil, invalid("quantity_this_period cannot be negative for item " + ci.ItemNumber)
		}
		items = append(items, entity.MeasurementItem{
			ID:                 newID(),
			BulletinID:         bulletinID,
			ContractItemID:     in.ContractItemID,
			QuantityThisPeriod: in.QuantityThisPeriod,
			ContractItem:       ci,
		})
	}
	return items, nil
}

func buildAdditives(bulletinID string, inputs []AdditiveInput) ([]entity.MeasurementAdditive, error) {
	additives := make([]entity.MeasurementAdditive, 0, len(inputs))
	for i, in := range inputs {
		if !entity.ValidUnits[in.Unit] {
			return nil, invalid("unknown unit: " + in.Unit)
		}
		if in.UnitPrice.LessThan(minPositive) {
			return nil, invalid("additive unit_price must be at least 0.0001")
		}
		if in.ContractedQuantity.LessThan(minPositive) {
			return nil, invalid("additive contracted_quantity must be at least 0.0001")
		}
		if in.QuantityThisPeriod.IsNegative() {
			return nil, invalid("additive quantity_this_period cannot be negative")
		}
		sort := in.SortOrder
		if sort == 0 {
			sort = i + 1
		}
		additives = append(additives, entity.MeasurementAdditive{
			ID:                 newID(),
			BulletinID:         bulletinID,
			ItemNumber:         in.ItemNumber,
			ServiceName:        in.ServiceName,
			Unit:               in.Unit,
			UnitPrice:          in.UnitPrice,
			ContractedQuantity: in.ContractedQuantity,
			QuantityThisPeriod: in.QuantityThisPeriod,
			SortOrder:          sort,
		})
	}
	return additives, nil
}

func parsePeriod(start, end string, due *string) (time.Time, time.Time, *time.Time, error) {
	periodStart, err := time.Parse("2006-01-02", start)
	if err != nil {
		return time.Time{}, time.Time{}, nil, invalid("period_start must be YYYY-MM-DD")
	}
	periodEnd, err := time.Parse("2006-01-02", end)
	if err != nil {
		return time.Time{}, time.Time{}, nil, invalid("period_end must be YYYY-MM-DD")
	}
	if periodEnd.Before(periodStart) {
		return time.Time{}, time.Time{}, nil, invalid("period_end cannot precede period_start")
	}
	var dueDate *time.Time
	if due != nil && *due != "" {
		t, err := time.Parse("2006-01-02", *due)
		if err != nil {
			return time.Time{}, time.Time{}, nil, invalid("due_date must be YYYY-MM-DD")
		}
		dueDate = &t
	}
	return periodStart, periodEnd, dueDate, nil
}

func newID() string {
	return uuid.New().String()[:32]
}
