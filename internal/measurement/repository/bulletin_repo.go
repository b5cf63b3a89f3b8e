package repository

import (
	"context"
	"errors"
	"time"

	"github.com/construtiva/obratrack/internal/measurement/entity"
	"github.com/construtiva/obratrack/internal/measurement/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BulletinRepository owns all persistence of measurement bulletins and
// their children. Every write that touches more than one row runs inside a
// single transaction so a partial bulletin is never observable.
type BulletinRepository struct {
	db *gorm.DB
}

func NewBulletinRepository(db *gorm.DB) *BulletinRepository {
	return &BulletinRepository{db: db}
}

var bulletinSortColumns = map[string]string{
	"bm_number":    "bm_number",
	"period_start": "period_start",
	"status":       "status",
	"created_at":   "created_at",
}

// FindAll lists bulletins for a tenant with optional filters, paginated.
func (r *BulletinRepository) FindAll(ctx context.Context, tenantID string, page, pageSize int, filters map[string]string) ([]entity.MeasurementBulletin, int64, error) {
	var items []entity.MeasurementBulletin
	var total int64

	query := r.db.WithContext(ctx).
		Model(&entity.MeasurementBulletin{}).
		Where("tenant_id = ?", tenantID)

	if contractID := filters["contract_id"]; contractID != "" {
		query = query.Where("contract_id = ?", contractID)
	}
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if startDate := filters["start_date"]; startDate != "" {
		query = query.Where("period_start >= ?", startDate)
	}
	if endDate := filters["end_date"]; endDate != "" {
		query = query.Where("period_end <= ?", endDate)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "bm_number DESC"
	if col, ok := bulletinSortColumns[filters["sort"]]; ok {
		dir := "ASC"
		if filters["order"] == "desc" {
			dir = "DESC"
		}
		order = col + " " + dir
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Contract").
		Order(order).
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID loads a bulletin with its children, scoped to the tenant.
func (r *BulletinRepository) FindByID(ctx context.Context, tenantID, id string) (*entity.MeasurementBulletin, error) {
	var b entity.MeasurementBulletin
	err := r.db.WithContext(ctx).
		Preload("Contract").
		Preload("Items.ContractItem").
		Preload("Additives", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Preload("Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// CreateWithChildren inserts the header plus all item and additive rows in
// one transaction. Any failing insert rolls back the whole bulletin.
func (r *BulletinRepository) CreateWithChildren(ctx context.Context, b *entity.MeasurementBulletin, items []entity.MeasurementItem, additives []entity.MeasurementAdditive) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(b).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
				return err
			}
		}
		if len(additives) > 0 {
			if err := tx.Create(&additives).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceChildren swaps the full item and additive sets of a bulletin and
// applies the given header column updates, all in one transaction. Children
// are replaced wholesale rather than diffed; the approval trail is the
// history that matters. The header update is guarded on an editable status
// so an edit racing a concurrent submit rolls back with ErrStale instead of
// rewriting the children of a bulletin already in the chain.
func (r *BulletinRepository) ReplaceChildren(ctx context.Context, bulletinID string, headerUpdates map[string]interface{}, items []entity.MeasurementItem, additives []entity.MeasurementAdditive) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.MeasurementBulletin{}).
			Where("id = ? AND status IN ?", bulletinID,
				[]string{entity.BulletinStatusDraft, entity.BulletinStatusRejected}).
			Updates(headerUpdates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStale
		}
		if err := tx.Where("bulletin_id = ?", bulletinID).Delete(&entity.MeasurementItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bulletin_id = ?", bulletinID).Delete(&entity.MeasurementAdditive{}).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
				return err
			}
		}
		if len(additives) > 0 {
			if err := tx.Create(&additives).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateStatus sets the bulletin status only when the current status still
// matches expected, so a concurrent transition loses cleanly.
func (r *BulletinRepository) UpdateStatus(ctx context.Context, id, expected, next string) error {
	res := r.db.WithContext(ctx).
		Model(&entity.MeasurementBulletin{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(map[string]interface{}{
			"status":     next,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// ApplyApproval runs one approval decision. The status write is conditional
// on the status the transaction read, so when two approvers race, exactly
// one commits: the loser's update matches no row, the transaction rolls
// back and its approval record is never kept. The approval record and the
// status change commit together or not at all.
func (r *BulletinRepository) ApplyApproval(ctx context.Context, tenantID, bulletinID string, approval *entity.MeasurementApproval) (string, error) {
	var next string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b entity.MeasurementBulletin
		if err := tx.Where("id = ? AND tenant_id = ?", bulletinID, tenantID).First(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var err error
		next, err = workflow.Next(b.Status, approval.Stage, approval.Action)
		if err != nil {
			return err
		}

		if err := tx.Create(approval).Error; err != nil {
			return err
		}
		res := tx.Model(&entity.MeasurementBulletin{}).
			Where("id = ? AND status = ?", bulletinID, b.Status).
			Updates(map[string]interface{}{
				"status":     next,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStale
		}
		return nil
	})
	return next, err
}

// DeleteCascade removes a draft bulletin and all of its children. The
// status guard sits in the delete itself so a just-submitted bulletin
// cannot be deleted by a stale caller.
func (r *BulletinRepository) DeleteCascade(ctx context.Context, tenantID, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND tenant_id = ? AND status = ?", id, tenantID, entity.BulletinStatusDraft).
			Delete(&entity.MeasurementBulletin{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStale
		}
		if err := tx.Where("bulletin_id = ?", id).Delete(&entity.MeasurementItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bulletin_id = ?", id).Delete(&entity.MeasurementAdditive{}).Error; err != nil {
			return err
		}
		return tx.Where("bulletin_id = ?", id).Delete(&entity.MeasurementApproval{}).Error
	})
}

type accumulatedRow struct {
	ContractItemID string
	Total          decimal.Decimal
}

// SumPriorQuantities aggregates quantity_this_period per contract item over
// every bulletin of the contract with bm_number strictly below beforeBm.
// Ordering by bm_number, not creation time, keeps the result independent of
// entry order. An unknown contract simply yields no rows.
func (r *BulletinRepository) SumPriorQuantities(ctx context.Context, contractID string, beforeBm int) (map[string]decimal.Decimal, error) {
	var rows []accumulatedRow
	err := r.db.WithContext(ctx).
		Model(&entity.MeasurementItem{}).
		Select("measurement_items.contract_item_id AS contract_item_id, SUM(measurement_items.quantity_this_period) AS total").
		Joins("JOIN measurement_bulletins ON measurement_bulletins.id = measurement_items.bulletin_id").
		Where("measurement_bulletins.contract_id = ? AND measurement_bulletins.bm_number < ?", contractID, beforeBm).
		Group("measurement_items.contract_item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		result[row.ContractItemID] = row.Total
	}
	return result, nil
}
