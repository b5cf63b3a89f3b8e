package repository

import (
	"context"
	"errors"

	"github.com/construtiva/obratrack/internal/measurement/entity"
	"gorm.io/gorm"
)

// ContractRepository reads the contract reference data owned by the
// contracts module. No write path exists here.
type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// FindForTenant resolves a contract scoped to the caller's tenant. A
// contract of another tenant is indistinguishable from an absent one.
func (r *ContractRepository) FindForTenant(ctx context.Context, tenantID, contractID string) (*entity.Contract, error) {
	var c entity.Contract
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", contractID, tenantID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindItems lists the contract's priced lines in display order.
func (r *ContractRepository) FindItems(ctx context.Context, contractID string) ([]entity.ContractItem, error) {
	var items []entity.ContractItem
	err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("sort_order ASC, item_number ASC").
		Find(&items).Error
	return items, err
}
