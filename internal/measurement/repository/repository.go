package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")

	// ErrStale means a guarded write matched no row: the status moved
	// between the caller's read and the write. The row still exists.
	ErrStale = errors.New("record changed concurrently")
)

// Repositories bundles the measurement module's repositories.
type Repositories struct {
	Contract *ContractRepository
	Bulletin *BulletinRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Contract: NewContractRepository(db),
		Bulletin: NewBulletinRepository(db),
	}
}
