package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/construtiva/obratrack/internal/measurement/repository"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const accumulationCacheTTL = 5 * time.Minute

// AccumulationService computes, per contract item, the quantity already
// billed in every bulletin numbered strictly below a target BM number.
//
// Results for the standalone preview endpoint are cached in Redis under a
// per-contract version counter; any bulletin write bumps the counter so
// stale entries are never served. Cache failures silently fall through to
// the database, which stays the source of truth.
type AccumulationService struct {
	contracts *repository.ContractRepository
	bulletins *repository.BulletinRepository
	rdb       *redis.Client
	logger    *zap.Logger
}

func NewAccumulationService(contracts *repository.ContractRepository, bulletins *repository.BulletinRepository, rdb *redis.Client, logger *zap.Logger) *AccumulationService {
	return &AccumulationService{contracts: contracts, bulletins: bulletins, rdb: rdb, logger: logger}
}

// Accumulated returns the accumulated-quantity mapping for a contract up to
// (excluding) beforeBm. A contract that does not exist under the tenant
// yields an empty mapping, not an error: for display purposes an unknown
// contract and a contract with no history look the same, and the mutating
// paths re-validate ownership themselves.
func (s *AccumulationService) Accumulated(ctx context.Context, tenantID, contractID string, beforeBm int) (map[string]decimal.Decimal, error) {
	if _, err := s.contracts.FindForTenant(ctx, tenantID, contractID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return map[string]decimal.Decimal{}, nil
		}
		return nil, err
	}

	if cached, ok := s.cacheGet(ctx, tenantID, contractID, beforeBm); ok {
		return cached, nil
	}

	result, err := s.bulletins.SumPriorQuantities(ctx, contractID, beforeBm)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, tenantID, contractID, beforeBm, result)
	return result, nil
}

// Invalidate bumps the contract's cache version after any bulletin write.
func (s *AccumulationService) Invalidate(ctx context.Context, contractID string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Incr(ctx, "accumver:"+contractID).Err(); err != nil {
		s.logger.Warn("accumulation cache invalidation failed",
			zap.String("contract_id", contractID), zap.Error(err))
	}
}

func (s *AccumulationService) cacheKey(ctx context.Context, tenantID, contractID string, beforeBm int) (string, bool) {
	if s.rdb == nil {
		return "", false
	}
	ver, err := s.rdb.Get(ctx, "accumver:"+contractID).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", false
	}
	return fmt.Sprintf("accum:%s:%s:%d:%d", tenantID, contractID, ver, beforeBm), true
}

func (s *AccumulationService) cacheGet(ctx context.Context, tenantID, contractID string, beforeBm int) (map[string]decimal.Decimal, bool) {
	key, ok := s.cacheKey(ctx, tenantID, contractID, beforeBm)
	if !ok {
		return nil, false
	}
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var result map[string]decimal.Decimal
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false
	}
	return result, true
}

func (s *AccumulationService) cacheSet(ctx context.Context, tenantID, contractID string, beforeBm int, result map[string]decimal.Decimal) {
	key, ok := s.cacheKey(ctx, tenantID, contractID, beforeBm)
	if !ok {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, raw, accumulationCacheTTL).Err(); err != nil {
		s.logger.Warn("accumulation cache write failed", zap.String("key", key), zap.Error(err))
	}
}
