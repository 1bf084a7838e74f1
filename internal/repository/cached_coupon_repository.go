package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	couponDomain "github.com/storefront/service-checkout/internal/domain/coupon"
)

const couponCachePrefix = "checkout:coupon:code:"

// couponLoadTimeout bounds a shared cache-miss read.
const couponLoadTimeout = 5 * time.Second

// DefaultCouponCacheTTL is used when no TTL is configured.
const DefaultCouponCacheTTL = 5 * time.Minute

// cachedCoupon is the JSON form of a coupon stored in Redis.
type cachedCoupon struct {
	ID                       uuid.UUID  `json:"id"`
	Code                     string     `json:"code"`
	Kind                     string     `json:"kind"`
	Value                    int64      `json:"value"`
	MinOrderAmountMinorUnits *int64     `json:"min_order_amount_minor_units,omitempty"`
	MaxUses                  *int       `json:"max_uses,omitempty"`
	CurrentUses              int        `json:"current_uses"`
	ExpiresAt                *time.Time `json:"expires_at,omitempty"`
	Active                   bool       `json:"active"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

// CachedCouponRepository is a read-through Redis cache in front of another
// coupon.Repository. Only FindByCode is cached. Every write goes to the inner
// repository first and then evicts the code, so the cached use count may lag
// but reservation itself is always decided by the database.
type CachedCouponRepository struct {
	inner  couponDomain.Repository
	redis  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

// NewCachedCouponRepository wraps inner with a Redis cache.
func NewCachedCouponRepository(inner couponDomain.Repository, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedCouponRepository {
	if ttl <= 0 {
		ttl = DefaultCouponCacheTTL
	}
	return &CachedCouponRepository{inner: inner, redis: rdb, ttl: ttl, logger: logger}
}

// FindByCode serves from Redis when possible. Concurrent misses for the same
// code share one database read. The shared read ignores the first caller's
// cancellation and is bounded by couponLoadTimeout instead.
func (r *CachedCouponRepository) FindByCode(ctx context.Context, code string) (*couponDomain.Coupon, error) {
	key := couponCachePrefix + couponDomain.NormalizeCode(code)

	if c, ok := r.get(ctx, key); ok {
		return c, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), couponLoadTimeout)
		defer cancel()
		c, err := r.inner.FindByCode(loadCtx, code)
		if err != nil {
			return nil, err
		}
		r.set(loadCtx, key, c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*couponDomain.Coupon), nil
}

// FindByID is not cached.
func (r *CachedCouponRepository) FindByID(ctx context.Context, id uuid.UUID) (*couponDomain.Coupon, error) {
	return r.inner.FindByID(ctx, id)
}

// List is not cached.
func (r *CachedCouponRepository) List(ctx context.Context, page, limit int) ([]*couponDomain.Coupon, int64, error) {
	return r.inner.List(ctx, page, limit)
}

// Save writes through and evicts the code.
func (r *CachedCouponRepository) Save(ctx context.Context, c *couponDomain.Coupon) error {
	if err := r.inner.Save(ctx, c); err != nil {
		return err
	}
	r.evict(ctx, c.Code())
	return nil
}

// ReserveUse writes through and evicts the code.
func (r *CachedCouponRepository) ReserveUse(ctx context.Context, couponID, orderID uuid.UUID) error {
	if err := r.inner.ReserveUse(ctx, couponID, orderID); err != nil {
		return err
	}
	r.evictByID(ctx, couponID)
	return nil
}

// ReleaseUse writes through and evicts the code.
func (r *CachedCouponRepository) ReleaseUse(ctx context.Context, couponID, orderID uuid.UUID) error {
	if err := r.inner.ReleaseUse(ctx, couponID, orderID); err != nil {
		return err
	}
	r.evictByID(ctx, couponID)
	return nil
}

func (r *CachedCouponRepository) get(ctx context.Context, key string) (*couponDomain.Coupon, bool) {
	raw, err := r.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("coupon cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var cc cachedCoupon
	if err := json.Unmarshal(raw, &cc); err != nil {
		r.logger.Warn("failed to unmarshal cached coupon", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return couponDomain.Reconstruct(
		cc.ID, cc.Code, couponDomain.Kind(cc.Kind), cc.Value,
		cc.MinOrderAmountMinorUnits, cc.MaxUses, cc.CurrentUses,
		cc.ExpiresAt, cc.Active, cc.CreatedAt, cc.UpdatedAt,
	), true
}

func (r *CachedCouponRepository) set(ctx context.Context, key string, c *couponDomain.Coupon) {
	raw, err := json.Marshal(cachedCoupon{
		ID:                       c.ID(),
		Code:                     c.Code(),
		Kind:                     string(c.Kind()),
		Value:                    c.Value(),
		MinOrderAmountMinorUnits: c.MinOrderAmountMinorUnits(),
		MaxUses:                  c.MaxUses(),
		CurrentUses:              c.CurrentUses(),
		ExpiresAt:                c.ExpiresAt(),
		Active:                   c.Active(),
		CreatedAt:                c.CreatedAt(),
		UpdatedAt:                c.UpdatedAt(),
	})
	if err != nil {
		r.logger.Warn("failed to marshal coupon for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.redis.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		r.logger.Warn("failed to cache coupon", zap.String("key", key), zap.Error(err))
	}
}

func (r *CachedCouponRepository) evict(ctx context.Context, code string) {
	key := couponCachePrefix + couponDomain.NormalizeCode(code)
	if err := r.redis.Del(ctx, key).Err(); err != nil {
		r.logger.Warn("failed to evict cached coupon", zap.String("key", key), zap.Error(err))
	}
}

func (r *CachedCouponRepository) evictByID(ctx context.Context, id uuid.UUID) {
	c, err := r.inner.FindByID(ctx, id)
	if err != nil {
		r.logger.Warn("failed to resolve coupon for eviction", zap.String("coupon_id", id.String()), zap.Error(err))
		return
	}
	r.evict(ctx, c.Code())
}
