package repository_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/service-checkout/internal/domain/coupon"
	"github.com/storefront/service-checkout/internal/repository"
	"github.com/storefront/service-checkout/internal/repository/memory"
)

// slowCouponRepo holds FindByCode until release is closed.
type slowCouponRepo struct {
	*memory.CouponRepository
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func (r *slowCouponRepo) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	r.calls.Add(1)
	r.once.Do(func() { close(r.started) })
	<-r.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.CouponRepository.FindByCode(ctx, code)
}

// unreachableRedis fails every command quickly, so each lookup misses.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestCachedCouponRepository_SharedLoadSurvivesFirstCallerCancel(t *testing.T) {
	inner := &slowCouponRepo{
		CouponRepository: memory.NewCouponRepository(),
		started:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	c, err := coupon.NewCoupon(coupon.NewCouponParams{Code: "SALE", Kind: coupon.KindFixed, Value: 100})
	require.NoError(t, err)
	require.NoError(t, inner.Save(context.Background(), c))

	repo := repository.NewCachedCouponRepository(inner, unreachableRedis(t), time.Minute, zap.NewNop())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	type result struct {
		c   *coupon.Coupon
		err error
	}
	first := make(chan result, 1)
	go func() {
		got, err := repo.FindByCode(firstCtx, "SALE")
		first <- result{got, err}
	}()
	<-inner.started

	second := make(chan result, 1)
	go func() {
		got, err := repo.FindByCode(context.Background(), "sale")
		second <- result{got, err}
	}()
	time.Sleep(100 * time.Millisecond)

	cancelFirst()
	close(inner.release)

	for _, ch := range []chan result{first, second} {
		select {
		case res := <-ch:
			require.NoError(t, res.err)
			assert.Equal(t, c.ID(), res.c.ID())
		case <-time.After(5 * time.Second):
			t.Fatal("lookup did not return")
		}
	}
	assert.Equal(t, int32(1), inner.calls.Load(), "concurrent misses share one read")
}

func TestCachedCouponRepository_FallsBackWhenRedisIsDown(t *testing.T) {
	inner := memory.NewCouponRepository()
	c, err := coupon.NewCoupon(coupon.NewCouponParams{Code: "SALE", Kind: coupon.KindFixed, Value: 100})
	require.NoError(t, err)
	require.NoError(t, inner.Save(context.Background(), c))

	repo := repository.NewCachedCouponRepository(inner, unreachableRedis(t), time.Minute, zap.NewNop())

	got, err := repo.FindByCode(context.Background(), "sale")
	require.NoError(t, err)
	assert.Equal(t, c.ID(), got.ID())

	page, total, err := repo.List(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, page, 1)
}
