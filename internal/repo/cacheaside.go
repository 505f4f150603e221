package repo

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/cache"
)

// getCache loads key into v, reporting whether the key was present.
func getCache(ctx context.Context, c cache.Cache, key string, v any) (bool, error) {
	if c == nil {
		return false, nil
	}
	if err := c.GetCtx(ctx, key, v); err != nil {
		if c.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// setCache stores v under key, logging failures instead of returning them.
func setCache(ctx context.Context, c cache.Cache, key string, ttl time.Duration, v any) {
	if c == nil || ttl <= 0 {
		return
	}
	if err := c.SetWithExpireCtx(ctx, key, v, ttl); err != nil {
		logx.WithContext(ctx).Errorf("set cache %s: %v", key, err)
	}
}

// delCache drops keys after a write so readers refill from Postgres.
func delCache(ctx context.Context, c cache.Cache, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.DelCtx(ctx, keys...); err != nil {
		logx.WithContext(ctx).Errorf("del cache %v: %v", keys, err)
	}
}
