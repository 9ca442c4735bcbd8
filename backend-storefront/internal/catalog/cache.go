package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
	"github.com/prohmpiriya/storefront/pkg/database"
	"go.uber.org/zap"
)

// Cache stores decoded catalog reads. *database.RedisClient satisfies it.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

func cacheKey(kind string, entity domain.Entity, id string) string {
	if id == "" {
		return fmt.Sprintf("storefront:catalog:%s:%s", entity, kind)
	}
	return fmt.Sprintf("storefront:catalog:%s:%s:%s", entity, kind, id)
}

// cached serves key from the cache, or runs load once per key across
// concurrent callers and stores a successful result. Soft failures and
// errors are never cached.
func cached[T any](ctx context.Context, l *Loader, key string, load func(context.Context) (Result[T], error)) (Result[T], error) {
	if l.cache != nil {
		var data T
		err := l.cache.GetJSON(ctx, key, &data)
		if err == nil {
			l.hits.Inc(ctx)
			return OK(data), nil
		}
		if !errors.Is(err, database.ErrCacheMiss) {
			l.logger.WithContext(ctx).Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	v, err, _ := l.group.Do(key, func() (interface{}, error) {
		res, err := load(ctx)
		if err != nil {
			return res, err
		}
		if res.Status && l.cache != nil {
			if err := l.cache.SetJSON(ctx, key, res.Data, l.ttl); err != nil {
				l.logger.WithContext(ctx).Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
		return res, nil
	})
	res, _ := v.(Result[T])
	return res, err
}
