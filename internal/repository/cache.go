package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// 表示用ビューのキャッシュ。消せなくても処理は続ける
type ViewCache interface {
	// dstにJSONを戻す。無ければErrCacheMiss
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Evict(ctx context.Context, keys ...string) error
}

func OrdersCacheKey(userID int64) string {
	return fmt.Sprintf("orders:user:%d", userID)
}

func HistoryCacheKey(userID int64) string {
	return fmt.Sprintf("history:user:%d", userID)
}
