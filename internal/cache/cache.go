package cache

import (
	"context"
	"time"

	"butikpos/backend/internal/recommend"
)

type DashboardCache interface {
	Get(ctx context.Context, key string) (*recommend.Dashboard, bool, error)
	Set(ctx context.Context, key string, value *recommend.Dashboard, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopDashboardCache struct{}

func (NoopDashboardCache) Get(_ context.Context, _ string) (*recommend.Dashboard, bool, error) {
	return nil, false, nil
}

func (NoopDashboardCache) Set(_ context.Context, _ string, _ *recommend.Dashboard, _ time.Duration) error {
	return nil
}

func (NoopDashboardCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
