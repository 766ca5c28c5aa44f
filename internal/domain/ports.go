package domain

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

type CatalogRepository interface {
	// Write path
	UpsertHotels(ctx context.Context, hs []CatalogHotel) error

	// Read paths
	GetByHIDs(ctx context.Context, hids []int64) ([]CatalogHotel, error)
	GetByHID(ctx context.Context, hid int64) (CatalogHotel, error)
	ListByCity(ctx context.Context, city string, limit int) ([]CatalogHotel, error)
}

type InventoryClient interface {
	Search(ctx context.Context, req SearchRequest) ([]FeedHotel, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type EventPublisher interface {
	PublishSyncCompleted(ctx context.Context, s SyncSummary) error
}
