package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_catalog/internal/domain"
)

// CatalogFetcher bulk-loads catalog rows by HID. A lookup failure never
// reaches the caller: it is logged and an empty result is returned so the
// engine falls back to placeholder records.
type CatalogFetcher struct {
	repo     domain.CatalogRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

// NewCatalogFetcher accepts a nil cache.
func NewCatalogFetcher(r domain.CatalogRepository, c domain.Cache, ttl time.Duration) *CatalogFetcher {
	return &CatalogFetcher{repo: r, cache: c, cacheTTL: ttl}
}

func hidKey(hid int64) string { return fmt.Sprintf("catalog:hid:%d", hid) }

// UniqueHIDs drops non-positive values and duplicates, keeping first-seen order.
func UniqueHIDs(in []int64) []int64 {
	seen := make(map[int64]struct{}, len(in))
	out := make([]int64, 0, len(in))
	for _, h := range in {
		if h <= 0 {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

func (f *CatalogFetcher) FetchByHIDs(ctx context.Context, hids []int64) map[int64]domain.CatalogHotel {
	keys := UniqueHIDs(hids)
	out := make(map[int64]domain.CatalogHotel, len(keys))
	if len(keys) == 0 {
		return out
	}

	missing := keys
	if f.cache != nil {
		missing = missing[:0:0]
		for _, hid := range keys {
			var h domain.CatalogHotel
			if ok, err := f.cache.Get(ctx, hidKey(hid), &h); err == nil && ok {
				out[hid] = h
				continue
			}
			missing = append(missing, hid)
		}
		if len(missing) == 0 {
			return out
		}
	}

	rows, err := f.repo.GetByHIDs(ctx, missing)
	if err != nil {
		log.Error().Err(err).Int("hids", len(missing)).Msg("catalog lookup failed; using fallback records")
		return out
	}
	for _, h := range rows {
		if h.HID <= 0 {
			continue
		}
		out[h.HID] = h
		if f.cache != nil {
			_ = f.cache.Set(ctx, hidKey(h.HID), h, int(f.cacheTTL.Seconds()))
		}
	}
	return out
}

// Candidates loads the fuzzy-match candidate set for a city. Errors degrade
// to an empty set.
func (f *CatalogFetcher) Candidates(ctx context.Context, city string, limit int) []domain.CatalogHotel {
	if city == "" {
		return nil
	}
	rows, err := f.repo.ListByCity(ctx, city, limit)
	if err != nil {
		log.Warn().Err(err).Str("city", city).Msg("candidate lookup failed")
		return nil
	}
	return rows
}

// Get returns one catalog row by HID, read-through the cache.
func (f *CatalogFetcher) Get(ctx context.Context, hid int64) (domain.CatalogHotel, error) {
	var h domain.CatalogHotel
	if f.cache != nil {
		if ok, _ := f.cache.Get(ctx, hidKey(hid), &h); ok {
			return h, nil
		}
	}
	h, err := f.repo.GetByHID(ctx, hid)
	if err != nil {
		return domain.CatalogHotel{}, err
	}
	if f.cache != nil {
		_ = f.cache.Set(ctx, hidKey(hid), h, int(f.cacheTTL.Seconds()))
	}
	return h, nil
}

// Invalidate evicts cached rows after a write.
func (f *CatalogFetcher) Invalidate(ctx context.Context, hids []int64) {
	if f.cache == nil {
		return
	}
	for _, hid := range UniqueHIDs(hids) {
		_ = f.cache.Del(ctx, hidKey(hid))
	}
}
