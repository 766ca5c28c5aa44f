package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"hotel_catalog/internal/domain"
)

// ---- fakes ----

type fakeRepo struct {
	mu       sync.Mutex
	rows     []domain.CatalogHotel
	err      error
	queries  [][]int64
	byCity   int
	lastCity string
}

func (f *fakeRepo) UpsertHotels(ctx context.Context, hs []domain.CatalogHotel) error { return nil }

func (f *fakeRepo) GetByHIDs(ctx context.Context, hids []int64) ([]domain.CatalogHotel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, append([]int64(nil), hids...))
	if f.err != nil {
		return nil, f.err
	}
	want := make(map[int64]bool, len(hids))
	for _, h := range hids {
		want[h] = true
	}
	var out []domain.CatalogHotel
	for _, r := range f.rows {
		if want[r.HID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetByHID(ctx context.Context, hid int64) (domain.CatalogHotel, error) {
	if f.err != nil {
		return domain.CatalogHotel{}, f.err
	}
	for _, r := range f.rows {
		if r.HID == hid {
			return r, nil
		}
	}
	return domain.CatalogHotel{}, domain.ErrNotFound
}

func (f *fakeRepo) ListByCity(ctx context.Context, city string, limit int) ([]domain.CatalogHotel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byCity++
	f.lastCity = city
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

// fakeCache stores JSON like the Redis adapter does.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

type fakeFeed struct {
	hotels []domain.FeedHotel
	err    error
}

func (f fakeFeed) Search(ctx context.Context, req domain.SearchRequest) ([]domain.FeedHotel, error) {
	return f.hotels, f.err
}

var errDown = errors.New("connection refused")
