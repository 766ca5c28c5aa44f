package app_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"hotel_catalog/internal/app"
	"hotel_catalog/internal/domain"
)

func TestFetchByHIDs_EmptyInputNoQuery(t *testing.T) {
	repo := &fakeRepo{}
	f := app.NewCatalogFetcher(repo, nil, time.Minute)

	for _, in := range [][]int64{nil, {}, {0, -3}} {
		if got := f.FetchByHIDs(context.Background(), in); len(got) != 0 {
			t.Fatalf("expected empty result for %v, got %v", in, got)
		}
	}
	if len(repo.queries) != 0 {
		t.Fatalf("expected no queries, got %v", repo.queries)
	}
}

func TestFetchByHIDs_DedupesIntoOneQuery(t *testing.T) {
	repo := &fakeRepo{rows: []domain.CatalogHotel{{ID: "a", HID: 3}, {ID: "b", HID: 4}}}
	f := app.NewCatalogFetcher(repo, nil, time.Minute)

	got := f.FetchByHIDs(context.Background(), []int64{3, 3, 0, 4, -1, 99})
	if len(got) != 2 || got[3].ID != "a" || got[4].ID != "b" {
		t.Fatalf("unexpected result: %v", got)
	}
	if len(repo.queries) != 1 || !reflect.DeepEqual(repo.queries[0], []int64{3, 4, 99}) {
		t.Fatalf("expected one deduped query, got %v", repo.queries)
	}
}

func TestFetchByHIDs_StoreErrorDegradesToEmpty(t *testing.T) {
	f := app.NewCatalogFetcher(&fakeRepo{err: errDown}, nil, time.Minute)
	if got := f.FetchByHIDs(context.Background(), []int64{1, 2}); len(got) != 0 {
		t.Fatalf("expected empty map on store error, got %v", got)
	}
}

func TestFetchByHIDs_CacheMissThenHit(t *testing.T) {
	repo := &fakeRepo{rows: []domain.CatalogHotel{{ID: "a", HID: 3, Name: "Alpha"}}}
	cache := &fakeCache{}
	f := app.NewCatalogFetcher(repo, cache, 10*time.Minute)
	ctx := context.Background()

	// miss populates the cache
	if got := f.FetchByHIDs(ctx, []int64{3}); got[3].Name != "Alpha" {
		t.Fatalf("unexpected first fetch: %v", got)
	}
	// hit; the store is not asked again
	repo.err = errDown
	if got := f.FetchByHIDs(ctx, []int64{3}); got[3].Name != "Alpha" {
		t.Fatalf("expected cached row, got %v", got)
	}
	if len(repo.queries) != 1 {
		t.Fatalf("expected a single query, got %d", len(repo.queries))
	}

	// partial hit only queries the missing hid
	repo.err = nil
	f.FetchByHIDs(ctx, []int64{3, 8})
	if last := repo.queries[len(repo.queries)-1]; !reflect.DeepEqual(last, []int64{8}) {
		t.Fatalf("expected only the miss to be queried, got %v", last)
	}

	f.Invalidate(ctx, []int64{3})
	if ok, _ := cache.Get(ctx, "catalog:hid:3", &domain.CatalogHotel{}); ok {
		t.Fatalf("expected invalidated key to be gone")
	}
}

func TestGet_ReadThroughAndNotFound(t *testing.T) {
	repo := &fakeRepo{rows: []domain.CatalogHotel{{ID: "a", HID: 3}}}
	cache := &fakeCache{}
	f := app.NewCatalogFetcher(repo, cache, time.Minute)
	ctx := context.Background()

	if h, err := f.Get(ctx, 3); err != nil || h.ID != "a" {
		t.Fatalf("Get: %+v %v", h, err)
	}
	if ok, _ := cache.Get(ctx, "catalog:hid:3", &domain.CatalogHotel{}); !ok {
		t.Fatalf("expected row cached after Get")
	}
	if _, err := f.Get(ctx, 42); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCandidates(t *testing.T) {
	repo := &fakeRepo{rows: []domain.CatalogHotel{{ID: "a"}}}
	f := app.NewCatalogFetcher(repo, nil, time.Minute)
	if got := f.Candidates(context.Background(), "", 10); got != nil || repo.byCity != 0 {
		t.Fatalf("empty city must not query")
	}
	if got := f.Candidates(context.Background(), "Paris", 10); len(got) != 1 || repo.lastCity != "Paris" {
		t.Fatalf("unexpected candidates: %v", got)
	}
	repo.err = errDown
	if got := f.Candidates(context.Background(), "Paris", 10); got != nil {
		t.Fatalf("error must degrade to nil, got %v", got)
	}
}
