package app

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"hotel_catalog/internal/domain"
)

const (
	dateLayout      = "2006-01-02"
	candidateLimit  = 200
	mockHotelsCount = 3
)

var ErrInvalidRequest = errors.New("invalid search request")

type SearchResult struct {
	Hotels   []domain.MergedHotel `json:"hotels"`
	Degraded bool                 `json:"degraded"`
}

type SearchService struct {
	feed    domain.InventoryClient
	catalog *CatalogFetcher
	engine  *Engine
	fuzzy   bool
}

func NewSearchService(feed domain.InventoryClient, catalog *CatalogFetcher, engine *Engine) *SearchService {
	return &SearchService{feed: feed, catalog: catalog, engine: engine, fuzzy: engine.fuzzy}
}

// Normalize validates a request and fills defaults.
func Normalize(req domain.SearchRequest) (domain.SearchRequest, error) {
	req.Destination = strings.TrimSpace(req.Destination)
	if req.Destination == "" && req.RegionID == 0 && len(req.HIDs) == 0 {
		return req, fmt.Errorf("%w: destination is required", ErrInvalidRequest)
	}
	in, err := time.Parse(dateLayout, req.CheckIn)
	if err != nil {
		return req, fmt.Errorf("%w: checkin: %v", ErrInvalidRequest, err)
	}
	out, err := time.Parse(dateLayout, req.CheckOut)
	if err != nil {
		return req, fmt.Errorf("%w: checkout: %v", ErrInvalidRequest, err)
	}
	if !out.After(in) {
		return req, fmt.Errorf("%w: checkout must be after checkin", ErrInvalidRequest)
	}
	if req.Adults == 0 {
		req.Adults = 2
	}
	if req.Adults < 1 || req.Children < 0 {
		return req, fmt.Errorf("%w: guest counts", ErrInvalidRequest)
	}
	if req.Rooms == 0 {
		req.Rooms = 1
	}
	if req.Rooms < 1 {
		return req, fmt.Errorf("%w: rooms must be at least 1", ErrInvalidRequest)
	}
	if req.Currency == "" {
		req.Currency = defaultCurrency
	}
	if req.Language == "" {
		req.Language = "en"
	}
	return req, nil
}

// Search always answers with one merged hotel per feed hotel. Feed failures
// degrade to mock data; catalog failures degrade to placeholders.
func (s *SearchService) Search(ctx context.Context, req domain.SearchRequest) (SearchResult, error) {
	req, err := Normalize(req)
	if err != nil {
		return SearchResult{}, err
	}

	var res SearchResult
	feed, err := s.feed.Search(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return SearchResult{}, ctx.Err()
		}
		log.Warn().Err(err).Str("destination", req.Destination).Msg("inventory search failed; serving mock feed")
		feed = MockFeed(req)
		res.Degraded = true
	}

	hids := make([]int64, 0, len(feed))
	for _, fh := range feed {
		hids = append(hids, fh.HID)
	}

	var (
		byHID      map[int64]domain.CatalogHotel
		candidates []domain.CatalogHotel
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		byHID = s.catalog.FetchByHIDs(gctx, hids)
		return nil
	})
	if s.fuzzy {
		g.Go(func() error {
			candidates = s.catalog.Candidates(gctx, req.Destination, candidateLimit)
			return nil
		})
	}
	_ = g.Wait()

	res.Hotels = s.engine.Reconcile(feed, byHID, candidates)
	return res, nil
}

// MockFeed is a deterministic stand-in feed derived from the request, used
// when the inventory API is unreachable.
func MockFeed(req domain.SearchRequest) []domain.FeedHotel {
	dest := strings.ToLower(strings.Join(strings.Fields(req.Destination), "_"))
	if dest == "" {
		dest = "destination"
	}
	hsh := fnv.New32a()
	_, _ = hsh.Write([]byte(dest))
	base := float64(80 + hsh.Sum32()%80)

	names := []string{"grand_hotel", "city_center_inn", "boutique_suites"}
	rooms := []string{"Standard Double Room", "Deluxe King Room", "Junior Suite"}
	out := make([]domain.FeedHotel, 0, mockHotelsCount)
	for i := 0; i < mockHotelsCount; i++ {
		id := fmt.Sprintf("%s_%s", names[i], dest)
		out = append(out, domain.FeedHotel{
			ID: id,
			Rates: []domain.RoomRate{{
				MatchHash: fmt.Sprintf("mock-%s-%d", dest, i),
				RoomName:  rooms[i],
				Amount:    base + float64(i*35),
				Currency:  req.Currency,
				Meal:      "nomeal",
			}},
		})
	}
	return out
}
