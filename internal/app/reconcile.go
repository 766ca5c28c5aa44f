package app

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"hotel_catalog/internal/adapters/observability"
	"hotel_catalog/internal/domain"
)

const FallbackImage = "https://cdn.worldota.net/t/240x240/content/default/hotel-placeholder.jpg"

var fallbackAmenities = []string{"Free WiFi", "24-hour front desk", "Air conditioning"}

type EngineConfig struct {
	ImageSize  string
	FuzzyMatch bool
	Match      MatchConfig
}

// Engine merges feed hotels with catalog rows: direct HID match first, the
// legacy fuzzy matcher second, a synthesized placeholder last.
type Engine struct {
	fuzzy   bool
	matcher *Matcher
	norm    *Normalizer
}

func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		fuzzy:   cfg.FuzzyMatch,
		matcher: NewMatcher(cfg.Match),
		norm:    NewNormalizer(cfg.ImageSize),
	}
}

// Reconcile returns exactly one MergedHotel per feed hotel, in input order.
// byHID is the bulk-fetched catalog; candidates feed the fuzzy path and may
// be nil.
func (e *Engine) Reconcile(feed []domain.FeedHotel, byHID map[int64]domain.CatalogHotel, candidates []domain.CatalogHotel) []domain.MergedHotel {
	out := make([]domain.MergedHotel, len(feed))
	for i, fh := range feed {
		out[i] = e.reconcileOne(fh, byHID, candidates)
		observability.ObserveReconcile(string(out[i].State))
	}
	return out
}

func (e *Engine) reconcileOne(fh domain.FeedHotel, byHID map[int64]domain.CatalogHotel, candidates []domain.CatalogHotel) (mh domain.MergedHotel) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("feed_id", fh.ID).Int64("hid", fh.HID).
				Err(fmt.Errorf("%v", r)).Msg("reconcile failed; synthesizing placeholder")
			mh = e.merge(fh, Placeholder(fh), domain.MatchSynthesized)
		}
	}()

	if h, ok := e.match(fh, byHID, candidates); ok {
		return e.merge(fh, h.hotel, h.state)
	}
	return e.merge(fh, Placeholder(fh), domain.MatchSynthesized)
}

type matched struct {
	hotel domain.CatalogHotel
	state domain.MatchState
}

func (e *Engine) match(fh domain.FeedHotel, byHID map[int64]domain.CatalogHotel, candidates []domain.CatalogHotel) (matched, bool) {
	if fh.HID > 0 {
		if h, ok := byHID[fh.HID]; ok {
			return matched{h, domain.MatchDirect}, true
		}
	}
	if e.fuzzy && len(candidates) > 0 && fh.ID != "" {
		if h, score, ok := e.matcher.Best(fh.ID, candidates); ok {
			log.Debug().Str("feed_id", fh.ID).Str("catalog_id", h.ID).Float64("score", score).Msg("fuzzy match")
			return matched{h, domain.MatchFuzzy}, true
		}
	}
	return matched{}, false
}

// Placeholder synthesizes a catalog-shaped record from the feed identifier.
func Placeholder(fh domain.FeedHotel) domain.CatalogHotel {
	name := titleCase(humanize(fh.ID))
	if name == "" {
		name = "Hotel"
	}
	return domain.CatalogHotel{
		ID:         fh.ID,
		HID:        fh.HID,
		Name:       name,
		Address:    "Unknown",
		City:       "Unknown",
		Country:    "Unknown",
		Rating:     4.0,
		StarRating: 3,
		Amenities:  append([]string(nil), fallbackAmenities...),
		Images:     []string{FallbackImage},
		RoomGroups: []domain.RoomGroup{},
		IsFallback: true,
	}
}

func (e *Engine) merge(fh domain.FeedHotel, h domain.CatalogHotel, state domain.MatchState) domain.MergedHotel {
	images := e.norm.Images(h.Images)
	if len(images) == 0 {
		images = []string{FallbackImage}
	}
	h.Images = images
	groups := make([]domain.RoomGroup, len(h.RoomGroups))
	for i, g := range h.RoomGroups {
		g.Images = e.norm.Images(g.Images)
		groups[i] = g
	}
	h.RoomGroups = groups

	return domain.MergedHotel{
		FeedID:     fh.ID,
		HID:        fh.HID,
		State:      state,
		IsFallback: state == domain.MatchSynthesized,
		Hotel:      h,
		Images:     images,
		Rooms:      e.norm.Rooms(fh.Rates, groups, images),
	}
}
