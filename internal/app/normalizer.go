package app

import (
	"strings"

	"github.com/google/uuid"

	"hotel_catalog/internal/domain"
)

const (
	DefaultImageSize    = "240x240"
	defaultCurrency     = "USD"
	defaultBoard        = "Room Only"
	defaultCancellation = "Free cancellation until 24 hours before check-in"
	defaultRoomName     = "Standard Room"
	defaultRoomType     = "standard"
	defaultAdults       = 2
	sizePlaceholder     = "{size}"
)

var roomKeywords = []string{"standard", "deluxe", "suite", "executive", "premium", "superior", "junior", "presidential"}

// meal codes as reported by the feed
var boardLabels = map[string]string{
	"nomeal":        defaultBoard,
	"breakfast":     "Breakfast Included",
	"half-board":    "Half Board",
	"full-board":    "Full Board",
	"all-inclusive": "All Inclusive",
	"dinner":        "Dinner Included",
	"lunch":         "Lunch Included",
}

// RewriteImageURL substitutes the size token into a templated image URL.
// URLs without a {size} placeholder are returned unchanged.
func RewriteImageURL(url, size string) string {
	if !strings.Contains(url, sizePlaceholder) {
		return url
	}
	return strings.ReplaceAll(url, sizePlaceholder, size)
}

// Normalizer turns catalog image templates and feed rates into renderable output.
type Normalizer struct {
	size  string
	newID func() string
}

func NewNormalizer(size string) *Normalizer {
	if size == "" {
		size = DefaultImageSize
	}
	return &Normalizer{size: size, newID: uuid.NewString}
}

func (n *Normalizer) Images(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, RewriteImageURL(u, n.size))
		}
	}
	return out
}

// MatchRoomGroup finds the room group for a rate name. The bool reports a
// name match; a group returned with false is the image fallback.
func MatchRoomGroup(roomName string, groups []domain.RoomGroup) (*domain.RoomGroup, bool) {
	name := strings.ToLower(strings.TrimSpace(roomName))
	if name != "" {
		for i := range groups {
			if roomNameMatches(name, groups[i]) {
				return &groups[i], true
			}
		}
	}
	for i := range groups {
		if len(groups[i].Images) > 0 {
			return &groups[i], false
		}
	}
	return nil, false
}

func roomNameMatches(rate string, g domain.RoomGroup) bool {
	for _, cand := range []string{g.Name, g.NameStruct.MainName} {
		c := strings.ToLower(strings.TrimSpace(cand))
		if c == "" {
			continue
		}
		if strings.Contains(rate, c) || strings.Contains(c, rate) {
			return true
		}
		for _, kw := range roomKeywords {
			if strings.Contains(rate, kw) && strings.Contains(c, kw) {
				return true
			}
		}
	}
	return false
}

func roomType(name string) string {
	lower := strings.ToLower(name)
	for _, kw := range roomKeywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return defaultRoomType
}

func boardType(meal string) string {
	m := strings.ToLower(strings.TrimSpace(meal))
	if m == "" {
		return defaultBoard
	}
	if l, ok := boardLabels[m]; ok {
		return l
	}
	return titleCase(strings.ReplaceAll(m, "-", " "))
}

// Rooms normalizes every rate against the hotel's room groups. hotelImages
// must already be rewritten; it backs rooms that resolve no group images.
func (n *Normalizer) Rooms(rates []domain.RoomRate, groups []domain.RoomGroup, hotelImages []string) []domain.MergedRoom {
	out := make([]domain.MergedRoom, 0, len(rates))
	for _, r := range rates {
		out = append(out, n.room(r, groups, hotelImages))
	}
	return out
}

func (n *Normalizer) room(r domain.RoomRate, groups []domain.RoomGroup, hotelImages []string) domain.MergedRoom {
	mr := domain.MergedRoom{
		ID:                 r.MatchHash,
		Name:               strings.TrimSpace(r.RoomName),
		Capacity:           domain.Capacity{Adults: defaultAdults},
		Price:              domain.Price{Amount: r.Amount, Currency: r.Currency},
		CancellationPolicy: r.Cancellation,
		BoardType:          boardType(r.Meal),
		Refundable:         r.Refundable == nil || *r.Refundable,
		Available:          r.Available == nil || *r.Available,
	}
	if mr.ID == "" {
		mr.ID = n.newID()
	}
	if mr.Name == "" {
		mr.Name = defaultRoomName
	}
	mr.Type = roomType(mr.Name)
	if r.Adults != nil && *r.Adults > 0 {
		mr.Capacity.Adults = *r.Adults
	}
	if r.Children != nil && *r.Children >= 0 {
		mr.Capacity.Children = *r.Children
	}
	if mr.Price.Currency == "" {
		mr.Price.Currency = defaultCurrency
	}
	if mr.CancellationPolicy == "" {
		mr.CancellationPolicy = defaultCancellation
	}

	if g, _ := MatchRoomGroup(r.RoomName, groups); g != nil {
		mr.RoomGroupID = g.GroupID
		mr.Images = n.Images(g.Images)
		mr.Amenities = append([]string(nil), g.Amenities...)
		mr.Description = describe(*g)
	}
	if len(mr.Images) == 0 {
		mr.Images = append([]string(nil), hotelImages...)
	}
	if mr.Amenities == nil {
		mr.Amenities = []string{}
	}
	if mr.Description == "" {
		mr.Description = mr.Name
	}
	return mr
}

func describe(g domain.RoomGroup) string {
	return joinNonEmpty(g.Name, g.NameStruct.BeddingType, g.NameStruct.Bathroom)
}
