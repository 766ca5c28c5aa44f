package domain

import "time"

// CatalogHotel is one row of the local catalog. ID is the upsert conflict
// target; HID is unique when non-zero.
type CatalogHotel struct {
	ID         string      `json:"id"`
	HID        int64       `json:"hid,omitempty"`
	Name       string      `json:"name"`
	Address    string      `json:"address"`
	City       string      `json:"city"`
	Country    string      `json:"country"`
	Lat        float64     `json:"latitude"`
	Lon        float64     `json:"longitude"`
	Amenities  []string    `json:"amenities"`
	StarRating int         `json:"star_rating"`
	Rating     float64     `json:"rating,omitempty"`
	Chain      string      `json:"chain,omitempty"`
	Kind       string      `json:"kind,omitempty"`
	Images     []string    `json:"images"`
	RoomGroups []RoomGroup `json:"room_groups"`
	IsClosed   bool        `json:"is_closed"`
	IsFallback bool        `json:"is_fallback"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type RoomGroup struct {
	GroupID    int64         `json:"room_group_id"`
	Name       string        `json:"name"`
	NameStruct RoomNameParts `json:"name_struct"`
	Amenities  []string      `json:"room_amenities"`
	Images     []string      `json:"images"`
	Ext        RoomGroupExt  `json:"rg_ext"`
}

type RoomNameParts struct {
	Bathroom    string `json:"bathroom,omitempty"`
	BeddingType string `json:"bedding_type,omitempty"`
	MainName    string `json:"main_name,omitempty"`
}

// RoomGroupExt carries the feed's numeric room classification flags. They are
// matching signals only and never rendered.
type RoomGroupExt struct {
	Class    int `json:"class"`
	Quality  int `json:"quality"`
	Sex      int `json:"sex"`
	Bathroom int `json:"bathroom"`
	Bedding  int `json:"bedding"`
	Family   int `json:"family"`
	Capacity int `json:"capacity"`
	Club     int `json:"club"`
	Bedrooms int `json:"bedrooms"`
	Balcony  int `json:"balcony"`
	View     int `json:"view"`
	Floor    int `json:"floor"`
}

// MatchState records which reconciliation path produced a MergedHotel.
type MatchState string

const (
	MatchDirect      MatchState = "MERGED_DIRECT"
	MatchFuzzy       MatchState = "MERGED_FUZZY"
	MatchSynthesized MatchState = "SYNTHESIZED"
)

// MergedHotel is a search result: one catalog row (or placeholder) enriched
// with the feed's live rates. Never persisted.
type MergedHotel struct {
	FeedID     string       `json:"feed_id"`
	HID        int64        `json:"hid,omitempty"`
	State      MatchState   `json:"match_state"`
	IsFallback bool         `json:"is_fallback"`
	Hotel      CatalogHotel `json:"hotel"`
	Images     []string     `json:"images"`
	Rooms      []MergedRoom `json:"rooms"`
}

type MergedRoom struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Type               string   `json:"type"`
	Capacity           Capacity `json:"capacity"`
	Price              Price    `json:"price"`
	CancellationPolicy string   `json:"cancellation_policy"`
	BoardType          string   `json:"board_type"`
	Refundable         bool     `json:"refundable"`
	Available          bool     `json:"available"`
	RoomGroupID        int64    `json:"room_group_id,omitempty"`
	Images             []string `json:"images"`
	Amenities          []string `json:"amenities"`
	Description        string   `json:"description"`
}

type Capacity struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
}

type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}
