package domain

// SearchRequest is the inventory search input.
type SearchRequest struct {
	Destination string  `json:"destination"`
	RegionID    int64   `json:"region_id,omitempty"`
	HIDs        []int64 `json:"hids,omitempty"`
	CheckIn     string  `json:"checkin"`  // YYYY-MM-DD
	CheckOut    string  `json:"checkout"` // YYYY-MM-DD
	Adults      int     `json:"adults"`
	Children    int     `json:"children"`
	Rooms       int     `json:"rooms"`
	Currency    string  `json:"currency"`
	Language    string  `json:"language"`
}

// FeedHotel is one hotel of an inventory search response. HID is zero when
// the feed did not supply one.
type FeedHotel struct {
	ID    string     `json:"id"`
	HID   int64      `json:"hid"`
	Rates []RoomRate `json:"rates"`
}

// RoomRate is a live rate line. Pointer fields are tri-state: nil means the
// feed did not say.
type RoomRate struct {
	MatchHash    string       `json:"match_hash"`
	RoomName     string       `json:"room_name"`
	Amount       float64      `json:"amount"`
	Currency     string       `json:"currency"`
	Meal         string       `json:"meal"`
	Adults       *int         `json:"adults,omitempty"`
	Children     *int         `json:"children,omitempty"`
	Cancellation string       `json:"cancellation,omitempty"`
	Refundable   *bool        `json:"refundable,omitempty"`
	Available    *bool        `json:"available,omitempty"`
	Ext          RoomGroupExt `json:"rg_ext"`
}
