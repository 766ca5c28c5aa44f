package app_test

import (
	"errors"
	"testing"
	"time"

	"hotel_catalog/internal/app"
	"hotel_catalog/internal/domain"
)

var now = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

func mapLine(t *testing.T, line string) (domain.CatalogHotel, error) {
	t.Helper()
	obj, err := app.DecodeDumpLine([]byte(line))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return app.MapDumpHotel(obj, now)
}

func TestMapDumpHotel_RegionFields(t *testing.T) {
	h, err := mapLine(t, `{"id":"h1","star_rating":4,"region":{"country_code":"FR","name":"Paris"}}`)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if h.ID != "h1" || h.Country != "FR" || h.City != "Paris" || h.StarRating != 4 {
		t.Fatalf("unexpected hotel: %+v", h)
	}
	if h.Name != "H1" || !h.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected derived fields: name=%q updated=%v", h.Name, h.UpdatedAt)
	}
	if h.Images == nil || h.RoomGroups == nil || h.Amenities == nil {
		t.Fatalf("collections must be non-nil: %+v", h)
	}
}

func TestMapDumpHotel_Envelope(t *testing.T) {
	h, err := mapLine(t, `{"data":{"id":"h2","hid":"42","star_rating":"5"}}`)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if h.ID != "h2" || h.HID != 42 || h.StarRating != 5 {
		t.Fatalf("unexpected hotel: %+v", h)
	}
}

func TestMapDumpHotel_DecimalStringStars(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want int
	}{
		{`"4.5"`, 4},
		{`"3,0"`, 3},
		{`4.5`, 4},
	} {
		h, err := mapLine(t, `{"id":"h","star_rating":`+tc.in+`}`)
		if err != nil {
			t.Fatalf("map %s: %v", tc.in, err)
		}
		if h.StarRating != tc.want {
			t.Fatalf("star_rating %s: got %d want %d", tc.in, h.StarRating, tc.want)
		}
	}
}

func TestMapDumpHotel_MissingID(t *testing.T) {
	if _, err := mapLine(t, `{"name":"Nameless","star_rating":5}`); !errors.Is(err, app.ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestDecodeDumpLine_Malformed(t *testing.T) {
	if _, err := app.DecodeDumpLine([]byte(`{"id":`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestMapDumpHotel_FullRecord(t *testing.T) {
	line := `{
		"id": "hotel_lutetia", "hid": 8473727, "name": "Hotel Lutetia",
		"address": "45 Boulevard Raspail", "latitude": "48.8511", "longitude": 2.3274,
		"hotel_chain": "No chain", "kind": "Hotel", "is_closed": false,
		"images": ["https://cdn/t/{size}/1.jpg", {"url": "https://cdn/t/{size}/2.jpg"}],
		"amenity_groups": [
			{"group_name": "General", "amenities": ["Free WiFi", "Bar"]},
			{"group_name": "Rooms", "amenities": ["Bar", "Air conditioning"]}
		],
		"room_groups": [{
			"room_group_id": 12, "name": "Deluxe Double room",
			"name_struct": {"main_name": "Deluxe Double room", "bedding_type": "double bed", "bathroom": "private bathroom"},
			"room_amenities": ["minibar", "minibar"],
			"images": ["https://cdn/t/{size}/r.jpg"],
			"rg_ext": {"class": 3, "quality": 2, "capacity": 2, "bedding": 3, "view": 1}
		}]
	}`
	h, err := mapLine(t, line)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if h.HID != 8473727 || h.Lat != 48.8511 || h.Lon != 2.3274 || h.Chain != "" || h.Kind != "Hotel" {
		t.Fatalf("unexpected scalar fields: %+v", h)
	}
	if len(h.Images) != 2 || h.Images[1] != "https://cdn/t/{size}/2.jpg" {
		t.Fatalf("unexpected images: %v", h.Images)
	}
	if len(h.Amenities) != 3 {
		t.Fatalf("amenities must be flattened and deduped: %v", h.Amenities)
	}
	if len(h.RoomGroups) != 1 {
		t.Fatalf("expected one room group")
	}
	g := h.RoomGroups[0]
	if g.GroupID != 12 || g.NameStruct.BeddingType != "double bed" || len(g.Amenities) != 1 {
		t.Fatalf("unexpected room group: %+v", g)
	}
	if g.Ext.Class != 3 || g.Ext.Capacity != 2 || g.Ext.View != 1 {
		t.Fatalf("unexpected rg_ext: %+v", g.Ext)
	}
}
