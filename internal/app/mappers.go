package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"

	"hotel_catalog/internal/domain"
)

var ErrMissingID = errors.New("record has no id")

/********** alias registries (single source of truth) **********/

var hotelAliases = map[string][]string{
	"id":      {"id", "hotel_id"},
	"hid":     {"hid", "hotel_hid"},
	"name":    {"name", "hotel_name"},
	"address": {"address", "address_raw", "full_address"},
	"country": {"region.country_code", "country_code", "country"},
	"city":    {"region.name", "city", "region.city"},
	"chain":   {"hotel_chain", "chain", "brand"},
	"kind":    {"kind", "hotel_type", "type"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns a string (or stringified number) at path, or "".
func lookupStr(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return s
		}
	}
	return ""
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, " ")
}

// humanize turns a feed slug like "grand_hotel_paris" into "grand hotel paris".
func humanize(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), " ")
}

// titleCase capitalizes the first letter of every word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// getFloatFlexible: number from several paths (float64/json.Number/string like "4,5").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return &f
			}
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func firstInt64Flexible(m map[string]any, paths ...string) *int64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			x := int64(v)
			return &x
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return &n
			}
			if f, err := v.Float64(); err == nil {
				x := int64(f)
				return &x
			}
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return &n
			}
			// "4.5" or "4,5" truncates like a JSON number does
			if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
				x := int64(f)
				return &x
			}
		}
	}
	return nil
}

func intOr(m map[string]any, def int, paths ...string) int {
	if v := firstInt64Flexible(m, paths...); v != nil {
		return int(*v)
	}
	return def
}

func boolAt(m map[string]any, path string) bool {
	switch v := lookupAny(m, path).(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// firstSliceStrings: accept []any with either strings or {url/src/name}.
func firstSliceStrings(m map[string]any, paths ...string) []string {
	for _, k := range paths {
		if raw, ok := lookupAny(m, k).([]any); ok {
			out := make([]string, 0, len(raw))
			for _, it := range raw {
				switch t := it.(type) {
				case string:
					if t != "" {
						out = append(out, t)
					}
				case map[string]any:
					for _, f := range []string{"url", "src", "name"} {
						if u, ok := t[f].(string); ok && u != "" {
							out = append(out, u)
							break
						}
					}
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

/********** dump mapper **********/

// DecodeDumpLine parses one line of a catalog dump. Both a bare hotel object
// and a {"data": {...}} envelope are accepted.
func DecodeDumpLine(line []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if inner, ok := raw["data"].(map[string]any); ok {
		return inner, nil
	}
	return raw, nil
}

// MapDumpHotel maps a decoded dump object to the catalog shape. Records
// without an id return ErrMissingID.
func MapDumpHotel(p map[string]any, now time.Time) (domain.CatalogHotel, error) {
	id := firstNonEmptyAlias(p, hotelAliases, "id")
	if id == "" {
		return domain.CatalogHotel{}, ErrMissingID
	}
	h := domain.CatalogHotel{
		ID:         id,
		Name:       firstNonEmptyAlias(p, hotelAliases, "name"),
		Address:    firstNonEmptyAlias(p, hotelAliases, "address"),
		Country:    firstNonEmptyAlias(p, hotelAliases, "country"),
		City:       firstNonEmptyAlias(p, hotelAliases, "city"),
		Chain:      firstNonEmptyAlias(p, hotelAliases, "chain"),
		Kind:       firstNonEmptyAlias(p, hotelAliases, "kind"),
		StarRating: intOr(p, 0, "star_rating", "stars"),
		Images:     firstSliceStrings(p, "images", "photos"),
		IsClosed:   boolAt(p, "is_closed"),
		UpdatedAt:  now.UTC(),
	}
	if v := firstInt64Flexible(p, hotelAliases["hid"]...); v != nil && *v > 0 {
		h.HID = *v
	}
	if h.Name == "" {
		h.Name = titleCase(humanize(id))
	}
	if f := getFloatFlexible(p, "latitude", "lat", "location.lat"); f != nil {
		h.Lat = *f
	}
	if f := getFloatFlexible(p, "longitude", "lon", "lng", "location.lon"); f != nil {
		h.Lon = *f
	}
	if f := getFloatFlexible(p, "rating", "review_score"); f != nil {
		h.Rating = *f
	}
	if h.Chain == "No chain" {
		h.Chain = ""
	}

	var amen []string
	if groups, ok := lookupAny(p, "amenity_groups").([]any); ok {
		for _, g := range groups {
			if gm, ok := g.(map[string]any); ok {
				amen = append(amen, firstSliceStrings(gm, "amenities")...)
			}
		}
	}
	if len(amen) == 0 {
		amen = firstSliceStrings(p, "amenities", "facilities")
	}
	h.Amenities = dedupe(amen)
	if h.Images == nil {
		h.Images = []string{}
	}

	h.RoomGroups = []domain.RoomGroup{}
	if groups, ok := lookupAny(p, "room_groups").([]any); ok {
		for _, g := range groups {
			if gm, ok := g.(map[string]any); ok {
				h.RoomGroups = append(h.RoomGroups, mapRoomGroup(gm))
			}
		}
	}
	return h, nil
}

func mapRoomGroup(g map[string]any) domain.RoomGroup {
	rg := domain.RoomGroup{
		Name: lookupStr(g, "name"),
		NameStruct: domain.RoomNameParts{
			Bathroom:    lookupStr(g, "name_struct.bathroom"),
			BeddingType: lookupStr(g, "name_struct.bedding_type"),
			MainName:    lookupStr(g, "name_struct.main_name"),
		},
		Amenities: dedupe(firstSliceStrings(g, "room_amenities", "amenities")),
		Images:    firstSliceStrings(g, "images"),
		Ext:       mapRoomExt(g),
	}
	if v := firstInt64Flexible(g, "room_group_id", "id"); v != nil {
		rg.GroupID = *v
	}
	if rg.Images == nil {
		rg.Images = []string{}
	}
	return rg
}

func mapRoomExt(g map[string]any) domain.RoomGroupExt {
	return domain.RoomGroupExt{
		Class:    intOr(g, 0, "rg_ext.class"),
		Quality:  intOr(g, 0, "rg_ext.quality"),
		Sex:      intOr(g, 0, "rg_ext.sex"),
		Bathroom: intOr(g, 0, "rg_ext.bathroom"),
		Bedding:  intOr(g, 0, "rg_ext.bedding"),
		Family:   intOr(g, 0, "rg_ext.family"),
		Capacity: intOr(g, 0, "rg_ext.capacity"),
		Club:     intOr(g, 0, "rg_ext.club"),
		Bedrooms: intOr(g, 0, "rg_ext.bedrooms"),
		Balcony:  intOr(g, 0, "rg_ext.balcony"),
		View:     intOr(g, 0, "rg_ext.view"),
		Floor:    intOr(g, 0, "rg_ext.floor"),
	}
}
