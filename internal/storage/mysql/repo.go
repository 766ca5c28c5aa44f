package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"hotel_catalog/internal/domain"
)

// maxRowsPerInsert keeps a multi-row upsert under the server's placeholder
// limit (65535 / 16 columns).
const maxRowsPerInsert = 500

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
func valInt64(n int64) any {
	if n <= 0 {
		return nil
	}
	return n
}
func valF64(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}
func valJSON(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// UpsertHotels writes rows keyed on id. Re-running the same batch is a no-op
// apart from updated_at.
func (r *Repo) UpsertHotels(ctx context.Context, hs []domain.CatalogHotel) error {
	for start := 0; start < len(hs); start += maxRowsPerInsert {
		end := min(start+maxRowsPerInsert, len(hs))
		if err := r.upsertChunk(ctx, hs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) upsertChunk(ctx context.Context, hs []domain.CatalogHotel) error {
	values := make([]string, 0, len(hs))
	args := make([]any, 0, len(hs)*16)
	for _, h := range hs {
		if h.ID == "" {
			return fmt.Errorf("upsert: hotel without id")
		}
		amen, err := valJSON(nonNil(h.Amenities))
		if err != nil {
			return fmt.Errorf("upsert %s: amenities: %w", h.ID, err)
		}
		imgs, err := valJSON(nonNil(h.Images))
		if err != nil {
			return fmt.Errorf("upsert %s: images: %w", h.ID, err)
		}
		groups := h.RoomGroups
		if groups == nil {
			groups = []domain.RoomGroup{}
		}
		rgs, err := valJSON(groups)
		if err != nil {
			return fmt.Errorf("upsert %s: room_groups: %w", h.ID, err)
		}
		values = append(values, hotelRowPlaceholder)
		args = append(args,
			h.ID,
			valInt64(h.HID), // NULL keeps the unique key open for rows without a hid
			h.Name,
			valStr(h.Address),
			valStr(h.City),
			valStr(h.Country),
			valF64(h.Lat),
			valF64(h.Lon),
			h.StarRating,
			valF64(h.Rating),
			valStr(h.Chain),
			valStr(h.Kind),
			h.IsClosed,
			amen,
			imgs,
			rgs,
		)
	}
	sqlStr := insertHotelsPrefix + strings.Join(values, ",") + insertHotelsOnDup
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *Repo) GetByHIDs(ctx context.Context, hids []int64) ([]domain.CatalogHotel, error) {
	if len(hids) == 0 {
		return nil, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(hids)), ",")
	args := make([]any, len(hids))
	for i, id := range hids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, selectByHIDsPrefix+"("+marks+")", args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repo) GetByHID(ctx context.Context, hid int64) (domain.CatalogHotel, error) {
	h, err := scanHotel(r.db.QueryRowContext(ctx, selectByHIDSQL, hid))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CatalogHotel{}, domain.ErrNotFound
	}
	return h, err
}

// ListByCity returns open hotels in a city, best rated first.
func (r *Repo) ListByCity(ctx context.Context, city string, limit int) ([]domain.CatalogHotel, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, listByCitySQL, city, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func collect(rows *sql.Rows) ([]domain.CatalogHotel, error) {
	defer rows.Close()
	var out []domain.CatalogHotel
	for rows.Next() {
		h, err := scanHotel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanHotel(s scanner) (domain.CatalogHotel, error) {
	var h domain.CatalogHotel
	var (
		hid                          sql.NullInt64
		address, city, country       sql.NullString
		chain, kind                  sql.NullString
		lat, lon, rating             sql.NullFloat64
		amenities, images, roomGroup []byte
	)
	if err := s.Scan(
		&h.ID, &hid, &h.Name,
		&address, &city, &country,
		&lat, &lon,
		&h.StarRating, &rating,
		&chain, &kind,
		&h.IsClosed,
		&amenities, &images, &roomGroup,
		&h.UpdatedAt,
	); err != nil {
		return domain.CatalogHotel{}, err
	}
	h.HID = hid.Int64
	h.Address, h.City, h.Country = address.String, city.String, country.String
	h.Chain, h.Kind = chain.String, kind.String
	h.Lat, h.Lon, h.Rating = lat.Float64, lon.Float64, rating.Float64

	if len(amenities) > 0 {
		if err := json.Unmarshal(amenities, &h.Amenities); err != nil {
			return domain.CatalogHotel{}, fmt.Errorf("hotel %s: amenities: %w", h.ID, err)
		}
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &h.Images); err != nil {
			return domain.CatalogHotel{}, fmt.Errorf("hotel %s: images: %w", h.ID, err)
		}
	}
	if len(roomGroup) > 0 {
		if err := json.Unmarshal(roomGroup, &h.RoomGroups); err != nil {
			return domain.CatalogHotel{}, fmt.Errorf("hotel %s: room_groups: %w", h.ID, err)
		}
	}
	return h, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
