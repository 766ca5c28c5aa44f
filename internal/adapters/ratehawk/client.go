// internal/adapters/ratehawk/client.go
package ratehawk

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"hotel_catalog/internal/adapters/observability"
	"hotel_catalog/internal/domain"
)

const defaultChildAge = 10

type Client struct {
	base  string
	hc    *http.Client
	keyID string
	key   string
	rl    *rate.Limiter
}

func New(base, keyID, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base:  strings.TrimRight(base, "/"),
		hc:    &http.Client{Timeout: 20 * time.Second},
		keyID: keyID,
		key:   key,
		rl:    rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// ---- Public API ----

// Search runs a SERP search. Explicit HIDs win over a region id; a bare
// destination string is resolved to a region first.
func (c *Client) Search(ctx context.Context, req domain.SearchRequest) ([]domain.FeedHotel, error) {
	body := serpRequest{
		CheckIn:   req.CheckIn,
		CheckOut:  req.CheckOut,
		Residency: "us",
		Language:  req.Language,
		Currency:  req.Currency,
		Guests:    guests(req.Adults, req.Children, req.Rooms),
	}

	endpoint := "/search/serp/region/"
	switch {
	case len(req.HIDs) > 0:
		endpoint = "/search/serp/hotels/"
		body.HIDs = req.HIDs
	case req.RegionID > 0:
		body.RegionID = req.RegionID
	default:
		id, err := c.ResolveRegion(ctx, req.Destination, req.Language)
		if err != nil {
			return nil, fmt.Errorf("resolve region %q: %w", req.Destination, err)
		}
		body.RegionID = id
	}

	var out envelope[serpData]
	if err := c.post(ctx, endpoint, body, &out); err != nil {
		return nil, err
	}
	if err := out.check(); err != nil {
		return nil, err
	}
	return toFeed(out.Data.Hotels), nil
}

// ResolveRegion maps free text to the feed's region id via multicomplete.
func (c *Client) ResolveRegion(ctx context.Context, query, lang string) (int64, error) {
	var out envelope[struct {
		Regions []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"regions"`
	}]
	if err := c.post(ctx, "/search/multicomplete/", map[string]string{"query": query, "language": lang}, &out); err != nil {
		return 0, err
	}
	if err := out.check(); err != nil {
		return 0, err
	}
	for _, r := range out.Data.Regions {
		if strings.EqualFold(r.Type, "City") {
			return r.ID, nil
		}
	}
	if len(out.Data.Regions) > 0 {
		return out.Data.Regions[0].ID, nil
	}
	return 0, ErrNotFound
}

// ---- wire types ----

type serpRequest struct {
	CheckIn   string       `json:"checkin"`
	CheckOut  string       `json:"checkout"`
	Residency string       `json:"residency"`
	Language  string       `json:"language"`
	Currency  string       `json:"currency,omitempty"`
	Guests    []guestsRoom `json:"guests"`
	RegionID  int64        `json:"region_id,omitempty"`
	HIDs      []int64      `json:"hids,omitempty"`
}

type guestsRoom struct {
	Adults   int   `json:"adults"`
	Children []int `json:"children"`
}

type envelope[T any] struct {
	Data   T       `json:"data"`
	Status string  `json:"status"`
	Error  *string `json:"error"`
}

func (e envelope[T]) check() error {
	if e.Status != "ok" {
		msg := "unknown"
		if e.Error != nil {
			msg = *e.Error
		}
		return fmt.Errorf("ratehawk: status %q: %s", e.Status, msg)
	}
	return nil
}

type serpData struct {
	Hotels []serpHotel `json:"hotels"`
}

type serpHotel struct {
	ID    string     `json:"id"`
	HID   int64      `json:"hid"`
	Rates []serpRate `json:"rates"`
}

type serpRate struct {
	MatchHash      string              `json:"match_hash"`
	RoomName       string              `json:"room_name"`
	Meal           string              `json:"meal"`
	Allotment      *int                `json:"allotment"`
	RgExt          domain.RoomGroupExt `json:"rg_ext"`
	PaymentOptions struct {
		PaymentTypes []struct {
			Amount           string `json:"amount"`
			CurrencyCode     string `json:"currency_code"`
			ShowAmount       string `json:"show_amount"`
			ShowCurrencyCode string `json:"show_currency_code"`
			Cancellation     *struct {
				FreeCancellationBefore *string `json:"free_cancellation_before"`
			} `json:"cancellation_penalties"`
		} `json:"payment_types"`
	} `json:"payment_options"`
}

// guests spreads the party over the requested number of rooms.
func guests(adults, children, rooms int) []guestsRoom {
	if rooms < 1 {
		rooms = 1
	}
	out := make([]guestsRoom, rooms)
	for i := range out {
		out[i].Children = []int{}
	}
	for i := 0; i < adults; i++ {
		out[i%rooms].Adults++
	}
	for i := range out {
		if out[i].Adults == 0 {
			out[i].Adults = 1
		}
	}
	for i := 0; i < children; i++ {
		out[i%rooms].Children = append(out[i%rooms].Children, defaultChildAge)
	}
	return out
}

func toFeed(in []serpHotel) []domain.FeedHotel {
	out := make([]domain.FeedHotel, 0, len(in))
	for _, h := range in {
		fh := domain.FeedHotel{ID: h.ID, HID: h.HID, Rates: make([]domain.RoomRate, 0, len(h.Rates))}
		for _, r := range h.Rates {
			fh.Rates = append(fh.Rates, toRate(r))
		}
		out = append(out, fh)
	}
	return out
}

func toRate(r serpRate) domain.RoomRate {
	rr := domain.RoomRate{
		MatchHash: r.MatchHash,
		RoomName:  r.RoomName,
		Meal:      r.Meal,
		Ext:       r.RgExt,
	}
	if r.RgExt.Capacity > 0 {
		n := r.RgExt.Capacity
		rr.Adults = &n
	}
	if r.Allotment != nil {
		avail := *r.Allotment > 0
		rr.Available = &avail
	}
	if len(r.PaymentOptions.PaymentTypes) == 0 {
		return rr
	}
	pt := r.PaymentOptions.PaymentTypes[0]
	amount, currency := pt.ShowAmount, pt.ShowCurrencyCode
	if amount == "" {
		amount, currency = pt.Amount, pt.CurrencyCode
	}
	if f, err := strconv.ParseFloat(amount, 64); err == nil {
		rr.Amount = f
	}
	rr.Currency = currency
	if pt.Cancellation != nil {
		refundable := pt.Cancellation.FreeCancellationBefore != nil && *pt.Cancellation.FreeCancellationBefore != ""
		rr.Refundable = &refundable
		if refundable {
			rr.Cancellation = "Free cancellation before " + *pt.Cancellation.FreeCancellationBefore
		} else {
			rr.Cancellation = "Non-refundable"
		}
	}
	return rr
}

// ---- Internals ----

var (
	ErrNotFound     = errors.New("ratehawk: not found")
	ErrUnauthorized = errors.New("ratehawk: unauthorized")
	ErrForbidden    = errors.New("ratehawk: forbidden")
)

// post performs a JSON POST with client-side rate limiting, retries, and
// JSON decode into out. Retries on 429 and transient 5xx, honoring
// Retry-After when provided.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	status := 0
	defer func() { observability.ObserveExternal("ratehawk", path, status, time.Since(start)) }()

	var lastErr error
	for i := 0; i < 4; i++ {
		// build a fresh request each attempt
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.SetBasicAuth(c.keyID, c.key)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "hotel-catalog/1.0")

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		status = resp.StatusCode

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
