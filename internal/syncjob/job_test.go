package syncjob

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"hotel_catalog/internal/domain"
)

// ---- fakes ----

type fakeRepo struct {
	mu       sync.Mutex
	calls    int
	failures int // fail this many calls before succeeding; -1 fails forever
	rows     map[string]domain.CatalogHotel
}

func (f *fakeRepo) UpsertHotels(_ context.Context, hs []domain.CatalogHotel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures < 0 || f.calls <= f.failures {
		return errors.New("connection reset")
	}
	if f.rows == nil {
		f.rows = map[string]domain.CatalogHotel{}
	}
	for _, h := range hs {
		f.rows[h.ID] = h
	}
	return nil
}

func (f *fakeRepo) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.rows))
	for id := range f.rows {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type fakeInvalidator struct {
	mu   sync.Mutex
	hids []int64
}

func (f *fakeInvalidator) Invalidate(_ context.Context, hids []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hids = append(f.hids, hids...)
}

type fakePublisher struct {
	got []domain.SyncSummary
}

func (f *fakePublisher) PublishSyncCompleted(_ context.Context, s domain.SyncSummary) error {
	f.got = append(f.got, s)
	return nil
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return true
}

func defaultRules() Rules { return Rules{MinStars: 3, SkipClosed: true} }

func paths(t *testing.T) (ckpt, failures string) {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "progress.json"), filepath.Join(dir, "failures.json")
}

func ndjson(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

// ---- tests ----

func TestRun_MapsFiltersAndCounts(t *testing.T) {
	ckptPath, failPath := paths(t)
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	inv := &fakeInvalidator{}
	job := New(repo, defaultRules(), NewCheckpoint(ckptPath),
		Options{BatchSize: 2, Concurrency: 2, MaxAttempts: 3, FailurePath: failPath},
		WithPublisher(pub), WithInvalidator(inv))

	in := ndjson(
		`{"id":"h1","hid":11,"star_rating":4,"region":{"country_code":"FR","name":"Paris"}}`,
		`{"id":"h2","star_rating":2,"region":{"country_code":"FR","name":"Paris"}}`,
		`{"name":"no id here","star_rating":5}`,
		`{not json`,
		``,
		`{"data":{"id":"h3","hid":"33","star_rating":"5"}}`,
	)
	st, err := job.Run(context.Background(), in, "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if st.LinesRead != 6 || st.Blank != 1 || st.Invalid != 2 || st.Filtered != 1 || st.Upserted != 2 || st.Failed != 0 {
		t.Fatalf("unexpected counters: %+v", st)
	}
	if st.Processed+st.Skipped != st.LinesRead {
		t.Fatalf("processed %d + skipped %d != read %d", st.Processed, st.Skipped, st.LinesRead)
	}
	if !st.Completed {
		t.Fatalf("expected completed run")
	}

	h1 := repo.rows["h1"]
	if h1.Country != "FR" || h1.City != "Paris" || h1.StarRating != 4 {
		t.Fatalf("unexpected mapping of h1: %+v", h1)
	}
	if _, ok := repo.rows["h2"]; ok {
		t.Fatalf("h2 has 2 stars and must be filtered")
	}
	if repo.rows["h3"].HID != 33 {
		t.Fatalf("envelope line not unwrapped: %+v", repo.rows["h3"])
	}

	if _, err := os.Stat(ckptPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected checkpoint removed after completion, stat err=%v", err)
	}
	if _, err := os.Stat(failPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no failure file, stat err=%v", err)
	}
	if len(pub.got) != 1 || pub.got[0].Upserted != 2 || !pub.got[0].Completed {
		t.Fatalf("unexpected published summary: %+v", pub.got)
	}
	if len(inv.hids) != 2 {
		t.Fatalf("expected cache invalidation for both hids, got %v", inv.hids)
	}
	if st.Decisions["filtered:stars"] != 1 || st.Decisions["included:stars"] != 2 {
		t.Fatalf("unexpected decisions: %v", st.Decisions)
	}
}

func TestRun_ResumesAfterCheckpoint(t *testing.T) {
	ckptPath, failPath := paths(t)
	ck := NewCheckpoint(ckptPath)
	if err := ck.Save(domain.SyncProgress{LastProcessedLine: 2, Timestamp: time.Now(), TotalProcessed: 2}); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	repo := &fakeRepo{}
	job := New(repo, defaultRules(), ck, Options{BatchSize: 10, Concurrency: 1, FailurePath: failPath})
	st, err := job.Run(context.Background(), ndjson(
		`{"id":"a","star_rating":4}`,
		`{"id":"b","star_rating":4}`,
		`{"id":"c","star_rating":4}`,
		`{"id":"d","star_rating":4}`,
	), "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := repo.ids(); strings.Join(got, ",") != "c,d" {
		t.Fatalf("expected only lines after the checkpoint, got %v", got)
	}
	if st.Skipped != 2 || st.Processed != 2 || st.Processed+st.Skipped != st.LinesRead {
		t.Fatalf("unexpected counters: %+v", st)
	}
	if st.PriorTotal != 2 {
		t.Fatalf("expected prior totals seeded from checkpoint, got %d", st.PriorTotal)
	}
}

func TestRun_BatchSucceedsOnThirdAttempt(t *testing.T) {
	ckptPath, failPath := paths(t)
	repo := &fakeRepo{failures: 2}
	rec := &sleepRecorder{}
	job := New(repo, defaultRules(), NewCheckpoint(ckptPath),
		Options{BatchSize: 5, Concurrency: 1, MaxAttempts: 3, RetryBaseDelay: time.Second, FailurePath: failPath},
		WithSleep(rec.sleep))

	st, err := job.Run(context.Background(), ndjson(
		`{"id":"a","star_rating":4}`,
		`{"id":"b","star_rating":5}`,
	), "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.Failed != 0 || st.Upserted != 2 || len(st.Failures) != 0 {
		t.Fatalf("expected full success, got %+v", st)
	}
	if repo.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", repo.calls)
	}
	// linear backoff: 1x then 2x the base delay
	if len(rec.waits) < 2 || rec.waits[0] != time.Second || rec.waits[1] != 2*time.Second {
		t.Fatalf("unexpected retry waits: %v", rec.waits)
	}
	if _, err := os.Stat(failPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("no failure file expected")
	}
}

func TestRun_ExhaustedBatchGoesToFailureFile(t *testing.T) {
	ckptPath, failPath := paths(t)
	repo := &fakeRepo{failures: -1}
	rec := &sleepRecorder{}
	job := New(repo, defaultRules(), NewCheckpoint(ckptPath),
		Options{BatchSize: 2, Concurrency: 1, MaxAttempts: 3, RetryBaseDelay: time.Millisecond, FailurePath: failPath},
		WithSleep(rec.sleep))

	st, err := job.Run(context.Background(), ndjson(
		`{"id":"a","name":"Alpha","star_rating":4}`,
		`{"id":"b","name":"Beta","star_rating":4}`,
		`{"id":"c","name":"Gamma","star_rating":4}`,
	), "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.Failed != 3 || st.Upserted != 0 || st.Batches != 2 {
		t.Fatalf("unexpected counters: %+v", st)
	}
	if repo.calls != 6 {
		t.Fatalf("expected 3 attempts per batch, got %d calls", repo.calls)
	}

	b, err := os.ReadFile(failPath)
	if err != nil {
		t.Fatalf("read failure file: %v", err)
	}
	var got []domain.FailedRecord
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode failure file: %v", err)
	}
	want := []domain.FailedRecord{{ID: "a", Name: "Alpha", Batch: 1}, {ID: "b", Name: "Beta", Batch: 1}, {ID: "c", Name: "Gamma", Batch: 2}}
	if len(got) != len(want) {
		t.Fatalf("unexpected failures: %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("failure %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestRun_InterruptKeepsLastSettledCheckpoint(t *testing.T) {
	ckptPath, failPath := paths(t)
	repo := &fakeRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the first inter-group delay stands in for an interrupt
	stop := func(context.Context, time.Duration) bool { cancel(); return false }
	job := New(repo, defaultRules(), NewCheckpoint(ckptPath),
		Options{BatchSize: 1, Concurrency: 2, GroupDelay: time.Second, FailurePath: failPath},
		WithSleep(stop))

	st, err := job.Run(ctx, ndjson(
		`{"id":"a","star_rating":4}`,
		`{"id":"b","star_rating":4}`,
		`{"id":"c","star_rating":4}`,
		`{"id":"d","star_rating":4}`,
		`{"id":"e","star_rating":4}`,
	), "test")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if st.Completed {
		t.Fatalf("interrupted run must not be completed")
	}
	if got := repo.ids(); strings.Join(got, ",") != "a,b" {
		t.Fatalf("expected only the first group written, got %v", got)
	}

	p, ok, err := NewCheckpoint(ckptPath).Load()
	if err != nil || !ok {
		t.Fatalf("expected checkpoint to survive, ok=%v err=%v", ok, err)
	}
	if p.LastProcessedLine != 2 || p.TotalProcessed != 2 {
		t.Fatalf("unexpected checkpoint: %+v", p)
	}
}

func TestRun_MissingInputFile(t *testing.T) {
	job := New(&fakeRepo{}, defaultRules(), nil, Options{})
	if _, err := job.RunFile(context.Background(), filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Fatalf("expected error for missing input")
	}
}

func readFailures(t *testing.T, path string) []domain.FailedRecord {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failure file: %v", err)
	}
	var got []domain.FailedRecord
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode failure file: %v", err)
	}
	return got
}

func TestRun_ResumeKeepsEarlierFailures(t *testing.T) {
	ckptPath, failPath := paths(t)
	in := func() *strings.Reader {
		return ndjson(
			`{"id":"a","name":"A","star_rating":4}`,
			`{"id":"b","name":"B","star_rating":4}`,
			`{"id":"c","name":"C","star_rating":4}`,
		)
	}
	opts := Options{BatchSize: 1, Concurrency: 1, MaxAttempts: 1, GroupDelay: time.Second, FailurePath: failPath}

	// first run: every write fails and the run is interrupted after one group
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := func(context.Context, time.Duration) bool { cancel(); return false }
	first := New(&fakeRepo{failures: -1}, defaultRules(), NewCheckpoint(ckptPath), opts, WithSleep(stop))
	if _, err := first.Run(ctx, in(), "test"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := readFailures(t, failPath); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("unexpected failures after first run: %+v", got)
	}

	// second run resumes and fails too
	rec := &sleepRecorder{}
	second := New(&fakeRepo{failures: -1}, defaultRules(), NewCheckpoint(ckptPath), opts, WithSleep(rec.sleep))
	st, err := second.Run(context.Background(), in(), "test")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if st.Skipped != 1 || st.Failed != 2 {
		t.Fatalf("unexpected counters: %+v", st)
	}

	want := []domain.FailedRecord{{ID: "a", Name: "A", Batch: 1}, {ID: "b", Name: "B", Batch: 2}, {ID: "c", Name: "C", Batch: 3}}
	got := readFailures(t, failPath)
	if len(got) != len(want) {
		t.Fatalf("unexpected failures: %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("failure %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestRun_OversizedLineIsSkipped(t *testing.T) {
	ckptPath, failPath := paths(t)
	repo := &fakeRepo{}
	job := New(repo, defaultRules(), NewCheckpoint(ckptPath), Options{BatchSize: 10, Concurrency: 1, FailurePath: failPath})
	job.maxLine = 64

	st, err := job.Run(context.Background(), ndjson(
		`{"id":"a","star_rating":4}`,
		`{"id":"big","star_rating":4,"name":"`+strings.Repeat("x", 200)+`"}`,
		`{"id":"c","star_rating":4}`,
	), "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := repo.ids(); strings.Join(got, ",") != "a,c" {
		t.Fatalf("expected lines around the oversized one, got %v", got)
	}
	if st.LinesRead != 3 || st.Invalid != 1 || st.Upserted != 2 || !st.Completed {
		t.Fatalf("unexpected counters: %+v", st)
	}
}

type gaugeRepo struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	calls    int
}

func (g *gaugeRepo) UpsertHotels(context.Context, []domain.CatalogHotel) error {
	g.mu.Lock()
	g.calls++
	g.inFlight++
	if g.inFlight > g.peak {
		g.peak = g.inFlight
	}
	g.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	g.mu.Lock()
	g.inFlight--
	g.mu.Unlock()
	return nil
}

func TestRun_MaxWritersBoundsUpserts(t *testing.T) {
	ckptPath, failPath := paths(t)
	repo := &gaugeRepo{}
	job := New(repo, defaultRules(), NewCheckpoint(ckptPath),
		Options{BatchSize: 1, Concurrency: 4, MaxWriters: 1, FailurePath: failPath})

	st, err := job.Run(context.Background(), ndjson(
		`{"id":"a","star_rating":4}`,
		`{"id":"b","star_rating":4}`,
		`{"id":"c","star_rating":4}`,
		`{"id":"d","star_rating":4}`,
	), "test")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.Upserted != 4 || st.Batches != 4 || repo.calls != 4 {
		t.Fatalf("unexpected counters: %+v calls=%d", st, repo.calls)
	}
	if repo.peak != 1 {
		t.Fatalf("expected one upsert in flight at a time, peak %d", repo.peak)
	}
}
