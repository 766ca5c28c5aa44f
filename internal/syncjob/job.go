package syncjob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hotel_catalog/internal/adapters/observability"
	"hotel_catalog/internal/app"
	"hotel_catalog/internal/domain"
)

// maxLineBytes bounds a single dump line; full hotel objects with room
// groups run to a few hundred KB.
const maxLineBytes = 16 << 20

type Options struct {
	BatchSize      int
	Concurrency    int
	GroupDelay     time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	FailurePath    string

	// MaxWriters caps upsert calls in flight across the job, usually the
	// size of the database pool. Zero means Concurrency.
	MaxWriters int
}

type Upserter interface {
	UpsertHotels(ctx context.Context, hs []domain.CatalogHotel) error
}

// Invalidator evicts cached catalog rows once they have been rewritten.
type Invalidator interface {
	Invalidate(ctx context.Context, hids []int64)
}

type Job struct {
	opts  Options
	repo  Upserter
	rules Rules
	ckpt  *Checkpoint
	cache Invalidator
	pub   domain.EventPublisher
	slots *semaphore.Weighted

	maxLine int
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) bool
}

type Option func(*Job)

func WithInvalidator(i Invalidator) Option { return func(j *Job) { j.cache = i } }

func WithPublisher(p domain.EventPublisher) Option { return func(j *Job) { j.pub = p } }

// WithSleep replaces the delay function used between groups and retries.
func WithSleep(f func(ctx context.Context, d time.Duration) bool) Option {
	return func(j *Job) { j.sleep = f }
}

func New(repo Upserter, rules Rules, ckpt *Checkpoint, opts Options, more ...Option) *Job {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.MaxWriters <= 0 || opts.MaxWriters > opts.Concurrency {
		opts.MaxWriters = opts.Concurrency
	}
	j := &Job{
		opts:    opts,
		repo:    repo,
		rules:   rules.compile(),
		ckpt:    ckpt,
		slots:   semaphore.NewWeighted(int64(opts.MaxWriters)),
		maxLine: maxLineBytes,
		now:     time.Now,
		sleep:   sleepCtx,
	}
	for _, o := range more {
		o(j)
	}
	return j
}

type batch struct {
	num      int
	lastLine int64
	hotels   []domain.CatalogHotel
}

type batchResult struct {
	attempts int
	err      error
}

// RunFile opens path and runs the job over it.
func (j *Job) RunFile(ctx context.Context, path string) (*JobState, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return j.Run(ctx, f, path)
}

// Run streams NDJSON from r. Cancelling ctx stops intake; a group already
// submitted still settles and its checkpoint is written before Run returns
// ctx.Err().
func (j *Job) Run(ctx context.Context, r io.Reader, source string) (*JobState, error) {
	st := newState()
	if j.ckpt != nil {
		p, ok, err := j.ckpt.Load()
		if err != nil {
			return st, err
		}
		if ok {
			st.seed(p)
			// records that failed before the checkpoint are never re-read
			prior, err := LoadFailures(j.opts.FailurePath)
			if err != nil {
				return st, err
			}
			st.Failures = prior
			log.Info().Int64("line", p.LastProcessedLine).Time("saved_at", p.Timestamp).
				Int("prior_failures", len(prior)).Msg("resuming from checkpoint")
		}
	}

	lr := newLineReader(r, j.maxLine)

	var (
		line    int64
		pending []domain.CatalogHotel
		group   []batch
	)
	cut := func() {
		if len(pending) == 0 {
			return
		}
		st.Batches++
		group = append(group, batch{num: st.Batches, lastLine: line, hotels: pending})
		pending = nil
	}

	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		raw, oversized, err := lr.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			runErr = fmt.Errorf("read line %d: %w", line+1, err)
			break
		}
		line++
		st.LinesRead++
		if line <= st.ResumedFrom {
			st.Skipped++
			continue
		}
		st.Processed++

		if oversized {
			st.Invalid++
			observability.ObserveSync("invalid", 1)
			log.Warn().Int64("line", line).Int("limit", j.maxLine).Msg("line exceeds size limit; skipping")
		} else if h, ok := j.intake(st, line, raw); ok {
			pending = append(pending, h)
			st.Queued++
			if len(pending) >= j.opts.BatchSize {
				cut()
			}
		}
		if len(group) >= j.opts.Concurrency {
			j.runGroup(ctx, st, group)
			group = nil
			j.sleep(ctx, j.opts.GroupDelay)
		}
	}

	if runErr == nil {
		// tail: partial batch plus any short group
		cut()
		if len(group) > 0 {
			j.runGroup(ctx, st, group)
		}
		st.Completed = true
	}

	j.finish(ctx, st, source)
	if runErr != nil {
		return st, runErr
	}
	return st, nil
}

// intake decodes, maps and filters one line.
func (j *Job) intake(st *JobState, line int64, raw []byte) (domain.CatalogHotel, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		st.Blank++
		return domain.CatalogHotel{}, false
	}
	obj, err := app.DecodeDumpLine(raw)
	if err != nil {
		st.Invalid++
		observability.ObserveSync("invalid", 1)
		log.Warn().Int64("line", line).Err(err).Msg("invalid json; skipping")
		return domain.CatalogHotel{}, false
	}
	h, err := app.MapDumpHotel(obj, j.now())
	if err != nil {
		st.Invalid++
		observability.ObserveSync("invalid", 1)
		if !errors.Is(err, app.ErrMissingID) {
			log.Warn().Int64("line", line).Err(err).Msg("unmappable record; skipping")
		}
		return domain.CatalogHotel{}, false
	}
	include, reason := j.rules.Decide(h)
	if include {
		st.Decisions["included:"+reason]++
		return h, true
	}
	st.Decisions["filtered:"+reason]++
	st.Filtered++
	observability.ObserveSync("filtered", 1)
	return domain.CatalogHotel{}, false
}

// runGroup submits every batch of the group and waits for all of them. A
// failing batch never cancels its siblings. The checkpoint moves to the
// group's last line only after all batches settled.
func (j *Job) runGroup(ctx context.Context, st *JobState, group []batch) {
	// in-flight writes finish even if the caller is interrupted
	wctx := context.WithoutCancel(ctx)

	results := make([]batchResult, len(group))
	var wg sync.WaitGroup
	for i, b := range group {
		wg.Add(1)
		go func(i int, b batch) {
			defer wg.Done()
			results[i] = j.upsertWithRetry(wctx, b)
		}(i, b)
	}
	wg.Wait()

	var written []int64
	failed := false
	for i, b := range group {
		res := results[i]
		n := int64(len(b.hotels))
		if res.err != nil {
			failed = true
			st.Failed += n
			observability.ObserveSync("failed", int(n))
			for _, h := range b.hotels {
				st.Failures = append(st.Failures, domain.FailedRecord{ID: h.ID, Name: h.Name, Batch: b.num})
			}
			log.Error().Int("batch", b.num).Int("records", len(b.hotels)).Int("attempts", res.attempts).
				Err(res.err).Msg("batch failed after retries")
			continue
		}
		st.Upserted += n
		observability.ObserveSync("upserted", int(n))
		for _, h := range b.hotels {
			if h.HID > 0 {
				written = append(written, h.HID)
			}
		}
		log.Debug().Int("batch", b.num).Int("records", len(b.hotels)).Int("attempts", res.attempts).Msg("batch ok")
	}
	if j.cache != nil && len(written) > 0 {
		j.cache.Invalidate(wctx, written)
	}

	last := group[len(group)-1].lastLine
	// failures reach disk before the checkpoint moves past their lines
	if failed && j.ckpt != nil {
		if err := WriteFailures(j.opts.FailurePath, st.Failures); err != nil {
			log.Error().Err(err).Str("path", j.opts.FailurePath).Msg("failure file write failed; checkpoint not advanced")
			return
		}
	}
	if j.ckpt != nil {
		if err := j.ckpt.Save(st.progress(last, j.now())); err != nil {
			log.Error().Err(err).Int64("line", last).Msg("checkpoint write failed")
		}
	}
	log.Info().Int64("line", last).Int64("upserted", st.Upserted).Int64("failed", st.Failed).
		Int64("filtered", st.Filtered).Msg("group settled")
}

// upsertWithRetry waits attempt*RetryBaseDelay between attempts. Each
// attempt holds a writer slot; the wait between attempts does not.
func (j *Job) upsertWithRetry(ctx context.Context, b batch) batchResult {
	var err error
	for attempt := 1; attempt <= j.opts.MaxAttempts; attempt++ {
		if err = j.slots.Acquire(ctx, 1); err != nil {
			return batchResult{attempts: attempt, err: err}
		}
		err = j.repo.UpsertHotels(ctx, b.hotels)
		j.slots.Release(1)
		observability.ObserveBatchAttempt(err)
		if err == nil {
			return batchResult{attempts: attempt}
		}
		if attempt < j.opts.MaxAttempts {
			wait := time.Duration(attempt) * j.opts.RetryBaseDelay
			log.Warn().Int("batch", b.num).Int("attempt", attempt).Dur("retry_in", wait).Err(err).Msg("batch upsert failed")
			j.sleep(ctx, wait)
		}
	}
	return batchResult{attempts: j.opts.MaxAttempts, err: err}
}

func (j *Job) finish(ctx context.Context, st *JobState, source string) {
	if err := WriteFailures(j.opts.FailurePath, st.Failures); err != nil {
		log.Error().Err(err).Str("path", j.opts.FailurePath).Msg("failure file write failed")
	} else if len(st.Failures) > 0 {
		log.Warn().Int("records", len(st.Failures)).Str("path", j.opts.FailurePath).Msg("failed records written")
	}

	if st.Completed && j.ckpt != nil {
		if err := j.ckpt.Remove(); err != nil {
			log.Warn().Err(err).Msg("checkpoint cleanup failed")
		}
	}

	ev := log.Info()
	for k, n := range st.Decisions {
		ev = ev.Int64(k, n)
	}
	ev.Msg("filter decisions")

	log.Info().
		Str("source", source).
		Int64("lines", st.LinesRead).
		Int64("skipped", st.Skipped).
		Int64("invalid", st.Invalid).
		Int64("filtered", st.Filtered).
		Int64("upserted", st.Upserted).
		Int64("failed", st.Failed).
		Int("batches", st.Batches).
		Bool("completed", st.Completed).
		Msg("sync finished")

	if j.pub != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := j.pub.PublishSyncCompleted(pctx, st.Summary(source, j.now())); err != nil {
			log.Warn().Err(err).Msg("sync summary publish failed")
		}
	}
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
