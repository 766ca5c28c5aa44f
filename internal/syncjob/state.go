package syncjob

import (
	"time"

	"hotel_catalog/internal/domain"
)

// JobState carries every counter of one run. Only the intake goroutine
// mutates it; batch goroutines report through batchResult.
type JobState struct {
	LinesRead int64 // every line seen, including skipped ones
	Skipped   int64 // covered by the checkpoint
	Processed int64 // LinesRead - Skipped
	Blank     int64
	Invalid   int64
	Filtered  int64
	Queued    int64
	Upserted  int64
	Failed    int64
	Batches   int // numbering continues across resumed runs

	// Decisions counts filter outcomes per reason, e.g. "included:premium_chain".
	Decisions map[string]int64

	// Carried over from the checkpoint the run resumed from.
	ResumedFrom   int64
	PriorTotal    int64
	PriorFiltered int64

	// Failures includes records carried over from the failure file of the
	// run being resumed.
	Failures  []domain.FailedRecord
	Completed bool
}

func newState() *JobState {
	return &JobState{Decisions: map[string]int64{}}
}

// seed applies a loaded checkpoint.
func (s *JobState) seed(p domain.SyncProgress) {
	s.ResumedFrom = p.LastProcessedLine
	s.PriorTotal = p.TotalProcessed
	s.PriorFiltered = p.TotalFiltered
	s.Batches = p.Batches
}

func (s *JobState) progress(line int64, now time.Time) domain.SyncProgress {
	return domain.SyncProgress{
		LastProcessedLine: line,
		Timestamp:         now.UTC(),
		TotalProcessed:    s.PriorTotal + s.Upserted + s.Failed,
		TotalFiltered:     s.PriorFiltered + s.Filtered,
		Batches:           s.Batches,
	}
}

func (s *JobState) Summary(source string, now time.Time) domain.SyncSummary {
	return domain.SyncSummary{
		Source:     source,
		LinesRead:  s.LinesRead,
		Skipped:    s.Skipped,
		Invalid:    s.Invalid,
		Filtered:   s.Filtered,
		Upserted:   s.Upserted,
		Failed:     s.Failed,
		Completed:  s.Completed,
		FinishedAt: now.UTC(),
	}
}
