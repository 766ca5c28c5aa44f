package domain

import "time"

// SyncProgress is the persisted checkpoint of a bulk import.
type SyncProgress struct {
	LastProcessedLine int64     `json:"lastProcessedLine"`
	Timestamp         time.Time `json:"timestamp"`
	TotalProcessed    int64     `json:"totalProcessed"`
	TotalFiltered     int64     `json:"totalFiltered,omitempty"`
	Batches           int       `json:"batches,omitempty"`
}

// FailedRecord is a record whose batch exhausted its retries.
type FailedRecord struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Batch int    `json:"batch"`
}

// SyncSummary is published when a sync run finishes.
type SyncSummary struct {
	Source     string    `json:"source"`
	LinesRead  int64     `json:"lines_read"`
	Skipped    int64     `json:"skipped"`
	Invalid    int64     `json:"invalid"`
	Filtered   int64     `json:"filtered"`
	Upserted   int64     `json:"upserted"`
	Failed     int64     `json:"failed"`
	Completed  bool      `json:"completed"`
	FinishedAt time.Time `json:"finished_at"`
}
