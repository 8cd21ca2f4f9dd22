// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netlog

import (
	"log/slog"
	"sync"

	"github.com/bureau-foundation/matrix-console/lib/notify"
	"github.com/bureau-foundation/matrix-console/messaging"
)

// DefaultMaxRecords is the record limit when Config.MaxRecords is zero.
const DefaultMaxRecords = 500

// Config holds configuration for creating a Log.
type Config struct {
	// MaxRecords bounds the log. Zero means DefaultMaxRecords.
	MaxRecords int
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Update tells subscribers which record changed.
type Update struct {
	RecordID uint64
	Finished bool
}

// Log is a bounded, ordered record of requests. Records are appended
// when a request starts and updated in place when it finishes; once the
// limit is reached the oldest record is evicted for each new one and
// the log reports itself truncated from then on. Safe for concurrent
// use.
type Log struct {
	maxRecords int
	logger     *slog.Logger
	updates    notify.Bus[Update]

	mu        sync.Mutex
	records   []Record
	truncated bool
}

// New creates an empty Log.
func New(config Config) *Log {
	maxRecords := config.MaxRecords
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		maxRecords: maxRecords,
		logger:     logger,
		records:    make([]Record, 0, min(maxRecords, 64)),
	}
}

// Attach subscribes the log to a dispatcher bus. The returned function
// detaches it.
func (l *Log) Attach(bus *notify.Bus[messaging.Notification]) (detach func()) {
	return bus.Subscribe(l.Observe)
}

// Observe applies one notification to the log.
func (l *Log) Observe(notification messaging.Notification) {
	switch n := notification.(type) {
	case messaging.RequestStarted:
		l.RecordStart(n)
	case messaging.RequestFinished:
		l.RecordFinish(n)
	}
}

// RecordStart appends a pending record, evicting the oldest one when
// the log is full.
func (l *Log) RecordStart(started messaging.RequestStarted) {
	record := Record{
		ID:       started.RequestID,
		Resource: started.Resource,
		Method:   started.Request.Method,
		Header:   started.Request.Header.Clone(),
		SentAt:   started.SentAt,
	}
	if started.Request.Body != nil {
		record.Body = append([]byte(nil), started.Request.Body...)
	}

	l.mu.Lock()
	if len(l.records) >= l.maxRecords {
		evict := len(l.records) - l.maxRecords + 1
		l.records = append(l.records[:0], l.records[evict:]...)
		l.truncated = true
	}
	l.records = append(l.records, record)
	l.mu.Unlock()

	l.updates.Publish(Update{RecordID: record.ID})
}

// RecordFinish fills in the outcome of a pending record. A finish for a
// record that is not in the log (never started, or already evicted) or
// that already finished is ignored. The record keeps its position.
func (l *Log) RecordFinish(finished messaging.RequestFinished) {
	l.mu.Lock()
	index := l.indexLocked(finished.RequestID)
	if index < 0 {
		l.mu.Unlock()
		l.logger.Debug("network log: finish for unknown request", "request_id", finished.RequestID)
		return
	}
	record := &l.records[index]
	if record.Finished {
		l.mu.Unlock()
		l.logger.Debug("network log: duplicate finish ignored", "request_id", finished.RequestID)
		return
	}
	record.Finished = true
	record.ReceivedAt = finished.ReceivedAt
	record.Status = finished.Status
	record.Errcode = finished.Errcode
	record.Error = finished.Error
	record.NotJSON = finished.NotJSON
	record.DryRun = finished.DryRun
	l.mu.Unlock()

	l.updates.Publish(Update{RecordID: finished.RequestID, Finished: true})
}

// indexLocked finds a record by ID. Recent requests are the likeliest
// to finish, so the search runs from the end.
func (l *Log) indexLocked(id uint64) int {
	for index := len(l.records) - 1; index >= 0; index-- {
		if l.records[index].ID == id {
			return index
		}
	}
	return -1
}

// Records returns a copy of the records, oldest first.
func (l *Log) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]Record, len(l.records))
	for index, record := range l.records {
		result[index] = record.clone()
	}
	return result
}

// Lookup returns the record with the given ID.
func (l *Log) Lookup(id uint64) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	index := l.indexLocked(id)
	if index < 0 {
		return Record{}, false
	}
	return l.records[index].clone(), true
}

// Len returns the number of records held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Truncated reports whether any record has ever been evicted.
func (l *Log) Truncated() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.truncated
}

// MaxRecords returns the configured limit.
func (l *Log) MaxRecords() int {
	return l.maxRecords
}

// Updates returns the bus on which the log announces changes.
func (l *Log) Updates() *notify.Bus[Update] {
	return &l.updates
}

// Snapshot captures the log's current state for export.
func (l *Log) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	records := make([]Record, len(l.records))
	for index, record := range l.records {
		records[index] = record.Redacted()
	}
	return Snapshot{
		Version:    SnapshotVersion,
		MaxRecords: l.maxRecords,
		Truncated:  l.truncated,
		Records:    records,
	}
}
