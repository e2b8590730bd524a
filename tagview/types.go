// Copyright (c) 2021 Widetable, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package tagview reconciles per-entity tag sequence numbers by
// scanning time-bucketed tag index rows. Index writes are not strictly
// ordered with respect to the primary log, so the authoritative
// sequence number per tagged entity is recovered by read-time folding
// once replication settles.
package tagview

import (
	"context"
	"time"

	"github.com/pborman/uuid"

	"github.com/widetable/persistence/bucket"
	"github.com/widetable/persistence/instrument"
	"github.com/widetable/persistence/retry"
	"github.com/widetable/persistence/xsync"
)

// Entry is the reconciled state for one persistence id: the kept tag
// sequence number and the time UUID of the row that carried it.
type Entry struct {
	SequenceNr int64
	Timestamp  uuid.UUID
}

// KeepFn decides which of two sequence numbers for the same
// persistence id to keep, returning the winner. It must be commutative
// and idempotent for the fold result to be deterministic regardless of
// row arrival order within a bucket.
type KeepFn func(incoming, existing int64) int64

// KeepMax keeps the higher sequence number.
func KeepMax(incoming, existing int64) int64 {
	if incoming > existing {
		return incoming
	}
	return existing
}

// Scanner reconciles tag sequence numbers over an offset range.
type Scanner interface {
	// Scan walks every time bucket between the two offsets inclusive in
	// ascending order, one index query per bucket, folding rows with
	// the persistence id as key and keep as the conflict resolver. The
	// range is exclusive of fromOffset and inclusive of toOffset. A
	// positive scanningDelay defers the whole scan before it starts.
	//
	// The offsets must bucket in order, a start bucket after the end
	// bucket is a programming error and panics.
	Scan(
		ctx context.Context,
		tag string,
		fromOffset, toOffset uuid.UUID,
		bucketSize bucket.Size,
		scanningDelay time.Duration,
		keep KeepFn,
	) (map[string]Entry, error)
}

// Options control the tag view scanner.
type Options interface {
	// SetInstrumentOptions sets the instrument options.
	SetInstrumentOptions(value instrument.Options) Options

	// InstrumentOptions returns the instrument options.
	InstrumentOptions() instrument.Options

	// SetKeyspace sets the keyspace the tag view table lives in.
	SetKeyspace(value string) Options

	// Keyspace returns the keyspace the tag view table lives in.
	Keyspace() string

	// SetTable sets the tag view table name.
	SetTable(value string) Options

	// Table returns the tag view table name.
	Table() string

	// SetWorkerPool sets the pool scans execute on, isolating bucket
	// walks from the caller's goroutine. A nil pool runs scans inline.
	SetWorkerPool(value xsync.WorkerPool) Options

	// WorkerPool returns the pool scans execute on.
	WorkerPool() xsync.WorkerPool

	// SetReadRetrier sets the retrier wrapping per-bucket index queries.
	SetReadRetrier(value retry.Retrier) Options

	// ReadRetrier returns the retrier wrapping per-bucket index queries.
	ReadRetrier() retry.Retrier
}
