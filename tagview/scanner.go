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

package tagview

import (
	"context"
	"fmt"
	"time"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"github.com/widetable/persistence/bucket"
	"github.com/widetable/persistence/offset"
	"github.com/widetable/persistence/retry"
	"github.com/widetable/persistence/session"
	"github.com/widetable/persistence/xsync"
)

const (
	colPersistenceID    = "persistence_id"
	colTagPidSequenceNr = "tag_pid_sequence_nr"
	colTimestamp        = "timestamp"
)

type scanner struct {
	opts        Options
	log         *zap.Logger
	session     session.Session
	stmts       *session.StatementCache
	query       string
	workers     xsync.WorkerPool
	readRetrier retry.Retrier

	metrics scannerMetrics
}

type scannerMetrics struct {
	scans      tally.Counter
	scanErrors tally.Counter
	buckets    tally.Counter
	rows       tally.Counter
}

func newScannerMetrics(scope tally.Scope) scannerMetrics {
	return scannerMetrics{
		scans:      scope.Counter("scans"),
		scanErrors: scope.Counter("scan-errors"),
		buckets:    scope.Counter("buckets-walked"),
		rows:       scope.Counter("rows-folded"),
	}
}

// NewScanner creates a new tag view scanner on top of a storage session.
func NewScanner(sess session.Session, opts Options) Scanner {
	iopts := opts.InstrumentOptions()
	return &scanner{
		opts:    opts,
		log:     iopts.Logger(),
		session: sess,
		stmts:   session.NewStatementCache(sess),
		query: fmt.Sprintf(
			"SELECT persistence_id, tag_pid_sequence_nr, timestamp FROM %s.%s "+
				"WHERE tag_name = ? AND timebucket = ? AND timestamp > ? AND timestamp <= ?",
			opts.Keyspace(), opts.Table()),
		workers:     opts.WorkerPool(),
		readRetrier: opts.ReadRetrier(),
		metrics:     newScannerMetrics(iopts.MetricsScope().SubScope("tag-scanner")),
	}
}

func (s *scanner) Scan(
	ctx context.Context,
	tag string,
	fromOffset, toOffset uuid.UUID,
	bucketSize bucket.Size,
	scanningDelay time.Duration,
	keep KeepFn,
) (map[string]Entry, error) {
	startBucket, err := bucket.FromUUID(fromOffset, bucketSize)
	if err != nil {
		return nil, errors.Wrap(err, "deriving start bucket from offset")
	}
	endBucket, err := bucket.FromUUID(toOffset, bucketSize)
	if err != nil {
		return nil, errors.Wrap(err, "deriving end bucket from offset")
	}
	if startBucket.After(endBucket) {
		// Reversed range is a caller bug, not a storage condition.
		panic(fmt.Sprintf("tag scan start bucket %v after end bucket %v for offsets %s, %s",
			startBucket, endBucket, offset.Format(fromOffset), offset.Format(toOffset)))
	}

	if scanningDelay > 0 {
		timer := time.NewTimer(scanningDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	s.log.Debug("scanning tag views",
		zap.String("tag", tag),
		zap.String("fromOffset", offset.Format(fromOffset)),
		zap.String("toOffset", offset.Format(toOffset)),
		zap.Stringer("bucketSize", bucketSize))

	var (
		reconciled map[string]Entry
		scanErr    error
	)
	s.runIsolated(func() {
		reconciled, scanErr = s.scanBuckets(ctx, tag, fromOffset, toOffset, startBucket, endBucket, keep)
	})
	if scanErr != nil {
		s.metrics.scanErrors.Inc(1)
		return nil, scanErr
	}
	s.metrics.scans.Inc(1)
	return reconciled, nil
}

// scanBuckets walks buckets in ascending order, one index query each,
// folding rows as they stream. Within a bucket rows carry no ordering
// guarantee, the fold relies on the comparator alone.
func (s *scanner) scanBuckets(
	ctx context.Context,
	tag string,
	fromOffset, toOffset uuid.UUID,
	startBucket, endBucket bucket.Bucket,
	keep KeepFn,
) (map[string]Entry, error) {
	ps, err := s.stmts.Prepare(ctx, s.query)
	if err != nil {
		return nil, errors.Wrap(err, "preparing tag view select")
	}

	reconciled := make(map[string]Entry)
	for _, b := range bucket.Range(startBucket, endBucket) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.metrics.buckets.Inc(1)

		bound := ps.Bind(tag, b.Key(), fromOffset, toOffset)
		err := s.readRetrier.AttemptWithReport(ctx, func() error {
			iter := s.session.Select(ctx, bound)
			defer iter.Close()
			for iter.Next() {
				row := iter.Current()
				s.metrics.rows.Inc(1)
				fold(reconciled, row.String(colPersistenceID),
					row.Int64(colTagPidSequenceNr), row.UUID(colTimestamp), keep)
			}
			return iter.Err()
		}, func(attempt int, err error, backoff time.Duration) {
			s.log.Warn("transient failure scanning tag view bucket, retrying",
				zap.String("tag", tag),
				zap.Int64("bucket", b.Key()),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err))
		})
		if err != nil {
			return nil, errors.Wrapf(err, "scanning tag %q bucket %d", tag, b.Key())
		}
	}
	return reconciled, nil
}

// fold applies one index row to the accumulator. An existing entry is
// replaced only when the comparator elects the incoming sequence
// number; the comparator must be commutative and idempotent for the
// result to be arrival-order independent.
func fold(acc map[string]Entry, persistenceID string, sequenceNr int64, timestamp uuid.UUID, keep KeepFn) {
	existing, ok := acc[persistenceID]
	if !ok || keep(sequenceNr, existing.SequenceNr) == sequenceNr {
		acc[persistenceID] = Entry{SequenceNr: sequenceNr, Timestamp: timestamp}
	}
}

// runIsolated executes fn on the scanner's pool and waits for it, or
// inline when no pool is configured.
func (s *scanner) runIsolated(fn func()) {
	if s.workers == nil {
		fn()
		return
	}
	done := make(chan struct{})
	s.workers.Go(func() {
		defer close(done)
		fn()
	})
	<-done
}
