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

package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/widetable/persistence/retry"
	"github.com/widetable/persistence/serialize"
	"github.com/widetable/persistence/session"
)

const (
	colPersistenceID   = "persistence_id"
	colSequenceNr      = "sequence_nr"
	colTimestamp       = "timestamp"
	colSnapshotData    = "snapshot_data"
	colSnapshotLegacy  = "snapshot"
	colSerID           = "ser_id"
	colSerManifest     = "ser_manifest"
	colMeta            = "meta"
	colMetaSerID       = "meta_ser_id"
	colMetaSerManifest = "meta_ser_manifest"

	// Backend limit on statements per batch.
	maxBatchStatements = 65535 - 1
)

// Meta-column probe states. Races may cause redundant probing but the
// settled value never changes, a schema does not lose columns at runtime.
const (
	metaColumnsUnknown int32 = iota
	metaColumnsPresent
	metaColumnsAbsent
)

var (
	errSnapshotMissing = errors.New("snapshot data row not visible yet")
	errNoLegacyCodec   = errors.New("legacy snapshot row found but no legacy codec configured")
)

type queries struct {
	selectMetadata        string
	selectMetadataLimited string
	selectSnapshot        string
	insertSnapshot        string
	insertWithMeta        string
	deleteSnapshot        string
	deleteRange           string
}

func newQueries(keyspace, table string) queries {
	tbl := fmt.Sprintf("%s.%s", keyspace, table)
	return queries{
		selectMetadata: fmt.Sprintf(
			"SELECT persistence_id, sequence_nr, timestamp FROM %s "+
				"WHERE persistence_id = ? AND sequence_nr >= ? AND sequence_nr <= ? "+
				"ORDER BY sequence_nr DESC", tbl),
		selectMetadataLimited: fmt.Sprintf(
			"SELECT persistence_id, sequence_nr, timestamp FROM %s "+
				"WHERE persistence_id = ? AND sequence_nr >= ? AND sequence_nr <= ? "+
				"ORDER BY sequence_nr DESC LIMIT ?", tbl),
		selectSnapshot: fmt.Sprintf(
			"SELECT * FROM %s WHERE persistence_id = ? AND sequence_nr = ?", tbl),
		insertSnapshot: fmt.Sprintf(
			"INSERT INTO %s (persistence_id, sequence_nr, timestamp, ser_id, ser_manifest, snapshot_data) "+
				"VALUES (?, ?, ?, ?, ?, ?)", tbl),
		insertWithMeta: fmt.Sprintf(
			"INSERT INTO %s (persistence_id, sequence_nr, timestamp, ser_id, ser_manifest, snapshot_data, "+
				"meta, meta_ser_id, meta_ser_manifest) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", tbl),
		deleteSnapshot: fmt.Sprintf(
			"DELETE FROM %s WHERE persistence_id = ? AND sequence_nr = ?", tbl),
		deleteRange: fmt.Sprintf(
			"DELETE FROM %s WHERE persistence_id = ? AND sequence_nr >= ? AND sequence_nr <= ?", tbl),
	}
}

type store struct {
	opts            Options
	log             *zap.Logger
	session         session.Session
	stmts           *session.StatementCache
	pipeline        *serialize.Pipeline
	queries         queries
	maxLoadAttempts int
	writeRetrier    retry.Retrier
	readRetrier     retry.Retrier

	metaColumnsProbe atomic.Int32

	metrics storeMetrics
}

type storeMetrics struct {
	loadSuccess    tally.Counter
	loadEmpty      tally.Counter
	loadErrors     tally.Counter
	loadFallbacks  tally.Counter
	loadLegacy     tally.Counter
	metaDowngrades tally.Counter
	saveSuccess    tally.Counter
	saveErrors     tally.Counter
	deleteSuccess  tally.Counter
	deleteErrors   tally.Counter
}

func newStoreMetrics(scope tally.Scope) storeMetrics {
	return storeMetrics{
		loadSuccess:    scope.Counter("load-success"),
		loadEmpty:      scope.Counter("load-empty"),
		loadErrors:     scope.Counter("load-errors"),
		loadFallbacks:  scope.Counter("load-fallbacks"),
		loadLegacy:     scope.Counter("load-legacy"),
		metaDowngrades: scope.Counter("meta-decode-downgrades"),
		saveSuccess:    scope.Counter("save-success"),
		saveErrors:     scope.Counter("save-errors"),
		deleteSuccess:  scope.Counter("delete-success"),
		deleteErrors:   scope.Counter("delete-errors"),
	}
}

// NewStore creates a new snapshot store on top of a storage session.
func NewStore(sess session.Session, pipeline *serialize.Pipeline, opts Options) Store {
	iopts := opts.InstrumentOptions()
	return &store{
		opts:            opts,
		log:             iopts.Logger(),
		session:         sess,
		stmts:           session.NewStatementCache(sess),
		pipeline:        pipeline,
		queries:         newQueries(opts.Keyspace(), opts.Table()),
		maxLoadAttempts: opts.MaxLoadAttempts(),
		writeRetrier:    opts.WriteRetrier(),
		readRetrier:     opts.ReadRetrier(),
		metrics:         newStoreMetrics(iopts.MetricsScope().SubScope("snapshot-store")),
	}
}

func (s *store) Load(ctx context.Context, persistenceID string, criteria Criteria) (*Selected, error) {
	candidates, err := s.selectMetadata(ctx, persistenceID, criteria)
	if err != nil {
		s.metrics.loadErrors.Inc(1)
		return nil, err
	}
	if len(candidates) == 0 {
		s.metrics.loadEmpty.Inc(1)
		return nil, nil
	}

	var lastErr error
	for i, md := range candidates {
		selected, err := s.loadBody(ctx, md)
		if err == nil {
			s.metrics.loadSuccess.Inc(1)
			return selected, nil
		}
		lastErr = err

		if errors.Is(err, errSnapshotMissing) && len(candidates) == 1 {
			// The metadata row is visible before the data row, a known
			// replication-timing race, not an error.
			s.metrics.loadEmpty.Inc(1)
			return nil, nil
		}
		if i+1 < len(candidates) {
			s.metrics.loadFallbacks.Inc(1)
			s.log.Warn("failed to load snapshot, trying older candidate",
				zap.String("persistenceId", md.PersistenceID),
				zap.Int64("sequenceNr", md.SequenceNr),
				zap.Error(err))
		}
	}

	s.metrics.loadErrors.Inc(1)
	return nil, lastErr
}

// selectMetadata returns candidate snapshot metadata newest first,
// bounded to maxLoadAttempts candidates. When the criteria's timestamp
// is unconstrained the query itself carries the row-count limit,
// otherwise rows are filtered in-stream: the rows are sequence-ordered
// rather than timestamp-ordered, so leading rows beyond the timestamp
// bound are dropped linearly.
func (s *store) selectMetadata(
	ctx context.Context,
	persistenceID string,
	criteria Criteria,
) ([]Metadata, error) {
	var (
		limited = criteria.MaxTimestamp == NoUpperBound
		text    = s.queries.selectMetadata
	)
	if limited {
		text = s.queries.selectMetadataLimited
	}
	ps, err := s.stmts.Prepare(ctx, text)
	if err != nil {
		return nil, errors.Wrap(err, "preparing snapshot metadata select")
	}

	var bound session.BoundStatement
	if limited {
		bound = ps.Bind(persistenceID, criteria.MinSequenceNr, criteria.MaxSequenceNr, s.maxLoadAttempts)
	} else {
		bound = ps.Bind(persistenceID, criteria.MinSequenceNr, criteria.MaxSequenceNr)
	}

	var candidates []Metadata
	err = s.readRetrier.AttemptWithReport(ctx, func() error {
		candidates = candidates[:0]
		iter := s.session.Select(ctx, bound)
		defer iter.Close()

		dropping := !limited
		for iter.Next() && len(candidates) < s.maxLoadAttempts {
			row := iter.Current()
			ts := row.Int64(colTimestamp)
			if dropping {
				if ts > criteria.MaxTimestamp {
					continue
				}
				dropping = false
			}
			candidates = append(candidates, Metadata{
				PersistenceID: row.String(colPersistenceID),
				SequenceNr:    row.Int64(colSequenceNr),
				Timestamp:     ts,
			})
		}
		return iter.Err()
	}, s.reportRetry("select-snapshot-metadata"))
	if err != nil {
		return nil, errors.Wrap(err, "selecting snapshot metadata")
	}
	return candidates, nil
}

func (s *store) loadBody(ctx context.Context, md Metadata) (*Selected, error) {
	ps, err := s.stmts.Prepare(ctx, s.queries.selectSnapshot)
	if err != nil {
		return nil, errors.Wrap(err, "preparing snapshot select")
	}
	bound := ps.Bind(md.PersistenceID, md.SequenceNr)

	var row session.Row
	err = s.readRetrier.AttemptWithReport(ctx, func() error {
		var err error
		row, err = s.session.SelectOne(ctx, bound)
		return err
	}, s.reportRetry("select-snapshot"))
	if err != nil {
		return nil, errors.Wrap(err, "selecting snapshot row")
	}
	if row == nil {
		return nil, errSnapshotMissing
	}

	payload, legacy, err := s.deserializePayload(ctx, md, row)
	if err != nil {
		return nil, err
	}

	selected := &Selected{Metadata: md, Payload: payload}
	if legacy {
		// The legacy envelope has no metadata side-channel.
		return selected, nil
	}
	selected.Meta = s.deserializeMeta(ctx, md, row)
	return selected, nil
}

func (s *store) deserializePayload(
	ctx context.Context,
	md Metadata,
	row session.Row,
) (interface{}, bool, error) {
	if row.IsNull(colSnapshotData) {
		// Pre-migration row shape, a single opaque blob with no
		// serializer id or manifest columns.
		legacyCodec := s.opts.LegacyCodec()
		if legacyCodec == nil {
			return nil, true, errNoLegacyCodec
		}
		s.metrics.loadLegacy.Inc(1)
		payload, err := legacyCodec.Unmarshal(row.Bytes(colSnapshotLegacy), "")
		if err != nil {
			return nil, true, errors.Wrapf(err, "decoding legacy snapshot for %s", md.PersistenceID)
		}
		return payload, true, nil
	}

	payload, err := s.pipeline.DeserializePayload(
		ctx, row.Bytes(colSnapshotData), row.Int32(colSerID), row.String(colSerManifest))
	if err != nil {
		return nil, false, errors.Wrapf(err, "decoding snapshot for %s", md.PersistenceID)
	}
	return payload, false, nil
}

// deserializeMeta decodes the optional metadata side-record. Decode
// failure downgrades to a logged warning and no metadata, losing
// optional metadata must not lose the primary payload.
func (s *store) deserializeMeta(ctx context.Context, md Metadata, row session.Row) interface{} {
	if !s.hasMetaColumns(row) || row.IsNull(colMeta) {
		return nil
	}
	meta, err := s.pipeline.DeserializeMeta(ctx, serialize.SerializedMeta{
		Payload:            row.Bytes(colMeta),
		SerializerID:       row.Int32(colMetaSerID),
		SerializerManifest: row.String(colMetaSerManifest),
	})
	if err != nil {
		s.metrics.metaDowngrades.Inc(1)
		s.log.Warn("failed to deserialize snapshot metadata, loading without it",
			zap.String("persistenceId", md.PersistenceID),
			zap.Int64("sequenceNr", md.SequenceNr),
			zap.Error(err))
		return nil
	}
	return meta
}

// hasMetaColumns probes whether the row shape carries the metadata
// columns, a schema may or may not have them depending on prior
// migrations. The probe result is cached for the store's lifetime.
func (s *store) hasMetaColumns(row session.Row) bool {
	switch s.metaColumnsProbe.Load() {
	case metaColumnsPresent:
		return true
	case metaColumnsAbsent:
		return false
	}
	present := row.HasColumn(colMeta)
	if present {
		s.metaColumnsProbe.Store(metaColumnsPresent)
	} else {
		s.metaColumnsProbe.Store(metaColumnsAbsent)
	}
	return present
}

func (s *store) Save(ctx context.Context, metadata Metadata, payload, meta interface{}) error {
	data, serID, manifest, err := s.pipeline.SerializePayload(ctx, payload)
	if err != nil {
		s.metrics.saveErrors.Inc(1)
		return errors.Wrapf(err, "serializing snapshot for %s", metadata.PersistenceID)
	}

	// A separate prepared write is used depending on whether metadata
	// is present, installations without metadata need no schema change.
	var bound session.BoundStatement
	if meta == nil {
		ps, err := s.stmts.Prepare(ctx, s.queries.insertSnapshot)
		if err != nil {
			return errors.Wrap(err, "preparing snapshot insert")
		}
		bound = ps.Bind(metadata.PersistenceID, metadata.SequenceNr, metadata.Timestamp,
			serID, manifest, data)
	} else {
		metaData, metaSerID, metaManifest, err := s.pipeline.SerializePayload(ctx, meta)
		if err != nil {
			s.metrics.saveErrors.Inc(1)
			return errors.Wrapf(err, "serializing snapshot metadata for %s", metadata.PersistenceID)
		}
		ps, err := s.stmts.Prepare(ctx, s.queries.insertWithMeta)
		if err != nil {
			return errors.Wrap(err, "preparing snapshot insert with meta")
		}
		bound = ps.Bind(metadata.PersistenceID, metadata.SequenceNr, metadata.Timestamp,
			serID, manifest, data, metaData, metaSerID, metaManifest)
	}

	err = s.writeRetrier.AttemptWithReport(ctx, func() error {
		return s.session.ExecuteWrite(ctx, bound)
	}, s.reportRetry("insert-snapshot"))
	if err != nil {
		s.metrics.saveErrors.Inc(1)
		return errors.Wrapf(err, "writing snapshot for %s", metadata.PersistenceID)
	}
	s.metrics.saveSuccess.Inc(1)
	return nil
}

func (s *store) Delete(ctx context.Context, persistenceID string, criteria Criteria) error {
	// The ranged delete has no timestamp predicate, it only applies
	// when the criteria carries no timestamp narrowing.
	if s.opts.SupportsRangeDelete() && criteria.IsLatestTimestamp() {
		err := s.deleteRange(ctx, persistenceID, criteria)
		if err != nil {
			s.metrics.deleteErrors.Inc(1)
			return err
		}
		s.metrics.deleteSuccess.Inc(1)
		return nil
	}

	err := s.deleteEnumerated(ctx, persistenceID, criteria)
	if err != nil {
		s.metrics.deleteErrors.Inc(1)
		return err
	}
	s.metrics.deleteSuccess.Inc(1)
	return nil
}

func (s *store) deleteRange(ctx context.Context, persistenceID string, criteria Criteria) error {
	ps, err := s.stmts.Prepare(ctx, s.queries.deleteRange)
	if err != nil {
		return errors.Wrap(err, "preparing snapshot range delete")
	}
	bound := ps.Bind(persistenceID, criteria.MinSequenceNr, criteria.MaxSequenceNr)
	return s.writeRetrier.AttemptWithReport(ctx, func() error {
		return s.session.ExecuteWrite(ctx, bound)
	}, s.reportRetry("range-delete-snapshots"))
}

// deleteEnumerated queries matching metadata rows without a row-count
// bound, then issues batched unlogged deletes chunked under the
// backend's statements-per-batch limit, executing chunks concurrently.
func (s *store) deleteEnumerated(ctx context.Context, persistenceID string, criteria Criteria) error {
	ps, err := s.stmts.Prepare(ctx, s.queries.selectMetadata)
	if err != nil {
		return errors.Wrap(err, "preparing snapshot metadata select")
	}
	bound := ps.Bind(persistenceID, criteria.MinSequenceNr, criteria.MaxSequenceNr)

	var matched []Metadata
	err = s.readRetrier.AttemptWithReport(ctx, func() error {
		matched = matched[:0]
		iter := s.session.Select(ctx, bound)
		defer iter.Close()
		for iter.Next() {
			row := iter.Current()
			ts := row.Int64(colTimestamp)
			if ts < criteria.MinTimestamp || ts > criteria.MaxTimestamp {
				continue
			}
			matched = append(matched, Metadata{
				PersistenceID: row.String(colPersistenceID),
				SequenceNr:    row.Int64(colSequenceNr),
				Timestamp:     ts,
			})
		}
		return iter.Err()
	}, s.reportRetry("select-snapshots-to-delete"))
	if err != nil {
		return errors.Wrap(err, "selecting snapshots to delete")
	}
	if len(matched) == 0 {
		return nil
	}

	del, err := s.stmts.Prepare(ctx, s.queries.deleteSnapshot)
	if err != nil {
		return errors.Wrap(err, "preparing snapshot delete")
	}
	stmts := make([]session.BoundStatement, 0, len(matched))
	for _, md := range matched {
		stmts = append(stmts, del.Bind(md.PersistenceID, md.SequenceNr))
	}

	g, gctx := errgroup.WithContext(ctx)
	for len(stmts) > 0 {
		n := maxBatchStatements
		if len(stmts) < n {
			n = len(stmts)
		}
		chunk := stmts[:n]
		stmts = stmts[n:]
		g.Go(func() error {
			return s.writeRetrier.AttemptWithReport(gctx, func() error {
				return s.session.ExecuteBatch(gctx, chunk)
			}, s.reportRetry("batch-delete-snapshots"))
		})
	}
	return g.Wait()
}

func (s *store) DeleteOne(ctx context.Context, metadata Metadata) error {
	ps, err := s.stmts.Prepare(ctx, s.queries.deleteSnapshot)
	if err != nil {
		return errors.Wrap(err, "preparing snapshot delete")
	}
	bound := ps.Bind(metadata.PersistenceID, metadata.SequenceNr)
	err = s.writeRetrier.AttemptWithReport(ctx, func() error {
		return s.session.ExecuteWrite(ctx, bound)
	}, s.reportRetry("delete-snapshot"))
	if err != nil {
		s.metrics.deleteErrors.Inc(1)
		return errors.Wrapf(err, "deleting snapshot for %s", metadata.PersistenceID)
	}
	s.metrics.deleteSuccess.Inc(1)
	return nil
}

func (s *store) reportRetry(operation string) retry.OnFailureFn {
	return func(attempt int, err error, backoff time.Duration) {
		s.log.Warn("transient storage failure, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
	}
}
