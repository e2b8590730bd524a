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

// Package snapshot persists, loads and deletes point-in-time actor
// state snapshots on wide-column storage.
package snapshot

import (
	"context"
	"math"

	"github.com/widetable/persistence/instrument"
	"github.com/widetable/persistence/retry"
	"github.com/widetable/persistence/serialize"
)

// NoUpperBound is the sentinel for an unconstrained upper sequence
// number or timestamp, meaning "latest".
const NoUpperBound int64 = math.MaxInt64

// Criteria bounds which snapshots an operation applies to.
type Criteria struct {
	MinSequenceNr int64
	MaxSequenceNr int64
	MinTimestamp  int64
	MaxTimestamp  int64
}

// LatestCriteria matches every snapshot up to the latest.
func LatestCriteria() Criteria {
	return Criteria{
		MaxSequenceNr: NoUpperBound,
		MaxTimestamp:  NoUpperBound,
	}
}

// IsLatestTimestamp returns whether the criteria carries no timestamp
// constraint narrower than all time.
func (c Criteria) IsLatestTimestamp() bool {
	return c.MinTimestamp == 0 && c.MaxTimestamp == NoUpperBound
}

// Metadata identifies a stored snapshot.
type Metadata struct {
	PersistenceID string
	SequenceNr    int64
	Timestamp     int64
}

// Selected is the result of a successful snapshot load. Meta is nil
// when the snapshot carries no metadata or when metadata decoding
// failed (the latter is logged, never fatal).
type Selected struct {
	Metadata Metadata
	Payload  interface{}
	Meta     interface{}
}

// Store persists, loads and deletes snapshots.
type Store interface {
	// Load returns the newest loadable snapshot matching the criteria,
	// nil when none exists. Candidates are attempted newest first,
	// falling back to older ones on failure up to the configured
	// maximum number of load attempts.
	Load(ctx context.Context, persistenceID string, criteria Criteria) (*Selected, error)

	// Save serializes and writes a snapshot row. A non-nil meta is
	// serialized independently and attached as an optional side-record.
	Save(ctx context.Context, metadata Metadata, payload, meta interface{}) error

	// Delete removes every snapshot matching the criteria.
	Delete(ctx context.Context, persistenceID string, criteria Criteria) error

	// DeleteOne removes a single snapshot row by persistence id and
	// sequence number.
	DeleteOne(ctx context.Context, metadata Metadata) error
}

// Options control the snapshot store.
type Options interface {
	// SetInstrumentOptions sets the instrument options.
	SetInstrumentOptions(value instrument.Options) Options

	// InstrumentOptions returns the instrument options.
	InstrumentOptions() instrument.Options

	// SetKeyspace sets the keyspace the snapshot table lives in.
	SetKeyspace(value string) Options

	// Keyspace returns the keyspace the snapshot table lives in.
	Keyspace() string

	// SetTable sets the snapshot table name.
	SetTable(value string) Options

	// Table returns the snapshot table name.
	Table() string

	// SetMaxLoadAttempts sets how many snapshot candidates a load may
	// try before surfacing the failure.
	SetMaxLoadAttempts(value int) Options

	// MaxLoadAttempts returns how many snapshot candidates a load may try.
	MaxLoadAttempts() int

	// SetSupportsRangeDelete sets whether the backend supports ranged
	// deletes over sequence numbers.
	SetSupportsRangeDelete(value bool) Options

	// SupportsRangeDelete returns whether the backend supports ranged deletes.
	SupportsRangeDelete() bool

	// SetWriteRetrier sets the retrier wrapping write statements.
	SetWriteRetrier(value retry.Retrier) Options

	// WriteRetrier returns the retrier wrapping write statements.
	WriteRetrier() retry.Retrier

	// SetReadRetrier sets the retrier wrapping read statements.
	SetReadRetrier(value retry.Retrier) Options

	// ReadRetrier returns the retrier wrapping read statements.
	ReadRetrier() retry.Retrier

	// SetLegacyCodec sets the envelope codec decoding rows written in
	// the legacy single-blob column format.
	SetLegacyCodec(value serialize.Codec) Options

	// LegacyCodec returns the legacy envelope codec.
	LegacyCodec() serialize.Codec
}
