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

package config

import (
	"time"

	"github.com/pkg/errors"

	"github.com/widetable/persistence/bucket"
	"github.com/widetable/persistence/instrument"
	"github.com/widetable/persistence/retry"
	"github.com/widetable/persistence/snapshot"
	"github.com/widetable/persistence/tagview"
	"github.com/widetable/persistence/xsync"
)

// Configuration is the top level plugin configuration.
type Configuration struct {
	// Keyspace the plugin tables live in.
	Keyspace string `yaml:"keyspace"`

	// SnapshotTable is the snapshot table name.
	SnapshotTable string `yaml:"snapshotTable"`

	// TagViewTable is the tag view index table name.
	TagViewTable string `yaml:"tagViewTable"`

	// BucketSize is the tag index partitioning granularity, one of
	// minute, hour or day. Defaults to hour.
	BucketSize string `yaml:"bucketSize"`

	// MaxLoadAttempts bounds how many snapshot candidates one load may try.
	MaxLoadAttempts int `yaml:"maxLoadAttempts" validate:"min=0"`

	// SupportsRangeDelete declares whether the backend supports ranged
	// deletes over sequence numbers. Defaults to true.
	SupportsRangeDelete *bool `yaml:"supportsRangeDelete"`

	// ScanningDelay defers every tag scan before it starts.
	ScanningDelay time.Duration `yaml:"scanningDelay" validate:"min=0"`

	// ScanWorkers sizes the pool isolating tag scans, zero runs scans
	// inline.
	ScanWorkers int `yaml:"scanWorkers" validate:"min=0"`

	// SerializeWorkers sizes the pool running synchronous codecs, zero
	// runs them inline.
	SerializeWorkers int `yaml:"serializeWorkers" validate:"min=0"`

	// WriteRetry configures retries around write statements.
	WriteRetry retry.Configuration `yaml:"writeRetry"`

	// ReadRetry configures retries around read statements.
	ReadRetry retry.Configuration `yaml:"readRetry"`
}

// ParseBucketSize returns the configured bucket size, hour when unset.
func (c Configuration) ParseBucketSize() (bucket.Size, error) {
	if c.BucketSize == "" {
		return bucket.Hour, nil
	}
	size, err := bucket.ParseSize(c.BucketSize)
	if err != nil {
		return bucket.None, errors.Wrapf(err, "parsing bucket size %q", c.BucketSize)
	}
	return size, nil
}

// NewSnapshotOptions creates snapshot store options from the
// configuration.
func (c Configuration) NewSnapshotOptions(iopts instrument.Options) snapshot.Options {
	scope := iopts.MetricsScope()
	opts := snapshot.NewOptions().
		SetInstrumentOptions(iopts).
		SetWriteRetrier(c.WriteRetry.NewRetrier(scope.SubScope("write-retry"))).
		SetReadRetrier(c.ReadRetry.NewRetrier(scope.SubScope("read-retry")))
	if c.Keyspace != "" {
		opts = opts.SetKeyspace(c.Keyspace)
	}
	if c.SnapshotTable != "" {
		opts = opts.SetTable(c.SnapshotTable)
	}
	if c.MaxLoadAttempts != 0 {
		opts = opts.SetMaxLoadAttempts(c.MaxLoadAttempts)
	}
	if c.SupportsRangeDelete != nil {
		opts = opts.SetSupportsRangeDelete(*c.SupportsRangeDelete)
	}
	return opts
}

// NewScannerOptions creates tag view scanner options from the
// configuration. A positive ScanWorkers allocates and initializes the
// scan isolation pool.
func (c Configuration) NewScannerOptions(iopts instrument.Options) tagview.Options {
	opts := tagview.NewOptions().
		SetInstrumentOptions(iopts).
		SetReadRetrier(c.ReadRetry.NewRetrier(iopts.MetricsScope().SubScope("read-retry")))
	if c.Keyspace != "" {
		opts = opts.SetKeyspace(c.Keyspace)
	}
	if c.TagViewTable != "" {
		opts = opts.SetTable(c.TagViewTable)
	}
	if c.ScanWorkers > 0 {
		workers := xsync.NewWorkerPool(c.ScanWorkers)
		workers.Init()
		opts = opts.SetWorkerPool(workers)
	}
	return opts
}

// NewSerializeWorkerPool creates the pool running synchronous codecs,
// nil when no workers are configured.
func (c Configuration) NewSerializeWorkerPool() xsync.WorkerPool {
	if c.SerializeWorkers <= 0 {
		return nil
	}
	workers := xsync.NewWorkerPool(c.SerializeWorkers)
	workers.Init()
	return workers
}
