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
	"github.com/widetable/persistence/instrument"
	"github.com/widetable/persistence/retry"
	"github.com/widetable/persistence/serialize"
)

const (
	defaultKeyspace        = "persistence"
	defaultTable           = "snapshots"
	defaultMaxLoadAttempts = 3
)

type options struct {
	iopts               instrument.Options
	keyspace            string
	table               string
	maxLoadAttempts     int
	supportsRangeDelete bool
	writeRetrier        retry.Retrier
	readRetrier         retry.Retrier
	legacyCodec         serialize.Codec
}

// NewOptions creates new snapshot store options with defaults. The
// default retriers perform a single attempt, retrying is opt-in.
func NewOptions() Options {
	singleAttempt := retry.NewOptions().SetMaxAttempts(1)
	return &options{
		iopts:               instrument.NewOptions(),
		keyspace:            defaultKeyspace,
		table:               defaultTable,
		maxLoadAttempts:     defaultMaxLoadAttempts,
		supportsRangeDelete: true,
		writeRetrier:        retry.NewRetrier(singleAttempt),
		readRetrier:         retry.NewRetrier(singleAttempt),
	}
}

func (o *options) SetInstrumentOptions(value instrument.Options) Options {
	opts := *o
	opts.iopts = value
	return &opts
}

func (o *options) InstrumentOptions() instrument.Options {
	return o.iopts
}

func (o *options) SetKeyspace(value string) Options {
	opts := *o
	opts.keyspace = value
	return &opts
}

func (o *options) Keyspace() string {
	return o.keyspace
}

func (o *options) SetTable(value string) Options {
	opts := *o
	opts.table = value
	return &opts
}

func (o *options) Table() string {
	return o.table
}

func (o *options) SetMaxLoadAttempts(value int) Options {
	opts := *o
	opts.maxLoadAttempts = value
	return &opts
}

func (o *options) MaxLoadAttempts() int {
	return o.maxLoadAttempts
}

func (o *options) SetSupportsRangeDelete(value bool) Options {
	opts := *o
	opts.supportsRangeDelete = value
	return &opts
}

func (o *options) SupportsRangeDelete() bool {
	return o.supportsRangeDelete
}

func (o *options) SetWriteRetrier(value retry.Retrier) Options {
	opts := *o
	opts.writeRetrier = value
	return &opts
}

func (o *options) WriteRetrier() retry.Retrier {
	return o.writeRetrier
}

func (o *options) SetReadRetrier(value retry.Retrier) Options {
	opts := *o
	opts.readRetrier = value
	return &opts
}

func (o *options) ReadRetrier() retry.Retrier {
	return o.readRetrier
}

func (o *options) SetLegacyCodec(value serialize.Codec) Options {
	opts := *o
	opts.legacyCodec = value
	return &opts
}

func (o *options) LegacyCodec() serialize.Codec {
	return o.legacyCodec
}
