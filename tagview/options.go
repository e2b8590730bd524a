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
	"github.com/widetable/persistence/instrument"
	"github.com/widetable/persistence/retry"
	"github.com/widetable/persistence/xsync"
)

const (
	defaultKeyspace = "persistence"
	defaultTable    = "tag_views"
)

type options struct {
	iopts       instrument.Options
	keyspace    string
	table       string
	workers     xsync.WorkerPool
	readRetrier retry.Retrier
}

// NewOptions creates new scanner options with defaults. The default
// retrier performs a single attempt, retrying is opt-in.
func NewOptions() Options {
	return &options{
		iopts:       instrument.NewOptions(),
		keyspace:    defaultKeyspace,
		table:       defaultTable,
		readRetrier: retry.NewRetrier(retry.NewOptions().SetMaxAttempts(1)),
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

func (o *options) SetWorkerPool(value xsync.WorkerPool) Options {
	opts := *o
	opts.workers = value
	return &opts
}

func (o *options) WorkerPool() xsync.WorkerPool {
	return o.workers
}

func (o *options) SetReadRetrier(value retry.Retrier) Options {
	opts := *o
	opts.readRetrier = value
	return &opts
}

func (o *options) ReadRetrier() retry.Retrier {
	return o.readRetrier
}
