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

package bucket

import (
	"fmt"
	"time"

	"github.com/pborman/uuid"

	"github.com/widetable/persistence/offset"
)

// Bucket is a value type identifying one time bucket of a given size.
// Equality and ordering are defined on the truncated key only.
type Bucket struct {
	key  int64
	size Size
}

// FromTime computes the bucket containing the given time. Panics on an
// invalid size, an invalid size is a programmer error.
func FromTime(t time.Time, size Size) Bucket {
	d, err := size.Duration()
	if err != nil {
		panic(fmt.Sprintf("bucket: invalid size %v", size))
	}
	return Bucket{key: t.Truncate(d).UnixNano(), size: size}
}

// FromUUID computes the bucket containing the timestamp embedded in a
// version 1 UUID.
func FromUUID(u uuid.UUID, size Size) (Bucket, error) {
	t, err := offset.TimeOf(u)
	if err != nil {
		return Bucket{}, err
	}
	return FromTime(t, size), nil
}

// Key returns the bucket key, the truncated timestamp in unix nanos.
func (b Bucket) Key() int64 {
	return b.key
}

// StartTime returns the inclusive start of the bucket.
func (b Bucket) StartTime() time.Time {
	return time.Unix(0, b.key).UTC()
}

// Size returns the bucket size.
func (b Bucket) Size() Size {
	return b.size
}

// Next returns the bucket immediately following this one.
func (b Bucket) Next() Bucket {
	d, err := b.size.Duration()
	if err != nil {
		panic(fmt.Sprintf("bucket: invalid size %v", b.size))
	}
	return Bucket{key: b.StartTime().Add(d).UnixNano(), size: b.size}
}

// Before returns whether this bucket starts before the other.
func (b Bucket) Before(other Bucket) bool {
	return b.key < other.key
}

// After returns whether this bucket starts after the other.
func (b Bucket) After(other Bucket) bool {
	return b.key > other.key
}

// Equal returns whether the buckets share the same key.
func (b Bucket) Equal(other Bucket) bool {
	return b.key == other.key
}

func (b Bucket) String() string {
	return fmt.Sprintf("%s (%s)", b.StartTime().Format(time.RFC3339), b.size)
}

// Range returns every bucket from from to to inclusive in ascending
// order. Panics if from starts after to, a reversed range is a
// programmer error and must be checked before a scan begins.
func Range(from, to Bucket) []Bucket {
	if from.After(to) {
		panic(fmt.Sprintf("bucket: range start %s after end %s", from, to))
	}
	buckets := []Bucket{from}
	for b := from; !b.Equal(to); {
		b = b.Next()
		buckets = append(buckets, b)
	}
	return buckets
}
