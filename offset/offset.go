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

// Package offset provides helpers for time-based (version 1) UUID
// offsets used to order events and derive time buckets.
package offset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/pborman/uuid"
)

// Number of 100ns intervals between the UUID Gregorian epoch
// (1582-10-15) and the Unix epoch.
const gregorianToUnixNanos100 = 122192928000000000

var errNotTimeUUID = errors.New("uuid is not a version 1 time-based uuid")

// TimeOf extracts the embedded timestamp of a version 1 UUID.
func TimeOf(u uuid.UUID) (time.Time, error) {
	if len(u) != 16 || u[6]>>4 != 1 {
		return time.Time{}, errNotTimeUUID
	}
	var (
		timeLow = int64(binary.BigEndian.Uint32(u[0:4]))
		timeMid = int64(binary.BigEndian.Uint16(u[4:6]))
		timeHi  = int64(binary.BigEndian.Uint16(u[6:8]) & 0x0fff)
	)
	ts := timeHi<<48 | timeMid<<32 | timeLow
	ts -= gregorianToUnixNanos100
	return time.Unix(ts/1e7, (ts%1e7)*100).UTC(), nil
}

// UUIDAtTime returns the smallest version 1 UUID carrying the given
// timestamp, suitable as a deterministic range boundary.
func UUIDAtTime(t time.Time) uuid.UUID {
	ts := t.UnixNano()/100 + gregorianToUnixNanos100
	u := make(uuid.UUID, 16)
	binary.BigEndian.PutUint32(u[0:4], uint32(ts&0xffffffff))
	binary.BigEndian.PutUint16(u[4:6], uint16((ts>>32)&0xffff))
	binary.BigEndian.PutUint16(u[6:8], uint16((ts>>48)&0x0fff)|0x1000)
	// RFC 4122 variant, zero clock sequence and node.
	u[8] = 0x80
	return u
}

// Format renders an offset UUID together with its embedded timestamp
// for log output.
func Format(u uuid.UUID) string {
	t, err := TimeOf(u)
	if err != nil {
		return u.String()
	}
	return fmt.Sprintf("%s (%s)", u.String(), t.Format(time.RFC3339Nano))
}
