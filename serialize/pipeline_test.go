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

package serialize

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/widetable/persistence/bucket"
	"github.com/widetable/persistence/offset"
	"github.com/widetable/persistence/xsync"
)

type testPayload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type testMeta struct {
	Origin string `json:"origin"`
}

const (
	jsonCodecID     = int32(41)
	jsonCtxCodecID  = int32(42)
	payloadManifest = "test-payload"
	metaManifest    = "test-meta"
)

// jsonCodec is a synchronous codec for testPayload and testMeta.
type jsonCodec struct{}

func (jsonCodec) Identifier() int32 { return jsonCodecID }

func (jsonCodec) Manifest(payload interface{}) (string, error) {
	switch payload.(type) {
	case testPayload:
		return payloadManifest, nil
	case testMeta:
		return metaManifest, nil
	}
	return "", errors.New("unknown payload type")
}

func (jsonCodec) Marshal(payload interface{}) ([]byte, error) {
	return json.Marshal(payload)
}

func (jsonCodec) Unmarshal(data []byte, manifest string) (interface{}, error) {
	switch manifest {
	case payloadManifest:
		var p testPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case metaManifest:
		var m testMeta
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, errors.Errorf("unknown manifest %q", manifest)
}

// ctxJSONCodec requires the caller context attached around encoding.
type ctxJSONCodec struct {
	jsonCodec

	sawContext bool
}

func (c *ctxJSONCodec) Identifier() int32 { return jsonCtxCodecID }

func (c *ctxJSONCodec) MarshalWithContext(ctx context.Context, payload interface{}) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("no context attached")
	}
	c.sawContext = true
	return json.Marshal(payload)
}

func (c *ctxJSONCodec) UnmarshalWithContext(ctx context.Context, data []byte, manifest string) (interface{}, error) {
	if ctx == nil {
		return nil, errors.New("no context attached")
	}
	c.sawContext = true
	return c.jsonCodec.Unmarshal(data, manifest)
}

type panicCodec struct {
	jsonCodec
}

func (panicCodec) Marshal(interface{}) ([]byte, error) { panic("boom") }

func (panicCodec) Unmarshal([]byte, string) (interface{}, error) { panic("boom") }

// testRegistry serves a single codec for all types and ids.
type testRegistry struct {
	codec Codec
}

func (r testRegistry) CodecForPayload(interface{}) (Codec, error) {
	if r.codec == nil {
		return nil, errors.New("no codec registered")
	}
	return r.codec, nil
}

func (r testRegistry) CodecForID(id int32) (Codec, error) {
	if r.codec == nil || r.codec.Identifier() != id {
		return nil, errors.Errorf("no codec registered for id %d", id)
	}
	return r.codec, nil
}

func testEvent() Event {
	return Event{
		PersistenceID:   "p-1",
		SequenceNr:      7,
		Payload:         testPayload{Name: "a", Count: 3},
		Meta:            testMeta{Origin: "dc-1"},
		WriterID:        "writer-1",
		AdapterManifest: "adapter-v2",
		Tags:            []string{"blue", "green"},
	}
}

func TestSerializeEventRoundTripSyncCodec(t *testing.T) {
	var (
		pipeline = NewPipeline(testRegistry{codec: jsonCodec{}}, nil)
		ctx      = context.Background()
		ts       = time.Date(2021, time.May, 1, 12, 34, 0, 0, time.UTC)
		timeUUID = offset.UUIDAtTime(ts)
	)

	serialized, err := pipeline.SerializeEvent(ctx, testEvent(), timeUUID, bucket.Hour)
	require.NoError(t, err)
	require.Equal(t, "p-1", serialized.PersistenceID)
	require.Equal(t, int64(7), serialized.SequenceNr)
	require.Equal(t, jsonCodecID, serialized.SerializerID)
	require.Equal(t, payloadManifest, serialized.SerializerManifest)
	require.Equal(t, "adapter-v2", serialized.EventAdapterManifest)
	require.Equal(t, map[string]struct{}{"blue": {}, "green": {}}, serialized.Tags)
	require.Equal(t, bucket.FromTime(ts, bucket.Hour), serialized.TimeBucket)

	payload, err := pipeline.DeserializePayload(
		ctx, serialized.Payload, serialized.SerializerID, serialized.SerializerManifest)
	require.NoError(t, err)
	require.Equal(t, testPayload{Name: "a", Count: 3}, payload)

	require.NotNil(t, serialized.Meta)
	require.Equal(t, jsonCodecID, serialized.Meta.SerializerID)
	require.Equal(t, metaManifest, serialized.Meta.SerializerManifest)

	meta, err := pipeline.DeserializeMeta(ctx, *serialized.Meta)
	require.NoError(t, err)
	require.Equal(t, testMeta{Origin: "dc-1"}, meta)
}

func TestSerializeEventRoundTripContextCodec(t *testing.T) {
	var (
		codec    = &ctxJSONCodec{}
		pipeline = NewPipeline(testRegistry{codec: codec}, nil)
		ctx      = context.Background()
		timeUUID = offset.UUIDAtTime(time.Now())
	)

	serialized, err := pipeline.SerializeEvent(ctx, testEvent(), timeUUID, bucket.Minute)
	require.NoError(t, err)
	require.True(t, codec.sawContext)
	require.Equal(t, jsonCtxCodecID, serialized.SerializerID)

	codec.sawContext = false
	payload, err := pipeline.DeserializePayload(
		ctx, serialized.Payload, serialized.SerializerID, serialized.SerializerManifest)
	require.NoError(t, err)
	require.True(t, codec.sawContext)
	require.Equal(t, testPayload{Name: "a", Count: 3}, payload)
}

func TestSerializeEventOnWorkerPool(t *testing.T) {
	workers := xsync.NewWorkerPool(2)
	workers.Init()

	pipeline := NewPipeline(testRegistry{codec: jsonCodec{}}, workers)
	serialized, err := pipeline.SerializeEvent(
		context.Background(), testEvent(), offset.UUIDAtTime(time.Now()), bucket.Day)
	require.NoError(t, err)

	payload, err := pipeline.DeserializePayload(
		context.Background(), serialized.Payload, serialized.SerializerID, serialized.SerializerManifest)
	require.NoError(t, err)
	require.Equal(t, testPayload{Name: "a", Count: 3}, payload)
}

func TestSerializeEventNoMeta(t *testing.T) {
	ev := testEvent()
	ev.Meta = nil

	pipeline := NewPipeline(testRegistry{codec: jsonCodec{}}, nil)
	serialized, err := pipeline.SerializeEvent(
		context.Background(), ev, offset.UUIDAtTime(time.Now()), bucket.Hour)
	require.NoError(t, err)
	require.Nil(t, serialized.Meta)
}

func TestSerializeEventBucketFromEventUUIDNotWallClock(t *testing.T) {
	// An event time far in the past must bucket to its own time.
	ts := time.Date(2019, time.December, 31, 23, 59, 0, 0, time.UTC)
	pipeline := NewPipeline(testRegistry{codec: jsonCodec{}}, nil)

	serialized, err := pipeline.SerializeEvent(
		context.Background(), testEvent(), offset.UUIDAtTime(ts), bucket.Day)
	require.NoError(t, err)
	require.Equal(t, bucket.FromTime(ts, bucket.Day), serialized.TimeBucket)
}

func TestSerializeEventCodecPanicCaptured(t *testing.T) {
	for _, workers := range []xsync.WorkerPool{nil, newInitializedPool()} {
		pipeline := NewPipeline(testRegistry{codec: panicCodec{}}, workers)
		_, err := pipeline.SerializeEvent(
			context.Background(), testEvent(), offset.UUIDAtTime(time.Now()), bucket.Hour)
		require.Error(t, err)
		require.Contains(t, err.Error(), "panic")
	}
}

func TestDeserializePayloadCodecPanicCaptured(t *testing.T) {
	pipeline := NewPipeline(testRegistry{codec: panicCodec{}}, nil)
	_, err := pipeline.DeserializePayload(context.Background(), []byte("x"), jsonCodecID, payloadManifest)
	require.Error(t, err)
	require.Contains(t, err.Error(), "panic")
}

func TestSerializeEventLookupFailure(t *testing.T) {
	pipeline := NewPipeline(testRegistry{}, nil)
	_, err := pipeline.SerializeEvent(
		context.Background(), testEvent(), offset.UUIDAtTime(time.Now()), bucket.Hour)
	require.Error(t, err)
}

func newInitializedPool() xsync.WorkerPool {
	p := xsync.NewWorkerPool(1)
	p.Init()
	return p
}
