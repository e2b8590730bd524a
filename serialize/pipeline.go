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

	"github.com/pborman/uuid"
	"github.com/pkg/errors"

	"github.com/widetable/persistence/bucket"
	"github.com/widetable/persistence/xsync"
)

// Pipeline serializes events and snapshots through codecs resolved
// from an injected registry. Synchronous codecs run on a worker pool
// suited for potentially blocking computation, context-aware codecs
// run with the caller's context attached.
type Pipeline struct {
	registry Registry
	workers  xsync.WorkerPool
}

// NewPipeline creates a new serialization pipeline. A nil worker pool
// runs synchronous codecs inline.
func NewPipeline(registry Registry, workers xsync.WorkerPool) *Pipeline {
	return &Pipeline{registry: registry, workers: workers}
}

// SerializeEvent turns a typed event into its binary row form. The
// time bucket is derived from the event's time UUID rather than the
// wall clock so replays are deterministic. Codec lookup or encode
// failures, including panics out of collaborator code, are returned
// as errors and never escape.
func (p *Pipeline) SerializeEvent(
	ctx context.Context,
	ev Event,
	timeUUID uuid.UUID,
	bucketSize bucket.Size,
) (SerializedEvent, error) {
	timeBucket, err := bucket.FromUUID(timeUUID, bucketSize)
	if err != nil {
		return SerializedEvent{}, errors.Wrap(err, "deriving time bucket from event uuid")
	}

	payload, id, manifest, err := p.marshal(ctx, ev.Payload)
	if err != nil {
		return SerializedEvent{}, errors.Wrapf(err, "serializing event payload for %s", ev.PersistenceID)
	}

	var meta *SerializedMeta
	if ev.Meta != nil {
		metaPayload, metaID, metaManifest, err := p.marshal(ctx, ev.Meta)
		if err != nil {
			return SerializedEvent{}, errors.Wrapf(err, "serializing event metadata for %s", ev.PersistenceID)
		}
		meta = &SerializedMeta{
			Payload:            metaPayload,
			SerializerManifest: metaManifest,
			SerializerID:       metaID,
		}
	}

	tags := make(map[string]struct{}, len(ev.Tags))
	for _, tag := range ev.Tags {
		tags[tag] = struct{}{}
	}

	return SerializedEvent{
		PersistenceID:        ev.PersistenceID,
		SequenceNr:           ev.SequenceNr,
		Payload:              payload,
		Tags:                 tags,
		EventAdapterManifest: ev.AdapterManifest,
		SerializerManifest:   manifest,
		SerializerID:         id,
		WriterID:             ev.WriterID,
		Meta:                 meta,
		TimeUUID:             timeUUID,
		TimeBucket:           timeBucket,
	}, nil
}

// SerializePayload encodes a bare payload, returning the bytes with
// the serializer identity and manifest to record alongside them.
func (p *Pipeline) SerializePayload(
	ctx context.Context,
	payload interface{},
) ([]byte, int32, string, error) {
	data, id, manifest, err := p.marshal(ctx, payload)
	if err != nil {
		return nil, 0, "", err
	}
	return data, id, manifest, nil
}

// DeserializePayload decodes bytes using the recorded serializer id
// and manifest.
func (p *Pipeline) DeserializePayload(
	ctx context.Context,
	data []byte,
	id int32,
	manifest string,
) (payload interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("deserializer panic: %v", r)
		}
	}()

	codec, err := p.registry.CodecForID(id)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving codec for serializer id %d", id)
	}

	if cc, ok := codec.(ContextCodec); ok {
		return cc.UnmarshalWithContext(ctx, data, manifest)
	}

	p.runBlocking(func() {
		// Recover on the pool goroutine, the caller's defer can't see it.
		defer func() {
			if r := recover(); r != nil {
				err = errors.Errorf("deserializer panic: %v", r)
			}
		}()
		payload, err = codec.Unmarshal(data, manifest)
	})
	return payload, err
}

// DeserializeMeta decodes an optional metadata side-record.
func (p *Pipeline) DeserializeMeta(ctx context.Context, meta SerializedMeta) (interface{}, error) {
	return p.DeserializePayload(ctx, meta.Payload, meta.SerializerID, meta.SerializerManifest)
}

func (p *Pipeline) marshal(
	ctx context.Context,
	payload interface{},
) (data []byte, id int32, manifest string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("serializer panic: %v", r)
		}
	}()

	codec, err := p.registry.CodecForPayload(payload)
	if err != nil {
		return nil, 0, "", errors.Wrap(err, "resolving codec for payload")
	}

	manifest, err = codec.Manifest(payload)
	if err != nil {
		return nil, 0, "", errors.Wrap(err, "resolving manifest for payload")
	}

	if cc, ok := codec.(ContextCodec); ok {
		data, err = cc.MarshalWithContext(ctx, payload)
	} else {
		p.runBlocking(func() {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Errorf("serializer panic: %v", r)
				}
			}()
			data, err = codec.Marshal(payload)
		})
	}
	if err != nil {
		return nil, 0, "", err
	}
	return data, codec.Identifier(), manifest, nil
}

// runBlocking executes fn on the blocking-computation pool and waits
// for it, or inline when no pool is configured.
func (p *Pipeline) runBlocking(fn func()) {
	if p.workers == nil {
		fn()
		return
	}
	done := make(chan struct{})
	p.workers.Go(func() {
		defer close(done)
		fn()
	})
	<-done
}
