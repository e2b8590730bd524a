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

// Package serialize converts typed application events and snapshots
// to and from versioned binary rows, tolerant of schema evolution.
package serialize

import (
	"context"

	"github.com/pborman/uuid"

	"github.com/widetable/persistence/bucket"
)

// Codec encodes and decodes payloads of the types it is registered for.
// The registry owning codecs is an injected collaborator.
type Codec interface {
	// Identifier is the numeric serializer identity recorded alongside
	// serialized bytes.
	Identifier() int32

	// Manifest returns the manifest string identifying the concrete
	// encoding of the payload.
	Manifest(payload interface{}) (string, error)

	// Marshal encodes the payload.
	Marshal(payload interface{}) ([]byte, error)

	// Unmarshal decodes data written under the given manifest.
	Unmarshal(data []byte, manifest string) (interface{}, error)
}

// ContextCodec is a codec whose encode and decode entry points must be
// invoked with the caller's context attached, so the serialized form
// carries addressing metadata consistent with synchronous encoding.
type ContextCodec interface {
	Codec

	// MarshalWithContext encodes the payload with the context attached.
	MarshalWithContext(ctx context.Context, payload interface{}) ([]byte, error)

	// UnmarshalWithContext decodes with the context attached.
	UnmarshalWithContext(ctx context.Context, data []byte, manifest string) (interface{}, error)
}

// Registry resolves the codec capability for payloads and serializer
// identities. Injected collaborator, not implemented by this module.
type Registry interface {
	// CodecForPayload resolves the codec registered for the payload's
	// runtime type.
	CodecForPayload(payload interface{}) (Codec, error)

	// CodecForID resolves the codec registered under a serializer id.
	CodecForID(id int32) (Codec, error)
}

// Event is a typed persistent event before serialization.
type Event struct {
	PersistenceID   string
	SequenceNr      int64
	Payload         interface{}
	Meta            interface{}
	WriterID        string
	AdapterManifest string
	Tags            []string
}

// SerializedEvent is the versioned binary row form of an event.
// Created once per write, immutable thereafter.
type SerializedEvent struct {
	PersistenceID        string
	SequenceNr           int64
	Payload              []byte
	Tags                 map[string]struct{}
	EventAdapterManifest string
	SerializerManifest   string
	SerializerID         int32
	WriterID             string
	Meta                 *SerializedMeta
	TimeUUID             uuid.UUID
	TimeBucket           bucket.Bucket
}

// SerializedMeta is the optional metadata side-channel attached to an
// event or snapshot, tagged with its own serializer identity.
type SerializedMeta struct {
	Payload            []byte
	SerializerManifest string
	SerializerID       int32
}
