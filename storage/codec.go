// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/quarry/core"
)

// Leading byte of every encoded value. Bump when a layout changes.
const codecVersion = 1

// writer runs an encode function twice: once to size the buffer and once to fill it.
type writer struct {
	bs     []byte
	n      int
	sizing bool
}

func encode(fn func(w *writer)) []byte {
	sizer := &writer{sizing: true}
	fn(sizer)
	w := &writer{bs: make([]byte, sizer.n)}
	fn(w)
	return w.bs
}

func (w *writer) uint64(v uint64) {
	if w.sizing {
		w.n += varint.Uint64.Size(v)
		return
	}
	w.n += varint.Uint64.Marshal(v, w.bs[w.n:])
}

func (w *writer) int64(v int64) {
	if w.sizing {
		w.n += varint.Int64.Size(v)
		return
	}
	w.n += varint.Int64.Marshal(v, w.bs[w.n:])
}

func (w *writer) int(v int) {
	w.int64(int64(v))
}

func (w *writer) string(v string) {
	if w.sizing {
		w.n += ord.String.Size(v)
		return
	}
	w.n += ord.String.Marshal(v, w.bs[w.n:])
}

func (w *writer) strings(vs []string) {
	w.uint64(uint64(len(vs)))
	for _, v := range vs {
		w.string(v)
	}
}

func (w *writer) time(t time.Time) {
	if t.IsZero() {
		w.int64(0)
		return
	}
	w.int64(t.UnixMicro())
}

func (w *writer) vector(vs []float32) {
	w.uint64(uint64(len(vs)))
	for _, v := range vs {
		if w.sizing {
			w.n += raw.Float32.Size(v)
			continue
		}
		w.n += raw.Float32.Marshal(v, w.bs[w.n:])
	}
}

func (w *writer) attributes(attrs map[string]string) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w.uint64(uint64(len(keys)))
	for _, k := range keys {
		w.string(k)
		w.string(attrs[k])
	}
}

// reader decodes sequentially and keeps the first error.
type reader struct {
	bs  []byte
	n   int
	err error
}

func newReader(data []byte) *reader {
	r := &reader{bs: data}
	if len(data) == 0 {
		r.err = ErrTruncatedData
		return r
	}
	if data[0] != codecVersion {
		r.err = fmt.Errorf("%w: unknown codec version %d", ErrSerializationFailed, data[0])
		return r
	}
	r.n = 1
	return r
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
}

func (r *reader) uint64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.bs[r.n:])
	if err != nil {
		r.fail(err)
		return 0
	}
	r.n += n
	return v
}

func (r *reader) int64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
	if err != nil {
		r.fail(err)
		return 0
	}
	r.n += n
	return v
}

func (r *reader) int() int {
	return int(r.int64())
}

func (r *reader) string() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.n:])
	if err != nil {
		r.fail(err)
		return ""
	}
	r.n += n
	return v
}

// length reads a collection length and rejects values the remaining bytes cannot hold.
func (r *reader) length() int {
	l := r.uint64()
	if r.err == nil && l > uint64(len(r.bs)-r.n) {
		r.err = fmt.Errorf("%w: length %d exceeds remaining %d bytes", ErrTruncatedData, l, len(r.bs)-r.n)
		return 0
	}
	return int(l)
}

func (r *reader) strings() []string {
	l := r.length()
	if l == 0 {
		return nil
	}
	vs := make([]string, 0, l)
	for i := 0; i < l && r.err == nil; i++ {
		vs = append(vs, r.string())
	}
	return vs
}

func (r *reader) time() time.Time {
	v := r.int64()
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

func (r *reader) vector() []float32 {
	l := r.length()
	if l == 0 {
		return nil
	}
	vs := make([]float32, 0, l)
	for i := 0; i < l && r.err == nil; i++ {
		v, n, err := raw.Float32.Unmarshal(r.bs[r.n:])
		if err != nil {
			r.fail(err)
			return nil
		}
		r.n += n
		vs = append(vs, v)
	}
	return vs
}

func (r *reader) attributes() map[string]string {
	l := r.length()
	if l == 0 {
		return nil
	}
	attrs := make(map[string]string, l)
	for i := 0; i < l && r.err == nil; i++ {
		k := r.string()
		attrs[k] = r.string()
	}
	return attrs
}

func header(w *writer) {
	if w.sizing {
		w.n++
		return
	}
	w.bs[w.n] = codecVersion
	w.n++
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	return encode(func(w *writer) {
		header(w)
		w.uint64(uint64(id))
	})
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	r := newReader(data)
	id := core.ID(r.uint64())
	return id, r.err
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	return encode(func(w *writer) {
		header(w)
		w.uint64(uint64(doc.Id))
		w.string(string(doc.Tenant))
		w.string(doc.Title)
		w.strings(doc.Authors)
		w.string(doc.Venue)
		w.int(doc.Year)
		w.string(doc.Identifier)
		w.strings(doc.Tags)
		w.time(doc.InsertedAt)
		w.time(doc.UpdatedAt)
	})
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	r := newReader(data)
	doc := &core.Document{
		Id:         core.ID(r.uint64()),
		Tenant:     core.TenantID(r.string()),
		Title:      r.string(),
		Authors:    r.strings(),
		Venue:      r.string(),
		Year:       r.int(),
		Identifier: r.string(),
		Tags:       r.strings(),
		InsertedAt: r.time(),
		UpdatedAt:  r.time(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return doc, nil
}

// MarshalRecord serializes a Record to bytes.
func MarshalRecord(record *core.Record) []byte {
	return encode(func(w *writer) {
		header(w)
		w.uint64(uint64(record.Id))
		w.string(string(record.Kind))
		w.string(string(record.Tenant))
		w.uint64(uint64(record.DocumentId))
		w.int(record.Position)
		w.string(record.Text)
		w.vector(record.Vector)
		w.int(record.Dimension)
		w.string(record.Generation)
		w.attributes(record.Attributes)
		w.time(record.InsertedAt)
	})
}

// UnmarshalRecord deserializes a Record from bytes.
func UnmarshalRecord(data []byte) (*core.Record, error) {
	r := newReader(data)
	record := &core.Record{
		Id:         core.ID(r.uint64()),
		Kind:       core.ContentType(r.string()),
		Tenant:     core.TenantID(r.string()),
		DocumentId: core.ID(r.uint64()),
		Position:   r.int(),
		Text:       r.string(),
		Vector:     r.vector(),
		Dimension:  r.int(),
		Generation: r.string(),
		Attributes: r.attributes(),
		InsertedAt: r.time(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return record, nil
}

// MarshalCitation serializes a Citation to bytes.
func MarshalCitation(c *core.Citation) []byte {
	return encode(func(w *writer) {
		header(w)
		w.uint64(uint64(c.Id))
		w.string(string(c.Tenant))
		w.uint64(uint64(c.CitingId))
		w.uint64(uint64(c.CitedId))
		w.string(c.CitedTitle)
		w.strings(c.CitedAuthors)
		w.int(c.CitedYear)
		w.string(c.CitedIdentifier)
		w.int(c.ReferenceCount)
		w.strings(c.Sections)
		w.time(c.InsertedAt)
	})
}

// UnmarshalCitation deserializes a Citation from bytes.
func UnmarshalCitation(data []byte) (*core.Citation, error) {
	r := newReader(data)
	c := &core.Citation{
		Id:              core.ID(r.uint64()),
		Tenant:          core.TenantID(r.string()),
		CitingId:        core.ID(r.uint64()),
		CitedId:         core.ID(r.uint64()),
		CitedTitle:      r.string(),
		CitedAuthors:    r.strings(),
		CitedYear:       r.int(),
		CitedIdentifier: r.string(),
		ReferenceCount:  r.int(),
		Sections:        r.strings(),
		InsertedAt:      r.time(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) []byte {
	return encode(func(w *writer) {
		header(w)
		w.string(checkpoint.ProcessorType)
		w.string(string(checkpoint.Tenant))
		w.uint64(uint64(checkpoint.LastID))
		w.int(checkpoint.Processed)
		w.time(checkpoint.UpdatedAt)
	})
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	r := newReader(data)
	checkpoint := &core.Checkpoint{
		ProcessorType: r.string(),
		Tenant:        core.TenantID(r.string()),
		LastID:        core.ID(r.uint64()),
		Processed:     r.int(),
		UpdatedAt:     r.time(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return checkpoint, nil
}
