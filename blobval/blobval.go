// Package blobval walks structured values (maps, slices, scalars and
// binary large objects), replacing binary payloads with self-describing
// wrapper values for serialization and reconstructing them on the way
// back in.
//
// Wrappers survive a JSON round trip: payload bytes become base64
// strings and sizes become float64s, and Internalize accepts both
// shapes. Large payloads can be externalized to a content-addressed
// Store instead of being embedded inline.
package blobval

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"
)

// Wrapper field names. Changing any of these breaks existing archives.
const (
	markerKey = "__blob__"
	mimeKey   = "mimeType"
	dataKey   = "data"
	refKey    = "ref"
	sizeKey   = "size"
	absentKey = "absent"
)

// DefaultReadBudget bounds one binary payload materialization. A read
// exceeding it drops that one value to an absent marker; the walk
// continues.
const DefaultReadBudget = 10 * time.Second

// ErrNoStore is returned when internalizing an externalized reference
// without a Store configured.
var ErrNoStore = errors.New("blobval: wrapper references external storage but no store is configured")

// Binary is a binary large object embedded in a structured value.
//
// Data, when non-nil, is the materialized payload. Otherwise Open is
// invoked to pull the payload under the codec's read budget.
type Binary struct {
	MIME string
	Data []byte

	// Open lazily opens the payload. Called at most once per
	// externalization, from the walk's own goroutine's budget window.
	Open func(ctx context.Context) (io.ReadCloser, error)
}

// Store is content-addressed side storage for externalized payloads.
type Store interface {
	// Put stores data and returns a stable reference to it.
	Put(ctx context.Context, data []byte) (ref string, err error)

	// Get retrieves the data a previous Put returned ref for.
	Get(ctx context.Context, ref string) ([]byte, error)
}

// Codec externalizes and internalizes structured values. The zero-value
// configuration embeds every payload inline; options add a store, an
// externalization threshold and a read budget.
//
// Both directions are pure functions of their input: the input value is
// never mutated, and no state is shared across calls.
type Codec struct {
	store     Store
	threshold int
	budget    time.Duration
}

// Option configures a Codec.
type Option func(*Codec)

// WithStore externalizes payloads of at least the threshold size to s
// instead of embedding them inline.
func WithStore(s Store) Option {
	return func(c *Codec) {
		c.store = s
	}
}

// WithExternalThreshold sets the minimum payload size for
// externalization. Ignored without a store. Zero externalizes
// everything a store is configured for.
func WithExternalThreshold(n int) Option {
	return func(c *Codec) {
		c.threshold = n
	}
}

// WithReadBudget bounds each binary payload read. Zero or negative
// restores DefaultReadBudget.
func WithReadBudget(d time.Duration) Option {
	return func(c *Codec) {
		c.budget = d
	}
}

// New creates a Codec.
func New(opts ...Option) *Codec {
	c := &Codec{budget: DefaultReadBudget}
	for _, opt := range opts {
		opt(c)
	}
	if c.budget <= 0 {
		c.budget = DefaultReadBudget
	}
	return c
}

// Externalize returns a copy of v with every Binary replaced by a
// wrapper value. Maps are walked in sorted key order; slices in order;
// byte slices are copied into owned buffers; scalars pass through.
//
// A Binary whose read exceeds the budget (or fails) becomes an absent
// marker rather than failing the walk — documented data loss, not an
// error. Store failures, by contrast, abort the walk: they mean the
// side file the wrapper promises would not exist.
func (c *Codec) Externalize(ctx context.Context, v any) (any, error) {
	switch val := v.(type) {
	case *Binary:
		return c.externalizeBinary(ctx, val)
	case Binary:
		return c.externalizeBinary(ctx, &val)
	case []byte:
		return slices.Clone(val), nil
	case map[string]any:
		if isWrapper(val) {
			// Already externalized; pass through untouched for
			// idempotency.
			return copyMap(val), nil
		}
		out := make(map[string]any, len(val))
		for _, k := range sortedKeys(val) {
			ev, err := c.Externalize(ctx, val[k])
			if err != nil {
				return nil, err
			}
			out[k] = ev
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			ev, err := c.Externalize(ctx, elem)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	default:
		return v, nil
	}
}

// Internalize is the structural inverse of Externalize: wrapper values
// become *Binary, absent markers become nil, everything else is walked
// recursively.
func (c *Codec) Internalize(ctx context.Context, v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if isWrapper(val) {
			return c.internalizeWrapper(ctx, val)
		}
		out := make(map[string]any, len(val))
		for _, k := range sortedKeys(val) {
			iv, err := c.Internalize(ctx, val[k])
			if err != nil {
				return nil, err
			}
			out[k] = iv
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			iv, err := c.Internalize(ctx, elem)
			if err != nil {
				return nil, err
			}
			out[i] = iv
		}
		return out, nil
	case []byte:
		return slices.Clone(val), nil
	default:
		return v, nil
	}
}

// externalizeBinary materializes one binary payload and wraps it.
func (c *Codec) externalizeBinary(ctx context.Context, b *Binary) (any, error) {
	data, ok := c.materialize(ctx, b)
	if !ok {
		return map[string]any{markerKey: true, mimeKey: b.MIME, absentKey: true}, nil
	}
	if c.store != nil && len(data) >= c.threshold {
		ref, err := c.store.Put(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("blobval: externalizing %d-byte payload: %w", len(data), err)
		}
		return map[string]any{
			markerKey: true,
			mimeKey:   b.MIME,
			refKey:    ref,
			sizeKey:   uint64(len(data)),
		}, nil
	}
	return map[string]any{markerKey: true, mimeKey: b.MIME, dataKey: data}, nil
}

// materialize produces owned payload bytes, bounding lazy reads with
// the codec's budget. ok is false when the value should collapse to an
// absent marker.
func (c *Codec) materialize(ctx context.Context, b *Binary) ([]byte, bool) {
	if b.Data != nil {
		return slices.Clone(b.Data), true
	}
	if b.Open == nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		rc, err := b.Open(ctx)
		if err != nil {
			ch <- result{nil, err}
			return
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		ch <- result{data, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, false
		}
		return res.data, true
	case <-ctx.Done():
		// The reader goroutine is left to drain into the closed
		// context; its result is discarded.
		return nil, false
	}
}

// internalizeWrapper reconstructs one Binary from its wrapper value.
func (c *Codec) internalizeWrapper(ctx context.Context, w map[string]any) (any, error) {
	if truthy(w[absentKey]) {
		// A payload dropped at export time: well-defined absence.
		return nil, nil
	}
	mime, _ := w[mimeKey].(string)

	if ref, ok := w[refKey].(string); ok {
		if c.store == nil {
			return nil, ErrNoStore
		}
		data, err := c.store.Get(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("blobval: resolving reference %q: %w", ref, err)
		}
		return &Binary{MIME: mime, Data: data}, nil
	}

	switch data := w[dataKey].(type) {
	case []byte:
		return &Binary{MIME: mime, Data: slices.Clone(data)}, nil
	case string:
		// JSON round trips encode payload bytes as base64.
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("blobval: decoding wrapper payload: %w", err)
		}
		return &Binary{MIME: mime, Data: raw}, nil
	case nil:
		return &Binary{MIME: mime, Data: []byte{}}, nil
	default:
		return nil, fmt.Errorf("blobval: wrapper payload has unsupported type %T", data)
	}
}

// isWrapper reports whether m carries the blob marker.
func isWrapper(m map[string]any) bool {
	return truthy(m[markerKey])
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
