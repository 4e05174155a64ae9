// Package snapshot holds the last-accepted payload per feed channel and
// decides whether a new payload is actually a change.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"garden-notifier/pkg/notifier"
)

// Snapshot is the last-accepted payload for a channel. Immutable once
// stored; Replace swaps the whole value.
type Snapshot struct {
	Channel    notifier.Channel
	Raw        []byte // canonical serialized form
	Parsed     any    // *notifier.StockPayload or *notifier.WeatherPayload
	ObservedAt time.Time
}

// Store keeps at most one snapshot per channel. All access is serialized so
// a reader never observes a torn snapshot.
type Store struct {
	mu   sync.RWMutex
	byCh map[notifier.Channel]*Snapshot
}

// NewStore creates an empty snapshot store.
func NewStore() *Store {
	return &Store{byCh: make(map[notifier.Channel]*Snapshot)}
}

// Get returns the current snapshot for a channel, or nil if none was
// accepted yet.
func (s *Store) Get(ch notifier.Channel) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byCh[ch]
}

// Replace compares the canonical form of raw against the stored snapshot and
// installs a new one when they differ. It returns whether the payload
// changed and the previous snapshot, if any.
//
// Payloads are canonicalized before comparison so key-order churn from the
// upstream API does not trigger spurious notifications.
func (s *Store) Replace(ch notifier.Channel, raw []byte, parsed any) (changed bool, previous *Snapshot, err error) {
	canonical, err := Canonicalize(raw)
	if err != nil {
		return false, nil, fmt.Errorf("canonicalize payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous = s.byCh[ch]
	if previous != nil && bytes.Equal(previous.Raw, canonical) {
		return false, previous, nil
	}

	s.byCh[ch] = &Snapshot{
		Channel:    ch,
		Raw:        canonical,
		Parsed:     parsed,
		ObservedAt: time.Now().UTC(),
	}
	return true, previous, nil
}

// Canonicalize re-serializes a JSON document with stable key ordering.
// encoding/json sorts map keys, so decoding into any and re-marshaling
// yields a stable byte form for semantically identical payloads.
func Canonicalize(raw []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return out, nil
}
