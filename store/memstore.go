// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package store

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-process replica of the replicated store. It backs
// the gossip store on live nodes and serves as the deterministic fake
// in tests, where several peers can share one instance to emulate a
// fully propagated store.
type MemStore struct {
	mtx    sync.RWMutex
	data   map[string]map[string]Entry
	policy RecordPolicy
	now    func() time.Time
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		data: make(map[string]map[string]Entry),
		now:  time.Now,
	}
}

// SetPolicy installs a record policy checked on every write
func (s *MemStore) SetPolicy(policy RecordPolicy) *MemStore {
	s.policy = policy
	return s
}

// SetClock overrides the time source, for tests
func (s *MemStore) SetClock(now func() time.Time) *MemStore {
	s.now = now
	return s
}

func (s *MemStore) Put(ctx context.Context, key, subkey string, value []byte, expiresAt time.Time) error {
	now := s.now()
	entry := Entry{Value: value, StoredAt: now, ExpiresAt: expiresAt}
	if s.policy != nil {
		if err := s.policy.Allow(Record{
			Key: key, Subkey: subkey, Entry: entry,
		}, now); err != nil {
			return err
		}
	}
	s.Merge(key, subkey, entry)
	return nil
}

// Merge applies an entry last-writer-wins on the entry's own StoredAt
// timestamp. Returns true if the entry was applied.
func (s *MemStore) Merge(key, subkey string, entry Entry) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	subkeys, ok := s.data[key]
	if !ok {
		subkeys = make(map[string]Entry)
		s.data[key] = subkeys
	}
	if prev, ok := subkeys[subkey]; ok && prev.StoredAt.After(entry.StoredAt) {
		return false
	}
	subkeys[subkey] = entry
	return true
}

func (s *MemStore) Get(ctx context.Context, key string) (map[string]Entry, error) {
	now := s.now()
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	ret := make(map[string]Entry)
	for subkey, entry := range s.data[key] {
		if entry.Expired(now) {
			continue
		}
		ret[subkey] = entry
	}
	return ret, nil
}

func (s *MemStore) GetSubkey(ctx context.Context, key, subkey string) (Entry, bool, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	entry, ok := s.data[key][subkey]
	if !ok || entry.Expired(s.now()) {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// OwnedLive returns the live entries stored under the given subkey
// across all keys, for anti-entropy rebroadcast.
func (s *MemStore) OwnedLive(subkey string) map[string]Entry {
	now := s.now()
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	ret := make(map[string]Entry)
	for key, subkeys := range s.data {
		if entry, ok := subkeys[subkey]; ok && !entry.Expired(now) {
			ret[key] = entry
		}
	}
	return ret
}

// PurgeExpired drops expired entries and empty keys
func (s *MemStore) PurgeExpired() {
	now := s.now()
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for key, subkeys := range s.data {
		for subkey, entry := range subkeys {
			if entry.Expired(now) {
				delete(subkeys, subkey)
			}
		}
		if len(subkeys) == 0 {
			delete(s.data, key)
		}
	}
}
