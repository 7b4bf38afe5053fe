// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Well-known keys. Commit and reveal records live under per-epoch keys
// so stale epochs age out with their entries.
const NodesKey = "nodes"

func CommitKey(epoch uint64) string {
	return fmt.Sprintf("commit_epoch_%d", epoch)
}

func RevealKey(epoch uint64) string {
	return fmt.Sprintf("reveal_epoch_%d", epoch)
}

// errors
var (
	ErrRejected = errors.New("record rejected by policy")
	ErrClosed   = errors.New("store closed")
)

// Entry is one subkey's value with its expiration. StoredAt is the
// writer's claimed timestamp; concurrent writes to the same
// (key, subkey) resolve last-writer-wins on StoredAt, not on arrival
// order.
type Entry struct {
	Value     []byte
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its expiration at the
// given time. Expired entries are treated as absent.
func (e Entry) Expired(at time.Time) bool {
	return !at.Before(e.ExpiresAt)
}

// Store is the replicated key/subkey store shared by all peers.
// Subkeys let many peers write distinct fields under one logical key
// without overwriting each other. Writes are not globally ordered;
// readers must tolerate stale or partial views during propagation.
type Store interface {
	Put(ctx context.Context, key, subkey string, value []byte, expiresAt time.Time) error
	Get(ctx context.Context, key string) (map[string]Entry, error)
	GetSubkey(ctx context.Context, key, subkey string) (Entry, bool, error)
}
