// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package store

import (
	"testing"
	"time"

	"gotest.tools/assert"

	"github.com/meshsub/meshsub/epoch"
)

var policyGenesis = time.Unix(1_000_000, 0)

func newPolicyClock(t *testing.T) *epoch.Clock {
	clock, err := epoch.NewClock(epoch.Config{
		Genesis:      policyGenesis,
		CommitWindow: 60 * time.Second,
		RevealWindow: 60 * time.Second,
		SettleWindow: 60 * time.Second,
		Grace:        2 * time.Second,
	})
	assert.NilError(t, err)
	return clock
}

func record(key, subkey string, expiresAt time.Time) Record {
	return Record{
		Key:    key,
		Subkey: subkey,
		Entry:  Entry{Value: []byte("v"), ExpiresAt: expiresAt},
	}
}

func TestEpochPolicy_Keys(t *testing.T) {
	clock := newPolicyClock(t)
	policy := NewEpochPolicy(clock)
	now := policyGenesis.Add(10 * time.Second) // epoch 0, commit phase

	err := policy.Allow(record(NodesKey, "peerA", now.Add(time.Minute)), now)
	assert.NilError(t, err)

	err = policy.Allow(record(CommitKey(0), "peerA", now.Add(time.Minute)), now)
	assert.NilError(t, err)

	err = policy.Allow(record("bogus_key", "peerA", now.Add(time.Minute)), now)
	assert.Equal(t, ErrUnknownKey, err)

	// key naming another epoch is rejected
	err = policy.Allow(record(CommitKey(3), "peerA", now.Add(time.Minute)), now)
	assert.Equal(t, ErrWrongEpochKey, err)
}

// keys must round-trip exactly; Sscanf alone would accept trailing
// junk and admit look-alike keys beside the canonical ones
func TestEpochPolicy_MalformedEpochKeys(t *testing.T) {
	clock := newPolicyClock(t)
	policy := NewEpochPolicy(clock)
	now := policyGenesis.Add(10 * time.Second) // epoch 0, commit phase

	for _, key := range []string{
		"commit_epoch_0xyz",
		"commit_epoch_00",
		"commit_epoch_0 ",
		"reveal_epoch_0/extra",
		"commit_epoch_",
		"commit_epoch_x",
	} {
		err := policy.Allow(record(key, "peerA", now.Add(time.Minute)), now)
		assert.Equal(t, ErrMalformedrecord, err, "key %q", key)
	}
}

func TestEpochPolicy_PhaseWindows(t *testing.T) {
	clock := newPolicyClock(t)
	policy := NewEpochPolicy(clock)

	commitTime := policyGenesis.Add(10 * time.Second)
	revealTime := policyGenesis.Add(70 * time.Second)
	settleTime := policyGenesis.Add(130 * time.Second)

	// reveal during commit phase is an early write
	err := policy.Allow(record(RevealKey(0), "peerA", commitTime.Add(time.Minute)), commitTime)
	assert.Equal(t, ErrOutsideWindow, err)

	// commit during reveal phase is late
	err = policy.Allow(record(CommitKey(0), "peerA", revealTime.Add(time.Minute)), revealTime)
	assert.Equal(t, ErrOutsideWindow, err)

	err = policy.Allow(record(RevealKey(0), "peerA", revealTime.Add(time.Minute)), revealTime)
	assert.NilError(t, err)

	// nothing is writable for the epoch once it settles
	err = policy.Allow(record(RevealKey(0), "peerB", settleTime.Add(time.Minute)), settleTime)
	assert.Equal(t, ErrOutsideWindow, err)
}

func TestEpochPolicy_ExpirationCaps(t *testing.T) {
	clock := newPolicyClock(t)
	policy := NewEpochPolicy(clock)
	now := policyGenesis.Add(10 * time.Second)

	// heartbeat expiration is capped near one epoch
	err := policy.Allow(record(NodesKey, "peerA", now.Add(24*time.Hour)), now)
	assert.Equal(t, ErrExpirationCap, err)

	// commit expiration is capped at five epochs
	err = policy.Allow(record(CommitKey(0), "peerA", now.Add(24*time.Hour)), now)
	assert.Equal(t, ErrExpirationCap, err)

	err = policy.Allow(record(CommitKey(0), "peerA", now.Add(10*time.Minute)), now)
	assert.NilError(t, err)
}

func TestEpochPolicy_StoreLimits(t *testing.T) {
	clock := newPolicyClock(t)
	policy := NewEpochPolicy(clock)
	now := policyGenesis.Add(10 * time.Second)

	err := policy.Allow(record(CommitKey(0), "peerA", now.Add(time.Minute)), now)
	assert.NilError(t, err)

	// one commit per peer per epoch
	err = policy.Allow(record(CommitKey(0), "peerA", now.Add(time.Minute)), now)
	assert.Equal(t, ErrStoreLimit, err)

	// other peers are unaffected
	err = policy.Allow(record(CommitKey(0), "peerB", now.Add(time.Minute)), now)
	assert.NilError(t, err)

	// next epoch resets the limit
	nextCommit := policyGenesis.Add(190 * time.Second)
	err = policy.Allow(record(CommitKey(1), "peerA", nextCommit.Add(time.Minute)), nextCommit)
	assert.NilError(t, err)
}

func TestEpochPolicy_BeforeGenesis(t *testing.T) {
	clock := newPolicyClock(t)
	policy := NewEpochPolicy(clock)
	early := policyGenesis.Add(-time.Minute)

	err := policy.Allow(record(NodesKey, "peerA", early.Add(time.Minute)), early)
	assert.Equal(t, epoch.ErrBeforeGenesis, err)
}
