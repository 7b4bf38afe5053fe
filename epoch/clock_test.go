// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package epoch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGenesis = time.Unix(1_000_000, 0)

func newTestClock(t *testing.T) *Clock {
	cfg := Config{
		Genesis:      testGenesis,
		CommitWindow: 60 * time.Second,
		RevealWindow: 60 * time.Second,
		SettleWindow: 60 * time.Second,
		Grace:        2 * time.Second,
	}
	clock, err := NewClock(cfg)
	require.NoError(t, err)
	return clock
}

func TestNewClock(t *testing.T) {
	assert := assert.New(t)

	_, err := NewClock(Config{Genesis: testGenesis})
	assert.Equal(ErrInvalidWindows, err)

	_, err = NewClock(Config{
		CommitWindow: time.Second, RevealWindow: time.Second, SettleWindow: time.Second,
	})
	assert.Error(err) // genesis not set
}

func TestClock_BeforeGenesis(t *testing.T) {
	assert := assert.New(t)
	clock := newTestClock(t)

	_, err := clock.EpochAt(testGenesis.Add(-time.Second))
	assert.Equal(ErrBeforeGenesis, err)

	_, _, err = clock.PhaseAt(testGenesis.Add(-time.Nanosecond))
	assert.Equal(ErrBeforeGenesis, err)

	e, err := clock.EpochAt(testGenesis)
	assert.NoError(err)
	assert.EqualValues(0, e)
}

func TestClock_PhaseAt(t *testing.T) {
	clock := newTestClock(t)

	tests := []struct {
		name      string
		offset    time.Duration
		wantEpoch uint64
		wantPhase Phase
	}{
		{"epoch start", 0, 0, Commit},
		{"end of commit window", 59 * time.Second, 0, Commit},
		{"reveal entry", 60 * time.Second, 0, Reveal},
		{"end of reveal window", 119 * time.Second, 0, Reveal},
		{"settle entry", 120 * time.Second, 0, Settled},
		{"end of epoch", 179 * time.Second, 0, Settled},
		{"next epoch", 180 * time.Second, 1, Commit},
		{"epoch five", 5*180*time.Second + 61*time.Second, 5, Reveal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			e, p, err := clock.PhaseAt(testGenesis.Add(tt.offset))
			assert.NoError(err)
			assert.Equal(tt.wantEpoch, e)
			assert.Equal(tt.wantPhase, p)
		})
	}
}

// phases must partition the epoch: same input gives same output, no
// gaps and no overlaps across a dense sample of instants
func TestClock_PhasePartition(t *testing.T) {
	assert := assert.New(t)
	clock := newTestClock(t)

	var lastEpoch uint64
	var lastPhase Phase
	first := true
	transitions := 0
	for off := time.Duration(0); off < 2*clock.Config().EpochLength(); off += 250 * time.Millisecond {
		now := testGenesis.Add(off)
		e1, p1, err := clock.PhaseAt(now)
		assert.NoError(err)
		e2, p2, err := clock.PhaseAt(now)
		assert.NoError(err)
		assert.Equal(e1, e2)
		assert.Equal(p1, p2)

		if first {
			first = false
		} else if e1 != lastEpoch || p1 != lastPhase {
			transitions++
			// phases only ever advance in order
			if e1 == lastEpoch {
				assert.Equal(lastPhase+1, p1)
			} else {
				assert.Equal(lastEpoch+1, e1)
				assert.Equal(Settled, lastPhase)
				assert.Equal(Commit, p1)
			}
		}
		lastEpoch, lastPhase = e1, p1
	}
	assert.Equal(5, transitions) // commit->reveal->settled->commit->reveal->settled
}

func TestClock_Deadlines(t *testing.T) {
	assert := assert.New(t)
	clock := newTestClock(t)

	start := clock.StartOf(5)
	assert.Equal(testGenesis.Add(5*180*time.Second), start)
	assert.Equal(start.Add(60*time.Second), clock.Deadline(5, Commit))
	assert.Equal(start.Add(120*time.Second), clock.Deadline(5, Reveal))
	assert.Equal(start.Add(180*time.Second), clock.Deadline(5, Settled))
	assert.Equal(clock.Deadline(5, Settled), clock.StartOf(6))
}

func TestClock_InWindow(t *testing.T) {
	assert := assert.New(t)
	clock := newTestClock(t)

	start := clock.StartOf(3)
	// no early entry, even within grace
	assert.False(clock.InWindow(3, Reveal, start.Add(59*time.Second)))
	assert.True(clock.InWindow(3, Commit, start))
	assert.True(clock.InWindow(3, Commit, start.Add(59*time.Second)))
	// grace applies at the deadline only
	assert.True(clock.InWindow(3, Commit, start.Add(61*time.Second)))
	assert.False(clock.InWindow(3, Commit, start.Add(63*time.Second)))
	assert.True(clock.InWindow(3, Reveal, start.Add(90*time.Second)))
	assert.False(clock.InWindow(3, Reveal, start.Add(123*time.Second)))
}
