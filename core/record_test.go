// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package core

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScoreVector_Validate(t *testing.T) {
	tests := []struct {
		name    string
		scores  ScoreVector
		wantErr error
	}{
		{"valid", ScoreVector{"a": 0, "b": 1, "c": 0.5}, nil},
		{"empty", ScoreVector{}, ErrEmptyScoreVector},
		{"negative", ScoreVector{"a": -0.1}, ErrScoreOutOfRange},
		{"above one", ScoreVector{"a": 1.1}, ErrScoreOutOfRange},
		{"nan", ScoreVector{"a": math.NaN()}, ErrScoreOutOfRange},
		{"positive inf", ScoreVector{"a": math.Inf(1)}, ErrScoreOutOfRange},
		{"negative inf", ScoreVector{"a": math.Inf(-1)}, ErrScoreOutOfRange},
		{"nan beside valid", ScoreVector{"a": 0.5, "b": math.NaN()}, ErrScoreOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, tt.scores.Validate())
		})
	}
}

func TestReveal_Validate(t *testing.T) {
	assert := assert.New(t)

	reveal := &Reveal{
		Epoch:  1,
		Author: "peerA",
		Salt:   NewSalt(),
		Scores: ScoreVector{"peerB": 0.5},
	}
	assert.NoError(reveal.Validate())

	reveal.Salt = []byte("short")
	assert.Equal(ErrInvalidSalt, reveal.Validate())

	var nilReveal *Reveal
	assert.Equal(ErrNilReveal, nilReveal.Validate())
}

func TestCommit_Marshal(t *testing.T) {
	assert := assert.New(t)

	commit := &Commit{
		Epoch:       7,
		Author:      "peerA",
		Digest:      CommitDigest(7, "peerA", NewSalt(), ScoreVector{"b": 0.3}),
		SubmittedAt: 1234,
	}
	b, err := commit.Marshal()
	assert.NoError(err)

	commit1, err := UnmarshalCommit(b)
	assert.NoError(err)
	assert.Equal(commit, commit1)
	assert.NoError(commit1.Validate())

	_, err = UnmarshalCommit([]byte("not msgpack"))
	assert.Error(err)
}

func TestHeartbeat_Live(t *testing.T) {
	assert := assert.New(t)

	now := time.Unix(1000, 0)
	hb := &Heartbeat{Peer: "peerA", SentAt: now.Unix(), TTLSeconds: 60}

	assert.NoError(hb.Validate())
	assert.True(hb.Live(now))
	assert.True(hb.Live(now.Add(59 * time.Second)))
	assert.False(hb.Live(now.Add(60 * time.Second)))
	assert.False(hb.Live(now.Add(time.Hour)))
}

func TestSignedRecord(t *testing.T) {
	assert := assert.New(t)

	signer := GenerateKey(nil)
	payload := []byte("payload bytes")

	b, err := SignRecord(signer, payload)
	assert.NoError(err)

	got, owner, err := OpenRecord(b)
	assert.NoError(err)
	assert.Equal(payload, got)
	assert.Equal(signer.PeerID(), owner.PeerID())

	// tampered payload must not verify
	tampered := make([]byte, len(b))
	copy(tampered, b)
	tampered[len(tampered)-1] ^= 0xff
	_, _, err = OpenRecord(tampered)
	assert.Error(err)
}
