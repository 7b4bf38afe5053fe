// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommitDigest_Deterministic(t *testing.T) {
	assert := assert.New(t)

	salt := NewSalt()
	scores := ScoreVector{"peerB": 0.9, "peerC": 0.8}

	d1 := CommitDigest(5, "peerA", salt, scores)
	d2 := CommitDigest(5, "peerA", salt, scores)
	assert.Equal(d1, d2)
	assert.Equal(32, len(d1))

	// map iteration order must not matter
	d3 := CommitDigest(5, "peerA", salt, ScoreVector{"peerC": 0.8, "peerB": 0.9})
	assert.Equal(d1, d3)
}

func TestCommitDigest_Mutations(t *testing.T) {
	salt := NewSalt()
	scores := ScoreVector{"peerB": 0.9, "peerC": 0.8}
	base := CommitDigest(5, "peerA", salt, scores)

	mutatedSalt := make([]byte, len(salt))
	copy(mutatedSalt, salt)
	mutatedSalt[0] ^= 0x01

	tests := []struct {
		name   string
		epoch  uint64
		author PeerID
		salt   []byte
		scores ScoreVector
	}{
		{"different epoch", 6, "peerA", salt, scores},
		{"different author", 5, "peerX", salt, scores},
		{"single bit flip in salt", 5, "peerA", mutatedSalt, scores},
		{"changed score value", 5, "peerA", salt, ScoreVector{"peerB": 0.9, "peerC": 0.800001}},
		{"extra target", 5, "peerA", salt, ScoreVector{"peerB": 0.9, "peerC": 0.8, "peerD": 0.1}},
		{"missing target", 5, "peerA", salt, ScoreVector{"peerB": 0.9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CommitDigest(tt.epoch, tt.author, tt.salt, tt.scores)
			assert.NotEqual(t, base, d)
		})
	}
}

func TestRevealMatches(t *testing.T) {
	assert := assert.New(t)

	salt := NewSalt()
	scores := ScoreVector{"peerB": 0.9, "peerC": 0.8}
	commit := &Commit{
		Epoch:       5,
		Author:      "peerA",
		Digest:      CommitDigest(5, "peerA", salt, scores),
		SubmittedAt: 100,
	}
	reveal := &Reveal{
		Epoch:       5,
		Author:      "peerA",
		Salt:        salt,
		Scores:      scores,
		SubmittedAt: 200,
	}
	assert.NoError(reveal.Matches(commit))

	// mutated salt
	badSalt := make([]byte, len(salt))
	copy(badSalt, salt)
	badSalt[3] ^= 0x80
	badReveal := &Reveal{Epoch: 5, Author: "peerA", Salt: badSalt, Scores: scores}
	assert.Equal(ErrDigestMismatch, badReveal.Matches(commit))

	// mutated score
	badReveal = &Reveal{Epoch: 5, Author: "peerA", Salt: salt,
		Scores: ScoreVector{"peerB": 0.9, "peerC": 0.81}}
	assert.Equal(ErrDigestMismatch, badReveal.Matches(commit))

	// wrong author
	badReveal = &Reveal{Epoch: 5, Author: "peerB", Salt: salt, Scores: scores}
	assert.Equal(ErrDigestMismatch, badReveal.Matches(commit))

	// wrong epoch
	badReveal = &Reveal{Epoch: 6, Author: "peerA", Salt: salt, Scores: scores}
	assert.Equal(ErrDigestMismatch, badReveal.Matches(commit))
}

// A reveal whose digest genuinely opens its commitment must still be
// rejected when it carries a non-finite score, or a single author
// could poison every honest node's aggregate for the target.
func TestRevealMatches_NonFiniteScores(t *testing.T) {
	assert := assert.New(t)

	salt := NewSalt()
	scores := ScoreVector{"peerB": math.NaN()}
	commit := &Commit{
		Epoch:  5,
		Author: "peerA",
		Digest: CommitDigest(5, "peerA", salt, scores),
	}
	reveal := &Reveal{Epoch: 5, Author: "peerA", Salt: salt, Scores: scores}
	assert.Equal(ErrScoreOutOfRange, reveal.Matches(commit))

	scores = ScoreVector{"peerB": math.Inf(1)}
	commit.Digest = CommitDigest(5, "peerA", salt, scores)
	reveal.Scores = scores
	assert.Equal(ErrScoreOutOfRange, reveal.Matches(commit))
}
