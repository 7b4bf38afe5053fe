// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package core

import (
	"crypto/rand"

	"golang.org/x/crypto/sha3"
)

// SaltSize is the length of commitment salts in bytes
const SaltSize = 16

// NewSalt draws a fresh random commitment salt
func NewSalt() []byte {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		panic(err)
	}
	return salt
}

// CommitDigest computes the commitment hash binding an author to a
// score vector and salt for one epoch. Targets are folded in sorted
// order so the digest is independent of map iteration.
func CommitDigest(epoch uint64, author PeerID, salt []byte, scores ScoreVector) []byte {
	h := sha3.New256()
	h.Write(uint64ToBytes(epoch))
	h.Write([]byte(author))
	h.Write(salt)
	for _, target := range scores.Targets() {
		h.Write([]byte(target))
		h.Write(float64ToBytes(scores[target]))
	}
	return h.Sum(nil)
}
