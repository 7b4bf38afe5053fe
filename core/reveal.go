// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package core

import (
	"bytes"
	"errors"

	"github.com/vmihailenco/msgpack/v4"
)

// errors
var (
	ErrNilReveal      = errors.New("nil reveal")
	ErrInvalidSalt    = errors.New("invalid salt size")
	ErrDigestMismatch = errors.New("reveal does not match commitment digest")
)

// Reveal discloses the salt and score vector behind an earlier Commit.
type Reveal struct {
	Epoch       uint64      `msgpack:"epoch"`
	Author      PeerID      `msgpack:"author"`
	Salt        []byte      `msgpack:"salt"`
	Scores      ScoreVector `msgpack:"scores"`
	SubmittedAt int64       `msgpack:"submitted_at"`
}

// Validate checks the record shape and the score bounds
func (r *Reveal) Validate() error {
	if r == nil {
		return ErrNilReveal
	}
	if len(r.Salt) != SaltSize {
		return ErrInvalidSalt
	}
	return r.Scores.Validate()
}

// Digest recomputes the commitment digest for this reveal
func (r *Reveal) Digest() []byte {
	return CommitDigest(r.Epoch, r.Author, r.Salt, r.Scores)
}

// Matches reports whether the reveal opens the given commitment.
// The commit must be from the same author and epoch.
func (r *Reveal) Matches(c *Commit) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if r.Epoch != c.Epoch || r.Author != c.Author {
		return ErrDigestMismatch
	}
	if !bytes.Equal(r.Digest(), c.Digest) {
		return ErrDigestMismatch
	}
	return nil
}

// Marshal encodes the reveal as bytes
func (r *Reveal) Marshal() ([]byte, error) {
	return msgpack.Marshal(r)
}

// UnmarshalReveal decodes a reveal from bytes
func UnmarshalReveal(b []byte) (*Reveal, error) {
	r := new(Reveal)
	if err := msgpack.Unmarshal(b, r); err != nil {
		return nil, err
	}
	return r, nil
}
