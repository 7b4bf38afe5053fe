// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package core

import (
	"errors"

	"github.com/vmihailenco/msgpack/v4"
	"golang.org/x/crypto/sha3"
)

// errors
var (
	ErrNilCommit         = errors.New("nil commit")
	ErrInvalidDigestSize = errors.New("invalid digest size")
)

// Commit binds its author to a score vector without revealing it.
// Immutable once published; superseded only by a later epoch's record.
type Commit struct {
	Epoch       uint64 `msgpack:"epoch"`
	Author      PeerID `msgpack:"author"`
	Digest      []byte `msgpack:"digest"`
	SubmittedAt int64  `msgpack:"submitted_at"`
}

// Validate checks the record shape
func (c *Commit) Validate() error {
	if c == nil {
		return ErrNilCommit
	}
	if len(c.Digest) != sha3.New256().Size() {
		return ErrInvalidDigestSize
	}
	return nil
}

// Marshal encodes the commit as bytes
func (c *Commit) Marshal() ([]byte, error) {
	return msgpack.Marshal(c)
}

// UnmarshalCommit decodes a commit from bytes
func UnmarshalCommit(b []byte) (*Commit, error) {
	c := new(Commit)
	if err := msgpack.Unmarshal(b, c); err != nil {
		return nil, err
	}
	return c, nil
}
