// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package core

import (
	"crypto/ed25519"
	"errors"
	"io"
)

// errors
var (
	ErrInvalidKeySize = errors.New("invalid key size")
	ErrInvalidSig     = errors.New("invalid signature")
)

// PeerID identifies a subnet node. It is the base64 form of the
// node's ed25519 public key.
type PeerID string

func (id PeerID) String() string {
	return string(id)
}

// PublicKey type
type PublicKey struct {
	key ed25519.PublicKey
	id  PeerID
}

// NewPublicKey creates PublicKey from bytes
func NewPublicKey(b []byte) (*PublicKey, error) {
	if len(b) != ed25519.PublicKeySize {
		return nil, ErrInvalidKeySize
	}
	return &PublicKey{
		key: b,
		id:  PeerID(toBase64(b)),
	}, nil
}

// Equal checks whether pub and x has the same value
func (pub *PublicKey) Equal(x *PublicKey) bool {
	return pub.key.Equal(x.key)
}

// Bytes return raw bytes
func (pub *PublicKey) Bytes() []byte {
	return pub.key
}

// PeerID returns the peer id derived from the key
func (pub *PublicKey) PeerID() PeerID {
	return pub.id
}

func (pub *PublicKey) String() string {
	return string(pub.id)
}

// PrivateKey type
type PrivateKey struct {
	key    ed25519.PrivateKey
	pubKey *PublicKey
}

// NewPrivateKey creates PrivateKey from bytes
func NewPrivateKey(b []byte) (*PrivateKey, error) {
	if len(b) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeySize
	}
	priv := &PrivateKey{
		key: b,
	}
	priv.pubKey, _ = NewPublicKey(priv.key.Public().(ed25519.PublicKey))
	return priv, nil
}

// GenerateKey generates a new private key using the given source of randomness
func GenerateKey(rnd io.Reader) *PrivateKey {
	_, key, err := ed25519.GenerateKey(rnd)
	if err != nil {
		panic(err)
	}
	priv, _ := NewPrivateKey(key)
	return priv
}

// Bytes return raw bytes
func (priv *PrivateKey) Bytes() []byte {
	return priv.key
}

// PublicKey returns corresponding public key
func (priv *PrivateKey) PublicKey() *PublicKey {
	return priv.pubKey
}

// PeerID returns the peer id of the corresponding public key
func (priv *PrivateKey) PeerID() PeerID {
	return priv.pubKey.id
}

// Sign signs the message
func (priv *PrivateKey) Sign(msg []byte) *Signature {
	return &Signature{
		value:  ed25519.Sign(priv.key, msg),
		pubKey: priv.pubKey,
	}
}

// Signature type
type Signature struct {
	value  []byte
	pubKey *PublicKey
}

// NewSignature creates Signature from raw value and the signer public key
func NewSignature(value, pubKey []byte) (*Signature, error) {
	if len(value) != ed25519.SignatureSize {
		return nil, ErrInvalidSig
	}
	pub, err := NewPublicKey(pubKey)
	if err != nil {
		return nil, err
	}
	return &Signature{value: value, pubKey: pub}, nil
}

// Verify verifies the signature against the message
func (sig *Signature) Verify(msg []byte) bool {
	return ed25519.Verify(sig.pubKey.key, msg, sig.value)
}

// Value returns the raw signature bytes
func (sig *Signature) Value() []byte {
	return sig.value
}

// PublicKey returns the signer public key
func (sig *Signature) PublicKey() *PublicKey {
	return sig.pubKey
}
