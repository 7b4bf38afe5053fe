// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package core

import (
	"errors"

	"github.com/vmihailenco/msgpack/v4"
)

// errors
var (
	ErrNilRecord        = errors.New("nil signed record")
	ErrInvalidRecordSig = errors.New("invalid record signature")
)

// SignedRecord is the envelope for every value written to the
// replicated store. Readers verify the signature and check that the
// owner matches the subkey the record was stored under, so no peer
// can overwrite another peer's record.
type SignedRecord struct {
	Payload []byte `msgpack:"payload"`
	Owner   []byte `msgpack:"owner"`
	Sig     []byte `msgpack:"sig"`
}

// SignRecord wraps a payload in a signed envelope
func SignRecord(signer *PrivateKey, payload []byte) ([]byte, error) {
	rec := &SignedRecord{
		Payload: payload,
		Owner:   signer.PublicKey().Bytes(),
		Sig:     signer.Sign(payload).Value(),
	}
	return msgpack.Marshal(rec)
}

// OpenRecord verifies a signed envelope and returns the payload with
// the owner's public key
func OpenRecord(b []byte) ([]byte, *PublicKey, error) {
	rec := new(SignedRecord)
	if err := msgpack.Unmarshal(b, rec); err != nil {
		return nil, nil, err
	}
	sig, err := NewSignature(rec.Sig, rec.Owner)
	if err != nil {
		return nil, nil, err
	}
	if !sig.Verify(rec.Payload) {
		return nil, nil, ErrInvalidRecordSig
	}
	return rec.Payload, sig.PublicKey(), nil
}
