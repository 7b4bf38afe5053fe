// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package core

import (
	"errors"
	"time"

	"github.com/vmihailenco/msgpack/v4"
)

// ErrNilHeartbeat is returned for a missing liveness record
var ErrNilHeartbeat = errors.New("nil heartbeat")

// Heartbeat is a node liveness entry, refreshed by its owning node
// and expiring TTLSeconds after SentAt.
type Heartbeat struct {
	Peer       PeerID `msgpack:"peer"`
	SentAt     int64  `msgpack:"sent_at"`
	TTLSeconds int64  `msgpack:"ttl"`
}

// Validate checks the record shape
func (hb *Heartbeat) Validate() error {
	if hb == nil {
		return ErrNilHeartbeat
	}
	if hb.TTLSeconds <= 0 {
		return errors.New("non-positive heartbeat ttl")
	}
	return nil
}

// ExpiresAt returns the instant the entry stops counting as live
func (hb *Heartbeat) ExpiresAt() time.Time {
	return time.Unix(hb.SentAt+hb.TTLSeconds, 0)
}

// Live reports whether the entry is unexpired at the given time
func (hb *Heartbeat) Live(at time.Time) bool {
	return at.Before(hb.ExpiresAt())
}

// Marshal encodes the heartbeat as bytes
func (hb *Heartbeat) Marshal() ([]byte, error) {
	return msgpack.Marshal(hb)
}

// UnmarshalHeartbeat decodes a heartbeat from bytes
func UnmarshalHeartbeat(b []byte) (*Heartbeat, error) {
	hb := new(Heartbeat)
	if err := msgpack.Unmarshal(b, hb); err != nil {
		return nil, err
	}
	return hb, nil
}
