// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package core

import (
	"github.com/vmihailenco/msgpack/v4"
)

// TargetScore is the settled consensus score of one peer for one epoch.
type TargetScore struct {
	Target PeerID `msgpack:"target" json:"target"`

	// aggregate of all valid authors' scores for the target
	Score float64 `msgpack:"score" json:"score"`

	// fraction of authors within tolerance of the aggregate
	Agreement float64 `msgpack:"agreement" json:"agreement"`

	// number of valid authors that scored the target
	Scorers int `msgpack:"scorers" json:"scorers"`
}

// EpochResult is the immutable outcome of one settled epoch.
// Targets with zero valid scores appear in NoConsensus, never as a
// numeric zero.
type EpochResult struct {
	Epoch       uint64        `msgpack:"epoch" json:"epoch"`
	Scores      []TargetScore `msgpack:"scores" json:"scores"`
	NoConsensus []PeerID      `msgpack:"no_consensus" json:"noConsensus"`
	SettledAt   int64         `msgpack:"settled_at" json:"settledAt"`
}

// Marshal encodes the result as bytes
func (res *EpochResult) Marshal() ([]byte, error) {
	return msgpack.Marshal(res)
}

// UnmarshalEpochResult decodes a result from bytes
func UnmarshalEpochResult(b []byte) (*EpochResult, error) {
	res := new(EpochResult)
	if err := msgpack.Unmarshal(b, res); err != nil {
		return nil, err
	}
	return res, nil
}
