// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package core

import (
	"errors"
	"math"
	"sort"
)

// errors
var (
	ErrEmptyScoreVector = errors.New("empty score vector")
	ErrScoreOutOfRange  = errors.New("score out of range")
)

// ScoreVector maps target peers to the author's judgment of their
// recent work. Scores are bounded to [0, 1].
type ScoreVector map[PeerID]float64

// Validate checks the vector shape and score bounds
func (sv ScoreVector) Validate() error {
	if len(sv) == 0 {
		return ErrEmptyScoreVector
	}
	for _, score := range sv {
		// NaN slips through plain bounds comparisons and would poison
		// every aggregate it reaches
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return ErrScoreOutOfRange
		}
		if score < 0 || score > 1 {
			return ErrScoreOutOfRange
		}
	}
	return nil
}

// Targets returns the scored peers in deterministic order
func (sv ScoreVector) Targets() []PeerID {
	targets := make([]PeerID, 0, len(sv))
	for target := range sv {
		targets = append(targets, target)
	}
	sort.Slice(targets, func(i, j int) bool {
		return targets[i] < targets[j]
	})
	return targets
}
