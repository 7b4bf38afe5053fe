// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package engine

import (
	"context"

	"github.com/meshsub/meshsub/core"
)

// Scorer produces this node's score vector for an epoch. Application
// deployments plug in their own measurement here; the engine only
// requires that scores stay within [0, 1].
type Scorer interface {
	Score(ctx context.Context, epoch uint64, targets []core.PeerID) (core.ScoreVector, error)
}

// StaticScorer assigns the same score to every target. Useful for
// bootstrapping a network before a real measurement exists.
type StaticScorer struct {
	Value float64
}

var _ Scorer = StaticScorer{}

func (s StaticScorer) Score(ctx context.Context, epoch uint64, targets []core.PeerID) (core.ScoreVector, error) {
	sv := make(core.ScoreVector, len(targets))
	for _, target := range targets {
		sv[target] = s.Value
	}
	return sv, nil
}
