// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package chain

import (
	"github.com/meshsub/meshsub/core"
	"github.com/meshsub/meshsub/logger"
)

// Client submits settled epoch scores to the reward layer.
type Client interface {
	SubmitScores(epoch uint64, scores []core.TargetScore) error
}

// LogClient records submissions to the log only. Used when the node
// runs without a reward-layer endpoint.
type LogClient struct{}

var _ Client = (*LogClient)(nil)

func (LogClient) SubmitScores(epoch uint64, scores []core.TargetScore) error {
	logger.I().Infow("submitted scores", "epoch", epoch, "targets", len(scores))
	return nil
}
