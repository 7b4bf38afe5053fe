// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/meshsub/meshsub/core"
)

// Method selects the aggregation function
type Method string

const (
	Mean   Method = "mean"
	Median Method = "median" // robust to outlier scorers
)

type Config struct {
	Method Method

	// absolute deviation from the aggregate within which a score
	// counts as agreeing
	Tolerance float64
}

var DefaultConfig = Config{
	Method:    Mean,
	Tolerance: 0.1,
}

// Aggregate reduces the valid reveals of one settled epoch to a
// consensus score per target. Inputs are the commitment-matched
// reveals from eligible authors and the set of eligible targets; the
// result is a pure function of them, independent of input order. A
// target with zero valid scores is reported under NoConsensus, which
// is distinct from a score of zero.
func Aggregate(
	epoch uint64,
	reveals []*core.Reveal,
	targets []core.PeerID,
	config Config,
	settledAt time.Time,
) *core.EpochResult {
	if config.Method == "" {
		config.Method = DefaultConfig.Method
	}
	// zero is a valid exact-agreement setting; only negatives default
	if config.Tolerance < 0 {
		config.Tolerance = DefaultConfig.Tolerance
	}

	eligible := make(map[core.PeerID]bool, len(targets))
	for _, target := range targets {
		eligible[target] = true
	}

	collected := make(map[core.PeerID][]float64)
	for _, reveal := range reveals {
		for target, score := range reveal.Scores {
			if !eligible[target] {
				continue
			}
			collected[target] = append(collected[target], score)
		}
	}

	result := &core.EpochResult{
		Epoch:     epoch,
		SettledAt: settledAt.Unix(),
	}
	for _, target := range targets {
		scores, ok := collected[target]
		if !ok {
			result.NoConsensus = append(result.NoConsensus, target)
			continue
		}
		aggregate := reduce(scores, config.Method)
		result.Scores = append(result.Scores, core.TargetScore{
			Target:    target,
			Score:     aggregate,
			Agreement: agreement(scores, aggregate, config.Tolerance),
			Scorers:   len(scores),
		})
	}
	sort.Slice(result.Scores, func(i, j int) bool {
		return result.Scores[i].Target < result.Scores[j].Target
	})
	sort.Slice(result.NoConsensus, func(i, j int) bool {
		return result.NoConsensus[i] < result.NoConsensus[j]
	})
	return result
}

func reduce(scores []float64, method Method) float64 {
	var val float64
	var err error
	switch method {
	case Median:
		val, err = stats.Median(scores)
	default:
		val, err = stats.Mean(scores)
	}
	if err != nil {
		// unreachable: scores is never empty here
		return 0
	}
	return val
}

// agreement is the fraction of scores within tolerance of the
// aggregate
func agreement(scores []float64, aggregate, tolerance float64) float64 {
	within := 0
	for _, score := range scores {
		if math.Abs(score-aggregate) <= tolerance {
			within++
		}
	}
	return float64(within) / float64(len(scores))
}
