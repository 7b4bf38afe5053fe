// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package epoch

import (
	"errors"
	"fmt"
	"time"
)

// Phase of an epoch. Phases are non-overlapping and cover the full
// epoch duration: Commit, then Reveal, then Settled.
type Phase uint8

const (
	Commit Phase = iota
	Reveal
	Settled
)

func (p Phase) String() string {
	switch p {
	case Commit:
		return "commit"
	case Reveal:
		return "reveal"
	case Settled:
		return "settled"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// errors
var (
	ErrBeforeGenesis  = errors.New("time is before genesis")
	ErrInvalidWindows = errors.New("phase windows must be positive")
)

type Config struct {
	Genesis time.Time

	CommitWindow time.Duration
	RevealWindow time.Duration
	SettleWindow time.Duration

	// tolerance applied when checking whether a record arrived
	// within a phase window, to absorb small clock skew across peers
	Grace time.Duration
}

var DefaultConfig = Config{
	CommitWindow: 60 * time.Second,
	RevealWindow: 60 * time.Second,
	SettleWindow: 60 * time.Second,
	Grace:        2 * time.Second,
}

// EpochLength is the exact sum of the three phase windows
func (cfg Config) EpochLength() time.Duration {
	return cfg.CommitWindow + cfg.RevealWindow + cfg.SettleWindow
}

// Clock derives the current epoch index and phase from wall-clock
// time. It is a pure function of time and config, so every correctly
// clocked peer computes the same boundaries without coordination.
type Clock struct {
	cfg Config
}

func NewClock(cfg Config) (*Clock, error) {
	if cfg.CommitWindow <= 0 || cfg.RevealWindow <= 0 || cfg.SettleWindow <= 0 {
		return nil, ErrInvalidWindows
	}
	if cfg.Genesis.IsZero() {
		return nil, errors.New("genesis time not set")
	}
	return &Clock{cfg: cfg}, nil
}

func (c *Clock) Config() Config {
	return c.cfg
}

// EpochAt returns the epoch index containing the given time
func (c *Clock) EpochAt(now time.Time) (uint64, error) {
	if now.Before(c.cfg.Genesis) {
		return 0, ErrBeforeGenesis
	}
	return uint64(now.Sub(c.cfg.Genesis) / c.cfg.EpochLength()), nil
}

// PhaseAt returns the epoch index and phase containing the given time
func (c *Clock) PhaseAt(now time.Time) (uint64, Phase, error) {
	e, err := c.EpochAt(now)
	if err != nil {
		return 0, 0, err
	}
	offset := now.Sub(c.StartOf(e))
	switch {
	case offset < c.cfg.CommitWindow:
		return e, Commit, nil
	case offset < c.cfg.CommitWindow+c.cfg.RevealWindow:
		return e, Reveal, nil
	default:
		return e, Settled, nil
	}
}

// StartOf returns the start time of the given epoch
func (c *Clock) StartOf(epoch uint64) time.Time {
	return c.cfg.Genesis.Add(time.Duration(epoch) * c.cfg.EpochLength())
}

// Deadline returns the end of the given phase window
func (c *Clock) Deadline(epoch uint64, phase Phase) time.Time {
	start := c.StartOf(epoch)
	switch phase {
	case Commit:
		return start.Add(c.cfg.CommitWindow)
	case Reveal:
		return start.Add(c.cfg.CommitWindow + c.cfg.RevealWindow)
	default:
		return start.Add(c.cfg.EpochLength())
	}
}

// PhaseStart returns the start of the given phase window
func (c *Clock) PhaseStart(epoch uint64, phase Phase) time.Time {
	start := c.StartOf(epoch)
	switch phase {
	case Commit:
		return start
	case Reveal:
		return start.Add(c.cfg.CommitWindow)
	default:
		return start.Add(c.cfg.CommitWindow + c.cfg.RevealWindow)
	}
}

// InWindow reports whether a record claiming the given submission time
// arrived within the phase window, with grace tolerance applied at the
// deadline only. Phase entry is never relaxed.
func (c *Clock) InWindow(epoch uint64, phase Phase, at time.Time) bool {
	if at.Before(c.PhaseStart(epoch, phase)) {
		return false
	}
	return at.Before(c.Deadline(epoch, phase).Add(c.cfg.Grace))
}
