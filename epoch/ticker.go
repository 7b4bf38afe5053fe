// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package epoch

import (
	"time"

	"github.com/meshsub/meshsub/emitter"
	"github.com/meshsub/meshsub/logger"
)

// PhaseChange is emitted on every phase boundary, and once on start
// with the phase in progress so a restarted node re-derives its state
// instead of reloading it.
type PhaseChange struct {
	Epoch uint64
	Phase Phase
}

// Ticker polls the clock and emits PhaseChange events.
type Ticker struct {
	clock    *Clock
	interval time.Duration
	emitter  *emitter.Emitter

	now    func() time.Time
	stopCh chan struct{}
}

func NewTicker(clock *Clock, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Ticker{
		clock:    clock,
		interval: interval,
		emitter:  emitter.New(),
		now:      time.Now,
	}
}

// Subscribe creates a subscription for PhaseChange events
func (t *Ticker) Subscribe(buffer int) *emitter.Subscription {
	return t.emitter.Subscribe(buffer)
}

// Start begins emitting phase changes. Starting before genesis is a
// configuration error and must not silently default to epoch zero.
func (t *Ticker) Start() error {
	if t.stopCh != nil {
		return nil
	}
	e, phase, err := t.clock.PhaseAt(t.now())
	if err != nil {
		return err
	}
	t.stopCh = make(chan struct{})
	go t.loop(e, phase)
	logger.I().Infow("started epoch ticker", "epoch", e, "phase", phase.String())
	return nil
}

func (t *Ticker) Stop() {
	if t.stopCh == nil {
		return
	}
	select {
	case <-t.stopCh:
		return
	default:
	}
	close(t.stopCh)
}

func (t *Ticker) loop(epoch uint64, phase Phase) {
	t.emitter.Emit(PhaseChange{Epoch: epoch, Phase: phase})
	for {
		select {
		case <-t.stopCh:
			return
		case <-time.After(t.interval):
		}
		e, p, err := t.clock.PhaseAt(t.now())
		if err != nil {
			logger.I().Errorw("epoch clock failed", "error", err)
			continue
		}
		if e != epoch || p != phase {
			epoch, phase = e, p
			t.emitter.Emit(PhaseChange{Epoch: e, Phase: p})
		}
	}
}
