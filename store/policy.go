// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/meshsub/meshsub/epoch"
	"github.com/meshsub/meshsub/logger"
)

// errors
var (
	ErrUnknownKey      = errors.New("unrecognized record key")
	ErrOutsideWindow   = errors.New("record outside its phase window")
	ErrExpirationCap   = errors.New("record expiration beyond cap")
	ErrStoreLimit      = errors.New("per-peer store limit exceeded")
	ErrWrongEpochKey   = errors.New("record key names a different epoch")
	ErrMalformedrecord = errors.New("malformed record key")
)

// Record is what a policy sees for one write
type Record struct {
	Key    string
	Subkey string
	Entry  Entry
}

// RecordPolicy validates every write, local or gossiped. Rejections
// are silent drops for the writer's peers: never fatal, logged only.
type RecordPolicy interface {
	Allow(r Record, now time.Time) error
}

const (
	keyClassNode   = "node"
	keyClassCommit = "commit"
	keyClassReveal = "reveal"

	// epochs of per-peer write tracking kept before cleanup
	maxEpochHistory = 5
)

// EpochPolicy enforces the commit-reveal schema on the store itself:
// recognized keys only, phase-windowed writes, capped expirations and
// per-peer store limits. Peers that bypass it locally only desync
// themselves; honest readers re-validate reveals anyway.
type EpochPolicy struct {
	clock *epoch.Clock

	// writes per epoch, key class and subkey
	mtx    sync.Mutex
	counts map[uint64]map[string]map[string]int

	// per-epoch write limits per key class
	limits map[string]int
}

var _ RecordPolicy = (*EpochPolicy)(nil)

func NewEpochPolicy(clock *epoch.Clock) *EpochPolicy {
	return &EpochPolicy{
		clock:  clock,
		counts: make(map[uint64]map[string]map[string]int),
		limits: map[string]int{
			keyClassNode:   100,
			keyClassCommit: 1,
			keyClassReveal: 1,
		},
	}
}

func (p *EpochPolicy) Allow(r Record, now time.Time) error {
	currentEpoch, _, err := p.clock.PhaseAt(now)
	if err != nil {
		return err
	}
	p.cleanupOldEpochs(currentEpoch)

	class, err := p.check(r, currentEpoch, now)
	if err != nil {
		logger.I().Debugw("record rejected",
			"key", r.Key, "subkey", r.Subkey, "error", err)
		return err
	}
	if err := p.recordWrite(currentEpoch, class, r.Subkey); err != nil {
		logger.I().Debugw("record rejected",
			"key", r.Key, "subkey", r.Subkey, "error", err)
		return err
	}
	return nil
}

func (p *EpochPolicy) check(r Record, currentEpoch uint64, now time.Time) (string, error) {
	cfg := p.clock.Config()
	if r.Key == NodesKey {
		// heartbeats may not outlive 1.1 epochs
		cap := now.Add(cfg.EpochLength() + cfg.EpochLength()/10)
		if r.Entry.ExpiresAt.After(cap) {
			return "", ErrExpirationCap
		}
		return keyClassNode, nil
	}

	keyEpoch, class, err := parseEpochKey(r.Key)
	if err != nil {
		return "", err
	}
	if keyEpoch != currentEpoch {
		return "", ErrWrongEpochKey
	}
	// commits and reveals may not outlive 5 epochs
	if r.Entry.ExpiresAt.After(now.Add(5 * cfg.EpochLength())) {
		return "", ErrExpirationCap
	}

	var phase epoch.Phase
	switch class {
	case keyClassCommit:
		phase = epoch.Commit
	case keyClassReveal:
		phase = epoch.Reveal
	}
	if !p.clock.InWindow(keyEpoch, phase, now) {
		return "", ErrOutsideWindow
	}
	return class, nil
}

func parseEpochKey(key string) (uint64, string, error) {
	var class string
	switch {
	case strings.HasPrefix(key, "commit_epoch_"):
		class = keyClassCommit
	case strings.HasPrefix(key, "reveal_epoch_"):
		class = keyClassReveal
	default:
		return 0, "", ErrUnknownKey
	}
	var keyEpoch uint64
	format := class + "_epoch_%d"
	if n, err := fmt.Sscanf(key, format, &keyEpoch); n != 1 || err != nil {
		return 0, "", ErrMalformedrecord
	}
	// Sscanf tolerates trailing junk ("commit_epoch_5xyz" scans as 5);
	// only keys that round-trip exactly are recognized
	var canonical string
	switch class {
	case keyClassCommit:
		canonical = CommitKey(keyEpoch)
	case keyClassReveal:
		canonical = RevealKey(keyEpoch)
	}
	if key != canonical {
		return 0, "", ErrMalformedrecord
	}
	return keyEpoch, class, nil
}

func (p *EpochPolicy) recordWrite(currentEpoch uint64, class, subkey string) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	classes, ok := p.counts[currentEpoch]
	if !ok {
		classes = make(map[string]map[string]int)
		p.counts[currentEpoch] = classes
	}
	writers, ok := classes[class]
	if !ok {
		writers = make(map[string]int)
		classes[class] = writers
	}
	if writers[subkey] >= p.limits[class] {
		return ErrStoreLimit
	}
	writers[subkey]++
	return nil
}

func (p *EpochPolicy) cleanupOldEpochs(currentEpoch uint64) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	for e := range p.counts {
		if e+maxEpochHistory < currentEpoch {
			delete(p.counts, e)
		}
	}
}
