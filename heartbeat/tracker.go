// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package heartbeat

import (
	"context"
	"time"

	"github.com/meshsub/meshsub/core"
	"github.com/meshsub/meshsub/logger"
	"github.com/meshsub/meshsub/store"
)

type Config struct {
	// liveness entry lifetime
	TTL time.Duration

	// refresh period, must be strictly shorter than TTL so a missed
	// refresh cycle does not make the node flap offline
	Interval time.Duration
}

var DefaultConfig = Config{
	TTL:      3 * time.Minute,
	Interval: 90 * time.Second,
}

// Tracker refreshes this node's liveness entry in the replicated store
// and reads peers' entries to answer eligibility checks.
type Tracker struct {
	store  store.Store
	signer *core.PrivateKey
	config Config

	now    func() time.Time
	stopCh chan struct{}
}

func New(s store.Store, signer *core.PrivateKey, config Config) *Tracker {
	if config.TTL <= 0 {
		config.TTL = DefaultConfig.TTL
	}
	if config.Interval <= 0 || config.Interval >= config.TTL {
		config.Interval = config.TTL / 2
	}
	return &Tracker{
		store:  s,
		signer: signer,
		config: config,
		now:    time.Now,
	}
}

func (t *Tracker) Start() {
	if t.stopCh != nil {
		return
	}
	t.stopCh = make(chan struct{})
	go t.refreshLoop()
	logger.I().Infow("started heartbeat tracker",
		"ttl", t.config.TTL, "interval", t.config.Interval)
}

func (t *Tracker) Stop() {
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

func (t *Tracker) refreshLoop() {
	for {
		if err := t.Refresh(context.Background()); err != nil {
			// degraded liveness this round; retried on the next tick
			logger.I().Warnw("heartbeat refresh failed", "error", err)
		}
		select {
		case <-t.stopCh:
			return
		case <-time.After(t.config.Interval):
		}
	}
}

// Refresh publishes a fresh liveness entry for this node
func (t *Tracker) Refresh(ctx context.Context) error {
	now := t.now()
	hb := &core.Heartbeat{
		Peer:       t.signer.PeerID(),
		SentAt:     now.Unix(),
		TTLSeconds: int64(t.config.TTL / time.Second),
	}
	payload, err := hb.Marshal()
	if err != nil {
		return err
	}
	value, err := core.SignRecord(t.signer, payload)
	if err != nil {
		return err
	}
	return t.store.Put(ctx, store.NodesKey, string(hb.Peer), value, now.Add(t.config.TTL))
}

// LivePeers returns the verified liveness entries unexpired at the
// given time
func (t *Tracker) LivePeers(ctx context.Context, at time.Time) ([]*core.Heartbeat, error) {
	entries, err := t.store.Get(ctx, store.NodesKey)
	if err != nil {
		return nil, err
	}
	ret := make([]*core.Heartbeat, 0, len(entries))
	for subkey, entry := range entries {
		hb, err := openHeartbeat(subkey, entry.Value)
		if err != nil {
			logger.I().Debugw("drop invalid liveness entry", "subkey", subkey, "error", err)
			continue
		}
		if !hb.Live(at) {
			continue
		}
		ret = append(ret, hb)
	}
	return ret, nil
}

// IsEligible reports whether the peer has a live entry at the given
// time. Liveness gates both who may author scores and who may be
// scored.
func (t *Tracker) IsEligible(ctx context.Context, peer core.PeerID, at time.Time) bool {
	entry, ok, err := t.store.GetSubkey(ctx, store.NodesKey, string(peer))
	if err != nil || !ok {
		return false
	}
	hb, err := openHeartbeat(string(peer), entry.Value)
	if err != nil {
		return false
	}
	return hb.Live(at)
}

func openHeartbeat(subkey string, value []byte) (*core.Heartbeat, error) {
	payload, owner, err := core.OpenRecord(value)
	if err != nil {
		return nil, err
	}
	hb, err := core.UnmarshalHeartbeat(payload)
	if err != nil {
		return nil, err
	}
	if err := hb.Validate(); err != nil {
		return nil, err
	}
	if string(owner.PeerID()) != subkey || hb.Peer != owner.PeerID() {
		return nil, core.ErrInvalidRecordSig
	}
	return hb, nil
}
