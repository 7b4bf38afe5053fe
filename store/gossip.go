// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package store

import (
	"context"
	"errors"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/meshsub/meshsub/core"
	"github.com/meshsub/meshsub/logger"
)

// TopicName is the gossip topic carrying replicated records
const TopicName = "meshsub/records/1"

// errors
var (
	ErrNotOwner      = errors.New("subkey does not match record owner")
	ErrUnsignedValue = errors.New("value is not a signed record")
)

type GossipConfig struct {
	// how often locally owned live records are re-announced so late
	// joiners and lossy links converge
	RebroadcastInterval time.Duration
}

var DefaultGossipConfig = GossipConfig{
	RebroadcastInterval: 30 * time.Second,
}

// recordMsg is the wire form of one replicated entry
type recordMsg struct {
	Key       string `msgpack:"key"`
	Subkey    string `msgpack:"subkey"`
	Value     []byte `msgpack:"value"`
	StoredAt  int64  `msgpack:"stored_at"`
	ExpiresAt int64  `msgpack:"expires_at"`
}

// GossipStore replicates signed records between peers over a gossipsub
// topic. Every put is applied to the local replica first (the local
// write confirms the put; broadcast is best effort and repaired by
// rebroadcast), and every received record is ownership-checked and
// policy-checked before merging last-writer-wins.
type GossipStore struct {
	local  *MemStore
	signer *core.PrivateKey
	policy RecordPolicy
	config GossipConfig
	self   peer.ID

	topic *pubsub.Topic
	sub   *pubsub.Subscription

	stopCh chan struct{}
}

var _ Store = (*GossipStore)(nil)

func NewGossipStore(
	ctx context.Context,
	h host.Host,
	signer *core.PrivateKey,
	policy RecordPolicy,
	config GossipConfig,
) (*GossipStore, error) {
	if config.RebroadcastInterval <= 0 {
		config.RebroadcastInterval = DefaultGossipConfig.RebroadcastInterval
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, err
	}
	topic, err := ps.Join(TopicName)
	if err != nil {
		return nil, err
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return nil, err
	}
	gs := &GossipStore{
		local:  NewMemStore().SetPolicy(policy),
		signer: signer,
		policy: policy,
		config: config,
		self:   h.ID(),
		topic:  topic,
		sub:    sub,
		stopCh: make(chan struct{}),
	}
	go gs.receiveLoop(ctx)
	go gs.rebroadcastLoop(ctx)
	return gs, nil
}

func (gs *GossipStore) Stop() {
	select {
	case <-gs.stopCh:
		return
	default:
	}
	close(gs.stopCh)
	gs.sub.Cancel()
}

// Put applies the record locally and broadcasts it. Only records owned
// by this node may be written: the subkey must be this node's peer id
// and the value must be an envelope signed by this node.
func (gs *GossipStore) Put(ctx context.Context, key, subkey string, value []byte, expiresAt time.Time) error {
	if subkey != string(gs.signer.PeerID()) {
		return ErrNotOwner
	}
	if err := checkOwnership(value, subkey); err != nil {
		return err
	}
	if err := gs.local.Put(ctx, key, subkey, value, expiresAt); err != nil {
		return err
	}
	entry, _, err := gs.local.GetSubkey(ctx, key, subkey)
	if err != nil {
		return err
	}
	gs.broadcast(ctx, key, subkey, entry)
	return nil
}

func (gs *GossipStore) Get(ctx context.Context, key string) (map[string]Entry, error) {
	return gs.local.Get(ctx, key)
}

func (gs *GossipStore) GetSubkey(ctx context.Context, key, subkey string) (Entry, bool, error) {
	return gs.local.GetSubkey(ctx, key, subkey)
}

func (gs *GossipStore) broadcast(ctx context.Context, key, subkey string, entry Entry) {
	msg := &recordMsg{
		Key:       key,
		Subkey:    subkey,
		Value:     entry.Value,
		StoredAt:  entry.StoredAt.UnixMilli(),
		ExpiresAt: entry.ExpiresAt.UnixMilli(),
	}
	b, err := msgpack.Marshal(msg)
	if err != nil {
		logger.I().Errorw("marshal record failed", "error", err)
		return
	}
	if err := gs.topic.Publish(ctx, b); err != nil {
		// best effort; the rebroadcast loop repairs missed records
		logger.I().Warnw("publish record failed", "key", key, "error", err)
	}
}

func (gs *GossipStore) receiveLoop(ctx context.Context) {
	for {
		msg, err := gs.sub.Next(ctx)
		if err != nil {
			select {
			case <-gs.stopCh:
			default:
				logger.I().Warnw("gossip subscription closed", "error", err)
			}
			return
		}
		if msg.ReceivedFrom == gs.self {
			continue
		}
		gs.applyRemote(msg.Data)
	}
}

func (gs *GossipStore) applyRemote(data []byte) {
	msg := new(recordMsg)
	if err := msgpack.Unmarshal(data, msg); err != nil {
		logger.I().Debugw("drop malformed record", "error", err)
		return
	}
	entry := Entry{
		Value:     msg.Value,
		StoredAt:  time.UnixMilli(msg.StoredAt),
		ExpiresAt: time.UnixMilli(msg.ExpiresAt),
	}
	now := gs.local.now()
	if entry.Expired(now) {
		return
	}
	// duplicates and stale rebroadcasts are dropped before the policy
	// sees them, so re-announcing does not consume store limits
	if prev, ok, _ := gs.local.GetSubkey(context.Background(), msg.Key, msg.Subkey); ok &&
		!prev.StoredAt.Before(entry.StoredAt) {
		return
	}
	if err := checkOwnership(msg.Value, msg.Subkey); err != nil {
		logger.I().Debugw("drop foreign-owned record",
			"key", msg.Key, "subkey", msg.Subkey, "error", err)
		return
	}
	if gs.policy != nil {
		if err := gs.policy.Allow(Record{
			Key: msg.Key, Subkey: msg.Subkey, Entry: entry,
		}, now); err != nil {
			return
		}
	}
	gs.local.Merge(msg.Key, msg.Subkey, entry)
}

// checkOwnership verifies the signed envelope and that the claimed
// owner is the subkey the record is stored under
func checkOwnership(value []byte, subkey string) error {
	_, owner, err := core.OpenRecord(value)
	if err != nil {
		return ErrUnsignedValue
	}
	if string(owner.PeerID()) != subkey {
		return ErrNotOwner
	}
	return nil
}

func (gs *GossipStore) rebroadcastLoop(ctx context.Context) {
	for {
		select {
		case <-gs.stopCh:
			return
		case <-time.After(gs.config.RebroadcastInterval):
		}
		gs.local.PurgeExpired()
		owned := gs.local.OwnedLive(string(gs.signer.PeerID()))
		for key, entry := range owned {
			gs.broadcast(ctx, key, string(gs.signer.PeerID()), entry)
		}
	}
}
