// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package node

import (
	"context"
	"fmt"
	"log"
	"path"

	"github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/meshsub/meshsub/archive"
	"github.com/meshsub/meshsub/chain"
	"github.com/meshsub/meshsub/core"
	"github.com/meshsub/meshsub/engine"
	"github.com/meshsub/meshsub/epoch"
	"github.com/meshsub/meshsub/heartbeat"
	"github.com/meshsub/meshsub/logger"
	"github.com/meshsub/meshsub/store"
)

type Node struct {
	config Config

	privKey   *core.PrivateKey
	peerAddrs []multiaddr.Multiaddr

	store   store.Store
	archive *archive.Archive
	clock   *epoch.Clock
	ticker  *epoch.Ticker
	tracker *heartbeat.Tracker
	engine  *engine.Engine
}

func Run(config Config) {
	node := new(Node)
	node.config = config
	node.setupLogger()
	node.readFiles()
	node.setupComponents()
	logger.I().Infow("node setup done, starting engine...",
		"peer", node.privKey.PeerID(), "genesis", node.config.EpochConfig.Genesis)
	node.tracker.Start()
	if err := node.ticker.Start(); err != nil {
		logger.I().Fatalw("start failed", "error", err)
	}
	node.engine.Start()
	select {}
}

func (node *Node) setupLogger() {
	var inst *zap.Logger
	var err error
	if node.config.Debug {
		inst, err = zap.NewDevelopment()
	} else {
		inst, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	logger.Set(inst.Sugar())
}

func (node *Node) readFiles() {
	var err error
	node.privKey, err = readNodeKey(node.config.Datadir)
	if err != nil {
		logger.I().Fatalw("read key failed", "error", err)
	}
	logger.I().Infow("read nodekey", "pubkey", node.privKey.PublicKey())

	if node.config.Local {
		return
	}
	node.peerAddrs, err = readPeers(node.config.Datadir)
	if err != nil {
		logger.I().Fatalw("read peers failed", "error", err)
	}
	logger.I().Infow("read peers", "count", len(node.peerAddrs))
}

func (node *Node) setupComponents() {
	if err := node.setupClock(); err != nil {
		logger.I().Fatalw("setup epoch clock failed", "error", err)
	}
	if err := node.setupStore(); err != nil {
		logger.I().Fatalw("setup store failed", "error", err)
	}
	if err := node.setupArchive(); err != nil {
		logger.I().Fatalw("setup archive failed", "error", err)
	}
	node.tracker = heartbeat.New(node.store, node.privKey, node.config.HeartbeatConfig)
	node.setupEngine()
	serveNodeAPI(node)
}

func (node *Node) setupClock() error {
	clock, err := epoch.NewClock(node.config.EpochConfig)
	if err != nil {
		return err
	}
	node.clock = clock
	node.ticker = epoch.NewTicker(clock, 0)
	return nil
}

func (node *Node) setupStore() error {
	policy := store.NewEpochPolicy(node.clock)
	if node.config.Local {
		node.store = store.NewMemStore().SetPolicy(policy)
		return nil
	}
	addr, _ := multiaddr.NewMultiaddr(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", node.config.Port))
	host, err := store.NewHost(node.privKey, addr)
	if err != nil {
		return fmt.Errorf("cannot create p2p host %w", err)
	}
	logger.I().Infow("setup p2p host", "port", node.config.Port)
	store.ConnectPeers(context.Background(), host, node.peerAddrs)
	gs, err := store.NewGossipStore(
		context.Background(), host, node.privKey, policy, node.config.GossipConfig)
	if err != nil {
		return fmt.Errorf("cannot join gossip store %w", err)
	}
	node.store = gs
	return nil
}

func (node *Node) setupArchive() error {
	db, err := archive.NewDB(path.Join(node.config.Datadir, "db"))
	if err != nil {
		return fmt.Errorf("cannot create db %w", err)
	}
	node.archive, err = archive.New(db, 0)
	return err
}

func (node *Node) setupEngine() {
	config := node.config.EngineConfig
	config.Agg = node.config.AggConfig
	node.engine = engine.New(&engine.Resources{
		Signer:   node.privKey,
		Store:    node.store,
		Clock:    node.clock,
		Ticker:   node.ticker,
		Liveness: node.tracker,
		Archive:  node.archive,
		Chain:    chain.LogClient{},
	}, config)
}
