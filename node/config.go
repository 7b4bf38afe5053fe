// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package node

import (
	"github.com/meshsub/meshsub/aggregate"
	"github.com/meshsub/meshsub/engine"
	"github.com/meshsub/meshsub/epoch"
	"github.com/meshsub/meshsub/heartbeat"
	"github.com/meshsub/meshsub/store"
)

type Config struct {
	Debug   bool
	Datadir string
	Port    int
	APIPort int

	// Local runs the node against an in-process store only, without
	// joining the gossip network. Useful for single-machine trials.
	Local bool

	EpochConfig     epoch.Config
	HeartbeatConfig heartbeat.Config
	GossipConfig    store.GossipConfig
	EngineConfig    engine.Config
	AggConfig       aggregate.Config
}

var DefaultConfig = Config{
	Port:            15150,
	APIPort:         9040,
	EpochConfig:     epoch.DefaultConfig,
	HeartbeatConfig: heartbeat.DefaultConfig,
	GossipConfig:    store.DefaultGossipConfig,
	EngineConfig:    engine.DefaultConfig,
	AggConfig:       aggregate.DefaultConfig,
}
