// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package store

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"github.com/meshsub/meshsub/core"
	"github.com/meshsub/meshsub/logger"
)

const reconnectInterval = 5 * time.Second

// NewHost creates the libp2p host the gossip store runs on, with the
// node key as its identity
func NewHost(privKey *core.PrivateKey, listenAddr multiaddr.Multiaddr) (host.Host, error) {
	priv, err := crypto.UnmarshalEd25519PrivateKey(privKey.Bytes())
	if err != nil {
		return nil, err
	}
	return libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrs(listenAddr),
	)
}

// ConnectPeers dials the configured bootstrap peers and keeps retrying
// dropped ones in the background
func ConnectPeers(ctx context.Context, h host.Host, addrs []multiaddr.Multiaddr) {
	infos := make([]*peer.AddrInfo, 0, len(addrs))
	for _, addr := range addrs {
		info, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			logger.I().Warnw("invalid peer address", "addr", addr.String(), "error", err)
			continue
		}
		infos = append(infos, info)
	}
	go reconnectLoop(ctx, h, infos)
}

func reconnectLoop(ctx context.Context, h host.Host, infos []*peer.AddrInfo) {
	for {
		for _, info := range infos {
			if h.Network().Connectedness(info.ID) == network.Connected {
				continue
			}
			if err := h.Connect(ctx, *info); err != nil {
				logger.I().Debugw("connect peer failed", "peer", info.ID.String(), "error", err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
		}
	}
}
