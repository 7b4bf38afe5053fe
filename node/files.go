// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package node

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/multiformats/go-multiaddr"

	"github.com/meshsub/meshsub/core"
)

type Peer struct {
	Addr string
}

const (
	NodekeyFile = "nodekey"
	PeersFile   = "peers.json"
)

func readNodeKey(datadir string) (*core.PrivateKey, error) {
	b, err := os.ReadFile(path.Join(datadir, NodekeyFile))
	if err != nil {
		return nil, fmt.Errorf("cannot read %s, %w", NodekeyFile, err)
	}
	return core.NewPrivateKey(b)
}

func readPeers(datadir string) ([]multiaddr.Multiaddr, error) {
	f, err := os.Open(path.Join(datadir, PeersFile))
	if err != nil {
		return nil, fmt.Errorf("cannot read %s, %w", PeersFile, err)
	}
	defer f.Close()

	var raws []Peer
	if err := json.NewDecoder(f).Decode(&raws); err != nil {
		return nil, fmt.Errorf("cannot parse %s, %w", PeersFile, err)
	}

	addrs := make([]multiaddr.Multiaddr, len(raws))
	for i, r := range raws {
		addr, err := multiaddr.NewMultiaddr(r.Addr)
		if err != nil {
			return nil, fmt.Errorf("invalid multiaddr %w", err)
		}
		addrs[i] = addr
	}
	return addrs, nil
}
