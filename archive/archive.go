// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package archive

import (
	"errors"

	"github.com/dgraph-io/badger/v3"
	lru "github.com/hashicorp/golang-lru"

	"github.com/meshsub/meshsub/core"
	"github.com/meshsub/meshsub/util"
)

// data collection prefixes
const (
	_                byte = iota
	colResultByEpoch      // settled epoch result by epoch index
	colLastEpoch          // latest settled epoch index
)

// ErrNotFound is returned for epochs with no archived result
var ErrNotFound = errors.New("epoch result not found")

const defaultCacheSize = 16

// Archive persists settled epoch results so the read API can serve
// the last N epochs across restarts. Results are immutable per epoch:
// a second put for an archived epoch is a no-op.
type Archive struct {
	db    *badger.DB
	cache *lru.Cache
}

func New(db *badger.DB, cacheSize int) (*Archive, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Archive{db: db, cache: cache}, nil
}

// NewDB opens the badger database at the given directory
func NewDB(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	return badger.Open(opts)
}

// Put archives a settled result
func (a *Archive) Put(res *core.EpochResult) error {
	if a.hasEpoch(res.Epoch) {
		return nil
	}
	b, err := res.Marshal()
	if err != nil {
		return err
	}
	err = a.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(resultKey(res.Epoch), b); err != nil {
			return err
		}
		last, err := a.lastEpochTx(txn)
		if err == nil && last >= res.Epoch {
			return nil
		}
		return txn.Set([]byte{colLastEpoch}, util.Uint64ToBytes(res.Epoch))
	})
	if err != nil {
		return err
	}
	a.cache.Add(res.Epoch, res)
	return nil
}

// Get returns the archived result for the given epoch
func (a *Archive) Get(epoch uint64) (*core.EpochResult, error) {
	if res, ok := a.cache.Get(epoch); ok {
		return res.(*core.EpochResult), nil
	}
	var res *core.EpochResult
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(resultKey(epoch))
		if err != nil {
			return ErrNotFound
		}
		return item.Value(func(val []byte) error {
			res, err = core.UnmarshalEpochResult(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	a.cache.Add(epoch, res)
	return res, nil
}

// LastEpoch returns the latest archived epoch index
func (a *Archive) LastEpoch() (uint64, error) {
	var last uint64
	err := a.db.View(func(txn *badger.Txn) error {
		var err error
		last, err = a.lastEpochTx(txn)
		return err
	})
	return last, err
}

// Last returns up to n most recent results, newest first
func (a *Archive) Last(n int) ([]*core.EpochResult, error) {
	last, err := a.LastEpoch()
	if err != nil {
		return nil, err
	}
	ret := make([]*core.EpochResult, 0, n)
	for i := 0; i < n; i++ {
		epoch := last - uint64(i)
		res, err := a.Get(epoch)
		if err == nil {
			ret = append(ret, res)
		}
		if epoch == 0 {
			break
		}
	}
	return ret, nil
}

func (a *Archive) hasEpoch(epoch uint64) bool {
	if a.cache.Contains(epoch) {
		return true
	}
	err := a.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(resultKey(epoch))
		return err
	})
	return err == nil
}

func (a *Archive) lastEpochTx(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get([]byte{colLastEpoch})
	if err != nil {
		return 0, ErrNotFound
	}
	var last uint64
	err = item.Value(func(val []byte) error {
		last = util.ByteOrder.Uint64(val)
		return nil
	})
	return last, err
}

func resultKey(epoch uint64) []byte {
	return util.ConcatBytes([]byte{colResultByEpoch}, util.Uint64ToBytes(epoch))
}
