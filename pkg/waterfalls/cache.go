package waterfalls

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/lru"
)

// headerCache keeps recently fetched block headers. A nil cache is valid
// and never hits.
type headerCache struct {
	kv lru.KVCache
}

func newHeaderCache(size uint) *headerCache {
	if size == 0 {
		return nil
	}
	return &headerCache{kv: lru.NewKVCache(size)}
}

func (c *headerCache) get(hash chainhash.Hash) (*wire.BlockHeader, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.kv.Lookup(hash)
	if !ok {
		return nil, false
	}
	header := *v.(*wire.BlockHeader)
	return &header, true
}

// put stores header under hash if it really is the header of that block.
func (c *headerCache) put(hash chainhash.Hash, header *wire.BlockHeader) {
	if c == nil || header.BlockHash() != hash {
		return
	}
	stored := *header
	c.kv.Add(hash, &stored)
}
