package spin

import (
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/onchaincommerce/minibet/game"
)

const defaultCacheSize = 256

// ReceiptCache keeps decoded outcomes by transaction hash.
type ReceiptCache struct {
	outcomes *lru.Cache[common.Hash, game.SpinOutcome]
}

// NewReceiptCache creates a cache holding up to size outcomes.
func NewReceiptCache(size int) *ReceiptCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, _ := lru.New[common.Hash, game.SpinOutcome](size)
	return &ReceiptCache{outcomes: c}
}

// Get returns the cached outcome of hash.
func (c *ReceiptCache) Get(hash common.Hash) (game.SpinOutcome, bool) {
	if c == nil {
		return game.SpinOutcome{}, false
	}
	return c.outcomes.Get(hash)
}

// Add stores an outcome under its transaction hash.
func (c *ReceiptCache) Add(o game.SpinOutcome) {
	if c == nil {
		return
	}
	c.outcomes.Add(o.TxHash, o)
}

// Len returns the number of cached outcomes.
func (c *ReceiptCache) Len() int {
	if c == nil {
		return 0
	}
	return c.outcomes.Len()
}
