package dex

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"fushumaDex/internal/model"
)

// TokenCache caches token metadata by address.
type TokenCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenCache() *TokenCache {
	return &TokenCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}
