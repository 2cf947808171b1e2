// Package mempool maintains the pool of transactions waiting to be mined.
package mempool

import (
	"fmt"
	"sync"

	"github.com/ardanlabs/statechain/foundation/blockchain/mempool/selector"
	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
	"github.com/ethereum/go-ethereum/common"
)

// Mempool represents a cache of transactions organized by sender:nonce.
type Mempool struct {
	pool     map[string]entry
	mu       sync.RWMutex
	selectFn selector.Func
}

// entry keeps the recovered sender next to the transaction.
type entry struct {
	from common.Address
	tx   storage.Transaction
}

// New constructs a new mempool using the default sort strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(selector.StrategyTip)
}

// NewWithStrategy constructs a new mempool with specified sort strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[string]entry),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds or replaces a transaction from the mempool. A transaction
// with the same sender and nonce as one in the pool replaces it.
func (mp *Mempool) Upsert(tx storage.Transaction) (int, error) {
	from, err := tx.Sender()
	if err != nil {
		return 0, err
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool[mapKey(from, tx.Nonce)] = entry{from: from, tx: tx}

	return len(mp.pool), nil
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(tx storage.Transaction) error {
	from, err := tx.Sender()
	if err != nil {
		return err
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.pool, mapKey(from, tx.Nonce))

	return nil
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]entry)
}

// Copy returns every transaction in the pool in no particular order.
func (mp *Mempool) Copy() []storage.Transaction {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	txs := make([]storage.Transaction, 0, len(mp.pool))
	for _, e := range mp.pool {
		txs = append(txs, e.tx)
	}
	return txs
}

// PickBest uses the configured sort strategy to return the next set
// of transactions for the next block. Pass -1 for all of them.
func (mp *Mempool) PickBest(howMany int) []storage.Transaction {

	// Group the transactions by sender.
	m := make(map[common.Address][]storage.Transaction)
	mp.mu.RLock()
	{
		if howMany == -1 {
			howMany = len(mp.pool)
		}

		for _, e := range mp.pool {
			m[e.from] = append(m[e.from], e.tx)
		}
	}
	mp.mu.RUnlock()

	return mp.selectFn(m, howMany)
}

// =============================================================================

// mapKey is used to generate the map key.
func mapKey(from common.Address, nonce uint64) string {
	return fmt.Sprintf("%s:%d", from, nonce)
}
