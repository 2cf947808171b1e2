package state

import (
	"github.com/ardanlabs/statechain/foundation/blockchain/accounts"
	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
	"github.com/ethereum/go-ethereum/common"
)

// QueryLatest represents to query the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// =============================================================================

// QueryAccount returns the account as of the head of the chain.
func (s *State) QueryAccount(addr common.Address) (accounts.Account, error) {
	st, err := s.chain.StateAt(s.chain.Head().Hash())
	if err != nil {
		return accounts.Account{}, err
	}

	return st.Account(addr)
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryBlockByHash returns any known block, canonical or not.
func (s *State) QueryBlockByHash(hash common.Hash) (storage.Block, error) {
	return s.chain.Get(hash)
}

// QueryBlocksByNumber returns the canonical blocks in the range.
func (s *State) QueryBlocksByNumber(from uint64, to uint64) ([]storage.Block, error) {
	latest := s.chain.Head().Number()

	if from == QueryLatest {
		from = latest
		to = from
	}
	if to == QueryLatest || to > latest {
		to = latest
	}

	var out []storage.Block
	for i := from; i <= to; i++ {
		block, err := s.chain.Canonical(i)
		if err != nil {
			return nil, err
		}
		out = append(out, block)
	}

	return out, nil
}

// QueryAccounts returns every account of the state at the head of the chain.
func (s *State) QueryAccounts() (map[common.Address]accounts.Account, error) {
	st, err := s.chain.StateAt(s.chain.Head().Hash())
	if err != nil {
		return nil, err
	}

	return st.Dump()
}
