package state

import (
	"github.com/ardanlabs/statechain/foundation/blockchain/genesis"
	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveGenesisBlock returns the first block of the chain.
func (s *State) RetrieveGenesisBlock() storage.Block {
	return s.chain.Genesis()
}

// RetrieveLatestBlock returns a copy the current latest block.
func (s *State) RetrieveLatestBlock() storage.Block {
	return s.chain.Head()
}

// RetrieveTotalDifficulty returns the total difficulty of the block.
func (s *State) RetrieveTotalDifficulty(hash common.Hash) (*uint256.Int, error) {
	return s.chain.TotalDifficulty(hash)
}

// RetrieveMempool returns a copy of the mempool in selection order.
func (s *State) RetrieveMempool() []storage.Transaction {
	return s.mempool.PickBest(-1)
}

// RetrieveMinerAddress returns the address mining rewards are paid to.
func (s *State) RetrieveMinerAddress() common.Address {
	return s.minerAddress
}
