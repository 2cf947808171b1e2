package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/statechain/foundation/blockchain/chain"
	"github.com/ardanlabs/statechain/foundation/blockchain/miner"
	"github.com/ardanlabs/statechain/foundation/blockchain/processor"
	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
)

// ErrNoTransactions is returned when a block is requested to be created
// and there are not enough transactions.
var ErrNoTransactions = errors.New("no transactions in mempool")

// =============================================================================

// MineNewBlock attempts to create a new block with a proper seal that can
// become the next block in the chain.
func (s *State) MineNewBlock(ctx context.Context) (storage.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: check mempool count")

	// Are there enough transactions in the pool.
	if s.mempool.Count() == 0 {
		return storage.Block{}, ErrNoTransactions
	}

	parent := s.chain.Head()

	m, err := miner.New(miner.Config{
		DB:         s.chain.DB(),
		Parent:     parent,
		Coinbase:   s.minerAddress,
		Timestamp:  uint64(time.Now().Unix()),
		Difficulty: s.chain.Difficulty,
		EvHandler:  s.evHandler,
	})
	if err != nil {
		return storage.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: apply transactions")

	// Pick the best transactions from the mempool. The ones that can't be
	// applied stay out of the block and the stale ones leave the pool.
	for _, tx := range s.mempool.PickBest(int(s.genesis.TransPerBlock)) {
		err := m.AddTransaction(tx)
		switch {
		case err == nil:
		case s.isStale(parent, tx, err):
			s.evHandler("state: MineNewBlock: MINING: drop tx[%s]: %s", tx.Hash(), err)
			s.mempool.Delete(tx)
		default:
			s.evHandler("state: MineNewBlock: MINING: skip tx[%s]: %s", tx.Hash(), err)
		}
	}

	if len(m.Transactions()) == 0 {
		return storage.Block{}, ErrNoTransactions
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW")

	// Attempt to seal the block by solving the POW puzzle. This can be cancelled.
	block, err := m.Mine(ctx, s.maxAttempts)
	if err != nil {
		return storage.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return storage.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: add block to chain")

	if err := s.addBlock(block); err != nil {
		return storage.Block{}, err
	}

	return block, nil
}

// ProcessProposedBlock takes a block received from a peer, validates it and
// if that passes, adds the block to the local blockchain.
func (s *State) ProcessProposedBlock(block storage.Block) error {
	s.evHandler("state: ProcessProposedBlock: started: prevBlk[%s]: newBlk[%s]: numTrans[%d]", block.ParentHash(), block.Hash(), len(block.Transactions))
	defer s.evHandler("state: ProcessProposedBlock: completed: newBlk[%s]", block.Hash())

	// If the runMiningOperation function is being executed it needs to stop
	// immediately. The G executing runMiningOperation will not return from the
	// function until done is called. That allows this function to complete
	// its state changes before a new mining operation takes place.
	done := s.signalCancelMining()
	defer func() {
		s.evHandler("state: ProcessProposedBlock: signal runMiningOperation to terminate")
		done()
		s.signalStartMining()
	}()

	return s.addBlock(block)
}

// ImportChain takes a batch of encoded blocks, newest first, and adds the
// ones that validate.
func (s *State) ImportChain(encoded [][]byte) []chain.Result {
	s.evHandler("state: ImportChain: started: blocks[%d]", len(encoded))
	defer s.evHandler("state: ImportChain: completed")

	done := s.signalCancelMining()
	defer func() {
		done()
		s.signalStartMining()
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	results := s.chain.ReceiveChain(encoded)

	for _, res := range results {
		if res.Status != chain.Accepted {
			continue
		}

		block, err := s.chain.Get(res.Hash)
		if err != nil {
			continue
		}
		s.removeTransactions(block)
		s.blockEvent(block)
	}

	return results
}

// =============================================================================

// addBlock adds the block to the chain and removes its transactions from
// the mempool.
func (s *State) addBlock(block storage.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.chain.AddBlock(block)
	switch {
	case err != nil:
		return err
	case status == chain.Pending:
		return fmt.Errorf("block %s: %w", block.Hash(), chain.ErrUnknownParent)
	}

	s.removeTransactions(block)
	s.blockEvent(block)

	return nil
}

// isStale reports whether a transaction that failed to apply can never be
// mined: its signature is bad or its nonce was already used.
func (s *State) isStale(parent storage.Block, tx storage.Transaction, err error) bool {
	if errors.Is(err, processor.ErrInvalidSignature) {
		return true
	}

	if !errors.Is(err, processor.ErrInvalidNonce) {
		return false
	}

	from, err := tx.Sender()
	if err != nil {
		return true
	}

	st, err := s.chain.StateAt(parent.Hash())
	if err != nil {
		return false
	}

	nonce, err := st.GetNonce(from)
	if err != nil {
		return false
	}

	return tx.Nonce < nonce
}

// removeTransactions takes the block transactions out of the mempool.
func (s *State) removeTransactions(block storage.Block) {
	for _, tx := range block.Transactions {
		if err := s.mempool.Delete(tx); err != nil {
			s.evHandler("state: removeTransactions: tx[%s]: WARNING: %s", tx.Hash(), err)
		}
	}
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block storage.Block) {
	head := s.chain.Head()
	s.evHandler(`state: block: {"hash":%q,"number":%d,"parent":%q,"trans":%d,"head":%q}`, block.Hash(), block.Number(), block.ParentHash(), len(block.Transactions), head.Hash())
}
