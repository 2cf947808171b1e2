// Package miner authors new blocks: it collects the transactions that apply
// cleanly on top of a parent block and seals the result with proof of work.
package miner

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/statechain/foundation/blockchain/accounts"
	"github.com/ardanlabs/statechain/foundation/blockchain/pow"
	"github.com/ardanlabs/statechain/foundation/blockchain/processor"
	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
	"github.com/ardanlabs/statechain/foundation/blockchain/trie"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Set of errors returned while authoring a block.
var (
	ErrGasPriceTooLow = errors.New("gas price below the block minimum")
	ErrSealed         = errors.New("block already sealed")
)

// Config represents the values a block is authored with.
type Config struct {
	DB          trie.Database
	Parent      storage.Block
	Coinbase    common.Address
	Timestamp   uint64
	Difficulty  pow.DifficultyFunc
	MinGasPrice *uint256.Int
	ExtraData   []byte
	EvHandler   func(v string, args ...any)
}

// Miner builds one block on top of a parent.
type Miner struct {
	db        trie.Database
	evHandler func(v string, args ...any)
	header    storage.BlockHeader
	state     *accounts.Accounts
	env       *processor.Env
	txs       []storage.Transaction
	receipts  []processor.Receipt
	sealed    bool
}

// New constructs a miner for a child of the configured parent.
func New(cfg Config) (*Miner, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	difficulty := cfg.Difficulty
	if difficulty == nil {
		difficulty = pow.CalcDifficulty
	}

	minGasPrice := cfg.MinGasPrice
	if minGasPrice == nil {
		minGasPrice = new(uint256.Int)
	}

	parent := cfg.Parent.Header

	// Time must move forward between a parent and its child.
	timestamp := cfg.Timestamp
	if timestamp <= parent.Timestamp {
		timestamp = parent.Timestamp + 1
	}

	st, err := accounts.New(cfg.DB, parent.StateRoot)
	if err != nil {
		return nil, fmt.Errorf("parent state: %w", err)
	}

	header := storage.BlockHeader{
		ParentHash:  cfg.Parent.Hash(),
		Coinbase:    cfg.Coinbase,
		Difficulty:  difficulty(parent, timestamp),
		Number:      parent.Number + 1,
		MinGasPrice: minGasPrice,
		GasLimit:    parent.GasLimit,
		Timestamp:   timestamp,
		ExtraData:   cfg.ExtraData,
	}

	m := Miner{
		db:        cfg.DB,
		evHandler: ev,
		header:    header,
		state:     st,
		env:       processor.NewEnv(header),
	}

	return &m, nil
}

// AddTransaction applies the transaction on the block being built. A
// transaction that fails is not part of the block and the state is left as
// it was.
func (m *Miner) AddTransaction(tx storage.Transaction) error {
	if m.sealed {
		return ErrSealed
	}

	if tx.GasPrice == nil || tx.GasPrice.Lt(m.header.MinGasPrice) {
		return fmt.Errorf("%w: got %v, min %s", ErrGasPriceTooLow, tx.GasPrice, m.header.MinGasPrice)
	}

	receipt, err := processor.ApplyTransaction(m.state, m.env, tx)
	if err != nil {
		m.evHandler("miner: AddTransaction: excluded: tx[%s]: %s", tx.Hash(), err)
		return err
	}

	m.txs = append(m.txs, tx)
	m.receipts = append(m.receipts, receipt)

	return nil
}

// Transactions returns the transactions included so far.
func (m *Miner) Transactions() []storage.Transaction {
	return m.txs
}

// Receipts returns the receipts of the included transactions.
func (m *Miner) Receipts() []processor.Receipt {
	return m.receipts
}

// Header returns the header of the block being built.
func (m *Miner) Header() storage.BlockHeader {
	return m.header
}

// Mine credits the block reward, finalizes the header and searches for a
// seal. The search stops when ctx is cancelled or after maxAttempts
// nonces, zero meaning no limit.
func (m *Miner) Mine(ctx context.Context, maxAttempts uint64) (storage.Block, error) {
	if m.sealed {
		return storage.Block{}, ErrSealed
	}
	m.sealed = true

	m.evHandler("miner: Mine: blk[%d]: txs[%d]", m.header.Number, len(m.txs))

	if err := processor.ApplyReward(m.state, m.header.Coinbase); err != nil {
		return storage.Block{}, err
	}

	txRoot, err := storage.TxListRoot(m.db, m.txs)
	if err != nil {
		return storage.Block{}, err
	}

	h := m.header
	h.StateRoot = m.state.Root()
	h.TxListRoot = txRoot
	h.UnclesHash = storage.UnclesHash(nil)
	h.GasUsed = m.env.GasUsed

	nonce, err := pow.Search(ctx, h, maxAttempts, m.evHandler)
	if err != nil {
		return storage.Block{}, err
	}
	h.Nonce = nonce

	block := storage.Block{
		Header:       h,
		Transactions: m.txs,
	}

	return block, nil
}
