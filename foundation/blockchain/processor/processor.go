// Package processor implements the state transition: applying transactions
// and blocks to the world state under the validity rules of the chain.
package processor

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/statechain/foundation/blockchain/accounts"
	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Set of errors a transaction or block can be rejected with.
var (
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrInvalidNonce        = errors.New("invalid nonce")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrIntrinsicGas        = errors.New("start gas below intrinsic gas")
	ErrBlockGasLimit       = errors.New("block gas limit reached")
	ErrStateRootMismatch   = errors.New("state root mismatch")
	ErrGasUsedMismatch     = errors.New("gas used mismatch")
)

// Gas schedule.
const (
	TxGas     = 500 // Base cost of every transaction.
	TxDataGas = 5   // Cost per byte of transaction data.
)

// BlockReward is credited to the coinbase of every block: 1500 finney.
var BlockReward = new(uint256.Int).Mul(uint256.NewInt(1500), uint256.NewInt(1_000_000_000_000_000))

// =============================================================================

// Env carries the block level values a transaction is applied under.
type Env struct {
	Coinbase common.Address
	GasLimit uint64
	GasUsed  uint64
}

// NewEnv constructs the environment for applying the transactions of a
// block with the specified header.
func NewEnv(h storage.BlockHeader) *Env {
	return &Env{
		Coinbase: h.Coinbase,
		GasLimit: h.GasLimit,
	}
}

// Receipt records the outcome of an applied transaction.
type Receipt struct {
	TxHash            common.Hash
	Sender            common.Address
	Created           *common.Address
	GasUsed           uint64
	CumulativeGasUsed uint64
	PostState         common.Hash
}

// IntrinsicGas returns the gas a transaction consumes before any execution.
func IntrinsicGas(data []byte) uint64 {
	return TxGas + TxDataGas*uint64(len(data))
}

// =============================================================================

// ApplyTransaction checks the transaction against the state and, when it is
// valid, applies it. A rejected transaction leaves the state untouched.
func ApplyTransaction(st *accounts.Accounts, env *Env, tx storage.Transaction) (Receipt, error) {
	if tx.GasPrice == nil {
		tx.GasPrice = new(uint256.Int)
	}
	if tx.Value == nil {
		tx.Value = new(uint256.Int)
	}

	sender, err := tx.Sender()
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	nonce, err := st.GetNonce(sender)
	if err != nil {
		return Receipt{}, err
	}
	if tx.Nonce != nonce {
		return Receipt{}, fmt.Errorf("%w: %s: got %d, exp %d", ErrInvalidNonce, sender, tx.Nonce, nonce)
	}

	gasUsed := IntrinsicGas(tx.Data)
	if tx.StartGas < gasUsed {
		return Receipt{}, fmt.Errorf("%w: got %d, need %d", ErrIntrinsicGas, tx.StartGas, gasUsed)
	}

	if env.GasUsed+tx.StartGas > env.GasLimit {
		return Receipt{}, fmt.Errorf("%w: used %d, start gas %d, limit %d", ErrBlockGasLimit, env.GasUsed, tx.StartGas, env.GasLimit)
	}

	cost, overflow := tx.Cost()
	if overflow {
		return Receipt{}, fmt.Errorf("%w: cost overflows", ErrInsufficientBalance)
	}

	balance, err := st.GetBalance(sender)
	if err != nil {
		return Receipt{}, err
	}
	if balance.Lt(cost) {
		return Receipt{}, fmt.Errorf("%w: %s: has %s, needs %s", ErrInsufficientBalance, sender, balance.Dec(), cost.Dec())
	}

	// The transaction is valid, any failure from here on is a storage
	// failure and the state is put back.
	snapshot := st.Snapshot()

	receipt, err := transfer(st, env, tx, sender, cost, gasUsed)
	if err != nil {
		if rerr := st.RevertToSnapshot(snapshot); rerr != nil {
			return Receipt{}, fmt.Errorf("revert after %w: %w", err, rerr)
		}
		return Receipt{}, err
	}

	return receipt, nil
}

func transfer(st *accounts.Accounts, env *Env, tx storage.Transaction, sender common.Address, cost *uint256.Int, gasUsed uint64) (Receipt, error) {
	if err := st.SubBalance(sender, cost); err != nil {
		return Receipt{}, err
	}

	if err := st.IncrementNonce(sender); err != nil {
		return Receipt{}, err
	}

	var created *common.Address
	to := tx.To
	if tx.IsCreate() {
		addr := crypto.CreateAddress(sender, tx.Nonce)
		if err := st.SetCode(addr, tx.Data); err != nil {
			return Receipt{}, err
		}
		created, to = &addr, &addr
	}

	if err := st.AddBalance(*to, tx.Value); err != nil {
		return Receipt{}, err
	}

	// Refund the gas that was reserved but not used and pay the miner
	// for the gas that was used.
	refund := new(uint256.Int).Mul(tx.GasPrice, uint256.NewInt(tx.StartGas-gasUsed))
	if err := st.AddBalance(sender, refund); err != nil {
		return Receipt{}, err
	}

	fee := new(uint256.Int).Mul(tx.GasPrice, uint256.NewInt(gasUsed))
	if err := st.AddBalance(env.Coinbase, fee); err != nil {
		return Receipt{}, err
	}

	env.GasUsed += gasUsed

	receipt := Receipt{
		TxHash:            tx.Hash(),
		Sender:            sender,
		Created:           created,
		GasUsed:           gasUsed,
		CumulativeGasUsed: env.GasUsed,
		PostState:         st.Root(),
	}

	return receipt, nil
}

// ApplyReward credits the block reward to the coinbase.
func ApplyReward(st *accounts.Accounts, coinbase common.Address) error {
	return st.AddBalance(coinbase, BlockReward)
}

// ApplyBlock applies every transaction of the block in order, credits the
// reward and checks the result against the header. A block carrying any
// invalid transaction is rejected as a whole and the caller must discard st.
func ApplyBlock(st *accounts.Accounts, block storage.Block) ([]Receipt, error) {
	env := NewEnv(block.Header)

	receipts := make([]Receipt, 0, len(block.Transactions))
	for i, tx := range block.Transactions {
		receipt, err := ApplyTransaction(st, env, tx)
		if err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
		receipts = append(receipts, receipt)
	}

	if err := ApplyReward(st, block.Header.Coinbase); err != nil {
		return nil, err
	}

	if env.GasUsed != block.Header.GasUsed {
		return nil, fmt.Errorf("%w: got %d, exp %d", ErrGasUsedMismatch, env.GasUsed, block.Header.GasUsed)
	}

	if root := st.Root(); root != block.Header.StateRoot {
		return nil, fmt.Errorf("%w: got %s, exp %s", ErrStateRootMismatch, root, block.Header.StateRoot)
	}

	return receipts, nil
}
