package state

import (
	"fmt"

	"github.com/ardanlabs/statechain/foundation/blockchain/processor"
	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
)

// SubmitTransaction accepts a signed transaction for inclusion in a future
// block.
func (s *State) SubmitTransaction(tx storage.Transaction) error {
	if err := s.validateTransaction(tx); err != nil {
		return err
	}

	if _, err := s.mempool.Upsert(tx); err != nil {
		return err
	}

	s.signalStartMining()

	return nil
}

// =============================================================================

// validateTransaction takes the signed transaction and validates it has
// a proper signature, a nonce that has not been used yet and a sender that
// can pay for it at the current head.
func (s *State) validateTransaction(tx storage.Transaction) error {
	from, err := tx.Sender()
	if err != nil {
		return fmt.Errorf("%w: %w", processor.ErrInvalidSignature, err)
	}

	if tx.GasPrice == nil || tx.Value == nil {
		return fmt.Errorf("transaction requires a gas price and a value")
	}

	if tx.StartGas < processor.IntrinsicGas(tx.Data) {
		return fmt.Errorf("%w: got %d, need %d", processor.ErrIntrinsicGas, tx.StartGas, processor.IntrinsicGas(tx.Data))
	}

	st, err := s.chain.StateAt(s.chain.Head().Hash())
	if err != nil {
		return err
	}

	nonce, err := st.GetNonce(from)
	if err != nil {
		return err
	}

	if tx.Nonce < nonce {
		return fmt.Errorf("%w: %s: got %d, next %d", processor.ErrInvalidNonce, from, tx.Nonce, nonce)
	}

	cost, overflow := tx.Cost()
	if overflow {
		return fmt.Errorf("%w: %s: cost overflows", processor.ErrInsufficientBalance, from)
	}

	balance, err := st.GetBalance(from)
	if err != nil {
		return err
	}

	if balance.Lt(cost) {
		return fmt.Errorf("%w: %s: has %s, needs %s", processor.ErrInsufficientBalance, from, balance.Dec(), cost.Dec())
	}

	return nil
}
