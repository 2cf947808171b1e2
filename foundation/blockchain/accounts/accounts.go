// Package accounts maintains account balances and other account information
// in the world-state trie.
package accounts

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/statechain/foundation/blockchain/codec"
	"github.com/ardanlabs/statechain/foundation/blockchain/trie"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// EmptyCodeHash is the hash of an account with no code.
var EmptyCodeHash = crypto.Keccak256Hash(nil)

// Set of errors returned when a balance change does not fit.
var (
	ErrBalanceUnderflow = errors.New("balance underflow")
	ErrBalanceOverflow  = errors.New("balance overflow")
)

// Account represents the record stored for an address.
type Account struct {
	Balance  *uint256.Int
	Nonce    uint64
	Root     common.Hash
	CodeHash common.Hash
}

// newAccount returns the record of an address that has never been written.
func newAccount() Account {
	return Account{
		Balance:  new(uint256.Int),
		Root:     trie.BlankRoot,
		CodeHash: EmptyCodeHash,
	}
}

// =============================================================================

// Accounts manages the world state at one root.
type Accounts struct {
	db   trie.Database
	trie *trie.Trie
	mu   sync.RWMutex
}

// New opens the world state at the specified root.
func New(db trie.Database, root common.Hash) (*Accounts, error) {
	tr, err := trie.New(db, root)
	if err != nil {
		return nil, fmt.Errorf("open state %s: %w", root, err)
	}

	return &Accounts{db: db, trie: tr}, nil
}

// Root returns the hash committing to every account.
func (act *Accounts) Root() common.Hash {
	act.mu.RLock()
	defer act.mu.RUnlock()

	return act.trie.RootHash()
}

// Copy returns an independent view of the same state.
func (act *Accounts) Copy() *Accounts {
	act.mu.RLock()
	defer act.mu.RUnlock()

	return &Accounts{db: act.db, trie: act.trie.Copy()}
}

// Snapshot returns a token that can be used to return to the current state.
func (act *Accounts) Snapshot() common.Hash {
	return act.Root()
}

// RevertToSnapshot moves the state back to a root returned by Snapshot.
func (act *Accounts) RevertToSnapshot(root common.Hash) error {
	tr, err := trie.New(act.db, root)
	if err != nil {
		return err
	}

	act.mu.Lock()
	defer act.mu.Unlock()

	act.trie = tr
	return nil
}

// =============================================================================

// Account returns the record for the address. An address that was never
// written has a zero balance and nonce.
func (act *Accounts) Account(addr common.Address) (Account, error) {
	act.mu.RLock()
	defer act.mu.RUnlock()

	return act.account(addr)
}

// Exists reports whether the address has a record in the state.
func (act *Accounts) Exists(addr common.Address) (bool, error) {
	act.mu.RLock()
	defer act.mu.RUnlock()

	enc, err := act.trie.Get(addr.Bytes())
	if err != nil {
		return false, err
	}

	return len(enc) > 0, nil
}

// GetBalance returns the balance for the address.
func (act *Accounts) GetBalance(addr common.Address) (*uint256.Int, error) {
	a, err := act.Account(addr)
	if err != nil {
		return nil, err
	}

	return a.Balance, nil
}

// SetBalance replaces the balance for the address.
func (act *Accounts) SetBalance(addr common.Address, balance *uint256.Int) error {
	return act.update(addr, func(a *Account) error {
		a.Balance = new(uint256.Int).Set(balance)
		return nil
	})
}

// AddBalance credits the address.
func (act *Accounts) AddBalance(addr common.Address, amount *uint256.Int) error {
	return act.update(addr, func(a *Account) error {
		sum, overflow := new(uint256.Int).AddOverflow(a.Balance, amount)
		if overflow {
			return fmt.Errorf("%w: %s: has %s, adds %s", ErrBalanceOverflow, addr, a.Balance.Dec(), amount.Dec())
		}
		a.Balance = sum
		return nil
	})
}

// SubBalance debits the address, failing if the balance is too small.
func (act *Accounts) SubBalance(addr common.Address, amount *uint256.Int) error {
	return act.update(addr, func(a *Account) error {
		if a.Balance.Lt(amount) {
			return fmt.Errorf("%w: %s: has %s, needs %s", ErrBalanceUnderflow, addr, a.Balance.Dec(), amount.Dec())
		}
		a.Balance = new(uint256.Int).Sub(a.Balance, amount)
		return nil
	})
}

// GetNonce returns the nonce for the address.
func (act *Accounts) GetNonce(addr common.Address) (uint64, error) {
	a, err := act.Account(addr)
	if err != nil {
		return 0, err
	}

	return a.Nonce, nil
}

// SetNonce replaces the nonce for the address.
func (act *Accounts) SetNonce(addr common.Address, nonce uint64) error {
	return act.update(addr, func(a *Account) error {
		a.Nonce = nonce
		return nil
	})
}

// IncrementNonce adds one to the nonce for the address.
func (act *Accounts) IncrementNonce(addr common.Address) error {
	return act.update(addr, func(a *Account) error {
		a.Nonce++
		return nil
	})
}

// GetCode returns the code stored for the address.
func (act *Accounts) GetCode(addr common.Address) ([]byte, error) {
	a, err := act.Account(addr)
	if err != nil {
		return nil, err
	}

	if a.CodeHash == EmptyCodeHash {
		return nil, nil
	}

	return act.db.Get(a.CodeHash.Bytes())
}

// SetCode stores code in the database under its hash and records the hash
// in the account.
func (act *Accounts) SetCode(addr common.Address, code []byte) error {
	hash := crypto.Keccak256Hash(code)
	if len(code) > 0 {
		act.db.Put(hash.Bytes(), code)
	}

	return act.update(addr, func(a *Account) error {
		a.CodeHash = hash
		return nil
	})
}

// GetStorage returns the value stored in a slot of the account storage.
func (act *Accounts) GetStorage(addr common.Address, slot common.Hash) (*uint256.Int, error) {
	a, err := act.Account(addr)
	if err != nil {
		return nil, err
	}

	st, err := trie.New(act.db, a.Root)
	if err != nil {
		return nil, err
	}

	enc, err := st.Get(slot.Bytes())
	if err != nil {
		return nil, err
	}

	value := new(uint256.Int)
	if len(enc) == 0 {
		return value, nil
	}

	if err := codec.DecodeValue(enc, value); err != nil {
		return nil, fmt.Errorf("storage slot %s of %s: %w", slot, addr, err)
	}

	return value, nil
}

// SetStorage writes a slot of the account storage. A zero value clears it.
func (act *Accounts) SetStorage(addr common.Address, slot common.Hash, value *uint256.Int) error {
	return act.update(addr, func(a *Account) error {
		st, err := trie.New(act.db, a.Root)
		if err != nil {
			return err
		}

		var enc []byte
		if !value.IsZero() {
			if enc, err = codec.EncodeValue(value); err != nil {
				return err
			}
		}

		root, err := st.Update(slot.Bytes(), enc)
		if err != nil {
			return err
		}

		a.Root = root
		return nil
	})
}

// Dump returns every account in the state.
func (act *Accounts) Dump() (map[common.Address]Account, error) {
	act.mu.RLock()
	defer act.mu.RUnlock()

	dump := make(map[common.Address]Account)
	fn := func(key []byte, value []byte) error {
		a, err := decodeAccount(value)
		if err != nil {
			return err
		}
		dump[common.BytesToAddress(key)] = a
		return nil
	}

	if err := act.trie.Iterate(fn); err != nil {
		return nil, err
	}

	return dump, nil
}

// =============================================================================

func (act *Accounts) account(addr common.Address) (Account, error) {
	enc, err := act.trie.Get(addr.Bytes())
	if err != nil {
		return Account{}, fmt.Errorf("account %s: %w", addr, err)
	}

	if len(enc) == 0 {
		return newAccount(), nil
	}

	return decodeAccount(enc)
}

// update reads the record, applies fn and writes the record back.
func (act *Accounts) update(addr common.Address, fn func(a *Account) error) error {
	act.mu.Lock()
	defer act.mu.Unlock()

	a, err := act.account(addr)
	if err != nil {
		return err
	}

	if err := fn(&a); err != nil {
		return err
	}

	enc, err := codec.EncodeValue(&a)
	if err != nil {
		return err
	}

	if _, err := act.trie.Update(addr.Bytes(), enc); err != nil {
		return fmt.Errorf("account %s: %w", addr, err)
	}

	return nil
}

func decodeAccount(enc []byte) (Account, error) {
	var a Account
	if err := codec.DecodeValue(enc, &a); err != nil {
		return Account{}, fmt.Errorf("account record: %w", err)
	}

	return a, nil
}
