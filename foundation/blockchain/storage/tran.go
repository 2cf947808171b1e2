package storage

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ardanlabs/statechain/foundation/blockchain/codec"
	"github.com/ardanlabs/statechain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Transaction is a value transfer signed by the sender. The sender is not
// part of the record, it is recovered from the signature.
type Transaction struct {
	Nonce    uint64
	GasPrice *uint256.Int
	StartGas uint64
	To       *common.Address `rlp:"nil"` // Nil creates a new account.
	Value    *uint256.Int
	Data     []byte
	V        *big.Int
	R        *big.Int
	S        *big.Int
}

// NewTransaction constructs an unsigned transaction.
func NewTransaction(nonce uint64, gasPrice *uint256.Int, startGas uint64, to *common.Address, value *uint256.Int, data []byte) Transaction {
	if gasPrice == nil {
		gasPrice = new(uint256.Int)
	}
	if value == nil {
		value = new(uint256.Int)
	}

	return Transaction{
		Nonce:    nonce,
		GasPrice: gasPrice,
		StartGas: startGas,
		To:       to,
		Value:    value,
		Data:     data,
	}
}

// unsignedTx is the part of a transaction covered by the signature.
type unsignedTx struct {
	Nonce    uint64
	GasPrice *uint256.Int
	StartGas uint64
	To       *common.Address `rlp:"nil"`
	Value    *uint256.Int
	Data     []byte
}

// SigHash returns the hash that is signed by the sender.
func (tx Transaction) SigHash() common.Hash {
	h, err := signature.Hash(unsignedTx{
		Nonce:    tx.Nonce,
		GasPrice: tx.GasPrice,
		StartGas: tx.StartGas,
		To:       tx.To,
		Value:    tx.Value,
		Data:     tx.Data,
	})
	if err != nil {
		return signature.ZeroHash
	}
	return h
}

// Sign uses the specified private key to sign the transaction.
func (tx Transaction) Sign(privateKey *ecdsa.PrivateKey) (Transaction, error) {
	v, r, s, err := signature.Sign(tx.SigHash(), privateKey)
	if err != nil {
		return Transaction{}, err
	}

	tx.V, tx.R, tx.S = v, r, s
	return tx, nil
}

// Sender recovers the address that signed the transaction.
func (tx Transaction) Sender() (common.Address, error) {
	return signature.FromAddress(tx.SigHash(), tx.V, tx.R, tx.S)
}

// Hash returns the unique hash for the signed transaction.
func (tx Transaction) Hash() common.Hash {
	h, err := signature.Hash(&tx)
	if err != nil {
		return signature.ZeroHash
	}
	return h
}

// IsCreate reports whether the transaction creates a new account.
func (tx Transaction) IsCreate() bool {
	return tx.To == nil
}

// Cost returns value + gas_price * start_gas, the amount the sender must hold.
func (tx Transaction) Cost() (*uint256.Int, bool) {
	gasPrice, value := new(uint256.Int), new(uint256.Int)
	if tx.GasPrice != nil {
		gasPrice = tx.GasPrice
	}
	if tx.Value != nil {
		value = tx.Value
	}

	fee, overflow := new(uint256.Int).MulOverflow(gasPrice, uint256.NewInt(tx.StartGas))
	if overflow {
		return nil, true
	}
	return new(uint256.Int).AddOverflow(fee, value)
}

// SignatureString returns the signature as a string.
func (tx Transaction) SignatureString() string {
	return signature.SignatureString(tx.V, tx.R, tx.S)
}

// Encode returns the canonical encoding of the transaction.
func (tx Transaction) Encode() ([]byte, error) {
	return codec.EncodeValue(&tx)
}

// String implements the fmt.Stringer interface for logging.
func (tx Transaction) String() string {
	from, err := tx.Sender()
	if err != nil {
		return fmt.Sprintf("unknown:%d", tx.Nonce)
	}

	return fmt.Sprintf("%s:%d", from, tx.Nonce)
}

// DecodeTransaction parses the canonical encoding of a transaction.
func DecodeTransaction(b []byte) (Transaction, error) {
	var tx Transaction
	if err := codec.DecodeValue(b, &tx); err != nil {
		return Transaction{}, err
	}

	return tx, nil
}
