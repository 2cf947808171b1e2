package storage

import (
	"fmt"

	"github.com/ardanlabs/statechain/foundation/blockchain/codec"
	"github.com/ardanlabs/statechain/foundation/blockchain/signature"
	"github.com/ardanlabs/statechain/foundation/blockchain/trie"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// EmptyUnclesHash is the uncles hash of a block without uncles.
var EmptyUnclesHash = crypto.Keccak256Hash([]byte{0xc0})

// =============================================================================

// BlockHeader represents common information required for each block. The
// field order is the order of the encoding.
type BlockHeader struct {
	ParentHash  common.Hash    // Hash of the previous block in the chain.
	UnclesHash  common.Hash    // Hash of the encoded uncle headers.
	Coinbase    common.Address // The address receiving the block reward.
	StateRoot   common.Hash    // Root of the world state after the block.
	TxListRoot  common.Hash    // Root of the trie of transactions.
	Difficulty  *uint256.Int   // How difficult the seal must be.
	Number      uint64         // Block number in the chain.
	MinGasPrice *uint256.Int   // Lowest gas price the miner accepted.
	GasLimit    uint64         // Most gas the transactions may reserve.
	GasUsed     uint64         // Gas consumed by the transactions.
	Timestamp   uint64         // Time the block was mined.
	ExtraData   []byte         // Free form data.
	Nonce       []byte         // Value identified to solve the seal.
}

// Hash returns the unique hash for the header and so the block.
func (h BlockHeader) Hash() common.Hash {
	hash, err := signature.Hash(&h)
	if err != nil {
		return signature.ZeroHash
	}
	return hash
}

// sealFields lists every header field except the nonce.
type sealFields struct {
	ParentHash  common.Hash
	UnclesHash  common.Hash
	Coinbase    common.Address
	StateRoot   common.Hash
	TxListRoot  common.Hash
	Difficulty  *uint256.Int
	Number      uint64
	MinGasPrice *uint256.Int
	GasLimit    uint64
	GasUsed     uint64
	Timestamp   uint64
	ExtraData   []byte
}

// SealHash returns the hash of the header without the nonce, which is the
// input to the proof of work.
func (h BlockHeader) SealHash() common.Hash {
	hash, err := signature.Hash(&sealFields{
		ParentHash:  h.ParentHash,
		UnclesHash:  h.UnclesHash,
		Coinbase:    h.Coinbase,
		StateRoot:   h.StateRoot,
		TxListRoot:  h.TxListRoot,
		Difficulty:  h.Difficulty,
		Number:      h.Number,
		MinGasPrice: h.MinGasPrice,
		GasLimit:    h.GasLimit,
		GasUsed:     h.GasUsed,
		Timestamp:   h.Timestamp,
		ExtraData:   h.ExtraData,
	})
	if err != nil {
		return signature.ZeroHash
	}
	return hash
}

// =============================================================================

// Block represents a group of transactions batched together.
type Block struct {
	Header       BlockHeader
	Transactions []Transaction
	Uncles       []BlockHeader
}

// Hash returns the unique hash for the Block.
func (b Block) Hash() common.Hash {
	return b.Header.Hash()
}

// Number returns the block number.
func (b Block) Number() uint64 {
	return b.Header.Number
}

// ParentHash returns the hash of the previous block.
func (b Block) ParentHash() common.Hash {
	return b.Header.ParentHash
}

// Encode returns the wire form of the block: [header, [tx...], [uncle...]].
func (b Block) Encode() ([]byte, error) {
	if b.Transactions == nil {
		b.Transactions = []Transaction{}
	}
	if b.Uncles == nil {
		b.Uncles = []BlockHeader{}
	}

	return codec.EncodeValue(&b)
}

// DecodeBlock parses the wire form of a block.
func DecodeBlock(data []byte) (Block, error) {
	var b Block
	if err := codec.DecodeValue(data, &b); err != nil {
		return Block{}, fmt.Errorf("decode block: %w", err)
	}

	return b, nil
}

// =============================================================================

// TxListRoot returns the root of the trie mapping the encoded index of each
// transaction to the encoded transaction. The nodes are written to db.
func TxListRoot(db trie.Database, txs []Transaction) (common.Hash, error) {
	tr, err := trie.New(db, trie.BlankRoot)
	if err != nil {
		return common.Hash{}, err
	}

	for i, tx := range txs {
		enc, err := tx.Encode()
		if err != nil {
			return common.Hash{}, fmt.Errorf("tx %d: %w", i, err)
		}

		if _, err := tr.Update(codec.EncodeUint(uint64(i)), enc); err != nil {
			return common.Hash{}, fmt.Errorf("tx %d: %w", i, err)
		}
	}

	return tr.RootHash(), nil
}

// UnclesHash returns the hash of the encoded list of uncle headers.
func UnclesHash(uncles []BlockHeader) common.Hash {
	if uncles == nil {
		uncles = []BlockHeader{}
	}

	hash, err := signature.Hash(uncles)
	if err != nil {
		return signature.ZeroHash
	}
	return hash
}
