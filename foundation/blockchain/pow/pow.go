// Package pow implements the proof of work seal for block headers and the
// rule that sets the difficulty of each block.
package pow

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"

	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ErrExhausted is returned when a search runs out of attempts.
var ErrExhausted = errors.New("proof of work attempts exhausted")

// NonceLength is the size of a header nonce.
const NonceLength = 32

var two256 = new(big.Int).Lsh(big.NewInt(1), 256)

// =============================================================================

// Check reports whether the header nonce satisfies the difficulty:
// keccak(seal_hash ++ nonce) read as a big endian number must not exceed
// 2^256 / difficulty.
func Check(h storage.BlockHeader) bool {
	if h.Difficulty == nil || h.Difficulty.IsZero() || len(h.Nonce) == 0 {
		return false
	}

	return solved(h.SealHash(), h.Nonce, target(h.Difficulty))
}

// Search looks for a nonce that seals the header. It gives up after
// maxAttempts tries or when the context is cancelled. Zero attempts means
// no limit.
func Search(ctx context.Context, h storage.BlockHeader, maxAttempts uint64, ev func(v string, args ...any)) ([]byte, error) {
	ev("pow: Search: MINING: started: blk[%d]", h.Number)
	defer ev("pow: Search: MINING: completed: blk[%d]", h.Number)

	if h.Difficulty == nil || h.Difficulty.IsZero() {
		return nil, errors.New("difficulty must be greater than zero")
	}

	sealHash := h.SealHash()
	tgt := target(h.Difficulty)

	// Choose a random starting point for the nonce. After this, the nonce
	// will be incremented by 1 until a solution is found.
	nBig, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, NonceLength)
	nBig.FillBytes(nonce)

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("pow: Search: MINING: attempts[%d]", attempts)
		}

		if maxAttempts > 0 && attempts > maxAttempts {
			return nil, ErrExhausted
		}

		// Check for cancellation every so often, hashing is cheap.
		if attempts%1024 == 0 && ctx.Err() != nil {
			ev("pow: Search: MINING: CANCELLED")
			return nil, ctx.Err()
		}

		if solved(sealHash, nonce, tgt) {
			if ctx.Err() != nil {
				ev("pow: Search: MINING: CANCELLED")
				return nil, ctx.Err()
			}

			ev("pow: Search: MINING: SOLVED: blk[%d]: attempts[%d]", h.Number, attempts)
			return nonce, nil
		}

		increment(nonce)
	}
}

// =============================================================================

// DifficultyFunc returns the difficulty a child of parent with the
// specified timestamp must declare.
type DifficultyFunc func(parent storage.BlockHeader, timestamp uint64) *uint256.Int

// Difficulty adjustment parameters.
const (
	BoundDivisor  = 1024
	DurationLimit = 42
)

// CalcDifficulty moves the difficulty by 1/1024 of the parent difficulty:
// up when the block came quickly after its parent and down otherwise.
func CalcDifficulty(parent storage.BlockHeader, timestamp uint64) *uint256.Int {
	offset := new(uint256.Int).Div(parent.Difficulty, uint256.NewInt(BoundDivisor))

	if timestamp < parent.Timestamp+DurationLimit {
		return new(uint256.Int).Add(parent.Difficulty, offset)
	}

	return new(uint256.Int).Sub(parent.Difficulty, offset)
}

// Fixed returns a policy where every block keeps the same difficulty.
func Fixed(difficulty uint64) DifficultyFunc {
	return func(storage.BlockHeader, uint64) *uint256.Int {
		return uint256.NewInt(difficulty)
	}
}

// =============================================================================

func target(difficulty *uint256.Int) *big.Int {
	return new(big.Int).Div(two256, difficulty.ToBig())
}

func solved(sealHash common.Hash, nonce []byte, tgt *big.Int) bool {
	v := new(big.Int).SetBytes(crypto.Keccak256(sealHash.Bytes(), nonce))
	return v.Cmp(tgt) <= 0
}

// increment adds one to the big endian nonce.
func increment(nonce []byte) {
	for i := len(nonce) - 1; i >= 0; i-- {
		nonce[i]++
		if nonce[i] != 0 {
			return
		}
	}
}
