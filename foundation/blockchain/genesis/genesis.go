// Package genesis maintains access to the genesis file and builds the first
// block of the chain from it.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ardanlabs/statechain/foundation/blockchain/accounts"
	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
	"github.com/ardanlabs/statechain/foundation/blockchain/trie"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Fixed genesis parameters.
const (
	Difficulty      = 1 << 22
	QuickDifficulty = 1 << 16
	GasLimit        = 1_000_000
)

// Nonce is the nonce of every genesis block.
var Nonce = crypto.Keccak256([]byte{42})

// Genesis represents the genesis file.
type Genesis struct {
	TransPerBlock uint16            `json:"trans_per_block"` // The maximum number of transactions that can be in a block.
	Difficulty    uint64            `json:"difficulty"`      // Difficulty of the genesis block.
	GasLimit      uint64            `json:"gas_limit"`       // Gas limit of the genesis block.
	Balances      map[string]string `json:"balances"`        // Starting balances in wei as decimal strings.
}

// Default returns the genesis with the fixed parameters and no balances.
func Default() Genesis {
	return Genesis{
		TransPerBlock: 100,
		Difficulty:    Difficulty,
		GasLimit:      GasLimit,
		Balances:      map[string]string{},
	}
}

// Quick returns a genesis with a low difficulty for local chains and tests.
func Quick(balances map[string]string) Genesis {
	g := Default()
	g.Difficulty = QuickDifficulty
	g.Balances = balances
	return g
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	genesis := Default()
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("genesis %s: %w", path, err)
	}

	return genesis, nil
}

// Alloc parses the starting balances.
func (g Genesis) Alloc() (map[common.Address]*uint256.Int, error) {
	alloc := make(map[common.Address]*uint256.Int, len(g.Balances))

	for addr, balance := range g.Balances {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("genesis balance: invalid address %q", addr)
		}

		v, err := uint256.FromDecimal(balance)
		if err != nil {
			return nil, fmt.Errorf("genesis balance for %s: %w", addr, err)
		}

		alloc[common.HexToAddress(addr)] = v
	}

	return alloc, nil
}

// ToBlock writes the starting state into db and returns the genesis block.
// The same genesis always produces the same block.
func (g Genesis) ToBlock(db trie.Database) (storage.Block, error) {
	alloc, err := g.Alloc()
	if err != nil {
		return storage.Block{}, err
	}

	state, err := accounts.New(db, trie.BlankRoot)
	if err != nil {
		return storage.Block{}, err
	}

	for addr, balance := range alloc {
		if err := state.SetBalance(addr, balance); err != nil {
			return storage.Block{}, err
		}
	}

	difficulty := g.Difficulty
	if difficulty == 0 {
		difficulty = Difficulty
	}

	gasLimit := g.GasLimit
	if gasLimit == 0 {
		gasLimit = GasLimit
	}

	block := storage.Block{
		Header: storage.BlockHeader{
			UnclesHash:  storage.UnclesHash(nil),
			StateRoot:   state.Root(),
			TxListRoot:  trie.BlankRoot,
			Difficulty:  uint256.NewInt(difficulty),
			MinGasPrice: new(uint256.Int),
			GasLimit:    gasLimit,
			Nonce:       Nonce,
		},
	}

	return block, nil
}
