// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"errors"
	"sync"

	"github.com/ardanlabs/statechain/foundation/blockchain/chain"
	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/genesis"
	"github.com/ardanlabs/statechain/foundation/blockchain/mempool"
	"github.com/ardanlabs/statechain/foundation/blockchain/pow"
	"github.com/ethereum/go-ethereum/common"
)

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	MinerAddress   common.Address
	DB             *database.DB
	Genesis        genesis.Genesis
	Difficulty     pow.DifficultyFunc
	SelectStrategy string
	MaxAttempts    uint64
	EvHandler      EventHandler
}

// State manages the blockchain database.
type State struct {
	mu           sync.Mutex
	minerAddress common.Address
	maxAttempts  uint64
	evHandler    EventHandler

	genesis genesis.Genesis
	chain   *chain.Chain
	mempool *mempool.Mempool

	Worker Worker
}

// New constructs a new blockchain for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.DB == nil {
		return nil, errors.New("state requires a database")
	}

	// Open the chain, writing the genesis block on first use.
	chn, err := chain.New(chain.Config{
		DB:         cfg.DB,
		Genesis:    cfg.Genesis,
		Difficulty: cfg.Difficulty,
		EvHandler:  chain.EventHandler(ev),
	})
	if err != nil {
		return nil, err
	}

	// Construct a mempool with the specified sort strategy.
	strategy := cfg.SelectStrategy
	if strategy == "" {
		strategy = "tip"
	}
	mempool, err := mempool.NewWithStrategy(strategy)
	if err != nil {
		return nil, err
	}

	// Create the State to provide support for managing the blockchain.
	state := State{
		minerAddress: cfg.MinerAddress,
		maxAttempts:  cfg.MaxAttempts,
		evHandler:    ev,

		genesis: cfg.Genesis,
		chain:   chn,
		mempool: mempool,
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down. The database is owned by the
// caller and is not closed here.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// =============================================================================

func (s *State) signalStartMining() {
	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}
}

func (s *State) signalCancelMining() (done func()) {
	if s.Worker == nil {
		return func() {}
	}
	return s.Worker.SignalCancelMining()
}
