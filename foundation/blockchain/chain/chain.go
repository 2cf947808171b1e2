// Package chain manages the tree of known blocks. It validates blocks against
// their parent, keeps track of the total difficulty of every branch and
// moves the head to the heaviest one.
package chain

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/statechain/foundation/blockchain/accounts"
	"github.com/ardanlabs/statechain/foundation/blockchain/codec"
	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/genesis"
	"github.com/ardanlabs/statechain/foundation/blockchain/pow"
	"github.com/ardanlabs/statechain/foundation/blockchain/processor"
	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/holiman/uint256"
)

// Set of errors a block can be rejected with.
var (
	ErrUnknownParent      = errors.New("unknown parent")
	ErrUnknownBlock       = errors.New("unknown block")
	ErrBadNumber          = errors.New("block number does not follow parent")
	ErrDifficultyMismatch = errors.New("difficulty mismatch")
	ErrTimestamp          = errors.New("timestamp not after parent")
	ErrInvalidSeal        = errors.New("invalid proof of work seal")
	ErrTxRootMismatch     = errors.New("transaction root mismatch")
	ErrUnclesHashMismatch = errors.New("uncles hash mismatch")
	ErrRejectedAncestor   = errors.New("ancestor was rejected")
	ErrGenesisMismatch    = errors.New("database holds a different chain")
)

// ErrStateRootMismatch is returned when applying a block does not produce
// the state root its header declares.
var ErrStateRootMismatch = processor.ErrStateRootMismatch

// DefaultMaxPending is the number of blocks with an unknown parent that are
// held when no limit is configured.
const DefaultMaxPending = 256

// Reserved database keys.
var (
	keyHead         = []byte("chain:head")
	keyTDPrefix     = []byte("chain:td:")
	keyChildrenPrfx = []byte("chain:children:")
)

// =============================================================================

// Status is the outcome of adding a block.
type Status int

// Set of possible outcomes.
const (
	Rejected Status = iota
	Accepted
	Pending
)

// String implements the Stringer interface.
func (s Status) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case Pending:
		return "pending"
	}
	return "rejected"
}

// Result reports what happened to one block of a received chain.
type Result struct {
	Hash   common.Hash
	Status Status
	Err    error
}

// =============================================================================

// EventHandler defines a function that is called when events occur while
// blocks are being processed.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to open a chain.
type Config struct {
	DB         *database.DB
	Genesis    genesis.Genesis
	Difficulty pow.DifficultyFunc
	EvHandler  EventHandler
	MaxPending int
}

// Chain manages the known blocks and the head of the chain.
type Chain struct {
	mu         sync.Mutex
	db         *database.DB
	difficulty pow.DifficultyFunc
	evHandler  EventHandler

	genesis   storage.Block
	head      storage.Block
	blocks    map[common.Hash]storage.Block
	td        map[common.Hash]*uint256.Int
	canonical []common.Hash
	pending   lru.BasicLRU[common.Hash, storage.Block]
}

// New opens the chain stored in the database, writing the genesis block
// first when the database is empty.
func New(cfg Config) (*Chain, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.DB == nil {
		return nil, errors.New("chain requires a database")
	}

	difficulty := cfg.Difficulty
	if difficulty == nil {
		difficulty = pow.CalcDifficulty
	}

	maxPending := cfg.MaxPending
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}

	gen, err := cfg.Genesis.ToBlock(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}

	c := Chain{
		db:         cfg.DB,
		difficulty: difficulty,
		evHandler:  ev,
		genesis:    gen,
		blocks:     make(map[common.Hash]storage.Block),
		td:         make(map[common.Hash]*uint256.Int),
		pending:    lru.NewBasicLRU[common.Hash, storage.Block](maxPending),
	}

	switch _, err := cfg.DB.Get(keyHead); {
	case errors.Is(err, database.ErrNotFound):
		if err := c.initialize(); err != nil {
			return nil, err
		}

	case err != nil:
		return nil, err

	default:
		if err := c.rebuild(); err != nil {
			return nil, err
		}
	}

	ev("chain: New: head: blk[%d]: %s", c.head.Number(), c.head.Hash())

	return &c, nil
}

// initialize writes the genesis block into an empty database.
func (c *Chain) initialize() error {
	hash := c.genesis.Hash()

	if err := c.writeBlock(c.genesis, c.genesis.Header.Difficulty); err != nil {
		return err
	}
	c.db.Put(keyHead, hash.Bytes())

	if err := c.db.Commit(); err != nil {
		return err
	}

	c.blocks[hash] = c.genesis
	c.td[hash] = c.genesis.Header.Difficulty
	c.head = c.genesis
	c.canonical = []common.Hash{hash}

	c.evHandler("chain: initialize: genesis written: %s", hash)

	return nil
}

// rebuild loads every block reachable from the genesis block through the
// children index and restores the head.
func (c *Chain) rebuild() error {
	genHash := c.genesis.Hash()

	if _, err := c.db.Get(genHash.Bytes()); err != nil {
		return fmt.Errorf("%w: genesis %s: %w", ErrGenesisMismatch, genHash, err)
	}

	queue := []common.Hash{genHash}
	for len(queue) > 0 {
		hash := queue[0]
		queue = queue[1:]

		block, err := c.readBlock(hash)
		if err != nil {
			return err
		}

		td, err := c.readTD(hash)
		if err != nil {
			return err
		}

		c.blocks[hash] = block
		c.td[hash] = td

		children, err := c.readChildren(hash)
		if err != nil {
			return err
		}
		queue = append(queue, children...)
	}

	headHash, err := c.db.Get(keyHead)
	if err != nil {
		return err
	}

	head, exists := c.blocks[common.BytesToHash(headHash)]
	if !exists {
		return fmt.Errorf("%w: head %x", ErrUnknownBlock, headHash)
	}

	c.head = head
	c.setCanonical(head)

	c.evHandler("chain: rebuild: loaded blocks[%d]", len(c.blocks))

	return nil
}

// =============================================================================

// AddBlock validates the block and adds it to the chain. A block whose
// parent is not known yet is held as pending and added once the parent
// arrives.
func (c *Chain) AddBlock(block storage.Block) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.addBlock(block)
}

// ReceiveChain processes a batch of encoded blocks, usually newest first as
// a peer sends them. Blocks are inserted parents first whatever the batch
// order. The returned results line up with the input.
func (c *Chain) ReceiveChain(encoded [][]byte) []Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evHandler("chain: ReceiveChain: started: blocks[%d]", len(encoded))
	defer c.evHandler("chain: ReceiveChain: completed")

	results := make([]Result, len(encoded))
	blocks := make([]storage.Block, len(encoded))
	decoded := make([]int, 0, len(encoded))

	// Walk oldest first so a batch in peer order needs no reordering.
	for i := len(encoded) - 1; i >= 0; i-- {
		block, err := storage.DecodeBlock(encoded[i])
		if err != nil {
			results[i] = Result{Status: Rejected, Err: err}
			continue
		}

		blocks[i] = block
		results[i].Hash = block.Hash()
		decoded = append(decoded, i)
	}

	rejected := make(map[common.Hash]bool)

	for _, i := range linkOrder(blocks, decoded) {
		block := blocks[i]
		hash := results[i].Hash

		if rejected[block.ParentHash()] {
			rejected[hash] = true
			results[i].Status = Rejected
			results[i].Err = fmt.Errorf("%w: %s", ErrRejectedAncestor, block.ParentHash())
			continue
		}

		status, err := c.addBlock(block)
		if status == Rejected {
			rejected[hash] = true
		}
		results[i].Status = status
		results[i].Err = err
	}

	// A block held as pending may have been accepted once a later block
	// of the batch filled the gap below it.
	for i := range results {
		if results[i].Status != Pending {
			continue
		}
		if _, exists := c.blocks[results[i].Hash]; exists {
			results[i].Status = Accepted
			results[i].Err = nil
		}
	}

	return results
}

// linkOrder returns the batch positions so that every block comes after
// its parent when the parent is part of the batch. Blocks are otherwise
// kept in the order given.
func linkOrder(blocks []storage.Block, positions []int) []int {
	byHash := make(map[common.Hash]int, len(positions))
	for _, i := range positions {
		byHash[blocks[i].Hash()] = i
	}

	order := make([]int, 0, len(positions))
	placed := make(map[int]bool, len(positions))

	var place func(i int)
	place = func(i int) {
		if placed[i] {
			return
		}
		placed[i] = true

		if p, exists := byHash[blocks[i].ParentHash()]; exists {
			place(p)
		}
		order = append(order, i)
	}

	for _, i := range positions {
		place(i)
	}

	return order
}

// addBlock validates and stores a block, then retries any pending blocks
// that were waiting for it.
func (c *Chain) addBlock(block storage.Block) (Status, error) {
	hash := block.Hash()

	if _, exists := c.blocks[hash]; exists {
		return Accepted, nil
	}

	status, err := c.insert(block)
	if status != Accepted {
		return status, err
	}

	// Blocks waiting on this one can be evaluated now, and their children
	// after them.
	queue := []common.Hash{hash}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		for _, child := range c.pendingChildren(parent) {
			c.pending.Remove(child.Hash())

			status, err := c.insert(child)
			if status != Accepted {
				c.evHandler("chain: addBlock: pending block dropped: %s: %s", child.Hash(), err)
				continue
			}
			queue = append(queue, child.Hash())
		}
	}

	return Accepted, nil
}

// insert validates one block against its parent and stores it.
func (c *Chain) insert(block storage.Block) (Status, error) {
	hash := block.Hash()

	c.evHandler("chain: insert: started: blk[%d]: %s", block.Number(), hash)

	if err := c.validate(block); err != nil {
		if errors.Is(err, ErrUnknownParent) {
			c.pending.Add(hash, block)
			c.evHandler("chain: insert: pending: blk[%d]: %s: parent %s", block.Number(), hash, block.ParentHash())
			return Pending, nil
		}

		c.evHandler("chain: insert: rejected: blk[%d]: %s: %s", block.Number(), hash, err)
		return Rejected, err
	}

	td := new(uint256.Int).Add(c.td[block.ParentHash()], block.Header.Difficulty)

	if err := c.writeBlock(block, td); err != nil {
		return Rejected, err
	}

	headTD := c.td[c.head.Hash()]
	newHead := td.Gt(headTD)
	if newHead {
		c.db.Put(keyHead, hash.Bytes())
	}

	if err := c.db.Commit(); err != nil {
		return Rejected, err
	}

	c.blocks[hash] = block
	c.td[hash] = td

	if newHead {
		oldHead := c.head
		c.head = block

		if depth := c.setCanonical(block); depth > 0 {
			c.evHandler("chain: reorg: old[%d:%s]: new[%d:%s]: depth[%d]", oldHead.Number(), oldHead.Hash(), block.Number(), hash, depth)
		}
	}

	c.evHandler("chain: insert: accepted: blk[%d]: %s: head[%t]", block.Number(), hash, newHead)

	return Accepted, nil
}

// validate checks the block against its parent and replays its
// transactions on the parent state.
func (c *Chain) validate(block storage.Block) error {
	h := block.Header

	parent, exists := c.blocks[h.ParentHash]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownParent, h.ParentHash)
	}

	if h.Number != parent.Number()+1 {
		return fmt.Errorf("%w: got %d, exp %d", ErrBadNumber, h.Number, parent.Number()+1)
	}

	exp := c.difficulty(parent.Header, h.Timestamp)
	if h.Difficulty == nil || !h.Difficulty.Eq(exp) {
		return fmt.Errorf("%w: got %v, exp %s", ErrDifficultyMismatch, h.Difficulty, exp)
	}

	if h.Timestamp <= parent.Header.Timestamp {
		return fmt.Errorf("%w: got %d, parent %d", ErrTimestamp, h.Timestamp, parent.Header.Timestamp)
	}

	if !pow.Check(h) {
		return ErrInvalidSeal
	}

	txRoot, err := storage.TxListRoot(c.db, block.Transactions)
	if err != nil {
		return err
	}
	if txRoot != h.TxListRoot {
		return fmt.Errorf("%w: got %s, exp %s", ErrTxRootMismatch, txRoot, h.TxListRoot)
	}

	if uh := storage.UnclesHash(block.Uncles); uh != h.UnclesHash {
		return fmt.Errorf("%w: got %s, exp %s", ErrUnclesHashMismatch, uh, h.UnclesHash)
	}

	st, err := accounts.New(c.db, parent.Header.StateRoot)
	if err != nil {
		return err
	}

	if _, err := processor.ApplyBlock(st, block); err != nil {
		return err
	}

	return nil
}

// pendingChildren returns the pending blocks that extend parent.
func (c *Chain) pendingChildren(parent common.Hash) []storage.Block {
	var children []storage.Block
	for _, hash := range c.pending.Keys() {
		block, exists := c.pending.Peek(hash)
		if exists && block.ParentHash() == parent {
			children = append(children, block)
		}
	}
	return children
}

// setCanonical makes the branch ending at head the canonical one and
// returns how many blocks of the previous canonical branch were replaced.
func (c *Chain) setCanonical(head storage.Block) uint64 {
	var oldTop uint64
	if len(c.canonical) > 0 {
		oldTop = uint64(len(c.canonical) - 1)
	}

	n := head.Number()
	if uint64(len(c.canonical)) > n+1 {
		c.canonical = c.canonical[:n+1]
	}
	for uint64(len(c.canonical)) <= n {
		c.canonical = append(c.canonical, common.Hash{})
	}

	ancestor := uint64(0)
	for b := head; ; {
		num, hash := b.Number(), b.Hash()
		if c.canonical[num] == hash {
			ancestor = num
			break
		}
		c.canonical[num] = hash

		parent, exists := c.blocks[b.ParentHash()]
		if num == 0 || !exists {
			break
		}
		b = parent
	}

	if ancestor >= oldTop {
		return 0
	}
	return oldTop - ancestor
}

// =============================================================================

// Head returns the block at the head of the heaviest branch.
func (c *Chain) Head() storage.Block {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.head
}

// Genesis returns the first block of the chain.
func (c *Chain) Genesis() storage.Block {
	return c.genesis
}

// Get returns the block with the specified hash.
func (c *Chain) Get(hash common.Hash) (storage.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	block, exists := c.blocks[hash]
	if !exists {
		return storage.Block{}, fmt.Errorf("%w: %s", ErrUnknownBlock, hash)
	}
	return block, nil
}

// Has reports whether the block has been accepted.
func (c *Chain) Has(hash common.Hash) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.blocks[hash]
	return exists
}

// IsPending reports whether the block is waiting for its parent.
func (c *Chain) IsPending(hash common.Hash) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pending.Contains(hash)
}

// PendingCount returns the number of blocks waiting for their parent.
func (c *Chain) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pending.Len()
}

// TotalDifficulty returns the sum of the difficulties from the genesis block
// up to and including the specified block.
func (c *Chain) TotalDifficulty(hash common.Hash) (*uint256.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	td, exists := c.td[hash]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBlock, hash)
	}
	return new(uint256.Int).Set(td), nil
}

// Canonical returns the block at the specified height on the head branch.
func (c *Chain) Canonical(number uint64) (storage.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if number >= uint64(len(c.canonical)) {
		return storage.Block{}, fmt.Errorf("%w: number %d", ErrUnknownBlock, number)
	}
	return c.blocks[c.canonical[number]], nil
}

// Ancestors returns up to n blocks starting with the specified block and
// walking back toward the genesis block. The result is newest first, the
// order ReceiveChain expects.
func (c *Chain) Ancestors(hash common.Hash, n int) ([]storage.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	block, exists := c.blocks[hash]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBlock, hash)
	}

	blocks := make([]storage.Block, 0, n)
	for len(blocks) < n {
		blocks = append(blocks, block)
		if block.Number() == 0 {
			break
		}
		block = c.blocks[block.ParentHash()]
	}

	return blocks, nil
}

// StateAt opens the world state as it was after the specified block.
func (c *Chain) StateAt(hash common.Hash) (*accounts.Accounts, error) {
	block, err := c.Get(hash)
	if err != nil {
		return nil, err
	}
	return accounts.New(c.db, block.Header.StateRoot)
}

// DB returns the database the chain is stored in.
func (c *Chain) DB() *database.DB {
	return c.db
}

// Difficulty returns the difficulty a child of parent mined at the
// specified time must declare.
func (c *Chain) Difficulty(parent storage.BlockHeader, timestamp uint64) *uint256.Int {
	return c.difficulty(parent, timestamp)
}

// =============================================================================

// writeBlock stores the block, its total difficulty and links it into the
// children index of its parent. Nothing is durable until Commit.
func (c *Chain) writeBlock(block storage.Block, td *uint256.Int) error {
	hash := block.Hash()

	enc, err := block.Encode()
	if err != nil {
		return err
	}
	c.db.Put(hash.Bytes(), enc)

	tdEnc, err := codec.EncodeValue(td)
	if err != nil {
		return err
	}
	c.db.Put(tdKey(hash), tdEnc)

	if block.Number() == 0 {
		return nil
	}

	children, err := c.readChildren(block.ParentHash())
	if err != nil {
		return err
	}
	children = append(children, hash)

	childEnc, err := codec.EncodeValue(children)
	if err != nil {
		return err
	}
	c.db.Put(childrenKey(block.ParentHash()), childEnc)

	return nil
}

func (c *Chain) readBlock(hash common.Hash) (storage.Block, error) {
	enc, err := c.db.Get(hash.Bytes())
	if err != nil {
		return storage.Block{}, fmt.Errorf("block %s: %w", hash, err)
	}
	return storage.DecodeBlock(enc)
}

func (c *Chain) readTD(hash common.Hash) (*uint256.Int, error) {
	enc, err := c.db.Get(tdKey(hash))
	if err != nil {
		return nil, fmt.Errorf("total difficulty %s: %w", hash, err)
	}

	td := new(uint256.Int)
	if err := codec.DecodeValue(enc, td); err != nil {
		return nil, err
	}
	return td, nil
}

func (c *Chain) readChildren(hash common.Hash) ([]common.Hash, error) {
	enc, err := c.db.Get(childrenKey(hash))
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}

	var children []common.Hash
	if err := codec.DecodeValue(enc, &children); err != nil {
		return nil, err
	}
	return children, nil
}

func tdKey(hash common.Hash) []byte {
	return bytes.Join([][]byte{keyTDPrefix, hash.Bytes()}, nil)
}

func childrenKey(hash common.Hash) []byte {
	return bytes.Join([][]byte{keyChildrenPrfx, hash.Bytes()}, nil)
}
