package commands

import (
	"fmt"
	"strconv"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/statechain/foundation/blockchain/chain"
	"github.com/ardanlabs/statechain/foundation/blockchain/genesis"
	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
)

// Blocks prints the blocks of the head branch between the optional from and
// to arguments.
func Blocks(args conf.Args, chn *chain.Chain) error {
	head := chn.Head().Number()

	from, to := uint64(0), head
	if s := args.Num(1); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("from: %w", err)
		}
		from = n
	}
	if s := args.Num(2); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("to: %w", err)
		}
		to = min(n, head)
	}

	for i := from; i <= to; i++ {
		block, err := chn.Canonical(i)
		if err != nil {
			return err
		}
		if err := printBlock(chn, block); err != nil {
			return err
		}
	}

	return nil
}

// Genesis prints the genesis file values and the block built from them.
func Genesis(chn *chain.Chain, gen genesis.Genesis) error {
	fmt.Printf("TransPerBlock: %d  Difficulty: %d  GasLimit: %d\n", gen.TransPerBlock, gen.Difficulty, gen.GasLimit)
	for addr, bal := range gen.Balances {
		fmt.Printf("Alloc: %s  Balance: %s\n", addr, bal)
	}
	fmt.Println()

	return printBlock(chn, chn.Genesis())
}

func printBlock(chn *chain.Chain, block storage.Block) error {
	td, err := chn.TotalDifficulty(block.Hash())
	if err != nil {
		return err
	}

	h := block.Header
	fmt.Printf("Block: %d  Hash: %s\n", h.Number, block.Hash())
	fmt.Printf("  Parent: %s  Coinbase: %s\n", h.ParentHash, h.Coinbase)
	fmt.Printf("  StateRoot: %s  TxListRoot: %s\n", h.StateRoot, h.TxListRoot)
	fmt.Printf("  Difficulty: %s  TotalDifficulty: %s  GasUsed: %d/%d  Timestamp: %d\n", h.Difficulty.Dec(), td.Dec(), h.GasUsed, h.GasLimit, h.Timestamp)

	for _, tx := range block.Transactions {
		fmt.Printf("  %s\n", tx)
	}

	return nil
}
