// Package commands contains the functionality for the set of commands
// currently supported by the admin tool.
package commands

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/statechain/foundation/blockchain/chain"
	"github.com/ethereum/go-ethereum/common"
)

// ErrHelp is returned when no known command was provided.
var ErrHelp = errors.New("provided help")

// Balances prints the accounts of the state at the head. An address as
// the second argument limits the output to that account.
func Balances(args conf.Args, chn *chain.Chain) error {
	head := chn.Head()

	st, err := chn.StateAt(head.Hash())
	if err != nil {
		return err
	}

	fmt.Printf("Head: %d %s\n\n", head.Number(), head.Hash())

	if act := args.Num(1); act != "" {
		if !common.IsHexAddress(act) {
			return fmt.Errorf("invalid address %q", act)
		}
		addr := common.HexToAddress(act)

		a, err := st.Account(addr)
		if err != nil {
			return err
		}
		fmt.Printf("Account: %s  Balance: %s  Nonce: %d\n", addr, a.Balance.Dec(), a.Nonce)
		return nil
	}

	dump, err := st.Dump()
	if err != nil {
		return err
	}

	addrs := make([]common.Address, 0, len(dump))
	for addr := range dump {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })

	for _, addr := range addrs {
		a := dump[addr]
		fmt.Printf("Account: %s  Balance: %s  Nonce: %d\n", addr, a.Balance.Dec(), a.Nonce)
	}

	return nil
}
