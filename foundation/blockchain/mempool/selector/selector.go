// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"

	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
	"github.com/ethereum/go-ethereum/common"
)

// List of different select strategies.
const (
	StrategyTip         = "tip"
	StrategyTipAdvanced = "advanced"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyTip:         tipSelect,
	StrategyTipAdvanced: advancedTipSelect,
}

// Func defines a function that takes a mempool of transactions grouped by
// sender and selects howMany of them in an order based on the functions
// strategy. All selector functions MUST respect nonce ordering. Receiving -1
// for howMany must return all the transactions in the strategies ordering.
type Func func(transactions map[common.Address][]storage.Transaction, howMany int) []storage.Transaction

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// byNonce provides sorting support by the transaction nonce value.
type byNonce []storage.Transaction

// Len returns the number of transactions in the list.
func (bn byNonce) Len() int {
	return len(bn)
}

// Less helps to sort the list by nonce in ascending order to keep the
// transactions in the right order of processing.
func (bn byNonce) Less(i, j int) bool {
	return bn[i].Nonce < bn[j].Nonce
}

// Swap moves transactions in the order of the nonce value.
func (bn byNonce) Swap(i, j int) {
	bn[i], bn[j] = bn[j], bn[i]
}

// =============================================================================

// byGasPrice provides sorting support by the transaction gas price.
type byGasPrice []storage.Transaction

// Len returns the number of transactions in the list.
func (bg byGasPrice) Len() int {
	return len(bg)
}

// Less helps to sort the list by gas price in descending order to pick the
// transactions that provide the best reward.
func (bg byGasPrice) Less(i, j int) bool {
	return gasPrice(bg[i]).Gt(gasPrice(bg[j]))
}

// Swap moves transactions in the order of the gas price.
func (bg byGasPrice) Swap(i, j int) {
	bg[i], bg[j] = bg[j], bg[i]
}
