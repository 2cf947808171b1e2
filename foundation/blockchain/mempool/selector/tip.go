package selector

import (
	"sort"

	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// tipSelect returns transactions with the best gas price while respecting
// the nonce for each sender.
var tipSelect = func(m map[common.Address][]storage.Transaction, howMany int) []storage.Transaction {
	if howMany == -1 {
		howMany = 0
		for _, txs := range m {
			howMany += len(txs)
		}
	}

	/*
		Pavl: {Nonce: 2, GasPrice: 50}, {Nonce: 0, GasPrice: 25}, {Nonce: 1, GasPrice: 75}
		Bill: {Nonce: 1, GasPrice: 5},  {Nonce: 0, GasPrice: 10}
	*/

	// Sort the transactions per sender by nonce.
	for key := range m {
		if len(m[key]) > 1 {
			sort.Sort(byNonce(m[key]))
		}
	}

	/*
		Pavl: {Nonce: 0, GasPrice: 25}, {Nonce: 1, GasPrice: 75}, {Nonce: 2, GasPrice: 50}
		Bill: {Nonce: 0, GasPrice: 10}, {Nonce: 1, GasPrice: 5}
	*/

	// Pick the first transaction in the slice for each sender. Each iteration
	// represents a new row of selections. Keep doing that until all the
	// transactions have been selected.
	var rows [][]storage.Transaction
	for {
		var row []storage.Transaction
		for key := range m {
			if len(m[key]) > 0 {
				row = append(row, m[key][0])
				m[key] = m[key][1:]
			}
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}

	/*
		0: Pavl: {Nonce: 0, GasPrice: 25}, Bill: {Nonce: 0, GasPrice: 10}
		1: Pavl: {Nonce: 1, GasPrice: 75}, Bill: {Nonce: 1, GasPrice: 5}
		2: Pavl: {Nonce: 2, GasPrice: 50}
	*/

	// Sort each row by gas price unless we will take all transactions from
	// that row anyway. Then try to select the number of requested
	// transactions. Keep pulling transactions from each row until the amount
	// is fulfilled or there are no more transactions.
	final := []storage.Transaction{}
done:
	for _, row := range rows {
		need := howMany - len(final)
		if len(row) > need {
			sort.Sort(byGasPrice(row))
			final = append(final, row[:need]...)
			break done
		}
		final = append(final, row...)
	}

	return final
}

var zero = new(uint256.Int)

// gasPrice treats a missing gas price as zero.
func gasPrice(tx storage.Transaction) *uint256.Int {
	if tx.GasPrice == nil {
		return zero
	}
	return tx.GasPrice
}
