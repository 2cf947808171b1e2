package selector

import (
	"sort"

	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// advancedTipSelect returns transactions with the best gas price while
// respecting the nonce for each sender. This strategy takes into account
// high-value transactions that happen to be stuck behind a low-nonce
// transaction with a low gas price.
var advancedTipSelect = func(m map[common.Address][]storage.Transaction, howMany int) []storage.Transaction {
	final := []storage.Transaction{}

	if howMany == -1 {
		howMany = 0
		for _, txs := range m {
			howMany += len(txs)
		}
	}

	// Sort the transactions per sender by nonce.
	for key := range m {
		if len(m[key]) > 1 {
			sort.Sort(byNonce(m[key]))
		}
	}

	at := newAdvancedTips(m, howMany)
	for from, num := range at.findBest() {
		final = append(final, m[from][:num]...)
	}

	return final
}

// =============================================================================

type advancedTips struct {
	howMany   int
	bestTip   *uint256.Int
	bestCount int
	bestPos   map[common.Address]int
	groupTips map[common.Address][]*uint256.Int
	groups    []common.Address
}

func newAdvancedTips(m map[common.Address][]storage.Transaction, howMany int) *advancedTips {
	groupTips := map[common.Address][]*uint256.Int{}
	groups := []common.Address{}

	for from := range m {
		groupTips[from] = []*uint256.Int{new(uint256.Int)}
		groups = append(groups, from)
	}

	// groupTips[from][n] is the total gas price of the first n transactions.
	for from, group := range m {
		for i, tx := range group {
			if i >= howMany {
				break
			}
			sum := new(uint256.Int).Add(groupTips[from][i], gasPrice(tx))
			groupTips[from] = append(groupTips[from], sum)
		}
	}

	return &advancedTips{
		howMany:   howMany,
		bestTip:   new(uint256.Int),
		bestPos:   map[common.Address]int{},
		groupTips: groupTips,
		groups:    groups,
	}
}

func (at *advancedTips) findBest() map[common.Address]int {
	at.findBestTransactions(0, at.howMany, map[common.Address]int{}, new(uint256.Int))
	return at.bestPos
}

func (at *advancedTips) findBestTransactions(groupID int, left int, currPos map[common.Address]int, prevTip *uint256.Int) {

	// On equal gas price the selection with more transactions wins.
	count := at.howMany - left
	if prevTip.Gt(at.bestTip) || (prevTip.Eq(at.bestTip) && count > at.bestCount) {
		at.bestTip = prevTip
		at.bestCount = count
		at.bestPos = currPos
	}

	if groupID >= len(at.groups) {
		return
	}
	from := at.groups[groupID]

	for pos, tip := range at.groupTips[from] {
		if left-pos < 0 {
			break
		}

		newCurrPos := copyMap(currPos)
		newCurrPos[from] = pos
		at.findBestTransactions(groupID+1, left-pos, newCurrPos, new(uint256.Int).Add(prevTip, tip))
	}
}

// =============================================================================

func copyMap(m map[common.Address]int) map[common.Address]int {
	newCurrPos := map[common.Address]int{}
	for from, pos := range m {
		newCurrPos[from] = pos
	}

	return newCurrPos
}
