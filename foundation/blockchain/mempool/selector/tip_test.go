package selector_test

import (
	"testing"

	"github.com/ardanlabs/statechain/foundation/blockchain/mempool/selector"
	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	signPavel = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	signBill  = "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93"
	signEd    = "aed31b6b5a341af8f27e66fb0b7633cf20fc27049e3eb7f6f623a4655b719ebb"
)

func sign(hexKey string, nonce uint64, gasPrice uint64) (storage.Transaction, error) {
	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return storage.Transaction{}, err
	}

	to := common.HexToAddress("0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76")
	tx := storage.NewTransaction(nonce, uint256.NewInt(gasPrice), 10000, &to, uint256.NewInt(1), nil)

	return tx.Sign(pk)
}

type test struct {
	name    string
	txs     []storage.Transaction
	howMany int
	best    []storage.Transaction
}

func runSelect(t *testing.T, strategy string, tt []test) {
	t.Log("Given the need to pick best transactions from mempool.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a set of transaction.", testID)
			{
				f := func(t *testing.T) {
					m := make(map[common.Address][]storage.Transaction)
					for _, tx := range tst.txs {
						from, err := tx.Sender()
						if err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould be able to get from account: %s", failed, testID, err)
						}

						m[from] = append(m[from], tx)
					}

					sort, err := selector.Retrieve(strategy)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to get sort strategy function: %s", failed, testID, err)
					}

					txs := sort(m, tst.howMany)
					if len(txs) != len(tst.best) {
						t.Fatalf("\t%s\tTest %d:\tShould get %d transactions, got %d.", failed, testID, len(tst.best), len(txs))
					}

					for _, exp := range tst.best {
						expFrom, err := exp.Sender()
						if err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould be able to get from account: %s", failed, testID, err)
						}

						found := false
						for _, tx := range txs {
							gotFrom, err := tx.Sender()
							if err != nil {
								t.Fatalf("\t%s\tTest %d:\tShould be able to get from account: %s", failed, testID, err)
							}

							if exp.Nonce == tx.Nonce && expFrom == gotFrom {
								found = true
								break
							}
						}

						if !found {
							t.Fatalf("\t%s\tTest %d:\tShould get back the right from/nonce: %s/%d", failed, testID, expFrom, exp.Nonce)
						}
						t.Logf("\t%s\tTest %d:\tShould get back the right from/nonce: %s/%d", success, testID, expFrom, exp.Nonce)
					}
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func TestTipSort(t *testing.T) {
	tran := func(hexKey string, nonce uint64, gasPrice uint64) storage.Transaction {
		tx, err := sign(hexKey, nonce, gasPrice)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign transaction: %s", failed, err)
		}
		return tx
	}

	all := func() []storage.Transaction {
		return []storage.Transaction{
			tran(signPavel, 0, 25),
			tran(signPavel, 1, 75),
			tran(signPavel, 2, 50),

			tran(signBill, 0, 10),
			tran(signBill, 1, 5),
			tran(signBill, 2, 75),

			tran(signEd, 0, 5),
			tran(signEd, 1, 50),
			tran(signEd, 2, 25),
		}
	}

	tt := []test{
		{
			name:    "one from second cycle",
			txs:     all(),
			howMany: 4,
			best: []storage.Transaction{
				tran(signPavel, 0, 25),
				tran(signBill, 0, 10),
				tran(signEd, 0, 5),
				tran(signPavel, 1, 75),
			},
		},
		{
			name:    "whole two cycles",
			txs:     all(),
			howMany: 6,
			best: []storage.Transaction{
				tran(signPavel, 0, 25),
				tran(signPavel, 1, 75),
				tran(signBill, 0, 10),
				tran(signBill, 1, 5),
				tran(signEd, 0, 5),
				tran(signEd, 1, 50),
			},
		},
		{
			name:    "take all",
			txs:     all(),
			howMany: -1,
			best:    all(),
		},
		{
			name:    "first two",
			txs:     all(),
			howMany: 2,
			best: []storage.Transaction{
				tran(signPavel, 0, 25),
				tran(signBill, 0, 10),
			},
		},
	}

	runSelect(t, selector.StrategyTip, tt)
}
