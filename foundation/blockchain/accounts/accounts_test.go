package accounts_test

import (
	"errors"
	"testing"

	"github.com/ardanlabs/statechain/foundation/blockchain/accounts"
	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/trie"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var (
	cow   = common.HexToAddress("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
	horse = common.HexToAddress("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")
)

func openState(t *testing.T, name string) *accounts.Accounts {
	t.Helper()

	db, err := database.NewRegistry().Open("memory:" + name)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
	}
	t.Cleanup(func() { db.Close() })

	st, err := accounts.New(db, trie.BlankRoot)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to open the state: %v", failed, err)
	}

	return st
}

// =============================================================================

func Test_Balances(t *testing.T) {
	t.Log("Given the need to manage account balances and nonces.")
	{
		st := openState(t, "balances")

		t.Logf("\tTest 0:\tWhen reading an unknown account.")
		{
			a, err := st.Account(cow)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to read the account: %v", failed, err)
			}

			if !a.Balance.IsZero() || a.Nonce != 0 || a.Root != trie.BlankRoot || a.CodeHash != accounts.EmptyCodeHash {
				t.Fatalf("\t%s\tTest 0:\tShould get a blank account: %+v", failed, a)
			}
			t.Logf("\t%s\tTest 0:\tShould get a blank account.", success)

			if st.Root() != trie.BlankRoot {
				t.Fatalf("\t%s\tTest 0:\tShould not change the root on read.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould not change the root on read.", success)
		}

		t.Logf("\tTest 1:\tWhen crediting and debiting.")
		{
			if err := st.SetBalance(cow, uint256.NewInt(1000)); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to set the balance: %v", failed, err)
			}
			if err := st.SubBalance(cow, uint256.NewInt(300)); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to debit: %v", failed, err)
			}
			if err := st.AddBalance(horse, uint256.NewInt(300)); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to credit: %v", failed, err)
			}
			if err := st.IncrementNonce(cow); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to increment the nonce: %v", failed, err)
			}

			bal, _ := st.GetBalance(cow)
			if bal.Uint64() != 700 {
				t.Fatalf("\t%s\tTest 1:\tShould have 700 for cow, got %s.", failed, bal.Dec())
			}
			bal, _ = st.GetBalance(horse)
			if bal.Uint64() != 300 {
				t.Fatalf("\t%s\tTest 1:\tShould have 300 for horse, got %s.", failed, bal.Dec())
			}
			nonce, _ := st.GetNonce(cow)
			if nonce != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould have nonce 1 for cow, got %d.", failed, nonce)
			}
			t.Logf("\t%s\tTest 1:\tShould have the right balances and nonce.", success)

			err := st.SubBalance(horse, uint256.NewInt(301))
			if !errors.Is(err, accounts.ErrBalanceUnderflow) {
				t.Fatalf("\t%s\tTest 1:\tShould not be able to overdraw: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould not be able to overdraw.", success)

			rich := openState(t, "overflow")
			top := new(uint256.Int).SetAllOne()
			if err := rich.SetBalance(cow, top); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to set the largest balance: %v", failed, err)
			}
			root := rich.Root()

			err = rich.AddBalance(cow, uint256.NewInt(1))
			if !errors.Is(err, accounts.ErrBalanceOverflow) {
				t.Fatalf("\t%s\tTest 1:\tShould not be able to wrap the balance: %v", failed, err)
			}
			bal, _ = rich.GetBalance(cow)
			if !bal.Eq(top) || rich.Root() != root {
				t.Fatalf("\t%s\tTest 1:\tShould keep the balance after a failed credit, got %s.", failed, bal.Dec())
			}
			t.Logf("\t%s\tTest 1:\tShould not be able to wrap the balance.", success)
		}

		t.Logf("\tTest 2:\tWhen reverting to a snapshot.")
		{
			snap := st.Snapshot()
			if err := st.AddBalance(horse, uint256.NewInt(5)); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to credit: %v", failed, err)
			}
			if err := st.RevertToSnapshot(snap); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to revert: %v", failed, err)
			}

			bal, _ := st.GetBalance(horse)
			if bal.Uint64() != 300 || st.Root() != snap {
				t.Fatalf("\t%s\tTest 2:\tShould be back at the snapshot, got %s.", failed, bal.Dec())
			}
			t.Logf("\t%s\tTest 2:\tShould be back at the snapshot.", success)
		}

		t.Logf("\tTest 3:\tWhen dumping the state.")
		{
			dump, err := st.Dump()
			if err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to dump: %v", failed, err)
			}
			if len(dump) != 2 || dump[cow].Balance.Uint64() != 700 || dump[horse].Balance.Uint64() != 300 {
				t.Fatalf("\t%s\tTest 3:\tShould see both accounts: %v", failed, dump)
			}
			t.Logf("\t%s\tTest 3:\tShould see both accounts.", success)
		}
	}
}

func Test_Determinism(t *testing.T) {
	t.Log("Given the need for the state root to depend only on content.")
	{
		t.Logf("\tTest 0:\tWhen applying the same balances in a different order.")
		{
			a := openState(t, "det-a")
			a.SetBalance(cow, uint256.NewInt(10))
			a.SetBalance(horse, uint256.NewInt(20))

			b := openState(t, "det-b")
			b.SetBalance(horse, uint256.NewInt(20))
			b.SetBalance(cow, uint256.NewInt(10))

			if a.Root() != b.Root() {
				t.Fatalf("\t%s\tTest 0:\tShould get the same root.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould get the same root.", success)
		}
	}
}

func Test_StorageAndCode(t *testing.T) {
	t.Log("Given the need to keep storage and code per account.")
	{
		st := openState(t, "storage")
		slot := common.HexToHash("0x01")

		t.Logf("\tTest 0:\tWhen writing a storage slot.")
		{
			if err := st.SetStorage(cow, slot, uint256.NewInt(42)); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to write the slot: %v", failed, err)
			}

			v, err := st.GetStorage(cow, slot)
			if err != nil || v.Uint64() != 42 {
				t.Fatalf("\t%s\tTest 0:\tShould read back 42: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould read back 42.", success)

			a, _ := st.Account(cow)
			if a.Root == trie.BlankRoot {
				t.Fatalf("\t%s\tTest 0:\tShould update the storage root.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould update the storage root.", success)

			if err := st.SetStorage(cow, slot, new(uint256.Int)); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to clear the slot: %v", failed, err)
			}
			a, _ = st.Account(cow)
			if a.Root != trie.BlankRoot {
				t.Fatalf("\t%s\tTest 0:\tShould be back to a blank storage root.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould be back to a blank storage root.", success)
		}

		t.Logf("\tTest 1:\tWhen writing code.")
		{
			code := []byte{0x60, 0x00, 0x60, 0x00}
			if err := st.SetCode(horse, code); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to write code: %v", failed, err)
			}

			got, err := st.GetCode(horse)
			if err != nil || string(got) != string(code) {
				t.Fatalf("\t%s\tTest 1:\tShould read back the code: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould read back the code.", success)
		}
	}
}
