package genesis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/statechain/foundation/blockchain/accounts"
	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/genesis"
	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
	"github.com/ardanlabs/statechain/foundation/blockchain/trie"
	"github.com/ethereum/go-ethereum/common"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const cow = "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"

func toBlock(t *testing.T, name string, g genesis.Genesis) (*database.DB, storage.Block) {
	t.Helper()

	db, err := database.NewRegistry().Open("memory:" + name)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
	}
	t.Cleanup(func() { db.Close() })

	block, err := g.ToBlock(db)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build the genesis block: %v", failed, err)
	}

	return db, block
}

// =============================================================================

func Test_Genesis(t *testing.T) {
	t.Log("Given the need to build the genesis block.")
	{
		t.Logf("\tTest 0:\tWhen building twice from the same genesis.")
		{
			g := genesis.Quick(map[string]string{cow: "1000000000000000000"})

			_, a := toBlock(t, "genesis-a", g)
			_, b := toBlock(t, "genesis-b", g)

			if a.Hash() != b.Hash() {
				t.Fatalf("\t%s\tTest 0:\tShould get the same hash.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould get the same hash.", success)
		}

		t.Logf("\tTest 1:\tWhen checking the fixed fields.")
		{
			db, block := toBlock(t, "genesis-fields", genesis.Quick(map[string]string{cow: "1000"}))
			h := block.Header

			switch {
			case h.ParentHash != (common.Hash{}):
				t.Fatalf("\t%s\tTest 1:\tShould have a zero parent hash.", failed)
			case h.Number != 0 || h.Timestamp != 0 || len(h.ExtraData) != 0:
				t.Fatalf("\t%s\tTest 1:\tShould have zero number, timestamp and extra data.", failed)
			case h.Difficulty.Uint64() != genesis.QuickDifficulty || h.GasLimit != genesis.GasLimit:
				t.Fatalf("\t%s\tTest 1:\tShould have the quick difficulty and gas limit.", failed)
			case h.TxListRoot != trie.BlankRoot || h.UnclesHash != storage.EmptyUnclesHash:
				t.Fatalf("\t%s\tTest 1:\tShould have empty tx and uncle commitments.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould have the fixed fields.", success)

			st, err := accounts.New(db, h.StateRoot)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to open the genesis state: %v", failed, err)
			}

			bal, err := st.GetBalance(common.HexToAddress(cow))
			if err != nil || bal.Uint64() != 1000 {
				t.Fatalf("\t%s\tTest 1:\tShould have the allocated balance: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould have the allocated balance.", success)
		}

		t.Logf("\tTest 2:\tWhen the default genesis has no balances.")
		{
			_, block := toBlock(t, "genesis-default", genesis.Default())
			if block.Header.StateRoot != trie.BlankRoot {
				t.Fatalf("\t%s\tTest 2:\tShould have a blank state root.", failed)
			}
			if block.Header.Difficulty.Uint64() != genesis.Difficulty {
				t.Fatalf("\t%s\tTest 2:\tShould have the default difficulty.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould have a blank state and default difficulty.", success)
		}

		t.Logf("\tTest 3:\tWhen only the balances differ.")
		{
			_, a := toBlock(t, "genesis-alloc-a", genesis.Quick(map[string]string{cow: "1000"}))
			_, b := toBlock(t, "genesis-alloc-b", genesis.Quick(map[string]string{cow: "1001"}))

			if a.Header.StateRoot == b.Header.StateRoot {
				t.Fatalf("\t%s\tTest 3:\tShould commit to different state roots.", failed)
			}
			if a.Hash() == b.Hash() {
				t.Fatalf("\t%s\tTest 3:\tShould get different genesis hashes.", failed)
			}
			t.Logf("\t%s\tTest 3:\tShould get different genesis hashes.", success)
		}
	}
}

func Test_Load(t *testing.T) {
	t.Log("Given the need to load a genesis file.")
	{
		t.Logf("\tTest 0:\tWhen the file has balances.")
		{
			path := filepath.Join(t.TempDir(), "genesis.json")
			content := `{"difficulty": 1024, "balances": {"` + cow + `": "5000"}}`
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to write the file: %v", failed, err)
			}

			g, err := genesis.Load(path)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to load the file: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to load the file.", success)

			if g.Difficulty != 1024 || g.GasLimit != genesis.GasLimit {
				t.Fatalf("\t%s\tTest 0:\tShould keep defaults for missing fields: %+v", failed, g)
			}
			t.Logf("\t%s\tTest 0:\tShould keep defaults for missing fields.", success)

			alloc, err := g.Alloc()
			if err != nil || alloc[common.HexToAddress(cow)].Uint64() != 5000 {
				t.Fatalf("\t%s\tTest 0:\tShould parse the balances: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould parse the balances.", success)
		}

		t.Logf("\tTest 1:\tWhen a balance is not a number.")
		{
			g := genesis.Quick(map[string]string{cow: "lots"})
			if _, err := g.Alloc(); err == nil {
				t.Fatalf("\t%s\tTest 1:\tShould reject the balance.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the balance.", success)
		}
	}
}
