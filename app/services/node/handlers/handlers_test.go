package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ardanlabs/statechain/app/services/node/handlers"
	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/genesis"
	"github.com/ardanlabs/statechain/foundation/blockchain/pow"
	"github.com/ardanlabs/statechain/foundation/blockchain/state"
	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
	"github.com/ardanlabs/statechain/foundation/events"
	"github.com/ardanlabs/statechain/foundation/nameservice"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const senderECDSA = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"

var to = common.HexToAddress("0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76")

func newState(t *testing.T, name string) *state.State {
	t.Helper()

	db, err := database.NewRegistry().Open("memory:" + name)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
	}
	t.Cleanup(func() { db.Close() })

	pk, _ := crypto.HexToECDSA(senderECDSA)

	gen := genesis.Default()
	gen.Difficulty = 16
	gen.Balances = map[string]string{crypto.PubkeyToAddress(pk.PublicKey).Hex(): "1000000000000000000"}

	st, err := state.New(state.Config{
		MinerAddress: common.HexToAddress("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32"),
		DB:           db,
		Genesis:      gen,
		Difficulty:   pow.Fixed(16),
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}

	return st
}

func newMux(t *testing.T, st *state.State) http.Handler {
	t.Helper()

	ns, err := nameservice.New(t.TempDir())
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the name service: %v", failed, err)
	}

	return handlers.PublicMux(handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      zap.NewNop().Sugar(),
		State:    st,
		NS:       ns,
		Evts:     events.New(),
	})
}

func signedTx(t *testing.T, nonce uint64) storage.Transaction {
	t.Helper()

	pk, _ := crypto.HexToECDSA(senderECDSA)
	tx, err := storage.NewTransaction(nonce, uint256.NewInt(1), 1000, &to, uint256.NewInt(100), nil).Sign(pk)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
	}
	return tx
}

func call(mux http.Handler, method string, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(method, path, &buf))
	return w
}

// =============================================================================

func Test_Routes(t *testing.T) {
	t.Log("Given the need to drive the node through its public API.")
	{
		st := newState(t, "handlers")
		mux := newMux(t, st)

		t.Logf("\tTest 0:\tWhen submitting a transaction.")
		{
			enc, err := signedTx(t, 0).Encode()
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to encode the transaction: %v", failed, err)
			}

			w := call(mux, http.MethodPost, "/v1/tx/submit", map[string]hexutil.Bytes{"tx": enc})
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest 0:\tShould accept the transaction: %d %s", failed, w.Code, w.Body)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the transaction.", success)

			var mempool []map[string]any
			w = call(mux, http.MethodGet, "/v1/tx/uncommitted/list", nil)
			if err := json.NewDecoder(w.Body).Decode(&mempool); err != nil || len(mempool) != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould list the transaction in the mempool: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould list the transaction in the mempool.", success)

			w = call(mux, http.MethodPost, "/v1/tx/submit", map[string]string{})
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 0:\tShould reject a missing transaction: %d", failed, w.Code)
			}
			t.Logf("\t%s\tTest 0:\tShould reject a missing transaction.", success)

			w = call(mux, http.MethodGet, "/v1/events?kinds=block,gossip", nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest 0:\tShould reject an unknown event kind: %d", failed, w.Code)
			}
			t.Logf("\t%s\tTest 0:\tShould reject an unknown event kind.", success)
		}

		t.Logf("\tTest 1:\tWhen the transaction is mined.")
		{
			blk, err := st.MineNewBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to mine: %v", failed, err)
			}

			var head map[string]any
			w := call(mux, http.MethodGet, "/v1/chain/head", nil)
			if err := json.NewDecoder(w.Body).Decode(&head); err != nil || head["hash"] != blk.Hash().Hex() {
				t.Fatalf("\t%s\tTest 1:\tShould report the mined block as head: %v %v", failed, head["hash"], err)
			}
			t.Logf("\t%s\tTest 1:\tShould report the mined block as head.", success)

			if head["total_difficulty"] != "32" {
				t.Fatalf("\t%s\tTest 1:\tShould report the total difficulty: %v", failed, head["total_difficulty"])
			}
			t.Logf("\t%s\tTest 1:\tShould report the total difficulty.", success)

			var acct map[string]any
			w = call(mux, http.MethodGet, "/v1/accounts/"+to.Hex(), nil)
			if err := json.NewDecoder(w.Body).Decode(&acct); err != nil || acct["balance"] != "100" {
				t.Fatalf("\t%s\tTest 1:\tShould credit the recipient: %v %v", failed, acct["balance"], err)
			}
			t.Logf("\t%s\tTest 1:\tShould credit the recipient.", success)

			var blocks []map[string]any
			w = call(mux, http.MethodGet, "/v1/blocks/number/0/latest", nil)
			if err := json.NewDecoder(w.Body).Decode(&blocks); err != nil || len(blocks) != 2 {
				t.Fatalf("\t%s\tTest 1:\tShould list both blocks: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould list both blocks.", success)

			w = call(mux, http.MethodGet, "/v1/blocks/"+blk.Hash().Hex(), nil)
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest 1:\tShould find the block by hash: %d", failed, w.Code)
			}
			t.Logf("\t%s\tTest 1:\tShould find the block by hash.", success)

			w = call(mux, http.MethodGet, "/v1/blocks/"+common.Hash{1}.Hex(), nil)
			if w.Code != http.StatusNotFound {
				t.Fatalf("\t%s\tTest 1:\tShould not find an unknown block: %d", failed, w.Code)
			}
			t.Logf("\t%s\tTest 1:\tShould not find an unknown block.", success)
		}

		t.Logf("\tTest 2:\tWhen another node imports the chain.")
		{
			other := newState(t, "handlers-import")
			otherMux := newMux(t, other)

			head := st.RetrieveLatestBlock()
			enc, err := head.Encode()
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to encode the block: %v", failed, err)
			}

			var results []map[string]any
			w := call(otherMux, http.MethodPost, "/v1/chain/import", map[string][]hexutil.Bytes{"blocks": {enc, {0xc0, 0x01}}})
			if err := json.NewDecoder(w.Body).Decode(&results); err != nil || len(results) != 2 {
				t.Fatalf("\t%s\tTest 2:\tShould report every block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould report every block.", success)

			if results[0]["status"] != "accepted" || results[1]["status"] != "rejected" {
				t.Fatalf("\t%s\tTest 2:\tShould accept the block and reject the garbage: %v", failed, results)
			}
			t.Logf("\t%s\tTest 2:\tShould accept the block and reject the garbage.", success)

			if other.RetrieveLatestBlock().Hash() != head.Hash() {
				t.Fatalf("\t%s\tTest 2:\tShould move the head of the importing node.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould move the head of the importing node.", success)
		}
	}
}
