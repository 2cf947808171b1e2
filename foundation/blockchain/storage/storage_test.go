package storage_test

import (
	"errors"
	"testing"

	"github.com/ardanlabs/statechain/foundation/blockchain/codec"
	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
	"github.com/ardanlabs/statechain/foundation/blockchain/trie"
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
	pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	from     = "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"
)

func signedTx(t *testing.T, nonce uint64) storage.Transaction {
	t.Helper()

	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the private key: %v", failed, err)
	}

	to := common.HexToAddress("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")
	tx := storage.NewTransaction(nonce, uint256.NewInt(10), 10000, &to, uint256.NewInt(1000), []byte("hello"))

	tx, err = tx.Sign(pk)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
	}

	return tx
}

// =============================================================================

func Test_Transaction(t *testing.T) {
	t.Log("Given the need to sign and encode transactions.")
	{
		tx := signedTx(t, 0)

		t.Logf("\tTest 0:\tWhen recovering the sender.")
		{
			sender, err := tx.Sender()
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to recover the sender: %v", failed, err)
			}

			if sender != common.HexToAddress(from) {
				t.Fatalf("\t%s\tTest 0:\tShould get the signer, got %s.", failed, sender)
			}
			t.Logf("\t%s\tTest 0:\tShould get the signer.", success)
		}

		t.Logf("\tTest 1:\tWhen encoding and decoding.")
		{
			enc, err := tx.Encode()
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to encode: %v", failed, err)
			}

			item, err := codec.Decode(enc)
			if err != nil || !item.IsList() || item.Len() != 9 {
				t.Fatalf("\t%s\tTest 1:\tShould encode nine fields: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould encode nine fields.", success)

			dec, err := storage.DecodeTransaction(enc)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to decode: %v", failed, err)
			}

			if dec.Hash() != tx.Hash() {
				t.Fatalf("\t%s\tTest 1:\tShould get the same hash.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould get the same hash.", success)

			sender, err := dec.Sender()
			if err != nil || sender != common.HexToAddress(from) {
				t.Fatalf("\t%s\tTest 1:\tShould recover the sender after decoding: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould recover the sender after decoding.", success)
		}

		t.Logf("\tTest 2:\tWhen the transaction is tampered with.")
		{
			bad := tx
			bad.Value = uint256.NewInt(999999)

			sender, err := bad.Sender()
			if err == nil && sender == common.HexToAddress(from) {
				t.Fatalf("\t%s\tTest 2:\tShould not recover the original signer.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould not recover the original signer.", success)
		}

		t.Logf("\tTest 3:\tWhen computing the cost.")
		{
			cost, overflow := tx.Cost()
			if overflow || cost.Uint64() != 1000+10*10000 {
				t.Fatalf("\t%s\tTest 3:\tShould cost value plus gas, got %v.", failed, cost)
			}
			t.Logf("\t%s\tTest 3:\tShould cost value plus gas.", success)
		}
	}
}

func Test_Block(t *testing.T) {
	t.Log("Given the need to encode blocks.")
	{
		db, err := database.NewRegistry().Open("memory:block")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
		}
		defer db.Close()

		txs := []storage.Transaction{signedTx(t, 0), signedTx(t, 1)}

		root, err := storage.TxListRoot(db, txs)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to compute the tx list root: %v", failed, err)
		}

		block := storage.Block{
			Header: storage.BlockHeader{
				UnclesHash:  storage.UnclesHash(nil),
				Coinbase:    common.HexToAddress(from),
				StateRoot:   trie.BlankRoot,
				TxListRoot:  root,
				Difficulty:  uint256.NewInt(1 << 22),
				Number:      1,
				MinGasPrice: new(uint256.Int),
				GasLimit:    1000000,
				Timestamp:   1400000000,
				Nonce:       make([]byte, 32),
			},
			Transactions: txs,
		}

		t.Logf("\tTest 0:\tWhen checking derived hashes.")
		{
			if storage.UnclesHash(nil) != common.HexToHash("1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347") {
				t.Fatalf("\t%s\tTest 0:\tShould get the empty uncles hash.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould get the empty uncles hash.", success)

			if root == trie.BlankRoot {
				t.Fatalf("\t%s\tTest 0:\tShould get a non blank tx list root.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould get a non blank tx list root.", success)

			if block.Header.SealHash() == block.Hash() {
				t.Fatalf("\t%s\tTest 0:\tShould get a seal hash that excludes the nonce.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould get a seal hash that excludes the nonce.", success)
		}

		t.Logf("\tTest 1:\tWhen encoding and decoding.")
		{
			enc, err := block.Encode()
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to encode: %v", failed, err)
			}

			item, err := codec.Decode(enc)
			if err != nil || item.Len() != 3 || item.Items()[0].Len() != 13 {
				t.Fatalf("\t%s\tTest 1:\tShould encode a 13 field header in a 3 item block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould encode a 13 field header in a 3 item block.", success)

			dec, err := storage.DecodeBlock(enc)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to decode: %v", failed, err)
			}

			if dec.Hash() != block.Hash() || len(dec.Transactions) != 2 {
				t.Fatalf("\t%s\tTest 1:\tShould get back the same block.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould get back the same block.", success)

			got, err := storage.TxListRoot(db, dec.Transactions)
			if err != nil || got != root {
				t.Fatalf("\t%s\tTest 1:\tShould get the same tx list root: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould get the same tx list root.", success)
		}

		t.Logf("\tTest 2:\tWhen decoding garbage.")
		{
			_, err := storage.DecodeBlock([]byte{0xc3, 0x01})
			if !errors.Is(err, codec.ErrMalformedEncoding) {
				t.Fatalf("\t%s\tTest 2:\tShould get ErrMalformedEncoding: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould get ErrMalformedEncoding.", success)
		}
	}
}
