package signature_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ardanlabs/statechain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	from     = "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"
)

// =============================================================================

func Test_Signing(t *testing.T) {
	value := struct {
		Name  string
		Nonce uint64
	}{
		Name:  "Bill",
		Nonce: 1,
	}

	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}

	hash, err := signature.Hash(value)
	if err != nil {
		t.Fatalf("Should be able to hash the value: %s", err)
	}

	v, r, s, err := signature.Sign(hash, pk)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	if err := signature.VerifySignature(v, r, s); err != nil {
		t.Fatalf("Should be able to verify the signature: %s", err)
	}

	addr, err := signature.FromAddress(hash, v, r, s)
	if err != nil {
		t.Fatalf("Should be able to generate from address: %s", err)
	}

	if addr != common.HexToAddress(from) {
		t.Logf("got: %s", addr)
		t.Logf("exp: %s", from)
		t.Fatalf("Should get back the right address.")
	}

	str := signature.SignatureString(v, r, s)
	v2, r2, s2, err := signature.ToVRSFromHexSignature(str)
	if err != nil {
		t.Fatalf("Should be able to parse the signature string: %s", err)
	}

	if v.Cmp(v2) != 0 || r.Cmp(r2) != 0 || s.Cmp(s2) != 0 {
		t.Fatalf("Should get back the same signature values.")
	}
}

func Test_InvalidSignature(t *testing.T) {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}

	hash := crypto.Keccak256Hash([]byte("cow"))

	v, r, s, err := signature.Sign(hash, pk)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	bad := new(big.Int).Add(v, big.NewInt(2))
	if _, err := signature.FromAddress(hash, bad, r, s); !errors.Is(err, signature.ErrInvalidSignature) {
		t.Fatalf("Should reject a bad recovery id: %v", err)
	}

	if _, err := signature.FromAddress(hash, v, big.NewInt(0), s); !errors.Is(err, signature.ErrInvalidSignature) {
		t.Fatalf("Should reject a zero r value: %v", err)
	}

	other := crypto.Keccak256Hash([]byte("horse"))
	addr, err := signature.FromAddress(other, v, r, s)
	if err == nil && addr == common.HexToAddress(from) {
		t.Fatalf("Should not recover the signer for a different hash.")
	}
}

func Test_Hash(t *testing.T) {
	value := []any{uint64(1), []byte("dog")}

	h1, err := signature.Hash(value)
	if err != nil {
		t.Fatalf("Should be able to hash the value: %s", err)
	}

	h2, err := signature.Hash(value)
	if err != nil {
		t.Fatalf("Should be able to hash the value again: %s", err)
	}

	if h1 != h2 || h1 == signature.ZeroHash {
		t.Fatalf("Should get the same non zero hash.")
	}
}
