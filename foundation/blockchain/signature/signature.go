// Package signature provides helper functions for handling the blockchain
// signature needs.
package signature

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ardanlabs/statechain/foundation/blockchain/codec"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of zeros.
var ZeroHash common.Hash

// recoveryOffset is added to the recovery id so v is either 27 or 28.
const recoveryOffset = 27

// ErrInvalidSignature is returned when v, r, s do not form a usable signature.
var ErrInvalidSignature = errors.New("invalid signature")

// =============================================================================

// Hash returns the Keccak-256 hash of the canonical encoding of the value.
func Hash(value any) (common.Hash, error) {
	data, err := codec.EncodeValue(value)
	if err != nil {
		return ZeroHash, err
	}

	return crypto.Keccak256Hash(data), nil
}

// Sign uses the specified private key to sign the hash.
func Sign(hash common.Hash, privateKey *ecdsa.PrivateKey) (v, r, s *big.Int, err error) {

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(hash.Bytes(), privateKey)
	if err != nil {
		return nil, nil, nil, err
	}

	// Extract the public key from the hash and the signature.
	publicKey, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return nil, nil, nil, err
	}

	// Check the public key extracted from the hash and signature.
	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), hash.Bytes(), rs) {
		return nil, nil, nil, ErrInvalidSignature
	}

	// Convert the 65 byte signature into the [R|S|V] format.
	v, r, s = toSignatureValues(sig)

	return v, r, s, nil
}

// VerifySignature verifies the signature conforms to our standards.
func VerifySignature(v, r, s *big.Int) error {
	if v == nil || r == nil || s == nil {
		return fmt.Errorf("%w: missing values", ErrInvalidSignature)
	}

	// Check the recovery id is either 0 or 1.
	if !v.IsUint64() || v.Uint64() < recoveryOffset {
		return fmt.Errorf("%w: invalid recovery id", ErrInvalidSignature)
	}
	uintV := v.Uint64() - recoveryOffset
	if uintV != 0 && uintV != 1 {
		return fmt.Errorf("%w: invalid recovery id", ErrInvalidSignature)
	}

	// Check the signature values are valid.
	if !crypto.ValidateSignatureValues(byte(uintV), r, s, false) {
		return fmt.Errorf("%w: invalid signature values", ErrInvalidSignature)
	}

	return nil
}

// FromAddress extracts the address for the account that signed the hash.
func FromAddress(hash common.Hash, v, r, s *big.Int) (common.Address, error) {
	if err := VerifySignature(v, r, s); err != nil {
		return common.Address{}, err
	}

	// Convert the [R|S|V] format into the original 65 bytes.
	sig := ToSignatureBytes(v, r, s)

	// Capture the public key associated with this hash and signature.
	publicKey, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}

	// Extract the account address from the public key.
	return crypto.PubkeyToAddress(*publicKey), nil
}

// SignatureString returns the signature as a string.
func SignatureString(v, r, s *big.Int) string {
	sig := ToSignatureBytes(v, r, s)
	sig[64] = byte(v.Uint64())

	return hexutil.Encode(sig)
}

// ToVRSFromHexSignature converts a hex representation of the signature into
// its R, S and V parts.
func ToVRSFromHexSignature(sigStr string) (v, r, s *big.Int, err error) {
	sig, err := hexutil.Decode(sigStr)
	if err != nil {
		return nil, nil, nil, err
	}

	if len(sig) != crypto.SignatureLength {
		return nil, nil, nil, fmt.Errorf("%w: signature length %d", ErrInvalidSignature, len(sig))
	}

	r = new(big.Int).SetBytes(sig[:32])
	s = new(big.Int).SetBytes(sig[32:64])
	v = new(big.Int).SetBytes([]byte{sig[64]})

	return v, r, s, nil
}

// ToSignatureBytes converts the r, s, v values into a slice of bytes
// with the removal of the recovery offset.
func ToSignatureBytes(v, r, s *big.Int) []byte {
	sig := make([]byte, crypto.SignatureLength)

	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:64])
	sig[64] = byte(v.Uint64() - recoveryOffset)

	return sig
}

// =============================================================================

// toSignatureValues converts the signature into the r, s, v values.
func toSignatureValues(sig []byte) (v, r, s *big.Int) {
	r = new(big.Int).SetBytes(sig[:32])
	s = new(big.Int).SetBytes(sig[32:64])
	v = new(big.Int).SetBytes([]byte{sig[64] + recoveryOffset})

	return v, r, s
}
