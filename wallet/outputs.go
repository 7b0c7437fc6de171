package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/bits"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/nutpouch/nutpouch/cashu"
	"github.com/nutpouch/nutpouch/cashu/nuts/nut13"
	"github.com/nutpouch/nutpouch/crypto"
)

// createBlindedMessages plans one blinded output per amount, in order,
// and returns the outputs along with the secrets and blinding factors
// the caller must retain until the mint signs. With a counter the
// secrets and blinding factors are derived from the wallet seed at
// indices counter, counter+1, ... so the same plan can be recreated
// during restore; without one they are drawn from the system rng.
func (w *Wallet) createBlindedMessages(amounts []uint64, keysetId string, counter *uint32) (
	cashu.BlindedMessages, []string, []*secp256k1.PrivateKey, error) {

	var keysetPath *hdkeychain.ExtendedKey
	if counter != nil {
		if w.masterKey == nil {
			return nil, nil, nil, ErrNoSeed
		}
		var err error
		keysetPath, err = nut13.DeriveKeysetPath(w.masterKey, keysetId)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("error deriving keyset path: %v", err)
		}
	}

	splitLen := len(amounts)
	blindedMessages := make(cashu.BlindedMessages, splitLen)
	secrets := make([]string, splitLen)
	rs := make([]*secp256k1.PrivateKey, splitLen)

	for i, amt := range amounts {
		var secret string
		var r *secp256k1.PrivateKey
		var err error

		if counter != nil {
			index := *counter + uint32(i)
			secret, err = nut13.DeriveSecret(keysetPath, index)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("error deriving secret: %v", err)
			}
			r, err = nut13.DeriveBlindingFactor(keysetPath, index)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("error deriving blinding factor: %v", err)
			}
		} else {
			secretBytes := make([]byte, 32)
			if _, err := rand.Read(secretBytes); err != nil {
				return nil, nil, nil, err
			}
			secret = hex.EncodeToString(secretBytes)
		}

		B_, r, err := crypto.BlindMessage(secret, r)
		if err != nil {
			return nil, nil, nil, err
		}

		blindedMessages[i] = cashu.NewBlindedMessage(keysetId, amt, B_)
		secrets[i] = secret
		rs[i] = r
	}

	return blindedMessages, secrets, rs, nil
}

// createBlankOutputs plans outputs to receive overpaid lightning fees
// against. The mint overrides their amounts when it returns change, so
// they carry amount 1 as a placeholder.
func (w *Wallet) createBlankOutputs(feeReserve uint64, keysetId string, counter *uint32) (
	cashu.BlindedMessages, []string, []*secp256k1.PrivateKey, error) {

	count := blankOutputsCount(feeReserve)
	amounts := make([]uint64, count)
	for i := 0; i < count; i++ {
		amounts[i] = 1
	}

	return w.createBlindedMessages(amounts, keysetId, counter)
}

// number of blank outputs needed to return any overpaid amount up to
// the fee reserve: ceil(log2(feeReserve)), at least 1 when the
// reserve is not zero
func blankOutputsCount(feeReserve uint64) int {
	if feeReserve == 0 {
		return 0
	}
	count := bits.Len64(feeReserve - 1)
	if count == 0 {
		count = 1
	}
	return count
}

// constructProofs unblinds the signatures and builds the proofs, pairing
// each signature with the secret and blinding factor at the same position.
func constructProofs(blindedSignatures cashu.BlindedSignatures, secrets []string,
	rs []*secp256k1.PrivateKey, keys map[uint64]*secp256k1.PublicKey) (cashu.Proofs, error) {

	sigsLen := len(blindedSignatures)
	if sigsLen != len(secrets) || sigsLen != len(rs) {
		return nil, ErrLengthMismatch
	}

	proofs := make(cashu.Proofs, sigsLen)
	for i, blindedSignature := range blindedSignatures {
		C_bytes, err := hex.DecodeString(blindedSignature.C_)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", cashu.ErrInvalidPoint, err)
		}
		C_, err := secp256k1.ParsePubKey(C_bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", cashu.ErrInvalidPoint, err)
		}

		K, ok := keys[blindedSignature.Amount]
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnknownDenomination, blindedSignature.Amount)
		}

		C := crypto.UnblindSignature(C_, rs[i], K)
		Cstr := hex.EncodeToString(C.SerializeCompressed())

		proofs[i] = cashu.Proof{
			Amount: blindedSignature.Amount,
			Secret: secrets[i],
			C:      Cstr,
			Id:     blindedSignature.Id,
		}
	}

	return proofs, nil
}
