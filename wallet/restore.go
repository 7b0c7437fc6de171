package wallet

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/nutpouch/nutpouch/cashu"
	"github.com/nutpouch/nutpouch/cashu/nuts/nut09"
	"github.com/nutpouch/nutpouch/crypto"
)

// Restore recreates the blinded outputs at derivation indices
// [start, start+count) for the keyset and asks the mint which of them
// it has signed before. The signatures returned are unblinded into
// proofs; their amounts come from the mint since the recreated outputs
// carry no amount.
func (w *Wallet) Restore(start, count uint32, keysetId string) (cashu.Proofs, error) {
	if w.masterKey == nil {
		return nil, ErrNoSeed
	}

	// placeholder amounts; the mint matches outputs by B_ alone
	amounts := make([]uint64, count)
	counter := start
	outputs, secrets, rs, err := w.createBlindedMessages(amounts, keysetId, &counter)
	if err != nil {
		return nil, err
	}

	restoreResponse, err := w.client.Restore(nut09.PostRestoreRequest{Outputs: outputs})
	if err != nil {
		return nil, fmt.Errorf("error restoring signatures from mint: %v", err)
	}

	if len(restoreResponse.Signatures) != len(restoreResponse.Outputs) {
		return nil, ErrLengthMismatch
	}
	if len(restoreResponse.Signatures) == 0 {
		return cashu.Proofs{}, nil
	}

	// keep the secrets and blinding factors whose outputs the mint
	// returned, in the mint's order
	indexForB_ := make(map[string]int, len(outputs))
	for i, output := range outputs {
		indexForB_[output.B_] = i
	}

	restoredSecrets := make([]string, 0, len(restoreResponse.Outputs))
	restoredRs := make([]*secp256k1.PrivateKey, 0, len(restoreResponse.Outputs))
	for _, output := range restoreResponse.Outputs {
		i, ok := indexForB_[output.B_]
		if !ok {
			return nil, fmt.Errorf("mint returned unknown output '%v'", output.B_)
		}
		restoredSecrets = append(restoredSecrets, secrets[i])
		restoredRs = append(restoredRs, rs[i])
	}

	keys, err := w.keysForKeyset(keysetId)
	if err != nil {
		return nil, err
	}

	return constructProofs(restoreResponse.Signatures, restoredSecrets, restoredRs, keys)
}

// keysForKeyset returns the public keys for the keyset id, using the
// cached active keyset when the id matches and asking the mint
// otherwise.
func (w *Wallet) keysForKeyset(keysetId string) (map[uint64]*secp256k1.PublicKey, error) {
	if w.activeKeyset != nil && w.activeKeyset.Id == keysetId {
		return w.activeKeyset.PublicKeys, nil
	}

	keysetRes, err := w.client.GetKeys(keysetId)
	if err != nil {
		return nil, fmt.Errorf("error getting keys from mint: %v", err)
	}
	if len(keysetRes.Keysets) == 0 {
		return nil, fmt.Errorf("mint has no keyset '%v'", keysetId)
	}

	return crypto.MapPubKeys(keysetRes.Keysets[0].Keys)
}
