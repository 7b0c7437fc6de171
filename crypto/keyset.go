package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// WalletKeyset is a keyset from the wallet's view: only the
// public key for each amount is known.
type WalletKeyset struct {
	Id         string
	MintURL    string
	Unit       string
	Active     bool
	PublicKeys map[uint64]*secp256k1.PublicKey
	// Counter is the next derivation index to use for
	// deterministic outputs under this keyset
	Counter uint32
}

// DeriveKeysetId returns the id for the keys passed. It is the hash
// of the concatenation of all public keys sorted by amount, prefixed
// with the keyset version byte.
func DeriveKeysetId(keyset map[uint64]*secp256k1.PublicKey) string {
	amounts := make([]uint64, len(keyset))
	i := 0
	for amount := range keyset {
		amounts[i] = amount
		i++
	}
	slices.Sort(amounts)

	pubkeys := make([]byte, 0, len(amounts)*33)
	for _, amount := range amounts {
		pubkeys = append(pubkeys, keyset[amount].SerializeCompressed()...)
	}
	hash := sha256.Sum256(pubkeys)

	return "00" + hex.EncodeToString(hash[:])[:14]
}

// MapPubKeys parses the hex keys in the keys map of a mint response.
func MapPubKeys(keys map[uint64]string) (map[uint64]*secp256k1.PublicKey, error) {
	parsedKeys := make(map[uint64]*secp256k1.PublicKey, len(keys))
	for amount, key := range keys {
		pkbytes, err := hex.DecodeString(key)
		if err != nil {
			return nil, err
		}
		pubkey, err := secp256k1.ParsePubKey(pkbytes)
		if err != nil {
			return nil, err
		}
		parsedKeys[amount] = pubkey
	}
	return parsedKeys, nil
}

type walletKeysetTemp struct {
	Id         string
	MintURL    string
	Unit       string
	Active     bool
	PublicKeys map[uint64]string
	Counter    uint32
}

func (wk *WalletKeyset) MarshalJSON() ([]byte, error) {
	keys := make(map[uint64]string, len(wk.PublicKeys))
	for amount, pubkey := range wk.PublicKeys {
		keys[amount] = hex.EncodeToString(pubkey.SerializeCompressed())
	}
	return json.Marshal(walletKeysetTemp{
		Id:         wk.Id,
		MintURL:    wk.MintURL,
		Unit:       wk.Unit,
		Active:     wk.Active,
		PublicKeys: keys,
		Counter:    wk.Counter,
	})
}

func (wk *WalletKeyset) UnmarshalJSON(data []byte) error {
	var temp walletKeysetTemp
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	keys, err := MapPubKeys(temp.PublicKeys)
	if err != nil {
		return err
	}

	wk.Id = temp.Id
	wk.MintURL = temp.MintURL
	wk.Unit = temp.Unit
	wk.Active = temp.Active
	wk.PublicKeys = keys
	wk.Counter = temp.Counter

	return nil
}
