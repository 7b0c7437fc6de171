// Package nut13 implements deterministic derivation of secrets
// and blinding factors as defined in [NUT-13]
//
// [NUT-13]: https://github.com/cashubtc/nuts/blob/main/13.md
package nut13

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const purpose = 129372

// KeysetInt maps a hex keyset id to the integer used in the
// derivation path: the id bytes read as a big endian integer
// reduced mod 2^31 - 1.
func KeysetInt(keysetId string) (uint32, error) {
	keysetBytes, err := hex.DecodeString(keysetId)
	if err != nil {
		return 0, fmt.Errorf("invalid keyset id: %v", err)
	}
	if len(keysetBytes) != 8 {
		return 0, fmt.Errorf("invalid keyset id length: %v", len(keysetBytes))
	}
	bigEndianBytes := binary.BigEndian.Uint64(keysetBytes)
	return uint32(bigEndianBytes % (1<<31 - 1)), nil
}

// DeriveKeysetPath derives m/129372'/0'/keyset_int' from the master key.
func DeriveKeysetPath(master *hdkeychain.ExtendedKey, keysetId string) (*hdkeychain.ExtendedKey, error) {
	keysetIdInt, err := KeysetInt(keysetId)
	if err != nil {
		return nil, err
	}

	// m/129372'
	purposePath, err := master.Derive(hdkeychain.HardenedKeyStart + purpose)
	if err != nil {
		return nil, err
	}

	// m/129372'/0'
	coinType, err := purposePath.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return nil, err
	}

	// m/129372'/0'/keyset_int'
	keysetPath, err := coinType.Derive(hdkeychain.HardenedKeyStart + keysetIdInt)
	if err != nil {
		return nil, err
	}

	return keysetPath, nil
}

// DeriveSecret derives the secret at m/129372'/0'/keyset_int'/counter'/0
// and returns it hex encoded.
func DeriveSecret(keysetPath *hdkeychain.ExtendedKey, counter uint32) (string, error) {
	secretKey, err := deriveChild(keysetPath, counter, 0)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(secretKey.Serialize()), nil
}

// DeriveBlindingFactor derives the blinding factor at
// m/129372'/0'/keyset_int'/counter'/1.
func DeriveBlindingFactor(keysetPath *hdkeychain.ExtendedKey, counter uint32) (*secp256k1.PrivateKey, error) {
	return deriveChild(keysetPath, counter, 1)
}

func deriveChild(keysetPath *hdkeychain.ExtendedKey, counter, index uint32) (*secp256k1.PrivateKey, error) {
	counterPath, err := keysetPath.Derive(hdkeychain.HardenedKeyStart + counter)
	if err != nil {
		return nil, err
	}

	childPath, err := counterPath.Derive(index)
	if err != nil {
		return nil, err
	}

	return childPath.ECPrivKey()
}
