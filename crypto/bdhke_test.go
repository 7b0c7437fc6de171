package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

func TestHashToCurve(t *testing.T) {
	tests := []struct {
		message  string
		expected string
	}{
		{message: "0000000000000000000000000000000000000000000000000000000000000000",
			expected: "024cce997d3b518f739663b757deaec95bcd9473c30a14ac2fd04023a739d1a725"},
		{message: "0000000000000000000000000000000000000000000000000000000000000001",
			expected: "022e7158e11c9506f1aa4248bf531298daa7febd6194f003edcd9b93ade6253acf"},
		// iterates over the counter
		{message: "0000000000000000000000000000000000000000000000000000000000000002",
			expected: "026cdbe15362df59cd1dd3c9c11de8aedac2106eca69236ecd9fbe117af897be4f"},
	}

	for _, test := range tests {
		msgBytes, err := hex.DecodeString(test.message)
		if err != nil {
			t.Errorf("error decoding msg: %v", err)
		}

		pk, err := HashToCurve(msgBytes)
		if err != nil {
			t.Errorf("HashToCurve: %v", err)
		}
		hexStr := hex.EncodeToString(pk.SerializeCompressed())
		if hexStr != test.expected {
			t.Errorf("expected '%v' but got '%v' instead\n", test.expected, hexStr)
		}
	}
}

func TestBlindMessage(t *testing.T) {
	tests := []struct {
		secret         string
		blindingFactor string
		expected       string
	}{
		{secret: "test_message",
			blindingFactor: "0000000000000000000000000000000000000000000000000000000000000001",
			expected:       "025cc16fe33b953e2ace39653efb3e7a7049711ae1d8a2f7a9108753f1cdea742b",
		},
		{secret: "d341ee4871f1f889041e63cf0d3823c713eea6aff01e80f1719f08f9e5be98f6",
			blindingFactor: "99fce58439fc37412ab3468b73db0569322588f62fb3a49182d67e23d877824a",
			expected:       "020323fb15a1eb88bc546fe6fc8a55c8bccd37febb6ab6c3952e11b2fd39e4f152",
		},
		{secret: "f1aaf16c2239746f369572c0784d9dd3d032d952c2d992175873fb58fae31a60",
			blindingFactor: "f78476ea7cc9ade20f9e05e58a804cf19533f03ea805ece5fee88c8e2874ba50",
			expected:       "03f4bd0245698e17e7ab86c5cdf1a2972f690b382322d496ea8d388589695f8f71",
		},
	}

	for _, test := range tests {
		rbytes, err := hex.DecodeString(test.blindingFactor)
		if err != nil {
			t.Errorf("error decoding blinding factor: %v", err)
		}
		r, _ := btcec.PrivKeyFromBytes(rbytes)

		B_, _, err := BlindMessage(test.secret, r)
		if err != nil {
			t.Errorf("BlindMessage: %v", err)
		}
		B_Hex := hex.EncodeToString(B_.SerializeCompressed())
		if B_Hex != test.expected {
			t.Errorf("expected '%v' but got '%v' instead\n", test.expected, B_Hex)
		}
	}
}

func TestSignBlindedMessage(t *testing.T) {
	secret := "test_message"
	rbytes, _ := hex.DecodeString("0000000000000000000000000000000000000000000000000000000000000001")
	r, _ := btcec.PrivKeyFromBytes(rbytes)

	B_, _, err := BlindMessage(secret, r)
	if err != nil {
		t.Fatalf("BlindMessage: %v", err)
	}

	mintKeyBytes, _ := hex.DecodeString("7f7f7f7f7f7f7f7f7f7f7f7f7f7f7f7f7f7f7f7f7f7f7f7f7f7f7f7f7f7f7f7f")
	k, _ := btcec.PrivKeyFromBytes(mintKeyBytes)

	C_ := SignBlindedMessage(B_, k)
	expected := "027726f0e5757b4202a27198369a3477a17bc275b7529da518fc7cb4a1d927cc0d"
	C_Hex := hex.EncodeToString(C_.SerializeCompressed())
	if C_Hex != expected {
		t.Errorf("expected '%v' but got '%v' instead\n", expected, C_Hex)
	}
}

func TestUnblindSignature(t *testing.T) {
	dst, _ := hex.DecodeString("027726f0e5757b4202a27198369a3477a17bc275b7529da518fc7cb4a1d927cc0d")
	C_, err := secp256k1.ParsePubKey(dst)
	if err != nil {
		t.Error(err)
	}

	kdst, _ := hex.DecodeString("03142715675faf8da1ecc4d51e0b9e539fa0d52fdd96ed60dbe99adb15d6b05ad9")
	K, err := secp256k1.ParsePubKey(kdst)
	if err != nil {
		t.Error(err)
	}

	rbytes, _ := hex.DecodeString("0000000000000000000000000000000000000000000000000000000000000001")
	r, _ := btcec.PrivKeyFromBytes(rbytes)

	C := UnblindSignature(C_, r, K)
	expected := "0325107093a0be0d3eb973558065b14796caa992ec2bafd20b1b2a7b99ec18cfb1"
	CHex := hex.EncodeToString(C.SerializeCompressed())
	if CHex != expected {
		t.Errorf("expected '%v' but got '%v' instead\n", expected, CHex)
	}
}

// blind, sign, unblind and verify the unblinded signature
// against the mint key
func TestBlindDiffieHellmanFlow(t *testing.T) {
	secrets := []string{
		"9d32fc57e6fa2942d05ee475d28ba6a56839b8cb8a3f174b05ed0ed9d3a420f6",
		"hello",
		"ecash",
	}

	mintKeyBytes, _ := hex.DecodeString("0000000000000000000000000000000000000000000000000000000000000001")
	k, _ := btcec.PrivKeyFromBytes(mintKeyBytes)

	for _, secret := range secrets {
		B_, r, err := BlindMessage(secret, nil)
		if err != nil {
			t.Fatalf("BlindMessage: %v", err)
		}

		C_ := SignBlindedMessage(B_, k)
		C := UnblindSignature(C_, r, k.PubKey())

		if !Verify(secret, k, C) {
			t.Errorf("failed to verify unblinded signature for secret '%v'", secret)
		}
	}
}
