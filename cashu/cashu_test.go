package cashu

import (
	"errors"
	"math/bits"
	"reflect"
	"slices"
	"testing"
)

func TestAmountSplit(t *testing.T) {
	tests := []struct {
		amount   uint64
		expected []uint64
	}{
		{amount: 13, expected: []uint64{1, 4, 8}},
		{amount: 11, expected: []uint64{1, 2, 8}},
		{amount: 2048, expected: []uint64{2048}},
		{amount: 0, expected: []uint64{}},
	}

	for _, test := range tests {
		split := AmountSplit(test.amount)
		if !reflect.DeepEqual(split, test.expected) {
			t.Errorf("expected '%v' but got '%v' instead", test.expected, split)
		}
	}
}

func TestAmountSplitProperties(t *testing.T) {
	amounts := []uint64{1, 2, 3, 1337, 21000000, 1<<40 - 1}

	for _, amount := range amounts {
		split := AmountSplit(amount)

		if len(split) != bits.OnesCount64(amount) {
			t.Errorf("expected '%v' amounts but got '%v' instead", bits.OnesCount64(amount), len(split))
		}

		var sum uint64 = 0
		for _, amt := range split {
			if amt&(amt-1) != 0 {
				t.Errorf("amount '%v' is not a power of 2", amt)
			}
			sum += amt
		}
		if sum != amount {
			t.Errorf("split sums to '%v' instead of '%v'", sum, amount)
		}

		if !slices.IsSorted(split) {
			t.Errorf("expected ascending split but got '%v'", split)
		}
	}
}

func TestSplitAmount(t *testing.T) {
	tests := []struct {
		amount   uint64
		targets  SplitTargets
		expected []uint64
	}{
		{amount: 4, targets: SplitTargets{{Amount: 1, Count: 4}},
			expected: []uint64{1, 1, 1, 1}},
		{amount: 4, targets: SplitTargets{{Amount: 2, Count: 1}, {Amount: 1, Count: 2}},
			expected: []uint64{2, 1, 1}},
		{amount: 11, targets: nil, expected: []uint64{1, 2, 8}},
	}

	for _, test := range tests {
		split, err := SplitAmount(test.amount, test.targets)
		if err != nil {
			t.Fatalf("SplitAmount: %v", err)
		}
		if !reflect.DeepEqual(split, test.expected) {
			t.Errorf("expected '%v' but got '%v' instead", test.expected, split)
		}
	}
}

func TestSplitAmountInvalid(t *testing.T) {
	tests := []struct {
		amount  uint64
		targets SplitTargets
	}{
		// not a power of 2
		{amount: 6, targets: SplitTargets{{Amount: 3, Count: 2}}},
		// zero amount
		{amount: 2, targets: SplitTargets{{Amount: 0, Count: 2}}},
		// targets do not sum to amount
		{amount: 8, targets: SplitTargets{{Amount: 2, Count: 2}}},
	}

	for _, test := range tests {
		if _, err := SplitAmount(test.amount, test.targets); !errors.Is(err, ErrInvalidSplit) {
			t.Errorf("expected '%v' but got '%v' instead", ErrInvalidSplit, err)
		}
	}
}

// compressed generator point and multiples, valid points for proofs
const (
	pointG  = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	point2G = "02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
	point3G = "02f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9"
)

func TestDecodeTokenV3(t *testing.T) {
	tokenString := "cashuAeyJ0b2tlbiI6W3sibWludCI6Imh0dHA6Ly9sb2NhbGhvc3Q6MzMzOCIsInByb29mcyI6W3siYW1vdW50IjoyLCJpZCI6IjAwOWExZjI5MzI1M2U0MWUiLCJzZWNyZXQiOiI0MDc5MTViYzIxMmJlNjFhNzdlM2U2ZDJhZWI0YzcyNzk4MGJkYTUxY2QwNmE2YWZjMjllMjg2MTc2OGE3ODM3IiwiQyI6IjAyNzliZTY2N2VmOWRjYmJhYzU1YTA2Mjk1Y2U4NzBiMDcwMjliZmNkYjJkY2UyOGQ5NTlmMjgxNWIxNmY4MTc5OCJ9LHsiYW1vdW50Ijo4LCJpZCI6IjAwOWExZjI5MzI1M2U0MWUiLCJzZWNyZXQiOiJmZTE1MTA5MzE0ZTYxZDc3NTZiMGY4ZWUwZjIzYTYyNGFjYWEzZjRlMDQyZjYxNDMzYzcyOGM3MDU3YjkzMWJlIiwiQyI6IjAyYzYwNDdmOTQ0MWVkN2Q2ZDMwNDU0MDZlOTVjMDdjZDg1Yzc3OGU0YjhjZWYzY2E3YWJhYzA5Yjk1YzcwOWVlNSJ9XX1dLCJ1bml0Ijoic2F0IiwibWVtbyI6IlRoYW5rIHlvdS4ifQ=="

	token, err := DecodeTokenV3(tokenString)
	if err != nil {
		t.Fatalf("DecodeTokenV3: %v", err)
	}

	if token.Mint() != "http://localhost:3338" {
		t.Errorf("expected '%v' but got '%v' instead", "http://localhost:3338", token.Mint())
	}
	if token.Memo != "Thank you." {
		t.Errorf("expected '%v' but got '%v' instead", "Thank you.", token.Memo)
	}
	if token.Amount() != 10 {
		t.Errorf("expected '%v' but got '%v' instead", 10, token.Amount())
	}

	proofs := token.Proofs()
	if len(proofs) != 2 {
		t.Fatalf("expected '%v' proofs but got '%v' instead", 2, len(proofs))
	}
	if proofs[0].Secret != "407915bc212be61a77e3e6d2aeb4c727980bda51cd06a6afc29e2861768a7837" {
		t.Errorf("unexpected secret '%v'", proofs[0].Secret)
	}
	if proofs[1].C != point2G {
		t.Errorf("expected '%v' but got '%v' instead", point2G, proofs[1].C)
	}
}

func TestTokenV3RoundTrip(t *testing.T) {
	proofs := Proofs{
		{Amount: 1, Id: "009a1f293253e41e", Secret: "secret1", C: pointG},
		{Amount: 4, Id: "009a1f293253e41e", Secret: "secret2", C: point3G},
	}

	token, err := NewTokenV3(proofs, "http://localhost:3338", Sat)
	if err != nil {
		t.Fatalf("NewTokenV3: %v", err)
	}

	serialized, err := token.Serialize()
	if err != nil {
		t.Fatalf("error serializing token: %v", err)
	}
	if serialized[:6] != "cashuA" {
		t.Fatalf("serialized token does not have the V3 prefix")
	}

	decoded, err := DecodeTokenV3(serialized)
	if err != nil {
		t.Fatalf("error decoding token: %v", err)
	}
	if !reflect.DeepEqual(*decoded, token) {
		t.Errorf("expected '%v' but got '%v' instead", token, *decoded)
	}
}

func TestDecodeTokenV3Invalid(t *testing.T) {
	tests := []struct {
		name     string
		tokenstr string
	}{
		{name: "wrong prefix", tokenstr: "cashuXeyJ0b2tlbiI6W119"},
		{name: "too short", tokenstr: "cash"},
		{name: "invalid base64", tokenstr: "cashuA!!!not-base64!!!"},
		{name: "invalid json", tokenstr: "cashuAbm90IGpzb24="},
	}

	for _, test := range tests {
		if _, err := DecodeTokenV3(test.tokenstr); err == nil {
			t.Errorf("expected error decoding token with %v", test.name)
		}
	}
}

func TestDecodeTokenV3InvalidPoint(t *testing.T) {
	// x = 0 is not on the curve
	proofs := Proofs{
		{Amount: 1, Id: "009a1f293253e41e", Secret: "secret1",
			C: "020000000000000000000000000000000000000000000000000000000000000000"},
	}
	token, err := NewTokenV3(proofs, "http://localhost:3338", Sat)
	if err != nil {
		t.Fatalf("NewTokenV3: %v", err)
	}
	serialized, err := token.Serialize()
	if err != nil {
		t.Fatalf("error serializing token: %v", err)
	}

	if _, err := DecodeTokenV3(serialized); !errors.Is(err, ErrInvalidPoint) {
		t.Errorf("expected '%v' but got '%v' instead", ErrInvalidPoint, err)
	}
}

func TestDecodeTokenV3DropsEmptyEntries(t *testing.T) {
	token := TokenV3{
		Token: []TokenV3Entry{
			{Mint: "http://localhost:3338", Proofs: Proofs{}},
			{Mint: "http://localhost:3339", Proofs: Proofs{
				{Amount: 2, Id: "009a1f293253e41e", Secret: "secret1", C: pointG},
			}},
		},
		Unit: "sat",
	}

	serialized, err := token.Serialize()
	if err != nil {
		t.Fatalf("error serializing token: %v", err)
	}
	decoded, err := DecodeTokenV3(serialized)
	if err != nil {
		t.Fatalf("error decoding token: %v", err)
	}

	if len(decoded.Token) != 1 {
		t.Fatalf("expected '%v' entries but got '%v' instead", 1, len(decoded.Token))
	}
	if decoded.Token[0].Mint != "http://localhost:3339" {
		t.Errorf("expected '%v' but got '%v' instead", "http://localhost:3339", decoded.Token[0].Mint)
	}
}

func TestCleanToken(t *testing.T) {
	token := TokenV3{
		Token: []TokenV3Entry{
			{Mint: "http://localhost:3338", Proofs: Proofs{
				{Amount: 1, Id: "009a1f293253e41e", Secret: "secret1", C: pointG},
			}},
			{Mint: "http://localhost:3339", Proofs: Proofs{
				{Amount: 2, Id: "009a1f293253e41e", Secret: "secret2", C: point2G},
			}},
			{Mint: "http://localhost:3338", Proofs: Proofs{
				{Amount: 4, Id: "009a1f293253e41e", Secret: "secret3", C: point3G},
			}},
			{Mint: "http://localhost:3340", Proofs: Proofs{}},
		},
		Unit: "sat",
	}

	cleaned := CleanToken(token)

	if len(cleaned.Token) != 2 {
		t.Fatalf("expected '%v' entries but got '%v' instead", 2, len(cleaned.Token))
	}
	if cleaned.Token[0].Mint != "http://localhost:3338" {
		t.Errorf("expected '%v' but got '%v' instead", "http://localhost:3338", cleaned.Token[0].Mint)
	}
	if len(cleaned.Token[0].Proofs) != 2 {
		t.Errorf("expected '%v' proofs but got '%v' instead", 2, len(cleaned.Token[0].Proofs))
	}
	if cleaned.Token[0].Proofs[1].Secret != "secret3" {
		t.Errorf("expected '%v' but got '%v' instead", "secret3", cleaned.Token[0].Proofs[1].Secret)
	}
	if len(cleaned.Token[1].Proofs) != 1 {
		t.Errorf("expected '%v' proofs but got '%v' instead", 1, len(cleaned.Token[1].Proofs))
	}
	if cleaned.Amount() != token.Amount() {
		t.Errorf("expected '%v' but got '%v' instead", token.Amount(), cleaned.Amount())
	}
}

func TestTokenV4RoundTrip(t *testing.T) {
	proofs := Proofs{
		{Amount: 1, Id: "009a1f293253e41e", Secret: "secret1", C: pointG},
		{Amount: 4, Id: "009a1f293253e41e", Secret: "secret2", C: point3G},
	}

	token, err := NewTokenV4(proofs, "http://localhost:3338", Sat)
	if err != nil {
		t.Fatalf("NewTokenV4: %v", err)
	}

	serialized, err := token.Serialize()
	if err != nil {
		t.Fatalf("error serializing token: %v", err)
	}
	if serialized[:6] != "cashuB" {
		t.Fatalf("serialized token does not have the V4 prefix")
	}

	decoded, err := DecodeTokenV4(serialized)
	if err != nil {
		t.Fatalf("error decoding token: %v", err)
	}

	if decoded.Mint() != token.Mint() {
		t.Errorf("expected '%v' but got '%v' instead", token.Mint(), decoded.Mint())
	}
	if !reflect.DeepEqual(decoded.Proofs(), token.Proofs()) {
		t.Errorf("expected '%v' but got '%v' instead", token.Proofs(), decoded.Proofs())
	}
}

func TestDecodeToken(t *testing.T) {
	proofs := Proofs{
		{Amount: 2, Id: "009a1f293253e41e", Secret: "secret1", C: pointG},
	}

	tokenV3, _ := NewTokenV3(proofs, "http://localhost:3338", Sat)
	serializedV3, _ := tokenV3.Serialize()
	token, err := DecodeToken(serializedV3)
	if err != nil {
		t.Fatalf("DecodeToken: %v", err)
	}
	if _, ok := token.(*TokenV3); !ok {
		t.Error("expected a V3 token")
	}

	tokenV4, _ := NewTokenV4(proofs, "http://localhost:3338", Sat)
	serializedV4, _ := tokenV4.Serialize()
	token, err = DecodeToken(serializedV4)
	if err != nil {
		t.Fatalf("DecodeToken: %v", err)
	}
	if _, ok := token.(*TokenV4); !ok {
		t.Error("expected a V4 token")
	}

	if _, err := DecodeToken("not a token"); err == nil {
		t.Error("expected error decoding invalid token")
	}
}
