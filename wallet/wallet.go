package wallet

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	decodepay "github.com/nbd-wtf/ln-decodepay"
	"github.com/nutpouch/nutpouch/cashu"
	"github.com/nutpouch/nutpouch/cashu/nuts/nut03"
	"github.com/nutpouch/nutpouch/cashu/nuts/nut04"
	"github.com/nutpouch/nutpouch/cashu/nuts/nut05"
	"github.com/nutpouch/nutpouch/cashu/nuts/nut07"
	"github.com/nutpouch/nutpouch/crypto"
	"github.com/tyler-smith/go-bip39"
)

var (
	ErrInsufficientFunds   = errors.New("insufficient funds for transaction")
	ErrInvalidMnemonic     = errors.New("invalid mnemonic")
	ErrNoSeed              = errors.New("wallet has no seed for deterministic outputs")
	ErrUnknownDenomination = errors.New("keyset has no key for amount")
	ErrLengthMismatch      = errors.New("lengths do not match")
	ErrNoActiveKeyset      = errors.New("no active keyset for unit")
)

type Config struct {
	MintURL string

	// Mnemonic, if set, enables deterministic secrets and blinding
	// factors. With an empty mnemonic outputs are always random and
	// the wallet cannot be restored from seed.
	Mnemonic string
}

// Wallet performs the blinded exchanges with a single mint. It holds no
// proofs itself: operations take the proofs to spend and return the
// proofs created, and the caller persists them along with the
// per-keyset derivation counter. When a counter is passed to an
// operation, the outputs consume the indices [counter, counter+n) in
// planning order; the caller advances its stored counter by n.
type Wallet struct {
	client  MintClient
	mintURL string
	unit    cashu.Unit

	// master key derived from the wallet seed, nil without mnemonic
	masterKey *hdkeychain.ExtendedKey

	// lazily fetched active keyset of the mint
	activeKeyset *crypto.WalletKeyset
}

func New(client MintClient, config Config) (*Wallet, error) {
	wallet := &Wallet{client: client, mintURL: config.MintURL, unit: cashu.Sat}

	if config.Mnemonic != "" {
		if !bip39.IsMnemonicValid(config.Mnemonic) {
			return nil, ErrInvalidMnemonic
		}
		seed := bip39.NewSeed(config.Mnemonic, "")
		masterKey, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
		if err != nil {
			return nil, err
		}
		wallet.masterKey = masterKey
	}

	return wallet, nil
}

func (w *Wallet) MintURL() string {
	return w.mintURL
}

// ActiveKeyset returns the active keyset of the mint for the wallet
// unit, fetching it on first use. The id the mint reports has to match
// the id derived from the keys.
func (w *Wallet) ActiveKeyset() (*crypto.WalletKeyset, error) {
	if w.activeKeyset != nil {
		return w.activeKeyset, nil
	}

	keysetRes, err := w.client.GetKeys("")
	if err != nil {
		return nil, fmt.Errorf("error getting keys from mint: %v", err)
	}

	for _, keyset := range keysetRes.Keysets {
		if keyset.Unit != w.unit.String() {
			continue
		}

		keys, err := crypto.MapPubKeys(keyset.Keys)
		if err != nil {
			return nil, err
		}
		id := crypto.DeriveKeysetId(keys)
		if id != keyset.Id {
			return nil, fmt.Errorf("derived id '%v' but mint reported '%v'", id, keyset.Id)
		}

		w.activeKeyset = &crypto.WalletKeyset{
			Id:         keyset.Id,
			MintURL:    w.mintURL,
			Unit:       keyset.Unit,
			Active:     true,
			PublicKeys: keys,
		}
		return w.activeKeyset, nil
	}

	return nil, ErrNoActiveKeyset
}

// ReceiveResult carries the fresh proofs from the entries that were
// swapped and, if any entry failed, the failed entries untouched so
// the caller can retry them.
type ReceiveResult struct {
	Token            cashu.TokenV3
	TokensWithErrors *cashu.TokenV3

	// number of derivation indices consumed when a counter was passed
	OutputCount uint32
}

// Receive swaps the proofs of every token entry for fresh ones issued
// under the active keyset. Entries that fail to swap do not abort the
// remaining entries; they are collected in TokensWithErrors.
func (w *Wallet) Receive(token cashu.TokenV3, targets cashu.SplitTargets, counter *uint32) (*ReceiveResult, error) {
	activeKeyset, err := w.ActiveKeyset()
	if err != nil {
		return nil, err
	}

	var localCounter *uint32
	if counter != nil {
		c := *counter
		localCounter = &c
	}

	entries := make([]cashu.TokenV3Entry, 0, len(token.Token))
	var failedEntries []cashu.TokenV3Entry
	var outputCount uint32 = 0

	for _, entry := range token.Token {
		if len(entry.Proofs) == 0 {
			continue
		}

		proofs, err := w.swapEntry(entry.Proofs, targets, localCounter, activeKeyset)
		if err != nil {
			failedEntries = append(failedEntries, entry)
			continue
		}
		outputCount += uint32(len(proofs))
		if localCounter != nil {
			*localCounter += uint32(len(proofs))
		}
		entries = append(entries, cashu.TokenV3Entry{Mint: w.mintURL, Proofs: proofs})
	}

	result := &ReceiveResult{
		Token:       cashu.TokenV3{Token: entries, Unit: w.unit.String()},
		OutputCount: outputCount,
	}
	if len(failedEntries) > 0 {
		result.TokensWithErrors = &cashu.TokenV3{
			Token: failedEntries,
			Unit:  token.Unit,
			Memo:  token.Memo,
		}
	}
	return result, nil
}

// ReceiveString decodes the serialized token and receives it.
func (w *Wallet) ReceiveString(tokenstr string, targets cashu.SplitTargets, counter *uint32) (*ReceiveResult, error) {
	token, err := cashu.DecodeToken(tokenstr)
	if err != nil {
		return nil, err
	}

	tokenV3, ok := token.(*cashu.TokenV3)
	if !ok {
		entry := cashu.TokenV3Entry{Mint: token.Mint(), Proofs: token.Proofs()}
		tokenV3 = &cashu.TokenV3{Token: []cashu.TokenV3Entry{entry}, Unit: cashu.Sat.String()}
	}

	return w.Receive(*tokenV3, targets, counter)
}

func (w *Wallet) swapEntry(proofs cashu.Proofs, targets cashu.SplitTargets,
	counter *uint32, activeKeyset *crypto.WalletKeyset) (cashu.Proofs, error) {

	amounts, err := cashu.SplitAmount(proofs.Amount(), targets)
	if err != nil {
		return nil, err
	}

	outputs, secrets, rs, err := w.createBlindedMessages(amounts, activeKeyset.Id, counter)
	if err != nil {
		return nil, err
	}

	swapResponse, err := w.client.Swap(nut03.PostSwapRequest{Inputs: proofs, Outputs: outputs})
	if err != nil {
		return nil, err
	}

	return constructProofs(swapResponse.Signatures, secrets, rs, activeKeyset.PublicKeys)
}

// SendResult splits the input proofs of a send into the proofs to hand
// over, summing to the requested amount, and the change to keep.
type SendResult struct {
	ReturnChange cashu.Proofs
	Send         cashu.Proofs

	// number of derivation indices consumed when a counter was passed
	OutputCount uint32
}

// Send selects proofs in the given order until the requested amount is
// covered and swaps them for a keep group holding the overpay and a
// send group holding the amount. Targets, when given, override amount
// with their weighted sum and fix the denominations of the send group.
// The counter spans the keep group first, then the send group.
func (w *Wallet) Send(amount uint64, proofs cashu.Proofs, targets cashu.SplitTargets, counter *uint32) (*SendResult, error) {
	if len(targets) > 0 {
		amount = targets.Amount()
	}

	var selected, unselected cashu.Proofs
	var selectedAmount uint64 = 0
	for _, proof := range proofs {
		if selectedAmount < amount {
			selected = append(selected, proof)
			selectedAmount += proof.Amount
		} else {
			unselected = append(unselected, proof)
		}
	}
	if selectedAmount < amount {
		return nil, ErrInsufficientFunds
	}

	keepAmount := selectedAmount - amount
	keepAmounts := cashu.AmountSplit(keepAmount)
	sendAmounts, err := cashu.SplitAmount(amount, targets)
	if err != nil {
		return nil, err
	}

	activeKeyset, err := w.ActiveKeyset()
	if err != nil {
		return nil, err
	}

	amounts := make([]uint64, 0, len(keepAmounts)+len(sendAmounts))
	amounts = append(amounts, keepAmounts...)
	amounts = append(amounts, sendAmounts...)

	outputs, secrets, rs, err := w.createBlindedMessages(amounts, activeKeyset.Id, counter)
	if err != nil {
		return nil, err
	}

	swapResponse, err := w.client.Swap(nut03.PostSwapRequest{Inputs: selected, Outputs: outputs})
	if err != nil {
		return nil, err
	}

	swappedProofs, err := constructProofs(swapResponse.Signatures, secrets, rs, activeKeyset.PublicKeys)
	if err != nil {
		return nil, err
	}

	// proofs come back in output order: sum up to the keep amount,
	// the remainder is the send group
	var keepProofs, sendProofs cashu.Proofs
	var keepSum uint64 = 0
	for _, proof := range swappedProofs {
		if keepSum < keepAmount {
			keepProofs = append(keepProofs, proof)
			keepSum += proof.Amount
		} else {
			sendProofs = append(sendProofs, proof)
		}
	}

	return &SendResult{
		ReturnChange: append(keepProofs, unselected...),
		Send:         sendProofs,
		OutputCount:  uint32(len(outputs)),
	}, nil
}

// RequestMint requests a quote to mint the amount.
func (w *Wallet) RequestMint(amount uint64) (*nut04.PostMintQuoteBolt11Response, error) {
	mintRequest := nut04.PostMintQuoteBolt11Request{Amount: amount, Unit: w.unit.String()}
	return w.client.MintQuote(mintRequest)
}

// MintTokens redeems a paid mint quote for proofs summing to amount.
func (w *Wallet) MintTokens(quoteId string, amount uint64, targets cashu.SplitTargets, counter *uint32) (cashu.Proofs, error) {
	activeKeyset, err := w.ActiveKeyset()
	if err != nil {
		return nil, err
	}

	amounts, err := cashu.SplitAmount(amount, targets)
	if err != nil {
		return nil, err
	}

	outputs, secrets, rs, err := w.createBlindedMessages(amounts, activeKeyset.Id, counter)
	if err != nil {
		return nil, err
	}

	mintResponse, err := w.client.Mint(nut04.PostMintBolt11Request{Quote: quoteId, Outputs: outputs})
	if err != nil {
		return nil, err
	}

	return constructProofs(mintResponse.Signatures, secrets, rs, activeKeyset.PublicKeys)
}

// RequestMeltQuote requests a quote to pay the bolt11 invoice. The
// invoice has to carry an amount.
func (w *Wallet) RequestMeltQuote(request string) (*nut05.PostMeltQuoteBolt11Response, error) {
	bolt11, err := decodepay.Decodepay(request)
	if err != nil {
		return nil, fmt.Errorf("invalid invoice: %v", err)
	}
	if bolt11.MSatoshi == 0 {
		return nil, errors.New("invoice has no amount")
	}

	meltRequest := nut05.PostMeltQuoteBolt11Request{Request: request, Unit: w.unit.String()}
	return w.client.MeltQuote(meltRequest)
}

// MeltResult reports whether the invoice of a melt quote was paid and
// carries the proofs for any unused fee reserve the mint returned.
type MeltResult struct {
	Paid     bool
	Preimage string
	Change   cashu.Proofs

	// number of derivation indices consumed when a counter was passed
	OutputCount uint32
}

// Melt pays the quote with the proofs passed, planning blank outputs
// to receive whatever part of the fee reserve goes unused. A mint that
// returns no change yields an empty change list.
func (w *Wallet) Melt(quote *nut05.PostMeltQuoteBolt11Response, proofs cashu.Proofs, counter *uint32) (*MeltResult, error) {
	activeKeyset, err := w.ActiveKeyset()
	if err != nil {
		return nil, err
	}

	outputs, secrets, rs, err := w.createBlankOutputs(quote.FeeReserve, activeKeyset.Id, counter)
	if err != nil {
		return nil, err
	}

	meltRequest := nut05.PostMeltBolt11Request{Quote: quote.Quote, Inputs: proofs, Outputs: outputs}
	meltResponse, err := w.client.Melt(meltRequest)
	if err != nil {
		return nil, err
	}

	change := cashu.Proofs{}
	if len(meltResponse.Change) > 0 {
		if len(meltResponse.Change) > len(outputs) {
			return nil, ErrLengthMismatch
		}
		n := len(meltResponse.Change)
		change, err = constructProofs(meltResponse.Change, secrets[:n], rs[:n], activeKeyset.PublicKeys)
		if err != nil {
			return nil, err
		}
	}

	return &MeltResult{
		Paid:        meltResponse.Paid,
		Preimage:    meltResponse.Preimage,
		Change:      change,
		OutputCount: uint32(len(outputs)),
	}, nil
}

// CheckSpent returns the subset of proofs the mint has marked spent,
// in the order they were passed.
func (w *Wallet) CheckSpent(proofs cashu.Proofs) (cashu.Proofs, error) {
	secrets := make([]string, len(proofs))
	for i, proof := range proofs {
		secrets[i] = proof.Secret
	}

	stateResponse, err := w.client.CheckProofState(nut07.PostCheckStateRequest{Secrets: secrets})
	if err != nil {
		return nil, err
	}

	stateBySecret := make(map[string]nut07.State, len(stateResponse.States))
	for _, proofState := range stateResponse.States {
		stateBySecret[proofState.Secret] = proofState.State
	}

	spent := cashu.Proofs{}
	for _, proof := range proofs {
		if stateBySecret[proof.Secret] == nut07.Spent {
			spent = append(spent, proof)
		}
	}
	return spent, nil
}
