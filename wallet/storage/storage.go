package storage

import (
	"github.com/nutpouch/nutpouch/cashu"
	"github.com/nutpouch/nutpouch/crypto"
)

type WalletDB interface {
	SaveMnemonic(string) error
	GetMnemonic() string

	SaveProofs(cashu.Proofs) error
	GetProofs() cashu.Proofs
	DeleteProof(secret string) error

	SaveKeyset(*crypto.WalletKeyset) error
	GetKeysets() map[string]crypto.WalletKeyset
	IncrementKeysetCounter(keysetId string, num uint32) error
	GetKeysetCounter(keysetId string) uint32

	SaveInvoice(Invoice) error
	GetInvoice(paymentRequest string) *Invoice

	Close() error
}

// Invoice is a lightning invoice the wallet requested a mint quote
// for, kept until the ecash is redeemed.
type Invoice struct {
	QuoteId        string
	PaymentRequest string
	Amount         uint64
	Expiry         int64
}
