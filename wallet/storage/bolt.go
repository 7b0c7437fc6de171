package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nutpouch/nutpouch/cashu"
	"github.com/nutpouch/nutpouch/crypto"
	bolt "go.etcd.io/bbolt"
)

const (
	keysetsBucket  = "keysets"
	proofsBucket   = "proofs"
	invoicesBucket = "invoices"
	walletBucket   = "wallet"

	mnemonicKey = "mnemonic"
)

type BoltDB struct {
	bolt *bolt.DB
}

func InitBolt(path string) (*BoltDB, error) {
	db, err := bolt.Open(filepath.Join(path, "wallet.db"), 0600,
		&bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("error setting up wallet db: %v", err)
	}

	boltdb := &BoltDB{bolt: db}
	if err := boltdb.initWalletBuckets(); err != nil {
		return nil, fmt.Errorf("error setting up wallet db: %v", err)
	}

	return boltdb, nil
}

func (db *BoltDB) initWalletBuckets() error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(proofsBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(keysetsBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(invoicesBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(walletBucket)); err != nil {
			return err
		}
		return nil
	})
}

func (db *BoltDB) Close() error {
	return db.bolt.Close()
}

func (db *BoltDB) SaveMnemonic(mnemonic string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		walletb := tx.Bucket([]byte(walletBucket))
		return walletb.Put([]byte(mnemonicKey), []byte(mnemonic))
	})
}

func (db *BoltDB) GetMnemonic() string {
	var mnemonic string
	db.bolt.View(func(tx *bolt.Tx) error {
		walletb := tx.Bucket([]byte(walletBucket))
		mnemonic = string(walletb.Get([]byte(mnemonicKey)))
		return nil
	})
	return mnemonic
}

// SaveProofs stores the proofs keyed by secret.
func (db *BoltDB) SaveProofs(proofs cashu.Proofs) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		proofsb := tx.Bucket([]byte(proofsBucket))
		for _, proof := range proofs {
			jsonProof, err := json.Marshal(proof)
			if err != nil {
				return fmt.Errorf("invalid proof: %v", err)
			}
			if err := proofsb.Put([]byte(proof.Secret), jsonProof); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *BoltDB) GetProofs() cashu.Proofs {
	proofs := cashu.Proofs{}

	if err := db.bolt.View(func(tx *bolt.Tx) error {
		proofsb := tx.Bucket([]byte(proofsBucket))

		c := proofsb.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var proof cashu.Proof
			if err := json.Unmarshal(v, &proof); err != nil {
				return fmt.Errorf("error getting proofs: %v", err)
			}
			proofs = append(proofs, proof)
		}
		return nil
	}); err != nil {
		return cashu.Proofs{}
	}

	return proofs
}

func (db *BoltDB) DeleteProof(secret string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		proofsb := tx.Bucket([]byte(proofsBucket))
		val := proofsb.Get([]byte(secret))
		if val == nil {
			return errors.New("proof does not exist")
		}
		return proofsb.Delete([]byte(secret))
	})
}

func (db *BoltDB) SaveKeyset(keyset *crypto.WalletKeyset) error {
	jsonKeyset, err := json.Marshal(keyset)
	if err != nil {
		return fmt.Errorf("invalid keyset: %v", err)
	}

	return db.bolt.Update(func(tx *bolt.Tx) error {
		keysetsb := tx.Bucket([]byte(keysetsBucket))
		return keysetsb.Put([]byte(keyset.Id), jsonKeyset)
	})
}

func (db *BoltDB) GetKeysets() map[string]crypto.WalletKeyset {
	keysets := make(map[string]crypto.WalletKeyset)

	db.bolt.View(func(tx *bolt.Tx) error {
		keysetsb := tx.Bucket([]byte(keysetsBucket))

		c := keysetsb.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var keyset crypto.WalletKeyset
			if err := json.Unmarshal(v, &keyset); err != nil {
				return err
			}
			keysets[keyset.Id] = keyset
		}
		return nil
	})

	return keysets
}

func (db *BoltDB) SaveInvoice(invoice Invoice) error {
	jsonInvoice, err := json.Marshal(invoice)
	if err != nil {
		return fmt.Errorf("invalid invoice: %v", err)
	}

	return db.bolt.Update(func(tx *bolt.Tx) error {
		invoicesb := tx.Bucket([]byte(invoicesBucket))
		return invoicesb.Put([]byte(invoice.PaymentRequest), jsonInvoice)
	})
}

func (db *BoltDB) GetInvoice(paymentRequest string) *Invoice {
	var invoice *Invoice

	db.bolt.View(func(tx *bolt.Tx) error {
		invoicesb := tx.Bucket([]byte(invoicesBucket))
		invoiceBytes := invoicesb.Get([]byte(paymentRequest))
		if invoiceBytes == nil {
			return nil
		}

		var stored Invoice
		if err := json.Unmarshal(invoiceBytes, &stored); err != nil {
			return err
		}
		invoice = &stored
		return nil
	})

	return invoice
}

// IncrementKeysetCounter advances the deterministic derivation counter
// of the keyset by num.
func (db *BoltDB) IncrementKeysetCounter(keysetId string, num uint32) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		keysetsb := tx.Bucket([]byte(keysetsBucket))
		keysetBytes := keysetsb.Get([]byte(keysetId))
		if keysetBytes == nil {
			return errors.New("keyset does not exist")
		}

		var keyset crypto.WalletKeyset
		if err := json.Unmarshal(keysetBytes, &keyset); err != nil {
			return fmt.Errorf("error reading keyset from db: %v", err)
		}

		keyset.Counter += num
		jsonKeyset, err := json.Marshal(&keyset)
		if err != nil {
			return err
		}
		return keysetsb.Put([]byte(keysetId), jsonKeyset)
	})
}

func (db *BoltDB) GetKeysetCounter(keysetId string) uint32 {
	var counter uint32 = 0

	db.bolt.View(func(tx *bolt.Tx) error {
		keysetsb := tx.Bucket([]byte(keysetsBucket))
		keysetBytes := keysetsb.Get([]byte(keysetId))
		if keysetBytes == nil {
			return nil
		}

		var keyset crypto.WalletKeyset
		if err := json.Unmarshal(keysetBytes, &keyset); err != nil {
			return err
		}
		counter = keyset.Counter
		return nil
	})

	return counter
}
