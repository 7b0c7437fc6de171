package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	decodepay "github.com/nbd-wtf/ln-decodepay"
	"github.com/nutpouch/nutpouch/cashu"
	"github.com/nutpouch/nutpouch/wallet"
	"github.com/nutpouch/nutpouch/wallet/storage"
	"github.com/tyler-smith/go-bip39"
	"github.com/urfave/cli/v2"
)

var (
	nutw *wallet.Wallet
	db   storage.WalletDB
)

func walletPath() string {
	homedir, err := os.UserHomeDir()
	if err != nil {
		log.Fatal(err)
	}

	path := filepath.Join(homedir, ".nutpouch", "wallet")
	if err = os.MkdirAll(path, 0700); err != nil {
		log.Fatal(err)
	}
	return path
}

func getMintURL() string {
	mintURL := os.Getenv("MINT_URL")
	if len(mintURL) > 0 {
		return mintURL
	}
	return "http://127.0.0.1:3338"
}

func setupWallet(ctx *cli.Context) error {
	path := walletPath()

	envPath := filepath.Join(path, ".env")
	if _, err := os.Stat(envPath); err == nil {
		godotenv.Load(envPath)
	}

	var err error
	db, err = storage.InitBolt(path)
	if err != nil {
		printErr(err)
	}

	// create a mnemonic on first run so the wallet can be restored
	// from seed later
	mnemonic := db.GetMnemonic()
	if mnemonic == "" {
		entropy, err := bip39.NewEntropy(128)
		if err != nil {
			printErr(err)
		}
		mnemonic, err = bip39.NewMnemonic(entropy)
		if err != nil {
			printErr(err)
		}
		if err := db.SaveMnemonic(mnemonic); err != nil {
			printErr(err)
		}
	}

	config := wallet.Config{MintURL: getMintURL(), Mnemonic: mnemonic}
	nutw, err = wallet.New(wallet.NewHTTPClient(config.MintURL), config)
	if err != nil {
		printErr(err)
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "nutw",
		Usage: "cashu cli wallet",
		Commands: []*cli.Command{
			balanceCmd,
			mintCmd,
			sendCmd,
			receiveCmd,
			payCmd,
			restoreCmd,
			mnemonicCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var balanceCmd = &cli.Command{
	Name:   "balance",
	Before: setupWallet,
	Action: getBalance,
}

func getBalance(ctx *cli.Context) error {
	balance := db.GetProofs().Amount()
	fmt.Printf("%v sats\n", balance)
	return nil
}

var receiveCmd = &cli.Command{
	Name:   "receive",
	Before: setupWallet,
	Action: receive,
}

func receive(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("cashu token not provided"))
	}
	serializedToken := args.First()

	counter := activeKeysetCounter()
	result, err := nutw.ReceiveString(serializedToken, nil, counter)
	if err != nil {
		printErr(err)
	}

	receivedProofs := result.Token.Proofs()
	if err := db.SaveProofs(receivedProofs); err != nil {
		printErr(err)
	}
	advanceCounter(result.OutputCount)

	if result.TokensWithErrors != nil {
		fmt.Println("some token entries could not be redeemed:")
		errToken, _ := result.TokensWithErrors.Serialize()
		fmt.Println(errToken)
	}

	fmt.Printf("%v sats received\n", receivedProofs.Amount())
	return nil
}

const invoiceFlag = "invoice"

var mintCmd = &cli.Command{
	Name:   "mint",
	Before: setupWallet,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  invoiceFlag,
			Usage: "Specify paid invoice to mint tokens",
		},
	},
	Action: mint,
}

func mint(ctx *cli.Context) error {
	// if paid invoice was passed, request tokens from mint
	if ctx.IsSet(invoiceFlag) {
		err := mintTokens(ctx.String(invoiceFlag))
		if err != nil {
			printErr(err)
		}
		return nil
	}

	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify an amount to mint"))
	}
	amountStr := args.First()
	err := requestMint(amountStr)
	if err != nil {
		printErr(err)
	}

	return nil
}

func requestMint(amountStr string) error {
	amount, err := strconv.ParseUint(amountStr, 10, 64)
	if err != nil {
		return errors.New("invalid amount")
	}

	mintResponse, err := nutw.RequestMint(amount)
	if err != nil {
		return err
	}

	invoice := storage.Invoice{
		QuoteId:        mintResponse.Quote,
		PaymentRequest: mintResponse.Request,
		Amount:         amount,
		Expiry:         mintResponse.Expiry,
	}
	if err := db.SaveInvoice(invoice); err != nil {
		return err
	}

	fmt.Printf("invoice: %v\n\n", invoice.PaymentRequest)
	fmt.Println("after paying the invoice you can redeem the ecash using the --invoice flag")
	return nil
}

func mintTokens(paymentRequest string) error {
	invoice := db.GetInvoice(paymentRequest)
	if invoice == nil {
		return errors.New("invoice not found")
	}

	counter := activeKeysetCounter()
	proofs, err := nutw.MintTokens(invoice.QuoteId, invoice.Amount, nil, counter)
	if err != nil {
		return err
	}

	if err := db.SaveProofs(proofs); err != nil {
		return fmt.Errorf("error storing proofs: %v", err)
	}
	advanceCounter(uint32(len(proofs)))

	fmt.Println("tokens successfully minted")
	return nil
}

var sendCmd = &cli.Command{
	Name:   "send",
	Before: setupWallet,
	Action: send,
}

func send(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify an amount to send"))
	}
	amountStr := args.First()
	sendAmount, err := strconv.ParseUint(amountStr, 10, 64)
	if err != nil {
		printErr(err)
	}

	proofs := db.GetProofs()
	counter := activeKeysetCounter()
	result, err := nutw.Send(sendAmount, proofs, nil, counter)
	if err != nil {
		printErr(err)
	}

	// all input proofs were either swapped or returned as change
	for _, proof := range proofs {
		db.DeleteProof(proof.Secret)
	}
	if err := db.SaveProofs(result.ReturnChange); err != nil {
		printErr(err)
	}
	advanceCounter(result.OutputCount)

	token, err := cashu.NewTokenV3(result.Send, nutw.MintURL(), cashu.Sat)
	if err != nil {
		printErr(err)
	}
	serialized, err := token.Serialize()
	if err != nil {
		printErr(err)
	}
	fmt.Printf("%v\n", serialized)
	return nil
}

var payCmd = &cli.Command{
	Name:   "pay",
	Before: setupWallet,
	Action: pay,
}

func pay(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify a lightning invoice to pay"))
	}
	invoice := args.First()

	bolt11, err := decodepay.Decodepay(invoice)
	if err != nil {
		printErr(fmt.Errorf("invalid invoice: %v", err))
	}
	fmt.Printf("paying invoice of %v sats\n", bolt11.MSatoshi/1000)

	quote, err := nutw.RequestMeltQuote(invoice)
	if err != nil {
		printErr(err)
	}

	// swap for proofs summing exactly to the invoice amount plus the
	// fee reserve so nothing beyond the reserve can be overpaid
	amountNeeded := quote.Amount + quote.FeeReserve
	proofs := db.GetProofs()
	counter := activeKeysetCounter()
	swapResult, err := nutw.Send(amountNeeded, proofs, nil, counter)
	if err != nil {
		printErr(err)
	}
	advanceCounter(swapResult.OutputCount)

	for _, proof := range proofs {
		db.DeleteProof(proof.Secret)
	}
	if err := db.SaveProofs(swapResult.ReturnChange); err != nil {
		printErr(err)
	}

	counter = activeKeysetCounter()
	result, err := nutw.Melt(quote, swapResult.Send, counter)
	if err != nil {
		printErr(err)
	}
	advanceCounter(result.OutputCount)

	if result.Paid {
		if err := db.SaveProofs(result.Change); err != nil {
			printErr(err)
		}
	} else {
		// payment did not go through, keep the proofs
		if err := db.SaveProofs(swapResult.Send); err != nil {
			printErr(err)
		}
	}

	fmt.Printf("invoice paid: %v\n", result.Paid)
	return nil
}

var restoreCmd = &cli.Command{
	Name:   "restore",
	Before: setupWallet,
	Action: restore,
}

// scan every keyset of the mint in batches of 100 until 3 consecutive
// batches come back without signatures, keep whatever is unspent
func restore(ctx *cli.Context) error {
	keysetsResponse, err := wallet.NewHTTPClient(getMintURL()).GetKeysets()
	if err != nil {
		printErr(err)
	}

	const batchSize = 100
	restored := cashu.Proofs{}

	for _, keyset := range keysetsResponse.Keysets {
		// ignore keysets with non-hex ids
		if _, err := hex.DecodeString(keyset.Id); err != nil {
			continue
		}

		var start uint32 = 0
		emptyBatches := 0
		for emptyBatches < 3 {
			proofs, err := nutw.Restore(start, batchSize, keyset.Id)
			if err != nil {
				printErr(err)
			}
			start += batchSize

			if len(proofs) == 0 {
				emptyBatches++
				continue
			}
			emptyBatches = 0

			spent, err := nutw.CheckSpent(proofs)
			if err != nil {
				printErr(err)
			}
			spentSecrets := make(map[string]bool, len(spent))
			for _, proof := range spent {
				spentSecrets[proof.Secret] = true
			}
			for _, proof := range proofs {
				if !spentSecrets[proof.Secret] {
					restored = append(restored, proof)
				}
			}
		}

		if keysets := db.GetKeysets(); len(keysets) > 0 {
			if _, ok := keysets[keyset.Id]; ok {
				db.IncrementKeysetCounter(keyset.Id, start)
			}
		}
	}

	if err := db.SaveProofs(restored); err != nil {
		printErr(err)
	}
	fmt.Printf("restored %v sats\n", restored.Amount())
	return nil
}

var mnemonicCmd = &cli.Command{
	Name:   "mnemonic",
	Before: setupWallet,
	Action: mnemonic,
}

func mnemonic(ctx *cli.Context) error {
	fmt.Println(db.GetMnemonic())
	return nil
}

// activeKeysetCounter reads the stored derivation counter for the
// active keyset, saving the keyset on first use
func activeKeysetCounter() *uint32 {
	keyset, err := nutw.ActiveKeyset()
	if err != nil {
		printErr(err)
	}

	keysets := db.GetKeysets()
	if _, ok := keysets[keyset.Id]; !ok {
		if err := db.SaveKeyset(keyset); err != nil {
			printErr(err)
		}
	}

	counter := db.GetKeysetCounter(keyset.Id)
	return &counter
}

func advanceCounter(num uint32) {
	if num == 0 {
		return
	}
	keyset, err := nutw.ActiveKeyset()
	if err != nil {
		printErr(err)
	}
	if err := db.IncrementKeysetCounter(keyset.Id, num); err != nil {
		printErr(err)
	}
}

func printErr(msg error) {
	fmt.Println(msg.Error())
	os.Exit(1)
}
