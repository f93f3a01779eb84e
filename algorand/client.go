package algorand

import (
	"context"
	"fmt"

	"campus-tickets-backend/logger"

	"github.com/algorand/go-algorand-sdk/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/client/v2/common"
	"github.com/algorand/go-algorand-sdk/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/client/v2/indexer"
	"github.com/algorand/go-algorand-sdk/crypto"
	"github.com/algorand/go-algorand-sdk/future"
	"github.com/algorand/go-algorand-sdk/mnemonic"
	"github.com/algorand/go-algorand-sdk/transaction"
	"github.com/algorand/go-algorand-sdk/types"
)

// AppState is the raw global state of one deployed application as the ledger
// reports it. Keys are still base64 encoded; decoding them is the projector's
// job, not the gateway's.
type AppState struct {
	AppID       uint64
	Creator     string
	GlobalState []models.TealKeyValue
}

// Ledger is the gateway to algod and the indexer. Everything that submits a
// transaction waits for confirmation before returning.
type Ledger interface {
	GenerateAccount() (*Account, error)
	Pay(ctx context.Context, from *Account, to string, amountMicros uint64, note string) (string, error)
	ReserveAsset(ctx context.Context, buyer, eventAccount *Account, appID, priceMicros uint64) (uint64, error)
	OptInAsset(ctx context.Context, holder *Account, assetID uint64) error
	TransferAsset(ctx context.Context, from *Account, to string, assetID uint64) (string, error)
	PayAndTransferAsset(ctx context.Context, buyer, seller *Account, amountMicros, assetID uint64) (string, error)
	CallApp(ctx context.Context, caller *Account, appID uint64, args [][]byte, accounts []string, assets []uint64) (string, error)
	ApplicationState(ctx context.Context, appID uint64) (*AppState, error)
	SearchApplications(ctx context.Context) ([]AppState, error)
	AccountAssets(ctx context.Context, address string) (map[uint64]uint64, error)
}

type ledger struct {
	algodAddress   string
	indexerAddress string
	apiKey         string
	minFee         uint64
}

func New(algodAddress, indexerAddress, apiKey string, minFee uint64) Ledger {
	return &ledger{
		algodAddress:   algodAddress,
		indexerAddress: indexerAddress,
		apiKey:         apiKey,
		minFee:         minFee,
	}
}

func (l *ledger) algodClient() (*algod.Client, error) {
	headers := []*common.Header{{Key: "X-API-Key", Value: l.apiKey}}
	c, err := algod.MakeClientWithHeaders(l.algodAddress, "", headers)
	if err != nil {
		return nil, fmt.Errorf("algodClient: error connecting to algod: %w", err)
	}
	return c, nil
}

func (l *ledger) indexerClient() (*indexer.Client, error) {
	headers := []*common.Header{{Key: "X-API-Key", Value: l.apiKey}}
	c, err := indexer.MakeClientWithHeaders(l.indexerAddress, "", headers)
	if err != nil {
		return nil, fmt.Errorf("indexerClient: error connecting to indexer: %w", err)
	}
	return c, nil
}

func (l *ledger) suggestedParams(ctx context.Context, c *algod.Client) (types.SuggestedParams, error) {
	sp, err := c.SuggestedParams().Do(ctx)
	if err != nil {
		return sp, fmt.Errorf("suggestedParams: error getting suggested tx params: %w", err)
	}
	sp.FlatFee = true
	sp.Fee = types.MicroAlgos(l.minFee)
	return sp, nil
}

func (l *ledger) GenerateAccount() (*Account, error) {
	account := crypto.GenerateAccount()
	paraphrase, err := mnemonic.FromPrivateKey(account.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("generateAccount: error generating account: %w", err)
	}

	return &Account{
		AccountAddress:     account.Address.String(),
		PrivateKey:         string(account.PrivateKey),
		SecurityPassphrase: paraphrase,
	}, nil
}

func (l *ledger) Pay(ctx context.Context, from *Account, to string, amountMicros uint64, note string) (string, error) {
	c, err := l.algodClient()
	if err != nil {
		return "", fmt.Errorf("pay: %w", err)
	}

	sp, err := l.suggestedParams(ctx, c)
	if err != nil {
		return "", fmt.Errorf("pay: %w", err)
	}

	txn, err := future.MakePaymentTxn(from.AccountAddress, to, amountMicros, []byte(note), "", sp)
	if err != nil {
		return "", fmt.Errorf("pay: error creating transaction: %w", err)
	}

	txid, err := l.signAndSubmit(ctx, c, txn, from)
	if err != nil {
		return "", fmt.Errorf("pay: %w", err)
	}
	return txid, nil
}

// ReserveAsset is the combined payment-plus-mint step of a purchase: one
// atomic group of the buyer's payment, the buyer's buy_ticket application
// call, and the event account's single-unit asset creation. Either all three
// land or none do. Returns the freshly minted asset id.
func (l *ledger) ReserveAsset(ctx context.Context, buyer, eventAccount *Account, appID, priceMicros uint64) (uint64, error) {
	c, err := l.algodClient()
	if err != nil {
		return 0, fmt.Errorf("reserveAsset: %w", err)
	}

	sp, err := l.suggestedParams(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("reserveAsset: %w", err)
	}

	pay, err := future.MakePaymentTxn(buyer.AccountAddress, eventAccount.AccountAddress, priceMicros, []byte("ticket purchase"), "", sp)
	if err != nil {
		return 0, fmt.Errorf("reserveAsset: error creating payment: %w", err)
	}

	sender, err := types.DecodeAddress(buyer.AccountAddress)
	if err != nil {
		return 0, fmt.Errorf("reserveAsset: error decoding buyer address: %w", err)
	}

	call, err := future.MakeApplicationNoOpTx(appID, [][]byte{[]byte("buy_ticket")}, nil, nil, nil,
		sp, sender, nil, types.Digest{}, [32]byte{}, types.Address{})
	if err != nil {
		return 0, fmt.Errorf("reserveAsset: error creating app call: %w", err)
	}

	mint, err := future.MakeAssetCreateTxn(eventAccount.AccountAddress, nil, sp,
		1, 0, false,
		eventAccount.AccountAddress, eventAccount.AccountAddress, "", eventAccount.AccountAddress,
		"TICKET", fmt.Sprintf("event-%d-ticket", appID), "", "")
	if err != nil {
		return 0, fmt.Errorf("reserveAsset: error creating mint: %w", err)
	}

	txids, err := l.submitGroup(ctx, c,
		[]types.Transaction{pay, call, mint},
		[]*Account{buyer, buyer, eventAccount})
	if err != nil {
		return 0, fmt.Errorf("reserveAsset: %w", err)
	}

	// The asset id is reported on the mint transaction once confirmed.
	pt, _, err := c.PendingTransactionInformation(txids[2]).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("reserveAsset: error reading mint result: %w", err)
	}
	if pt.AssetIndex == 0 {
		return 0, fmt.Errorf("reserveAsset: mint confirmed but no asset index reported")
	}

	logger.Infof(ctx, "reserveAsset: minted asset %d for app %d", pt.AssetIndex, appID)
	return pt.AssetIndex, nil
}

func (l *ledger) OptInAsset(ctx context.Context, holder *Account, assetID uint64) error {
	c, err := l.algodClient()
	if err != nil {
		return fmt.Errorf("optInAsset: %w", err)
	}

	sp, err := l.suggestedParams(ctx, c)
	if err != nil {
		return fmt.Errorf("optInAsset: %w", err)
	}

	note := []byte(fmt.Sprintf("Opting in from %s", holder.AccountAddress))
	txn, err := future.MakeAssetAcceptanceTxn(holder.AccountAddress, note, sp, assetID)
	if err != nil {
		return fmt.Errorf("optInAsset: error creating acceptance: %w", err)
	}

	if _, err := l.signAndSubmit(ctx, c, txn, holder); err != nil {
		return fmt.Errorf("optInAsset: %w", err)
	}
	return nil
}

func (l *ledger) TransferAsset(ctx context.Context, from *Account, to string, assetID uint64) (string, error) {
	c, err := l.algodClient()
	if err != nil {
		return "", fmt.Errorf("transferAsset: %w", err)
	}

	sp, err := l.suggestedParams(ctx, c)
	if err != nil {
		return "", fmt.Errorf("transferAsset: %w", err)
	}

	txn, err := future.MakeAssetTransferTxn(from.AccountAddress, to, 1, []byte("Transferring asset"), sp, "", assetID)
	if err != nil {
		return "", fmt.Errorf("transferAsset: error creating transfer: %w", err)
	}

	txid, err := l.signAndSubmit(ctx, c, txn, from)
	if err != nil {
		return "", fmt.Errorf("transferAsset: %w", err)
	}
	return txid, nil
}

// PayAndTransferAsset executes a resale settlement: the buyer's payment and
// the seller's ticket transfer as one group, so payment cannot land without
// the ticket moving or the other way round.
func (l *ledger) PayAndTransferAsset(ctx context.Context, buyer, seller *Account, amountMicros, assetID uint64) (string, error) {
	c, err := l.algodClient()
	if err != nil {
		return "", fmt.Errorf("payAndTransferAsset: %w", err)
	}

	sp, err := l.suggestedParams(ctx, c)
	if err != nil {
		return "", fmt.Errorf("payAndTransferAsset: %w", err)
	}

	pay, err := future.MakePaymentTxn(buyer.AccountAddress, seller.AccountAddress, amountMicros, []byte("resale payment"), "", sp)
	if err != nil {
		return "", fmt.Errorf("payAndTransferAsset: error creating payment: %w", err)
	}

	transfer, err := future.MakeAssetTransferTxn(seller.AccountAddress, buyer.AccountAddress, 1, []byte("resale transfer"), sp, "", assetID)
	if err != nil {
		return "", fmt.Errorf("payAndTransferAsset: error creating transfer: %w", err)
	}

	txids, err := l.submitGroup(ctx, c,
		[]types.Transaction{pay, transfer},
		[]*Account{buyer, seller})
	if err != nil {
		return "", fmt.Errorf("payAndTransferAsset: %w", err)
	}
	return txids[0], nil
}

func (l *ledger) CallApp(ctx context.Context, caller *Account, appID uint64, args [][]byte, accounts []string, assets []uint64) (string, error) {
	c, err := l.algodClient()
	if err != nil {
		return "", fmt.Errorf("callApp: %w", err)
	}

	sp, err := l.suggestedParams(ctx, c)
	if err != nil {
		return "", fmt.Errorf("callApp: %w", err)
	}

	sender, err := types.DecodeAddress(caller.AccountAddress)
	if err != nil {
		return "", fmt.Errorf("callApp: error decoding caller address: %w", err)
	}

	txn, err := future.MakeApplicationNoOpTx(appID, args, accounts, nil, assets,
		sp, sender, nil, types.Digest{}, [32]byte{}, types.Address{})
	if err != nil {
		return "", fmt.Errorf("callApp: error creating app call: %w", err)
	}

	txid, err := l.signAndSubmit(ctx, c, txn, caller)
	if err != nil {
		return "", fmt.Errorf("callApp: %w", err)
	}
	return txid, nil
}

func (l *ledger) ApplicationState(ctx context.Context, appID uint64) (*AppState, error) {
	c, err := l.algodClient()
	if err != nil {
		return nil, fmt.Errorf("applicationState: %w", err)
	}

	app, err := c.GetApplicationByID(appID).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("applicationState: error fetching app %d: %w", appID, err)
	}

	return &AppState{
		AppID:       app.Id,
		Creator:     app.Params.Creator,
		GlobalState: app.Params.GlobalState,
	}, nil
}

func (l *ledger) SearchApplications(ctx context.Context) ([]AppState, error) {
	c, err := l.indexerClient()
	if err != nil {
		return nil, fmt.Errorf("searchApplications: %w", err)
	}

	var out []AppState
	var next string
	for {
		q := c.SearchForApplications().Limit(100)
		if next != "" {
			q = q.Next(next)
		}
		res, err := q.Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("searchApplications: error searching applications: %w", err)
		}

		for _, app := range res.Applications {
			out = append(out, AppState{
				AppID:       app.Id,
				Creator:     app.Params.Creator,
				GlobalState: app.Params.GlobalState,
			})
		}

		if res.NextToken == "" || len(res.Applications) == 0 {
			break
		}
		next = res.NextToken
	}

	return out, nil
}

func (l *ledger) AccountAssets(ctx context.Context, address string) (map[uint64]uint64, error) {
	c, err := l.algodClient()
	if err != nil {
		return nil, fmt.Errorf("accountAssets: %w", err)
	}

	act, err := c.AccountInformation(address).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("accountAssets: error fetching account %s: %w", address, err)
	}

	holdings := make(map[uint64]uint64, len(act.Assets))
	for _, h := range act.Assets {
		holdings[h.AssetId] = h.Amount
	}
	return holdings, nil
}

func (l *ledger) signAndSubmit(ctx context.Context, c *algod.Client, txn types.Transaction, signer *Account) (string, error) {
	privateKey, err := mnemonic.ToPrivateKey(signer.SecurityPassphrase)
	if err != nil {
		return "", fmt.Errorf("signAndSubmit: error getting private key from mnemonic: %w", err)
	}

	txid, stx, err := crypto.SignTransaction(privateKey, txn)
	if err != nil {
		return "", fmt.Errorf("signAndSubmit: failed to sign transaction: %w", err)
	}
	logger.Infof(ctx, "Signed txid: %s", txid)

	if _, err := c.SendRawTransaction(stx).Do(ctx); err != nil {
		return "", fmt.Errorf("signAndSubmit: failed to send transaction: %w", err)
	}

	if err := l.waitForConfirmation(ctx, c, txid); err != nil {
		return "", fmt.Errorf("signAndSubmit: %w", err)
	}
	return txid, nil
}

func (l *ledger) submitGroup(ctx context.Context, c *algod.Client, txns []types.Transaction, signers []*Account) ([]string, error) {
	grouped, err := transaction.AssignGroupID(txns, "")
	if err != nil {
		return nil, fmt.Errorf("submitGroup: failed to assign group id: %w", err)
	}

	var blob []byte
	txids := make([]string, len(grouped))
	for i, txn := range grouped {
		privateKey, err := mnemonic.ToPrivateKey(signers[i].SecurityPassphrase)
		if err != nil {
			return nil, fmt.Errorf("submitGroup: error getting private key from mnemonic: %w", err)
		}
		txid, stx, err := crypto.SignTransaction(privateKey, txn)
		if err != nil {
			return nil, fmt.Errorf("submitGroup: failed to sign transaction %d: %w", i, err)
		}
		txids[i] = txid
		blob = append(blob, stx...)
	}

	if _, err := c.SendRawTransaction(blob).Do(ctx); err != nil {
		return nil, fmt.Errorf("submitGroup: failed to send group: %w", err)
	}

	if err := l.waitForConfirmation(ctx, c, txids[0]); err != nil {
		return nil, fmt.Errorf("submitGroup: %w", err)
	}
	return txids, nil
}

// waitForConfirmation blocks until the given transaction is confirmed or the
// pool rejects it.
func (l *ledger) waitForConfirmation(ctx context.Context, c *algod.Client, txID string) error {
	for {
		pt, _, err := c.PendingTransactionInformation(txID).Do(ctx)
		if err != nil {
			return fmt.Errorf("waitForConfirmation: error querying pending transaction: %w", err)
		}
		if pt.PoolError != "" {
			return fmt.Errorf("waitForConfirmation: transaction %s rejected: %s", txID, pt.PoolError)
		}
		if pt.ConfirmedRound > 0 {
			logger.Infof(ctx, "Transaction %s confirmed in round %d", txID, pt.ConfirmedRound)
			return nil
		}

		nodeStatus, err := c.Status().Do(ctx)
		if err != nil {
			return fmt.Errorf("waitForConfirmation: error getting algod status: %w", err)
		}
		if _, err := c.StatusAfterBlock(nodeStatus.LastRound + 1).Do(ctx); err != nil {
			return fmt.Errorf("waitForConfirmation: error waiting for next round: %w", err)
		}
	}
}
