package verifier

import (
	"context"
	"fmt"

	"campus-tickets-backend/algorand"
	"campus-tickets-backend/config"
	"campus-tickets-backend/custody"

	"github.com/spf13/viper"
)

type payLedger interface {
	Pay(ctx context.Context, from *algorand.Account, to string, amountMicros uint64, note string) (string, error)
}

// treasuryFunder pays a fixed top-up from the platform treasury into the
// event's operating account so the check-in call clears minimum balance.
type treasuryFunder struct {
	ledger  payLedger
	custody custody.Store
}

func NewTreasuryFunder(ledger payLedger, keys custody.Store) Funder {
	return &treasuryFunder{ledger: ledger, custody: keys}
}

func (f *treasuryFunder) TopUp(ctx context.Context, eventAppID uint64) error {
	treasury, ok, err := f.custody.Holder(viper.GetString(config.TreasuryAddress))
	if err != nil {
		return fmt.Errorf("topUp: error fetching treasury account: %w", err)
	}
	if !ok {
		return fmt.Errorf("topUp: treasury account not found")
	}

	eventAccount, ok, err := f.custody.EventAccount(eventAppID)
	if err != nil {
		return fmt.Errorf("topUp: error fetching event account: %w", err)
	}
	if !ok {
		return fmt.Errorf("topUp: event operating account not found")
	}

	amount := viper.GetUint64(config.CheckInTopUp)
	if _, err := f.ledger.Pay(ctx, treasury, eventAccount.AccountAddress, amount, "check-in top-up"); err != nil {
		return fmt.Errorf("topUp: %w", err)
	}
	return nil
}
