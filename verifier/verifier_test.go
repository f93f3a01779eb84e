package verifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"campus-tickets-backend/algorand"

	"github.com/stretchr/testify/assert"
)

func TestParseCredential(t *testing.T) {
	credential, err := ParseCredential("ALGO_TICKET_42_1001_ABCDEF")
	assert.NoError(t, err)
	assert.Equal(t, uint64(42), credential.EventAppID)
	assert.Equal(t, uint64(1001), credential.AssetID)
	assert.Equal(t, "ABCDEF", credential.Holder)
}

func TestParseCredentialRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"FOO_BAR_1",
		"ALGO_TICKET_42_1001",
		"TICKET_ALGO_42_1001_ABCDEF",
		"ALGO_TICKET_x_1001_ABCDEF",
		"ALGO_TICKET_42_y_ABCDEF",
		"",
	} {
		_, err := ParseCredential(raw)
		assert.ErrorIs(t, err, ErrInvalidCredential, "input %q", raw)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	raw := FormatCredential(42, 1001, "ABCDEF")
	assert.Equal(t, "ALGO_TICKET_42_1001_ABCDEF", raw)
	credential, err := ParseCredential(raw)
	assert.NoError(t, err)
	assert.Equal(t, uint64(42), credential.EventAppID)
}

type fakeCallLedger struct {
	mu      sync.Mutex
	callErr error
	calls   int
	block   chan struct{}
}

func (f *fakeCallLedger) CallApp(ctx context.Context, caller *algorand.Account, appID uint64, args [][]byte, accounts []string, assets []uint64) (string, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.callErr != nil {
		return "", f.callErr
	}
	return "TXID", nil
}

type fakeFunder struct {
	topUps int
	err    error
}

func (f *fakeFunder) TopUp(ctx context.Context, eventAppID uint64) error {
	f.topUps++
	return f.err
}

type fakeCustody struct{}

func (fakeCustody) Holder(address string) (*algorand.Account, bool, error) {
	return &algorand.Account{AccountAddress: address}, true, nil
}

func (fakeCustody) SaveHolder(*algorand.Account) error { return nil }

func (fakeCustody) EventAccount(uint64) (*algorand.Account, bool, error) {
	return &algorand.Account{AccountAddress: "EVENTACCT"}, true, nil
}

func (fakeCustody) SaveEventAccount(uint64, *algorand.Account) error { return nil }

type fakeRegistry struct {
	mu      sync.Mutex
	checked []uint64
}

func (r *fakeRegistry) MarkCheckedIn(ctx context.Context, assetID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checked = append(r.checked, assetID)
	return nil
}

func TestVerifyHappyPath(t *testing.T) {
	ledger := &fakeCallLedger{}
	funder := &fakeFunder{}
	registry := &fakeRegistry{}
	v := New(ledger, funder, fakeCustody{}, registry)

	credential, err := v.Verify(context.Background(), "ALGO_TICKET_42_1001_ABCDEF", 42, "GATE")
	assert.NoError(t, err)
	assert.Equal(t, uint64(1001), credential.AssetID)
	assert.Equal(t, 1, funder.topUps)
	assert.Equal(t, 1, ledger.calls)
	assert.Equal(t, []uint64{1001}, registry.checked)
}

func TestVerifyWrongEvent(t *testing.T) {
	ledger := &fakeCallLedger{}
	funder := &fakeFunder{}
	v := New(ledger, funder, fakeCustody{}, &fakeRegistry{})

	_, err := v.Verify(context.Background(), "ALGO_TICKET_99_1001_ABCDEF", 42, "GATE")
	assert.ErrorIs(t, err, ErrWrongEvent)
	assert.Zero(t, funder.topUps, "a mismatched credential never reaches the ledger")
	assert.Zero(t, ledger.calls)
}

func TestVerifyMalformedHasNoSideEffects(t *testing.T) {
	ledger := &fakeCallLedger{}
	funder := &fakeFunder{}
	v := New(ledger, funder, fakeCustody{}, &fakeRegistry{})

	_, err := v.Verify(context.Background(), "FOO_BAR_1", 42, "GATE")
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.Zero(t, funder.topUps)
	assert.Zero(t, ledger.calls)
}

func TestVerifyClassifiesLedgerRejections(t *testing.T) {
	cases := []struct {
		ledgerErr string
		want      error
	}{
		{"logic eval error: assert failed: ticket already used", ErrAlreadyUsed},
		{"logic eval error: asset not held by claimed holder", ErrNotOwnedByHolder},
		{"logic eval error: sender is not the creator", ErrNotAuthorized},
		{"logic eval error: unauthorized check-in", ErrNotAuthorized},
	}
	for _, c := range cases {
		ledger := &fakeCallLedger{callErr: errors.New(c.ledgerErr)}
		v := New(ledger, &fakeFunder{}, fakeCustody{}, &fakeRegistry{})

		_, err := v.Verify(context.Background(), "ALGO_TICKET_42_1001_ABCDEF", 42, "GATE")
		assert.ErrorIs(t, err, c.want, "ledger error %q", c.ledgerErr)
	}
}

func TestVerifyTruncatesUnknownRejections(t *testing.T) {
	raw := strings.Repeat("x", 500)
	ledger := &fakeCallLedger{callErr: errors.New(raw)}
	v := New(ledger, &fakeFunder{}, fakeCustody{}, &fakeRegistry{})

	_, err := v.Verify(context.Background(), "ALGO_TICKET_42_1001_ABCDEF", 42, "GATE")
	var ledgerErr *LedgerError
	assert.True(t, errors.As(err, &ledgerErr))
	assert.Len(t, ledgerErr.Message, maxDiagnosticLen)
}

func TestVerifySecondScanWhileInFlight(t *testing.T) {
	ledger := &fakeCallLedger{block: make(chan struct{})}
	registry := &fakeRegistry{}
	v := New(ledger, &fakeFunder{}, fakeCustody{}, registry)

	first := make(chan error, 1)
	go func() {
		_, err := v.Verify(context.Background(), "ALGO_TICKET_42_1001_ABCDEF", 42, "GATE")
		first <- err
	}()

	// Wait until the first scan is holding the in-flight flag.
	assert.Eventually(t, func() bool {
		v.mu.Lock()
		defer v.mu.Unlock()
		return v.inFlight["GATE"]
	}, time.Second, time.Millisecond)

	_, err := v.Verify(context.Background(), "ALGO_TICKET_42_1002_ABCDEF", 42, "GATE")
	assert.ErrorIs(t, err, ErrScanInFlight)

	close(ledger.block)
	assert.NoError(t, <-first)
	assert.Equal(t, []uint64{1001}, registry.checked)
}

func TestScanQueueDropsWhilePending(t *testing.T) {
	q := NewScanQueue(time.Millisecond)
	assert.True(t, q.Offer("first"))
	assert.False(t, q.Offer("second"), "only one scan may be pending")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handled := make(chan string, 2)
	go q.Run(ctx, func(ctx context.Context, raw string) {
		handled <- raw
	})

	assert.Equal(t, "first", <-handled)
	assert.Eventually(t, func() bool { return q.Offer("third") }, time.Second, time.Millisecond)
	assert.Equal(t, "third", <-handled)
}

func TestScanQueueDrain(t *testing.T) {
	q := NewScanQueue(time.Millisecond)
	assert.True(t, q.Offer("stale"))
	q.Drain(context.Background())
	assert.True(t, q.Offer("fresh"), "drain must free the slot")
}
