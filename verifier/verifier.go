package verifier

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"campus-tickets-backend/algorand"
	"campus-tickets-backend/custody"
	"campus-tickets-backend/logger"
	"campus-tickets-backend/monitoring"
)

const checkInMethod = "check_in"

// Longest diagnostic echoed back for unrecognized ledger rejections. Raw
// ledger errors carry transaction ids and teal traces that mean nothing to
// the person holding the scanner.
const maxDiagnosticLen = 120

var (
	ErrWrongEvent       = errors.New("credential names a different event")
	ErrAlreadyUsed      = errors.New("ticket already used")
	ErrNotOwnedByHolder = errors.New("ticket not owned by claimed holder")
	ErrNotAuthorized    = errors.New("verifier is not authorized for this event")
	ErrScanInFlight     = errors.New("a verification for this scanner is already in flight")
)

// LedgerError is the fallback classification for a ledger rejection that does
// not match any known pattern. Message is already truncated.
type LedgerError struct {
	Message string
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("check-in rejected by ledger: %s", e.Message)
}

// Ledger is the slice of the gateway the verifier needs.
type Ledger interface {
	CallApp(ctx context.Context, caller *algorand.Account, appID uint64, args [][]byte, accounts []string, assets []uint64) (string, error)
}

// Funder tops up an event's operating account before a check-in call. The
// check-in may grow the application's local bookkeeping past its current
// minimum balance; paying for that is an operational concern, not part of
// the entry rules, so it stays behind its own interface.
type Funder interface {
	TopUp(ctx context.Context, eventAppID uint64) error
}

// Registry records the local mirror of a successful check-in.
type Registry interface {
	MarkCheckedIn(ctx context.Context, assetID uint64) error
}

// Verifier turns a scanned credential into a one-time on-ledger check-in.
// The ledger is the source of truth for "already used" and "not owned"; the
// verifier submits unconditionally and classifies whatever comes back.
type Verifier struct {
	ledger   Ledger
	funder   Funder
	custody  custody.Store
	registry Registry

	mu       sync.Mutex
	inFlight map[string]bool
}

func New(ledger Ledger, funder Funder, keys custody.Store, registry Registry) *Verifier {
	return &Verifier{
		ledger:   ledger,
		funder:   funder,
		custody:  keys,
		registry: registry,
		inFlight: make(map[string]bool),
	}
}

// Verify parses rawScan, checks it against expectedEventID and drives the
// check-in call as the named verifier account. A continuous scanner fires
// many reads per second; while one call for a scanner is outstanding, later
// scans from the same scanner are refused rather than queued.
func (v *Verifier) Verify(ctx context.Context, rawScan string, expectedEventID uint64, verifierAddress string) (*Credential, error) {
	credential, err := ParseCredential(rawScan)
	if err != nil {
		monitoring.CheckInEnded("invalid_format")
		return nil, err
	}
	if credential.EventAppID != expectedEventID {
		monitoring.CheckInEnded("wrong_event")
		return nil, ErrWrongEvent
	}

	if !v.begin(verifierAddress) {
		return nil, ErrScanInFlight
	}
	defer v.end(verifierAddress)

	account, ok, err := v.custody.Holder(verifierAddress)
	if err != nil {
		return nil, fmt.Errorf("verify: error fetching verifier account: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("verify: verifier account not found")
	}

	if err := v.funder.TopUp(ctx, credential.EventAppID); err != nil {
		return nil, fmt.Errorf("verify: could not fund event account: %w", err)
	}

	assetArg := make([]byte, 8)
	binary.BigEndian.PutUint64(assetArg, credential.AssetID)
	_, err = v.ledger.CallApp(ctx, account, credential.EventAppID,
		[][]byte{[]byte(checkInMethod), assetArg},
		[]string{credential.Holder},
		[]uint64{credential.AssetID})
	if err != nil {
		classified := classify(err)
		monitoring.CheckInEnded(outcomeLabel(classified))
		return nil, classified
	}

	if err := v.registry.MarkCheckedIn(ctx, credential.AssetID); err != nil {
		// Already used on ledger, which is what counts. The mirror catches up
		// on the next projection.
		logger.Errorf(ctx, "verify: could not mark asset %d checked in locally: %+v", credential.AssetID, err)
	}
	monitoring.CheckInEnded("checked_in")
	logger.Infof(ctx, "verify: asset %d checked in for event %d by %s", credential.AssetID, credential.EventAppID, verifierAddress)
	return credential, nil
}

func (v *Verifier) begin(scanner string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.inFlight[scanner] {
		return false
	}
	v.inFlight[scanner] = true
	return true
}

func (v *Verifier) end(scanner string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.inFlight, scanner)
}

// classify maps a raw ledger rejection onto the closed set of check-in
// outcomes. The contract rejects with assert messages; matching is on
// substrings because the exact text varies with the node version.
func classify(err error) error {
	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "already"):
		return ErrAlreadyUsed
	case strings.Contains(message, "holder"), strings.Contains(message, "owner"):
		return ErrNotOwnedByHolder
	case strings.Contains(message, "unauthorized"), strings.Contains(message, "creator"):
		return ErrNotAuthorized
	default:
		diagnostic := err.Error()
		if len(diagnostic) > maxDiagnosticLen {
			diagnostic = diagnostic[:maxDiagnosticLen]
		}
		return &LedgerError{Message: diagnostic}
	}
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, ErrNotOwnedByHolder):
		return "not_owned"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	default:
		return "other"
	}
}
