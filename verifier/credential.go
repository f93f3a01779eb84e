package verifier

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	credentialPrefix1 = "ALGO"
	credentialPrefix2 = "TICKET"
	credentialFields  = 5
)

var ErrInvalidCredential = errors.New("invalid credential format")

// Credential is the parsed form of a scanned ticket token.
type Credential struct {
	EventAppID uint64
	AssetID    uint64
	Holder     string
}

// FormatCredential renders the token embedded in a ticket QR code:
// ALGO_TICKET_{eventAppId}_{assetId}_{holderAddress}.
func FormatCredential(eventAppID, assetID uint64, holder string) string {
	return fmt.Sprintf("%s_%s_%d_%d_%s", credentialPrefix1, credentialPrefix2, eventAppID, assetID, holder)
}

// ParseCredential validates the literal prefix tokens and the field count
// before trusting any field. Algorand addresses never contain underscores, so
// a plain split is safe.
func ParseCredential(raw string) (*Credential, error) {
	parts := strings.Split(strings.TrimSpace(raw), "_")
	if len(parts) < credentialFields {
		return nil, ErrInvalidCredential
	}
	if parts[0] != credentialPrefix1 || parts[1] != credentialPrefix2 {
		return nil, ErrInvalidCredential
	}

	eventAppID, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	assetID, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	holder := parts[4]
	if holder == "" {
		return nil, ErrInvalidCredential
	}

	return &Credential{
		EventAppID: eventAppID,
		AssetID:    assetID,
		Holder:     holder,
	}, nil
}
