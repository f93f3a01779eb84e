package algorand

// Account carries the address and signing material for one ledger account.
// The security passphrase is the 25-word mnemonic the signing key is derived
// from; it only ever comes out of custody, never out of a request body.
type Account struct {
	AccountAddress     string
	PrivateKey         string
	SecurityPassphrase string
}
