package custody

import (
	"fmt"

	"campus-tickets-backend/algorand"

	"github.com/hashicorp/vault/api"
)

const (
	accountAddress     = "account_address"
	privateKey         = "private_key"
	securityPassphrase = "security_passphrase"
)

// Store is account key custody: holder accounts keyed by address, event
// operating accounts keyed by application id.
type Store interface {
	Holder(address string) (*algorand.Account, bool, error)
	SaveHolder(account *algorand.Account) error
	EventAccount(appID uint64) (*algorand.Account, bool, error)
	SaveEventAccount(appID uint64, account *algorand.Account) error
}

type Vault struct {
	HolderPath string
	EventPath  string
	sealer     *sealer
	*api.Client
}

// New connects to vault, unseals it if needed and ensures both kv mounts
// exist. A non-empty cipherKey additionally seals key material before it is
// written.
func New(token, unsealKey, address, holderPath, eventPath, cipherKey string) (*Vault, error) {
	config := &api.Config{
		Address: address,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("new: error initializing vault: %w", err)
	}

	keySealer, err := newSealer(cipherKey)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	client.SetToken(token)

	s := client.Sys()
	status, err := s.SealStatus()
	if err != nil {
		return nil, fmt.Errorf("new: error getting seal status: %w", err)
	}

	if status.Sealed {
		unsealResponse, err := s.Unseal(unsealKey)
		if err != nil {
			return nil, fmt.Errorf("new: error getting unseal response: %w", err)
		}
		if unsealResponse.Sealed {
			return nil, fmt.Errorf("new: vault unseal unsuccesfull")
		}
	}

	if err := mountIfNotExists(client, holderPath); err != nil {
		return nil, fmt.Errorf("new: unable to mount holder path: %w", err)
	}

	if err := mountIfNotExists(client, eventPath); err != nil {
		return nil, fmt.Errorf("new: unable to mount event path: %w", err)
	}

	return &Vault{HolderPath: holderPath, EventPath: eventPath, sealer: keySealer, Client: client}, nil
}

func (v *Vault) Holder(address string) (*algorand.Account, bool, error) {
	return v.read(fmt.Sprintf("%s/%s", v.HolderPath, address))
}

func (v *Vault) SaveHolder(account *algorand.Account) error {
	return v.write(fmt.Sprintf("%s/%s", v.HolderPath, account.AccountAddress), account)
}

func (v *Vault) EventAccount(appID uint64) (*algorand.Account, bool, error) {
	return v.read(fmt.Sprintf("%s/%d", v.EventPath, appID))
}

func (v *Vault) SaveEventAccount(appID uint64, account *algorand.Account) error {
	return v.write(fmt.Sprintf("%s/%d", v.EventPath, appID), account)
}

func (v *Vault) read(path string) (*algorand.Account, bool, error) {
	secret, err := v.Logical().Read(path)
	if err != nil {
		return nil, false, fmt.Errorf("read: could not read account at %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, false, nil
	}

	address, addressOK := secret.Data[accountAddress]
	if !addressOK {
		return nil, false, fmt.Errorf("read: account address not found")
	}
	key, keyOK := secret.Data[privateKey]
	if !keyOK {
		return nil, false, fmt.Errorf("read: private key not found")
	}
	passphrase, passphraseOK := secret.Data[securityPassphrase]
	if !passphraseOK {
		return nil, false, fmt.Errorf("read: security passphrase not found")
	}

	account := algorand.Account{
		AccountAddress:     address.(string),
		PrivateKey:         key.(string),
		SecurityPassphrase: passphrase.(string),
	}

	if v.sealer != nil {
		if account.PrivateKey, err = v.sealer.open(account.PrivateKey); err != nil {
			return nil, false, fmt.Errorf("read: %w", err)
		}
		if account.SecurityPassphrase, err = v.sealer.open(account.SecurityPassphrase); err != nil {
			return nil, false, fmt.Errorf("read: %w", err)
		}
	}
	return &account, true, nil
}

func (v *Vault) write(path string, account *algorand.Account) error {
	key := account.PrivateKey
	passphrase := account.SecurityPassphrase
	if v.sealer != nil {
		var err error
		if key, err = v.sealer.seal(key); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		if passphrase, err = v.sealer.seal(passphrase); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}

	data := map[string]interface{}{
		accountAddress:     account.AccountAddress,
		privateKey:         key,
		securityPassphrase: passphrase,
	}
	if _, err := v.Logical().Write(path, data); err != nil {
		return fmt.Errorf("write: unable to write account to %s: %w", path, err)
	}
	return nil
}

func mountIfNotExists(client *api.Client, path string) error {
	mounts, err := client.Sys().ListMounts()
	if err != nil {
		return fmt.Errorf("mountIfNotExists: unable to list mounts: %w", err)
	}

	if _, ok := mounts[path+"/"]; !ok {
		err = client.Sys().Mount(path, &api.MountInput{Type: "kv"})
		if err != nil {
			return fmt.Errorf("mountIfNotExists: unable to create path: %w", err)
		}
	}

	return nil
}
