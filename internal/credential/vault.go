// Package credential resolves account secrets through an external vault.
// The core only consumes this interface; primary storage is the host
// keyring, with a passphrase-encrypted file as fallback when no OS backend
// is available (headless hosts, CI).
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "mailsync"

// Role distinguishes which credential is being requested for an account.
type Role string

const (
	RoleIMAP Role = "imap"
	RoleSMTP Role = "smtp"
)

// Vault resolves and stores account secrets.
type Vault interface {
	Get(accountKey string, role Role) (string, error)
	Set(accountKey string, role Role, secret string) error
	Delete(accountKey string, role Role) error
}

// keyringVault is the default Vault backed by the OS keychain, falling
// back to an encrypted file store.
type keyringVault struct {
	fileDir string
}

// New returns the default Vault implementation. fileDir is where the
// encrypted file backend persists secrets when no OS keychain is present.
func New(fileDir string) Vault {
	return &keyringVault{fileDir: fileDir}
}

func (v *keyringVault) open() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  v.fileDir,
		FilePasswordFunc:         keyring.TerminalPrompt,
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening credential vault: %w", err)
	}
	return ring, nil
}

func itemKey(accountKey string, role Role) string {
	return accountKey + ":" + string(role)
}

// Get retrieves a secret by (accountKey, role) from the vault.
func (v *keyringVault) Get(accountKey string, role Role) (string, error) {
	ring, err := v.open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(itemKey(accountKey, role))
	if err != nil {
		return "", fmt.Errorf("getting credential for %s/%s: %w", accountKey, role, err)
	}
	return string(item.Data), nil
}

// Set stores a secret by (accountKey, role) in the vault.
func (v *keyringVault) Set(accountKey string, role Role, secret string) error {
	ring, err := v.open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  itemKey(accountKey, role),
		Data: []byte(secret),
	})
	if err != nil {
		return fmt.Errorf("setting credential for %s/%s: %w", accountKey, role, err)
	}
	return nil
}

// Delete removes a secret by (accountKey, role) from the vault.
func (v *keyringVault) Delete(accountKey string, role Role) error {
	ring, err := v.open()
	if err != nil {
		return err
	}

	if err := ring.Remove(itemKey(accountKey, role)); err != nil {
		return fmt.Errorf("deleting credential for %s/%s: %w", accountKey, role, err)
	}
	return nil
}
