package waddrmgr

import (
	"fmt"
	"time"

	"github.com/pandora-prime/bitcoin-pro/descriptor"
	"github.com/pandora-prime/bitcoin-pro/walletdb"
)

// MaxAccountNameLen is the longest accepted account name, in bytes.
const MaxAccountNameLen = 255

// Account is a named generator tracked by a profile.
type Account struct {
	Name      string
	Generator *descriptor.Generator

	// StrictOrigin records the parse option the generator was accepted
	// with, so it is parsed the same way when loaded.
	StrictOrigin bool

	Created time.Time
}

// NewAccount parses generator and returns an account for it.
func NewAccount(name, generator string, opts descriptor.ParseOptions,
	created time.Time) (*Account, error) {

	if err := ValidateAccountName(name); err != nil {
		return nil, err
	}
	g, err := descriptor.ParseGenerator(generator, opts)
	if err != nil {
		str := fmt.Sprintf("invalid generator for account %q", name)
		return nil, managerError(ErrInvalidAccount, str, err)
	}
	return &Account{
		Name:         name,
		Generator:    g,
		StrictOrigin: opts.StrictOrigin,
		Created:      created,
	}, nil
}

// ValidateAccountName checks that name can be used for an account.
func ValidateAccountName(name string) error {
	if name == "" {
		str := "accounts may not be named the empty string"
		return managerError(ErrInvalidAccount, str, nil)
	}
	if len(name) > MaxAccountNameLen {
		str := fmt.Sprintf("account name is longer than %d bytes",
			MaxAccountNameLen)
		return managerError(ErrInvalidAccount, str, nil)
	}
	return nil
}

func (m *Manager) checkOpen() error {
	if m.closed {
		return managerError(ErrClosed, "tracking store is closed", nil)
	}
	return nil
}

// PutAccount stores a new account. Names are unique.
func (m *Manager) PutAccount(ns walletdb.ReadWriteBucket, acct *Account) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := ValidateAccountName(acct.Name); err != nil {
		return err
	}
	if acct.Generator == nil {
		str := fmt.Sprintf("account %q has no generator", acct.Name)
		return managerError(ErrInvalidAccount, str, nil)
	}
	if fetchAccountRow(ns, acct.Name) != nil {
		str := fmt.Sprintf("account %q already exists", acct.Name)
		return managerError(ErrDuplicateAccount, str, nil)
	}

	// Cached outputs are keyed by generator, so a generator may only be
	// tracked by one account.
	generator := acct.Generator.String()
	err := forEachAccountRow(ns, func(name string, encrypted []byte) error {
		other, err := m.decryptAccount(name, encrypted)
		if err != nil {
			return err
		}
		if other.Generator.String() == generator {
			str := fmt.Sprintf("generator already tracked by account %q",
				name)
			return managerError(ErrDuplicateAccount, str, nil)
		}
		return nil
	})
	if err != nil {
		return err
	}

	row := serializeAccountRow(&dbAccountRow{
		created:      acct.Created,
		strictOrigin: acct.StrictOrigin,
		generator:    generator,
	})
	encrypted, err := m.cryptoKeyPub.Encrypt(row)
	if err != nil {
		str := fmt.Sprintf("failed to encrypt account %q", acct.Name)
		return managerError(ErrCrypto, str, err)
	}

	log.Debugf("Storing account %q (%s)", acct.Name, acct.Generator.TypeName())
	return putAccountRow(ns, acct.Name, encrypted)
}

// FetchAccount loads the named account.
func (m *Manager) FetchAccount(ns walletdb.ReadBucket, name string) (*Account, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	encrypted := fetchAccountRow(ns, name)
	if encrypted == nil {
		str := fmt.Sprintf("account %q not found", name)
		return nil, managerError(ErrAccountNotFound, str, nil)
	}
	return m.decryptAccount(name, encrypted)
}

// ForEachAccount calls fn with every account in name order.
func (m *Manager) ForEachAccount(ns walletdb.ReadBucket,
	fn func(*Account) error) error {

	m.mtx.RLock()
	defer m.mtx.RUnlock()

	if err := m.checkOpen(); err != nil {
		return err
	}
	return forEachAccountRow(ns, func(name string, encrypted []byte) error {
		acct, err := m.decryptAccount(name, encrypted)
		if err != nil {
			return err
		}
		return fn(acct)
	})
}

// Accounts returns all accounts in name order.
func (m *Manager) Accounts(ns walletdb.ReadBucket) ([]*Account, error) {
	var accts []*Account
	err := m.ForEachAccount(ns, func(acct *Account) error {
		accts = append(accts, acct)
		return nil
	})
	return accts, err
}

// DeleteAccount removes the named account.
func (m *Manager) DeleteAccount(ns walletdb.ReadWriteBucket, name string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if err := m.checkOpen(); err != nil {
		return err
	}
	if fetchAccountRow(ns, name) == nil {
		str := fmt.Sprintf("account %q not found", name)
		return managerError(ErrAccountNotFound, str, nil)
	}
	return deleteAccountRow(ns, name)
}

func (m *Manager) decryptAccount(name string, encrypted []byte) (*Account, error) {
	serialized, err := m.cryptoKeyPub.Decrypt(encrypted)
	if err != nil {
		str := fmt.Sprintf("failed to decrypt account %q", name)
		return nil, managerError(ErrCrypto, str, err)
	}
	row, err := deserializeAccountRow(name, serialized)
	if err != nil {
		return nil, err
	}

	opts := descriptor.ParseOptions{StrictOrigin: row.strictOrigin}
	g, err := descriptor.ParseGenerator(row.generator, opts)
	if err != nil {
		str := fmt.Sprintf("stored generator of account %q is invalid",
			name)
		return nil, managerError(ErrDatabase, str, err)
	}
	return &Account{
		Name:         name,
		Generator:    g,
		StrictOrigin: row.strictOrigin,
		Created:      row.created,
	}, nil
}
