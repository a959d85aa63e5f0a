package wallet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pandora-prime/bitcoin-pro/waddrmgr"
	"github.com/pandora-prime/bitcoin-pro/walletdb"
	_ "github.com/pandora-prime/bitcoin-pro/walletdb/bdb"
)

const (
	// DBName is the file name of the profile database.
	DBName = "profile.db"

	dbDriver = "bdb"
)

var (
	// ErrLoaded describes the error condition of attempting to load or
	// create a profile when the loader has already done so.
	ErrLoaded = errors.New("profile already loaded")

	// ErrNotLoaded describes the error condition of attempting to close a
	// loaded profile when a profile has not been loaded.
	ErrNotLoaded = errors.New("profile not loaded")

	// ErrExists describes the error condition of attempting to create a new
	// profile when one exists already.
	ErrExists = errors.New("profile already exists")
)

// Loader creates and opens the profile of a data directory. At most one
// profile is loaded at a time.
type Loader struct {
	chainParams    *chaincfg.Params
	dbDirPath      string
	noFreelistSync bool
	timeout        time.Duration
	scrypt         *waddrmgr.ScryptOptions

	wallet *Wallet
	db     walletdb.DB
	mu     sync.Mutex
}

// NewLoader returns a loader for the profile kept in dbDirPath. A nil scrypt
// selects waddrmgr.DefaultScryptOptions for new profiles.
func NewLoader(chainParams *chaincfg.Params, dbDirPath string,
	noFreelistSync bool, timeout time.Duration,
	scrypt *waddrmgr.ScryptOptions) *Loader {

	return &Loader{
		chainParams:    chainParams,
		dbDirPath:      dbDirPath,
		noFreelistSync: noFreelistSync,
		timeout:        timeout,
		scrypt:         scrypt,
	}
}

func (l *Loader) dbPath() string {
	return filepath.Join(l.dbDirPath, DBName)
}

// CreateNewWallet creates a profile protected by pubPassphrase and loads
// it.
func (l *Loader) CreateNewWallet(pubPassphrase []byte,
	birthday time.Time) (*Wallet, error) {

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.wallet != nil {
		return nil, ErrLoaded
	}

	exists, err := l.walletExists()
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrExists
	}

	if err := checkCreateDir(l.dbDirPath); err != nil {
		return nil, err
	}
	db, err := walletdb.Create(dbDriver, l.dbPath(), l.noFreelistSync,
		l.timeout)
	if err != nil {
		return nil, err
	}

	if err := Create(db, pubPassphrase, l.scrypt, birthday); err != nil {
		_ = db.Close()
		_ = os.Remove(l.dbPath())
		return nil, err
	}
	w, err := Open(db, pubPassphrase, l.chainParams)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	l.wallet, l.db = w, db
	return w, nil
}

// OpenExistingWallet opens the profile of the data directory.
func (l *Loader) OpenExistingWallet(pubPassphrase []byte) (*Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.wallet != nil {
		return nil, ErrLoaded
	}

	db, err := walletdb.Open(dbDriver, l.dbPath(), l.noFreelistSync,
		l.timeout)
	if err != nil {
		log.Errorf("Failed to open database: %v", err)
		return nil, err
	}

	w, err := Open(db, pubPassphrase, l.chainParams)
	if err != nil {
		if e := db.Close(); e != nil {
			log.Warnf("Error closing database: %v", e)
		}
		return nil, err
	}

	l.wallet, l.db = w, db
	return w, nil
}

// WalletExists reports whether the data directory holds a profile.
func (l *Loader) WalletExists() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.walletExists()
}

func (l *Loader) walletExists() (bool, error) {
	_, err := os.Stat(l.dbPath())
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}

// LoadedWallet returns the loaded profile, if any.
func (l *Loader) LoadedWallet() (*Wallet, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.wallet, l.wallet != nil
}

// UnloadWallet closes the loaded profile and its database.
func (l *Loader) UnloadWallet() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.wallet == nil {
		return ErrNotLoaded
	}

	l.wallet.Close()
	err := l.db.Close()
	l.wallet, l.db = nil, nil
	return err
}

// checkCreateDir makes sure path is an existing directory.
func checkCreateDir(path string) error {
	fi, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		if err = os.MkdirAll(path, 0700); err != nil {
			return fmt.Errorf("cannot create directory: %w", err)
		}
	case err != nil:
		return fmt.Errorf("error checking directory: %w", err)
	case !fi.IsDir():
		return fmt.Errorf("%s is not a directory", path)
	}

	return nil
}
