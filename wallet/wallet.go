// Package wallet ties a profile together: the tracked accounts, the cache
// of their unspent outputs and the scans refreshing it.
package wallet

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pandora-prime/bitcoin-pro/descriptor"
	"github.com/pandora-prime/bitcoin-pro/resolver"
	"github.com/pandora-prime/bitcoin-pro/waddrmgr"
	"github.com/pandora-prime/bitcoin-pro/walletdb"
	"github.com/pandora-prime/bitcoin-pro/walletdb/migration"
	"github.com/pandora-prime/bitcoin-pro/wtxmgr"
)

var (
	// waddrmgrNamespaceKey is the namespace of the tracked accounts.
	waddrmgrNamespaceKey = []byte("waddrmgr")

	// wtxmgrNamespaceKey is the namespace of the unspent output cache.
	wtxmgrNamespaceKey = []byte("wtxmgr")
)

// ErrNoAccounts is returned when rescanning a profile without accounts.
var ErrNoAccounts = errors.New("profile has no accounts to scan")

// Wallet is an open profile.
type Wallet struct {
	db          walletdb.DB
	chainParams *chaincfg.Params

	Manager *waddrmgr.Manager
	TxStore *wtxmgr.Store

	// rescanMtx serializes rescans of the profile.
	rescanMtx sync.Mutex
}

// Create initializes the namespaces of a new profile in db.
func Create(db walletdb.DB, pubPassphrase []byte,
	scrypt *waddrmgr.ScryptOptions, birthday time.Time) error {

	return walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		addrmgrNs, err := tx.CreateTopLevelBucket(waddrmgrNamespaceKey)
		if err != nil {
			return err
		}
		txmgrNs, err := tx.CreateTopLevelBucket(wtxmgrNamespaceKey)
		if err != nil {
			return err
		}

		err = waddrmgr.Create(addrmgrNs, pubPassphrase, scrypt, birthday)
		if err != nil {
			return err
		}
		return wtxmgr.Create(txmgrNs)
	})
}

// Open upgrades the profile in db if needed and opens it.
func Open(db walletdb.DB, pubPassphrase []byte,
	chainParams *chaincfg.Params) (*Wallet, error) {

	err := walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		addrmgrNs := tx.ReadWriteBucket(waddrmgrNamespaceKey)
		if addrmgrNs == nil {
			return fmt.Errorf("missing namespace %s", waddrmgrNamespaceKey)
		}
		return migration.Upgrade(waddrmgr.NewMigrationManager(addrmgrNs))
	})
	if err != nil {
		return nil, err
	}

	w := &Wallet{db: db, chainParams: chainParams}
	err = walletdb.View(db, func(tx walletdb.ReadTx) error {
		var err error
		addrmgrNs := tx.ReadBucket(waddrmgrNamespaceKey)
		w.Manager, err = waddrmgr.Open(addrmgrNs, pubPassphrase, chainParams)
		if err != nil {
			return err
		}

		txmgrNs := tx.ReadBucket(wtxmgrNamespaceKey)
		if txmgrNs == nil {
			return fmt.Errorf("missing namespace %s", wtxmgrNamespaceKey)
		}
		w.TxStore, err = wtxmgr.Open(txmgrNs, chainParams)
		return err
	})
	if err != nil {
		if w.Manager != nil {
			w.Manager.Close()
		}
		return nil, err
	}

	log.Infof("Opened profile (birthday %v)", w.Manager.Birthday())
	return w, nil
}

// ChainParams returns the network of the profile.
func (w *Wallet) ChainParams() *chaincfg.Params {
	return w.chainParams
}

// Database returns the database of the profile.
func (w *Wallet) Database() walletdb.DB {
	return w.db
}

// AddAccount parses generator and starts tracking it under name.
func (w *Wallet) AddAccount(name, generator string,
	opts descriptor.ParseOptions) (*waddrmgr.Account, error) {

	acct, err := waddrmgr.NewAccount(name, generator, opts, time.Now())
	if err != nil {
		return nil, err
	}
	err = walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		ns := tx.ReadWriteBucket(waddrmgrNamespaceKey)
		return w.Manager.PutAccount(ns, acct)
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Tracking account %q: %v", name, acct.Generator)
	return acct, nil
}

// RemoveAccount stops tracking the named account and forgets its cached
// outputs. It returns the number of outputs forgotten.
func (w *Wallet) RemoveAccount(name string) (int, error) {
	var removed int
	err := walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		addrmgrNs := tx.ReadWriteBucket(waddrmgrNamespaceKey)
		acct, err := w.Manager.FetchAccount(addrmgrNs, name)
		if err != nil {
			return err
		}
		if err := w.Manager.DeleteAccount(addrmgrNs, name); err != nil {
			return err
		}

		txmgrNs := tx.ReadWriteBucket(wtxmgrNamespaceKey)
		removed, err = w.TxStore.DeleteDescriptor(txmgrNs,
			acct.Generator.String())
		return err
	})
	return removed, err
}

// ClearCache forgets every cached output along with the sync state. The
// accounts stay tracked.
func (w *Wallet) ClearCache() error {
	err := walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		return w.TxStore.Clear(tx.ReadWriteBucket(wtxmgrNamespaceKey))
	})
	if err != nil {
		return err
	}

	log.Infof("Cleared cached outputs")
	return nil
}

// Accounts returns the tracked accounts in name order.
func (w *Wallet) Accounts() ([]*waddrmgr.Account, error) {
	var accts []*waddrmgr.Account
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		var err error
		accts, err = w.Manager.Accounts(tx.ReadBucket(waddrmgrNamespaceKey))
		return err
	})
	return accts, err
}

// Unspent returns the cached unspent outputs.
func (w *Wallet) Unspent() ([]resolver.Record, error) {
	var records []resolver.Record
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		var err error
		records, err = w.TxStore.Records(tx.ReadBucket(wtxmgrNamespaceKey))
		return err
	})
	return records, err
}

// Balance sums the cached unspent outputs.
func (w *Wallet) Balance() (btcutil.Amount, error) {
	var balance btcutil.Amount
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		var err error
		balance, err = w.TxStore.Balance(tx.ReadBucket(wtxmgrNamespaceKey))
		return err
	})
	return balance, err
}

// SyncState returns the last completed rescan, or nil.
func (w *Wallet) SyncState() (*wtxmgr.SyncState, error) {
	var state *wtxmgr.SyncState
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		var err error
		state, err = w.TxStore.SyncState(tx.ReadBucket(wtxmgrNamespaceKey))
		return err
	})
	return state, err
}

// ChangePassphrase replaces the passphrase protecting the profile.
func (w *Wallet) ChangePassphrase(oldPassphrase, newPassphrase []byte,
	scrypt *waddrmgr.ScryptOptions) error {

	return walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		ns := tx.ReadWriteBucket(waddrmgrNamespaceKey)
		return w.Manager.ChangePassphrase(ns, oldPassphrase,
			newPassphrase, scrypt)
	})
}

// Close releases the key material of the profile. The database is owned by
// the caller.
func (w *Wallet) Close() {
	w.Manager.Close()
}

// RescanConfig configures a rescan.
type RescanConfig struct {
	// Index answers the unspent output queries.
	Index resolver.Index

	Mode resolver.Mode

	// Accounts restricts the rescan to the named accounts. All accounts
	// are scanned when empty.
	Accounts []string

	BatchSize uint32
	CacheSize uint64
	Rand      *rand.Rand
}

// RescanResult summarizes a rescan.
type RescanResult struct {
	// New is the number of outputs not cached before the rescan.
	New int

	// Total is the number of cached outputs after the rescan.
	Total int

	Balance btcutil.Amount
}

// tipHeighter is implemented by indexes able to report the chain tip.
type tipHeighter interface {
	TipHeight() (uint32, error)
}

// Rescan discovers the unspent outputs of the selected accounts and adds
// them to the cache. Outputs found by completed batches are cached even if
// a later batch fails, in which case the error is returned along with the
// partial result.
func (w *Wallet) Rescan(cfg RescanConfig) (*RescanResult, error) {
	w.rescanMtx.Lock()
	defer w.rescanMtx.Unlock()

	generators, err := w.rescanGenerators(cfg.Accounts)
	if err != nil {
		return nil, err
	}
	if len(generators) == 0 {
		return nil, ErrNoAccounts
	}

	scanner, err := resolver.NewScanner(resolver.Config{
		Index:     cfg.Index,
		BatchSize: cfg.BatchSize,
		CacheSize: cfg.CacheSize,
		Rand:      cfg.Rand,
	})
	if err != nil {
		return nil, err
	}

	var set *resolver.Set
	err = walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		var err error
		set, err = w.TxStore.Load(tx.ReadBucket(wtxmgrNamespaceKey))
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Rescanning %d accounts (%v)", len(generators), cfg.Mode)
	found, scanErr := scanner.Scan(set, generators, cfg.Mode)
	if scanErr != nil {
		log.Errorf("Rescan stopped early: %v", scanErr)
	}

	var state *wtxmgr.SyncState
	if scanErr == nil {
		state = &wtxmgr.SyncState{
			Mode:      cfg.Mode.String(),
			Timestamp: time.Now().Unix(),
		}
		if th, ok := cfg.Index.(tipHeighter); ok {
			height, err := th.TipHeight()
			if err != nil {
				log.Warnf("Unable to fetch chain tip: %v", err)
			} else {
				state.Height = height
			}
		}
	}

	var added int
	err = walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		ns := tx.ReadWriteBucket(wtxmgrNamespaceKey)

		var err error
		added, err = w.TxStore.InsertRecords(ns, set.Records())
		if err != nil {
			return err
		}
		if state != nil {
			return w.TxStore.SetSyncState(ns, state)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if added != found {
		log.Warnf("Scan reported %d new outputs but %d were stored",
			found, added)
	}

	result := &RescanResult{
		New:     added,
		Total:   set.Len(),
		Balance: set.Balance(),
	}
	return result, scanErr
}

func (w *Wallet) rescanGenerators(names []string) ([]*descriptor.Generator, error) {
	var generators []*descriptor.Generator
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		ns := tx.ReadBucket(waddrmgrNamespaceKey)
		if len(names) == 0 {
			return w.Manager.ForEachAccount(ns, func(a *waddrmgr.Account) error {
				generators = append(generators, a.Generator)
				return nil
			})
		}
		for _, name := range names {
			acct, err := w.Manager.FetchAccount(ns, name)
			if err != nil {
				return err
			}
			generators = append(generators, acct.Generator)
		}
		return nil
	})
	return generators, err
}
