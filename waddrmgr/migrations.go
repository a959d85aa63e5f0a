package waddrmgr

import (
	"github.com/pandora-prime/bitcoin-pro/walletdb"
	"github.com/pandora-prime/bitcoin-pro/walletdb/migration"
)

// versions lists the layouts of the tracking store. Version 1 is the layout
// written by Create, so it needs no migration.
var versions = []migration.Version{
	{
		Number:    1,
		Migration: nil,
	},
}

// latestMgrVersion is the version Create writes and Open expects.
var latestMgrVersion = migration.LatestVersion(versions)

// MigrationManager exposes the tracking store to migration.Upgrade.
type MigrationManager struct {
	ns walletdb.ReadWriteBucket
}

var _ migration.Manager = (*MigrationManager)(nil)

// NewMigrationManager returns a migration manager for the tracking store
// kept in ns.
func NewMigrationManager(ns walletdb.ReadWriteBucket) *MigrationManager {
	return &MigrationManager{ns: ns}
}

// Name returns a human readable name of the store.
func (m *MigrationManager) Name() string {
	return "tracking store"
}

// Namespace returns the bucket the store lives in.
func (m *MigrationManager) Namespace() walletdb.ReadWriteBucket {
	return m.ns
}

// CurrentVersion returns the stored version of the store.
func (m *MigrationManager) CurrentVersion(ns walletdb.ReadBucket) (uint32, error) {
	if ns == nil {
		ns = m.ns
	}
	return fetchManagerVersion(ns)
}

// SetVersion records version as the stored version of the store.
func (m *MigrationManager) SetVersion(ns walletdb.ReadWriteBucket,
	version uint32) error {

	if ns == nil {
		ns = m.ns
	}
	return putManagerVersion(ns, version)
}

// Versions returns all versions of the store.
func (m *MigrationManager) Versions() []migration.Version {
	return versions
}
