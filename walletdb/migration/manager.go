package migration

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pandora-prime/bitcoin-pro/walletdb"
)

// ErrReversion is returned when the stored version is above the latest
// version a manager knows about.
var ErrReversion = errors.New("reverting to a previous version is not " +
	"supported")

// Version is a numbered upgrade step for a namespace.
type Version struct {
	Number    uint32
	Migration func(bucket walletdb.ReadWriteBucket) error
}

// Manager describes the versioned state of one namespace of the database.
type Manager interface {
	// Name identifies the manager in logs.
	Name() string

	// Namespace returns the top level bucket of the manager.
	Namespace() walletdb.ReadWriteBucket

	// CurrentVersion returns the stored version. A nil bucket means the
	// namespace of the manager itself.
	CurrentVersion(walletdb.ReadBucket) (uint32, error)

	// SetVersion records a new version.
	SetVersion(walletdb.ReadWriteBucket, uint32) error

	// Versions returns all known versions.
	Versions() []Version
}

// LatestVersion returns the highest version number in versions.
func LatestVersion(versions []Version) uint32 {
	var latest uint32
	for _, v := range versions {
		if v.Number > latest {
			latest = v.Number
		}
	}
	return latest
}

// VersionsToApply returns the versions above current in ascending order.
func VersionsToApply(current uint32, versions []Version) []Version {
	var upgrades []Version
	for _, v := range versions {
		if v.Number > current {
			upgrades = append(upgrades, v)
		}
	}
	sort.Slice(upgrades, func(i, j int) bool {
		return upgrades[i].Number < upgrades[j].Number
	})
	return upgrades
}

// Upgrade applies the pending versions of every manager. It must run inside
// the read-write transaction the managers' namespaces belong to.
func Upgrade(mgrs ...Manager) error {
	for _, mgr := range mgrs {
		if err := upgrade(mgr); err != nil {
			return err
		}
	}
	return nil
}

func upgrade(mgr Manager) error {
	ns := mgr.Namespace()
	current, err := mgr.CurrentVersion(ns)
	if err != nil {
		return err
	}

	versions := mgr.Versions()
	latest := LatestVersion(versions)
	switch {
	case current == latest:
		return nil
	case current > latest:
		return fmt.Errorf("%s: %w (stored %d, latest %d)", mgr.Name(),
			ErrReversion, current, latest)
	}

	log.Infof("Upgrading %s from version %d to %d", mgr.Name(), current,
		latest)
	for _, v := range VersionsToApply(current, versions) {
		if v.Migration != nil {
			if err := v.Migration(ns); err != nil {
				return fmt.Errorf("%s migration to version %d: %w",
					mgr.Name(), v.Number, err)
			}
		}
		if err := mgr.SetVersion(ns, v.Number); err != nil {
			return err
		}
	}
	return nil
}
