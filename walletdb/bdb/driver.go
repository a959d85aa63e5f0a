package bdb

import (
	"fmt"
	"time"

	"github.com/pandora-prime/bitcoin-pro/walletdb"
)

const dbType = "bdb"

// openArgs are the driver arguments: the database path, whether the
// freelist is left out of syncs, and how long to wait for the file lock.
type openArgs struct {
	path           string
	noFreelistSync bool
	timeout        time.Duration
}

// argAt returns args[i] as a T.
func argAt[T any](funcName string, args []interface{}, i int,
	want string) (T, error) {

	v, ok := args[i].(T)
	if !ok {
		return v, fmt.Errorf("argument %d to %s.%s is invalid -- "+
			"expected %s", i+1, dbType, funcName, want)
	}
	return v, nil
}

func parseArgs(funcName string, args ...interface{}) (*openArgs, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("invalid arguments to %s.%s -- expected "+
			"database path, no-freelist-sync and timeout option",
			dbType, funcName)
	}

	var (
		a   openArgs
		err error
	)
	if a.path, err = argAt[string](funcName, args, 0,
		"database path string"); err != nil {
		return nil, err
	}
	if a.noFreelistSync, err = argAt[bool](funcName, args, 1,
		"no-freelist-sync bool"); err != nil {
		return nil, err
	}
	if a.timeout, err = argAt[time.Duration](funcName, args, 2,
		"timeout time.Duration"); err != nil {
		return nil, err
	}
	return &a, nil
}

func driverFunc(funcName string, create bool) func(...interface{}) (walletdb.DB, error) {
	return func(args ...interface{}) (walletdb.DB, error) {
		a, err := parseArgs(funcName, args...)
		if err != nil {
			return nil, err
		}
		return openDB(a, create)
	}
}

func init() {
	driver := walletdb.Driver{
		DBType: dbType,
		Create: driverFunc("Create", true),
		Open:   driverFunc("Open", false),
	}
	if err := walletdb.RegisterDriver(driver); err != nil {
		panic(fmt.Sprintf("failed to register database driver %q: %v",
			dbType, err))
	}
}
