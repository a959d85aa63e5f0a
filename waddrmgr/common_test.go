package waddrmgr

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pandora-prime/bitcoin-pro/walletdb"
	_ "github.com/pandora-prime/bitcoin-pro/walletdb/bdb"
	"github.com/stretchr/testify/require"
)

var (
	pubPassphrase = []byte("_DJr{fL4H0O}*-0\n:V1izc)(6BomK")

	defaultDBTimeout = 10 * time.Second

	waddrmgrNamespaceKey = []byte("waddrmgrNamespace")

	keyG  = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	key2G = "02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"

	testXpub = "xpub68Gmy5EdvgibQVfPdqkBBCHxA5htiqg55crXYuXoQRKfDBFA1WEjWgP6LHhwBZeNK1VTsfTFUHCdrfp1bgwQ9xv5ski8PX9rL2dZXvgGDnw"
)

func checkManagerError(t *testing.T, testName string, gotErr error,
	wantErrCode ErrorCode) bool {

	merr, ok := gotErr.(ManagerError)
	if !ok {
		t.Errorf("%s: unexpected error type - got %T, want %T",
			testName, gotErr, ManagerError{})
		return false
	}
	if merr.ErrorCode != wantErrCode {
		t.Errorf("%s: unexpected error code - got %s (%s), want %s",
			testName, merr.ErrorCode, merr.Description, wantErrCode)
		return false
	}

	return true
}

func emptyDB(t *testing.T) walletdb.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "mgrtest.db")
	db, err := walletdb.Create("bdb", dbPath, true, defaultDBTimeout)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
		_ = os.Remove(dbPath)
	})
	return db
}
