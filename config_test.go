package main

import (
	"path/filepath"
	"testing"

	"github.com/pandora-prime/bitcoin-pro/netparams"
	"github.com/pandora-prime/bitcoin-pro/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testArgs points the config at a temp directory without a config file.
func testArgs(t *testing.T, args ...string) []string {
	dir := t.TempDir()
	return append([]string{
		"--appdata", dir,
		"--configfile", filepath.Join(dir, "missing.conf"),
	}, args...)
}

func TestLoadConfigDefaults(t *testing.T) {
	args := testArgs(t, "accounts")
	cfg, _, command, err := loadConfig(args)
	require.NoError(t, err)

	assert.Equal(t, "accounts", command)
	assert.Equal(t, &netparams.MainNetParams, cfg.activeNet)
	assert.Equal(t, filepath.Join(args[1], "mainnet"), cfg.netDir)
	assert.Equal(t, backendElectrum, cfg.Backend)
	assert.Equal(t, "localhost:50001", cfg.ElectrumAddr)
	assert.Equal(t, resolver.While, cfg.Mode.Type)
	assert.EqualValues(t, resolver.DefaultBatchSize, cfg.BatchSize)
}

func TestLoadConfigCommands(t *testing.T) {
	_, cmds, command, err := loadConfig(testArgs(t, "derive", "--from",
		"3", "--to", "5", "segwit<[xpub/0/*]>"))
	require.NoError(t, err)
	assert.Equal(t, "derive", command)
	assert.EqualValues(t, 3, cmds.derive.From)
	assert.EqualValues(t, 5, cmds.derive.To)
	assert.Equal(t, "segwit<[xpub/0/*]>", cmds.derive.Args.Generator)

	_, cmds, command, err = loadConfig(testArgs(t, "rescan", "--account",
		"cold", "--account", "savings"))
	require.NoError(t, err)
	assert.Equal(t, "rescan", command)
	assert.Equal(t, []string{"cold", "savings"}, cmds.rescan.Accounts)
	assert.False(t, cmds.rescan.Reset)

	_, cmds, _, err = loadConfig(testArgs(t, "rescan", "--reset"))
	require.NoError(t, err)
	assert.True(t, cmds.rescan.Reset)

	_, cmds, _, err = loadConfig(testArgs(t, "untrack", "cold"))
	require.NoError(t, err)
	assert.Equal(t, "cold", cmds.untrack.Args.Name)

	_, _, _, err = loadConfig(testArgs(t))
	assert.Error(t, err)
}

func TestLoadConfigTrackAndMode(t *testing.T) {
	cfg, _, _, err := loadConfig(testArgs(t,
		"--track", "cold=segwit<pk=xpub/0/*>",
		"--track", "hot = hashed<xpub/1/*>",
		"--mode", "first20",
		"accounts"))
	require.NoError(t, err)

	require.Len(t, cfg.Track, 2)
	assert.Equal(t, "cold", cfg.Track[0].Name)
	assert.Equal(t, "segwit<pk=xpub/0/*>", cfg.Track[0].Generator)
	assert.Equal(t, "hot", cfg.Track[1].Name)
	assert.Equal(t, resolver.First, cfg.Mode.Type)
	assert.EqualValues(t, 20, cfg.Mode.Count)

	_, _, _, err = loadConfig(testArgs(t,
		"--track", "cold=segwit<xpub/0/*>",
		"--track", "cold=hashed<xpub/0/*>",
		"accounts"))
	assert.ErrorContains(t, err, "tracked more than once")

	_, _, _, err = loadConfig(testArgs(t, "--track", "nogenerator",
		"accounts"))
	assert.Error(t, err)
}

func TestLoadConfigNetworks(t *testing.T) {
	cfg, _, _, err := loadConfig(testArgs(t, "--testnet", "--backend",
		"bitcoind", "accounts"))
	require.NoError(t, err)
	assert.Equal(t, &netparams.TestNetParams, cfg.activeNet)
	assert.Equal(t, "localhost:18332", cfg.RPCConnect)

	cfg, _, _, err = loadConfig(testArgs(t, "--signet", "--backend",
		"esplora", "accounts"))
	require.NoError(t, err)
	assert.Equal(t, netparams.SigNetParams.EsploraURL, cfg.EsploraURL)

	_, _, _, err = loadConfig(testArgs(t, "--regtest", "--backend",
		"esplora", "accounts"))
	assert.ErrorContains(t, err, "no default esplora url")

	_, _, _, err = loadConfig(testArgs(t, "--testnet", "--regtest",
		"accounts"))
	assert.ErrorContains(t, err, "can't be used together")
}

func TestValidateConfigBackends(t *testing.T) {
	cfg := defaultConfig()
	cfg.ElectrumAddr = "electrum.example.com"
	require.NoError(t, validateConfig(&cfg))
	assert.Equal(t, "electrum.example.com:50001", cfg.ElectrumAddr)

	cfg = defaultConfig()
	cfg.Backend = backendBitcoind
	cfg.RPCTLS = true
	require.NoError(t, validateConfig(&cfg))
	assert.Equal(t, "localhost:8332", cfg.RPCConnect)
	assert.Equal(t, filepath.Join(bitcoindDefaultDir, "rpc.cert"),
		cfg.CAFile)

	cfg = defaultConfig()
	cfg.BatchSize = 0
	assert.ErrorContains(t, validateConfig(&cfg), "batchsize")

	cfg = defaultConfig()
	cfg.DebugLevel = "bogus"
	assert.Error(t, validateConfig(&cfg))
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		addr, port, want string
	}{
		{"localhost", "8332", "localhost:8332"},
		{"localhost:1234", "8332", "localhost:1234"},
		{"127.0.0.1", "50001", "127.0.0.1:50001"},
		{"::1", "50001", "[::1]:50001"},
		{"[::1]:9", "50001", "[::1]:9"},
	}
	for _, test := range tests {
		got, err := normalizeAddress(test.addr, test.port)
		require.NoError(t, err, test.addr)
		assert.Equal(t, test.want, got, test.addr)
	}
}

func TestParseAndSetDebugLevels(t *testing.T) {
	defer setLogLevels(defaultLogLevel)

	assert.NoError(t, parseAndSetDebugLevels("debug"))
	assert.NoError(t, parseAndSetDebugLevels("RSLV=trace,CHAN=warn"))

	assert.Error(t, parseAndSetDebugLevels("loud"))
	assert.Error(t, parseAndSetDebugLevels("RSLV=loud"))
	assert.Error(t, parseAndSetDebugLevels("NOPE=debug"))
	assert.Error(t, parseAndSetDebugLevels("RSLV"))
}
