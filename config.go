package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"
	"github.com/pandora-prime/bitcoin-pro/internal/cfgutil"
	"github.com/pandora-prime/bitcoin-pro/netparams"
	"github.com/pandora-prime/bitcoin-pro/resolver"
)

const (
	defaultConfigFilename = "bpro.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "bpro.log"
	defaultDBTimeout      = 60 * time.Second

	backendElectrum = "electrum"
	backendEsplora  = "esplora"
	backendBitcoind = "bitcoind"
)

var (
	defaultAppDataDir  = btcutil.AppDataDir("bpro", false)
	defaultConfigFile  = filepath.Join(defaultAppDataDir, defaultConfigFilename)
	defaultLogDir      = filepath.Join(defaultAppDataDir, defaultLogDirname)
	bitcoindDefaultDir = btcutil.AppDataDir("bitcoin", false)
)

type config struct {
	// General application behavior
	ConfigFile   *cfgutil.ExplicitString `short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion  bool                    `short:"V" long:"version" description:"Display version information and exit"`
	AppDataDir   *cfgutil.ExplicitString `short:"A" long:"appdata" description:"Application data directory for profile config, databases and logs"`
	TestNet3     bool                    `long:"testnet" description:"Use the test Bitcoin network (version 3) (default mainnet)"`
	SigNet       bool                    `long:"signet" description:"Use the signet test network (default mainnet)"`
	RegTest      bool                    `long:"regtest" description:"Use the regression test network (default mainnet)"`
	DebugLevel   string                  `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	LogDir       string                  `long:"logdir" description:"Directory to log output."`
	DBTimeout    time.Duration           `long:"dbtimeout" description:"The timeout value to use when opening the profile database."`
	WalletPass   string                  `long:"walletpass" default-mask:"-" description:"The profile passphrase -- Prompted for when unset"`
	StrictOrigin bool                    `long:"strictorigin" description:"Reject single keys with a malformed [fingerprint/path] origin instead of dropping the origin"`

	// Tracking and scanning options
	Track     []cfgutil.TrackFlag `long:"track" description:"Track a generator as NAME=GENERATOR -- Can be specified multiple times"`
	Mode      *cfgutil.ModeFlag   `long:"mode" description:"Index scanning mode {while, first<N>, random<N>}"`
	BatchSize uint32              `long:"batchsize" description:"Number of indices queried per batch in while mode"`

	// Index backend options
	Backend            string `long:"backend" choice:"electrum" choice:"esplora" choice:"bitcoind" description:"Blockchain index to query"`
	ElectrumAddr       string `long:"electrum" description:"Hostname/IP and port of the Electrum server (default localhost:50001, testnet: localhost:60001)"`
	ElectrumTLS        bool   `long:"electrumtls" description:"Connect to the Electrum server over TLS"`
	ElectrumSkipVerify bool   `long:"electrumskipverify" description:"Do not verify the certificate of the Electrum server"`
	EsploraURL         string `long:"esplora" description:"Root URL of the Esplora API (default https://blockstream.info/api)"`
	EsploraRate        int    `long:"esplorarate" description:"Maximum number of Esplora requests per second"`
	RPCConnect         string `short:"c" long:"rpcconnect" description:"Hostname/IP and port of the bitcoind RPC server (default localhost:8332, testnet: localhost:18332)"`
	RPCUser            string `long:"rpcuser" description:"Username for bitcoind RPC authentication"`
	RPCPass            string `long:"rpcpass" default-mask:"-" description:"Password for bitcoind RPC authentication"`
	CAFile             string `long:"cafile" description:"File containing root certificates to authenticate a TLS connection with bitcoind"`
	RPCTLS             bool   `long:"rpctls" description:"Use TLS for the bitcoind RPC connection"`

	// Resolved during validation.
	activeNet *netparams.Params
	netDir    string
}

// Commands. Each has its own struct so go-flags scopes its options.
type (
	createCommand struct{}

	accountsCommand struct{}

	untrackCommand struct {
		Force bool `long:"force" description:"Do not ask for confirmation"`
		Args  struct {
			Name string `positional-arg-name:"NAME" required:"yes"`
		} `positional-args:"yes"`
	}

	rescanCommand struct {
		Accounts []string `long:"account" description:"Only rescan the named account -- Can be specified multiple times"`
		Reset    bool     `long:"reset" description:"Forget all cached outputs before scanning"`
	}

	unspentCommand struct{}

	deriveCommand struct {
		From uint32 `long:"from" description:"First index to derive"`
		To   uint32 `long:"to" description:"Last index to derive (default from)"`
		Args struct {
			Generator string `positional-arg-name:"GENERATOR" required:"yes"`
		} `positional-args:"yes"`
	}

	changePassCommand struct{}
)

type commands struct {
	create     createCommand
	accounts   accountsCommand
	untrack    untrackCommand
	rescan     rescanCommand
	unspent    unspentCommand
	derive     deriveCommand
	changePass changePassCommand
}

func defaultConfig() config {
	return config{
		ConfigFile: cfgutil.NewExplicitString(defaultConfigFile),
		AppDataDir: cfgutil.NewExplicitString(defaultAppDataDir),
		DebugLevel: defaultLogLevel,
		LogDir:     defaultLogDir,
		DBTimeout:  defaultDBTimeout,
		Mode:       cfgutil.NewModeFlag(resolver.Mode{Type: resolver.While}),
		BatchSize:  resolver.DefaultBatchSize,
		Backend:    backendElectrum,
	}
}

func newConfigParser(cfg *config, cmds *commands,
	options flags.Options) (*flags.Parser, error) {

	parser := flags.NewParser(cfg, options)
	add := []struct {
		name, short, long string
		data              interface{}
	}{
		{"create", "Create a new profile", "Create the profile database and track the generators given by --track.", &cmds.create},
		{"accounts", "List tracked accounts", "List the tracked accounts with their generators.", &cmds.accounts},
		{"untrack", "Stop tracking an account", "Remove an account and forget its cached outputs.", &cmds.untrack},
		{"rescan", "Discover unspent outputs", "Query the index for the outputs of the tracked accounts using --mode.", &cmds.rescan},
		{"unspent", "List cached unspent outputs", "List the unspent outputs found by previous rescans.", &cmds.unspent},
		{"derive", "Print the outputs of a generator", "Print the scripts and addresses of a generator over an index range. No profile is needed.", &cmds.derive},
		{"changepass", "Change the profile passphrase", "Change the passphrase protecting the profile.", &cmds.changePass},
	}
	for _, c := range add {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			return nil, err
		}
	}
	return parser, nil
}

// networkDir returns the directory name of a network directory to hold
// profile files.
func networkDir(dataDir string, params *netparams.Params) string {
	return filepath.Join(dataDir, params.Name)
}

// loadConfig initializes and parses the config using a config file and
// command line options, and returns it with the name of the command to run.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func loadConfig(args []string) (*config, *commands, string, error) {
	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified. Override any environment
	// variables with parsed command line flags.
	preCfg := defaultConfig()
	preParser, err := newConfigParser(&preCfg, &commands{},
		flags.HelpFlag|flags.PassDoubleDash|flags.IgnoreUnknown)
	if err != nil {
		return nil, nil, "", err
	}
	if _, err := preParser.ParseArgs(args); err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
	}

	// Show the version and exit if the version flag was specified.
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version())
		os.Exit(0)
	}

	// If the config file path has not been modified by user, then we
	// should use the default config file path relative to the appdata
	// directory.
	if !preCfg.ConfigFile.ExplicitlySet() && preCfg.AppDataDir.ExplicitlySet() {
		preCfg.ConfigFile.Value = filepath.Join(preCfg.AppDataDir.Value,
			defaultConfigFilename)
	}

	cfg := defaultConfig()
	cmds := &commands{}
	parser, err := newConfigParser(&cfg, cmds, flags.Default)
	if err != nil {
		return nil, nil, "", err
	}

	// Load additional config from file.
	exists, err := cfgutil.FileExists(preCfg.ConfigFile.Value)
	if err != nil {
		return nil, nil, "", err
	}
	if exists {
		err := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile.Value)
		if err != nil {
			return nil, nil, "", fmt.Errorf("error parsing config "+
				"file: %w", err)
		}
	}

	// Parse command line options again to ensure they take precedence.
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, nil, "", err
	}
	if parser.Active == nil {
		return nil, nil, "", errors.New("no command given, use --help " +
			"to list commands")
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, nil, "", err
	}
	return &cfg, cmds, parser.Active.Name, nil
}

// validateConfig checks the parsed options and fills in the values derived
// from them.
func validateConfig(cfg *config) error {
	// Choose the active network params based on the selected network.
	// Multiple networks can't be selected simultaneously.
	numNets := 0
	cfg.activeNet = &netparams.MainNetParams
	if cfg.TestNet3 {
		cfg.activeNet = &netparams.TestNetParams
		numNets++
	}
	if cfg.SigNet {
		cfg.activeNet = &netparams.SigNetParams
		numNets++
	}
	if cfg.RegTest {
		cfg.activeNet = &netparams.RegressionNetParams
		numNets++
	}
	if numNets > 1 {
		return errors.New("the testnet, signet and regtest params can't " +
			"be used together -- choose one")
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return err
	}

	cfg.AppDataDir.Value = cleanAndExpandPath(cfg.AppDataDir.Value)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.netDir = networkDir(cfg.AppDataDir.Value, cfg.activeNet)

	if cfg.BatchSize == 0 {
		return errors.New("batchsize must be positive")
	}

	seen := make(map[string]struct{}, len(cfg.Track))
	for _, t := range cfg.Track {
		if _, ok := seen[t.Name]; ok {
			return fmt.Errorf("account %q is tracked more than once",
				t.Name)
		}
		seen[t.Name] = struct{}{}
	}

	switch cfg.Backend {
	case backendElectrum:
		if cfg.ElectrumAddr == "" {
			cfg.ElectrumAddr = net.JoinHostPort("localhost",
				cfg.activeNet.ElectrumPort)
		}
		addr, err := normalizeAddress(cfg.ElectrumAddr,
			cfg.activeNet.ElectrumPort)
		if err != nil {
			return err
		}
		cfg.ElectrumAddr = addr

	case backendEsplora:
		if cfg.EsploraURL == "" {
			cfg.EsploraURL = cfg.activeNet.EsploraURL
		}
		if cfg.EsploraURL == "" {
			return fmt.Errorf("no default esplora url for %s, use "+
				"--esplora", cfg.activeNet.Name)
		}

	case backendBitcoind:
		if cfg.RPCConnect == "" {
			cfg.RPCConnect = net.JoinHostPort("localhost",
				cfg.activeNet.RPCPort)
		}
		addr, err := normalizeAddress(cfg.RPCConnect, cfg.activeNet.RPCPort)
		if err != nil {
			return err
		}
		cfg.RPCConnect = addr
		if cfg.RPCTLS && cfg.CAFile == "" {
			cfg.CAFile = filepath.Join(bitcoindDefaultDir, "rpc.cert")
		}
	}

	return nil
}

// normalizeAddress returns addr with the default port appended if no port
// is given.
func normalizeAddress(addr, defaultPort string) (string, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		normalized := net.JoinHostPort(addr, defaultPort)
		if _, _, err := net.SplitHostPort(normalized); err != nil {
			return "", fmt.Errorf("invalid address %q: %w", addr, err)
		}
		return normalized, nil
	}
	return addr, nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}
	// Expand initial ~ to OS specific home directory.
	if path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
