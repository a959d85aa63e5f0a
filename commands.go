package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pandora-prime/bitcoin-pro/chain"
	"github.com/pandora-prime/bitcoin-pro/descriptor"
	"github.com/pandora-prime/bitcoin-pro/internal/prompt"
	"github.com/pandora-prime/bitcoin-pro/resolver"
	"github.com/pandora-prime/bitcoin-pro/waddrmgr"
	"github.com/pandora-prime/bitcoin-pro/wallet"
	"github.com/pandora-prime/bitcoin-pro/walletdb"
)

// stdout receives command results. Logs go to stderr.
var stdout io.Writer = os.Stdout

var stdin = bufio.NewReader(os.Stdin)

func runCommand(cfg *config, cmds *commands, command string) error {
	switch command {
	case "derive":
		return runDerive(cfg, &cmds.derive)
	case "create":
		return runCreate(cfg)
	}

	loader := wallet.NewLoader(cfg.activeNet.Params, cfg.netDir, true,
		cfg.DBTimeout, nil)
	pass, err := passphrase(cfg, false)
	if err != nil {
		return err
	}
	w, err := loader.OpenExistingWallet(pass)
	if errors.Is(err, walletdb.ErrDbDoesNotExist) {
		return fmt.Errorf("the profile does not exist, run the create " +
			"command to initialize it")
	}
	if err != nil {
		return err
	}
	unload := func() {
		err := loader.UnloadWallet()
		if err != nil && !errors.Is(err, wallet.ErrNotLoaded) {
			log.Errorf("Failed to close profile: %v", err)
		}
	}
	addInterruptHandler(unload)
	defer unload()

	if err := trackAccounts(cfg, w); err != nil {
		return err
	}

	switch command {
	case "accounts":
		return runAccounts(w)
	case "untrack":
		return runUntrack(w, &cmds.untrack)
	case "rescan":
		return runRescan(cfg, w, &cmds.rescan)
	case "unspent":
		return runUnspent(w)
	case "changepass":
		return runChangePass(w, pass)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// passphrase returns the configured profile passphrase or prompts for it.
func passphrase(cfg *config, create bool) ([]byte, error) {
	if cfg.WalletPass != "" {
		return []byte(cfg.WalletPass), nil
	}
	if create {
		return prompt.NewPassphrase(stdin)
	}
	return prompt.ExistingPassphrase(stdin)
}

func parseOptions(cfg *config) descriptor.ParseOptions {
	return descriptor.ParseOptions{StrictOrigin: cfg.StrictOrigin}
}

func runCreate(cfg *config) error {
	loader := wallet.NewLoader(cfg.activeNet.Params, cfg.netDir, true,
		cfg.DBTimeout, nil)
	exists, err := loader.WalletExists()
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("the profile database in %v already exists",
			cfg.netDir)
	}

	pass, err := passphrase(cfg, true)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, "Creating the profile...")
	w, err := loader.CreateNewWallet(pass, time.Now())
	if err != nil {
		return err
	}
	defer loader.UnloadWallet()

	if err := trackAccounts(cfg, w); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "The profile has been created successfully.")
	return nil
}

// trackAccounts adds the --track entries not yet known to the profile. An
// entry reusing the name of an account with another generator is an error.
func trackAccounts(cfg *config, w *wallet.Wallet) error {
	if len(cfg.Track) == 0 {
		return nil
	}

	accts, err := w.Accounts()
	if err != nil {
		return err
	}
	known := make(map[string]*waddrmgr.Account, len(accts))
	for _, acct := range accts {
		known[acct.Name] = acct
	}

	for _, t := range cfg.Track {
		g, err := descriptor.ParseGenerator(t.Generator, parseOptions(cfg))
		if err != nil {
			return fmt.Errorf("invalid generator for %q: %w", t.Name, err)
		}
		if acct, ok := known[t.Name]; ok {
			if acct.Generator.String() != g.String() {
				return fmt.Errorf("account %q already tracks %v",
					t.Name, acct.Generator)
			}
			continue
		}
		if _, err := w.AddAccount(t.Name, t.Generator, parseOptions(cfg)); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Tracking %s: %v\n", t.Name, g)
	}
	return nil
}

func runAccounts(w *wallet.Wallet) error {
	accts, err := w.Accounts()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tSCRIPTS\tGENERATOR\tDESCRIPTOR")
	for _, acct := range accts {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%v\t%s\n", acct.Name,
			acct.Generator.TypeName(), acct.Generator.PkScriptCount(),
			acct.Generator, acct.Generator.Descriptor())
	}
	return tw.Flush()
}

func runUntrack(w *wallet.Wallet, cmd *untrackCommand) error {
	name := cmd.Args.Name
	if !cmd.Force {
		prefix := fmt.Sprintf("Stop tracking %s and forget its cached "+
			"outputs?", name)
		ok, err := prompt.YesNo(stdin, prefix, "no")
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	removed, err := w.RemoveAccount(name)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Stopped tracking %s, %d cached outputs removed\n",
		name, removed)
	return nil
}

// openIndex connects to the configured index backend.
func openIndex(cfg *config) (resolver.Index, func(), error) {
	switch cfg.Backend {
	case backendEsplora:
		c, err := chain.NewEsploraClient(chain.EsploraConfig{
			URL:               cfg.EsploraURL,
			RequestsPerSecond: cfg.EsploraRate,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, func() {}, nil

	case backendBitcoind:
		var certs []byte
		if cfg.RPCTLS {
			var err error
			certs, err = os.ReadFile(cfg.CAFile)
			if err != nil {
				return nil, nil, fmt.Errorf("unable to read "+
					"certificate file: %w", err)
			}
		}
		c, err := chain.NewRPCClient(cfg.activeNet.Params, cfg.RPCConnect,
			cfg.RPCUser, cfg.RPCPass, certs, !cfg.RPCTLS)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Shutdown, nil

	default:
		c, err := chain.NewElectrumClient(chain.ElectrumConfig{
			Addr:       cfg.ElectrumAddr,
			TLS:        cfg.ElectrumTLS,
			SkipVerify: cfg.ElectrumSkipVerify,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, func() { c.Close() }, nil
	}
}

func runRescan(cfg *config, w *wallet.Wallet, cmd *rescanCommand) error {
	index, closeIndex, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer closeIndex()

	if cmd.Reset {
		if err := w.ClearCache(); err != nil {
			return err
		}
	}

	result, err := w.Rescan(wallet.RescanConfig{
		Index:     index,
		Mode:      cfg.Mode.Mode,
		Accounts:  cmd.Accounts,
		BatchSize: cfg.BatchSize,
	})
	if result != nil {
		fmt.Fprintf(stdout, "Found %d new outputs, %d known, balance %v\n",
			result.New, result.Total, result.Balance)
	}
	return err
}

func runUnspent(w *wallet.Wallet) error {
	accts, err := w.Accounts()
	if err != nil {
		return err
	}
	names := make(map[string]string, len(accts))
	for _, acct := range accts {
		names[acct.Generator.String()] = acct.Name
	}

	records, err := w.Unspent()
	if err != nil {
		return err
	}
	balance, err := w.Balance()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tINDEX\tCATEGORY\tHEIGHT\tOUTPUT")
	for _, r := range records {
		name, ok := names[r.Descriptor]
		if !ok {
			name = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%v\t%d\t%v\n", name, r.Index,
			r.Category, r.Height, r)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Balance: %v\n", balance)
	if state, err := w.SyncState(); err == nil && state != nil {
		fmt.Fprintf(stdout, "Last rescan: %v (%s, tip %d)\n",
			time.Unix(state.Timestamp, 0).Format(time.RFC3339),
			state.Mode, state.Height)
	}
	return nil
}

func runChangePass(w *wallet.Wallet, oldPass []byte) error {
	newPass, err := prompt.NewPassphrase(stdin)
	if err != nil {
		return err
	}
	if err := w.ChangePassphrase(oldPass, newPass, nil); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "The passphrase has been changed.")
	return nil
}

// runDerive prints the outputs of a generator without touching a profile.
func runDerive(cfg *config, cmd *deriveCommand) error {
	g, err := descriptor.ParseGenerator(cmd.Args.Generator, parseOptions(cfg))
	if err != nil {
		return err
	}
	to := cmd.To
	if to < cmd.From {
		to = cmd.From
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "# %s: %s, %d scripts per index\n", g.TypeName(),
		g.Descriptor(), g.PkScriptCount())
	for _, key := range g.Template.Keys() {
		if d, ok := key.(*descriptor.DerivationComponents); ok {
			fmt.Fprintf(tw, "# key %s\n", d.CompactString())
		}
	}
	fmt.Fprintln(tw, "INDEX\tCATEGORY\tSCRIPT\tADDRESS")
	for index := cmd.From; ; index++ {
		if !g.Covers(index) {
			fmt.Fprintf(tw, "%d\t-\t-\toutside key ranges\n", index)
			if index == to {
				break
			}
			continue
		}

		outputs, err := g.Outputs(index)
		var catErrs descriptor.CategoryErrors
		switch {
		case errors.As(err, &catErrs):
			for cat, cerr := range catErrs {
				fmt.Fprintf(tw, "%d\t%v\t-\t%v\n", index, cat, cerr)
			}
		case err != nil:
			tw.Flush()
			return err
		}

		for _, cat := range descriptor.Categories {
			out, ok := outputs[cat]
			if !g.HasMatch(cat) || !ok {
				continue
			}
			addr := "-"
			if a, err := out.Address(cfg.activeNet.Params); err == nil {
				addr = a.EncodeAddress()
			}
			fmt.Fprintf(tw, "%d\t%v\t%s\t%s\n", index, cat,
				hex.EncodeToString(out.PkScript()), addr)
		}

		if index == to {
			break
		}
	}
	return tw.Flush()
}
