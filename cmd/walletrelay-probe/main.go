// Command walletrelay-probe is an interactive soak-testing tool for the
// relay connection engine.
//
// It drives a real websocket relay connection through the full engine
// (state machine, orchestrator, watchdog, resolver, timeout monitor)
// while simulating the wallet side of the session bookkeeping, so
// reconnect and restoration behavior can be exercised by hand against a
// live relay endpoint.
//
// Usage:
//
//	walletrelay-probe [flags]
//
// Flags:
//
//	-relay string      Relay websocket URL (default "ws://127.0.0.1:8080")
//	-wallet string     Wallet type: metamask, trust, rainbow, phantom (default "metamask")
//	-policies string   YAML reconnection policy file (optional)
//	-state-dir string  Directory for the persisted session record
//	-diag string       CBOR diagnostics log file (optional)
//	-log-level string  Log level: debug, info, warn, error (default "info")
//
// Interactive commands:
//
//	connect <chain>            - Connect and await (simulated) approval
//	approve <topic> <address>  - Simulate the wallet approving a session
//	restore <topic> [address]  - Restore a session by identifier
//	seed <topic> <address>     - Seed the offline cache only
//	drop <topic>               - Simulate the wallet deleting a session
//	send <text>                - Seal a payload and send it over the relay
//	lifecycle <state>          - Report resumed | paused | inactive
//	deeplink <uri>             - Deliver a wallet callback URI
//	status                     - Show engine and transport state
//	policy                     - Show the active reconnection policy
//	quit                       - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/walletrelay/walletrelay-go/pkg/deeplink"
	"github.com/walletrelay/walletrelay-go/pkg/engine"
	"github.com/walletrelay/walletrelay-go/pkg/envelope"
	"github.com/walletrelay/walletrelay-go/pkg/lifecycle"
	"github.com/walletrelay/walletrelay-go/pkg/log"
	"github.com/walletrelay/walletrelay-go/pkg/persistence"
	"github.com/walletrelay/walletrelay-go/pkg/transport"
	"github.com/walletrelay/walletrelay-go/pkg/wallet"
)

type config struct {
	RelayURL string
	Wallet   string
	Policies string
	StateDir string
	DiagFile string
	LogLevel string
}

func main() {
	var cfg config
	flag.StringVar(&cfg.RelayURL, "relay", "ws://127.0.0.1:8080", "Relay websocket URL")
	flag.StringVar(&cfg.Wallet, "wallet", "metamask", "Wallet type: metamask, trust, rainbow, phantom")
	flag.StringVar(&cfg.Policies, "policies", "", "YAML reconnection policy file")
	flag.StringVar(&cfg.StateDir, "state-dir", "", "Directory for the persisted session record")
	flag.StringVar(&cfg.DiagFile, "diag", "", "CBOR diagnostics log file")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "walletrelay-probe:", err)
		os.Exit(1)
	}
}

func run(cfg config) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))

	walletType := wallet.ParseType(cfg.Wallet)
	if walletType == wallet.TypeUnknown && cfg.Wallet != "unknown" {
		return fmt.Errorf("unknown wallet type %q", cfg.Wallet)
	}

	policy := wallet.PolicyFor(walletType)
	if cfg.Policies != "" {
		set, err := wallet.LoadPolicies(cfg.Policies)
		if err != nil {
			return fmt.Errorf("load policies: %w", err)
		}
		policy = set.Lookup(walletType)
	}

	var diag log.Logger
	if cfg.DiagFile != "" {
		fileLogger, err := log.NewFileLogger(cfg.DiagFile)
		if err != nil {
			return fmt.Errorf("open diagnostics log: %w", err)
		}
		defer fileLogger.Close()
		diag = fileLogger
		if cfg.LogLevel == "debug" {
			// Mirror the diagnostics stream to the console alongside
			// the durable file.
			diag = log.NewMultiLogger(fileLogger, log.NewSlogAdapter(logger))
		}
	}

	tr := transport.NewWebSocketTransport(transport.Config{
		URL:    cfg.RelayURL,
		Logger: logger,
	})
	defer tr.Close()

	sessions := newSimSessionClient()
	notifier := lifecycle.NewNotifier()
	dispatcher := deeplink.NewDispatcher()

	controllerCfg := engine.ControllerConfig{
		Transport:   tr,
		Sessions:    sessions,
		WalletType:  walletType,
		Policy:      policy,
		Lifecycle:   notifier,
		DeepLinks:   dispatcher,
		Logger:      logger,
		Diagnostics: diag,
	}
	if cfg.StateDir != "" {
		controllerCfg.Store = persistence.NewFileStore(filepath.Join(cfg.StateDir, "session-record.json"))
	}

	ctrl, err := engine.NewController(controllerCfg)
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}
	defer ctrl.Close()

	// Payloads travel sealed even in the probe; the key is throwaway.
	priv, _, err := envelope.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generate envelope key: %w", err)
	}
	_, peerPub, err := envelope.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generate envelope peer key: %w", err)
	}
	key, err := envelope.DeriveSymKey(priv, peerPub)
	if err != nil {
		return fmt.Errorf("derive envelope key: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	probe, err := newProbe(probeDeps{
		ctrl:       ctrl,
		transport:  tr,
		sessions:   sessions,
		notifier:   notifier,
		dispatcher: dispatcher,
		sealer:     envelope.NewSymSealer(key),
		walletType: walletType,
		policy:     policy,
		logger:     logger,
	})
	if err != nil {
		return err
	}
	go probe.run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	return nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
