package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/walletrelay/walletrelay-go/pkg/deeplink"
	"github.com/walletrelay/walletrelay-go/pkg/engine"
	"github.com/walletrelay/walletrelay-go/pkg/envelope"
	"github.com/walletrelay/walletrelay-go/pkg/lifecycle"
	"github.com/walletrelay/walletrelay-go/pkg/relay"
	"github.com/walletrelay/walletrelay-go/pkg/transport"
	"github.com/walletrelay/walletrelay-go/pkg/wallet"
)

type probeDeps struct {
	ctrl       *engine.Controller
	transport  *transport.WebSocketTransport
	sessions   *simSessionClient
	notifier   *lifecycle.Notifier
	dispatcher *deeplink.Dispatcher
	sealer     envelope.Sealer
	walletType wallet.Type
	policy     wallet.Policy
	logger     *slog.Logger
}

// probe is the interactive command loop.
type probe struct {
	probeDeps
	rl *readline.Instance
}

func newProbe(deps probeDeps) (*probe, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "probe> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &probe{probeDeps: deps, rl: rl}, nil
}

// run starts the interactive command loop.
func (p *probe) run(ctx context.Context, cancel context.CancelFunc) {
	defer p.rl.Close()

	// Surface status changes between prompts.
	updates, release := p.ctrl.Status()
	defer release()
	go func() {
		for update := range updates {
			fmt.Fprintf(p.rl.Stdout(), "[status] %s: %s (retries %d/%d)\n",
				update.Level, update.Message, update.RetryCount, update.MaxRetries)
		}
	}()

	p.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := p.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(p.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			p.printHelp()

		case "connect":
			p.cmdConnect(ctx, args)

		case "approve":
			p.cmdApprove(args)

		case "restore":
			p.cmdRestore(ctx, args)

		case "seed":
			p.cmdSeed(args)

		case "drop":
			p.cmdDrop(args)

		case "send":
			p.cmdSend(args)

		case "lifecycle":
			p.cmdLifecycle(args)

		case "deeplink":
			p.cmdDeepLink(args)

		case "status":
			p.cmdStatus()

		case "policy":
			p.cmdPolicy()

		case "disconnect":
			p.cmdDisconnect(ctx)

		case "quit", "exit", "q":
			fmt.Fprintln(p.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(p.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (p *probe) cmdConnect(ctx context.Context, args []string) {
	chain := "eip155:1"
	if len(args) > 0 {
		chain = args[0]
	}
	fmt.Fprintf(p.rl.Stdout(), "Connecting for chain %s; run 'approve <topic> <address>' to settle\n", chain)

	go func() {
		record, err := p.ctrl.Connect(ctx, chain)
		if err != nil {
			fmt.Fprintf(p.rl.Stdout(), "connect failed: %v\n", err)
			return
		}
		fmt.Fprintf(p.rl.Stdout(), "session established: topic=%s addresses=%v\n",
			record.Topic, record.Addresses)
	}()
}

func (p *probe) cmdApprove(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(p.rl.Stdout(), "usage: approve <topic> <address>")
		return
	}
	p.sessions.settle(p.simSession(args[0], args[1]))
	fmt.Fprintf(p.rl.Stdout(), "approved session %s\n", args[0])
}

func (p *probe) cmdRestore(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(p.rl.Stdout(), "usage: restore <topic> [address]")
		return
	}
	fallbackAddr := ""
	if len(args) > 1 {
		fallbackAddr = args[1]
	}

	result, err := p.ctrl.RestoreByIdentifier(ctx, args[0], fallbackAddr)
	fmt.Fprintf(p.rl.Stdout(), "restore outcome: %s (matched by %s, migrated %t)\n",
		result.Outcome, result.MatchedBy, result.TopicMigrated)
	if err != nil {
		fmt.Fprintf(p.rl.Stdout(), "restore error: %v\n", err)
	}
}

func (p *probe) cmdSeed(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(p.rl.Stdout(), "usage: seed <topic> <address>")
		return
	}
	p.sessions.seed(p.simSession(args[0], args[1]))
	fmt.Fprintf(p.rl.Stdout(), "seeded offline cache with %s\n", args[0])
}

func (p *probe) cmdDrop(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(p.rl.Stdout(), "usage: drop <topic>")
		return
	}
	p.sessions.drop(args[0])
	fmt.Fprintf(p.rl.Stdout(), "dropped session %s\n", args[0])
}

func (p *probe) cmdSend(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(p.rl.Stdout(), "usage: send <text>")
		return
	}
	sealed, err := p.sealer.Seal([]byte(strings.Join(args, " ")))
	if err != nil {
		fmt.Fprintf(p.rl.Stdout(), "seal failed: %v\n", err)
		return
	}
	if err := p.transport.Send(sealed); err != nil {
		fmt.Fprintf(p.rl.Stdout(), "send failed: %v\n", err)
		return
	}
	fmt.Fprintf(p.rl.Stdout(), "sent %d sealed bytes\n", len(sealed))
}

func (p *probe) cmdLifecycle(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(p.rl.Stdout(), "usage: lifecycle <resumed|paused|inactive>")
		return
	}
	switch strings.ToLower(args[0]) {
	case "resumed":
		p.notifier.Set(lifecycle.StateResumed)
	case "paused":
		p.notifier.Set(lifecycle.StatePaused)
	case "inactive":
		p.notifier.Set(lifecycle.StateInactive)
	default:
		fmt.Fprintf(p.rl.Stdout(), "unknown lifecycle state %q\n", args[0])
		return
	}
	fmt.Fprintf(p.rl.Stdout(), "lifecycle: %s\n", p.notifier.Current())
}

func (p *probe) cmdDeepLink(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(p.rl.Stdout(), "usage: deeplink <uri>")
		return
	}
	if err := p.dispatcher.Dispatch(p.walletType.String(), args[0]); err != nil {
		fmt.Fprintf(p.rl.Stdout(), "deeplink failed: %v\n", err)
		return
	}
	fmt.Fprintln(p.rl.Stdout(), "deeplink delivered")
}

func (p *probe) cmdStatus() {
	out := p.rl.Stdout()
	fmt.Fprintf(out, "Wallet:         %s\n", p.walletType)
	fmt.Fprintf(out, "Transport:      connected=%t\n", p.transport.IsConnected())
	fmt.Fprintf(out, "Lifecycle:      %s\n", p.notifier.Current())
	if record := p.ctrl.Record(); record != nil {
		fmt.Fprintf(out, "Session record: topic=%s chain=%s lastUsed=%s\n",
			record.Topic, record.Chain, record.LastUsedAt.Format(time.RFC3339))
	} else {
		fmt.Fprintln(out, "Session record: none")
	}
	approval := p.ctrl.Approval()
	fmt.Fprintf(out, "Approval:       waiting=%t softTimeout=%t backgroundAttempts=%d\n",
		approval.IsWaitingForApproval, approval.SoftTimeoutOccurred,
		approval.BackgroundReconnectAttempts)
}

func (p *probe) cmdPolicy() {
	out := p.rl.Stdout()
	fmt.Fprintf(out, "Reconnect timeouts:      %v\n", p.policy.ReconnectTimeouts)
	fmt.Fprintf(out, "Retry delay:             %s\n", p.policy.RetryDelay)
	fmt.Fprintf(out, "Debounce interval:       %s\n", p.policy.DebounceInterval)
	fmt.Fprintf(out, "Max background attempts: %d\n", p.policy.MaxBackgroundAttempts)
}

func (p *probe) cmdDisconnect(ctx context.Context) {
	if err := p.ctrl.Disconnect(ctx); err != nil {
		fmt.Fprintf(p.rl.Stdout(), "disconnect failed: %v\n", err)
		return
	}
	fmt.Fprintln(p.rl.Stdout(), "disconnected")
}

func (p *probe) simSession(topic, address string) relay.Session {
	chain := "eip155:1"
	if record := p.ctrl.Record(); record != nil && record.Chain != "" {
		chain = record.Chain
	}
	return relay.Session{
		Topic:    topic,
		Peer:     relay.PeerMetadata{Name: p.walletType.String()},
		Accounts: []string{chain + ":" + address},
		Chains:   []string{chain},
	}
}

func (p *probe) printHelp() {
	fmt.Fprintln(p.rl.Stdout(), `
Probe Commands:
  Connection:
    connect [chain]            - Connect and await approval (default eip155:1)
    approve <topic> <address>  - Simulate the wallet approving a session
    disconnect                 - Tear down the relay connection

  Restoration:
    restore <topic> [address]  - Restore a session by identifier
    seed <topic> <address>     - Seed the offline cache only
    drop <topic>               - Simulate the wallet deleting a session

  Simulation:
    lifecycle <state>          - Report resumed | paused | inactive
    deeplink <uri>             - Deliver a wallet callback URI
    send <text>                - Seal a payload and send it over the relay

  Inspection:
    status                     - Show engine and transport state
    policy                     - Show the active reconnection policy
    help                       - Show this help
    quit                       - Exit`)
}
