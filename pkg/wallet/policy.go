package wallet

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy errors.
var (
	ErrEmptyTimeouts = errors.New("policy has no reconnect timeouts")
)

// Policy defaults.
const (
	// DefaultRetryDelay is the delay between successive reconnect
	// attempts in a progressive walk.
	DefaultRetryDelay = 2 * time.Second

	// DefaultDebounceInterval is the minimum spacing between debounced
	// reconnect attempts.
	DefaultDebounceInterval = 1 * time.Second

	// DefaultMaxBackgroundAttempts caps reconnects scheduled while the
	// app is backgrounded with an approval pending.
	DefaultMaxBackgroundAttempts = 3
)

// Policy is the per-wallet-type reconnection configuration. It is
// immutable after load; the engine reads it, never mutates it.
type Policy struct {
	// ReconnectTimeouts are the escalating per-attempt timeouts a
	// progressive reconnect walks through, in order.
	ReconnectTimeouts []time.Duration `yaml:"reconnect_timeouts"`

	// RetryDelay is the pause between progressive reconnect attempts.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// DebounceInterval is the minimum spacing between debounced
	// attempts.
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// MaxBackgroundAttempts caps reconnects while backgrounded with an
	// approval pending. Zero means "use the default", not "never".
	MaxBackgroundAttempts int `yaml:"max_background_attempts"`
}

// DefaultPolicy returns the policy used when no wallet-specific policy
// is configured. The escalating timeouts absorb the slow radio wake-up
// after a background-to-foreground transition.
func DefaultPolicy() Policy {
	return Policy{
		ReconnectTimeouts:     []time.Duration{3 * time.Second, 5 * time.Second, 8 * time.Second},
		RetryDelay:            DefaultRetryDelay,
		DebounceInterval:      DefaultDebounceInterval,
		MaxBackgroundAttempts: DefaultMaxBackgroundAttempts,
	}
}

// PolicyFor returns the built-in policy for a wallet type. Phantom gets
// a longer walk: its deep-link round trip keeps the app backgrounded
// longer than the WalletConnect wallets.
func PolicyFor(t Type) Policy {
	switch t {
	case TypePhantom:
		return Policy{
			ReconnectTimeouts:     []time.Duration{3 * time.Second, 5 * time.Second, 8 * time.Second, 13 * time.Second},
			RetryDelay:            DefaultRetryDelay,
			DebounceInterval:      DefaultDebounceInterval,
			MaxBackgroundAttempts: DefaultMaxBackgroundAttempts,
		}
	default:
		return DefaultPolicy()
	}
}

// normalize fills zero values with defaults and validates the policy.
func (p *Policy) normalize() error {
	if len(p.ReconnectTimeouts) == 0 {
		return ErrEmptyTimeouts
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = DefaultRetryDelay
	}
	if p.DebounceInterval <= 0 {
		p.DebounceInterval = DefaultDebounceInterval
	}
	if p.MaxBackgroundAttempts <= 0 {
		p.MaxBackgroundAttempts = DefaultMaxBackgroundAttempts
	}
	return nil
}

// PolicySet holds policies keyed by wallet type, with a fallback
// default.
type PolicySet struct {
	Default  Policy
	ByWallet map[Type]Policy
}

// Lookup returns the policy for a wallet type, falling back to the
// set's default.
func (ps *PolicySet) Lookup(t Type) Policy {
	if ps == nil {
		return DefaultPolicy()
	}
	if p, ok := ps.ByWallet[t]; ok {
		return p
	}
	return ps.Default
}

// policyFile is the YAML schema for a policy file.
type policyFile struct {
	Default Policy            `yaml:"default"`
	Wallets map[string]Policy `yaml:"wallets"`
}

// LoadPolicies reads a YAML policy file. Wallet keys are type names
// (metamask, trust, rainbow, phantom); unknown keys are rejected so
// typos do not silently fall back to defaults.
func LoadPolicies(path string) (*PolicySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePolicies(data)
}

// ParsePolicies parses YAML policy data. See LoadPolicies.
func ParsePolicies(data []byte) (*PolicySet, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	set := &PolicySet{
		Default:  file.Default,
		ByWallet: make(map[Type]Policy, len(file.Wallets)),
	}
	if len(set.Default.ReconnectTimeouts) == 0 {
		set.Default = DefaultPolicy()
	} else if err := set.Default.normalize(); err != nil {
		return nil, fmt.Errorf("default policy: %w", err)
	}

	for name, p := range file.Wallets {
		t := ParseType(name)
		if t == TypeUnknown {
			return nil, fmt.Errorf("unknown wallet type %q in policy file", name)
		}
		if err := p.normalize(); err != nil {
			return nil, fmt.Errorf("policy for %s: %w", t, err)
		}
		set.ByWallet[t] = p
	}
	return set, nil
}
