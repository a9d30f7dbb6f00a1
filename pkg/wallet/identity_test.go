package wallet

import (
	"testing"

	"github.com/walletrelay/walletrelay-go/pkg/relay"
)

func TestIdentify(t *testing.T) {
	cases := []struct {
		name     string
		peerName string
		want     Type
		known    bool
	}{
		{"MetaMask", "MetaMask", TypeMetaMask, true},
		{"MetaMaskMobile", "MetaMask Mobile", TypeMetaMask, true},
		{"TrustWallet", "Trust Wallet", TypeTrust, true},
		{"TrustWalletJoined", "TrustWallet Android", TypeTrust, true},
		{"Rainbow", "🌈 Rainbow", TypeRainbow, true},
		{"Phantom", "Phantom", TypePhantom, true},
		{"CaseInsensitive", "METAMASK", TypeMetaMask, true},
		{"Unrecognized", "Some Other Wallet", TypeUnknown, false},
		{"Empty", "", TypeUnknown, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := Identify(relay.PeerMetadata{Name: tc.peerName})
			if id.Known != tc.known {
				t.Errorf("Known = %t, want %t", id.Known, tc.known)
			}
			if id.Known && id.Type != tc.want {
				t.Errorf("Type = %v, want %v", id.Type, tc.want)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	metamask := relay.PeerMetadata{Name: "MetaMask Mobile"}

	t.Run("SameType", func(t *testing.T) {
		if !Matches(metamask, TypeMetaMask) {
			t.Error("MetaMask peer must match TypeMetaMask")
		}
	})

	t.Run("DifferentType", func(t *testing.T) {
		if Matches(metamask, TypeTrust) {
			t.Error("MetaMask peer must not match TypeTrust")
		}
	})

	t.Run("UnknownNeverMatches", func(t *testing.T) {
		if Matches(metamask, TypeUnknown) {
			t.Error("TypeUnknown must never match")
		}
		if Matches(relay.PeerMetadata{Name: "Mystery"}, TypeUnknown) {
			t.Error("TypeUnknown must never match, even unidentified peers")
		}
	})
}

func TestParseType(t *testing.T) {
	cases := map[string]Type{
		"metamask": TypeMetaMask,
		"METAMASK": TypeMetaMask,
		" trust ":  TypeTrust,
		"rainbow":  TypeRainbow,
		"phantom":  TypePhantom,
		"solflare": TypeUnknown,
		"":         TypeUnknown,
	}
	for input, want := range cases {
		if got := ParseType(input); got != want {
			t.Errorf("ParseType(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestTypeRoundTrip(t *testing.T) {
	for _, typ := range []Type{TypeMetaMask, TypeTrust, TypeRainbow, TypePhantom} {
		if got := ParseType(typ.String()); got != typ {
			t.Errorf("ParseType(%v.String()) = %v", typ, got)
		}
	}
}
