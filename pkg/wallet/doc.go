// Package wallet centralizes wallet identification and per-wallet
// reconnection policy.
//
// Wallets report peer metadata inconsistently, so identification is
// heuristic. All heuristics live in one predicate table here instead of
// being scattered across adapters, which keeps them testable and makes
// the "loose match" fallbacks in session restoration explicit.
package wallet
