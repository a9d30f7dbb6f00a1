// Package relay defines the boundary to the relay/session transport SDK.
//
// The engine drives a relay transport (a pub/sub broker reachable only
// while a WebSocket is up) and the SDK's session bookkeeping through the
// interfaces in this package. It never reimplements either: pkg/transport
// provides a WebSocket-backed Transport, and applications supply the
// SessionClient of whichever WalletConnect SDK binding they embed.
//
// Two properties of real relay SDKs shape this boundary:
//
//   - IsConnected may be stale. The low-level layer can report success
//     asynchronously after the initiating call already returned an error,
//     so callers must re-sample the flag after failures ("zombie"
//     recovery).
//   - Stream-state races ("bad state", "already closed") are benign and
//     must not be treated as hard failures. IsBenignStreamError
//     classifies them.
package relay
