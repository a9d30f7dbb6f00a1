// Package session tracks wallet sessions across approval and restoration.
//
// This package handles:
//   - The durable session record persisted between app launches
//   - Watching a pending connection attempt for wallet approval
//   - Resolving a persisted record back to a live SDK session
//   - Enforcing SDK-reported session expiries
//
// # Approval watchdog
//
// Approval normally arrives as a session-established event from the
// relay SDK. On mobile that event is lost whenever the OS suspends the
// process while the user is over in the wallet app. The watchdog
// therefore races the event against a periodic poll of the SDK's
// session list; whichever path observes the new session first wins and
// the other is cancelled.
//
// # Restoration
//
// A persisted topic can go stale: the relay SDK expires sessions, and
// some wallets settle a new topic on reconnect. Resolution walks a
// layered fallback search (topic, strict address, loose address,
// metadata) and classifies failures precisely: an orphaned record must
// be deleted without retry, while an inconclusive search during a relay
// outage must be retried.
package session
