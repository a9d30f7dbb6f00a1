// Package persistence stores the durable session record between app
// launches.
//
// The engine itself only reads and writes in-memory session state; the
// record store is owned by the host application, which chooses one of
// the implementations here (or its own):
//
//   - FileStore: a mutex-guarded JSON file, one record per wallet.
//     The natural choice on mobile hosts where the record rides along
//     in the app's documents directory.
//   - BoltStore: a bucket in a bbolt database, for hosts that already
//     carry one.
//
// Both satisfy session.RecordStore.
package persistence
