package persistence

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/walletrelay/walletrelay-go/pkg/session"
)

// Bucket and key layout for BoltStore.
var (
	recordBucket = []byte("session-records")
)

// BoltStore persists session records in a bbolt bucket, keyed by an
// adapter identifier so several wallet adapters can share one database.
type BoltStore struct {
	db  *bolt.DB
	key []byte
}

// NewBoltStore creates a record store on an open bbolt database. The
// key distinguishes adapters sharing the database (usually the wallet
// type name).
func NewBoltStore(db *bolt.DB, key string) (*BoltStore, error) {
	if key == "" {
		return nil, fmt.Errorf("bolt store key must not be empty")
	}
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create record bucket: %w", err)
	}
	return &BoltStore{db: db, key: []byte(key)}, nil
}

// Save persists the record.
func (s *BoltStore) Save(record *session.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordBucket).Put(s.key, data)
	})
}

// Load reads the record. Returns nil, nil when absent.
func (s *BoltStore) Load() (*session.Record, error) {
	var record *session.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(recordBucket).Get(s.key)
		if data == nil {
			return nil
		}
		record = &session.Record{}
		return json.Unmarshal(data, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Delete removes the record. Deleting an absent record is not an error.
func (s *BoltStore) Delete() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordBucket).Delete(s.key)
	})
}

// Compile-time interface satisfaction check.
var _ session.RecordStore = (*BoltStore)(nil)
