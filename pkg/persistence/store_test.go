package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/walletrelay/walletrelay-go/pkg/session"
	"github.com/walletrelay/walletrelay-go/pkg/wallet"
)

func sampleRecord() *session.Record {
	return &session.Record{
		WalletType: wallet.TypeMetaMask,
		Topic:      "topic-1",
		Addresses:  []string{"0xabc"},
		Chain:      "eip155:1",
		PeerName:   "MetaMask",
		CreatedAt:  time.Now().Truncate(time.Second),
		LastUsedAt: time.Now().Truncate(time.Second),
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "record.json")
	store := NewFileStore(path)

	t.Run("LoadAbsent", func(t *testing.T) {
		record, err := store.Load()
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("SaveLoadDelete", func(t *testing.T) {
		want := sampleRecord()
		require.NoError(t, store.Save(want))

		got, err := store.Load()
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.Topic, got.Topic)
		assert.Equal(t, want.WalletType, got.WalletType)
		assert.Equal(t, want.Addresses, got.Addresses)

		require.NoError(t, store.Delete())
		got, err = store.Load()
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DeleteAbsent", func(t *testing.T) {
		assert.NoError(t, store.Delete())
	})
}

func TestBoltStore(t *testing.T) {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "records.db"), 0600, nil)
	require.NoError(t, err)
	defer db.Close()

	store, err := NewBoltStore(db, "metamask")
	require.NoError(t, err)

	t.Run("LoadAbsent", func(t *testing.T) {
		record, err := store.Load()
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("SaveLoadDelete", func(t *testing.T) {
		want := sampleRecord()
		require.NoError(t, store.Save(want))

		got, err := store.Load()
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.Topic, got.Topic)

		require.NoError(t, store.Delete())
		got, err = store.Load()
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("KeysAreIsolated", func(t *testing.T) {
		other, err := NewBoltStore(db, "phantom")
		require.NoError(t, err)

		require.NoError(t, store.Save(sampleRecord()))
		got, err := other.Load()
		require.NoError(t, err)
		assert.Nil(t, got, "records must not leak between adapter keys")
	})

	t.Run("EmptyKeyRefused", func(t *testing.T) {
		_, err := NewBoltStore(db, "")
		assert.Error(t, err)
	})
}
