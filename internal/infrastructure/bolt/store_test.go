package bolt_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/todolog/internal/infrastructure/bolt"
)

func TestOpenCreatesBuckets(t *testing.T) {
	store, err := bolt.Open(filepath.Join(t.TempDir(), "nested", "todos.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))
	err = store.DB().View(func(tx *bbolt.Tx) error {
		assert.NotNil(t, tx.Bucket(bolt.BucketVersions))
		assert.NotNil(t, tx.Bucket(bolt.BucketCounters))
		assert.NotNil(t, tx.Bucket(bolt.BucketAudit))
		return nil
	})
	require.NoError(t, err)
}

func TestPingAfterClose(t *testing.T) {
	store, err := bolt.Open(filepath.Join(t.TempDir(), "todos.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.Error(t, store.Ping(context.Background()))
}
