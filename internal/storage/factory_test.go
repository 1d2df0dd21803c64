package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreMemory(t *testing.T) {
	for _, kind := range []string{"", "memory", " Memory "} {
		store, err := NewStore(kind, "")
		require.NoError(t, err, kind)
		assert.IsType(t, &MemoryStore{}, store)
		require.NoError(t, CloseIfSupported(store))
	}
}

func TestNewStoreRejectsBadConfig(t *testing.T) {
	_, err := NewStore("unknown", "")
	require.ErrorContains(t, err, "unsupported store backend")

	_, err = NewStore(KindSQLite, " ")
	require.ErrorContains(t, err, "database path")
}

func TestDefaultStoreKindIsConstructible(t *testing.T) {
	kind := DefaultStoreKind()
	assert.Contains(t, []string{KindMemory, KindSQLite}, kind)
}
