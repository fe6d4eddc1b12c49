package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpinspect/internal/storage"
)

func TestOpenStoresWiresPersistenceStack(t *testing.T) {
	st, profiles, idx := openStores()
	require.NotNil(t, st)
	require.NotNil(t, profiles)
	require.NotNil(t, idx)

	// The store resolves its directory lazily; opening it must not touch
	// the filesystem or fail.
	dir, err := st.Dir()
	require.NoError(t, err)
	assert.Contains(t, dir, storage.DefaultDirName)
}
