package cmd

import (
	"mcpinspect/internal/indexer"
	"mcpinspect/internal/profile"
	"mcpinspect/internal/storage"
)

// openStores builds the process-wide persistence stack rooted at
// ~/.mcp-inspector.
func openStores() (*storage.Store, *profile.Store, *indexer.Indexer) {
	st := storage.NewStore()
	profiles := profile.NewStore(st)
	idx := indexer.New(st, profiles)
	return st, profiles, idx
}
