package indexer

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"mcpinspect/internal/envelope"
	"mcpinspect/internal/profile"
	"mcpinspect/internal/storage"
	"mcpinspect/pkg/logging"
)

const resourcesFileName = "resources.json"

// AnonymousUser attributes discoveries made without an acting profile.
const AnonymousUser = "anonymous"

// Resource is one indexed identifier with its discovery metadata.
type Resource struct {
	EntryID            string                 `json:"entryId"`
	ID                 string                 `json:"id"`
	Type               ResourceType           `json:"type"`
	FieldName          string                 `json:"fieldName"`
	FieldPath          string                 `json:"fieldPath"`
	ParentContext      map[string]interface{} `json:"parentContext,omitempty"`
	DiscoveredByTool   string                 `json:"discoveredByTool"`
	DiscoveredFromUser string                 `json:"discoveredFromUser"`
	UserDisplayName    string                 `json:"userDisplayName,omitempty"`
	UserColor          string                 `json:"userColor,omitempty"`
	Timestamp          int64                  `json:"timestamp"`
}

// resourcesFile is the on-disk shape of resources.json.
type resourcesFile struct {
	Resources []Resource `json:"resources"`
}

// Indexer extracts identifiers from tool responses and persists them,
// deduplicating per (id, user). It is a process-wide singleton; the full
// store is serialized on every insertion.
type Indexer struct {
	mu        sync.Mutex
	storage   *storage.Store
	profiles  *profile.Store
	resources []Resource
	seen      map[string]struct{}
}

// New creates an Indexer backed by the given storage and loads any existing
// resources.json. The profile store is optional and only used to attach user
// display metadata to new entries.
func New(st *storage.Store, profiles *profile.Store) *Indexer {
	idx := &Indexer{
		storage:  st,
		profiles: profiles,
		seen:     make(map[string]struct{}),
	}
	idx.load()
	return idx
}

func (idx *Indexer) load() {
	var file resourcesFile
	err := idx.storage.LoadJSON(resourcesFileName, &file)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		// Corrupt file: start empty, but leave the file on disk untouched
		// until the next successful insertion.
		logging.Warn("Indexer", "Failed to load %s, starting empty: %v", resourcesFileName, err)
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.resources = file.Resources
	for _, r := range file.Resources {
		idx.seen[dedupKey(r.ID, r.DiscoveredFromUser)] = struct{}{}
	}
	logging.Debug("Indexer", "Loaded %d indexed resources", len(file.Resources))
}

func dedupKey(id, user string) string {
	return id + "::" + user
}

// IndexResult extracts identifiers from a typed tool-call result.
func (idx *Indexer) IndexResult(userID, toolName string, result *mcp.CallToolResult) []Resource {
	return idx.IndexResponse(userID, toolName, envelope.FromResult(result))
}

// IndexResponse extracts identifiers from a generic tool response, filters
// duplicates per (id, user), persists the store if anything was added, and
// returns the newly added entries.
func (idx *Indexer) IndexResponse(userID, toolName string, response interface{}) []Resource {
	user := userID
	if user == "" {
		user = AnonymousUser
	}

	var displayName, color string
	if idx.profiles != nil && user != AnonymousUser {
		if p, ok := idx.profiles.Get(user); ok {
			displayName = p.DisplayName
			color = string(p.ColorTag)
		}
	}

	candidates := extract(response)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	var added []Resource
	for _, c := range candidates {
		key := dedupKey(c.id, user)
		if _, dup := idx.seen[key]; dup {
			continue
		}
		idx.seen[key] = struct{}{}
		r := Resource{
			EntryID:            uuid.NewString(),
			ID:                 c.id,
			Type:               c.resourceType,
			FieldName:          c.fieldName,
			FieldPath:          c.fieldPath,
			ParentContext:      c.parentContext,
			DiscoveredByTool:   toolName,
			DiscoveredFromUser: user,
			UserDisplayName:    displayName,
			UserColor:          color,
			Timestamp:          time.Now().UnixMilli(),
		}
		idx.resources = append(idx.resources, r)
		added = append(added, r)
	}

	if len(added) > 0 {
		if err := idx.storage.SaveJSON(resourcesFileName, resourcesFile{Resources: idx.resources}); err != nil {
			// Data stays in memory; the next insertion retries the write.
			logging.Error("Indexer", err, "Failed to persist %s", resourcesFileName)
		}
		logging.Info("Indexer", "Indexed %d new resources from %s (user %s)", len(added), toolName, user)
	}

	return added
}

// List returns a copy of all indexed resources.
func (idx *Indexer) List() []Resource {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make([]Resource, len(idx.resources))
	copy(out, idx.resources)
	return out
}

// Clear wipes the index, both in memory and on disk.
func (idx *Indexer) Clear() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.resources = nil
	idx.seen = make(map[string]struct{})
	return idx.storage.SaveJSON(resourcesFileName, resourcesFile{Resources: []Resource{}})
}
