package indexer

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpinspect/internal/profile"
	"mcpinspect/internal/storage"
)

func newTestIndexer(t *testing.T) (*Indexer, string) {
	t.Helper()
	dir := t.TempDir()
	return New(storage.NewStoreWithDir(dir), nil), dir
}

// s1Response is scenario S1 from the acceptance suite: a UUID inside a
// JSON-encoded text payload.
func s1Response() map[string]interface{} {
	var response map[string]interface{}
	raw := `{"content":[{"type":"text","text":"{\"results\":[{\"id\":\"550e8400-e29b-41d4-a716-446655440000\",\"title\":\"hello\"}]}"}]}`
	if err := json.Unmarshal([]byte(raw), &response); err != nil {
		panic(err)
	}
	return response
}

func TestIndexResponseExtractsUUIDFromEnvelope(t *testing.T) {
	idx, _ := newTestIndexer(t)

	added := idx.IndexResponse("u1", "listThings", s1Response())
	require.Len(t, added, 1)

	r := added[0]
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", r.ID)
	assert.Equal(t, TypeUUID, r.Type)
	assert.Equal(t, "id", r.FieldName)
	assert.Equal(t, "results[0].id", r.FieldPath)
	assert.Equal(t, map[string]interface{}{"title": "hello"}, r.ParentContext)
	assert.Equal(t, "listThings", r.DiscoveredByTool)
	assert.Equal(t, "u1", r.DiscoveredFromUser)

	_, err := uuid.Parse(r.EntryID)
	assert.NoError(t, err)
}

func TestDedupAcrossCalls(t *testing.T) {
	idx, _ := newTestIndexer(t)

	first := idx.IndexResponse("u1", "listThings", s1Response())
	require.Len(t, first, 1)

	second := idx.IndexResponse("u1", "listThings", s1Response())
	assert.Empty(t, second)
	assert.Len(t, idx.List(), 1)
}

func TestDedupIsPerUser(t *testing.T) {
	idx, _ := newTestIndexer(t)

	require.Len(t, idx.IndexResponse("u1", "listThings", s1Response()), 1)
	require.Len(t, idx.IndexResponse("u2", "listThings", s1Response()), 1)
	require.Len(t, idx.IndexResponse("", "listThings", s1Response()), 1)

	assert.Len(t, idx.List(), 3)
}

func TestAnonymousAttribution(t *testing.T) {
	idx, _ := newTestIndexer(t)

	added := idx.IndexResponse("", "listThings", s1Response())
	require.Len(t, added, 1)
	assert.Equal(t, AnonymousUser, added[0].DiscoveredFromUser)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st := storage.NewStoreWithDir(dir)

	idx := New(st, nil)
	original := idx.IndexResponse("u1", "listThings", s1Response())
	require.Len(t, original, 1)

	reloaded := New(storage.NewStoreWithDir(dir), nil)
	assert.Equal(t, idx.List(), reloaded.List())

	// The rebuilt dedup set must reject previously seen (id, user) pairs.
	assert.Empty(t, reloaded.IndexResponse("u1", "listThings", s1Response()))
}

func TestNumericBoundary(t *testing.T) {
	idx, _ := newTestIndexer(t)

	response := map[string]interface{}{
		"projectId": float64(100),
		"boardId":   float64(101),
	}
	added := idx.IndexResponse("u1", "getBoard", response)
	require.Len(t, added, 1)
	assert.Equal(t, "101", added[0].ID)
	assert.Equal(t, TypeNumeric, added[0].Type)
}

func TestLongStringNeverIndexed(t *testing.T) {
	idx, _ := newTestIndexer(t)

	response := map[string]interface{}{
		"id": strings.Repeat("a", 501),
	}
	assert.Empty(t, idx.IndexResponse("u1", "tool", response))
}

func TestStrongPatternOutsideIDField(t *testing.T) {
	idx, _ := newTestIndexer(t)

	response := map[string]interface{}{
		"reference": "550e8400-e29b-41d4-a716-446655440000",
		"slugField": "not-an-id-field-slug",
	}
	added := idx.IndexResponse("u1", "tool", response)
	require.Len(t, added, 1)
	assert.Equal(t, TypeUUID, added[0].Type)
	assert.Equal(t, "reference", added[0].FieldName)
}

func TestParentContextSanitization(t *testing.T) {
	idx, _ := newTestIndexer(t)

	response := map[string]interface{}{
		"id":      "550e8400-e29b-41d4-a716-446655440000",
		"title":   "page",
		"pages":   float64(7),
		"hidden":  true,
		"body":    strings.Repeat("x", 250),
		"nested":  map[string]interface{}{"ignored": true},
		"listing": []interface{}{"ignored"},
	}
	added := idx.IndexResponse("u1", "tool", response)
	require.Len(t, added, 1)

	ctx := added[0].ParentContext
	assert.Equal(t, "page", ctx["title"])
	assert.Equal(t, float64(7), ctx["pages"])
	assert.Equal(t, true, ctx["hidden"])
	assert.Equal(t, strings.Repeat("x", 200)+"...", ctx["body"])
	assert.NotContains(t, ctx, "nested")
	assert.NotContains(t, ctx, "listing")
	assert.NotContains(t, ctx, "id")
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	st := storage.NewStoreWithDir(dir)
	require.NoError(t, st.SaveJSON("resources.json", map[string]interface{}{"resources": "oops"}))

	idx := New(storage.NewStoreWithDir(dir), nil)
	assert.Empty(t, idx.List())

	// Indexing still works afterwards.
	assert.Len(t, idx.IndexResponse("u1", "tool", s1Response()), 1)
}

func TestUserDisplayMetadata(t *testing.T) {
	dir := t.TempDir()
	st := storage.NewStoreWithDir(dir)
	profiles := profile.NewStore(st)
	p, err := profiles.Create("Alice", profile.ColorGreen, "", nil)
	require.NoError(t, err)

	idx := New(st, profiles)
	added := idx.IndexResponse(p.ID, "tool", s1Response())
	require.Len(t, added, 1)
	assert.Equal(t, "Alice", added[0].UserDisplayName)
	assert.Equal(t, "green", added[0].UserColor)
}

func TestClear(t *testing.T) {
	idx, _ := newTestIndexer(t)
	require.Len(t, idx.IndexResponse("u1", "tool", s1Response()), 1)
	require.NoError(t, idx.Clear())
	assert.Empty(t, idx.List())

	// After clearing, the same identifier can be indexed again.
	assert.Len(t, idx.IndexResponse("u1", "tool", s1Response()), 1)
}
