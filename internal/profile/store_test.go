package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpinspect/internal/storage"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return NewStore(storage.NewStoreWithDir(dir)), dir
}

func TestCreateAssignsIdentity(t *testing.T) {
	s, _ := newTestStore(t)

	p, err := s.Create("Alice", ColorBlue, "Bearer tok", map[string]string{"X-Team": "core"})
	require.NoError(t, err)

	_, err = uuid.Parse(p.ID)
	assert.NoError(t, err, "profile id must be a UUID")
	assert.Equal(t, "Alice", p.DisplayName)
	assert.Equal(t, ColorBlue, p.ColorTag)
	assert.Greater(t, p.CreatedAt, int64(0))
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
}

func TestCreateRejectsInvalidColor(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Create("Bob", ColorTag("magenta"), "", nil)
	assert.ErrorIs(t, err, ErrInvalidColor)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st := storage.NewStoreWithDir(dir)

	s := NewStore(st)
	a, err := s.Create("Alice", ColorGreen, "", nil)
	require.NoError(t, err)
	b, err := s.Create("Bob", ColorRed, "secret", map[string]string{"X-A": "1"})
	require.NoError(t, err)
	require.NoError(t, s.SetActive(b.ID))

	// Reload from disk into a fresh store.
	reloaded := NewStore(storage.NewStoreWithDir(dir))
	assert.Equal(t, []Profile{a, b}, reloaded.List())
	assert.Equal(t, b.ID, reloaded.ActiveID())

	active, ok := reloaded.Active()
	require.True(t, ok)
	assert.Equal(t, "Bob", active.DisplayName)
}

func TestCorruptFileTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth.json"), []byte("{{{"), 0644))

	s := NewStore(storage.NewStoreWithDir(dir))
	assert.Empty(t, s.List())
	assert.Equal(t, "", s.ActiveID())
}

func TestDeleteClearsActive(t *testing.T) {
	s, _ := newTestStore(t)

	p, err := s.Create("Alice", ColorPurple, "", nil)
	require.NoError(t, err)
	require.NoError(t, s.SetActive(p.ID))

	require.NoError(t, s.Delete(p.ID))
	assert.Equal(t, "", s.ActiveID())
	assert.Empty(t, s.List())
}

func TestDeleteUnknown(t *testing.T) {
	s, _ := newTestStore(t)
	assert.ErrorIs(t, s.Delete("nope"), ErrProfileNotFound)
}

func TestUpdate(t *testing.T) {
	s, _ := newTestStore(t)

	p, err := s.Create("Alice", ColorBlue, "", nil)
	require.NoError(t, err)

	updated, err := s.Update(p.ID, "Alice Prime", ColorOrange, "tok", map[string]string{"X-B": "2"})
	require.NoError(t, err)
	assert.Equal(t, p.ID, updated.ID)
	assert.Equal(t, "Alice Prime", updated.DisplayName)
	assert.Equal(t, ColorOrange, updated.ColorTag)
	assert.Equal(t, p.CreatedAt, updated.CreatedAt)
	assert.GreaterOrEqual(t, updated.UpdatedAt, p.UpdatedAt)
}

func TestSetActiveUnknown(t *testing.T) {
	s, _ := newTestStore(t)
	assert.ErrorIs(t, s.SetActive("missing"), ErrProfileNotFound)
}

func TestSetActiveEmptyClears(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.Create("Alice", ColorYellow, "", nil)
	require.NoError(t, err)
	require.NoError(t, s.SetActive(p.ID))
	require.NoError(t, s.SetActive(""))
	assert.Equal(t, "", s.ActiveID())
}
