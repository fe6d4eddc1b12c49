package profile

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"mcpinspect/internal/storage"
	"mcpinspect/pkg/logging"
)

const authFileName = "auth.json"

// ErrProfileNotFound is returned when a profile id does not exist in the store.
var ErrProfileNotFound = fmt.Errorf("profile not found")

// ErrInvalidColor is returned when a profile is created or updated with a
// color outside the closed set.
var ErrInvalidColor = fmt.Errorf("invalid color tag")

// authFile is the on-disk shape of auth.json.
type authFile struct {
	Profiles        []Profile `json:"profiles"`
	ActiveProfileID *string   `json:"activeProfileId"`
}

// Store holds user profiles and the active-profile selection, persisted to
// auth.json on every mutation. It is a process-wide singleton with lifecycle
// equal to the process lifetime.
type Store struct {
	mu       sync.RWMutex
	storage  *storage.Store
	profiles []Profile
	activeID string
}

// NewStore creates a Store backed by the given storage and loads any existing
// auth.json. A missing file is a fresh start; a corrupt file is logged and
// treated as empty (the file on disk is left alone until the next mutation).
func NewStore(st *storage.Store) *Store {
	s := &Store{storage: st}
	s.load()
	return s
}

func (s *Store) load() {
	var file authFile
	err := s.storage.LoadJSON(authFileName, &file)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		logging.Warn("ProfileStore", "Failed to load %s, starting empty: %v", authFileName, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = file.Profiles
	if file.ActiveProfileID != nil {
		s.activeID = *file.ActiveProfileID
	} else {
		s.activeID = ""
	}
}

// save persists the current state. Callers must hold s.mu.
func (s *Store) save() error {
	file := authFile{Profiles: s.profiles}
	if s.activeID != "" {
		id := s.activeID
		file.ActiveProfileID = &id
	}
	if err := s.storage.SaveJSON(authFileName, file); err != nil {
		logging.Error("ProfileStore", err, "Failed to persist %s", authFileName)
		return err
	}
	return nil
}

// Create adds a new profile and persists the store.
func (s *Store) Create(displayName string, color ColorTag, authorization string, headers map[string]string) (Profile, error) {
	if displayName == "" {
		return Profile{}, fmt.Errorf("displayName cannot be empty")
	}
	if !ValidColor(color) {
		return Profile{}, fmt.Errorf("%w: %s", ErrInvalidColor, color)
	}

	now := time.Now().UnixMilli()
	p := Profile{
		ID:            uuid.NewString(),
		DisplayName:   displayName,
		ColorTag:      color,
		Authorization: authorization,
		Headers:       headers,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = append(s.profiles, p)
	if err := s.save(); err != nil {
		return Profile{}, err
	}

	logging.Info("ProfileStore", "Created profile %s (%s)", p.DisplayName, p.ID)
	return p, nil
}

// Update replaces the stored fields of an existing profile and bumps
// updatedAt. The id and createdAt of the stored profile are preserved.
func (s *Store) Update(id string, displayName string, color ColorTag, authorization string, headers map[string]string) (Profile, error) {
	if !ValidColor(color) {
		return Profile{}, fmt.Errorf("%w: %s", ErrInvalidColor, color)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.profiles {
		if s.profiles[i].ID != id {
			continue
		}
		s.profiles[i].DisplayName = displayName
		s.profiles[i].ColorTag = color
		s.profiles[i].Authorization = authorization
		s.profiles[i].Headers = headers
		s.profiles[i].UpdatedAt = time.Now().UnixMilli()
		if err := s.save(); err != nil {
			return Profile{}, err
		}
		return s.profiles[i], nil
	}
	return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
}

// Delete removes a profile. Deleting the active profile clears the
// active-profile selection.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.profiles {
		if s.profiles[i].ID != id {
			continue
		}
		s.profiles = append(s.profiles[:i], s.profiles[i+1:]...)
		if s.activeID == id {
			s.activeID = ""
		}
		return s.save()
	}
	return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
}

// Get returns a profile by id.
func (s *Store) Get(id string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.ID == id {
			return p, true
		}
	}
	return Profile{}, false
}

// List returns a copy of all profiles.
func (s *Store) List() []Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Profile, len(s.profiles))
	copy(out, s.profiles)
	return out
}

// SetActive marks a profile as the acting user. An empty id clears the
// selection.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" {
		found := false
		for _, p := range s.profiles {
			if p.ID == id {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
		}
	}
	s.activeID = id
	return s.save()
}

// Active returns the active profile, if one is selected.
func (s *Store) Active() (Profile, bool) {
	s.mu.RLock()
	id := s.activeID
	s.mu.RUnlock()
	if id == "" {
		return Profile{}, false
	}
	return s.Get(id)
}

// ActiveID returns the active profile id, or the empty string.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}
