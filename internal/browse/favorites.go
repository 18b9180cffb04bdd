package browse

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/scriptdeck/scriptdeck/internal/util"
)

// maxRecent bounds the recently-visited list.
const maxRecent = 10

// Favorites holds pinned paths and the most recently browsed ones.
type Favorites struct {
	Paths  []string `json:"paths"`
	Recent []string `json:"recent"`
}

// FavoritesStore persists favorites as a JSON file.
type FavoritesStore struct {
	mu   sync.Mutex
	path string
}

// NewFavoritesStore returns a store backed by the given file.
func NewFavoritesStore(path string) *FavoritesStore {
	return &FavoritesStore{path: path}
}

// Load reads the favorites file. Missing or corrupt files yield empty
// favorites rather than an error.
func (s *FavoritesStore) Load() Favorites {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FavoritesStore) load() Favorites {
	fav := Favorites{Paths: []string{}, Recent: []string{}}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fav
	}
	_ = json.Unmarshal(data, &fav)
	if fav.Paths == nil {
		fav.Paths = []string{}
	}
	if fav.Recent == nil {
		fav.Recent = []string{}
	}
	return fav
}

// Pin adds a path to the pinned list if not already present.
func (s *FavoritesStore) Pin(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fav := s.load()
	for _, p := range fav.Paths {
		if p == path {
			return nil
		}
	}
	fav.Paths = append(fav.Paths, path)
	return util.AtomicWriteJSON(s.path, fav)
}

// Unpin removes a path from the pinned list. Returns false when the
// path was not pinned.
func (s *FavoritesStore) Unpin(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fav := s.load()
	kept := fav.Paths[:0]
	found := false
	for _, p := range fav.Paths {
		if p == path {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return false, nil
	}
	fav.Paths = kept
	return true, util.AtomicWriteJSON(s.path, fav)
}

// Touch moves a path to the front of the recent list, keeping at most
// maxRecent entries.
func (s *FavoritesStore) Touch(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fav := s.load()
	recent := []string{path}
	for _, p := range fav.Recent {
		if p != path {
			recent = append(recent, p)
		}
	}
	if len(recent) > maxRecent {
		recent = recent[:maxRecent]
	}
	fav.Recent = recent
	return util.AtomicWriteJSON(s.path, fav)
}
