// Package prefs is a small keyed preference store backed by a TOML file.
// The send pipeline's store uses it for remembered UI defaults, currently
// only the mention-on-reply flag.
package prefs

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// Store persists section-state key/value pairs. Reads and writes are
// serialized; every write rewrites the whole file.
type Store struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

type fileFormat struct {
	Sections map[string]string `toml:"sections"`
}

// Open loads the preference file at path, creating an empty store if the
// file does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: make(map[string]string)}

	var ff fileFormat
	if _, err := toml.DecodeFile(path, &ff); err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if ff.Sections != nil {
		s.values = ff.Sections
	}
	return s, nil
}

// SectionState returns the stored value for key, or "" if unset.
func (s *Store) SectionState(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// SetSectionState stores value under key and rewrites the backing file.
func (s *Store) SetSectionState(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.flush()
}

func (s *Store) flush() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(fileFormat{Sections: s.values})
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
