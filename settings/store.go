package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"scene-optimizer/core"
)

// Store persists profiles by name. Load and Delete return
// core.ErrNotFound for unknown names.
type Store interface {
	Load(name string) (*Profile, error)
	Save(p *Profile) error
	Delete(name string) error
	List() ([]string, error)
}

// MemoryStore is a Store kept in memory.
type MemoryStore struct {
	mu       sync.Mutex
	profiles map[string]*Profile
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
)

// NewMemoryStore returns a store holding copies of profiles.
func NewMemoryStore(profiles ...*Profile) *MemoryStore {
	s := &MemoryStore{profiles: make(map[string]*Profile)}
	for _, p := range profiles {
		s.profiles[p.Name] = p.Clone()
	}
	return s
}

func (s *MemoryStore) Load(name string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %q: %w", name, core.ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *MemoryStore) Save(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.Name] = p.Clone()
	return nil
}

func (s *MemoryStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[name]; !ok {
		return fmt.Errorf("profile %q: %w", name, core.ErrNotFound)
	}
	delete(s.profiles, name)
	return nil
}

func (s *MemoryStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.profiles))
	for n := range s.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Codec is the file format of a FileStore.
type Codec int

const (
	TOML Codec = iota
	YAML
)

func (c Codec) ext() string {
	if c == YAML {
		return ".yaml"
	}
	return ".toml"
}

func (c Codec) marshal(p *Profile) ([]byte, error) {
	if c == YAML {
		return yaml.Marshal(p)
	}
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c Codec) unmarshal(data []byte, p *Profile) error {
	if c == YAML {
		return yaml.Unmarshal(data, p)
	}
	return toml.Unmarshal(data, p)
}

// DefaultDir is where profiles live unless configured otherwise.
const DefaultDir = "~/.sceneopt/profiles"

// FileStore keeps one file per profile in a directory.
type FileStore struct {
	Dir   string
	Codec Codec
}

// NewFileStore returns a store rooted at dir, expanding a leading ~.
// An empty dir means DefaultDir.
func NewFileStore(dir string, codec Codec) (*FileStore, error) {
	if dir == "" {
		dir = DefaultDir
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("profile dir %q: %v: %w", dir, err, core.ErrInvalidArgument)
	}
	return &FileStore{Dir: expanded, Codec: codec}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.Dir, name+s.Codec.ext())
}

func (s *FileStore) Load(name string) (*Profile, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("profile %q: %w", name, core.ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("profile %q: %v: %w", name, err, core.ErrIOFailure)
	}

	// unset fields keep their defaults
	p := &Profile{Settings: Default()}
	if err := s.Codec.unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("profile %q: parse: %v: %w", name, err, core.ErrIOFailure)
	}
	if p.Name == "" {
		p.Name = name
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", name, err)
	}
	return p, nil
}

func (s *FileStore) Save(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := s.Codec.marshal(p)
	if err != nil {
		return fmt.Errorf("profile %q: encode: %w", p.Name, err)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("profile %q: %v: %w", p.Name, err, core.ErrIOFailure)
	}
	if err := os.WriteFile(s.path(p.Name), data, 0o644); err != nil {
		return fmt.Errorf("profile %q: %v: %w", p.Name, err, core.ErrIOFailure)
	}
	return nil
}

func (s *FileStore) Delete(name string) error {
	if err := ValidName(name); err != nil {
		return err
	}
	err := os.Remove(s.path(name))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("profile %q: %w", name, core.ErrNotFound)
	case err != nil:
		return fmt.Errorf("profile %q: %v: %w", name, err, core.ErrIOFailure)
	}
	return nil
}

func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profiles %q: %v: %w", s.Dir, err, core.ErrIOFailure)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != s.Codec.ext() {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), s.Codec.ext()))
	}
	sort.Strings(names)
	return names, nil
}

// Resolve looks name up in store, falling back to the built-in presets.
func Resolve(store Store, name string) (*Profile, error) {
	if store != nil {
		p, err := store.Load(name)
		if err == nil || !errors.Is(err, core.ErrNotFound) {
			return p, err
		}
	}
	if p, ok := Preset(name); ok {
		return p, nil
	}
	return nil, fmt.Errorf("profile %q: %w", name, core.ErrNotFound)
}
