package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/halvect/remod/pkg/resolve"
)

// RelativeBundleDir is where bundles live under the game root. Import
// treats any file under this prefix inside an incoming mod as an
// already-initialized bundle.
const RelativeBundleDir = "reframework/data/usercontent/bundles"

// Manager enumerates, creates, persists, and deletes bundles under one
// bundles directory.
type Manager struct {
	root    string // bundles directory
	logger  zerolog.Logger
	bundles map[string]*Bundle
}

// NewManager opens the bundles directory, creating it if needed, and
// loads every persisted bundle. A bundle file that fails to parse is
// logged and skipped so one bad file cannot hide the rest.
func NewManager(root string, logger zerolog.Logger) (*Manager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("bundle manager: %w", err)
	}

	m := &Manager{root: root, logger: logger, bundles: make(map[string]*Bundle)}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("bundle manager: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		b, err := m.load(filepath.Join(root, e.Name()))
		if err != nil {
			m.logger.Warn().Err(err).Str("file", e.Name()).Msg("bundle file skipped")
			continue
		}
		m.bundles[b.Name] = b
	}
	return m, nil
}

// Root returns the bundles directory.
func (m *Manager) Root() string { return m.root }

func (m *Manager) metadataPath(name string) string {
	return filepath.Join(m.root, name+".json")
}

func (m *Manager) payloadDir(name string) string {
	return filepath.Join(m.root, name)
}

func (m *Manager) load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("read bundle %s: unmarshal: %w", path, err)
	}
	if b.Name == "" {
		b.Name = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	if b.ResourceListing == nil {
		b.ResourceListing = make(map[string]*ResourceListItem)
	}
	b.dir = m.payloadDir(b.Name)
	return &b, nil
}

// Names returns all known bundle names, sorted.
func (m *Manager) Names() []string {
	out := make([]string, 0, len(m.bundles))
	for name := range m.bundles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Get returns a bundle by name.
func (m *Manager) Get(name string) (*Bundle, bool) {
	b, ok := m.bundles[name]
	return b, ok
}

// Create makes a new empty bundle and persists its metadata file.
func (m *Manager) Create(name string) (*Bundle, error) {
	if name == "" {
		return nil, fmt.Errorf("create bundle: name is required")
	}
	if _, exists := m.bundles[name]; exists {
		return nil, fmt.Errorf("create bundle: %q already exists", name)
	}

	b := &Bundle{
		Name:            name,
		ResourceListing: make(map[string]*ResourceListItem),
		dir:             m.payloadDir(name),
	}
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bundle: %w", err)
	}
	if err := m.Persist(b); err != nil {
		return nil, err
	}
	m.bundles[name] = b
	return b, nil
}

// Delete removes a bundle's metadata, payload directory, and manager
// entry.
func (m *Manager) Delete(name string) error {
	if _, ok := m.bundles[name]; !ok {
		return fmt.Errorf("delete bundle: %q not found", name)
	}
	if err := os.Remove(m.metadataPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete bundle: %w", err)
	}
	if err := os.RemoveAll(m.payloadDir(name)); err != nil {
		return fmt.Errorf("delete bundle payload: %w", err)
	}
	delete(m.bundles, name)
	m.logger.Info().Str("bundle", name).Msg("bundle deleted")
	return nil
}

// Persist writes a bundle's metadata file atomically. When the encoded
// form matches what is already on disk the file is left untouched, so a
// save with no actual changes mutates nothing.
func (m *Manager) Persist(b *Bundle) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("persist bundle %s: marshal: %w", b.Name, err)
	}
	data = append(data, '\n')

	dest := m.metadataPath(b.Name)
	if existing, err := os.ReadFile(dest); err == nil && bytes.Equal(existing, data) {
		return nil
	}

	tmp, err := os.CreateTemp(m.root, ".bundle-tmp-*")
	if err != nil {
		return fmt.Errorf("persist bundle %s: tmpfile: %w", b.Name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("persist bundle %s: write: %w", b.Name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persist bundle %s: close: %w", b.Name, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persist bundle %s: rename: %w", b.Name, err)
	}
	return nil
}

// ScopedResolver derives a bundle-specific resolver view over base: the
// overlay consulted at the highest precedence level is exactly the named
// bundle's resource listing.
func (m *Manager) ScopedResolver(base *resolve.Resolver, name string) (*resolve.Resolver, error) {
	b, ok := m.bundles[name]
	if !ok {
		return nil, fmt.Errorf("scoped resolver: bundle %q not found", name)
	}
	return base.WithOverlay(b), nil
}
