// Package workspace binds one merged schema, one resolver and resource
// cache, and one active bundle into an editing session, and drives the
// save cycle. A workspace is owned by a single logical thread; background
// workers get their own Clone.
package workspace

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/halvect/remod/pkg/bundle"
	"github.com/halvect/remod/pkg/pak"
	"github.com/halvect/remod/pkg/resolve"
	"github.com/halvect/remod/pkg/resource"
	"github.com/halvect/remod/pkg/schema"
)

// Options configures a new Workspace. The codec registry is passed in
// explicitly, populated at startup, and treated as read-only from then on.
type Options struct {
	GameRoot    string
	Archives    []*pak.Archive
	Schema      *schema.Set
	Codecs      *resource.Registry
	BundlesDir  string
	GameVersion string
	Logger      zerolog.Logger
}

// Workspace is the orchestrator for one editing session.
type Workspace struct {
	logger      zerolog.Logger
	schema      *schema.Set
	codecs      *resource.Registry
	archives    map[string]*pak.Archive
	base        *resolve.Resolver
	cache       *resource.Cache
	bundles     *bundle.Manager
	gameVersion string

	active      *bundle.Bundle
	sessionName string

	instances map[string]bundle.EntityInstance
	pending   *staleSet
}

// New builds a workspace over the game installation. No bundle is active
// until SetBundle.
func New(opts Options) (*Workspace, error) {
	manager, err := bundle.NewManager(opts.BundlesDir, opts.Logger)
	if err != nil {
		return nil, err
	}

	archives := make(map[string]*pak.Archive, len(opts.Archives))
	mounts := make([]resolve.Archive, 0, len(opts.Archives))
	for _, a := range opts.Archives {
		archives[a.Label()] = a
		mounts = append(mounts, a)
	}

	base := resolve.New(opts.GameRoot, mounts, opts.Logger)
	w := &Workspace{
		logger:      opts.Logger,
		schema:      opts.Schema,
		codecs:      opts.Codecs,
		archives:    archives,
		base:        base,
		bundles:     manager,
		gameVersion: opts.GameVersion,
		instances:   make(map[string]bundle.EntityInstance),
		pending:     newStaleSet(),
	}
	w.cache = resource.NewCache(base, opts.Codecs, w.readArchive, opts.Logger)
	return w, nil
}

func (w *Workspace) readArchive(label, entryPath string) ([]byte, error) {
	a, ok := w.archives[label]
	if !ok {
		return nil, fmt.Errorf("archive %q not mounted", label)
	}
	return a.Read(entryPath)
}

// Schema returns the merged runtime schema.
func (w *Workspace) Schema() *schema.Set { return w.schema }

// Bundles returns the bundle manager.
func (w *Workspace) Bundles() *bundle.Manager { return w.bundles }

// Cache returns the session's resource cache.
func (w *Workspace) Cache() *resource.Cache { return w.cache }

// Resolver returns the resolver currently in effect: bundle-scoped when a
// bundle is active, the base resolver otherwise.
func (w *Workspace) Resolver() *resolve.Resolver { return w.cache.Resolver() }

// ActiveBundle returns the active bundle, or nil.
func (w *Workspace) ActiveBundle() *bundle.Bundle { return w.active }

// GameVersion returns the resolved version hash for this session.
func (w *Workspace) GameVersion() string { return w.gameVersion }

// SessionName labels the current editing session.
func (w *Workspace) SessionName() string { return w.sessionName }

// SetSessionName sets the session label.
func (w *Workspace) SetSessionName(name string) { w.sessionName = name }

// SetBundle activates the named bundle, swapping in a bundle-scoped
// resolver and a fresh resource cache over it. An empty name deactivates:
// the scope is torn down and the session name cleared if it matched the
// bundle. Handles open in the outgoing scope are released and their
// holders notified; they must not outlive the scope they resolved under.
func (w *Workspace) SetBundle(name string) error {
	if name == "" {
		if w.active != nil && w.sessionName == w.active.Name {
			w.sessionName = ""
		}
		w.active = nil
		w.cache.ReleaseAll()
		w.cache = resource.NewCache(w.base, w.codecs, w.readArchive, w.logger)
		w.logger.Info().Msg("bundle deactivated")
		return nil
	}

	scoped, err := w.bundles.ScopedResolver(w.base, name)
	if err != nil {
		return err
	}
	b, _ := w.bundles.Get(name)
	w.active = b
	w.cache.ReleaseAll()
	w.cache = resource.NewCache(scoped, w.codecs, w.readArchive, w.logger)
	w.logger.Info().Str("bundle", name).Msg("bundle activated")
	return nil
}

// Open resolves and opens a resource through the session cache.
func (w *Workspace) Open(logical string, holder resource.Holder) (*resource.Handle, error) {
	return w.cache.Open(logical, holder)
}

// RegisterInstance tracks a live entity instance for the save cycle.
func (w *Workspace) RegisterInstance(inst bundle.EntityInstance) {
	w.instances[instanceKey(inst.TypeKey(), inst.EntityKey())] = inst
}

// DropInstance forgets a live instance; its bundle record is pruned on
// the next save.
func (w *Workspace) DropInstance(typeKey, key string) {
	delete(w.instances, instanceKey(typeKey, key))
}

func (w *Workspace) lookupInstance(typeKey, key string) (bundle.EntityInstance, bool) {
	inst, ok := w.instances[instanceKey(typeKey, key)]
	return inst, ok
}

func instanceKey(typeKey, key string) string { return typeKey + "\x00" + key }

// Save drives the save cycle against the active bundle: diff every open
// modified resource (every listed target when forced), recompute every
// entity diff, prune no-op records, stamp the game version, and persist.
func (w *Workspace) Save(force bool) error {
	if w.active == nil {
		return fmt.Errorf("save: no active bundle")
	}
	return w.bundles.SaveBundle(w.active, w.cache, w.lookupInstance, w.gameVersion, force)
}

// Clone returns an independent workspace over the same installation for
// a background worker: same schema, codecs, and bundle set, but its own
// resolver view and an empty cache. Workers must never touch the
// interactive session's cache.
func (w *Workspace) Clone() *Workspace {
	dup := &Workspace{
		logger:      w.logger,
		schema:      w.schema,
		codecs:      w.codecs,
		archives:    w.archives,
		base:        w.base,
		bundles:     w.bundles,
		gameVersion: w.gameVersion,
		active:      w.active,
		instances:   make(map[string]bundle.EntityInstance),
		pending:     newStaleSet(),
	}
	dup.cache = resource.NewCache(w.cache.Resolver(), w.codecs, dup.readArchive, w.logger)
	return dup
}
