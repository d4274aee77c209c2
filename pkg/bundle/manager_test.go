package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/halvect/remod/pkg/resolve"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	gameRoot := t.TempDir()
	root := filepath.Join(gameRoot, filepath.FromSlash(RelativeBundleDir))
	m, err := NewManager(root, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m, gameRoot
}

func TestCreateGetDelete(t *testing.T) {
	m, _ := newTestManager(t)

	b, err := m.Create("garm-retexture")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := os.Stat(m.metadataPath("garm-retexture")); err != nil {
		t.Fatalf("metadata not written: %v", err)
	}
	if _, err := os.Stat(b.Dir()); err != nil {
		t.Fatalf("payload dir not created: %v", err)
	}

	if _, err := m.Create("garm-retexture"); err == nil {
		t.Error("duplicate Create succeeded")
	}

	got, ok := m.Get("garm-retexture")
	if !ok || got != b {
		t.Fatal("Get did not return the created bundle")
	}

	if err := m.Delete("garm-retexture"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := m.Get("garm-retexture"); ok {
		t.Error("deleted bundle still registered")
	}
	if _, err := os.Stat(m.metadataPath("garm-retexture")); !os.IsNotExist(err) {
		t.Error("metadata survived delete")
	}
	if err := m.Delete("garm-retexture"); err == nil {
		t.Error("deleting a missing bundle succeeded")
	}
}

func TestManagerEnumeratesPersistedBundles(t *testing.T) {
	m, gameRoot := newTestManager(t)
	b, err := m.Create("alpha")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	b.Author = "someone"
	b.AddResource("natives/stm/a.mesh", "natives/stm/a.mesh")
	if err := m.Persist(b); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	// A corrupt bundle file is skipped, not fatal.
	bad := filepath.Join(m.Root(), "broken.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	m2, err := NewManager(filepath.Join(gameRoot, filepath.FromSlash(RelativeBundleDir)), zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	names := m2.Names()
	if len(names) != 1 || names[0] != "alpha" {
		t.Fatalf("Names = %v", names)
	}
	reloaded, _ := m2.Get("alpha")
	if reloaded.Author != "someone" || len(reloaded.ResourceListing) != 1 {
		t.Errorf("reloaded bundle = %+v", reloaded)
	}
}

func TestPersist_NoOpLeavesFileUntouched(t *testing.T) {
	m, _ := newTestManager(t)
	b, err := m.Create("alpha")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	path := m.metadataPath("alpha")
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	beforeInfo, _ := os.Stat(path)

	if err := m.Persist(b); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	after, _ := os.ReadFile(path)
	afterInfo, _ := os.Stat(path)
	if string(before) != string(after) {
		t.Error("no-op persist changed file content")
	}
	if !beforeInfo.ModTime().Equal(afterInfo.ModTime()) {
		t.Error("no-op persist rewrote the file")
	}
}

func TestScopedResolver(t *testing.T) {
	m, gameRoot := newTestManager(t)
	b, err := m.Create("alpha")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	payload := filepath.Join(b.Dir(), "natives", "stm", "a.mesh")
	if err := os.MkdirAll(filepath.Dir(payload), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(payload, []byte("override"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	b.AddResource("natives/stm/a.mesh", "natives/stm/a.mesh")

	base := resolve.New(gameRoot, nil, zerolog.Nop())
	scoped, err := m.ScopedResolver(base, "alpha")
	if err != nil {
		t.Fatalf("ScopedResolver failed: %v", err)
	}

	src, err := scoped.Resolve("natives/stm/a.mesh")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if src.Kind != resolve.KindBundle || src.Path != payload {
		t.Errorf("resolve = %+v", src)
	}

	// The base resolver is untouched by the scoped view.
	if _, err := base.Resolve("natives/stm/a.mesh"); err == nil {
		t.Error("base resolver sees the bundle overlay")
	}

	if _, err := m.ScopedResolver(base, "nope"); err == nil {
		t.Error("scoped resolver for unknown bundle succeeded")
	}
}
