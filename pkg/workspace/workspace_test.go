package workspace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/halvect/remod/pkg/bundle"
	"github.com/halvect/remod/pkg/resolve"
	"github.com/halvect/remod/pkg/resource"
	"github.com/halvect/remod/pkg/resource/format"
)

const motionList = `{"records":[{"name":"walk","speed":1.0},{"name":"run","speed":2.5}]}`

type stubInstance struct {
	typeKey, key string
	diff         json.RawMessage
}

func (s *stubInstance) TypeKey() string   { return s.typeKey }
func (s *stubInstance) EntityKey() string { return s.key }
func (s *stubInstance) CalculateDiff() (json.RawMessage, error) {
	return s.diff, nil
}

func newTestWorkspace(t *testing.T) (*Workspace, string) {
	t.Helper()
	gameRoot := t.TempDir()

	codecs := resource.NewRegistry()
	codecs.Register("json", format.NewDocumentCodec(zerolog.Nop()))

	w, err := New(Options{
		GameRoot:    gameRoot,
		Codecs:      codecs,
		BundlesDir:  filepath.Join(gameRoot, filepath.FromSlash(bundle.RelativeBundleDir)),
		GameVersion: "v-test",
		Logger:      zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return w, gameRoot
}

func writeLoose(t *testing.T, gameRoot, rel, content string) {
	t.Helper()
	full := filepath.Join(gameRoot, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSetBundle_StateMachine(t *testing.T) {
	w, _ := newTestWorkspace(t)
	if _, err := w.Bundles().Create("alpha"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := w.SetBundle("alpha"); err != nil {
		t.Fatalf("SetBundle failed: %v", err)
	}
	if w.ActiveBundle() == nil || w.ActiveBundle().Name != "alpha" {
		t.Fatal("bundle not active")
	}
	w.SetSessionName("alpha")

	if err := w.SetBundle(""); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if w.ActiveBundle() != nil {
		t.Error("bundle still active")
	}
	if w.SessionName() != "" {
		t.Error("matching session name not cleared on deactivation")
	}

	if err := w.SetBundle("missing"); err == nil {
		t.Error("activating an unknown bundle succeeded")
	}
}

func TestSetBundle_UnrelatedSessionNameKept(t *testing.T) {
	w, _ := newTestWorkspace(t)
	if _, err := w.Bundles().Create("alpha"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := w.SetBundle("alpha"); err != nil {
		t.Fatalf("SetBundle failed: %v", err)
	}
	w.SetSessionName("scratch")
	if err := w.SetBundle(""); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if w.SessionName() != "scratch" {
		t.Error("unrelated session name cleared")
	}
}

type closeRecorder struct {
	notified int
}

func (c *closeRecorder) ResourceClosed(*resource.Handle) { c.notified++ }

// Swapping scopes releases every handle open in the outgoing cache and
// notifies its holders, even when the handle carried unsaved changes.
func TestSetBundle_TeardownReleasesHandles(t *testing.T) {
	w, _ := newTestWorkspace(t)
	b, err := w.Bundles().Create("alpha")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	const local = "natives/motion/pl00.motlist.json"
	payload := filepath.Join(b.Dir(), filepath.FromSlash(local))
	if err := os.MkdirAll(filepath.Dir(payload), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(payload, []byte(motionList), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	b.AddResource(local, local)

	if err := w.SetBundle("alpha"); err != nil {
		t.Fatalf("SetBundle failed: %v", err)
	}
	hold := &closeRecorder{}
	h, err := w.Open(local, hold)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	w.Cache().MarkModified(h)
	old := w.Cache()

	if err := w.SetBundle(""); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if hold.notified != 1 {
		t.Errorf("holder notified %d times on scope teardown, want 1", hold.notified)
	}
	if old.Len() != 0 {
		t.Errorf("outgoing cache still holds %d handles", old.Len())
	}
	if h.Raw != nil || h.State != nil {
		t.Error("handle survived its scope")
	}
}

// End-to-end save cycle: edit a bundle-provided resource and a live
// entity, save, reload the bundle from disk, verify the diff and the
// pruned entity list.
func TestSaveCycle(t *testing.T) {
	w, _ := newTestWorkspace(t)
	b, err := w.Bundles().Create("alpha")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	const local = "natives/motion/pl00.motlist.json"
	payload := filepath.Join(b.Dir(), filepath.FromSlash(local))
	if err := os.MkdirAll(filepath.Dir(payload), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(payload, []byte(motionList), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	b.AddResource(local, local)
	b.AddEntity(&bundle.EntityRecord{Type: "garm", Key: "boss_01", Data: json.RawMessage(`{"hp":1}`)})
	b.AddEntity(&bundle.EntityRecord{Type: "garm", Key: "boss_02", Data: json.RawMessage(`{"hp":2}`)})

	if err := w.SetBundle("alpha"); err != nil {
		t.Fatalf("SetBundle failed: %v", err)
	}

	h, err := w.Open(local, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if h.Source.Kind != resolve.KindBundle {
		t.Fatalf("resource resolved from %v, want bundle", h.Source.Kind)
	}
	doc, err := format.Edit(h)
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	rec, _ := doc.Find("run")
	rec["speed"] = 9.0
	w.Cache().MarkModified(h)

	// boss_01 still differs; boss_02's diff degenerated to nothing.
	w.RegisterInstance(&stubInstance{typeKey: "garm", key: "boss_01", diff: json.RawMessage(`{"hp":5}`)})
	w.RegisterInstance(&stubInstance{typeKey: "garm", key: "boss_02"})

	if err := w.Save(false); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(w.Bundles().Root(), "alpha.json"))
	if err != nil {
		t.Fatalf("read persisted bundle: %v", err)
	}
	var persisted struct {
		GameVersion     string `json:"game_version"`
		ResourceListing map[string]struct {
			Diff json.RawMessage `json:"diff"`
		} `json:"resource_listing"`
		Entities []struct {
			Key  string          `json:"key"`
			Data json.RawMessage `json:"data"`
		} `json:"entities"`
	}
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("unmarshal persisted bundle: %v", err)
	}

	if persisted.GameVersion != "v-test" {
		t.Errorf("game_version = %q", persisted.GameVersion)
	}
	if len(persisted.ResourceListing[local].Diff) == 0 {
		t.Error("resource diff not persisted")
	}
	if len(persisted.Entities) != 1 || persisted.Entities[0].Key != "boss_01" {
		t.Fatalf("entities = %+v, want only boss_01", persisted.Entities)
	}
	if string(persisted.Entities[0].Data) != `{"hp":5}` {
		t.Errorf("entity data = %s", persisted.Entities[0].Data)
	}
}

func TestSave_NoActiveBundle(t *testing.T) {
	w, _ := newTestWorkspace(t)
	if err := w.Save(false); err == nil {
		t.Error("save without an active bundle succeeded")
	}
}

func TestClone_IndependentSession(t *testing.T) {
	w, gameRoot := newTestWorkspace(t)
	writeLoose(t, gameRoot, "natives/ui/menu.json", `{"records":[{"name":"m"}]}`)

	if _, err := w.Open("natives/ui/menu.json", nil); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	worker := w.Clone()
	if worker.Cache() == w.Cache() {
		t.Fatal("clone shares the interactive cache")
	}
	if worker.Cache().Len() != 0 {
		t.Fatal("clone inherited open handles")
	}
	if _, err := worker.Open("natives/ui/menu.json", nil); err != nil {
		t.Fatalf("clone Open failed: %v", err)
	}

	h, _ := w.Cache().Get("natives/ui/menu.json")
	worker.Cache().MarkModified(mustGet(t, worker, "natives/ui/menu.json"))
	if h.Modified() {
		t.Error("worker modification leaked into the interactive session")
	}
}

func mustGet(t *testing.T, w *Workspace, path string) *resource.Handle {
	t.Helper()
	h, ok := w.Cache().Get(path)
	if !ok {
		t.Fatalf("handle %q not open", path)
	}
	return h
}

func TestApplyStale(t *testing.T) {
	w, gameRoot := newTestWorkspace(t)
	writeLoose(t, gameRoot, "natives/ui/menu.json", `{"records":[{"name":"m"}]}`)

	h, err := w.Open("natives/ui/menu.json", nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	w.pending.add("natives/ui/menu.json")
	changed := w.ApplyStale()
	if len(changed) != 1 {
		t.Fatalf("changed = %v", changed)
	}
	if !h.Stale() {
		t.Error("open handle not marked stale")
	}
	if len(w.ApplyStale()) != 0 {
		t.Error("pending set not drained")
	}
}
