package resource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/halvect/remod/pkg/resolve"
)

// rawCodec keeps the raw bytes as state and reports a diff whenever the
// state no longer matches the original bytes.
type rawCodec struct{}

func (rawCodec) Tag() string { return "raw" }

func (rawCodec) LoadBase(h *Handle) error {
	if len(h.Raw) == 0 {
		return fmt.Errorf("empty resource")
	}
	h.State = string(h.Raw)
	return nil
}

func (rawCodec) FindDiff(h *Handle) (*Patch, error) {
	cur := h.State.(string)
	if cur == string(h.Raw) {
		return nil, nil
	}
	return NewPatch(map[string]any{"content": cur})
}

func (rawCodec) ApplyDiff(h *Handle, p *Patch) error {
	body, _ := p.Value().(map[string]any)
	if s, ok := body["content"].(string); ok {
		h.State = s
	}
	return nil
}

type testHolder struct {
	closed int
}

func (t *testHolder) ResourceClosed(*Handle) { t.closed++ }

func newTestCache(t *testing.T) (*Cache, string) {
	t.Helper()
	root := t.TempDir()
	codecs := NewRegistry()
	codecs.Register("txt", rawCodec{})
	r := resolve.New(root, nil, zerolog.Nop())
	return NewCache(r, codecs, nil, zerolog.Nop()), root
}

func writeGameFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestOpen_IdempotentPerResolvedPath(t *testing.T) {
	c, root := newTestCache(t)
	writeGameFile(t, root, "natives/a.txt", "hello")

	h1, err := c.Open("natives/a.txt", &testHolder{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	h2, err := c.Open(`Natives\A.TXT`, &testHolder{})
	if err != nil {
		t.Fatalf("repeat Open failed: %v", err)
	}
	if h1 != h2 {
		t.Error("repeat open returned a different handle")
	}
	if h1.HolderCount() != 2 {
		t.Errorf("holder count = %d, want 2", h1.HolderCount())
	}
	if c.Len() != 1 {
		t.Errorf("cache size = %d, want 1", c.Len())
	}
}

func TestClose_ReleasesOnlyWhenUnheldAndUnretained(t *testing.T) {
	c, root := newTestCache(t)
	writeGameFile(t, root, "a.txt", "hello")

	hold1, hold2 := &testHolder{}, &testHolder{}
	h, err := c.Open("a.txt", hold1)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := c.Open("a.txt", hold2); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	c.Close(h, hold1)
	if c.Len() != 1 {
		t.Fatal("released while still held")
	}

	c.Retain(h, true)
	c.Close(h, hold2)
	if c.Len() != 1 {
		t.Fatal("released while retained")
	}

	// Zero holders is not sufficient for eviction; dropping the retain
	// flag with no holders left is.
	c.Retain(h, false)
	if c.Len() != 0 {
		t.Fatal("not released after retain cleared")
	}
	if h.Raw != nil || h.State != nil {
		t.Error("released handle still owns data")
	}
}

func TestOpen_ParseErrorIsRecoverable(t *testing.T) {
	c, root := newTestCache(t)
	writeGameFile(t, root, "bad.txt", "") // rawCodec rejects empty files
	writeGameFile(t, root, "good.txt", "ok")

	_, err := c.Open("bad.txt", nil)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}

	// Other resolutions proceed.
	if _, err := c.Open("good.txt", nil); err != nil {
		t.Fatalf("Open after parse error failed: %v", err)
	}
}

func TestOpen_NoCodec(t *testing.T) {
	c, root := newTestCache(t)
	writeGameFile(t, root, "a.mesh", "binary")

	_, err := c.Open("a.mesh", nil)
	if !errors.Is(err, ErrNoCodec) {
		t.Fatalf("err = %v, want ErrNoCodec", err)
	}
}

func TestModifiedEnumeration(t *testing.T) {
	c, root := newTestCache(t)
	writeGameFile(t, root, "b.txt", "b")
	writeGameFile(t, root, "a.txt", "a")

	ha, _ := c.Open("a.txt", &testHolder{})
	hb, _ := c.Open("b.txt", &testHolder{})
	if len(c.Modified()) != 0 {
		t.Fatal("fresh handles reported modified")
	}

	c.MarkModified(hb)
	c.MarkModified(ha)
	mods := c.Modified()
	if len(mods) != 2 || mods[0] != ha || mods[1] != hb {
		t.Fatalf("Modified() = %v", mods)
	}

	c.ClearModified(ha)
	if len(c.Modified()) != 1 {
		t.Error("ClearModified had no effect")
	}
}

func TestReload_ClearsFlagsAndNotifies(t *testing.T) {
	c, root := newTestCache(t)
	writeGameFile(t, root, "a.txt", "v1")

	hold := &testHolder{}
	h, err := c.Open("a.txt", hold)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	c.MarkModified(h)
	c.MarkStale("a.txt")

	writeGameFile(t, root, "a.txt", "v2")
	if err := c.Reload(h); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if h.Modified() || h.Stale() {
		t.Error("flags survived reload")
	}
	if h.State.(string) != "v2" {
		t.Errorf("state = %q, want reloaded content", h.State)
	}
	if hold.closed != 1 {
		t.Errorf("holder notified %d times, want 1", hold.closed)
	}
}

// ReleaseAll evicts held and retained handles alike, notifying holders.
func TestReleaseAll(t *testing.T) {
	c, root := newTestCache(t)
	writeGameFile(t, root, "a.txt", "a")
	writeGameFile(t, root, "b.txt", "b")

	hold := &testHolder{}
	ha, err := c.Open("a.txt", hold)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	c.Retain(ha, true)
	if _, err := c.Open("b.txt", nil); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	c.ReleaseAll()
	if c.Len() != 0 {
		t.Fatalf("cache size = %d after ReleaseAll", c.Len())
	}
	if hold.closed != 1 {
		t.Errorf("holder notified %d times, want 1", hold.closed)
	}
	if ha.Raw != nil || ha.State != nil {
		t.Error("released handle still owns data")
	}
}

func TestClone_IndependentHandles(t *testing.T) {
	c, root := newTestCache(t)
	writeGameFile(t, root, "a.txt", "x")
	if _, err := c.Open("a.txt", &testHolder{}); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	worker := c.Clone(c.Resolver())
	if worker.Len() != 0 {
		t.Fatal("clone shares handles with the interactive cache")
	}
	if _, err := worker.Open("a.txt", nil); err != nil {
		t.Fatalf("clone Open failed: %v", err)
	}
	if c.Len() != 1 || worker.Len() != 1 {
		t.Error("caches not independent")
	}
}
