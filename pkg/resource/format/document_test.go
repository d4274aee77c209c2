package format

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/halvect/remod/pkg/resource"
)

const motionList = `{
	"records": [
		{"name": "walk", "speed": 1.0, "loop": true},
		{"name": "run", "speed": 2.5, "loop": true},
		{"name": "attack", "speed": 1.2, "loop": false}
	]
}`

func loadDoc(t *testing.T, raw string) (*DocumentCodec, *resource.Handle) {
	t.Helper()
	codec := NewDocumentCodec(zerolog.Nop())
	h := &resource.Handle{Logical: "natives/motion/pl00.motlist.json", Raw: []byte(raw)}
	if err := codec.LoadBase(h); err != nil {
		t.Fatalf("LoadBase failed: %v", err)
	}
	return codec, h
}

func TestFindDiff_NoChange(t *testing.T) {
	codec, h := loadDoc(t, motionList)
	p, err := codec.FindDiff(h)
	if err != nil {
		t.Fatalf("FindDiff failed: %v", err)
	}
	if p != nil {
		t.Fatalf("unchanged document produced diff %s", p.Canonical())
	}
}

// A formatting-only reload must not register as a change: comparison is on
// canonical forms, not raw bytes.
func TestFindDiff_IdempotentCanonicalForm(t *testing.T) {
	codec, h := loadDoc(t, motionList)
	doc, err := Edit(h)
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	rec, _ := doc.Find("run")
	rec["speed"] = 3.0
	doc.Set(rec)

	p1, err := codec.FindDiff(h)
	if err != nil {
		t.Fatalf("FindDiff failed: %v", err)
	}
	p2, err := codec.FindDiff(h)
	if err != nil {
		t.Fatalf("second FindDiff failed: %v", err)
	}
	if p1 == nil || p2 == nil {
		t.Fatal("expected a diff")
	}
	if !p1.Equal(p2) {
		t.Errorf("FindDiff not idempotent:\n%s\n%s", p1.Canonical(), p2.Canonical())
	}
}

func TestFindDiff_ReplaceAddRemove(t *testing.T) {
	codec, h := loadDoc(t, motionList)
	doc, _ := Edit(h)

	rec, _ := doc.Find("walk")
	rec["speed"] = 1.5
	doc.Set(rec)
	doc.Set(Record{"name": "dodge", "speed": 4.0})
	doc.Remove("attack")

	p, err := codec.FindDiff(h)
	if err != nil {
		t.Fatalf("FindDiff failed: %v", err)
	}
	body := p.Value().(map[string]any)

	replace := body["replace"].(map[string]any)
	if _, ok := replace["walk"]; !ok {
		t.Error("walk not in replace set")
	}
	add := body["add"].([]any)
	if len(add) != 1 {
		t.Errorf("add = %v", add)
	}
	remove := body["remove"].([]any)
	if len(remove) != 1 || remove[0] != "attack" {
		t.Errorf("remove = %v", remove)
	}
}

func TestApplyDiff_RoundTrip(t *testing.T) {
	codec, h := loadDoc(t, motionList)
	doc, _ := Edit(h)
	rec, _ := doc.Find("run")
	rec["speed"] = 9.0
	doc.Set(rec)
	doc.Set(Record{"name": "dodge", "speed": 4.0})

	p, err := codec.FindDiff(h)
	if err != nil {
		t.Fatalf("FindDiff failed: %v", err)
	}

	// Fresh baseline, as when instantiating a bundle-patched resource.
	codec2, h2 := loadDoc(t, motionList)
	if err := codec2.ApplyDiff(h2, p); err != nil {
		t.Fatalf("ApplyDiff failed: %v", err)
	}
	doc2, _ := Edit(h2)
	run, _ := doc2.Find("run")
	if run["speed"] != 9.0 {
		t.Errorf("run.speed = %v, want 9", run["speed"])
	}
	if _, ok := doc2.Find("dodge"); !ok {
		t.Error("added record missing after apply")
	}

	// After apply, the diff of the patched document equals the original.
	p2, err := codec2.FindDiff(h2)
	if err != nil {
		t.Fatalf("FindDiff after apply failed: %v", err)
	}
	if p2 == nil || !p2.Equal(p) {
		t.Error("apply did not reproduce the original diff")
	}
}

// A patch element naming a record absent from the current base is skipped;
// the rest of the patch still applies.
func TestApplyDiff_MissingElementSkipped(t *testing.T) {
	codec, h := loadDoc(t, motionList)
	p, err := resource.NewPatch(map[string]any{
		"replace": map[string]any{
			"vanished": map[string]any{"name": "vanished", "speed": 0.0},
			"walk":     map[string]any{"name": "walk", "speed": 7.0, "loop": true},
		},
		"remove": []any{"also-gone"},
	})
	if err != nil {
		t.Fatalf("NewPatch failed: %v", err)
	}

	if err := codec.ApplyDiff(h, p); err != nil {
		t.Fatalf("ApplyDiff failed: %v", err)
	}
	doc, _ := Edit(h)
	walk, _ := doc.Find("walk")
	if walk["speed"] != 7.0 {
		t.Errorf("walk.speed = %v, want 7", walk["speed"])
	}
	if _, ok := doc.Find("vanished"); ok {
		t.Error("missing element was applied as new record")
	}
}
