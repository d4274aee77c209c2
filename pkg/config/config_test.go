package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "remod.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
game:
  root: /games/re
  executable: game.exe
  archives: [re_chunk_000.pak]
definitions:
  - /defs/base
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default level = %q", cfg.Logging.Level)
	}
	if !strings.HasSuffix(filepath.ToSlash(cfg.BundlesDir), "reframework/data/usercontent/bundles") {
		t.Errorf("bundles dir = %q", cfg.BundlesDir)
	}
	if cfg.Game.Executable != filepath.Join("/games/re", "game.exe") {
		t.Errorf("executable = %q, relative path not anchored", cfg.Game.Executable)
	}
	if cfg.Game.Archives[0] != filepath.Join("/games/re", "re_chunk_000.pak") {
		t.Errorf("archive = %q", cfg.Game.Archives[0])
	}
}

func TestLoad_Invalid(t *testing.T) {
	if _, err := Load(writeConfig(t, "definitions: []\n")); err == nil {
		t.Error("missing game.root accepted")
	}
	if _, err := Load(writeConfig(t, "game:\n  root: /g\nlogging:\n  level: loud\n")); err == nil {
		t.Error("bad logging level accepted")
	}
	if _, err := Load(writeConfig(t, ":::")); err == nil {
		t.Error("malformed yaml accepted")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}
