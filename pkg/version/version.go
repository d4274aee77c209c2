// Package version derives a stable hash identifying the installed game
// build: executable metadata plus the mounted archive set. Bundles record
// this hash so a mod applied against a different build can be detected.
package version

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// Hash computes the game-version hash from the executable path and the
// archive file set. It hashes names, sizes, and the executable mtime, not
// file contents: archives run to tens of gigabytes.
func Hash(exePath string, archives []string) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("version hash: %w", err)
	}

	info, err := os.Stat(exePath)
	if err != nil {
		return "", fmt.Errorf("version hash: stat executable: %w", err)
	}
	fmt.Fprintf(h, "exe %s %d %d\n", filepath.Base(exePath), info.Size(), info.ModTime().Unix())

	sorted := append([]string(nil), archives...)
	sort.Strings(sorted)
	for _, a := range sorted {
		ai, err := os.Stat(a)
		if err != nil {
			return "", fmt.Errorf("version hash: stat archive %s: %w", a, err)
		}
		fmt.Fprintf(h, "pak %s %d\n", filepath.Base(a), ai.Size())
	}

	return hex.EncodeToString(h.Sum(nil)[:16]), nil
}
