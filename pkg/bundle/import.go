package bundle

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/halvect/remod/pkg/pak"
	"github.com/halvect/remod/pkg/resolve"
)

// ErrNestedBundle marks an import source containing an already-initialized
// bundle. Installing one bundle inside another would double-apply it, so
// the whole import aborts with nothing written.
var ErrNestedBundle = errors.New("import source contains a nested bundle")

// nativePrefix is the reserved engine-native assets prefix: files under it
// become direct resource-listing targets.
const nativePrefix = "natives/"

// unsupportedPrefix is the reserved integration prefix for script payloads
// this tool cannot manage. Such files are installed but flagged.
const unsupportedPrefix = "reframework/autorun/"

// ImportReport describes what InitializeUnlabelledBundle did with each
// file in the source.
type ImportReport struct {
	Manifest      Manifest
	Direct        []string          // files under the native prefix, listed as-is
	Guessed       map[string]string // local path to native path from the global index
	LowConfidence []string          // guesses that need manual review
	Unsupported   []string          // accepted but unmanaged files
	Existing      bool              // bundle metadata already present, listing untouched
}

// InitializeUnlabelledBundle imports a mod from a loose folder or a .pak
// archive into a new bundle. Files are classified by location convention;
// files outside the reserved prefixes are matched against the global path
// index by filename to guess their native path. If bundle metadata for
// the resolved name already exists, the import is a no-op apart from the
// report: re-importing is idempotent.
func (m *Manager) InitializeUnlabelledBundle(src string, index *resolve.Index, gameVersion string) (*Bundle, *ImportReport, error) {
	srcDir, cleanup, err := m.stageSource(src)
	if err != nil {
		return nil, nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	report := &ImportReport{Guessed: make(map[string]string)}
	report.Manifest = readManifest(srcDir)

	name := report.Manifest.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	}

	files, err := collectFiles(srcDir)
	if err != nil {
		return nil, nil, fmt.Errorf("import %s: %w", src, err)
	}

	// Classification pass runs before anything is written, so a nested
	// bundle aborts with no partial install.
	type placed struct {
		local  string
		target string
	}
	var listing []placed
	for _, rel := range files {
		norm := resolve.NormalizePath(rel)
		base := filepath.Base(norm)

		switch {
		case isManifestName(base) && !strings.ContainsRune(norm, '/'):
			// metadata, not a resource

		case strings.Contains(norm, RelativeBundleDir+"/"):
			return nil, nil, fmt.Errorf("import %s: %q: %w", src, norm, ErrNestedBundle)

		case strings.HasPrefix(norm, nativePrefix):
			listing = append(listing, placed{local: norm, target: norm})
			report.Direct = append(report.Direct, norm)

		case strings.HasPrefix(norm, unsupportedPrefix):
			report.Unsupported = append(report.Unsupported, norm)
			m.logger.Warn().Str("file", norm).Msg("unsupported integration file accepted unmanaged")

		default:
			matches := index.FindByFilenameSuffix(base, 2)
			target := norm
			switch len(matches) {
			case 1:
				target = matches[0]
			default:
				// none or ambiguous: keep the local path and flag it
				report.LowConfidence = append(report.LowConfidence, norm)
				if len(matches) > 1 {
					target = matches[0]
				}
			}
			listing = append(listing, placed{local: norm, target: target})
			report.Guessed[norm] = target
		}
	}

	// Idempotent re-import: existing metadata wins, listing and version
	// are left untouched.
	if _, err := os.Stat(m.metadataPath(name)); err == nil {
		report.Existing = true
		b, ok := m.bundles[name]
		if !ok {
			if b, err = m.load(m.metadataPath(name)); err != nil {
				return nil, nil, fmt.Errorf("import %s: %w", src, err)
			}
			m.bundles[name] = b
		}
		m.logger.Info().Str("bundle", name).Msg("bundle already initialized, import is a no-op")
		return b, report, nil
	}

	b := &Bundle{
		Name:            name,
		Author:          report.Manifest.Author,
		Description:     report.Manifest.Description,
		GameVersion:     gameVersion,
		ResourceListing: make(map[string]*ResourceListItem),
		dir:             m.payloadDir(name),
	}

	for _, p := range listing {
		if err := copyFile(filepath.Join(srcDir, filepath.FromSlash(p.local)), filepath.Join(b.dir, filepath.FromSlash(p.local))); err != nil {
			return nil, nil, fmt.Errorf("import %s: %w", src, err)
		}
		b.ResourceListing[p.local] = &ResourceListItem{Target: p.target}
	}
	for _, rel := range report.Unsupported {
		if err := copyFile(filepath.Join(srcDir, filepath.FromSlash(rel)), filepath.Join(b.dir, filepath.FromSlash(rel))); err != nil {
			return nil, nil, fmt.Errorf("import %s: %w", src, err)
		}
	}

	if err := m.Persist(b); err != nil {
		return nil, nil, err
	}
	m.bundles[name] = b
	m.logger.Info().Str("bundle", name).Int("resources", len(b.ResourceListing)).Msg("bundle imported")
	return b, report, nil
}

// stageSource returns a directory holding the import source's files. A
// .pak archive is unpacked into a staging directory first; the cleanup
// function removes it.
func (m *Manager) stageSource(src string) (string, func(), error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", nil, fmt.Errorf("import %s: %w", src, err)
	}
	if info.IsDir() {
		return src, nil, nil
	}

	a, err := pak.Open(src)
	if err != nil {
		return "", nil, fmt.Errorf("import %s: %w", src, err)
	}
	staging := filepath.Join(os.TempDir(), "remod-import-"+uuid.NewString())
	if err := a.UnpackTo(staging); err != nil {
		os.RemoveAll(staging)
		return "", nil, fmt.Errorf("import %s: %w", src, err)
	}
	return staging, func() { os.RemoveAll(staging) }, nil
}

func readManifest(dir string) Manifest {
	for _, name := range manifestFileNames {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return ParseManifest(data)
		}
	}
	return Manifest{}
}

func isManifestName(base string) bool {
	for _, name := range manifestFileNames {
		if base == name {
			return true
		}
	}
	return false
}

// collectFiles returns all regular files under dir as slash-separated
// relative paths. Per-file stat failures are skipped, not fatal.
func collectFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	return out, err
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
