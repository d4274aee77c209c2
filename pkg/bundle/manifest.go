package bundle

import (
	"bufio"
	"strings"
)

// Manifest is the optional mod metadata shipped alongside an importable
// mod as a plain key=value file. Keys are case-insensitive; unrecognized
// keys are ignored.
type Manifest struct {
	Name        string
	Author      string
	Description string
}

// manifestFileNames are the file basenames probed for a manifest, in
// preference order.
var manifestFileNames = []string{"modinfo.ini", "info.ini"}

// ParseManifest reads key=value lines. Lines without '=', blank lines,
// and lines starting with '#' or ';' are skipped.
func ParseManifest(data []byte) Manifest {
	var m Manifest
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:eq]))
		value := strings.TrimSpace(line[eq+1:])

		switch key {
		case "name":
			m.Name = value
		case "author":
			m.Author = value
		case "description":
			m.Description = value
		}
	}
	return m
}
