package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
)

var fileRe = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_\-]+)\.(up|down)\.sql$`)

var ErrIncompletePair = errors.New("migration is missing its up or down file")

type Pair struct {
	Version  string
	Name     string
	UpPath   string // path within the scanned fs
	DownPath string
}

// Key identifies a pair the same way the bookkeeping records do.
func (p *Pair) Key() string { return Key(p.Version, p.Name) }

func Key(version, name string) string { return version + ":" + name }

// ScanDir scans a local directory on disk.
func ScanDir(dir string) (fs.FS, map[string]*Pair, error) {
	fsys := os.DirFS(dir)
	pairs, err := Scan(fsys, ".")
	return fsys, pairs, err
}

// Scan reads the migration pairs found directly under root in fsys.
func Scan(fsys fs.FS, root string) (map[string]*Pair, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, err
	}
	out := map[string]*Pair{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := fileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		version, name, typ := m[1], m[2], m[3]
		key := Key(version, name)
		p := out[key]
		if p == nil {
			p = &Pair{Version: version, Name: name}
			out[key] = p
		}
		full := path.Join(root, e.Name())
		switch typ {
		case "up":
			if p.UpPath != "" {
				return nil, fmt.Errorf("duplicate up file for version %s", version)
			}
			p.UpPath = full
		case "down":
			if p.DownPath != "" {
				return nil, fmt.Errorf("duplicate down file for version %s", version)
			}
			p.DownPath = full
		}
	}
	for k, p := range out {
		if p.UpPath == "" || p.DownPath == "" {
			return nil, fmt.Errorf("%w: %s", ErrIncompletePair, k)
		}
	}
	return out, nil
}

func SortKeys(m map[string]*Pair) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		// Compare on version then name
		vi := strings.SplitN(keys[i], ":", 2)[0]
		vj := strings.SplitN(keys[j], ":", 2)[0]
		if vi == vj {
			return keys[i] < keys[j]
		}
		return CompareVersions(vi, vj) < 0
	})
	return keys
}

// CompareVersions orders numeric versions of any width: a shorter version is
// smaller, equal widths compare lexically.
func CompareVersions(a, b string) int {
	a, b = strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
