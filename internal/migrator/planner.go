package migrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/mirajehossain/migratex"
	"github.com/mirajehossain/migratex/internal/checksum"
	"github.com/mirajehossain/migratex/internal/fsutil"
)

type FileSource struct {
	FS      fs.FS // nil means local disk
	RootDir string
}

type Plan struct {
	All      []FilePair                 // all discovered, by version
	Applied  map[string]migratex.Record // key -> latest clean "do" record
	Pending  []FilePair                 // to apply in order
	Baseline []FilePair                 // at or below the base version, never run
	Dirty    []migratex.Record
	Drifted  []Drift
}

var (
	ErrDrift = errors.New("checksum drift detected")
	ErrDirty = errors.New("dirty migration records present, run repair")
)

// Check reports whether the plan is safe to execute.
func (p *Plan) Check() error {
	if len(p.Dirty) > 0 {
		r := p.Dirty[0]
		return fmt.Errorf("%w: %s (record %d)", ErrDirty, Key(r.Version, r.Title), r.ID)
	}
	if len(p.Drifted) > 0 {
		d := p.Drifted[0]
		return fmt.Errorf("%w: %s (db=%s file=%s)", ErrDrift, d.Pair.Key(), d.Record.Hash, d.Pair.Checksum)
	}
	return nil
}

// Load reads every migration pair from src, sorted by version.
func Load(src FileSource) ([]FilePair, error) {
	var (
		fsys  fs.FS
		pairs map[string]*fsutil.Pair
		err   error
	)
	if src.FS == nil {
		fsys, pairs, err = fsutil.ScanDir(src.RootDir)
	} else {
		fsys = src.FS
		pairs, err = fsutil.Scan(fsys, src.RootDir)
	}
	if err != nil {
		return nil, err
	}
	all := make([]FilePair, 0, len(pairs))
	for _, k := range fsutil.SortKeys(pairs) {
		p := pairs[k]
		upb, err := fs.ReadFile(fsys, p.UpPath)
		if err != nil {
			return nil, err
		}
		downb, err := fs.ReadFile(fsys, p.DownPath)
		if err != nil {
			return nil, err
		}
		all = append(all, FilePair{
			Version: p.Version, Name: p.Name, UpPath: p.UpPath, DownPath: p.DownPath,
			UpBytes: upb, DownBytes: downb, Checksum: checksum.Script(upb), // checksum on up file
		})
	}
	return all, nil
}

// Fold replays records in id order. A clean "do" marks its key applied, a
// clean "undo" unmarks it. Dirty records are collected separately.
func Fold(records []migratex.Record) (applied map[string]migratex.Record, dirty []migratex.Record) {
	applied = map[string]migratex.Record{}
	for _, r := range records {
		if r.Dirty {
			dirty = append(dirty, r)
			continue
		}
		k := Key(r.Version, r.Title)
		switch r.Type {
		case migratex.TypeDo:
			applied[k] = r
		case migratex.TypeUndo:
			delete(applied, k)
		}
	}
	return applied, dirty
}

// DiscoverAndPlan loads migration pairs and decides which to run. Versions at
// or below baseVersion that were never recorded are treated as a baseline.
func DiscoverAndPlan(ctx context.Context, src FileSource, b Backend, baseVersion string) (*Plan, error) {
	all, err := Load(src)
	if err != nil {
		return nil, err
	}
	records, err := b.Records(ctx, 0)
	if err != nil {
		return nil, err
	}
	applied, dirty := Fold(records)

	plan := &Plan{All: all, Applied: applied, Dirty: dirty}
	for _, fp := range all {
		if row, ok := applied[fp.Key()]; ok {
			if !strings.EqualFold(row.Hash, fp.Checksum) {
				plan.Drifted = append(plan.Drifted, Drift{Pair: fp, Record: row})
			}
			continue
		}
		if baseVersion != "" && fsutil.CompareVersions(fp.Version, baseVersion) <= 0 {
			plan.Baseline = append(plan.Baseline, fp)
			continue
		}
		plan.Pending = append(plan.Pending, fp)
	}
	return plan, nil
}

// LastApplied returns up to n applied pairs, most recently applied first.
// A pair whose file is gone is an error since its down script is needed.
func (p *Plan) LastApplied(n int) ([]FilePair, error) {
	rows := make([]migratex.Record, 0, len(p.Applied))
	for _, r := range p.Applied {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	if n >= 0 && n < len(rows) {
		rows = rows[:n]
	}

	lookup := make(map[string]FilePair, len(p.All))
	for _, fp := range p.All {
		lookup[fp.Key()] = fp
	}
	out := make([]FilePair, 0, len(rows))
	for _, r := range rows {
		fp, ok := lookup[Key(r.Version, r.Title)]
		if !ok {
			return nil, fmt.Errorf("missing down file for %s", Key(r.Version, r.Title))
		}
		out = append(out, fp)
	}
	return out, nil
}
