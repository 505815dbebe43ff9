package migrator

import (
	"context"

	"github.com/mirajehossain/migratex"
	"github.com/mirajehossain/migratex/internal/fsutil"
)

// Backend is the part of *migratex.Store the planner and runner use.
type Backend interface {
	Run(ctx context.Context, m migratex.Migration) error
	Records(ctx context.Context, startID int64) ([]migratex.Record, error)
	Repair(ctx context.Context, records []migratex.RepairRecord) error
}

var _ Backend = (*migratex.Store)(nil)

type FilePair struct {
	Version   string
	Name      string
	UpPath    string
	DownPath  string
	UpBytes   []byte
	DownBytes []byte
	Checksum  string
}

func (fp FilePair) Key() string { return Key(fp.Version, fp.Name) }

// Key joins version and name; records use their title as the name.
func Key(version, name string) string { return fsutil.Key(version, name) }

// Drift is an applied migration whose file no longer hashes to the recorded value.
type Drift struct {
	Pair   FilePair
	Record migratex.Record
}
