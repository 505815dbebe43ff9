package migrator

import (
	"context"
	"fmt"

	"github.com/mirajehossain/migratex"
	"github.com/mirajehossain/migratex/internal/checksum"
)

// Progress is called around each migration with stage "start", "success" or "error".
type Progress func(stage string, fp FilePair, err error)

type Runner struct {
	Backend  Backend
	DryRun   bool
	Progress Progress
}

func NewRunner(b Backend, dryRun bool, progress Progress) *Runner {
	return &Runner{Backend: b, DryRun: dryRun, Progress: progress}
}

func (r *Runner) report(stage string, fp FilePair, err error) {
	if r.Progress != nil {
		r.Progress(stage, fp, err)
	}
}

// ApplyUp runs the up scripts in order and stops at the first failure. The
// backend has already recorded the failure as dirty by the time it returns.
func (r *Runner) ApplyUp(ctx context.Context, files []FilePair) ([]FilePair, error) {
	applied := make([]FilePair, 0, len(files))
	for _, fp := range files {
		r.report("start", fp, nil)
		if !r.DryRun {
			err := r.Backend.Run(ctx, migratex.Migration{
				Version: fp.Version,
				Type:    migratex.TypeDo,
				Title:   fp.Name,
				Hash:    fp.Checksum,
				Script:  string(fp.UpBytes),
			})
			if err != nil {
				r.report("error", fp, err)
				return applied, fmt.Errorf("migration %s:%s failed: %w", fp.Version, fp.Name, err)
			}
		}
		r.report("success", fp, nil)
		applied = append(applied, fp)
	}
	return applied, nil
}

// ApplyDown runs the down scripts of the given pairs in order, recording each
// as an undo.
func (r *Runner) ApplyDown(ctx context.Context, toRevert []FilePair) ([]FilePair, error) {
	reverted := make([]FilePair, 0, len(toRevert))
	for _, fp := range toRevert {
		r.report("start", fp, nil)
		if !r.DryRun {
			err := r.Backend.Run(ctx, migratex.Migration{
				Version: fp.Version,
				Type:    migratex.TypeUndo,
				Title:   fp.Name,
				Hash:    checksum.Script(fp.DownBytes),
				Script:  string(fp.DownBytes),
			})
			if err != nil {
				r.report("error", fp, err)
				return reverted, fmt.Errorf("down migration %s:%s failed: %w", fp.Version, fp.Name, err)
			}
		}
		r.report("success", fp, nil)
		reverted = append(reverted, fp)
	}
	return reverted, nil
}

// RepairRecords lists the hash fixes for every drifted migration in plan.
func RepairRecords(plan *Plan) []migratex.RepairRecord {
	out := make([]migratex.RepairRecord, 0, len(plan.Drifted))
	for _, d := range plan.Drifted {
		out = append(out, migratex.RepairRecord{ID: d.Record.ID, Hash: d.Pair.Checksum})
	}
	return out
}

// Repair purges dirty records and rewrites drifted hashes to match the files.
// Intended for use after intentional edits or a manual fix of a failed migration.
func (r *Runner) Repair(ctx context.Context, plan *Plan) ([]migratex.RepairRecord, error) {
	fixes := RepairRecords(plan)
	if r.DryRun {
		return fixes, nil
	}
	if err := r.Backend.Repair(ctx, fixes); err != nil {
		return nil, err
	}
	return fixes, nil
}
