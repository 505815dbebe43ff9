package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mirajehossain/migratex"
	"github.com/mirajehossain/migratex/internal/migrator"
)

const versionLayout = "20060102150405"

var now = time.Now

func createPair(dir, name string) (up, down string, err error) {
	clean := sanitize(name)
	if clean == "" {
		return "", "", planErrorf("invalid migration name %q", name)
	}
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	base := fmt.Sprintf("%s_%s", now().UTC().Format(versionLayout), clean)
	up = filepath.Join(dir, base+".up.sql")
	down = filepath.Join(dir, base+".down.sql")
	if err = os.WriteFile(up, []byte("-- write your UP migration here\n"), 0o644); err != nil {
		return "", "", err
	}
	if err = os.WriteFile(down, []byte("-- write your DOWN migration here\n"), 0o644); err != nil {
		return "", "", err
	}
	return up, down, nil
}

// sanitize lowercases s, turns spaces and dashes into underscores and drops
// anything a migration filename cannot hold.
func sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == ' ' || r == '-':
			b.WriteByte('_')
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "_")
}

type statusItem struct {
	Version  string `json:"version"`
	Name     string `json:"name"`
	Checksum string `json:"checksum"`
	Status   string `json:"status"` // applied|pending|baseline|drifted
}

func statusItems(plan *migrator.Plan) []statusItem {
	drifted := make(map[string]bool, len(plan.Drifted))
	for _, d := range plan.Drifted {
		drifted[d.Pair.Key()] = true
	}
	baseline := make(map[string]bool, len(plan.Baseline))
	for _, fp := range plan.Baseline {
		baseline[fp.Key()] = true
	}

	out := make([]statusItem, 0, len(plan.All))
	for _, fp := range plan.All {
		it := statusItem{Version: fp.Version, Name: fp.Name, Checksum: fp.Checksum, Status: "pending"}
		k := fp.Key()
		switch {
		case drifted[k]:
			it.Status = "drifted"
		case baseline[k]:
			it.Status = "baseline"
		default:
			if _, ok := plan.Applied[k]; ok {
				it.Status = "applied"
			}
		}
		out = append(out, it)
	}
	return out
}

func printStatus(w io.Writer, plan *migrator.Plan, asJSON bool) error {
	items := statusItems(plan)
	if asJSON {
		return json.NewEncoder(w).Encode(struct {
			Migrations []statusItem      `json:"migrations"`
			Dirty      []migratex.Record `json:"dirty,omitempty"`
		}{items, plan.Dirty})
	}
	for _, it := range items {
		fmt.Fprintf(w, "%s %-30s %-8s %s\n", it.Version, it.Name, it.Status, short(it.Checksum))
	}
	for _, r := range plan.Dirty {
		fmt.Fprintf(w, "dirty record %d: %s %s (%s)\n", r.ID, r.Version, r.Title, r.Type)
	}
	return nil
}

func printRecords(w io.Writer, records []migratex.Record, asJSON bool) error {
	if asJSON {
		if records == nil {
			records = []migratex.Record{}
		}
		return json.NewEncoder(w).Encode(records)
	}
	for _, r := range records {
		state := "ok"
		if r.Dirty {
			state = "dirty"
		}
		fmt.Fprintf(w, "%-6d %s %-30s %-4s %-5s %s %s %dms\n",
			r.ID, r.Version, r.Title, r.Type, state,
			r.AppliedAt.UTC().Format(time.RFC3339), r.AppliedBy, r.ExecutionTime)
	}
	return nil
}

func short(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
