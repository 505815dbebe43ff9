package migratex

import "time"

// Migration types written by the bundled runner. The store records whatever
// Type the framework passes.
const (
	TypeDo   = "do"
	TypeUndo = "undo"
)

// Migration is one script the framework asks the store to run.
type Migration struct {
	Version string
	Type    string
	Title   string
	Hash    string
	Script  string
}

// Record is one row of the bookkeeping table.
type Record struct {
	ID        int64     `json:"id"`
	Version   string    `json:"version"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Hash      string    `json:"hash"`
	AppliedAt time.Time `json:"applied_at"`
	AppliedBy string    `json:"applied_by"`
	// ExecutionTime is the wall clock duration of the script in milliseconds.
	ExecutionTime int64 `json:"execution_time_ms"`
	// Dirty is set when the script failed. Only Repair removes dirty records.
	Dirty bool `json:"dirty"`
}

// RepairRecord replaces the hash of the record with the given ID.
type RepairRecord struct {
	ID   int64
	Hash string
}
