// Package migratex is a MySQL storage backend for a migration framework.
//
// A Store keeps a bookkeeping table with one row per migration attempt and
// exposes the lifecycle a framework drives: Open, Lock, Run, Records, Repair,
// Unlock, Close, plus Drop for tearing a schema down. Every Run writes exactly
// one record, marked dirty when the script fails; Repair is the only way to
// clear dirty rows.
//
// Cross-process exclusion is a MySQL named lock (GET_LOCK) taken on the
// Store's single pinned session. A Store is not safe for concurrent use.
package migratex
