package migratex

import (
	"errors"
	"strings"

	"github.com/mirajehossain/migratex/internal/db"
	"github.com/mirajehossain/migratex/internal/lock"
)

// Kind classifies an Error.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindConnection means the backend could not be reached.
	KindConnection
	// KindSchema means the bookkeeping table could not be created, read or written.
	KindSchema
	// KindLock means the advisory lock was not acquired or released.
	KindLock
	// KindExecution means a migration script failed.
	KindExecution
)

func (k Kind) String() string {
	names := [...]string{"unknown", "connection", "schema", "lock", "execution"}
	if int(k) >= len(names) {
		return names[0]
	}
	return names[k]
}

// Sentinels matching each Kind with errors.Is.
var (
	ErrConnection = errors.New("connection error")
	ErrSchema     = errors.New("schema error")
	ErrLock       = errors.New("lock error")
	ErrExecution  = errors.New("execution error")
)

// Detail errors wrapped inside an *Error.
var (
	ErrNotOpen           = errors.New("store is not open")
	ErrInvalidURI        = db.ErrInvalidURI
	ErrLockNotAcquired   = lock.ErrNotAcquired
	ErrLockIndeterminate = lock.ErrIndeterminate
	ErrLockNotOwned      = lock.ErrNotOwned
	ErrLockNotFound      = lock.ErrNotFound
)

func (k Kind) sentinel() error {
	switch k {
	case KindConnection:
		return ErrConnection
	case KindSchema:
		return ErrSchema
	case KindLock:
		return ErrLock
	case KindExecution:
		return ErrExecution
	}
	return nil
}

// Error is returned by every Store operation. Err holds the driver's error
// when there is one. LockID is only set for KindLock.
type Error struct {
	Kind   Kind
	Op     string
	LockID string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("migratex: ")
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(" error during ")
		b.WriteString(e.Op)
	} else {
		b.WriteString(" error")
	}
	if e.LockID != "" {
		b.WriteString(" (lock ")
		b.WriteString(e.LockID)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		out = append(out, s)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// LockIDOf returns the lock identifier carried by a lock error, if any.
func LockIDOf(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) && e.LockID != "" {
		return e.LockID, true
	}
	return "", false
}
