package db

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrBadIdentifier = errors.New("invalid identifier")

// identifierMatcher is deliberately narrower than what MySQL accepts. It is
// only applied to names this module creates, never to names read back from
// information_schema.
var identifierMatcher = regexp.MustCompile(`^[a-z][a-z0-9_]{0,61}$`)

// QuoteIdent validates a table name and wraps it in backticks. Existing quote
// characters are stripped first so `name` and name are equivalent.
func QuoteIdent(name string) (string, error) {
	name = NormalizeIdent(name)
	if !identifierMatcher.MatchString(name) {
		return "", fmt.Errorf("%w: %q must match %s", ErrBadIdentifier, name, identifierMatcher.String())
	}
	return "`" + name + "`", nil
}

// NormalizeIdent is the bare, lowercased form of name that QuoteIdent quotes.
func NormalizeIdent(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, "`", "")))
}

// quoteExisting quotes a name that already exists on the server.
func quoteExisting(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
