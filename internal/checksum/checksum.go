package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

func SHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Script hashes a migration body. CRLF line endings are folded to LF first so
// the same file checked out on different platforms keeps one hash.
func Script(b []byte) string {
	return SHA256(bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n")))
}
