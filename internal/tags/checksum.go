package tags

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// checksumChunkSize keeps hashing memory-bounded regardless of file size.
const checksumChunkSize = 64 * 1024

// Checksum returns the SHA-256 hex digest of the file contents, streamed
// in fixed-size chunks.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, checksumChunkSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
