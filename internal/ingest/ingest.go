// Package ingest stages uploaded PDFs on local disk for the duration of a request.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Staged is an uploaded file written under the upload dir.
type Staged struct {
	ID           string // 32-char hex uuid, also the file stem
	Path         string
	OriginalName string
	HashHex      string
	Size         int64
}

// HashFile returns the hex sha256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
