// Package fingerprint computes SHA-256 content fingerprints and the short
// document identifiers derived from them.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const (
	// IDLength is the number of hex characters kept from a fingerprint to form a DocumentID.
	// Collisions at this length are accepted, not mitigated.
	IDLength = 12

	chunkSize = 8192
)

// Fingerprint is the lowercase hex SHA-256 digest of a document's raw bytes.
type Fingerprint string

// DocumentID is the truncated fingerprint used to name persisted records.
type DocumentID string

// String implements fmt.Stringer.
func (f Fingerprint) String() string { return string(f) }

// String implements fmt.Stringer.
func (id DocumentID) String() string { return string(id) }

// Digest streams r through SHA-256 in fixed-size chunks.
func Digest(r io.Reader) (Fingerprint, error) {
	h := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("digest stream: %w", err)
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

// DigestBytes fingerprints an in-memory payload.
func DigestBytes(data []byte) Fingerprint {
	sum := sha256.Sum256(data)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// DigestFile fingerprints the file at path without loading it fully into memory.
func DigestFile(path string) (Fingerprint, error) {
	// #nosec G304 -- paths come from the harvester's own download directory.
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	fp, err := Digest(f)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return fp, nil
}

// DeriveID truncates the fingerprint to IDLength characters.
func DeriveID(fp Fingerprint) DocumentID {
	s := string(fp)
	if len(s) <= IDLength {
		return DocumentID(s)
	}
	return DocumentID(s[:IDLength])
}

// Hasher adapts the package functions to the harvest.Hasher interface.
type Hasher struct{}

// New returns a SHA-256 Hasher.
func New() *Hasher {
	return &Hasher{}
}

// HashFile returns the fingerprint and derived ID of the file at path.
func (Hasher) HashFile(path string) (Fingerprint, DocumentID, error) {
	fp, err := DigestFile(path)
	if err != nil {
		return "", "", err
	}
	return fp, DeriveID(fp), nil
}
