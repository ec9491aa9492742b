// Package checksum computes SHA-256 digests of attachment content.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Digest hashes everything written through it while forwarding the bytes to
// an underlying writer.
type Digest struct {
	w io.Writer
	h hash.Hash
	n int64
}

// NewDigest wraps w.
func NewDigest(w io.Writer) *Digest {
	return &Digest{w: w, h: sha256.New()}
}

func (d *Digest) Write(p []byte) (int, error) {
	n, err := d.w.Write(p)
	d.h.Write(p[:n])
	d.n += int64(n)
	return n, err
}

// Hex returns the digest of the bytes written so far.
func (d *Digest) Hex() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// Size returns the number of bytes written so far.
func (d *Digest) Size() int64 { return d.n }
