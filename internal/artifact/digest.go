package artifact

import (
	"encoding/hex"
	"io"

	"github.com/zeebo/blake3"
)

const digestPrefix = "blake3:"

// digestWriter hashes everything written through it.
type digestWriter struct {
	hasher *blake3.Hasher
	size   int64
}

func newDigestWriter() *digestWriter {
	return &digestWriter{hasher: blake3.New()}
}

func (d *digestWriter) Write(p []byte) (int, error) {
	n, err := d.hasher.Write(p)
	d.size += int64(n)
	return n, err
}

// Digest returns the prefixed hex digest of the bytes written so far.
func (d *digestWriter) Digest() string {
	return digestPrefix + hex.EncodeToString(d.hasher.Sum(nil))
}

// DigestReader returns the digest and size of everything in r.
func DigestReader(r io.Reader) (string, int64, error) {
	d := newDigestWriter()
	if _, err := io.Copy(d, r); err != nil {
		return "", 0, err
	}
	return d.Digest(), d.size, nil
}
