package history

import (
	"bytes"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Content is a handle to one version of a file's bytes. ID identifies the
// content (a blob hash when the reader has one) and is used as a memo key.
type Content interface {
	ID() string
	Bytes() ([]byte, error)
}

// Digest returns the hex BLAKE3 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type memContent struct {
	id   string
	data []byte
}

// Bytes wraps in-memory data as Content identified by its digest.
func Bytes(data []byte) Content {
	return &memContent{id: Digest(data), data: data}
}

func (c *memContent) ID() string { return c.id }

func (c *memContent) Bytes() ([]byte, error) { return c.data, nil }

// CountLines returns the number of lines in data. A trailing fragment
// without a newline counts as a line.
func CountLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}
