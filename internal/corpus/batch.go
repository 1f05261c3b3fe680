// Package corpus reads the external data dumps the import reconciler
// consumes: word dictionary, word-position mapping and verse translations.
//
// A dump arrives as a byte stream (HTTP upload or a file handed to
// corpusctl), optionally xz or gzip compressed. ReadBatch turns it into
// plain text plus a BLAKE3 digest of the bytes as received; the Parse
// functions turn the text into records and count what they had to skip.
package corpus

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/sakif/quran-notes/internal/apperror"
)

// Compression is the container format detected from a batch's magic bytes.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionXZ   Compression = "xz"
	CompressionGzip Compression = "gzip"
)

var (
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	gzipMagic = []byte{0x1f, 0x8b}
)

// DefaultMaxBytes caps the decompressed size of one batch.
const DefaultMaxBytes int64 = 256 << 20

// Batch is one dump, decompressed and fingerprinted.
type Batch struct {
	Data        []byte
	Digest      string // hex BLAKE3-256 of the raw input
	Compression Compression
}

// ReadBatch reads r to the end, transparently decompressing it.
//
// The digest covers the raw bytes, so the same .xz file always gets the same
// digest in import_runs no matter how it decompresses. maxBytes bounds the
// decompressed size (a small .xz can expand enormously); a batch over the
// limit is a validation error. maxBytes <= 0 means DefaultMaxBytes.
func ReadBatch(r io.Reader, maxBytes int64) (*Batch, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	hasher := blake3.New()
	raw := bufio.NewReader(io.TeeReader(r, hasher))

	compression, err := detect(raw)
	if err != nil {
		return nil, err
	}

	var plain io.Reader = raw
	switch compression {
	case CompressionXZ:
		xr, err := xz.NewReader(raw)
		if err != nil {
			return nil, apperror.ValidationFailed("batch", fmt.Sprintf("invalid xz stream: %v", err))
		}
		plain = xr
	case CompressionGzip:
		gr, err := gzip.NewReader(raw)
		if err != nil {
			return nil, apperror.ValidationFailed("batch", fmt.Sprintf("invalid gzip stream: %v", err))
		}
		defer gr.Close()
		plain = gr
	}

	data, err := io.ReadAll(io.LimitReader(plain, maxBytes+1))
	if err != nil {
		if compression != CompressionNone {
			return nil, apperror.ValidationFailed("batch", fmt.Sprintf("corrupt %s stream: %v", compression, err))
		}
		return nil, fmt.Errorf("corpus: reading batch: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, apperror.ValidationFailed("batch", fmt.Sprintf("batch exceeds %d bytes", maxBytes))
	}

	// Drain whatever trails the compressed stream so the digest always
	// covers the complete input.
	if _, err := io.Copy(io.Discard, raw); err != nil {
		return nil, fmt.Errorf("corpus: reading batch: %w", err)
	}

	return &Batch{
		Data:        data,
		Digest:      hex.EncodeToString(hasher.Sum(nil)),
		Compression: compression,
	}, nil
}

func detect(r *bufio.Reader) (Compression, error) {
	head, err := r.Peek(len(xzMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("corpus: reading magic bytes: %w", err)
	}
	switch {
	case bytes.HasPrefix(head, xzMagic):
		return CompressionXZ, nil
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip, nil
	}
	return CompressionNone, nil
}
