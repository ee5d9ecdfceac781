// Package compression provides the push pipeline's compression backends.
//
// Unlike the teacher's general-purpose pkg/util/xio/compression package,
// oranc always knows its target format up front (from --compression), so
// there is no need for the format-sniffing registry machinery there
// (Match/MatchFilename/DetectReader) — only the capability set described in
// the original spec's design notes: {initialize, write_chunk, finalize}
// producing a byte stream, modeled here as an io.WriteCloser wrapping the
// destination writer.
package compression

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	fastxz "github.com/therootcompany/xz"
	"github.com/ulikunitz/xz"

	"github.com/linyinfeng/oranc/pkg/util/xio"
)

// Algorithm names a compression backend, as accepted by --compression.
type Algorithm string

const (
	XZ       Algorithm = "xz"
	Zstd     Algorithm = "zstd"
	Identity Algorithm = "none"
)

// Extension returns the filename extension NarInfo.URL uses for this
// algorithm's compressed artifacts, e.g. "nar/<hash>.nar.xz".
func (a Algorithm) Extension() string {
	switch a {
	case XZ:
		return "xz"
	case Zstd:
		return "zst"
	case Identity:
		return ""
	default:
		return string(a)
	}
}

// NarInfoCompression returns the value the narinfo's "Compression:" field
// should carry for this algorithm.
func (a Algorithm) NarInfoCompression() string {
	if a == Identity {
		return "none"
	}
	return string(a)
}

// ParseAlgorithm validates a --compression flag value.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case XZ, Zstd, Identity:
		return Algorithm(s), nil
	default:
		return "", fmt.Errorf("compression: unknown algorithm %q (want xz, zstd or none)", s)
	}
}

// NewWriter returns a WriteCloser that compresses everything written to it
// using algorithm and writes the compressed bytes to w. Closing the returned
// writer flushes and finalizes the stream but does not close w.
func NewWriter(w io.Writer, alg Algorithm) (io.WriteCloser, error) {
	switch alg {
	case XZ:
		return xz.NewWriter(w)
	case Zstd:
		return zstd.NewWriter(w)
	case Identity:
		return xio.NopWriter(w), nil
	default:
		return nil, fmt.Errorf("compression: unknown algorithm %q", alg)
	}
}

// NewReader returns a ReadCloser that decompresses r, which must have been
// produced by NewWriter with the same algorithm.
func NewReader(r io.Reader, alg Algorithm) (io.ReadCloser, error) {
	switch alg {
	case XZ:
		xr, err := fastxz.NewReader(r, 0)
		if err != nil {
			return nil, err
		}
		return xio.NopReader(xr), nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return xio.WrapReader(zr, func() error {
			zr.Close()
			return nil
		}), nil
	case Identity:
		return xio.NopReader(r), nil
	default:
		return nil, fmt.Errorf("compression: unknown algorithm %q", alg)
	}
}
