// Package narfmt implements Nix's NAR (Nix Archive) serialization: the
// canonical, deterministic format a store path is encoded to before
// hashing, compressing and uploading it. There is no third-party NAR
// implementation anywhere in the example pack to adapt; this format is
// small, fully specified, and implemented directly against the standard
// library's io/fs.
package narfmt

import (
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
)

const magic = "nix-archive-1"

// Encode writes the canonical NAR serialization of the file or directory
// tree rooted at root within fsys to w.
func Encode(w io.Writer, fsys fs.FS, root string) error {
	if err := writeString(w, magic); err != nil {
		return err
	}
	return encodeNode(w, fsys, root)
}

func encodeNode(w io.Writer, fsys fs.FS, p string) error {
	info, err := fs.Stat(fsys, p)
	if err != nil {
		return fmt.Errorf("narfmt: stat %q: %w", p, err)
	}

	if err := writeString(w, "("); err != nil {
		return err
	}

	if err := writeString(w, "type"); err != nil {
		return err
	}

	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		target, err := readLink(fsys, p)
		if err != nil {
			return fmt.Errorf("narfmt: readlink %q: %w", p, err)
		}
		if err := writeStrings(w, "symlink", "target", target); err != nil {
			return err
		}
	case info.IsDir():
		if err := writeString(w, "directory"); err != nil {
			return err
		}
		entries, err := fs.ReadDir(fsys, p)
		if err != nil {
			return fmt.Errorf("narfmt: readdir %q: %w", p, err)
		}
		// fs.ReadDir already returns entries sorted by filename, which
		// matches Nix's canonical entry ordering; sort defensively anyway so
		// the output is deterministic regardless of the fs.FS implementation.
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, entry := range entries {
			if err := writeString(w, "entry"); err != nil {
				return err
			}
			if err := writeStrings(w, "(", "name", entry.Name(), "node"); err != nil {
				return err
			}
			if err := encodeNode(w, fsys, path.Join(p, entry.Name())); err != nil {
				return err
			}
			if err := writeString(w, ")"); err != nil {
				return err
			}
		}
	default:
		if err := writeString(w, "regular"); err != nil {
			return err
		}
		if info.Mode().Perm()&0o111 != 0 {
			if err := writeStrings(w, "executable", ""); err != nil {
				return err
			}
		}
		if err := writeString(w, "contents"); err != nil {
			return err
		}
		f, err := fsys.Open(p)
		if err != nil {
			return fmt.Errorf("narfmt: open %q: %w", p, err)
		}
		defer f.Close()
		if err := writeFile(w, f, info.Size()); err != nil {
			return err
		}
	}

	return writeString(w, ")")
}

type readLinkFS interface {
	ReadLink(name string) (string, error)
}

func readLink(fsys fs.FS, p string) (string, error) {
	if rl, ok := fsys.(readLinkFS); ok {
		return rl.ReadLink(p)
	}
	return "", fmt.Errorf("narfmt: %T does not support reading symlinks", fsys)
}

func writeStrings(w io.Writer, ss ...string) error {
	for _, s := range ss {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

// writeString writes a NAR "string": an 8-byte little-endian length, the
// bytes themselves, then zero-padding out to the next 8-byte boundary.
func writeString(w io.Writer, s string) error {
	return writeFile(w, stringReader(s), int64(len(s)))
}

func stringReader(s string) io.Reader { return &stringReaderCursor{s: s} }

type stringReaderCursor struct {
	s string
	i int
}

func (r *stringReaderCursor) Read(p []byte) (int, error) {
	if r.i >= len(r.s) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.i:])
	r.i += n
	return n, nil
}

// writeFile writes a NAR "string" whose content is read from r, given its
// exact byte length size, without buffering the whole content in memory.
func writeFile(w io.Writer, r io.Reader, size int64) error {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(size))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	n, err := io.Copy(w, r)
	if err != nil {
		return err
	}
	if n != size {
		return fmt.Errorf("narfmt: wrote %d bytes, expected %d", n, size)
	}
	if pad := (8 - size%8) % 8; pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			return err
		}
	}
	return nil
}
