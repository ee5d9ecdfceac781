// Package oracletest is an in-memory oracle.Oracle implementation backing
// this module's own tests: it lets the push pipeline and server be tested
// against synthetic store paths without a real Nix installation or SQLite
// database.
package oracletest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/linyinfeng/oranc/internal/nix"
	"github.com/linyinfeng/oranc/pkg/errdefs"
)

// Path is a synthetic store path registered with an Oracle.
type Path struct {
	Info nix.StorePath
	// Content is the path's NAR stream content, returned verbatim by
	// NarStream. Real NAR bytes are not required for most tests; a plain
	// byte string exercising the hashing/compression stages is enough.
	Content []byte
}

// Oracle is a map-backed oracle.Oracle, keyed by the absolute store path
// recorded in nix.StorePath.Path (e.g. "/nix/store/<hash>-<name>").
type Oracle struct {
	paths map[string]Path
}

// New returns an empty Oracle ready to have paths registered via Add.
func New() *Oracle {
	return &Oracle{paths: map[string]Path{}}
}

// Add registers a synthetic path, computing NarSize from len(content) if the
// caller left it zero.
func (o *Oracle) Add(p Path) {
	if p.Info.NarSize == 0 {
		p.Info.NarSize = int64(len(p.Content))
	}
	o.paths[p.Info.Path] = p
}

func (o *Oracle) lookup(storePath string) (Path, error) {
	p, ok := o.paths[storePath]
	if !ok {
		return Path{}, errdefs.Newf(errdefs.ErrOracleMissing, "store path %q not registered in test oracle", storePath)
	}
	return p, nil
}

// PathInfo implements oracle.Oracle.
func (o *Oracle) PathInfo(_ context.Context, storePath string) (nix.StorePath, error) {
	p, err := o.lookup(storePath)
	if err != nil {
		return nix.StorePath{}, err
	}
	return p.Info, nil
}

// NarStream implements oracle.Oracle.
func (o *Oracle) NarStream(_ context.Context, storePath string) (io.ReadCloser, error) {
	p, err := o.lookup(storePath)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(string(p.Content))), nil
}

// IsValid implements oracle.Oracle.
func (o *Oracle) IsValid(_ context.Context, storePath string) (bool, error) {
	_, ok := o.paths[storePath]
	return ok, nil
}

// Closure implements oracle.Oracle: a breadth-first traversal over
// Info.References, matching the production SQLite backend's traversal order
// rather than simply returning every registered path.
func (o *Oracle) Closure(ctx context.Context, storePath string) ([]nix.StorePath, error) {
	start, err := o.lookup(storePath)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{}
	queue := []string{start.Info.Path}
	var out []nix.StorePath

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		if visited[path] {
			continue
		}
		visited[path] = true

		p, err := o.lookup(path)
		if err != nil {
			return nil, fmt.Errorf("oracletest: closure of %q references unregistered path %q: %w", storePath, path, err)
		}
		out = append(out, p.Info)

		refs := append([]string(nil), p.Info.References...)
		sort.Strings(refs)
		for _, r := range refs {
			if !visited[r] {
				queue = append(queue, r)
			}
		}
	}
	return out, nil
}
