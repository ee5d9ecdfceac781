// Package sqlite implements the valid-path oracle by reading directly from
// the Nix daemon's SQLite database (normally
// /nix/var/nix/db/db.sqlite), the same ValidPaths/Refs tables the reference
// Nix implementation itself queries.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	_ "modernc.org/sqlite"

	"github.com/linyinfeng/oranc/internal/nix"
	"github.com/linyinfeng/oranc/internal/nix/sign"
	"github.com/linyinfeng/oranc/pkg/errdefs"
)

// Oracle reads store-path information from a Nix store database opened
// read-only or immutable.
type Oracle struct {
	db       *sql.DB
	storeDir string
}

// Open opens the Nix store database at path in read-only mode. Use this when
// the process has (or does not need) write access to the database's
// directory, so SQLite can still create its WAL/SHM sidecar files.
func Open(ctx context.Context, path, storeDir string) (*Oracle, error) {
	return open(ctx, fmt.Sprintf("file:%s?mode=ro", path), storeDir)
}

// OpenImmutable opens the Nix store database at path in SQLite's immutable
// mode: no WAL/SHM files are created or expected, which is required when the
// calling process lacks write permission on the database's directory.
func OpenImmutable(ctx context.Context, path, storeDir string) (*Oracle, error) {
	return open(ctx, fmt.Sprintf("file:%s?immutable=1", path), storeDir)
}

func open(ctx context.Context, dsn, storeDir string) (*Oracle, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("oracle/sqlite: open %s: %w", dsn, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("oracle/sqlite: ping %s: %w", dsn, err)
	}
	return &Oracle{db: db, storeDir: storeDir}, nil
}

// Close closes the underlying database handle.
func (o *Oracle) Close() error {
	return o.db.Close()
}

type row struct {
	id      int64
	path    string
	narHash sql.NullString
	deriver sql.NullString
	narSize int64
	sigs    sql.NullString
	ca      sql.NullString
}

func (o *Oracle) queryRow(ctx context.Context, storePath string) (row, error) {
	var r row
	err := o.db.QueryRowContext(ctx,
		`SELECT id, path, hash, deriver, narSize, sigs, ca FROM ValidPaths WHERE path = ?`, storePath,
	).Scan(&r.id, &r.path, &r.narHash, &r.deriver, &r.narSize, &r.sigs, &r.ca)
	if err == sql.ErrNoRows {
		return row{}, errdefs.Newf(errdefs.ErrOracleMissing, "store path %q not found", storePath)
	}
	if err != nil {
		return row{}, fmt.Errorf("oracle/sqlite: query %q: %w", storePath, err)
	}
	return r, nil
}

func (o *Oracle) references(ctx context.Context, id int64) ([]string, error) {
	rows, err := o.db.QueryContext(ctx,
		`SELECT path FROM ValidPaths WHERE id IN (SELECT reference FROM Refs WHERE referrer = ?) ORDER BY path`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("oracle/sqlite: query references of id %d: %w", id, err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		refs = append(refs, p)
	}
	return refs, rows.Err()
}

func (o *Oracle) toStorePath(ctx context.Context, r row) (nix.StorePath, error) {
	refs, err := o.references(ctx, r.id)
	if err != nil {
		return nix.StorePath{}, err
	}

	var deriver string
	if r.deriver.Valid {
		deriver = r.deriver.String
	}
	var ca string
	if r.ca.Valid {
		ca = r.ca.String
	}
	var sigs []string
	if r.sigs.Valid {
		parsed, err := sign.ParseSignatureList(r.sigs.String)
		if err != nil {
			return nix.StorePath{}, fmt.Errorf("oracle/sqlite: parsing sigs of %q: %w", r.path, err)
		}
		sigs = sign.Strings(parsed)
	}
	var narHash nix.Hash
	if r.narHash.Valid && r.narHash.String != "" {
		narHash, err = nix.ParseHash(r.narHash.String)
		if err != nil {
			return nix.StorePath{}, fmt.Errorf("oracle/sqlite: parsing nar hash of %q: %w", r.path, err)
		}
	}

	return nix.StorePath{
		Path:       r.path,
		NarHash:    narHash,
		NarSize:    r.narSize,
		References: refs,
		Deriver:    deriver,
		CA:         ca,
		Signatures: sigs,
	}, nil
}

// PathInfo implements oracle.Oracle.
func (o *Oracle) PathInfo(ctx context.Context, storePath string) (nix.StorePath, error) {
	r, err := o.queryRow(ctx, storePath)
	if err != nil {
		return nix.StorePath{}, err
	}
	return o.toStorePath(ctx, r)
}

// IsValid implements oracle.Oracle.
func (o *Oracle) IsValid(ctx context.Context, storePath string) (bool, error) {
	_, err := o.queryRow(ctx, storePath)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, errdefs.ErrOracleMissing) {
		return false, nil
	}
	return false, err
}

// Closure implements oracle.Oracle. It performs a breadth-first traversal of
// Refs starting from storePath's own id, matching the original
// implementation's closure computation, and returns every path visited
// (including storePath) with no duplicates.
func (o *Oracle) Closure(ctx context.Context, storePath string) ([]nix.StorePath, error) {
	start, err := o.queryRow(ctx, storePath)
	if err != nil {
		return nil, err
	}

	visited := map[int64]bool{}
	queue := []int64{start.id}
	rows := map[int64]row{start.id: start}

	var order []int64
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		order = append(order, id)

		r, ok := rows[id]
		if !ok {
			r, err = o.queryRowByID(ctx, id)
			if err != nil {
				return nil, err
			}
			rows[id] = r
		}

		refIDs, err := o.referenceIDs(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, refID := range refIDs {
			if !visited[refID] {
				queue = append(queue, refID)
			}
		}
	}

	out := make([]nix.StorePath, 0, len(order))
	for _, id := range order {
		sp, err := o.toStorePath(ctx, rows[id])
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

func (o *Oracle) queryRowByID(ctx context.Context, id int64) (row, error) {
	var r row
	err := o.db.QueryRowContext(ctx,
		`SELECT id, path, hash, deriver, narSize, sigs, ca FROM ValidPaths WHERE id = ?`, id,
	).Scan(&r.id, &r.path, &r.narHash, &r.deriver, &r.narSize, &r.sigs, &r.ca)
	if err != nil {
		return row{}, fmt.Errorf("oracle/sqlite: query id %d: %w", id, err)
	}
	return r, nil
}

func (o *Oracle) referenceIDs(ctx context.Context, id int64) ([]int64, error) {
	rows, err := o.db.QueryContext(ctx, `SELECT reference FROM Refs WHERE referrer = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("oracle/sqlite: query reference ids of id %d: %w", id, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var r int64
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		ids = append(ids, r)
	}
	return ids, rows.Err()
}

// NarStream implements oracle.Oracle by serializing storePath's filesystem
// tree with the package's own NAR encoder, streamed through an io.Pipe so
// the whole tree is never buffered in memory. storePath is the same absolute
// path form returned in nix.StorePath.Path by PathInfo and Closure.
func (o *Oracle) NarStream(ctx context.Context, storePath string) (io.ReadCloser, error) {
	rel, err := nix.StripStoreDir(o.storeDir, storePath)
	if err != nil {
		return nil, err
	}
	return narStream(ctx, o.storeDir, rel)
}
