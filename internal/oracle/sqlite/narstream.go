package sqlite

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/linyinfeng/oranc/internal/narfmt"
	"github.com/linyinfeng/oranc/pkg/util/xio"
)

// narStream serializes the on-disk tree at storeDir/storePath into the
// canonical NAR format, streaming it through a pipe so the push pipeline
// never has to buffer a whole store path in memory. storePath must already
// be the bare "<hash>-<name>" component, not an absolute path.
func narStream(ctx context.Context, storeDir, storePath string) (io.ReadCloser, error) {
	fsys := os.DirFS(storeDir)
	if _, err := os.Stat(filepath.Join(storeDir, storePath)); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		err := narfmt.Encode(pw, fsys, storePath)
		pw.CloseWithError(err)
	}()
	return xio.NewCanceledReadCloser(ctx, pr), nil
}
