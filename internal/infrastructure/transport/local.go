package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ecomsync/feedsync/internal/domain/feed"
)

// localConnector serves feeds from a mounted directory. It keeps the
// same Connector shape as the remote variants so the runner never
// branches on protocol.
type localConnector struct {
	baseDir string
}

func newLocalConnector(conn feed.Connection) *localConnector {
	base := conn.Directory
	if base == "" {
		base = "."
	}
	return &localConnector{baseDir: base}
}

func (c *localConnector) List(ctx context.Context, dir string) ([]FileInfo, error) {
	_ = ctx

	entries, err := os.ReadDir(c.resolve(dir))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, FileInfo{
			Name:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   e.IsDir(),
		})
	}
	return infos, nil
}

func (c *localConnector) Download(ctx context.Context, remotePath, localDir string) (Download, error) {
	_ = ctx

	f, err := os.Open(c.resolve(remotePath))
	if err != nil {
		return Download{}, fmt.Errorf("open %s: %w", remotePath, err)
	}
	defer f.Close()

	return copyToLocal(f, localDir, filepath.Base(remotePath))
}

func (c *localConnector) Close() error { return nil }

func (c *localConnector) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.baseDir, p)
}
