package transport

import (
	"context"
	"fmt"
	"net"
	"path"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/ecomsync/feedsync/internal/domain/feed"
	"github.com/ecomsync/feedsync/internal/infrastructure/credentials"
)

const ftpDialTimeout = 30 * time.Second

type ftpConnector struct {
	conn *ftp.ServerConn
	dir  string
}

func dialFTP(ctx context.Context, conn feed.Connection, creds credentials.Credentials) (Connector, error) {
	port := conn.Port
	if port == 0 {
		port = 21
	}
	addr := net.JoinHostPort(conn.Host, fmt.Sprint(port))

	c, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(ftpDialTimeout))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}

	user := conn.Username
	if user == "" {
		user = "anonymous"
	}
	if err := c.Login(user, creds.Password); err != nil {
		c.Quit()
		return nil, fmt.Errorf("ftp login %s: %w", addr, err)
	}

	return &ftpConnector{conn: c, dir: conn.Directory}, nil
}

func (c *ftpConnector) resolve(p string) string {
	if path.IsAbs(p) || c.dir == "" {
		return p
	}
	return path.Join(c.dir, p)
}

func (c *ftpConnector) List(ctx context.Context, dir string) ([]FileInfo, error) {
	_ = ctx

	entries, err := c.conn.List(c.resolve(dir))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, FileInfo{
			Name:    e.Name,
			Size:    int64(e.Size),
			ModTime: e.Time,
			IsDir:   e.Type == ftp.EntryTypeFolder,
		})
	}
	return infos, nil
}

func (c *ftpConnector) Download(ctx context.Context, remotePath, localDir string) (Download, error) {
	_ = ctx

	resp, err := c.conn.Retr(c.resolve(remotePath))
	if err != nil {
		return Download{}, fmt.Errorf("retrieve %s: %w", remotePath, err)
	}
	defer resp.Close()

	return copyToLocal(resp, localDir, path.Base(remotePath))
}

func (c *ftpConnector) Close() error {
	return c.conn.Quit()
}
