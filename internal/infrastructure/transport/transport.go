// Package transport downloads feed files from remote file servers. Three
// protocol variants exist: sftp, ftp, and local (mounted directories).
package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ecomsync/feedsync/internal/domain/feed"
	"github.com/ecomsync/feedsync/internal/infrastructure/credentials"
)

// FileInfo is one directory entry on the remote server.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// Download is the result of fetching one remote file to local storage.
type Download struct {
	LocalPath string
	Checksum  string
	Size      int64
}

// Connector is one live connection to a file server. Relative paths are
// resolved against the connection's configured directory, absolute
// paths are used as given.
type Connector interface {
	List(ctx context.Context, dir string) ([]FileInfo, error)
	Download(ctx context.Context, remotePath, localDir string) (Download, error)
	Close() error
}

// Dialer opens connectors; the runner depends on this instead of the
// concrete protocol implementations.
type Dialer interface {
	Dial(ctx context.Context, conn feed.Connection, creds credentials.Credentials) (Connector, error)
}

// DefaultDialer selects the implementation by the configured protocol.
type DefaultDialer struct{}

func (DefaultDialer) Dial(ctx context.Context, conn feed.Connection, creds credentials.Credentials) (Connector, error) {
	switch conn.Protocol {
	case feed.ProtocolSFTP:
		return dialSFTP(ctx, conn, creds)
	case feed.ProtocolFTP:
		return dialFTP(ctx, conn, creds)
	case feed.ProtocolLocal:
		return newLocalConnector(conn), nil
	default:
		return nil, fmt.Errorf("%w: %q", feed.ErrUnknownProtocol, conn.Protocol)
	}
}

// copyToLocal streams a remote reader into localDir/name and computes
// the sha-256 checksum while writing.
func copyToLocal(r io.Reader, localDir, name string) (Download, error) {
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return Download{}, fmt.Errorf("create work dir: %w", err)
	}

	local, err := os.CreateTemp(localDir, "feed-*-"+filepath.Base(name))
	if err != nil {
		return Download{}, fmt.Errorf("create local file: %w", err)
	}
	defer local.Close()

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(local, hash), r)
	if err != nil {
		os.Remove(local.Name())
		return Download{}, fmt.Errorf("download %s: %w", name, err)
	}

	return Download{
		LocalPath: local.Name(),
		Checksum:  hex.EncodeToString(hash.Sum(nil)),
		Size:      size,
	}, nil
}
