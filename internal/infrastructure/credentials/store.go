// Package credentials is the boundary to connection-secret storage. The
// pipeline only ever receives decrypted secrets through this interface
// and never persists them itself.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrCredentialNotFound = errors.New("credential not found")

// Credentials are the decrypted connection secrets for one feed source.
type Credentials struct {
	Password   string
	PrivateKey []byte
}

// Store resolves a feed's credential reference into decrypted secrets.
type Store interface {
	Resolve(ctx context.Context, ref string) (Credentials, error)
}

// EnvStore resolves references against environment variables:
// FEED_CREDENTIAL_<REF> for passwords, FEED_CREDENTIAL_<REF>_KEY for a
// private key file path. Suitable for development and single-tenant
// deployments; production installs plug in an encrypted store behind
// the same interface.
type EnvStore struct{}

func (EnvStore) Resolve(ctx context.Context, ref string) (Credentials, error) {
	_ = ctx

	key := "FEED_CREDENTIAL_" + strings.ToUpper(strings.ReplaceAll(ref, "-", "_"))
	creds := Credentials{Password: os.Getenv(key)}

	if keyPath := os.Getenv(key + "_KEY"); keyPath != "" {
		pem, err := os.ReadFile(keyPath)
		if err != nil {
			return Credentials{}, fmt.Errorf("read private key for %s: %w", ref, err)
		}
		creds.PrivateKey = pem
	}

	if creds.Password == "" && creds.PrivateKey == nil {
		return Credentials{}, fmt.Errorf("%w: %s", ErrCredentialNotFound, ref)
	}
	return creds, nil
}

// StaticStore serves a fixed credential map; used by tests and local
// feeds that need no secrets.
type StaticStore map[string]Credentials

func (s StaticStore) Resolve(ctx context.Context, ref string) (Credentials, error) {
	_ = ctx
	if creds, ok := s[ref]; ok {
		return creds, nil
	}
	return Credentials{}, fmt.Errorf("%w: %s", ErrCredentialNotFound, ref)
}
