package rowcache_test

import (
	"testing"

	"github.com/ecomsync/feedsync/internal/infrastructure/rowcache"
	"github.com/ecomsync/feedsync/internal/tabular"
)

func TestHashRowStable(t *testing.T) {
	t.Parallel()

	a := rowcache.HashRow(tabular.Row{"sku": "W1", "name": "Widget", "price": "9.99"})
	b := rowcache.HashRow(tabular.Row{"price": "9.99", "name": "Widget", "sku": "W1"})
	if a != b {
		t.Error("hash must not depend on map iteration order")
	}
}

func TestHashRowDetectsChanges(t *testing.T) {
	t.Parallel()

	a := rowcache.HashRow(tabular.Row{"sku": "W1", "price": "9.99"})
	b := rowcache.HashRow(tabular.Row{"sku": "W1", "price": "19.99"})
	if a == b {
		t.Error("different content must produce different hashes")
	}
}

func TestHashRowKeyValueBoundary(t *testing.T) {
	t.Parallel()

	// "ab"+"c" must not collide with "a"+"bc".
	a := rowcache.HashRow(tabular.Row{"ab": "c"})
	b := rowcache.HashRow(tabular.Row{"a": "bc"})
	if a == b {
		t.Error("key/value boundary must be part of the hash")
	}
}
