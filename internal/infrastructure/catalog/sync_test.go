package catalog_test

import (
	"context"
	"testing"

	domain "github.com/ecomsync/feedsync/internal/domain/catalog"
	"github.com/ecomsync/feedsync/internal/domain/job"
	"github.com/ecomsync/feedsync/internal/infrastructure/catalog"
	"github.com/ecomsync/feedsync/internal/mapping"
)

type fakeAPI struct {
	existing *domain.Record

	created      map[string]any
	updated      map[string]any
	setAttrs     []domain.CustomAttribute
	appliedAttrs int
	mediaURLs    []string
	rateLimits   int
}

func (f *fakeAPI) FindRecord(ctx context.Context, id domain.Identifier) (*domain.Record, error) {
	return f.existing, nil
}

func (f *fakeAPI) CreateRecord(ctx context.Context, core map[string]any, id domain.Identifier) (*domain.Record, error) {
	f.created = core
	return &domain.Record{ID: "r-new", Core: core}, nil
}

func (f *fakeAPI) UpdateRecord(ctx context.Context, recordID string, core map[string]any) (*domain.Record, error) {
	f.updated = core
	return &domain.Record{ID: recordID, Core: core}, nil
}

func (f *fakeAPI) SetCustomAttributes(ctx context.Context, recordID string, attrs []domain.CustomAttribute, batchSize int) ([]domain.CustomAttribute, error) {
	f.setAttrs = attrs
	n := f.appliedAttrs
	if n < 0 || n > len(attrs) {
		n = len(attrs)
	}
	return attrs[:n], nil
}

func (f *fakeAPI) AddMedia(ctx context.Context, recordID string, urls []string) ([]domain.Media, error) {
	f.mediaURLs = urls
	media := make([]domain.Media, len(urls))
	for i, u := range urls {
		media[i] = domain.Media{ID: "m", URL: u}
	}
	return media, nil
}

func (f *fakeAPI) RateLimit(ctx context.Context) error {
	f.rateLimits++
	return nil
}

var skuID = domain.Identifier{Type: domain.IdentifierSKU, Value: "W1"}

func TestSyncRecordCreatesWhenAbsent(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{appliedAttrs: -1}
	syncer := catalog.NewSyncer(api)

	mapped := mapping.Result{
		Core: map[string]any{"title": "Widget", "images": []string{"https://x/img.jpg"}},
		Attributes: []domain.CustomAttribute{
			{Namespace: "custom", Key: "material", Value: "steel"},
		},
	}

	out, err := syncer.SyncRecord(context.Background(), mapped, skuID,
		catalog.SyncOptions{CreateNew: true, UpdateExisting: true})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if out.Operation != job.OpCreate {
		t.Errorf("expected create, got %s", out.Operation)
	}
	if _, hasImages := api.created["images"]; hasImages {
		t.Error("images must be attached via media, not core create payload")
	}
	if len(api.mediaURLs) != 1 {
		t.Errorf("expected media attach, got %v", api.mediaURLs)
	}
	if len(api.setAttrs) != 1 {
		t.Errorf("expected attribute write, got %v", api.setAttrs)
	}
}

func TestSyncRecordSkipsWhenCreateDisabled(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	syncer := catalog.NewSyncer(api)

	out, err := syncer.SyncRecord(context.Background(),
		mapping.Result{Core: map[string]any{"title": "Widget"}}, skuID,
		catalog.SyncOptions{CreateNew: false, UpdateExisting: true})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if out.Operation != job.OpSkip {
		t.Errorf("expected skip, got %s", out.Operation)
	}
	if api.created != nil {
		t.Error("must not create when createNew is disabled")
	}
}

func TestSyncRecordSkipsWhenUpdateDisabled(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{existing: &domain.Record{ID: "r1", Core: map[string]any{"title": "Old"}}}
	syncer := catalog.NewSyncer(api)

	out, err := syncer.SyncRecord(context.Background(),
		mapping.Result{Core: map[string]any{"title": "New"}}, skuID,
		catalog.SyncOptions{CreateNew: true, UpdateExisting: false})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if out.Operation != job.OpSkip {
		t.Errorf("expected skip, got %s", out.Operation)
	}
	if api.updated != nil {
		t.Error("must not update when updateExisting is disabled")
	}
}

func TestSyncRecordUpdatesOnlyChangedFields(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		existing:     &domain.Record{ID: "r1", Core: map[string]any{"title": "Widget", "price": "9.99"}},
		appliedAttrs: -1,
	}
	syncer := catalog.NewSyncer(api)

	out, err := syncer.SyncRecord(context.Background(),
		mapping.Result{Core: map[string]any{"title": "Widget", "price": "19.99"}}, skuID,
		catalog.SyncOptions{CreateNew: true, UpdateExisting: true})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if out.Operation != job.OpUpdate {
		t.Errorf("expected update, got %s", out.Operation)
	}
	if len(api.updated) != 1 || api.updated["price"] != "19.99" {
		t.Errorf("expected minimal update payload, got %+v", api.updated)
	}
	if len(out.Changes) != 1 {
		t.Errorf("expected one change, got %+v", out.Changes)
	}
}

func TestSyncRecordSkipsWhenNothingChanged(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{existing: &domain.Record{ID: "r1", Core: map[string]any{"title": "Widget"}}}
	syncer := catalog.NewSyncer(api)

	out, err := syncer.SyncRecord(context.Background(),
		mapping.Result{Core: map[string]any{"title": "widget"}}, skuID,
		catalog.SyncOptions{CreateNew: true, UpdateExisting: true})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if out.Operation != job.OpSkip {
		t.Errorf("expected skip for an unchanged record, got %s", out.Operation)
	}
	if api.updated != nil {
		t.Error("must not write when nothing changed")
	}
}

func TestSyncRecordReportsPartialAttributeWrite(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{appliedAttrs: 1}
	syncer := catalog.NewSyncer(api)

	mapped := mapping.Result{
		Core: map[string]any{"title": "Widget"},
		Attributes: []domain.CustomAttribute{
			{Namespace: "custom", Key: "a", Value: "1"},
			{Namespace: "custom", Key: "b", Value: "2"},
		},
	}

	out, err := syncer.SyncRecord(context.Background(), mapped, skuID,
		catalog.SyncOptions{CreateNew: true, UpdateExisting: true})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if !out.AttributesPartial {
		t.Error("expected AttributesPartial when applied < requested")
	}
}
