package catalog

import (
	"context"
	"fmt"

	"github.com/ecomsync/feedsync/internal/diffing"
	domain "github.com/ecomsync/feedsync/internal/domain/catalog"
	"github.com/ecomsync/feedsync/internal/domain/job"
	"github.com/ecomsync/feedsync/internal/mapping"
)

// API is the client surface the syncer needs; satisfied by *Client and
// by test fakes.
type API interface {
	FindRecord(ctx context.Context, id domain.Identifier) (*domain.Record, error)
	CreateRecord(ctx context.Context, core map[string]any, id domain.Identifier) (*domain.Record, error)
	UpdateRecord(ctx context.Context, recordID string, core map[string]any) (*domain.Record, error)
	SetCustomAttributes(ctx context.Context, recordID string, attrs []domain.CustomAttribute, batchSize int) ([]domain.CustomAttribute, error)
	AddMedia(ctx context.Context, recordID string, urls []string) ([]domain.Media, error)
	RateLimit(ctx context.Context) error
}

// SyncOptions select which write paths a run may take. AttributeBatch
// overrides the client's attribute chunk size when positive.
type SyncOptions struct {
	UpdateExisting bool
	CreateNew      bool
	AttributeBatch int
}

// SyncOutcome reports what one row sync did. AttributesPartial is true
// when not every requested attribute chunk was applied; callers surface
// it as a row warning and must not mark the row cached.
type SyncOutcome struct {
	Operation         job.RowOperation
	Record            *domain.Record
	Changes           []job.FieldChange
	AttributesPartial bool
}

// Syncer orchestrates the per-row decision: lookup, then skip, update,
// or create.
type Syncer struct {
	api API
}

// NewSyncer wraps an API client.
func NewSyncer(api API) *Syncer {
	return &Syncer{api: api}
}

// SyncRecord applies one mapped row to the catalog.
func (s *Syncer) SyncRecord(ctx context.Context, mapped mapping.Result, id domain.Identifier, opts SyncOptions) (SyncOutcome, error) {
	existing, err := s.api.FindRecord(ctx, id)
	if err != nil {
		return SyncOutcome{Operation: job.OpError}, err
	}

	if existing != nil {
		if !opts.UpdateExisting {
			return SyncOutcome{Operation: job.OpSkip, Record: existing}, nil
		}
		return s.update(ctx, existing, mapped, opts)
	}

	if !opts.CreateNew {
		return SyncOutcome{Operation: job.OpSkip}, nil
	}
	return s.create(ctx, mapped, id, opts)
}

func (s *Syncer) update(ctx context.Context, existing *domain.Record, mapped mapping.Result, opts SyncOptions) (SyncOutcome, error) {
	changes := diffing.Compare(existing, mapped)
	if len(changes) == 0 {
		return SyncOutcome{Operation: job.OpSkip, Record: existing}, nil
	}

	record := existing
	payload := diffing.BuildUpdatePayload(existing, mapped)
	delete(payload, "images")
	if len(payload) > 0 {
		updated, err := s.api.UpdateRecord(ctx, existing.ID, payload)
		if err != nil {
			return SyncOutcome{Operation: job.OpError, Changes: changes}, fmt.Errorf("update core fields: %w", err)
		}
		record = updated
	}

	changedAttrs := changedAttributes(changes, mapped.Attributes)
	partial := false
	if len(changedAttrs) > 0 {
		applied, err := s.api.SetCustomAttributes(ctx, existing.ID, changedAttrs, opts.AttributeBatch)
		if err != nil {
			return SyncOutcome{Operation: job.OpError, Changes: changes}, fmt.Errorf("set attributes: %w", err)
		}
		partial = len(applied) < len(changedAttrs)
	}

	if urls := mediaURLs(mapped); mediaChanged(changes) && len(urls) > 0 {
		if _, err := s.api.AddMedia(ctx, existing.ID, urls); err != nil {
			return SyncOutcome{Operation: job.OpError, Changes: changes}, fmt.Errorf("add media: %w", err)
		}
	}

	return SyncOutcome{
		Operation:         job.OpUpdate,
		Record:            record,
		Changes:           changes,
		AttributesPartial: partial,
	}, nil
}

func (s *Syncer) create(ctx context.Context, mapped mapping.Result, id domain.Identifier, opts SyncOptions) (SyncOutcome, error) {
	core := make(map[string]any, len(mapped.Core))
	for k, v := range mapped.Core {
		if k == "images" {
			continue
		}
		core[k] = v
	}

	record, err := s.api.CreateRecord(ctx, core, id)
	if err != nil {
		return SyncOutcome{Operation: job.OpError}, fmt.Errorf("create record: %w", err)
	}

	changes := diffing.Compare(nil, mapped)

	partial := false
	if len(mapped.Attributes) > 0 {
		applied, err := s.api.SetCustomAttributes(ctx, record.ID, mapped.Attributes, opts.AttributeBatch)
		if err != nil {
			return SyncOutcome{Operation: job.OpError, Record: record, Changes: changes}, fmt.Errorf("set attributes: %w", err)
		}
		partial = len(applied) < len(mapped.Attributes)
	}

	if urls := mediaURLs(mapped); len(urls) > 0 {
		if _, err := s.api.AddMedia(ctx, record.ID, urls); err != nil {
			return SyncOutcome{Operation: job.OpError, Record: record, Changes: changes}, fmt.Errorf("add media: %w", err)
		}
	}

	return SyncOutcome{
		Operation:         job.OpCreate,
		Record:            record,
		Changes:           changes,
		AttributesPartial: partial,
	}, nil
}

// Preview reports what SyncRecord would do for the row without writing
// anything to the catalog.
func (s *Syncer) Preview(ctx context.Context, mapped mapping.Result, id domain.Identifier, opts SyncOptions) (SyncOutcome, error) {
	existing, err := s.api.FindRecord(ctx, id)
	if err != nil {
		return SyncOutcome{Operation: job.OpError}, err
	}

	if existing != nil {
		if !opts.UpdateExisting {
			return SyncOutcome{Operation: job.OpSkip, Record: existing}, nil
		}
		changes := diffing.Compare(existing, mapped)
		if len(changes) == 0 {
			return SyncOutcome{Operation: job.OpSkip, Record: existing}, nil
		}
		return SyncOutcome{Operation: job.OpUpdate, Record: existing, Changes: changes}, nil
	}

	if !opts.CreateNew {
		return SyncOutcome{Operation: job.OpSkip}, nil
	}
	return SyncOutcome{Operation: job.OpCreate, Changes: diffing.Compare(nil, mapped)}, nil
}

// RateLimit exposes the client's fixed per-row delay to the runner.
func (s *Syncer) RateLimit(ctx context.Context) error {
	return s.api.RateLimit(ctx)
}

func changedAttributes(changes []job.FieldChange, attrs []domain.CustomAttribute) []domain.CustomAttribute {
	changed := make(map[string]bool)
	for _, ch := range changes {
		if ch.Kind == "customAttribute" {
			changed[ch.Field] = true
		}
	}

	out := make([]domain.CustomAttribute, 0, len(changed))
	for _, attr := range attrs {
		if changed[attr.Namespace+"."+attr.Key] {
			out = append(out, attr)
		}
	}
	return out
}

func mediaURLs(mapped mapping.Result) []string {
	switch v := mapped.Core["images"].(type) {
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

func mediaChanged(changes []job.FieldChange) bool {
	for _, ch := range changes {
		if ch.Field == "images" {
			return true
		}
	}
	return false
}
