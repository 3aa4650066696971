package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sweepcore/internal/blob"
	"sweepcore/pkg/domain"
)

// RecordSource is implemented by result stores that can expose their full
// record history for archival.
type RecordSource interface {
	Records() []domain.Record
}

// RunArchiver exports completed runs to blob storage as JSON artifacts.
type RunArchiver struct {
	store blob.Store
}

// NewRunArchiver returns an archiver writing to the given blob store.
func NewRunArchiver(store blob.Store) *RunArchiver {
	return &RunArchiver{store: store}
}

type runArtifact struct {
	RunID      int64           `json:"run_id"`
	ArchivedAt time.Time       `json:"archived_at"`
	Count      int             `json:"count"`
	Records    []domain.Record `json:"records"`
}

// ArchiveRun writes one artifact under runs/run-<id>.json. The store must
// implement RecordSource; archiving the same run twice fails because blob
// writes are create-only.
func (a *RunArchiver) ArchiveRun(ctx context.Context, store ResultStore) (blob.Info, error) {
	src, ok := store.(RecordSource)
	if !ok {
		return blob.Info{}, fmt.Errorf("store for run %d does not expose records for archival", store.RunID())
	}
	records := src.Records()
	artifact := runArtifact{
		RunID:      store.RunID(),
		ArchivedAt: time.Now().UTC(),
		Count:      len(records),
		Records:    records,
	}
	payload, err := json.Marshal(artifact)
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode run %d: %w", store.RunID(), err)
	}
	key := fmt.Sprintf("runs/run-%d.json", store.RunID())
	info, err := a.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"run_id": fmt.Sprintf("%d", store.RunID())},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("archive run %d: %w", store.RunID(), err)
	}
	return info, nil
}
