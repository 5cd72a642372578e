package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"vaultPricer/internal/model"
)

// Snapshot is the pool list served by the metadata service.
type Snapshot struct {
	Pools    []model.PoolMetadata `json:"pools"`
	Edges    []model.NestedEdge   `json:"edges,omitempty"`
	Disabled []string             `json:"disabled,omitempty"`
}

// MetadataSource is the metadata query service.
type MetadataSource interface {
	FetchPools(ctx context.Context) (Snapshot, error)
	DisabledPools(ctx context.Context) ([]string, error)
}

// FileSource serves a Snapshot from a JSON file, re-read on every call.
type FileSource struct {
	Path string
}

func (f FileSource) FetchPools(_ context.Context) (Snapshot, error) {
	return ReadSnapshot(f.Path)
}

func (f FileSource) DisabledPools(_ context.Context) ([]string, error) {
	snap, err := ReadSnapshot(f.Path)
	if err != nil {
		return nil, err
	}
	return snap.Disabled, nil
}

// ReadSnapshot decodes a Snapshot file.
func ReadSnapshot(path string) (Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read pool file: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode pool file %s: %w", path, err)
	}
	return snap, nil
}
