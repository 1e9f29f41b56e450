package memory

import (
	"encoding/json"
	"fmt"
	"time"

	"stageplan/pkg/domain"
)

// Bucket names used by the SQL-backed stores. Each project is stored as one
// JSON payload per bucket.
const (
	BucketMeta     = "meta"
	BucketEntities = "entities"
	BucketWires    = "wires"
)

// Buckets lists every bucket in persistence order.
var Buckets = []string{BucketMeta, BucketEntities, BucketWires}

type metaPayload struct {
	ID         string             `json:"id"`
	StageCount domain.StageNumber `json:"stage_count"`
	NextID     domain.EntityID    `json:"next_id"`
	SavedAt    time.Time          `json:"saved_at"`
}

type wiresPayload struct {
	Cables   []domain.CableEdge   `json:"cables"`
	Circuits []domain.CircuitEdge `json:"circuits"`
}

// EncodeBuckets splits a snapshot into its bucket payloads.
func EncodeBuckets(snap domain.ProjectSnapshot) (map[string][]byte, error) {
	out := make(map[string][]byte, len(Buckets))
	for _, bucket := range Buckets {
		var (
			data []byte
			err  error
		)
		switch bucket {
		case BucketMeta:
			data, err = json.Marshal(metaPayload{ID: snap.ID, StageCount: snap.StageCount, NextID: snap.NextID, SavedAt: snap.SavedAt})
		case BucketEntities:
			entities := snap.Entities
			if entities == nil {
				entities = []domain.EntitySnapshot{}
			}
			data, err = json.Marshal(entities)
		case BucketWires:
			data, err = json.Marshal(wiresPayload{Cables: snap.Cables, Circuits: snap.Circuits})
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// DecodeBuckets reassembles a snapshot from its bucket payloads. The meta
// bucket is required; unknown buckets are ignored.
func DecodeBuckets(payloads map[string][]byte) (domain.ProjectSnapshot, error) {
	raw, ok := payloads[BucketMeta]
	if !ok || len(raw) == 0 {
		return domain.ProjectSnapshot{}, fmt.Errorf("decode: missing %s bucket", BucketMeta)
	}
	var meta metaPayload
	if err := json.Unmarshal(raw, &meta); err != nil {
		return domain.ProjectSnapshot{}, fmt.Errorf("decode %s: %w", BucketMeta, err)
	}
	snap := domain.ProjectSnapshot{ID: meta.ID, StageCount: meta.StageCount, NextID: meta.NextID, SavedAt: meta.SavedAt}
	if raw := payloads[BucketEntities]; len(raw) > 0 {
		if err := json.Unmarshal(raw, &snap.Entities); err != nil {
			return domain.ProjectSnapshot{}, fmt.Errorf("decode %s: %w", BucketEntities, err)
		}
	}
	if raw := payloads[BucketWires]; len(raw) > 0 {
		var wires wiresPayload
		if err := json.Unmarshal(raw, &wires); err != nil {
			return domain.ProjectSnapshot{}, fmt.Errorf("decode %s: %w", BucketWires, err)
		}
		snap.Cables = wires.Cables
		snap.Circuits = wires.Circuits
	}
	return snap, nil
}
