// Package archive writes immutable copies of project snapshots to a blob
// store. Each archive is one JSON document keyed under its project:
//
//	projects/<project>/<saved-at>-<uuid>.json
//
// Keys sort by save time so the last key under a project is the newest.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"stageplan/internal/blob/core"
	"stageplan/internal/infra/blob/fs"
	"stageplan/internal/infra/blob/memory"
	"stageplan/internal/infra/blob/s3"
	"stageplan/pkg/domain"
)

const (
	keyPrefix   = "projects/"
	contentType = "application/json"
	stampLayout = "20060102T150405.000000000Z"
)

// ErrNoArchives is returned by Latest when a project has never been archived.
var ErrNoArchives = errors.New("no archives for project")

// Config selects and configures the blob backend.
type Config struct {
	Driver core.Driver
	Root   string // fs driver root directory
	S3     s3.Config
}

// Open constructs the blob store named by cfg.Driver and wraps it.
func Open(ctx context.Context, cfg Config) (*Archive, error) {
	var (
		store core.Store
		err   error
	)
	switch cfg.Driver {
	case "", core.DriverFilesystem:
		store, err = fs.New(cfg.Root)
	case core.DriverMemory:
		store = memory.New()
	case core.DriverS3:
		store, err = s3.New(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported archive driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s archive: %w", cfg.Driver, err)
	}
	return New(store), nil
}

// Entry describes one archived snapshot.
type Entry struct {
	Key        string    `json:"key"`
	ProjectID  string    `json:"project_id"`
	Size       int64     `json:"size_bytes"`
	StageCount int       `json:"stage_count,omitempty"`
	Entities   int       `json:"entities,omitempty"`
	SavedAt    time.Time `json:"saved_at"`
}

// Archive stores project snapshots in a blob store.
type Archive struct {
	store core.Store
	newID func() string
}

// New wraps an existing blob store.
func New(store core.Store) *Archive {
	return &Archive{store: store, newID: func() string { return uuid.NewString() }}
}

// Driver reports the backing blob driver.
func (a *Archive) Driver() core.Driver { return a.store.Driver() }

func projectPrefix(projectID string) string {
	return keyPrefix + projectID + "/"
}

// Put writes snap as a new archive entry.
func (a *Archive) Put(ctx context.Context, snap domain.ProjectSnapshot) (Entry, error) {
	if snap.ID == "" || strings.Contains(snap.ID, "/") {
		return Entry{}, fmt.Errorf("invalid project id %q", snap.ID)
	}
	saved := snap.SavedAt
	if saved.IsZero() {
		saved = time.Now().UTC()
		snap.SavedAt = saved
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return Entry{}, fmt.Errorf("encode snapshot %s: %w", snap.ID, err)
	}
	key := projectPrefix(snap.ID) + saved.UTC().Format(stampLayout) + "-" + a.newID() + ".json"
	info, err := a.store.Put(ctx, key, bytes.NewReader(body), core.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"project":     snap.ID,
			"stage_count": strconv.Itoa(int(snap.StageCount)),
			"entities":    strconv.Itoa(len(snap.Entities)),
			"saved_at":    saved.UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return Entry{}, fmt.Errorf("archive %s: %w", snap.ID, err)
	}
	return entryFrom(snap.ID, info), nil
}

// List returns the archives of projectID, oldest first.
func (a *Archive) List(ctx context.Context, projectID string) ([]Entry, error) {
	infos, err := a.store.List(ctx, projectPrefix(projectID))
	if err != nil {
		return nil, fmt.Errorf("list archives %s: %w", projectID, err)
	}
	out := make([]Entry, 0, len(infos))
	for _, info := range infos {
		if !strings.HasSuffix(info.Key, ".json") {
			continue
		}
		out = append(out, entryFrom(projectID, info))
	}
	return out, nil
}

// Load decodes the snapshot stored at key.
func (a *Archive) Load(ctx context.Context, key string) (domain.ProjectSnapshot, error) {
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return domain.ProjectSnapshot{}, err
	}
	defer func() { _ = rc.Close() }()
	var snap domain.ProjectSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return domain.ProjectSnapshot{}, fmt.Errorf("decode archive %s: %w", key, err)
	}
	return snap, nil
}

// Latest loads the newest archive of projectID.
func (a *Archive) Latest(ctx context.Context, projectID string) (domain.ProjectSnapshot, Entry, error) {
	entries, err := a.List(ctx, projectID)
	if err != nil {
		return domain.ProjectSnapshot{}, Entry{}, err
	}
	if len(entries) == 0 {
		return domain.ProjectSnapshot{}, Entry{}, fmt.Errorf("%s: %w", projectID, ErrNoArchives)
	}
	last := entries[len(entries)-1]
	snap, err := a.Load(ctx, last.Key)
	return snap, last, err
}

// Delete removes one archive entry.
func (a *Archive) Delete(ctx context.Context, key string) (bool, error) {
	return a.store.Delete(ctx, key)
}

// entryFrom fills an Entry from blob info. Listing backends that drop user
// metadata (S3 ListObjectsV2) leave the counts at zero.
func entryFrom(projectID string, info core.Info) Entry {
	e := Entry{Key: info.Key, ProjectID: projectID, Size: info.Size, SavedAt: info.LastModified}
	if v, err := strconv.Atoi(info.Metadata["stage_count"]); err == nil {
		e.StageCount = v
	}
	if v, err := strconv.Atoi(info.Metadata["entities"]); err == nil {
		e.Entities = v
	}
	if ts, err := time.Parse(time.RFC3339Nano, info.Metadata["saved_at"]); err == nil {
		e.SavedAt = ts
	}
	return e
}
