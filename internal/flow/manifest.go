package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"

	"github.com/modelguard/guardian/pkg/api"
	"github.com/modelguard/guardian/pkg/log"
)

// ManifestStore persists bulk-operation manifests to a blob bucket,
// supporting file and in-memory stores via URL scheme
type ManifestStore struct {
	bucket *blob.Bucket
	prefix string
}

var ErrManifestNotFound = fmt.Errorf("manifest not found")

// NewManifestStore opens the bucket at bucketURL
func NewManifestStore(
	ctx context.Context, bucketURL, prefix string,
) (*ManifestStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return &ManifestStore{bucket: bucket, prefix: prefix}, nil
}

// Record writes the manifest for a bulk operation. Manifests are
// read-only once written
func (s *ManifestStore) Record(
	ctx context.Context, cid api.CorrelationID,
	status api.FlowStatus, counts api.ManifestCounts,
) (*api.Manifest, error) {
	manifest := &api.Manifest{
		ManifestID:    api.NewManifestID(),
		CorrelationID: cid,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Counts:        counts,
	}
	manifest.Location = s.keyFor(manifest.ManifestID)

	data, err := json.Marshal(manifest)
	if err != nil {
		return nil, err
	}
	if err := s.bucket.WriteAll(
		ctx, manifest.Location, data, nil,
	); err != nil {
		return nil, err
	}

	slog.Info("Manifest recorded",
		log.CorrelationID(cid),
		slog.String("manifest_id", string(manifest.ManifestID)),
		slog.String("location", manifest.Location))
	return manifest, nil
}

// Get reads a previously recorded manifest
func (s *ManifestStore) Get(
	ctx context.Context, id api.ManifestID,
) (*api.Manifest, error) {
	data, err := s.bucket.ReadAll(ctx, s.keyFor(id))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, id)
		}
		return nil, err
	}

	var manifest api.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}

// Close releases the bucket
func (s *ManifestStore) Close() error {
	return s.bucket.Close()
}

func (s *ManifestStore) keyFor(id api.ManifestID) string {
	return s.prefix + string(id) + ".json"
}
