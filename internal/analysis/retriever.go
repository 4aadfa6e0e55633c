package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"resumind-backend/internal/shared/metrics"
	"resumind-backend/internal/shared/storage/kv"
	"resumind-backend/internal/shared/storage/object"
	"resumind-backend/internal/shared/telemetry"
)

// Retriever reconstructs stored analyses. It never writes.
type Retriever struct {
	Blobs   object.Store
	Records kv.Store
}

// Retrieved is a record with its blobs.
type Retrieved struct {
	Record       Record
	Document     []byte
	PreviewImage []byte
	// Key is the key the record was found under.
	Key    string
	Legacy bool
}

// Retrieve looks id up under the canonical key, then the legacy keys.
// When a blob is missing the record is still returned together with an
// error wrapping ErrIncomplete.
func (r *Retriever) Retrieve(ctx context.Context, id string) (Retrieved, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Retrieved{}, fmt.Errorf("%w: empty id", ErrNotFound)
	}

	payload, key, legacy, err := r.lookup(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.observe(id, "", "not_found")
		}
		return Retrieved{}, err
	}

	var rec Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		r.observe(id, key, "corrupt")
		return Retrieved{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	if rec.Feedback == nil {
		r.observe(id, key, "corrupt")
		return Retrieved{}, fmt.Errorf("%w: %s: feedback is null", ErrCorrupt, key)
	}
	if rec.ID == "" {
		rec.ID = id
	}

	out := Retrieved{Record: rec, Key: key, Legacy: legacy}
	var missing []string

	out.Document, err = r.readBlob(ctx, rec.DocumentPath)
	if err != nil {
		if !errors.Is(err, object.ErrNotFound) {
			return out, fmt.Errorf("read document %s: %w", rec.DocumentPath, err)
		}
		missing = append(missing, "resume")
	}
	out.PreviewImage, err = r.readBlob(ctx, rec.PreviewImagePath)
	if err != nil {
		if !errors.Is(err, object.ErrNotFound) {
			return out, fmt.Errorf("read preview %s: %w", rec.PreviewImagePath, err)
		}
		missing = append(missing, "image")
	}
	if len(missing) > 0 {
		r.observe(id, key, "incomplete")
		return out, fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}

	if legacy {
		r.observe(id, key, "legacy")
	} else {
		r.observe(id, key, "canonical")
	}
	return out, nil
}

func (r *Retriever) lookup(ctx context.Context, id string) (string, string, bool, error) {
	for i, key := range lookupKeys(id) {
		payload, err := r.Records.Get(ctx, key)
		if err == nil {
			return payload, key, i > 0, nil
		}
		if !errors.Is(err, kv.ErrNotFound) {
			return "", "", false, fmt.Errorf("get %s: %w", key, err)
		}
	}
	return "", "", false, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (r *Retriever) readBlob(ctx context.Context, path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, object.ErrNotFound
	}
	return object.ReadAll(ctx, r.Blobs, path)
}

func (r *Retriever) observe(id, key, result string) {
	metrics.IncRetrieval(result)
	telemetry.Info("retrieval.result", map[string]any{
		"analysis_id": id,
		"key":         key,
		"result":      result,
	})
}
