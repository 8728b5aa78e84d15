package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/khaledhikmat/seat-go/service/config"
)

// filesDBService keeps every collection in one JSON file under the configured folder:
// <folder>/<collection>.json holding {"<id>": {fields...}}.
type filesDBService struct {
	CfgSvc config.IService
	mu     sync.Mutex
}

func NewFilesDB(cfgsvc config.IService) IService {
	return &filesDBService{
		CfgSvc: cfgsvc,
	}
}

func (svc *filesDBService) MergeSet(_ context.Context, collection, id string, fields map[string]any) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	docs, err := retrieveEntities[map[string]map[string]any](svc.collectionFile(collection))
	if err != nil {
		return err
	}
	if docs == nil {
		docs = map[string]map[string]any{}
	}

	docs[id] = mergeFields(docs[id], fields, time.Now())
	return storeEntities(svc.collectionFile(collection), docs)
}

func (svc *filesDBService) StreamAll(ctx context.Context, collection string) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		svc.mu.Lock()
		docs, err := retrieveEntities[map[string]map[string]any](svc.collectionFile(collection))
		svc.mu.Unlock()
		if err != nil {
			yield(Document{}, err)
			return
		}

		ids := make([]string, 0, len(docs))
		for id := range docs {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				yield(Document{}, err)
				return
			}
			if !yield(Document{ID: id, Fields: cloneFields(docs[id])}, nil) {
				return
			}
		}
	}
}

func (svc *filesDBService) Get(_ context.Context, collection, id string) (Document, bool, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	docs, err := retrieveEntities[map[string]map[string]any](svc.collectionFile(collection))
	if err != nil {
		return Document{}, false, err
	}

	fields, ok := docs[id]
	if !ok {
		return Document{}, false, nil
	}
	return Document{ID: id, Fields: cloneFields(fields)}, true, nil
}

func (svc *filesDBService) CommitBatch(_ context.Context, collection string, batch []Document) error {
	if len(batch) > MaxBatchWrites {
		return ErrBatchTooLarge(len(batch))
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	docs, err := retrieveEntities[map[string]map[string]any](svc.collectionFile(collection))
	if err != nil {
		return err
	}
	if docs == nil {
		docs = map[string]map[string]any{}
	}

	now := time.Now()
	for _, d := range batch {
		docs[d.ID] = mergeFields(docs[d.ID], d.Fields, now)
	}

	// One file write per batch keeps the commit all-or-nothing
	return storeEntities(svc.collectionFile(collection), docs)
}

func (svc *filesDBService) Close() error {
	return nil
}

func (svc *filesDBService) collectionFile(collection string) string {
	return filepath.Join(svc.CfgSvc.GetFilesDBFolder(), fmt.Sprintf("%s.json", collection))
}

func retrieveEntities[T any](filename string) (T, error) {
	var entities T

	data, err := os.ReadFile(filename)
	if errors.Is(err, fs.ErrNotExist) {
		// WARNING: File not found, return the zero value
		return entities, nil
	}
	if err != nil {
		return entities, err
	}

	err = json.Unmarshal(data, &entities)
	if err != nil {
		return entities, fmt.Errorf("decoding %s: %w", filename, err)
	}

	return entities, nil
}

func storeEntities[T any](filename string, entities T) error {
	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	// Write to a sibling file and rename so readers never see a partial document set
	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filename)
}
