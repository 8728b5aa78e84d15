package data

import (
	"context"
	"iter"
	"slices"
	"sync"
	"time"
)

type memoryService struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	now         func() time.Time
}

// NewMemory returns a process local store, used by tests and dry runs.
func NewMemory() IService {
	return &memoryService{
		collections: map[string]map[string]map[string]any{},
		now:         time.Now,
	}
}

func (svc *memoryService) MergeSet(_ context.Context, collection, id string, fields map[string]any) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.merge(collection, id, fields, svc.now())
	return nil
}

func (svc *memoryService) merge(collection, id string, fields map[string]any, now time.Time) {
	docs, ok := svc.collections[collection]
	if !ok {
		docs = map[string]map[string]any{}
		svc.collections[collection] = docs
	}
	docs[id] = mergeFields(docs[id], fields, now)
}

func (svc *memoryService) StreamAll(ctx context.Context, collection string) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		svc.mu.Lock()
		ids := make([]string, 0, len(svc.collections[collection]))
		for id := range svc.collections[collection] {
			ids = append(ids, id)
		}
		svc.mu.Unlock()
		slices.Sort(ids)

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				yield(Document{}, err)
				return
			}
			doc, ok, _ := svc.Get(ctx, collection, id)
			if !ok {
				// deleted while streaming
				continue
			}
			if !yield(doc, nil) {
				return
			}
		}
	}
}

func (svc *memoryService) Get(_ context.Context, collection, id string) (Document, bool, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	fields, ok := svc.collections[collection][id]
	if !ok {
		return Document{}, false, nil
	}
	return Document{ID: id, Fields: cloneFields(fields)}, true, nil
}

func (svc *memoryService) CommitBatch(_ context.Context, collection string, docs []Document) error {
	if len(docs) > MaxBatchWrites {
		return ErrBatchTooLarge(len(docs))
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	now := svc.now()
	for _, d := range docs {
		svc.merge(collection, d.ID, d.Fields, now)
	}
	return nil
}

func (svc *memoryService) Close() error {
	return nil
}
