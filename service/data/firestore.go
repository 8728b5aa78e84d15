package data

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/khaledhikmat/seat-go/service/config"
)

type firestoreService struct {
	client *firestore.Client
}

// NewFirestore connects with the service account file named by the config. An empty project id
// lets the client detect it from the credentials.
func NewFirestore(ctx context.Context, cfgsvc config.IService) (IService, error) {
	projectID := cfgsvc.GetFirebaseProjectID()
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}

	opts := []option.ClientOption{}
	if cred := cfgsvc.GetFirebaseCredPath(); cred != "" {
		opts = append(opts, option.WithCredentialsFile(cred))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &firestoreService{client: client}, nil
}

func (svc *firestoreService) MergeSet(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := svc.client.Collection(collection).Doc(id).Set(ctx, toFirestore(fields), firestore.MergeAll)
	return err
}

func (svc *firestoreService) StreamAll(ctx context.Context, collection string) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		it := svc.client.Collection(collection).Documents(ctx)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield(Document{}, err)
				return
			}
			if !yield(Document{ID: snap.Ref.ID, Fields: snap.Data()}, nil) {
				return
			}
		}
	}
}

func (svc *firestoreService) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	snap, err := svc.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, err
	}
	return Document{ID: snap.Ref.ID, Fields: snap.Data()}, true, nil
}

func (svc *firestoreService) CommitBatch(ctx context.Context, collection string, docs []Document) error {
	if len(docs) > MaxBatchWrites {
		return ErrBatchTooLarge(len(docs))
	}
	if len(docs) == 0 {
		return nil
	}

	batch := svc.client.Batch()
	col := svc.client.Collection(collection)
	for _, d := range docs {
		batch.Set(col.Doc(d.ID), toFirestore(d.Fields), firestore.MergeAll)
	}

	_, err := batch.Commit(ctx)
	return err
}

func (svc *firestoreService) Close() error {
	return svc.client.Close()
}

func toFirestore(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if _, ok := v.(serverTimestamp); ok {
			v = firestore.ServerTimestamp
		}
		out[k] = v
	}
	return out
}
