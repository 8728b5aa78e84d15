package data

import (
	"context"
	"iter"
)

// MaxBatchWrites is the most writes a single CommitBatch call may carry.
const MaxBatchWrites = 500

type serverTimestamp struct{}

// ServerTimestamp is a field value that the backend replaces with its own clock at write time.
var ServerTimestamp = serverTimestamp{}

type Document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type IService interface {
	// MergeSet upserts fields into the document, leaving fields it does not name untouched.
	MergeSet(ctx context.Context, collection, id string, fields map[string]any) error
	// StreamAll lazily yields every document of a collection. The sequence is not a snapshot.
	StreamAll(ctx context.Context, collection string) iter.Seq2[Document, error]
	Get(ctx context.Context, collection, id string) (Document, bool, error)
	// CommitBatch merge-writes up to MaxBatchWrites documents.
	CommitBatch(ctx context.Context, collection string, docs []Document) error
	Close() error
}
