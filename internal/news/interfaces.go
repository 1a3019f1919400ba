package news

import (
	"context"
	"time"
)

// Repository persists items and drives their lifecycle.
type Repository interface {
	// Insert stores a batch, silently skipping rows whose title and
	// URL pair already exists, and returns how many were new.
	Insert(ctx context.Context, items []Item) (int, error)
	// Pending returns items still awaiting submission, oldest publish
	// date first.
	Pending(ctx context.Context) ([]Item, error)
	// MarkSubmitted transitions a pending item to submitted.
	MarkSubmitted(ctx context.Context, id int64) error
	// RecordFailure bumps an item's failure count, escalating it to
	// the error state once the configured threshold is reached.
	RecordFailure(ctx context.Context, id int64) (FailureResult, error)
}

// BlobStore archives binary artifacts, currently failure screenshots.
type BlobStore interface {
	// PutObject stores data under path and returns a locator URI.
	PutObject(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// Publisher emits submission-outcome events.
type Publisher interface {
	// Publish sends the payload to the topic and returns a message ID.
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock abstracts time.Now for tests.
type Clock interface {
	Now() time.Time
}
