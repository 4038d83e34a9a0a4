// Path: internal/service/storage.go
package service

import (
	"context"
	"time"

	"media-search/internal/domain"
)

// SessionStorage persists the navigation state of search sessions so they
// survive a restart.
type SessionStorage interface {
	// Save inserts or replaces the document identified by doc.ID.
	Save(ctx context.Context, doc domain.SessionDocument) error

	// Load returns the stored document, or nil, nil if there is none.
	Load(ctx context.Context, id string) (*domain.SessionDocument, error)

	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, id string) error
}

// ExpiringStorage is implemented by stores that can drop old sessions.
type ExpiringStorage interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
