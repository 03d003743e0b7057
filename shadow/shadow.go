// Package shadow keeps a durable copy of the latest published snapshot so a
// restarted process can serve data before its first refresh completes.
package shadow

import (
	"context"
	"time"

	"github.com/dailyyoga/regstats/snapshot"
)

// Shadow persists and restores snapshot documents.
type Shadow interface {
	// Save durably records doc. A failed Save leaves any previous copy intact.
	Save(ctx context.Context, doc *Document) error
	// Load returns the stored document, or nil without error when nothing
	// usable is stored (missing or corrupt).
	Load(ctx context.Context) (*Document, error)
}

// Document is the persisted form of a snapshot and its refresh timestamps.
// Timestamps are RFC 3339 strings or null.
type Document struct {
	Snapshot      *snapshot.Snapshot `json:"snapshot"`
	LastRefreshAt *time.Time         `json:"last_refresh_at"`
	NextRefreshAt *time.Time         `json:"next_refresh_at"`
}

// NewDocument builds a document, leaving zero times as null.
func NewDocument(s *snapshot.Snapshot, last, next time.Time) *Document {
	return &Document{
		Snapshot:      s,
		LastRefreshAt: timePtr(last),
		NextRefreshAt: timePtr(next),
	}
}

// Expired reports whether the stored snapshot was due for a refresh at now.
// A document without a next refresh time is always expired.
func (d *Document) Expired(now time.Time) bool {
	if d == nil || d.NextRefreshAt == nil {
		return true
	}
	return !now.Before(*d.NextRefreshAt)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}
