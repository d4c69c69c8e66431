// Package session implements the tiered per-user session store: a bounded
// in-process cache over an optional fast shared cache and an optional
// durable store, holding each user's conversation history and uploaded
// document metadata.
package session

import (
	"time"

	"github.com/hetarolabs/samantha/ai"
)

// Document is uploaded-document metadata attached to a user session. IDs are
// monotonic decimal strings, unique within one user.
type Document struct {
	ID       string         `json:"id"`
	MIMEType string         `json:"mimeType"`
	URL      string         `json:"url"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Record is one user's session state as stored in every tier. Cached marks
// whether the record has been materialized from a lower tier or written at
// least once; a fresh default record reports Cached=false.
type Record struct {
	History   []ai.Conversation `json:"history"`
	Documents []Document        `json:"documents"`
	Cached    bool              `json:"cached"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cloned := &Record{
		History:   make([]ai.Conversation, len(r.History)),
		Documents: make([]Document, len(r.Documents)),
		Cached:    r.Cached,
		UpdatedAt: r.UpdatedAt,
	}
	copy(cloned.History, r.History)
	copy(cloned.Documents, r.Documents)
	return cloned
}

// Config bounds the session store. Zero values fall back to the defaults.
type Config struct {
	// MaxCachedUsers bounds the in-process cache to K user entries,
	// evicted least-recently-updated first.
	MaxCachedUsers int
	// MaxHistoryPerUser bounds each user's history to the most recent N
	// conversations.
	MaxHistoryPerUser int
	// MaxDocumentsPerUser bounds each user's document list to the most
	// recent M entries.
	MaxDocumentsPerUser int
}

const (
	DefaultMaxCachedUsers      = 100
	DefaultMaxHistoryPerUser   = 5
	DefaultMaxDocumentsPerUser = 3
)

func (c Config) withDefaults() Config {
	if c.MaxCachedUsers <= 0 {
		c.MaxCachedUsers = DefaultMaxCachedUsers
	}
	if c.MaxHistoryPerUser <= 0 {
		c.MaxHistoryPerUser = DefaultMaxHistoryPerUser
	}
	if c.MaxDocumentsPerUser <= 0 {
		c.MaxDocumentsPerUser = DefaultMaxDocumentsPerUser
	}
	return c
}
