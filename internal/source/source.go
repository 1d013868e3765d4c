// Package source implements package sources: named ingestion
// endpoints a database pulls package manifests from. The only
// concrete variant today is a remote Git repository.
package source

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ralph-pm/ralph/internal/api"
	"github.com/ralph-pm/ralph/internal/future"
)

// UpdateError is the terminal error of a failed source update. The
// source's cached packages and lastUpdated are untouched when it is
// raised.
type UpdateError struct {
	Source string
	Cause  error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("updating source %s: %s", e.Source, e.Cause)
}

func (e *UpdateError) Unwrap() error { return e.Cause }

// Snapshot is the outcome of one successful update: the packages
// discovered in the working tree and the fetch timestamp. It is
// handed back to the database, which commits it under its write lock.
type Snapshot struct {
	Packages  []*api.Package
	UpdatedAt time.Time
}

// Source is a named package ingestion endpoint.
type Source interface {
	Name() string
	TypeString() string
	LastUpdated() time.Time

	// Packages is the catalog discovered by the most recent
	// successful update.
	Packages() []*api.Package

	// Update fetches the remote into cloneDir and re-ingests
	// manifests. It mutates nothing; the caller commits the returned
	// snapshot.
	Update(cloneDir string) *future.Future[*Snapshot]

	// Commit applies a snapshot produced by Update.
	Commit(snap *Snapshot)

	SetLastUpdated(t time.Time)

	entry() sourceEntry
}

// sourceEntry is the sources.json representation of one source.
// Field order keeps the marshaled keys sorted.
type sourceEntry struct {
	LastUpdated time.Time `json:"lastUpdated"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	URL         string    `json:"url"`
}

// Marshal renders sources for sources.json, preserving registration
// order.
func Marshal(sources []Source) ([]byte, error) {
	entries := make([]sourceEntry, len(sources))
	for i, src := range sources {
		entries[i] = src.entry()
	}
	return api.MarshalIndentSorted(entries)
}

// Unmarshal parses sources.json back into sources. Cached packages
// are not part of sources.json; they are re-ingested from the clone
// working trees by the database on open.
func Unmarshal(data []byte) ([]Source, error) {
	var entries []sourceEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(entries))
	for _, entry := range entries {
		switch entry.Type {
		case TypeGit:
			src := NewGitSource(entry.Name, entry.URL)
			src.lastUpdated = entry.LastUpdated
			sources = append(sources, src)
		default:
			return nil, fmt.Errorf("unknown source type %q", entry.Type)
		}
	}
	return sources, nil
}
