// Package model holds the durable entities the Store persists: users'
// sources, the authors and publications discovered while crawling them, the
// edges between them, and the cross-source merge relation. These mirror the
// reference SQLite schema's tables one for one.
package model

import "encoding/json"

// Source is one (owner, adapter) crawl row: the user-supplied field values,
// the adapter's opaque task state, and the next time it is due to run.
type Source struct {
	Owner    string
	Key      string // adapter namespace: scholar|academics|aminer|ieeexplore|researchgate|dimensions
	Values   map[string]string
	TaskJSON json.RawMessage // nil means "adapter's initial stage"
	Due      int64           // unix seconds
}

// Author is a discovered author record, content-addressed within
// (owner, source) by Path.
type Author struct {
	Owner     string
	Source    string
	Path      string
	FullName  string
	ID        string // remote-assigned identifier, empty if unidentified
	FirstName string
	LastName  string
	Extra     map[string]any
}

// Publication is a discovered publication record, content-addressed within
// (owner, source) by Path. BySelf is true once the owner's own
// "publications by this author" endpoint has surfaced it; it only ever
// upgrades from false to true, never back.
type Publication struct {
	Owner   string
	Source  string
	Path    string
	BySelf  bool
	Name    string
	ID      string
	Year    *int
	Ref     string
	Extra   map[string]any
	Authors []string // author Path references; populated post fix-up
}

// PublicationAuthor is the authorship edge between a Publication and an
// Author within the same (owner, source).
type PublicationAuthor struct {
	Owner      string
	Source     string
	PubPath    string
	AuthorPath string
}

// Cites records that PubPath is cited by CitedBy, both Publications within
// the same (owner, source).
type Cites struct {
	Owner   string
	Source  string
	PubPath string
	CitedBy string
}

// Merge is a cross-source equivalence edge between two by_self publications.
// SourceA is always lexicographically less than SourceB.
type Merge struct {
	Owner      string
	SourceA    string
	SourceB    string
	PubA       string
	PubB       string
	Similarity float64
}
