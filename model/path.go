package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// AuthorPath computes the content-addressed path for an author record: by
// remote id when known, falling back to the full name exactly as given, so
// the same spelling collapses to one row even before an id is ever seen.
func AuthorPath(id, fullName string) string {
	if id != "" {
		return "author/" + sha256Hex(id)
	}
	return "author/uniden/" + sha256Hex(fullName)
}

// PublicationPath computes the content-addressed path for a publication
// record, analogous to AuthorPath with the "pub/" prefix.
func PublicationPath(id, name string) string {
	if id != "" {
		return "pub/" + sha256Hex(id)
	}
	return "pub/uniden/" + sha256Hex(name)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
