package adapters

import "citewatch.io/model"

// remoteAuthor and remotePublication are the shared JSON shapes every
// adapter's single HTTP endpoint returns. Real per-site scraping is out of
// scope (spec.md §1); the reference dimensions.py crawler already talks to
// a single JSON endpoint, and every adapter here is simplified to the same
// shape rather than site-specific HTML parsing.
type remoteAuthor struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type remotePublication struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Year    *int           `json:"year,omitempty"`
	Ref     string         `json:"ref,omitempty"`
	Authors []remoteAuthor `json:"authors,omitempty"`
}

type publicationsPage struct {
	Publications []remotePublication `json:"publications"`
	Cursor       *string             `json:"cursor,omitempty"`
}

type citationsPage struct {
	Citations []remotePublication `json:"citations"`
	Cursor    *string             `json:"cursor,omitempty"`
}

// normalizeYear applies the "year 0 is normalized to null" contract rule:
// ambiguous or zero year values are dropped rather than persisted.
func normalizeYear(year *int) *int {
	if year == nil || *year == 0 {
		return nil
	}
	return year
}

// toAuthor and toPublication leave Owner unset: adapters never see the
// owning username (mirroring the reference step() signature, which takes
// only values/state/session), so the Scheduler stamps Owner onto every
// harvested record just before persisting it.
func toAuthor(source string, ra remoteAuthor) model.Author {
	return model.Author{
		Source:    source,
		Path:      model.AuthorPath(ra.ID, ra.FullName),
		FullName:  ra.FullName,
		ID:        ra.ID,
		FirstName: ra.FirstName,
		LastName:  ra.LastName,
	}
}

func toPublication(source string, rp remotePublication, bySelf bool) model.Publication {
	pub := model.Publication{
		Source: source,
		Path:   model.PublicationPath(rp.ID, rp.Name),
		BySelf: bySelf,
		Name:   rp.Name,
		ID:     rp.ID,
		Year:   normalizeYear(rp.Year),
		Ref:    rp.Ref,
	}
	if len(rp.Authors) > 0 {
		embedded := make([]model.Author, 0, len(rp.Authors))
		for _, ra := range rp.Authors {
			embedded = append(embedded, toAuthor(source, ra))
		}
		EmbedAuthors(&pub, embedded...)
	}
	return pub
}
