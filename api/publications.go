package api

import (
	"context"
	"sort"

	"github.com/labstack/echo/v4"
	"net/http"

	"citewatch.io/merger"
	"citewatch.io/model"
)

// publicationView is the collapsed, user-facing shape of a publication:
// one entry per merge-equivalence group (or per unmerged record), with the
// contributing sources listed so the client can show provenance.
type publicationView struct {
	Name    string   `json:"name"`
	Year    *int     `json:"year,omitempty"`
	Sources []string `json:"sources"`
	Authors []string `json:"authors"`
	Cites   int      `json:"cites"`
}

// collapsedPublications groups owner's by_self publications into merge
// equivalence classes using the freshly loaded merge rows, summing each
// group's citation counts across sources. Citation edges are tracked
// per-(owner,source), so two merged records never double-count the same
// citing publication — their cite counts come from disjoint source graphs.
func collapsedPublications(pubs []model.Publication, merges []model.Merge) []publicationView {
	check := merger.NewMergeCheck(merges)

	type key struct{ source, path string }
	index := make(map[key]int, len(pubs))
	for i, p := range pubs {
		index[key{p.Source, p.Path}] = i
	}

	visited := make(map[key]bool, len(pubs))
	var views []publicationView

	for _, p := range pubs {
		k := key{p.Source, p.Path}
		if visited[k] {
			continue
		}

		group := []model.Publication{p}
		visited[k] = true

		// BFS over the merge relation so transitively merged records (A~B,
		// B~C) land in one group even without a direct A~C row.
		queue := []key{k}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, related := range check.GetRelated(cur.source, cur.path) {
				rk := key{related.Source, related.Path}
				if visited[rk] {
					continue
				}
				idx, ok := index[rk]
				if !ok {
					continue
				}
				visited[rk] = true
				group = append(group, pubs[idx])
				queue = append(queue, rk)
			}
		}

		views = append(views, mergeGroup(group))
	}

	sort.Slice(views, func(a, b int) bool { return views[a].Name < views[b].Name })
	return views
}

func mergeGroup(group []model.Publication) publicationView {
	view := publicationView{Name: group[0].Name}

	authorSeen := make(map[string]bool)
	sourceSeen := make(map[string]bool)

	for _, p := range group {
		if p.Year != nil {
			view.Year = p.Year
		}
		if !sourceSeen[p.Source] {
			sourceSeen[p.Source] = true
			view.Sources = append(view.Sources, p.Source)
		}
		for _, a := range p.Authors {
			if !authorSeen[a] {
				authorSeen[a] = true
				view.Authors = append(view.Authors, a)
			}
		}
		if count, ok := p.Extra["cite_count"].(int); ok {
			view.Cites += count
		}
	}

	sort.Strings(view.Sources)
	sort.Strings(view.Authors)
	return view
}

func (s *Server) loadPublicationViews(ctx context.Context, username string) ([]publicationView, error) {
	pubs, err := s.store.GetSelfPublications(ctx, username)
	if err != nil {
		return nil, err
	}
	merges, err := s.store.GetMerges(ctx, username)
	if err != nil {
		return nil, err
	}

	views := collapsedPublications(pubs, merges)
	if views == nil {
		views = []publicationView{}
	}
	return views, nil
}

// handlePublications implements GET /rest/publications.
func (s *Server) handlePublications(c echo.Context) error {
	username := requestUsername(c)

	if s.cache != nil {
		var cached []publicationView
		if ok, _ := s.cache.Get(c.Request().Context(), "publications:"+username, &cached); ok {
			return c.JSON(http.StatusOK, cached)
		}
	}

	views, err := s.loadPublicationViews(c.Request().Context(), username)
	if err != nil {
		return err
	}

	if s.cache != nil {
		_ = s.cache.Set(c.Request().Context(), "publications:"+username, views)
	}
	return c.JSON(http.StatusOK, views)
}
