package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"citewatch.io/model"
)

// scholarAdapter follows the reference scholar.py crawler's stage graph:
// FetchFirst (profile + first publication page) -> FetchPublications
// (remaining pages) -> FetchSinglePublication (per-publication detail,
// one at a time) -> FetchCitations (per-publication citation pagination) ->
// back to FetchSinglePublication for the next id, or a full-cycle reset
// once every known publication has been detailed. Per-site HTML scraping
// is replaced with a single JSON endpoint at each step (spec.md §1).
type scholarAdapter struct{}

// NewScholarAdapter builds the Google Scholar source adapter.
func NewScholarAdapter() Adapter { return &scholarAdapter{} }

func (scholarAdapter) Namespace() string { return "scholar" }

func (scholarAdapter) Fields() map[string]string {
	return map[string]string{"profile_id": "Google Scholar profile id (the user= query parameter)"}
}

func (scholarAdapter) ValidateField(key, value string) error {
	if key != "profile_id" {
		return nil
	}
	if value == "" {
		return fmt.Errorf("adapters: scholar profile id must not be empty")
	}
	return nil
}

func (scholarAdapter) InitialStage() Stage { return &scholarFetchFirst{} }

func (scholarAdapter) NewStage(index int) Stage {
	switch index {
	case scholarStageFetchFirst:
		return &scholarFetchFirst{}
	case scholarStageFetchPublications:
		return &scholarFetchPublications{}
	case scholarStageFetchSinglePublication:
		return &scholarFetchSinglePublication{}
	case scholarStageFetchCitations:
		return &scholarFetchCitations{}
	default:
		return nil
	}
}

const (
	scholarStageFetchFirst = iota
	scholarStageFetchPublications
	scholarStageFetchSinglePublication
	scholarStageFetchCitations
)

const (
	scholarProfileDelay   = 5 * time.Minute
	scholarPublicationDelay = time.Hour
	scholarCitationDelay  = 5 * time.Minute
)

type scholarFetchFirst struct{}

func (*scholarFetchFirst) StageIndex() int { return scholarStageFetchFirst }

type scholarFetchPublications struct {
	KnownIDs []string `json:"known_pub_ids,omitempty"`
	Cursor   *string  `json:"cursor,omitempty"`
}

func (*scholarFetchPublications) StageIndex() int { return scholarStageFetchPublications }

type scholarFetchSinglePublication struct {
	KnownIDs []string `json:"known_pub_ids"`
	Offset   int      `json:"offset"`
}

func (*scholarFetchSinglePublication) StageIndex() int { return scholarStageFetchSinglePublication }

type scholarFetchCitations struct {
	KnownIDs []string `json:"known_pub_ids"`
	Offset   int      `json:"offset"`
	Cursor   *string  `json:"cit_cursor,omitempty"`
}

func (*scholarFetchCitations) StageIndex() int { return scholarStageFetchCitations }

type scholarProfilePage struct {
	Author       remoteAuthor        `json:"author"`
	Publications []remotePublication `json:"publications"`
	Cursor       *string             `json:"cursor,omitempty"`
}

type scholarPublicationDetail struct {
	Ref          string `json:"ref,omitempty"`
	Year         *int   `json:"year,omitempty"`
	HasCitations bool   `json:"has_citations"`
}

func (a scholarAdapter) Step(ctx context.Context, client *http.Client, values map[string]string, stage Stage) (*Step, error) {
	profileID := url.QueryEscape(values["profile_id"])

	switch s := stage.(type) {
	case *scholarFetchFirst:
		var page scholarProfilePage
		pageURL := fmt.Sprintf("https://scholar.google.com/citations?view_op=list_works&user=%s&json=1", profileID)
		if err := fetchJSON(client, pageURL, &page); err != nil {
			return nil, err
		}
		knownIDs := make([]string, 0, len(page.Publications))
		selfPubs := make([]model.Publication, 0, len(page.Publications))
		for _, rp := range page.Publications {
			knownIDs = append(knownIDs, rp.ID)
			selfPubs = append(selfPubs, toPublication(a.Namespace(), rp, true))
		}
		step := &Step{
			Delay:            scholarProfileDelay,
			Authors:          []model.Author{toAuthor(a.Namespace(), page.Author)},
			SelfPublications: selfPubs,
		}
		if page.Cursor != nil {
			step.Stage = &scholarFetchPublications{KnownIDs: knownIDs, Cursor: page.Cursor}
		} else {
			step.Stage = &scholarFetchSinglePublication{KnownIDs: knownIDs}
		}
		return step, nil

	case *scholarFetchPublications:
		var page publicationsPage
		cursorParam := ""
		if s.Cursor != nil {
			cursorParam = "&cstart=" + url.QueryEscape(*s.Cursor)
		}
		pageURL := fmt.Sprintf("https://scholar.google.com/citations?view_op=list_works&user=%s&json=1%s", profileID, cursorParam)
		if err := fetchJSON(client, pageURL, &page); err != nil {
			return nil, err
		}
		knownIDs := append([]string{}, s.KnownIDs...)
		selfPubs := make([]model.Publication, 0, len(page.Publications))
		for _, rp := range page.Publications {
			knownIDs = append(knownIDs, rp.ID)
			selfPubs = append(selfPubs, toPublication(a.Namespace(), rp, true))
		}
		if page.Cursor != nil {
			return &Step{
				Delay:            scholarProfileDelay,
				Stage:            &scholarFetchPublications{KnownIDs: knownIDs, Cursor: page.Cursor},
				SelfPublications: selfPubs,
			}, nil
		}
		return &Step{
			Delay:            scholarProfileDelay,
			Stage:            &scholarFetchSinglePublication{KnownIDs: knownIDs},
			SelfPublications: selfPubs,
		}, nil

	case *scholarFetchSinglePublication:
		if s.Offset >= len(s.KnownIDs) {
			return &Step{Delay: FullCycleDelay, Stage: nil}, nil
		}
		pubID := s.KnownIDs[s.Offset]
		var detail scholarPublicationDetail
		detailURL := fmt.Sprintf("https://scholar.google.com/citations?view_op=view_citation&citation_for_view=%s&json=1", url.QueryEscape(pubID))
		if err := fetchJSON(client, detailURL, &detail); err != nil {
			return nil, err
		}
		if detail.HasCitations {
			return &Step{
				Delay: scholarPublicationDelay,
				Stage: &scholarFetchCitations{KnownIDs: s.KnownIDs, Offset: s.Offset},
			}, nil
		}
		return &Step{
			Delay: scholarPublicationDelay,
			Stage: &scholarFetchSinglePublication{KnownIDs: s.KnownIDs, Offset: s.Offset + 1},
		}, nil

	case *scholarFetchCitations:
		pubID := s.KnownIDs[s.Offset]
		var page citationsPage
		cursorParam := ""
		if s.Cursor != nil {
			cursorParam = "&cstart=" + url.QueryEscape(*s.Cursor)
		}
		citeURL := fmt.Sprintf("https://scholar.google.com/scholar?cites=%s&json=1%s", url.QueryEscape(pubID), cursorParam)
		if err := fetchJSON(client, citeURL, &page); err != nil {
			return nil, err
		}
		citations := make([]model.Publication, 0, len(page.Citations))
		for _, rp := range page.Citations {
			citations = append(citations, toPublication(a.Namespace(), rp, false))
		}
		citationMap := map[string][]model.Publication{model.PublicationPath(pubID, ""): citations}

		if page.Cursor != nil {
			return &Step{
				Delay:     scholarCitationDelay,
				Stage:     &scholarFetchCitations{KnownIDs: s.KnownIDs, Offset: s.Offset, Cursor: page.Cursor},
				Citations: citationMap,
			}, nil
		}
		return &Step{
			Delay:     scholarProfileDelay,
			Stage:     &scholarFetchSinglePublication{KnownIDs: s.KnownIDs, Offset: s.Offset + 1},
			Citations: citationMap,
		}, nil

	default:
		return nil, fmt.Errorf("adapters: scholar: unexpected stage %T", stage)
	}
}
