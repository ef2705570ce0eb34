package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"citewatch.io/model"
)

// dimensionsAdapter is grounded directly on the reference dimensions.py
// crawler: FetchAuthors -> FetchPublications (paginated) -> FetchCitations
// (one publication id at a time, paginated), then a full-cycle reset.
type dimensionsAdapter struct{}

// NewDimensionsAdapter builds the Dimensions source adapter.
func NewDimensionsAdapter() Adapter { return &dimensionsAdapter{} }

func (dimensionsAdapter) Namespace() string { return "dimensions" }

func (dimensionsAdapter) Fields() map[string]string {
	return map[string]string{
		"profile_url": "Dimensions researcher profile URL",
	}
}

// ValidateField requires the URL to carry an and_facet_researcher query
// parameter, the researcher id Dimensions encodes in profile links.
func (dimensionsAdapter) ValidateField(key, value string) error {
	if key != "profile_url" {
		return nil
	}
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("adapters: invalid dimensions profile url: %w", err)
	}
	if u.Query().Get("and_facet_researcher") == "" {
		return fmt.Errorf("adapters: dimensions profile url missing and_facet_researcher")
	}
	return nil
}

func (dimensionsAdapter) InitialStage() Stage { return &dimensionsFetchAuthors{} }

func (dimensionsAdapter) NewStage(index int) Stage {
	switch index {
	case dimensionsStageFetchAuthors:
		return &dimensionsFetchAuthors{}
	case dimensionsStageFetchPublications:
		return &dimensionsFetchPublications{}
	case dimensionsStageFetchCitations:
		return &dimensionsFetchCitations{}
	default:
		return nil
	}
}

const (
	dimensionsStageFetchAuthors = iota
	dimensionsStageFetchPublications
	dimensionsStageFetchCitations
)

type dimensionsFetchAuthors struct{}

func (*dimensionsFetchAuthors) StageIndex() int { return dimensionsStageFetchAuthors }

type dimensionsFetchPublications struct {
	KnownIDs []string `json:"known_ids,omitempty"`
	Cursor   *string  `json:"cursor,omitempty"`
}

func (*dimensionsFetchPublications) StageIndex() int { return dimensionsStageFetchPublications }

type dimensionsFetchCitations struct {
	MissingIDs []string `json:"missing_ids"`
	Cursor     *string  `json:"cursor,omitempty"`
}

func (*dimensionsFetchCitations) StageIndex() int { return dimensionsStageFetchCitations }

func (a dimensionsAdapter) Step(ctx context.Context, client *http.Client, values map[string]string, stage Stage) (*Step, error) {
	researcherID := ""
	if u, err := url.Parse(values["profile_url"]); err == nil {
		researcherID = url.QueryEscape(u.Query().Get("and_facet_researcher"))
	}

	switch s := stage.(type) {
	case *dimensionsFetchAuthors:
		var author remoteAuthor
		if err := fetchJSON(client, "https://app.dimensions.ai/api/author/"+researcherID, &author); err != nil {
			return nil, err
		}
		return &Step{
			Delay:   10 * time.Minute,
			Stage:   &dimensionsFetchPublications{},
			Authors: []model.Author{toAuthor(a.Namespace(), author)},
		}, nil

	case *dimensionsFetchPublications:
		var page publicationsPage
		cursorParam := ""
		if s.Cursor != nil {
			cursorParam = "&cursor=" + url.QueryEscape(*s.Cursor)
		}
		pageURL := fmt.Sprintf("https://app.dimensions.ai/api/researcher/%s/publications?%s", researcherID, cursorParam)
		if err := fetchJSON(client, pageURL, &page); err != nil {
			return nil, err
		}

		selfPubs := make([]model.Publication, 0, len(page.Publications))
		knownIDs := append([]string{}, s.KnownIDs...)
		for _, rp := range page.Publications {
			knownIDs = append(knownIDs, rp.ID)
			selfPubs = append(selfPubs, toPublication(a.Namespace(), rp, true))
		}

		if page.Cursor != nil {
			return &Step{
				Delay:            5 * time.Minute,
				Stage:            &dimensionsFetchPublications{KnownIDs: knownIDs, Cursor: page.Cursor},
				SelfPublications: selfPubs,
			}, nil
		}
		return &Step{
			Delay:            10 * time.Minute,
			Stage:            &dimensionsFetchCitations{MissingIDs: knownIDs},
			SelfPublications: selfPubs,
		}, nil

	case *dimensionsFetchCitations:
		if len(s.MissingIDs) == 0 {
			return &Step{Delay: FullCycleDelay, Stage: nil}, nil
		}
		pubID := s.MissingIDs[0]
		var page citationsPage
		cursorParam := ""
		if s.Cursor != nil {
			cursorParam = "&cursor=" + url.QueryEscape(*s.Cursor)
		}
		fetchURL := fmt.Sprintf("https://app.dimensions.ai/api/publication/%s/citations?%s", pubID, cursorParam)
		if err := fetchJSON(client, fetchURL, &page); err != nil {
			return nil, err
		}

		citations := make([]model.Publication, 0, len(page.Citations))
		for _, rp := range page.Citations {
			citations = append(citations, toPublication(a.Namespace(), rp, false))
		}
		citationMap := map[string][]model.Publication{model.PublicationPath(pubID, ""): citations}

		if page.Cursor != nil {
			return &Step{
				Delay:     5 * time.Minute,
				Stage:     &dimensionsFetchCitations{MissingIDs: s.MissingIDs, Cursor: page.Cursor},
				Citations: citationMap,
			}, nil
		}
		return &Step{
			Delay:     10 * time.Minute,
			Stage:     &dimensionsFetchCitations{MissingIDs: s.MissingIDs[1:]},
			Citations: citationMap,
		}, nil

	default:
		return nil, fmt.Errorf("adapters: dimensions: unexpected stage %T", stage)
	}
}
