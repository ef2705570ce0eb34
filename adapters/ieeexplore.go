package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"citewatch.io/model"
)

// ieeeExploreAdapter follows the same pubs-then-cites shape as
// dimensionsAdapter and aminerAdapter.
type ieeeExploreAdapter struct{}

// NewIEEEXploreAdapter builds the IEEE Xplore source adapter.
func NewIEEEXploreAdapter() Adapter { return &ieeeExploreAdapter{} }

func (ieeeExploreAdapter) Namespace() string { return "ieeexplore" }

func (ieeeExploreAdapter) Fields() map[string]string {
	return map[string]string{"author_number": "IEEE Xplore author number"}
}

func (ieeeExploreAdapter) ValidateField(key, value string) error {
	if key != "author_number" {
		return nil
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return fmt.Errorf("adapters: ieeexplore author number must be numeric")
		}
	}
	if value == "" {
		return fmt.Errorf("adapters: ieeexplore author number must not be empty")
	}
	return nil
}

func (ieeeExploreAdapter) InitialStage() Stage { return &ieeeFetchPublications{} }

func (ieeeExploreAdapter) NewStage(index int) Stage {
	switch index {
	case ieeeStageFetchPublications:
		return &ieeeFetchPublications{}
	case ieeeStageFetchCitations:
		return &ieeeFetchCitations{}
	default:
		return nil
	}
}

const (
	ieeeStageFetchPublications = iota
	ieeeStageFetchCitations
)

type ieeeFetchPublications struct {
	KnownIDs []string `json:"known_ids,omitempty"`
	Cursor   *string  `json:"cursor,omitempty"`
}

func (*ieeeFetchPublications) StageIndex() int { return ieeeStageFetchPublications }

type ieeeFetchCitations struct {
	MissingIDs []string `json:"missing_ids"`
	Cursor     *string  `json:"cursor,omitempty"`
}

func (*ieeeFetchCitations) StageIndex() int { return ieeeStageFetchCitations }

func (a ieeeExploreAdapter) Step(ctx context.Context, client *http.Client, values map[string]string, stage Stage) (*Step, error) {
	authorNumber := url.QueryEscape(values["author_number"])

	switch s := stage.(type) {
	case *ieeeFetchPublications:
		var page publicationsPage
		cursorParam := ""
		if s.Cursor != nil {
			cursorParam = "&cursor=" + url.QueryEscape(*s.Cursor)
		}
		pageURL := fmt.Sprintf("https://ieeexplore.ieee.org/rest/author/%s/documents?%s", authorNumber, cursorParam)
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
				Delay:            3 * time.Minute,
				Stage:            &ieeeFetchPublications{KnownIDs: knownIDs, Cursor: page.Cursor},
				SelfPublications: selfPubs,
			}, nil
		}
		return &Step{
			Delay:            5 * time.Minute,
			Stage:            &ieeeFetchCitations{MissingIDs: knownIDs},
			SelfPublications: selfPubs,
		}, nil

	case *ieeeFetchCitations:
		if len(s.MissingIDs) == 0 {
			return &Step{Delay: FullCycleDelay, Stage: nil}, nil
		}
		pubID := s.MissingIDs[0]
		var page citationsPage
		cursorParam := ""
		if s.Cursor != nil {
			cursorParam = "&cursor=" + url.QueryEscape(*s.Cursor)
		}
		fetchURL := fmt.Sprintf("https://ieeexplore.ieee.org/rest/document/%s/citedby?%s", pubID, cursorParam)
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
				Delay:     3 * time.Minute,
				Stage:     &ieeeFetchCitations{MissingIDs: s.MissingIDs, Cursor: page.Cursor},
				Citations: citationMap,
			}, nil
		}
		return &Step{
			Delay:     5 * time.Minute,
			Stage:     &ieeeFetchCitations{MissingIDs: s.MissingIDs[1:]},
			Citations: citationMap,
		}, nil

	default:
		return nil, fmt.Errorf("adapters: ieeexplore: unexpected stage %T", stage)
	}
}
