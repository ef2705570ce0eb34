package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"citewatch.io/model"
)

// aminerAdapter follows the same pubs-then-cites shape as dimensionsAdapter.
type aminerAdapter struct{}

// NewAminerAdapter builds the AMiner source adapter.
func NewAminerAdapter() Adapter { return &aminerAdapter{} }

func (aminerAdapter) Namespace() string { return "aminer" }

func (aminerAdapter) Fields() map[string]string {
	return map[string]string{"author_id": "AMiner author id"}
}

func (aminerAdapter) ValidateField(key, value string) error {
	if key != "author_id" {
		return nil
	}
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("adapters: aminer author id must not be empty")
	}
	return nil
}

func (aminerAdapter) InitialStage() Stage { return &aminerFetchPublications{} }

func (aminerAdapter) NewStage(index int) Stage {
	switch index {
	case aminerStageFetchPublications:
		return &aminerFetchPublications{}
	case aminerStageFetchCitations:
		return &aminerFetchCitations{}
	default:
		return nil
	}
}

const (
	aminerStageFetchPublications = iota
	aminerStageFetchCitations
)

type aminerFetchPublications struct {
	KnownIDs []string `json:"known_ids,omitempty"`
	Cursor   *string  `json:"cursor,omitempty"`
}

func (*aminerFetchPublications) StageIndex() int { return aminerStageFetchPublications }

type aminerFetchCitations struct {
	MissingIDs []string `json:"missing_ids"`
	Cursor     *string  `json:"cursor,omitempty"`
}

func (*aminerFetchCitations) StageIndex() int { return aminerStageFetchCitations }

func (a aminerAdapter) Step(ctx context.Context, client *http.Client, values map[string]string, stage Stage) (*Step, error) {
	authorID := url.QueryEscape(values["author_id"])

	switch s := stage.(type) {
	case *aminerFetchPublications:
		var page publicationsPage
		cursorParam := ""
		if s.Cursor != nil {
			cursorParam = "&cursor=" + url.QueryEscape(*s.Cursor)
		}
		pageURL := fmt.Sprintf("https://api.aminer.org/api/author/%s/pubs?%s", authorID, cursorParam)
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
				Delay:            2 * time.Minute,
				Stage:            &aminerFetchPublications{KnownIDs: knownIDs, Cursor: page.Cursor},
				SelfPublications: selfPubs,
			}, nil
		}
		return &Step{
			Delay:            5 * time.Minute,
			Stage:            &aminerFetchCitations{MissingIDs: knownIDs},
			SelfPublications: selfPubs,
		}, nil

	case *aminerFetchCitations:
		if len(s.MissingIDs) == 0 {
			return &Step{Delay: FullCycleDelay, Stage: nil}, nil
		}
		pubID := s.MissingIDs[0]
		var page citationsPage
		cursorParam := ""
		if s.Cursor != nil {
			cursorParam = "&cursor=" + url.QueryEscape(*s.Cursor)
		}
		fetchURL := fmt.Sprintf("https://api.aminer.org/api/pub/%s/cited-by?%s", pubID, cursorParam)
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
				Delay:     2 * time.Minute,
				Stage:     &aminerFetchCitations{MissingIDs: s.MissingIDs, Cursor: page.Cursor},
				Citations: citationMap,
			}, nil
		}
		return &Step{
			Delay:     5 * time.Minute,
			Stage:     &aminerFetchCitations{MissingIDs: s.MissingIDs[1:]},
			Citations: citationMap,
		}, nil

	default:
		return nil, fmt.Errorf("adapters: aminer: unexpected stage %T", stage)
	}
}
