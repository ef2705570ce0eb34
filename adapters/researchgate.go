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

// researchGateAdapter follows the same pubs-then-cites shape as the other
// three single-endpoint crawlers.
type researchGateAdapter struct{}

// NewResearchGateAdapter builds the ResearchGate source adapter.
func NewResearchGateAdapter() Adapter { return &researchGateAdapter{} }

func (researchGateAdapter) Namespace() string { return "researchgate" }

func (researchGateAdapter) Fields() map[string]string {
	return map[string]string{"profile_slug": "ResearchGate profile slug"}
}

func (researchGateAdapter) ValidateField(key, value string) error {
	if key != "profile_slug" {
		return nil
	}
	if strings.ContainsAny(value, "/?# ") || value == "" {
		return fmt.Errorf("adapters: researchgate profile slug is malformed")
	}
	return nil
}

func (researchGateAdapter) InitialStage() Stage { return &researchGateFetchPublications{} }

func (researchGateAdapter) NewStage(index int) Stage {
	switch index {
	case researchGateStageFetchPublications:
		return &researchGateFetchPublications{}
	case researchGateStageFetchCitations:
		return &researchGateFetchCitations{}
	default:
		return nil
	}
}

const (
	researchGateStageFetchPublications = iota
	researchGateStageFetchCitations
)

type researchGateFetchPublications struct {
	KnownIDs []string `json:"known_ids,omitempty"`
	Cursor   *string  `json:"cursor,omitempty"`
}

func (*researchGateFetchPublications) StageIndex() int { return researchGateStageFetchPublications }

type researchGateFetchCitations struct {
	MissingIDs []string `json:"missing_ids"`
	Cursor     *string  `json:"cursor,omitempty"`
}

func (*researchGateFetchCitations) StageIndex() int { return researchGateStageFetchCitations }

func (a researchGateAdapter) Step(ctx context.Context, client *http.Client, values map[string]string, stage Stage) (*Step, error) {
	slug := url.QueryEscape(values["profile_slug"])

	switch s := stage.(type) {
	case *researchGateFetchPublications:
		var page publicationsPage
		cursorParam := ""
		if s.Cursor != nil {
			cursorParam = "&cursor=" + url.QueryEscape(*s.Cursor)
		}
		pageURL := fmt.Sprintf("https://www.researchgate.net/api/profile/%s/publications?%s", slug, cursorParam)
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
				Stage:            &researchGateFetchPublications{KnownIDs: knownIDs, Cursor: page.Cursor},
				SelfPublications: selfPubs,
			}, nil
		}
		return &Step{
			Delay:            5 * time.Minute,
			Stage:            &researchGateFetchCitations{MissingIDs: knownIDs},
			SelfPublications: selfPubs,
		}, nil

	case *researchGateFetchCitations:
		if len(s.MissingIDs) == 0 {
			return &Step{Delay: FullCycleDelay, Stage: nil}, nil
		}
		pubID := s.MissingIDs[0]
		var page citationsPage
		cursorParam := ""
		if s.Cursor != nil {
			cursorParam = "&cursor=" + url.QueryEscape(*s.Cursor)
		}
		fetchURL := fmt.Sprintf("https://www.researchgate.net/api/publication/%s/citations?%s", pubID, cursorParam)
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
				Stage:     &researchGateFetchCitations{MissingIDs: s.MissingIDs, Cursor: page.Cursor},
				Citations: citationMap,
			}, nil
		}
		return &Step{
			Delay:     5 * time.Minute,
			Stage:     &researchGateFetchCitations{MissingIDs: s.MissingIDs[1:]},
			Citations: citationMap,
		}, nil

	default:
		return nil, fmt.Errorf("adapters: researchgate: unexpected stage %T", stage)
	}
}
