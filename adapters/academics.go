package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"citewatch.io/model"
)

// academicsAdapter mirrors scholarAdapter's stage graph (the reference
// Microsoft Academic crawler shares the same paginated-then-detail-then-cites
// shape), against a different single JSON endpoint family.
type academicsAdapter struct{}

// NewAcademicsAdapter builds the Microsoft Academic source adapter.
func NewAcademicsAdapter() Adapter { return &academicsAdapter{} }

func (academicsAdapter) Namespace() string { return "academics" }

func (academicsAdapter) Fields() map[string]string {
	return map[string]string{"author_id": "Microsoft Academic author id"}
}

func (academicsAdapter) ValidateField(key, value string) error {
	if key != "author_id" {
		return nil
	}
	if value == "" {
		return fmt.Errorf("adapters: academics author id must not be empty")
	}
	return nil
}

func (academicsAdapter) InitialStage() Stage { return &academicsFetchFirst{} }

func (academicsAdapter) NewStage(index int) Stage {
	switch index {
	case academicsStageFetchFirst:
		return &academicsFetchFirst{}
	case academicsStageFetchPublications:
		return &academicsFetchPublications{}
	case academicsStageFetchSinglePublication:
		return &academicsFetchSinglePublication{}
	case academicsStageFetchCitations:
		return &academicsFetchCitations{}
	default:
		return nil
	}
}

const (
	academicsStageFetchFirst = iota
	academicsStageFetchPublications
	academicsStageFetchSinglePublication
	academicsStageFetchCitations
)

const (
	academicsProfileDelay     = 5 * time.Minute
	academicsPublicationDelay = time.Hour
	academicsCitationDelay    = 5 * time.Minute
)

type academicsFetchFirst struct{}

func (*academicsFetchFirst) StageIndex() int { return academicsStageFetchFirst }

type academicsFetchPublications struct {
	KnownIDs []string `json:"known_pub_ids,omitempty"`
	Cursor   *string  `json:"cursor,omitempty"`
}

func (*academicsFetchPublications) StageIndex() int { return academicsStageFetchPublications }

type academicsFetchSinglePublication struct {
	KnownIDs []string `json:"known_pub_ids"`
	Offset   int      `json:"offset"`
}

func (*academicsFetchSinglePublication) StageIndex() int {
	return academicsStageFetchSinglePublication
}

type academicsFetchCitations struct {
	KnownIDs []string `json:"known_pub_ids"`
	Offset   int      `json:"offset"`
	Cursor   *string  `json:"cit_cursor,omitempty"`
}

func (*academicsFetchCitations) StageIndex() int { return academicsStageFetchCitations }

func (a academicsAdapter) Step(ctx context.Context, client *http.Client, values map[string]string, stage Stage) (*Step, error) {
	authorID := url.QueryEscape(values["author_id"])

	switch s := stage.(type) {
	case *academicsFetchFirst:
		var page scholarProfilePage
		pageURL := fmt.Sprintf("https://academic.microsoft.com/api/author/%s/profile", authorID)
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
			Delay:            academicsProfileDelay,
			Authors:          []model.Author{toAuthor(a.Namespace(), page.Author)},
			SelfPublications: selfPubs,
		}
		if page.Cursor != nil {
			step.Stage = &academicsFetchPublications{KnownIDs: knownIDs, Cursor: page.Cursor}
		} else {
			step.Stage = &academicsFetchSinglePublication{KnownIDs: knownIDs}
		}
		return step, nil

	case *academicsFetchPublications:
		var page publicationsPage
		cursorParam := ""
		if s.Cursor != nil {
			cursorParam = "?offset=" + url.QueryEscape(*s.Cursor)
		}
		pageURL := fmt.Sprintf("https://academic.microsoft.com/api/author/%s/publications%s", authorID, cursorParam)
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
				Delay:            academicsProfileDelay,
				Stage:            &academicsFetchPublications{KnownIDs: knownIDs, Cursor: page.Cursor},
				SelfPublications: selfPubs,
			}, nil
		}
		return &Step{
			Delay:            academicsProfileDelay,
			Stage:            &academicsFetchSinglePublication{KnownIDs: knownIDs},
			SelfPublications: selfPubs,
		}, nil

	case *academicsFetchSinglePublication:
		if s.Offset >= len(s.KnownIDs) {
			return &Step{Delay: FullCycleDelay, Stage: nil}, nil
		}
		pubID := s.KnownIDs[s.Offset]
		var detail scholarPublicationDetail
		detailURL := fmt.Sprintf("https://academic.microsoft.com/api/publication/%s", url.QueryEscape(pubID))
		if err := fetchJSON(client, detailURL, &detail); err != nil {
			return nil, err
		}
		if detail.HasCitations {
			return &Step{
				Delay: academicsPublicationDelay,
				Stage: &academicsFetchCitations{KnownIDs: s.KnownIDs, Offset: s.Offset},
			}, nil
		}
		return &Step{
			Delay: academicsPublicationDelay,
			Stage: &academicsFetchSinglePublication{KnownIDs: s.KnownIDs, Offset: s.Offset + 1},
		}, nil

	case *academicsFetchCitations:
		pubID := s.KnownIDs[s.Offset]
		var page citationsPage
		cursorParam := ""
		if s.Cursor != nil {
			cursorParam = "?offset=" + url.QueryEscape(*s.Cursor)
		}
		citeURL := fmt.Sprintf("https://academic.microsoft.com/api/publication/%s/citations%s", url.QueryEscape(pubID), cursorParam)
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
				Delay:     academicsCitationDelay,
				Stage:     &academicsFetchCitations{KnownIDs: s.KnownIDs, Offset: s.Offset, Cursor: page.Cursor},
				Citations: citationMap,
			}, nil
		}
		return &Step{
			Delay:     academicsProfileDelay,
			Stage:     &academicsFetchSinglePublication{KnownIDs: s.KnownIDs, Offset: s.Offset + 1},
			Citations: citationMap,
		}, nil

	default:
		return nil, fmt.Errorf("adapters: academics: unexpected stage %T", stage)
	}
}
