package api

import (
	"math"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
)

// maxIIndex bounds the i_indices histogram, matching the reference server's
// MAX_I_INDEX constant.
const maxIIndex = 20

// metricsResponse is the exact bibliometric summary the reference server
// computes in get_metrics.
type metricsResponse struct {
	EIndex          float64 `json:"e_index"`
	GIndex          int     `json:"g_index"`
	HIndex          int     `json:"h_index"`
	IIndices        [20]int `json:"i_indices"`
	AvgAuthorCount  float64 `json:"avg_author_count"`
	PubCount        int     `json:"pub_count"`
}

func computeMetrics(views []publicationView) metricsResponse {
	citeCounts := make([]int, len(views))
	authorCounts := make([]int, len(views))
	for i, v := range views {
		citeCounts[i] = v.Cites
		authorCounts[i] = len(v.Authors)
	}

	sort.Sort(sort.Reverse(sort.IntSlice(citeCounts)))

	// Largest h such that h publications have h or more citations.
	hIndex := 0
	for i, cc := range citeCounts {
		if cc >= i+1 {
			hIndex = i + 1
		} else {
			break
		}
	}

	// Number of publications with at least N citations, N = 1..maxIIndex.
	var iIndices [maxIIndex]int
	for _, cc := range citeCounts {
		if cc != 0 {
			bucket := cc
			if bucket > maxIIndex {
				bucket = maxIIndex
			}
			iIndices[bucket-1]++
		}
	}
	for i := maxIIndex - 1; i > 0; i-- {
		iIndices[i-1] += iIndices[i]
	}

	// Largest g such that the top g publications have g^2 or more citations
	// combined.
	gIndex := 0
	gSum := 0
	for i, cc := range citeCounts {
		gSum += cc
		if gSum >= (i+1)*(i+1) {
			gIndex = i + 1
		} else {
			break
		}
	}

	eSquaredSum := 0
	for _, cc := range citeCounts[:hIndex] {
		eSquaredSum += cc
	}
	eIndex := math.Sqrt(math.Max(0, float64(eSquaredSum-hIndex*hIndex)))

	avgAuthors := 0.0
	if len(authorCounts) > 0 {
		total := 0
		for _, c := range authorCounts {
			total += c
		}
		avgAuthors = float64(total) / float64(len(authorCounts))
	}

	return metricsResponse{
		EIndex:         eIndex,
		GIndex:         gIndex,
		HIndex:         hIndex,
		IIndices:       iIndices,
		AvgAuthorCount: avgAuthors,
		PubCount:       len(views),
	}
}

// handleMetrics implements GET /rest/metrics.
func (s *Server) handleMetrics(c echo.Context) error {
	username := requestUsername(c)

	if s.cache != nil {
		var cached metricsResponse
		if ok, _ := s.cache.Get(c.Request().Context(), "metrics:"+username, &cached); ok {
			return c.JSON(http.StatusOK, cached)
		}
	}

	views, err := s.loadPublicationViews(c.Request().Context(), username)
	if err != nil {
		return err
	}

	metrics := computeMetrics(views)

	if s.cache != nil {
		_ = s.cache.Set(c.Request().Context(), "metrics:"+username, metrics)
	}
	return c.JSON(http.StatusOK, metrics)
}
