package adapters

import (
	"testing"

	"citewatch.io/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStateRoundTripsEveryDimensionsStage(t *testing.T) {
	a := NewDimensionsAdapter()

	stages := []Stage{
		&dimensionsFetchAuthors{},
		&dimensionsFetchPublications{KnownIDs: []string{"a", "b"}},
		&dimensionsFetchCitations{MissingIDs: []string{"c"}},
	}

	for _, stage := range stages {
		raw, err := EncodeTaskState(stage, 0)
		require.NoError(t, err)

		decoded, errorCount, err := DecodeTaskState(raw, a.InitialStage(), a.NewStage)
		require.NoError(t, err)
		assert.Equal(t, 0, errorCount)
		assert.Equal(t, stage, decoded)
	}
}

func TestTaskStateRoundTripsErrorCounter(t *testing.T) {
	a := NewDimensionsAdapter()
	stage := &dimensionsFetchPublications{KnownIDs: []string{"x"}}

	raw, err := EncodeTaskState(stage, 3)
	require.NoError(t, err)

	decoded, errorCount, err := DecodeTaskState(raw, a.InitialStage(), a.NewStage)
	require.NoError(t, err)
	assert.Equal(t, 3, errorCount)
	assert.Equal(t, stage, decoded)
}

func TestNilStageEncodesAsNull(t *testing.T) {
	raw, err := EncodeTaskState(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}

func TestDecodeTaskStateFallsBackToInitialStageWhenEmpty(t *testing.T) {
	a := NewDimensionsAdapter()
	decoded, errorCount, err := DecodeTaskState(nil, a.InitialStage(), a.NewStage)
	require.NoError(t, err)
	assert.Equal(t, 0, errorCount)
	assert.Equal(t, a.InitialStage(), decoded)
}

func TestFixAuthorsReplacesEmbeddedAuthorsWithPaths(t *testing.T) {
	author := model.Author{Path: model.AuthorPath("u1", "Jane Doe"), FullName: "Jane Doe", ID: "u1"}
	pub := model.Publication{Path: model.PublicationPath("p1", "A Paper")}
	EmbedAuthors(&pub, author)

	step := &Step{SelfPublications: []model.Publication{pub}}
	step.fixAuthors()

	require.Len(t, step.Authors, 1)
	assert.Equal(t, author.Path, step.Authors[0].Path)

	require.Len(t, step.SelfPublications[0].Authors, 1)
	assert.Equal(t, author.Path, step.SelfPublications[0].Authors[0])
	_, stillEmbedded := step.SelfPublications[0].Extra[embeddedAuthorsKey]
	assert.False(t, stillEmbedded)
}

func TestFixAuthorsDeduplicatesAcrossPublications(t *testing.T) {
	author := model.Author{Path: model.AuthorPath("u1", "Jane Doe"), FullName: "Jane Doe", ID: "u1"}
	pubA := model.Publication{Path: model.PublicationPath("p1", "Paper A")}
	pubB := model.Publication{Path: model.PublicationPath("p2", "Paper B")}
	EmbedAuthors(&pubA, author)
	EmbedAuthors(&pubB, author)

	step := &Step{
		SelfPublications: []model.Publication{pubA},
		Citations:        map[string][]model.Publication{"p1": {pubB}},
	}
	step.fixAuthors()

	assert.Len(t, step.Authors, 1)
}

func TestNormalizeYearDropsZero(t *testing.T) {
	zero := 0
	assert.Nil(t, normalizeYear(&zero))
	assert.Nil(t, normalizeYear(nil))

	y := 2020
	require.NotNil(t, normalizeYear(&y))
	assert.Equal(t, 2020, *normalizeYear(&y))
}
