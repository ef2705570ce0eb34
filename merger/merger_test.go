package merger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citewatch.io/common"
	"citewatch.io/db"
	"citewatch.io/model"
)

func TestSimilarityMatchesNormalizedTitles(t *testing.T) {
	a := model.Publication{Name: "Attention Is All You Need"}
	b := model.Publication{Name: "attention is all you need"}
	assert.Equal(t, 1.0, similarity(a, b))

	c := model.Publication{Name: "Attention Is All You Need!"}
	assert.Equal(t, 1.0, similarity(a, c))

	d := model.Publication{Name: "Something Entirely Different"}
	assert.Equal(t, 0.0, similarity(a, d))
}

func TestMergeCheckIndexesBothDirections(t *testing.T) {
	mc := NewMergeCheck([]model.Merge{
		{SourceA: "scholar", PubA: "pub/1", SourceB: "aminer", PubB: "pub/2", Similarity: 1.0},
	})

	related := mc.GetRelated("scholar", "pub/1")
	require.Len(t, related, 1)
	assert.Equal(t, "aminer", related[0].Source)
	assert.Equal(t, "pub/2", related[0].Path)

	related = mc.GetRelated("aminer", "pub/2")
	require.Len(t, related, 1)
	assert.Equal(t, "scholar", related[0].Source)
}

func TestMergeCheckReturnsEmptyForUnknownPublication(t *testing.T) {
	mc := NewMergeCheck(nil)
	assert.Empty(t, mc.GetRelated("scholar", "pub/unknown"))
}

type fakeStore struct {
	db.Store
	usernames  []string
	pubs       map[string]map[string][]model.Publication
	saved      map[string][]model.Merge
}

func (f *fakeStore) Usernames(ctx context.Context) ([]string, error) {
	return f.usernames, nil
}

func (f *fakeStore) GetSourcePublications(ctx context.Context, owner, source string) ([]model.Publication, error) {
	return f.pubs[owner][source], nil
}

func (f *fakeStore) SaveMerges(ctx context.Context, owner string, merges []model.Merge) error {
	if f.saved == nil {
		f.saved = make(map[string][]model.Merge)
	}
	f.saved[owner] = merges
	return nil
}

func newTestLogger() *common.ContextLogger {
	return common.NewContextLogger(common.NewLogger(common.DefaultLoggerConfig()), nil)
}

func TestMergeUserFindsCrossSourceMatches(t *testing.T) {
	store := &fakeStore{
		usernames: []string{"alice"},
		pubs: map[string]map[string][]model.Publication{
			"alice": {
				"scholar": {{Path: "pub/1", Name: "Attention Is All You Need"}},
				"aminer":  {{Path: "pub/2", Name: "attention is all you need"}},
			},
		},
	}

	m := New(store, []string{"scholar", "aminer"}, newTestLogger())
	require.NoError(t, m.mergeUser(context.Background(), "alice"))

	require.Len(t, store.saved["alice"], 1)
	merge := store.saved["alice"][0]
	// New sorts namespaces, so aminer is SourceA and its pub/2 is PubA.
	assert.Equal(t, "pub/2", merge.PubA)
	assert.Equal(t, "pub/1", merge.PubB)
	assert.Equal(t, 1.0, merge.Similarity)
}

func TestForceMergeReturnsFalseWhileRunning(t *testing.T) {
	m := New(&fakeStore{}, nil, newTestLogger())
	m.setRunning(true)
	assert.False(t, m.ForceMerge())
	m.setRunning(false)
	assert.True(t, m.ForceMerge())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	m := New(&fakeStore{}, nil, newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
