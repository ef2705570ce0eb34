package scheduler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citewatch.io/adapters"
	"citewatch.io/auth"
	"citewatch.io/common"
	"citewatch.io/db"
	"citewatch.io/model"
)

// fakeStore implements db.Store with everything the scheduler touches
// backed by plain maps, and everything else stubbed out.
type fakeStore struct {
	mu      sync.Mutex
	sources []model.Source
	steps   []savedStep
	values  map[string]map[string]map[string]string
}

type savedStep struct {
	owner, key string
	step       *adapters.Step
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string]map[string]map[string]string)}
}

func (f *fakeStore) NextSourceTask(ctx context.Context) (*model.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sources) == 0 {
		return nil, db.ErrNotFound
	}
	best := 0
	for i, s := range f.sources {
		if s.Due < f.sources[best].Due {
			best = i
		}
	}
	src := f.sources[best]
	f.sources = append(f.sources[:best], f.sources[best+1:]...)
	return &src, nil
}

func (f *fakeStore) GetSourceValues(ctx context.Context, owner string) (map[string]map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[owner], nil
}

func (f *fakeStore) UpdateSourceValues(ctx context.Context, owner string, sources map[string]map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values[owner] == nil {
		f.values[owner] = make(map[string]map[string]string)
	}
	for k, v := range sources {
		f.values[owner][k] = v
	}
	return nil
}

func (f *fakeStore) SaveCrawlerStep(ctx context.Context, owner, key string, step *adapters.Step) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, savedStep{owner, key, step})
	return nil
}

func (f *fakeStore) SaveMerges(ctx context.Context, owner string, merges []model.Merge) error { return nil }
func (f *fakeStore) GetMerges(ctx context.Context, owner string) ([]model.Merge, error)       { return nil, nil }
func (f *fakeStore) GetSelfPublications(ctx context.Context, owner string) ([]model.Publication, error) {
	return nil, nil
}
func (f *fakeStore) GetSourcePublications(ctx context.Context, owner, source string) ([]model.Publication, error) {
	return nil, nil
}
func (f *fakeStore) CiteCount(ctx context.Context, owner, source, pubPath string) (int, error) {
	return 0, nil
}
func (f *fakeStore) ExportDataAsZip(ctx context.Context, owner string) ([]byte, error) { return nil, nil }
func (f *fakeStore) Usernames(ctx context.Context) ([]string, error)                   { return nil, nil }
func (f *fakeStore) Close()                                                            {}

func (f *fakeStore) CreateUser(u *auth.User) error                     { return nil }
func (f *fakeStore) GetUserByUsername(username string) (*auth.User, error) { return nil, db.ErrNotFound }
func (f *fakeStore) GetUserByToken(token string) (*auth.User, error)       { return nil, db.ErrNotFound }
func (f *fakeStore) UpdateUser(u *auth.User) error                     { return nil }
func (f *fakeStore) DeleteUser(username string) (bool, error)          { return false, nil }

var _ db.Store = (*fakeStore)(nil)

// stubStage/stubAdapter give the scheduler a minimal, deterministic adapter.
type stubStage struct{ idx int }

func (s *stubStage) StageIndex() int { return s.idx }

type stubAdapter struct{ namespace string }

func (a *stubAdapter) Namespace() string            { return a.namespace }
func (a *stubAdapter) Fields() map[string]string    { return map[string]string{"profile_url": "profile"} }
func (a *stubAdapter) ValidateField(key, value string) error {
	if key == "profile_url" && value == "bad" {
		return errors.New("invalid profile url")
	}
	return nil
}
func (a *stubAdapter) InitialStage() adapters.Stage { return &stubStage{} }
func (a *stubAdapter) NewStage(index int) adapters.Stage { return &stubStage{idx: index} }
func (a *stubAdapter) Step(ctx context.Context, client *http.Client, values map[string]string, stage adapters.Stage) (*adapters.Step, error) {
	return &adapters.Step{
		Delay: time.Hour,
		Stage: &stubStage{idx: 1},
		SelfPublications: []model.Publication{
			{Source: a.namespace, Path: "pub/x", Name: "A Paper"},
		},
	}, nil
}

func newTestScheduler(store db.Store, registry *adapters.Registry) *Scheduler {
	logger := common.NewContextLogger(common.NewLogger(common.DefaultLoggerConfig()), nil)
	return New(store, registry, &http.Client{}, logger)
}

func TestStepSourceStampsOwnerAndSaves(t *testing.T) {
	store := newFakeStore()
	registry := adapters.NewRegistry()
	registry.Register(&stubAdapter{namespace: "scholar"})

	sched := newTestScheduler(store, registry)
	sched.stepSource(context.Background(), "alice", "scholar", map[string]string{"profile_url": "x"}, nil)

	require.Len(t, store.steps, 1)
	saved := store.steps[0]
	assert.Equal(t, "alice", saved.owner)
	assert.Equal(t, "scholar", saved.key)
	require.Len(t, saved.step.SelfPublications, 1)
	assert.Equal(t, "alice", saved.step.SelfPublications[0].Owner)
}

func TestUpdateSourceFieldsRejectsInvalidValueAndKeepsOthers(t *testing.T) {
	store := newFakeStore()
	registry := adapters.NewRegistry()
	registry.Register(&stubAdapter{namespace: "scholar"})
	registry.Register(&stubAdapter{namespace: "aminer"})

	sched := newTestScheduler(store, registry)
	errs, err := sched.UpdateSourceFields(context.Background(), "alice", map[string]map[string]string{
		"scholar": {"profile_url": "bad"},
		"aminer":  {"profile_url": "https://example.com/b"},
	})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "scholar", errs[0].Source)
	assert.Equal(t, "https://example.com/b", store.values["alice"]["aminer"]["profile_url"])
	assert.NotContains(t, store.values["alice"], "scholar")
}

func TestUpdateSourceFieldsPersistsChangedValuesAndNotifies(t *testing.T) {
	store := newFakeStore()
	registry := adapters.NewRegistry()
	registry.Register(&stubAdapter{namespace: "scholar"})

	sched := newTestScheduler(store, registry)
	errs, err := sched.UpdateSourceFields(context.Background(), "alice", map[string]map[string]string{
		"scholar": {"profile_url": "https://example.com/a"},
	})
	require.NoError(t, err)
	require.Empty(t, errs)

	fields, err := sched.GetSourceFields(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", fields["scholar"]["profile_url"].Value)

	select {
	case <-sched.notify:
	default:
		t.Fatal("expected a pending notification after a changed field")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := newFakeStore()
	registry := adapters.NewRegistry()
	sched := newTestScheduler(store, registry)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
