// Package merger periodically (or on demand) cross-references publications
// recorded under different sources for the same owner, recording pairs
// that look like the same paper so the REST façade can collapse them.
package merger

import (
	"context"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"citewatch.io/common"
	"citewatch.io/db"
	"citewatch.io/model"
)

// autoDelay is how long a completed merge pass waits before running again,
// absent an earlier force-merge request.
const autoDelay = 24 * time.Hour

// similarityThreshold is the minimum token-normalized title similarity two
// publications need to be recorded as a merge candidate.
const similarityThreshold = 0.9

var wordsRe = regexp.MustCompile(`\w+`)

// similarity scores how alike two publication titles are. The heuristic is
// deliberately blunt: normalize to lowercase word tokens and require an
// exact match. It tolerates punctuation and casing differences between
// sources while staying cheap enough to run over every pair.
func similarity(a, b model.Publication) float64 {
	wordsA := wordsRe.FindAllString(strings.ToLower(a.Name), -1)
	wordsB := wordsRe.FindAllString(strings.ToLower(b.Name), -1)
	if len(wordsA) != len(wordsB) {
		return 0
	}
	for i := range wordsA {
		if wordsA[i] != wordsB[i] {
			return 0
		}
	}
	return 1.0
}

// MergeCheck answers "what is this publication merged with?" in O(1) after
// an O(n) build, used by the REST façade to collapse duplicate entries
// when listing a user's publications.
type MergeCheck struct {
	relations map[string]map[string][]relatedPublication
}

type relatedPublication struct {
	Source string
	Path   string
}

// NewMergeCheck indexes merges by both directions, so a lookup on either
// side of a pair finds the other.
func NewMergeCheck(merges []model.Merge) *MergeCheck {
	mc := &MergeCheck{relations: make(map[string]map[string][]relatedPublication)}
	add := func(source, path, relatedSource, relatedPath string) {
		if mc.relations[source] == nil {
			mc.relations[source] = make(map[string][]relatedPublication)
		}
		mc.relations[source][path] = append(mc.relations[source][path], relatedPublication{relatedSource, relatedPath})
	}
	for _, m := range merges {
		add(m.SourceA, m.PubA, m.SourceB, m.PubB)
		add(m.SourceB, m.PubB, m.SourceA, m.PubA)
	}
	return mc
}

// GetRelated returns every publication known to be the same work as
// (source, path), across other sources.
func (mc *MergeCheck) GetRelated(source, path string) []relatedPublication {
	return mc.relations[source][path]
}

// Merger owns the single periodic-merge goroutine plus the force-merge
// guard that keeps a second pass from starting while one is in flight.
type Merger struct {
	store      db.Store
	namespaces []string
	log        *common.ContextLogger

	mu       sync.Mutex
	running  bool
	forceRun chan struct{}
}

// New builds a Merger over the given source namespaces (typically every
// namespace the adapter registry knows about). namespaces is sorted here so
// mergeUser's i<j loop always yields sourceA < sourceB regardless of the
// order the caller passed in.
func New(store db.Store, namespaces []string, log *common.ContextLogger) *Merger {
	sorted := append([]string(nil), namespaces...)
	sort.Strings(sorted)
	return &Merger{
		store:      store,
		namespaces: sorted,
		log:        log,
		forceRun:   make(chan struct{}, 1),
	}
}

// ForceMerge requests an immediate merge pass, returning false if one is
// already running (matching the reference's single-flight guard rather
// than queuing a second request).
func (m *Merger) ForceMerge() bool {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if running {
		return false
	}

	select {
	case m.forceRun <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run executes the periodic merge loop until ctx is cancelled.
func (m *Merger) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		m.log.Info("merging data")
		m.setRunning(true)
		m.runPassRecovering(ctx)
		m.setRunning(false)
		m.log.Info("merged data")

		// Drain any force-merge request that arrived mid-pass so it
		// doesn't immediately re-trigger another full cycle.
		select {
		case <-m.forceRun:
		default:
		}

		timer := time.NewTimer(autoDelay)
		select {
		case <-m.forceRun:
			timer.Stop()
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil
		}
	}
}

// runPassRecovering runs one mergeAll pass, recovering and logging any
// panic so a single bad record can't take down the merge loop's goroutine.
func (m *Merger) runPassRecovering(ctx context.Context) {
	defer common.LogPanic(m.log)
	if err := m.mergeAll(ctx); err != nil {
		m.log.WithError(err).Error("merge pass failed")
	}
}

func (m *Merger) setRunning(running bool) {
	m.mu.Lock()
	m.running = running
	m.mu.Unlock()
}

func (m *Merger) mergeAll(ctx context.Context) error {
	usernames, err := m.store.Usernames(ctx)
	if err != nil {
		return err
	}
	for _, username := range usernames {
		userLog := m.log.WithField("username", username)
		if err := common.LogOperation(userLog, "merge_user", func() error {
			return m.mergeUser(ctx, username)
		}); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

func (m *Merger) mergeUser(ctx context.Context, username string) error {
	var result []model.Merge

	for i := 0; i < len(m.namespaces); i++ {
		for j := i + 1; j < len(m.namespaces); j++ {
			sourceA, sourceB := m.namespaces[i], m.namespaces[j]

			pubsA, err := m.store.GetSourcePublications(ctx, username, sourceA)
			if err != nil {
				return err
			}
			pubsB, err := m.store.GetSourcePublications(ctx, username, sourceB)
			if err != nil {
				return err
			}

			for _, pubA := range pubsA {
				for _, pubB := range pubsB {
					if sim := similarity(pubA, pubB); sim >= similarityThreshold {
						result = append(result, model.Merge{
							Owner:      username,
							SourceA:    sourceA,
							SourceB:    sourceB,
							PubA:       pubA.Path,
							PubB:       pubB.Path,
							Similarity: sim,
						})
					}

					// Yield between every pair so a large catalog doesn't
					// block the REST façade or the scheduler for the
					// whole pass.
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
						runtime.Gosched()
					}
				}
			}
		}
	}

	return m.store.SaveMerges(ctx, username, result)
}
