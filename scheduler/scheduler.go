// Package scheduler runs the single cooperative crawl loop: repeatedly pick
// the globally soonest-due source, sleep until it's due (or until woken by a
// field update), run its adapter for one step, and persist the result.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"citewatch.io/adapters"
	"citewatch.io/common"
	"citewatch.io/db"
)

// maxSleep bounds how long the loop ever blocks in one iteration, so newly
// registered sources are never starved behind a stale "no work" sleep.
const maxSleep = 60 * time.Second

// Scheduler drives exactly one goroutine: Run's loop. It holds no crawl
// state itself beyond the wake channel; everything durable lives in Store.
type Scheduler struct {
	store    db.Store
	registry *adapters.Registry
	client   *http.Client
	log      *common.ContextLogger

	notify chan struct{}
}

// New builds a Scheduler. client is expected to be the process-lifetime
// shared client from the http package.
func New(store db.Store, registry *adapters.Registry, client *http.Client, log *common.ContextLogger) *Scheduler {
	return &Scheduler{
		store:    store,
		registry: registry,
		client:   client,
		log:      log,
		notify:   make(chan struct{}, 1),
	}
}

// Notify wakes the crawl loop immediately, used after a source's field
// values change so the new configuration is picked up without waiting out
// whatever delay was previously scheduled.
func (s *Scheduler) Notify() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Run executes the crawl loop until ctx is cancelled. It never returns an
// error on ordinary cancellation; a step failure is logged and the loop
// continues onto the next source.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		source, err := s.store.NextSourceTask(ctx)
		if errors.Is(err, db.ErrNotFound) {
			if s.waitNotify(ctx, maxSleep) {
				continue
			}
			continue
		}
		if err != nil {
			s.log.WithError(err).Error("failed to load next source task")
			if s.waitNotify(ctx, maxSleep) {
				continue
			}
			continue
		}

		delay := time.Until(time.Unix(source.Due, 0))
		if delay > maxSleep {
			if s.waitNotify(ctx, maxSleep) {
				continue
			}
			continue
		}
		if delay > 0 && s.waitNotify(ctx, delay) {
			// Values changed underneath us; re-read next_source_task rather
			// than stepping on stale state.
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		s.stepSource(ctx, source.Owner, source.Key, source.Values, source.TaskJSON)
	}
}

func (s *Scheduler) stepSource(ctx context.Context, owner, key string, values map[string]string, taskJSON json.RawMessage) {
	defer common.LogPanic(s.log.WithField("owner", owner).WithField("source", key))

	a, ok := s.registry.Get(key)
	if !ok {
		s.log.WithField("source", key).Error("no adapter registered for source")
		return
	}

	step, err := adapters.Run(ctx, a, s.client, values, taskJSON)
	if err != nil {
		s.log.WithError(err).WithField("owner", owner).WithField("source", key).Error("crawl step failed")
		return
	}

	stampStep(owner, step)

	if err := s.store.SaveCrawlerStep(ctx, owner, key, step); err != nil {
		s.log.WithError(err).WithField("owner", owner).WithField("source", key).Error("failed to save crawler step")
		return
	}

	s.log.WithField("owner", owner).WithField("source", key).Debug("stepped source task")
}

// stampStep fills in the Owner field on every record a Step produced.
// Adapters are owner-agnostic by contract (they share the same stage graph
// regardless of which account is crawling), so the Scheduler is the one
// place that knows which user this step belongs to.
func stampStep(owner string, step *adapters.Step) {
	for i := range step.Authors {
		step.Authors[i].Owner = owner
	}
	for i := range step.SelfPublications {
		step.SelfPublications[i].Owner = owner
	}
	for citedPath, cites := range step.Citations {
		for i := range cites {
			cites[i].Owner = owner
		}
		step.Citations[citedPath] = cites
	}
}

// waitNotify blocks until delay elapses or Notify is called, whichever
// comes first, returning true only in the latter case. A zero or negative
// delay returns immediately without consuming a pending notification.
func (s *Scheduler) waitNotify(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return false
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-s.notify:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// SourceField describes one configurable field on a source, paired with
// the value the owner currently has set (if any), for display in the
// profile API.
type SourceField struct {
	Description string `json:"description"`
	Value       string `json:"value"`
}

// GetSourceFields returns, for every registered adapter, the current field
// values the given owner has configured (defaulting to "" when unset).
func (s *Scheduler) GetSourceFields(ctx context.Context, owner string) (map[string]map[string]SourceField, error) {
	values, err := s.store.GetSourceValues(ctx, owner)
	if err != nil {
		return nil, err
	}

	out := make(map[string]map[string]SourceField)
	for _, namespace := range s.registry.Namespaces() {
		a, _ := s.registry.Get(namespace)
		fields := make(map[string]SourceField)
		for key, desc := range a.Fields() {
			value := values[namespace][key]
			fields[key] = SourceField{Description: desc, Value: value}
		}
		out[namespace] = fields
	}
	return out, nil
}

// FieldError reports why a single submitted field value was rejected.
type FieldError struct {
	Source string `json:"source"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// UpdateSourceFields validates and persists field updates for owner, one
// namespace/key/value triple at a time. Unchanged values are skipped; any
// namespace that did change has its crawl state reset so the Scheduler
// picks it up on the very next iteration (via Notify).
func (s *Scheduler) UpdateSourceFields(ctx context.Context, owner string, sources map[string]map[string]string) ([]FieldError, error) {
	values, err := s.store.GetSourceValues(ctx, owner)
	if err != nil {
		return nil, err
	}

	var errs []FieldError
	changed := make(map[string]bool)

	for namespace, fields := range sources {
		a, ok := s.registry.Get(namespace)
		if !ok {
			errs = append(errs, FieldError{Source: namespace, Reason: "unknown source"})
			continue
		}

		for key, value := range fields {
			if values[namespace][key] == value {
				continue
			}

			if value != "" {
				if err := a.ValidateField(key, value); err != nil {
					errs = append(errs, FieldError{Source: namespace, Key: key, Reason: err.Error()})
					continue
				}
			}

			if values[namespace] == nil {
				if values == nil {
					values = make(map[string]map[string]string)
				}
				values[namespace] = make(map[string]string)
			}
			values[namespace][key] = value
			changed[namespace] = true
		}
	}

	toSave := make(map[string]map[string]string, len(changed))
	for namespace := range changed {
		toSave[namespace] = values[namespace]
	}

	if err := s.store.UpdateSourceValues(ctx, owner, toSave); err != nil {
		return nil, err
	}

	if len(changed) > 0 {
		s.Notify()
	}
	return errs, nil
}
