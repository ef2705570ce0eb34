package adapters

import (
	"math/rand"
	"time"

	"citewatch.io/model"
)

// dueJitterPercent matches the reference step.py's ±5% jitter applied to
// every computed due time, which breaks thundering-herd synchronization
// across sources sharing the same delay.
const dueJitterPercent = 0.05

// ERRORDelays is the fixed exponential backoff ladder indexed by the
// consecutive-error counter: 1s, 10s, 1m, 10m, 1h, 24h.
var ERRORDelays = []time.Duration{
	1 * time.Second,
	10 * time.Second,
	1 * time.Minute,
	10 * time.Minute,
	1 * time.Hour,
	24 * time.Hour,
}

// FullCycleDelay is used when a stage graph completes and resets to the
// adapter's initial stage.
const FullCycleDelay = 7 * 24 * time.Hour

// Step is the value an adapter's Step function returns: how long until the
// next invocation, which stage to resume from (nil means "reset to initial
// stage with FullCycleDelay"), and the records harvested along the way.
type Step struct {
	Delay            time.Duration
	Stage            Stage
	Authors          []model.Author
	SelfPublications []model.Publication
	Citations        map[string][]model.Publication
	Error            int
}

// fixAuthors walks SelfPublications and every Citations slice, replacing any
// publication's embedded author records with bare path references collected
// into Authors, deduplicated by path. Adapters are allowed to populate
// Publication.Authors with embedded model.Author values for convenience (by
// stashing them in Extra under embeddedAuthorsKey below); this normalizes that
// into the at-rest representation the spec mandates: paths only.
func (s *Step) fixAuthors() {
	seen := make(map[string]bool, len(s.Authors))
	for _, a := range s.Authors {
		seen[a.Path] = true
	}

	collect := func(pub *model.Publication) {
		embedded, _ := pub.Extra[embeddedAuthorsKey].([]model.Author)
		if len(embedded) == 0 {
			return
		}
		paths := make([]string, 0, len(embedded)+len(pub.Authors))
		paths = append(paths, pub.Authors...)
		for _, a := range embedded {
			if !seen[a.Path] {
				seen[a.Path] = true
				s.Authors = append(s.Authors, a)
			}
			paths = append(paths, a.Path)
		}
		pub.Authors = dedupe(paths)
		delete(pub.Extra, embeddedAuthorsKey)
	}

	for i := range s.SelfPublications {
		collect(&s.SelfPublications[i])
	}
	for pubPath, cites := range s.Citations {
		for i := range cites {
			collect(&cites[i])
		}
		s.Citations[pubPath] = cites
	}
}

// Due computes the wall-clock unix-second time this step's delay is next
// eligible to run, with uniform jitter in [-5%, +5%] of the delay.
func (s *Step) Due(now time.Time) int64 {
	jitterRange := float64(s.Delay) * dueJitterPercent
	jitter := time.Duration((rand.Float64()*2 - 1) * jitterRange)
	return now.Add(s.Delay).Add(jitter).Unix()
}

// embeddedAuthorsKey is the Extra map key an adapter may use to stash
// embedded model.Author values on a Publication before fixAuthors runs.
const embeddedAuthorsKey = "__embedded_authors"

// EmbedAuthors attaches embedded author records to a publication for later
// normalization by fixAuthors, mirroring the reference adapters that placed
// full Author objects directly in a publication's authors slot.
func EmbedAuthors(pub *model.Publication, authors ...model.Author) {
	if pub.Extra == nil {
		pub.Extra = make(map[string]any)
	}
	existing, _ := pub.Extra[embeddedAuthorsKey].([]model.Author)
	pub.Extra[embeddedAuthorsKey] = append(existing, authors...)
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
