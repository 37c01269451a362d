package ml

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultOverlapThreshold is the minimum feature overlap ratio for auto-selection.
const DefaultOverlapThreshold = 0.5

// registrySnapshot is never mutated after publication.
type registrySnapshot struct {
	active   map[string]*ModelHandle
	versions map[string][]*ModelHandle // newest first, includes the active handle
}

// Registry holds trained model handles. Reads work on an immutable snapshot;
// writers serialize among themselves and publish a new snapshot atomically.
type Registry struct {
	writeMu   sync.Mutex
	snap      atomic.Pointer[registrySnapshot]
	threshold float64
	now       func() time.Time
}

// Candidate is an active handle together with its overlap with a feature set.
type Candidate struct {
	Handle       *ModelHandle `json:"handle"`
	Overlap      int          `json:"overlap"`
	OverlapRatio float64      `json:"overlap_ratio"`
}

// NewRegistry creates an empty registry. A threshold outside (0, 1] falls back
// to DefaultOverlapThreshold.
func NewRegistry(overlapThreshold float64) *Registry {
	if overlapThreshold <= 0 || overlapThreshold > 1 {
		overlapThreshold = DefaultOverlapThreshold
	}
	r := &Registry{threshold: overlapThreshold, now: time.Now}
	r.snap.Store(&registrySnapshot{
		active:   map[string]*ModelHandle{},
		versions: map[string][]*ModelHandle{},
	})
	return r
}

// OverlapThreshold returns the configured auto-selection threshold.
func (r *Registry) OverlapThreshold() float64 {
	return r.threshold
}

// Register adds h as the active handle of its family. Any other active handle
// of the family is deactivated first. Registering a version that already
// exists replaces it in place.
func (r *Registry) Register(h *ModelHandle) error {
	if err := h.Validate(); err != nil {
		return err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	incoming := h.clone()
	incoming.Active = true
	if incoming.RegisteredAt.IsZero() {
		incoming.RegisteredAt = r.now()
	}

	old := r.snap.Load()
	next := old.copyExcept(incoming.ID)

	var history []*ModelHandle
	replaced := false
	for _, v := range old.versions[incoming.ID] {
		if v.Version == incoming.Version {
			replaced = true
			continue
		}
		history = append(history, deactivated(v))
	}
	next.versions[incoming.ID] = append([]*ModelHandle{incoming}, history...)
	next.active[incoming.ID] = incoming
	r.snap.Store(next)

	ev := log.Info().
		Str("family", incoming.ID).
		Str("version", incoming.Version).
		Str("kind", string(incoming.Kind)).
		Int("features", len(incoming.FeatureColumns)).
		Bool("replaced", replaced)
	if prev, ok := old.active[incoming.ID]; ok && prev.Version != incoming.Version {
		ev = ev.Str("deactivated", prev.Version)
	}
	ev.Msg("Model registered")
	return nil
}

// Get returns a copy of the active handle for a family.
func (r *Registry) Get(familyID string) (*ModelHandle, error) {
	if h, ok := r.snap.Load().active[familyID]; ok {
		return h.clone(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrModelNotFound, familyID)
}

// ListActive returns every active handle sorted by family id.
func (r *Registry) ListActive() []*ModelHandle {
	snap := r.snap.Load()
	out := make([]*ModelHandle, 0, len(snap.active))
	for _, h := range snap.active {
		out = append(out, h.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of active handles.
func (r *Registry) Len() int {
	return len(r.snap.Load().active)
}

// Versions returns every known version of a family, newest first.
func (r *Registry) Versions(familyID string) ([]*ModelHandle, error) {
	vs, ok := r.snap.Load().versions[familyID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModelNotFound, familyID)
	}
	out := make([]*ModelHandle, len(vs))
	for i, v := range vs {
		out[i] = v.clone()
	}
	return out, nil
}

// Rollback reactivates the version registered just before the active one.
// The rolled-back version stays in the history, deactivated.
func (r *Registry) Rollback(familyID string) (*ModelHandle, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old := r.snap.Load()
	vs, ok := old.versions[familyID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModelNotFound, familyID)
	}

	current := -1
	for i, v := range vs {
		if v.Active {
			current = i
			break
		}
	}
	if current == -1 || current+1 >= len(vs) {
		return nil, fmt.Errorf("%w: family %q", ErrNoPreviousVersion, familyID)
	}

	next := old.copyExcept(familyID)
	history := make([]*ModelHandle, len(vs))
	for i, v := range vs {
		history[i] = deactivated(v)
	}
	prev := vs[current+1].clone()
	prev.Active = true
	history[current+1] = prev
	next.versions[familyID] = history
	next.active[familyID] = prev
	r.snap.Store(next)

	log.Warn().
		Str("family", familyID).
		Str("from", vs[current].Version).
		Str("to", prev.Version).
		Msg("Model rolled back")
	return prev.clone(), nil
}

// FindCandidates returns active handles whose feature overlap ratio with names
// reaches the threshold, best first: overlap ratio, then metric score, then id.
func (r *Registry) FindCandidates(names []string) []Candidate {
	supplied := make(map[string]struct{}, len(names))
	for _, n := range names {
		supplied[n] = struct{}{}
	}

	var out []Candidate
	for _, h := range r.snap.Load().active {
		overlap := 0
		for _, c := range h.FeatureColumns {
			if _, ok := supplied[c]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		ratio := float64(overlap) / float64(len(h.FeatureColumns))
		if ratio < r.threshold {
			continue
		}
		out = append(out, Candidate{Handle: h.clone(), Overlap: overlap, OverlapRatio: ratio})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.OverlapRatio != b.OverlapRatio {
			return a.OverlapRatio > b.OverlapRatio
		}
		if sa, sb := a.Handle.Score(), b.Handle.Score(); sa != sb {
			return sa > sb
		}
		return a.Handle.ID < b.Handle.ID
	})
	return out
}

func (s *registrySnapshot) copyExcept(familyID string) *registrySnapshot {
	next := &registrySnapshot{
		active:   make(map[string]*ModelHandle, len(s.active)+1),
		versions: make(map[string][]*ModelHandle, len(s.versions)+1),
	}
	for k, v := range s.active {
		if k != familyID {
			next.active[k] = v
		}
	}
	for k, v := range s.versions {
		if k != familyID {
			next.versions[k] = v
		}
	}
	return next
}

func deactivated(h *ModelHandle) *ModelHandle {
	if !h.Active {
		return h
	}
	c := h.clone()
	c.Active = false
	return c
}
