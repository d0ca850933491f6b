package dashboard

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/lcviewer/internal/monitoring"
	"github.com/banshee-data/lcviewer/internal/timeutil"
)

// BuildFunc constructs the dashboard of one object.
type BuildFunc func(ctx context.Context, objectID int64) (*Dashboard, error)

type entry struct {
	ready chan struct{}
	d     *Dashboard
	err   error
}

// Registry keeps one dashboard per object. Concurrent requests for an
// object that is still loading wait for the same build; failed builds are
// forgotten so the next request retries.
type Registry struct {
	build        BuildFunc
	// BuildTimeout bounds each build; zero means no limit.
	BuildTimeout time.Duration

	mu      sync.Mutex
	entries map[int64]*entry
}

func NewRegistry(build BuildFunc) *Registry {
	return &Registry{build: build, entries: make(map[int64]*entry)}
}

// Get returns the dashboard of objectID, building it on first use. The
// build outlives ctx so that other waiters are not cancelled with the
// first caller; ctx only bounds how long this caller waits.
func (r *Registry) Get(ctx context.Context, objectID int64) (*Dashboard, error) {
	r.mu.Lock()
	e, ok := r.entries[objectID]
	if !ok {
		e = &entry{ready: make(chan struct{})}
		r.entries[objectID] = e
		go r.run(context.WithoutCancel(ctx), objectID, e)
	}
	r.mu.Unlock()

	select {
	case <-e.ready:
		return e.d, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) run(ctx context.Context, objectID int64, e *entry) {
	if r.BuildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.BuildTimeout)
		defer cancel()
	}
	e.d, e.err = r.build(ctx, objectID)
	if e.err != nil {
		r.mu.Lock()
		if r.entries[objectID] == e {
			delete(r.entries, objectID)
		}
		r.mu.Unlock()
		monitoring.Logf("dashboard: build of object %d failed: %v", objectID, e.err)
	}
	close(e.ready)
}

// Lookup returns a dashboard that has finished building.
func (r *Registry) Lookup(objectID int64) (*Dashboard, bool) {
	r.mu.Lock()
	e, ok := r.entries[objectID]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	select {
	case <-e.ready:
		return e.d, e.err == nil
	default:
		return nil, false
	}
}

// List returns the built dashboards, oldest first.
func (r *Registry) List() []*Dashboard {
	r.mu.Lock()
	var out []*Dashboard
	for _, e := range r.entries {
		select {
		case <-e.ready:
			if e.err == nil {
				out = append(out, e.d)
			}
		default:
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// Remove drops the dashboard of objectID.
func (r *Registry) Remove(objectID int64) {
	r.mu.Lock()
	delete(r.entries, objectID)
	r.mu.Unlock()
}

// idleSince is the later of the creation time and the last touch.
func idleSince(d *Dashboard) time.Time {
	if last := d.LastActive(); last.After(d.Created) {
		return last
	}
	return d.Created
}

// Expire drops built dashboards idle for longer than maxIdle at now and
// returns their object ids.
func (r *Registry) Expire(now time.Time, maxIdle time.Duration) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []int64
	for id, e := range r.entries {
		select {
		case <-e.ready:
		default:
			continue
		}
		if e.err == nil && now.Sub(idleSince(e.d)) > maxIdle {
			delete(r.entries, id)
			expired = append(expired, id)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })
	return expired
}

// RunExpiry calls Expire every interval until ctx is done.
func (r *Registry) RunExpiry(ctx context.Context, clock timeutil.Clock, interval, maxIdle time.Duration) {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			for _, id := range r.Expire(now, maxIdle) {
				monitoring.Logf("dashboard: expired object %d after %s idle", id, maxIdle)
			}
		}
	}
}
