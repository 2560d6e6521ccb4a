// Package registry tracks the open folder sessions of one workspace.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/uber-go/tally"
	foldersession "github.com/uber/cmake-lsp/src/cmaked/controller/folder-session"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
	cmakeerrors "github.com/uber/cmake-lsp/src/cmaked/internal/errors"
	"github.com/uber/cmake-lsp/src/cmaked/internal/event"
	"go.uber.org/multierr"
)

// Registry holds one Session per open folder, in the order folders were added.
// Added and Removed fire synchronously, in mutation order, after the registry reflects the change.
type Registry struct {
	sessions foldersession.Factory
	gauge    tally.Gauge

	// mutateMu serializes Add and Remove so events are delivered in mutation order.
	mutateMu sync.Mutex
	mu       sync.RWMutex
	byKey    map[entity.FolderKey]*foldersession.Session
	order    []entity.FolderKey

	added   event.Emitter[*foldersession.Session]
	removed event.Emitter[entity.FolderKey]
}

// New creates an empty Registry. The folders gauge is reported on stats.
func New(sessions foldersession.Factory, stats tally.Scope) *Registry {
	return &Registry{
		sessions: sessions,
		gauge:    stats.SubScope("registry").Gauge("folders"),
		byKey:    make(map[entity.FolderKey]*foldersession.Session),
	}
}

// Add opens a session for key.
func (r *Registry) Add(ctx context.Context, key entity.FolderKey) (*foldersession.Session, error) {
	r.mutateMu.Lock()
	defer r.mutateMu.Unlock()

	if _, ok := r.Get(key); ok {
		return nil, &cmakeerrors.DuplicateFolderError{Folder: key.String()}
	}

	s, err := r.sessions.New(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("creating session for %q: %w", key, err)
	}

	r.mu.Lock()
	r.byKey[key] = s
	r.order = append(r.order, key)
	r.gauge.Update(float64(len(r.order)))
	r.mu.Unlock()

	r.added.Fire(s)
	return s, nil
}

// Remove disposes the session of key. Removing a folder that is not open is a no-op.
func (r *Registry) Remove(ctx context.Context, key entity.FolderKey) error {
	r.mutateMu.Lock()
	defer r.mutateMu.Unlock()
	return r.remove(key)
}

// Get returns the session of key.
func (r *Registry) Get(key entity.FolderKey) (*foldersession.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byKey[key]
	return s, ok
}

// Sessions returns a snapshot of the open sessions in insertion order.
func (r *Registry) Sessions() []*foldersession.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*foldersession.Session, 0, len(r.order))
	for _, key := range r.order {
		result = append(result, r.byKey[key])
	}
	return result
}

// Keys returns the open folders in insertion order.
func (r *Registry) Keys() []entity.FolderKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]entity.FolderKey(nil), r.order...)
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Added fires with each new session, before Add returns.
func (r *Registry) Added() event.Source[*foldersession.Session] {
	return &r.added
}

// Removed fires with the key of each disposed session, once its running operation has returned.
func (r *Registry) Removed() event.Source[entity.FolderKey] {
	return &r.removed
}

// Dispose removes every session, in insertion order, and combines their disposal errors.
func (r *Registry) Dispose(ctx context.Context) error {
	r.mutateMu.Lock()
	defer r.mutateMu.Unlock()

	var err error
	for _, key := range r.Keys() {
		err = multierr.Append(err, r.remove(key))
	}
	return err
}

// remove must be called with mutateMu held.
func (r *Registry) remove(key entity.FolderKey) error {
	r.mu.Lock()
	s, ok := r.byKey[key]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.byKey, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	r.gauge.Update(float64(len(r.order)))
	r.mu.Unlock()

	err := s.Dispose()
	r.removed.Fire(key)
	if err != nil {
		return fmt.Errorf("disposing session for %q: %w", key, err)
	}
	return nil
}
