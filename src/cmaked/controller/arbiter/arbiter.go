// Package arbiter decides which open folder is the active one.
package arbiter

import (
	"context"
	"sync"

	foldersession "github.com/uber/cmake-lsp/src/cmaked/controller/folder-session"
	"github.com/uber/cmake-lsp/src/cmaked/controller/registry"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
	cmakeerrors "github.com/uber/cmake-lsp/src/cmaked/internal/errors"
	"github.com/uber/cmake-lsp/src/cmaked/internal/event"
	"github.com/uber/cmake-lsp/src/cmaked/repository/state"
	"go.uber.org/zap"
)

// State summarizes how many folders are open.
type State int

const (
	// StateUnset means no folder is open and no folder is active.
	StateUnset State = iota
	// StateSingle means exactly one folder is open, and it is active.
	StateSingle
	// StateMulti means several folders are open and one of them is active.
	StateMulti
)

func (s State) String() string {
	switch s {
	case StateSingle:
		return "single"
	case StateMulti:
		return "multi"
	default:
		return "unset"
	}
}

// Params configure an Arbiter.
type Params struct {
	Registry *registry.Registry
	State    state.Repository
	// Workspace identifies the persisted state of this workspace.
	Workspace string
	// Persisted is the explicit choice restored from an earlier run, if any.
	Persisted  entity.FolderKey
	AutoSelect bool
	Logger     *zap.SugaredLogger
}

// Arbiter tracks the single active session of a workspace. It is the only writer of the active folder,
// which always names a folder open in the registry.
type Arbiter struct {
	registry  *registry.Registry
	state     state.Repository
	workspace string
	logger    *zap.SugaredLogger

	// transitionMu is held while the active session and its forwarded subscriptions are replaced.
	transitionMu sync.Mutex
	activeSubs   *event.Disposables

	mu          sync.Mutex
	active      *foldersession.Session
	explicit    entity.FolderKey
	autoSelect  bool
	lastFocused string

	activeChanged event.Emitter[*foldersession.Session]
	statusChanged event.Emitter[*entity.Status]
	subscriptions event.Disposables
}

// New creates an Arbiter and subscribes it to the registry. It must be created before any folder is added.
func New(p Params) *Arbiter {
	a := &Arbiter{
		registry:   p.Registry,
		state:      p.State,
		workspace:  p.Workspace,
		logger:     p.Logger.With("component", "arbiter"),
		explicit:   p.Persisted,
		autoSelect: p.AutoSelect,
		activeSubs: &event.Disposables{},
	}
	a.subscriptions.Add(
		p.Registry.Added().Subscribe(event.FireLate, a.onAdded),
		p.Registry.Removed().Subscribe(event.FireLate, a.onRemoved),
	)
	a.activeChanged.Fire(nil)
	a.statusChanged.Fire(nil)
	return a
}

// State returns the state derived from the number of open folders.
func (a *Arbiter) State() State {
	switch n := a.registry.Len(); {
	case n == 0:
		return StateUnset
	case n == 1:
		return StateSingle
	default:
		return StateMulti
	}
}

// ActiveSession returns the active session. A session already removed from the registry is never returned,
// even while the removal is still being handled.
func (a *Arbiter) ActiveSession() (*foldersession.Session, bool) {
	a.mu.Lock()
	active := a.active
	a.mu.Unlock()

	if active == nil {
		return nil, false
	}
	if s, ok := a.registry.Get(active.Key()); !ok || s != active {
		return nil, false
	}
	return active, true
}

// SetActive makes key the active folder and persists the choice.
func (a *Arbiter) SetActive(ctx context.Context, key entity.FolderKey) error {
	s, ok := a.registry.Get(key)
	if !ok {
		return &cmakeerrors.FolderNotFoundError{Folder: key.String()}
	}

	a.mu.Lock()
	a.explicit = key
	a.mu.Unlock()

	a.assign(s)
	if a.state != nil {
		if err := a.state.SaveActiveFolder(ctx, a.workspace, key); err != nil {
			a.logger.Warnw("persisting active folder", "folder", key, "error", err)
		}
	}
	return nil
}

// FocusChanged records the document the user is editing and, with auto-select on,
// activates the innermost open folder containing it.
func (a *Arbiter) FocusChanged(ctx context.Context, path string) {
	a.mu.Lock()
	a.lastFocused = path
	autoSelect := a.autoSelect
	var current entity.FolderKey
	if a.active != nil {
		current = a.active.Key()
	}
	a.mu.Unlock()

	if !autoSelect {
		return
	}
	s, ok := a.containing(path)
	if !ok || s.Key() == current {
		return
	}
	a.logger.Infow("active folder follows focus", "folder", s.Key(), "document", path)
	a.assign(s)
}

// SetAutoSelect turns following the focused document on or off.
func (a *Arbiter) SetAutoSelect(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.autoSelect = enabled
}

// ActiveChanged fires with the new active session, or nil when none is active.
// New subscribers receive the current value.
func (a *Arbiter) ActiveChanged() event.Source[*foldersession.Session] {
	return &a.activeChanged
}

// StatusChanged forwards the status of whichever session is active, or nil when none is.
// New subscribers receive the current value.
func (a *Arbiter) StatusChanged() event.Source[*entity.Status] {
	return &a.statusChanged
}

// Dispose releases the registry and session subscriptions.
func (a *Arbiter) Dispose() {
	a.subscriptions.Dispose()

	a.transitionMu.Lock()
	defer a.transitionMu.Unlock()
	a.activeSubs.Dispose()
}

func (a *Arbiter) onAdded(s *foldersession.Session) {
	a.mu.Lock()
	unset := a.active == nil
	explicit := a.explicit == s.Key()
	focused := a.autoSelect && a.lastFocused != "" && s.Key().Contains(a.lastFocused)
	a.mu.Unlock()

	switch {
	case unset, explicit:
		a.assign(s)
	case focused:
		if inner, ok := a.containing(a.lastFocusedPath()); ok && inner.Key() == s.Key() {
			a.assign(s)
		}
	}
}

func (a *Arbiter) onRemoved(key entity.FolderKey) {
	a.mu.Lock()
	wasActive := a.active != nil && a.active.Key() == key
	a.mu.Unlock()
	if !wasActive {
		return
	}

	sessions := a.registry.Sessions()
	if len(sessions) == 0 {
		a.assign(nil)
		return
	}
	a.assign(sessions[0])
}

// assign replaces the active session and re-wires status forwarding.
func (a *Arbiter) assign(s *foldersession.Session) {
	a.transitionMu.Lock()
	defer a.transitionMu.Unlock()

	a.activeSubs.Dispose()
	a.activeSubs = &event.Disposables{}

	a.mu.Lock()
	a.active = s
	a.mu.Unlock()

	if s == nil {
		a.logger.Infow("no active folder")
		a.activeChanged.Fire(nil)
		a.statusChanged.Fire(nil)
		return
	}

	a.logger.Infow("active folder changed", "folder", s.Key())
	a.activeChanged.Fire(s)
	a.activeSubs.Add(s.StatusChanged().Subscribe(event.FireNow, func(status entity.Status) {
		if current, ok := a.ActiveSession(); ok && current == s {
			a.statusChanged.Fire(&status)
		}
	}))
}

// containing returns the open folder with the longest path containing path.
func (a *Arbiter) containing(path string) (*foldersession.Session, bool) {
	var best *foldersession.Session
	for _, s := range a.registry.Sessions() {
		if !s.Key().Contains(path) {
			continue
		}
		if best == nil || len(s.Key()) > len(best.Key()) {
			best = s
		}
	}
	return best, best != nil
}

func (a *Arbiter) lastFocusedPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastFocused
}
