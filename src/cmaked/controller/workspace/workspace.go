// Package workspace owns the folder sessions of one connected client and the components built on them.
package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/uber-go/tally"
	"github.com/uber/cmake-lsp/src/cmaked/controller/arbiter"
	"github.com/uber/cmake-lsp/src/cmaked/controller/dispatcher"
	foldersession "github.com/uber/cmake-lsp/src/cmaked/controller/folder-session"
	"github.com/uber/cmake-lsp/src/cmaked/controller/kits"
	"github.com/uber/cmake-lsp/src/cmaked/controller/propagation"
	"github.com/uber/cmake-lsp/src/cmaked/controller/registry"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
	ideclient "github.com/uber/cmake-lsp/src/cmaked/gateway/ide-client"
	"github.com/uber/cmake-lsp/src/cmaked/internal/clock"
	cmakeerrors "github.com/uber/cmake-lsp/src/cmaked/internal/errors"
	"github.com/uber/cmake-lsp/src/cmaked/internal/event"
	"github.com/uber/cmake-lsp/src/cmaked/internal/fs"
	"github.com/uber/cmake-lsp/src/cmaked/repository/state"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	_configKeyAutoSelect     = "workspace.autoSelectActiveFolder"
	_configKeyCoalesceMillis = "workspace.codeModelCoalesceMillis"

	_defaultCoalesceMillis = 100
)

// Module is the Fx module for this package.
var Module = fx.Provide(NewFactory)

// Factory creates one Workspace per client connection.
type Factory interface {
	// New creates the workspace of client id rooted at root. The caller must Dispose it.
	New(ctx context.Context, id uuid.UUID, root string) (*Workspace, error)
}

// Params define the dependencies shared by every Workspace.
type Params struct {
	fx.In

	Config     config.Provider
	Sessions   foldersession.Factory
	Kits       kits.Controller
	State      state.Repository
	IdeGateway ideclient.Gateway
	FS         fs.FileSystem
	Clock      clock.Clock
	Logger     *zap.SugaredLogger
	Stats      tally.Scope
}

type factory struct {
	sessions   foldersession.Factory
	kits       kits.Controller
	state      state.Repository
	ideGateway ideclient.Gateway
	fs         fs.FileSystem
	clock      clock.Clock
	logger     *zap.SugaredLogger
	stats      tally.Scope

	autoSelect     bool
	coalesceWindow time.Duration
}

// NewFactory reads the workspace settings and returns a Factory.
func NewFactory(p Params) (Factory, error) {
	f := &factory{
		sessions:   p.Sessions,
		kits:       p.Kits,
		state:      p.State,
		ideGateway: p.IdeGateway,
		fs:         p.FS,
		clock:      p.Clock,
		logger:     p.Logger,
		stats:      p.Stats,
		autoSelect: true,
	}
	if err := p.Config.Get(_configKeyAutoSelect).Populate(&f.autoSelect); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyAutoSelect, err)
	}
	millis := _defaultCoalesceMillis
	if err := p.Config.Get(_configKeyCoalesceMillis).Populate(&millis); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyCoalesceMillis, err)
	}
	f.coalesceWindow = time.Duration(millis) * time.Millisecond
	return f, nil
}

func (f *factory) New(ctx context.Context, id uuid.UUID, root string) (*Workspace, error) {
	logger := f.logger.With("client", id.String(), "workspace", root)

	persisted, err := f.state.Load(ctx, root)
	if err != nil {
		logger.Warnw("workspace state unavailable", "error", err)
	}

	w := &Workspace{
		root:       root,
		clientCtx:  context.WithValue(context.Background(), entity.ClientContextKey, id),
		kits:       f.kits,
		state:      f.state,
		ideGateway: f.ideGateway,
		logger:     logger,
		persisted:  persisted,
		folderSubs: make(map[entity.FolderKey]*event.Disposables),
	}
	w.registry = registry.New(f.sessions, f.stats)

	// Kits are restored before any other component sees the session.
	w.subscriptions.Add(
		w.registry.Added().Subscribe(event.FireLate, w.onAdded),
		w.registry.Removed().Subscribe(event.FireLate, w.onRemoved),
	)
	w.propagation = propagation.New(propagation.Params{
		Registry: w.registry,
		FS:       f.fs,
		Clock:    f.clock,
		Window:   f.coalesceWindow,
		Logger:   logger,
		Stats:    f.stats,
	})
	w.arbiter = arbiter.New(arbiter.Params{
		Registry:   w.registry,
		State:      f.state,
		Workspace:  root,
		Persisted:  persisted.ActiveFolder,
		AutoSelect: f.autoSelect,
		Logger:     logger,
	})
	w.dispatcher = dispatcher.New(dispatcher.Params{
		Registry: w.registry,
		Active:   w.arbiter,
		Kits:     f.kits,
		Logger:   logger,
		Stats:    f.stats,
	})
	w.commands = w.commandTable()

	w.subscriptions.Add(
		w.arbiter.StatusChanged().Subscribe(event.FireNow, w.publishStatus),
		w.propagation.OutlineChanged().Subscribe(event.FireLate, w.publishOutline),
		w.propagation.NavigationChanged().Subscribe(event.FireLate, w.publishNavigation),
		w.propagation.CacheFailed().Subscribe(event.FireLate, w.reportCacheFailure),
		f.kits.Changed().Subscribe(event.FireLate, w.refreshKits),
	)
	return w, nil
}

// Workspace is the context object of one client: its open folders, the active folder,
// command dispatch and the derived views published to the client.
type Workspace struct {
	root string
	// clientCtx addresses notifications sent outside of a request.
	clientCtx  context.Context
	kits       kits.Controller
	state      state.Repository
	ideGateway ideclient.Gateway
	logger     *zap.SugaredLogger
	persisted  entity.WorkspaceState

	registry    *registry.Registry
	arbiter     *arbiter.Arbiter
	dispatcher  *dispatcher.Dispatcher
	propagation *propagation.Propagation
	commands    map[string]command

	subscriptions event.Disposables

	mu         sync.Mutex
	folderSubs map[entity.FolderKey]*event.Disposables
	disposed   bool
}

// Root returns the workspace identity used for persisted state.
func (w *Workspace) Root() string {
	return w.root
}

// AddFolder opens a session for key.
func (w *Workspace) AddFolder(ctx context.Context, key entity.FolderKey) error {
	_, err := w.registry.Add(ctx, key)
	return err
}

// RemoveFolder closes the session of key. Unknown folders are ignored.
func (w *Workspace) RemoveFolder(ctx context.Context, key entity.FolderKey) error {
	return w.registry.Remove(ctx, key)
}

// Folders returns the open folders in the order they were added.
func (w *Workspace) Folders() []entity.FolderKey {
	return w.registry.Keys()
}

// ActiveFolder returns the active folder, if any.
func (w *Workspace) ActiveFolder() (entity.FolderKey, bool) {
	s, ok := w.arbiter.ActiveSession()
	if !ok {
		return "", false
	}
	return s.Key(), true
}

// FocusChanged records the document the user is looking at.
func (w *Workspace) FocusChanged(ctx context.Context, path string) {
	w.arbiter.FocusChanged(ctx, path)
}

// SetAutoSelect controls whether the active folder follows the focused document.
func (w *Workspace) SetAutoSelect(enabled bool) {
	w.arbiter.SetAutoSelect(enabled)
}

// Dispose closes every session and releases all subscriptions. Only the first call has an effect.
func (w *Workspace) Dispose(ctx context.Context) error {
	w.mu.Lock()
	if w.disposed {
		w.mu.Unlock()
		return nil
	}
	w.disposed = true
	w.mu.Unlock()

	w.subscriptions.Dispose()
	w.propagation.Dispose()
	w.arbiter.Dispose()
	err := w.registry.Dispose(ctx)

	w.mu.Lock()
	for key, subs := range w.folderSubs {
		subs.Dispose()
		delete(w.folderSubs, key)
	}
	w.mu.Unlock()

	w.logger.Infow("workspace disposed")
	return err
}

func (w *Workspace) onAdded(s *foldersession.Session) {
	key := s.Key()
	if name, ok := w.persisted.FolderKits[key]; ok {
		if kit, ok := w.lookupKit(name); ok {
			s.SetKit(w.clientCtx, kit)
		} else {
			w.logger.Infow("persisted kit no longer available", "folder", key, "kit", name)
		}
	}

	subs := &event.Disposables{}
	subs.Add(
		s.KitChanged().Subscribe(event.FireLate, func(kit entity.Kit) {
			if err := w.state.SaveFolderKit(w.clientCtx, w.root, key, kit.Name); err != nil {
				w.logger.Warnw("persisting folder kit", "folder", key, "error", err)
			}
		}),
		s.TestResultsChanged().Subscribe(event.FireLate, func(results entity.TestResults) {
			if err := w.ideGateway.PublishTestResults(w.clientCtx, key, results); err != nil {
				w.logger.Warnw("publishing test results", "folder", key, "error", err)
			}
		}),
	)

	w.mu.Lock()
	w.folderSubs[key] = subs
	w.mu.Unlock()
}

func (w *Workspace) onRemoved(key entity.FolderKey) {
	w.mu.Lock()
	subs, ok := w.folderSubs[key]
	delete(w.folderSubs, key)
	w.mu.Unlock()
	if ok {
		subs.Dispose()
	}
}

// lookupKit finds name in the catalog, scanning once when it is not known yet.
func (w *Workspace) lookupKit(name string) (entity.Kit, bool) {
	if kit, ok := w.kits.Lookup(name); ok {
		return kit, true
	}
	if _, err := w.kits.ScanForKits(w.clientCtx); err != nil {
		w.logger.Warnw("kit scan failed", "error", err)
	}
	return w.kits.Lookup(name)
}

// refreshKits applies edits of a kit definition to the sessions using it.
func (w *Workspace) refreshKits(available []entity.Kit) {
	byName := make(map[string]entity.Kit, len(available))
	for _, kit := range available {
		byName[kit.Name] = kit
	}
	for _, s := range w.registry.Sessions() {
		current, ok := s.Kit()
		if !ok {
			continue
		}
		if updated, ok := byName[current.Name]; ok && !updated.Equal(current) {
			w.logger.Infow("kit definition changed", "folder", s.Key(), "kit", current.Name)
			s.SetKit(w.clientCtx, updated)
		}
	}
}

func (w *Workspace) publishStatus(status *entity.Status) {
	if err := w.ideGateway.PublishStatus(w.clientCtx, status); err != nil {
		w.logger.Warnw("publishing status", "error", err)
	}
}

func (w *Workspace) publishOutline(entry entity.OutlineEntry) {
	if err := w.ideGateway.PublishOutline(w.clientCtx, entry); err != nil {
		w.logger.Warnw("publishing outline", "folder", entry.Folder, "error", err)
	}
}

func (w *Workspace) publishNavigation(data entity.NavigationData) {
	if err := w.ideGateway.PublishNavigationData(w.clientCtx, data); err != nil {
		w.logger.Warnw("publishing navigation data", "folder", data.Folder, "error", err)
	}
}

func (w *Workspace) reportCacheFailure(cacheErr *cmakeerrors.CacheOpenError) {
	err := w.ideGateway.ShowMessage(w.clientCtx, &protocol.ShowMessageParams{
		Type:    protocol.MessageTypeWarning,
		Message: fmt.Sprintf("Code navigation data was not updated: %v", cacheErr),
	})
	if err != nil {
		w.logger.Warnw("reporting cache failure", "error", multierr.Append(cacheErr, err))
	}
}
