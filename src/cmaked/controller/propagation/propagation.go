// Package propagation turns session changes into outline and navigation updates.
package propagation

import (
	"bytes"
	"path/filepath"
	"sync"
	"time"

	"github.com/uber-go/tally"
	"github.com/uber/cmake-lsp/src/cmake-lib/cache"
	"github.com/uber/cmake-lsp/src/cmake-lib/model"
	foldersession "github.com/uber/cmake-lsp/src/cmaked/controller/folder-session"
	"github.com/uber/cmake-lsp/src/cmaked/controller/registry"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
	"github.com/uber/cmake-lsp/src/cmaked/internal/clock"
	cmakeerrors "github.com/uber/cmake-lsp/src/cmaked/internal/errors"
	"github.com/uber/cmake-lsp/src/cmaked/internal/event"
	"github.com/uber/cmake-lsp/src/cmaked/internal/fs"
	"github.com/uber/cmake-lsp/src/cmaked/mapper"
	"go.uber.org/zap"
)

const _cacheFile = "CMakeCache.txt"

// Params define the dependencies of a Propagation.
type Params struct {
	Registry *registry.Registry
	FS       fs.FileSystem
	Clock    clock.Clock
	// Window collapses notifications arriving closer together than this. Zero recomputes on every notification.
	Window time.Duration
	Logger *zap.SugaredLogger
	Stats  tally.Scope
}

// Propagation keeps the outline and navigation views of every open folder in line with its latest configure.
type Propagation struct {
	fs     fs.FileSystem
	clock  clock.Clock
	window time.Duration
	logger *zap.SugaredLogger
	stats  tally.Scope

	mu      sync.Mutex
	folders map[entity.FolderKey]*folder

	outlineChanged    event.Emitter[entity.OutlineEntry]
	navigationChanged event.Emitter[entity.NavigationData]
	cacheFailed       event.Emitter[*cmakeerrors.CacheOpenError]
	subscriptions     event.Disposables
}

type folder struct {
	session *foldersession.Session
	subs    event.Disposables
	timer   clock.Timer

	// generation counts notifications; only a recompute for the latest one publishes.
	generation uint64
	publishMu  sync.Mutex
}

// New creates a Propagation that follows the sessions of r.
func New(p Params) *Propagation {
	prop := &Propagation{
		fs:      p.FS,
		clock:   p.Clock,
		window:  p.Window,
		logger:  p.Logger.With("component", "propagation"),
		stats:   p.Stats.SubScope("propagation"),
		folders: make(map[entity.FolderKey]*folder),
	}
	prop.subscriptions.Add(
		p.Registry.Added().Subscribe(event.FireLate, prop.Attach),
		p.Registry.Removed().Subscribe(event.FireLate, prop.Detach),
	)
	return prop
}

// Attach starts following the changes of s. Only changes after Attach are seen.
func (p *Propagation) Attach(s *foldersession.Session) {
	key := s.Key()
	f := &folder{session: s}

	p.mu.Lock()
	if _, ok := p.folders[key]; ok {
		p.mu.Unlock()
		return
	}
	p.folders[key] = f
	p.mu.Unlock()

	notify := func() { p.schedule(key, f) }
	f.subs.Add(
		s.CodeModelChanged().Subscribe(event.FireLate, func(*model.CodeModel) { notify() }),
		s.DefaultTargetChanged().Subscribe(event.FireLate, func(string) { notify() }),
		s.LaunchTargetChanged().Subscribe(event.FireLate, func(string) { notify() }),
		s.KitChanged().Subscribe(event.FireLate, func(entity.Kit) { notify() }),
	)
}

// Detach stops following key. A pending recompute is dropped.
func (p *Propagation) Detach(key entity.FolderKey) {
	p.mu.Lock()
	f, ok := p.folders[key]
	if ok {
		delete(p.folders, key)
		f.generation++
		if f.timer != nil {
			f.timer.Stop()
			f.timer = nil
		}
	}
	p.mu.Unlock()

	if ok {
		f.subs.Dispose()
	}
}

// OutlineChanged fires once per coalesced change of a folder.
func (p *Propagation) OutlineChanged() event.Source[entity.OutlineEntry] {
	return &p.outlineChanged
}

// NavigationChanged fires with a fresh snapshot when a folder has a code model and a readable cache.
func (p *Propagation) NavigationChanged() event.Source[entity.NavigationData] {
	return &p.navigationChanged
}

// CacheFailed fires when the cache of a folder could not be read. The outline is still updated.
func (p *Propagation) CacheFailed() event.Source[*cmakeerrors.CacheOpenError] {
	return &p.cacheFailed
}

// Dispose stops following the registry and every folder.
func (p *Propagation) Dispose() {
	p.subscriptions.Dispose()

	p.mu.Lock()
	keys := make([]entity.FolderKey, 0, len(p.folders))
	for key := range p.folders {
		keys = append(keys, key)
	}
	p.mu.Unlock()

	for _, key := range keys {
		p.Detach(key)
	}
}

func (p *Propagation) schedule(key entity.FolderKey, f *folder) {
	p.mu.Lock()
	if p.folders[key] != f {
		p.mu.Unlock()
		return
	}
	f.generation++
	generation := f.generation

	if p.window <= 0 {
		p.mu.Unlock()
		p.recompute(key, f, generation)
		return
	}
	if f.timer != nil && f.timer.Stop() {
		p.stats.Counter("coalesced").Inc(1)
	}
	f.timer = p.clock.AfterFunc(p.window, func() {
		p.recompute(key, f, generation)
	})
	p.mu.Unlock()
}

func (p *Propagation) current(key entity.FolderKey, f *folder, generation uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.folders[key] == f && f.generation == generation
}

func (p *Propagation) recompute(key entity.FolderKey, f *folder, generation uint64) {
	if !p.current(key, f, generation) {
		return
	}
	p.stats.Counter("recomputes").Inc(1)

	s := f.session
	cm := s.CodeModel()
	outline := mapper.CodeModelToOutline(key, s.DefaultTarget(), s.LaunchTarget(), cm)

	var nav *entity.NavigationData
	if cm != nil {
		kit, _ := s.Kit()
		c, err := p.readCache(s)
		if err != nil {
			p.stats.Counter("cache_failures").Inc(1)
			p.logger.Warnw("navigation data not updated", "folder", key, "error", err)
			f.publishMu.Lock()
			if p.current(key, f, generation) {
				p.cacheFailed.Fire(err)
			}
			f.publishMu.Unlock()
		} else {
			data := mapper.CodeModelToNavigation(key, kit, c, cm, s.BuildType())
			nav = &data
		}
	}

	f.publishMu.Lock()
	defer f.publishMu.Unlock()
	if !p.current(key, f, generation) {
		p.stats.Counter("stale").Inc(1)
		return
	}
	p.outlineChanged.Fire(outline)
	if nav != nil {
		p.navigationChanged.Fire(*nav)
	}
}

func (p *Propagation) readCache(s *foldersession.Session) (*cache.Cache, *cmakeerrors.CacheOpenError) {
	dir, err := s.BuildDirectory()
	if err != nil {
		return nil, &cmakeerrors.CacheOpenError{Err: err}
	}
	path := filepath.Join(dir, _cacheFile)
	data, err := p.fs.ReadFile(path)
	if err != nil {
		return nil, &cmakeerrors.CacheOpenError{Path: path, Err: err}
	}
	c, err := cache.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &cmakeerrors.CacheOpenError{Path: path, Err: err}
	}
	return c, nil
}
