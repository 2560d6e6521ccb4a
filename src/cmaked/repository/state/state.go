// Package state persists per-workspace choices (active folder, folder kits) across restarts.
package state

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/uber/cmake-lsp/src/cmaked/entity"
	"github.com/uber/cmake-lsp/src/cmaked/internal/fs"
	"github.com/uber/cmake-lsp/src/cmaked/mapper"
	"github.com/uber/cmake-lsp/src/cmaked/model"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	_configKeyStatePath = "workspace.stateFilePath"
	_stateFileVersion   = 1
	_defaultStateDir    = "cmaked"
	_defaultStateFile   = "state.yaml"
)

// Repository reads and writes persisted workspace state.
// A workspace is identified by its root folder.
type Repository interface {
	Load(ctx context.Context, workspace string) (entity.WorkspaceState, error)
	SaveActiveFolder(ctx context.Context, workspace string, folder entity.FolderKey) error
	SaveFolderKit(ctx context.Context, workspace string, folder entity.FolderKey, kit string) error
}

// Params are the dependencies of the state repository.
type Params struct {
	fx.In

	Config config.Provider
	FS     fs.FileSystem
	Logger *zap.SugaredLogger
}

type repository struct {
	mu     sync.Mutex
	path   string
	fs     fs.FileSystem
	logger *zap.SugaredLogger
}

// New returns a Repository backed by a single YAML file.
// The file defaults to state.yaml under the user cache directory.
func New(p Params) (Repository, error) {
	r := &repository{
		fs:     p.FS,
		logger: p.Logger.With("component", "state"),
	}

	if err := p.Config.Get(_configKeyStatePath).Populate(&r.path); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyStatePath, err)
	}
	if r.path == "" {
		cacheDir, err := p.FS.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("locating user cache dir: %w", err)
		}
		r.path = filepath.Join(cacheDir, _defaultStateDir, _defaultStateFile)
	}
	return r, nil
}

// Load returns the stored state of workspace, or an empty state when nothing was stored.
func (r *repository) Load(ctx context.Context, workspace string) (entity.WorkspaceState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.read()
	if err != nil {
		return mapper.ModelToWorkspaceState(model.WorkspaceState{}), err
	}
	return mapper.ModelToWorkspaceState(f.Workspaces[workspace]), nil
}

// SaveActiveFolder records the folder the user explicitly made active.
func (r *repository) SaveActiveFolder(ctx context.Context, workspace string, folder entity.FolderKey) error {
	return r.update(workspace, func(s *model.WorkspaceState) {
		s.ActiveFolder = string(folder)
	})
}

// SaveFolderKit records the kit last chosen for folder. An empty kit name clears it.
func (r *repository) SaveFolderKit(ctx context.Context, workspace string, folder entity.FolderKey, kit string) error {
	return r.update(workspace, func(s *model.WorkspaceState) {
		if kit == "" {
			delete(s.FolderKits, string(folder))
			return
		}
		if s.FolderKits == nil {
			s.FolderKits = make(map[string]string)
		}
		s.FolderKits[string(folder)] = kit
	})
}

func (r *repository) update(workspace string, fn func(*model.WorkspaceState)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.read()
	if err != nil {
		// A corrupt file is replaced rather than blocking every later save.
		r.logger.Warnw("discarding unreadable state file", "path", r.path, "error", err)
		f = &model.StateFile{}
	}
	if f.Workspaces == nil {
		f.Workspaces = make(map[string]model.WorkspaceState)
	}

	s := f.Workspaces[workspace]
	fn(&s)
	f.Workspaces[workspace] = s
	f.Version = _stateFileVersion

	return r.write(f)
}

// read must be called with mu held.
func (r *repository) read() (*model.StateFile, error) {
	exists, err := r.fs.FileExists(r.path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &model.StateFile{}, nil
	}

	data, err := r.fs.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var f model.StateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing state file %q: %w", r.path, err)
	}
	if f.Version > _stateFileVersion {
		return nil, fmt.Errorf("state file %q has unsupported version %d", r.path, f.Version)
	}
	return &f, nil
}

// write must be called with mu held.
func (r *repository) write(f *model.StateFile) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding state file: %w", err)
	}

	if err := r.fs.MkdirAll(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := r.fs.WriteFile(tmp, data); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return r.fs.Rename(tmp, r.path)
}
