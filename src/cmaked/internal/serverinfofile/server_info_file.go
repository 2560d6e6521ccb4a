package serverinfofile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/uber/cmake-lsp/src/cmaked/internal/fs"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_configKeyInfoFile = "serverInfoFilePath"
	_pidKey            = "pid"
)

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// ServerInfoFile publishes connection details of the running daemon as a flat JSON object.
// Editors read it to find the listening address and the per-folder output logs.
type ServerInfoFile interface {
	UpdateField(key string, value string) error
	RemoveField(key string) error
	Path() string
}

type module struct {
	path   string
	fs     fs.FileSystem
	logger *zap.SugaredLogger

	mu     sync.Mutex
	fields map[string]string
}

// Params define values to be used by ServerInfoFile.
type Params struct {
	fx.In

	Config    config.Provider
	FS        fs.FileSystem
	Lifecycle fx.Lifecycle
	Logger    *zap.SugaredLogger
}

// New creates a ServerInfoFile at the path named by the serverInfoFilePath config key.
func New(p Params) (ServerInfoFile, error) {
	m := &module{
		fs:     p.FS,
		logger: p.Logger,
		fields: map[string]string{_pidKey: fmt.Sprint(os.Getpid())},
	}

	if err := m.processConfig(p.Config); err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: m.OnStop,
	})
	return m, nil
}

func (m *module) Path() string {
	return m.path
}

// OnStop removes the file so that stale addresses are never picked up by a new editor session.
func (m *module) OnStop(ctx context.Context) error {
	exists, err := m.fs.FileExists(m.path)
	if err != nil || !exists {
		return err
	}
	return m.fs.Remove(m.path)
}

func (m *module) UpdateField(key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fields[key] = value
	if err := m.flush(); err != nil {
		return err
	}
	m.logger.Infow("server info updated", "file", m.path, key, value)
	return nil
}

func (m *module) RemoveField(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.fields[key]; !ok {
		return nil
	}
	delete(m.fields, key)
	return m.flush()
}

// flush writes to a sibling file and renames it into place. Must be called with mu held.
func (m *module) flush() error {
	data, err := json.Marshal(m.fields)
	if err != nil {
		return fmt.Errorf("marshalling json: %w", err)
	}

	if err := m.fs.MkdirAll(filepath.Dir(m.path)); err != nil {
		return fmt.Errorf("creating info file directory: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := m.fs.WriteFile(tmp, data); err != nil {
		return fmt.Errorf("writing info file: %w", err)
	}
	if err := m.fs.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replacing info file: %w", err)
	}
	return nil
}

func (m *module) processConfig(cfg config.Provider) error {
	if err := cfg.Get(_configKeyInfoFile).Populate(&m.path); err != nil {
		return fmt.Errorf("getting config field %q: %w", _configKeyInfoFile, err)
	}

	if m.path == "" {
		return fmt.Errorf("missing field %q in config", _configKeyInfoFile)
	}
	return nil
}
