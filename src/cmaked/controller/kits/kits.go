// Package kits discovers compiler toolchains and lets the user pick one per folder.
package kits

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/uber-go/tally"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
	ideclient "github.com/uber/cmake-lsp/src/cmaked/gateway/ide-client"
	"github.com/uber/cmake-lsp/src/cmaked/internal/event"
	"github.com/uber/cmake-lsp/src/cmaked/internal/executor"
	"github.com/uber/cmake-lsp/src/cmaked/internal/fs"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

const (
	_configKeyUserKitsPath = "kits.userKitsPath"
	_configKeySearchPaths  = "kits.searchPaths"

	_defaultKitsDir  = ".cmaked"
	_defaultKitsFile = "kits.yaml"
	_scanKey         = "scan"
)

var (
	_defaultSearchPaths = []string{"/usr/bin", "/usr/local/bin"}

	_compilerName = regexp.MustCompile(`^(gcc|clang)(-[0-9][0-9.]*)?$`)
	_version      = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`)
)

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// Controller is the catalog of known kits and the interactive kit picker.
type Controller interface {
	// ScanForKits searches the configured directories for compilers. Concurrent calls share one scan.
	ScanForKits(ctx context.Context) ([]entity.Kit, error)
	// Kits returns the user kits followed by the scanned kits, without duplicate names.
	Kits() []entity.Kit
	// Lookup finds a kit by name. The unspecified kit is always known.
	Lookup(name string) (entity.Kit, bool)
	// Changed fires with the full kit list after a scan or a change of the user kits file.
	Changed() event.Source[[]entity.Kit]
	// SelectKit asks the user to pick a kit for folder. ok is false when the prompt was dismissed.
	SelectKit(ctx context.Context, folder entity.FolderKey) (kit entity.Kit, ok bool, err error)
}

// Params define the dependencies of the kits controller.
type Params struct {
	fx.In

	Config     config.Provider
	FS         fs.FileSystem
	Executor   executor.Executor
	IdeGateway ideclient.Gateway
	Lifecycle  fx.Lifecycle
	Logger     *zap.SugaredLogger
	Stats      tally.Scope
}

type controller struct {
	fs           fs.FileSystem
	executor     executor.Executor
	ideGateway   ideclient.Gateway
	logger       *zap.SugaredLogger
	stats        tally.Scope
	userKitsPath string
	searchPaths  []string

	scans singleflight.Group

	mu       sync.Mutex
	userKits []entity.Kit
	scanned  []entity.Kit

	changed event.Emitter[[]entity.Kit]

	watcher *fsnotify.Watcher
	closer  chan struct{}
	wg      sync.WaitGroup
}

// New creates the kits controller. The user kits file is loaded and watched while the service runs.
func New(p Params) (Controller, error) {
	c := &controller{
		fs:          p.FS,
		executor:    p.Executor,
		ideGateway:  p.IdeGateway,
		logger:      p.Logger.With("component", "kits"),
		stats:       p.Stats.SubScope("kits"),
		searchPaths: _defaultSearchPaths,
	}

	if err := p.Config.Get(_configKeyUserKitsPath).Populate(&c.userKitsPath); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyUserKitsPath, err)
	}
	if c.userKitsPath == "" {
		home, err := p.FS.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		c.userKitsPath = filepath.Join(home, _defaultKitsDir, _defaultKitsFile)
	}
	if err := p.Config.Get(_configKeySearchPaths).Populate(&c.searchPaths); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeySearchPaths, err)
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: c.onStart,
		OnStop:  c.onStop,
	})
	return c, nil
}

func (c *controller) ScanForKits(ctx context.Context) ([]entity.Kit, error) {
	result, err, shared := c.scans.Do(_scanKey, func() (interface{}, error) {
		c.stats.Counter("scans").Inc(1)
		return c.scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debugw("joined running kit scan")
	}
	return result.([]entity.Kit), nil
}

func (c *controller) Kits() []entity.Kit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return mergeKits(c.userKits, c.scanned)
}

func (c *controller) Lookup(name string) (entity.Kit, bool) {
	if name == entity.UnspecifiedKitName {
		return entity.UnspecifiedKit(), true
	}
	for _, kit := range c.Kits() {
		if kit.Name == name {
			return kit, true
		}
	}
	return entity.Kit{}, false
}

func (c *controller) Changed() event.Source[[]entity.Kit] {
	return &c.changed
}

func (c *controller) SelectKit(ctx context.Context, folder entity.FolderKey) (entity.Kit, bool, error) {
	available := c.Kits()
	if len(available) == 0 {
		scanned, err := c.ScanForKits(ctx)
		if err != nil {
			c.logger.Warnw("kit scan failed", "error", err)
		}
		available = mergeKits(available, scanned)
	}
	available = append(available, entity.UnspecifiedKit())

	actions := make([]protocol.MessageActionItem, 0, len(available))
	byTitle := make(map[string]entity.Kit, len(available))
	for _, kit := range available {
		actions = append(actions, protocol.MessageActionItem{Title: kit.DisplayName()})
		byTitle[kit.DisplayName()] = kit
	}

	choice, err := c.ideGateway.ShowMessageRequest(ctx, &protocol.ShowMessageRequestParams{
		Type:    protocol.MessageTypeInfo,
		Message: fmt.Sprintf("Select a kit for %s", folder.Name()),
		Actions: actions,
	})
	if err != nil {
		return entity.Kit{}, false, fmt.Errorf("prompting for kit: %w", err)
	}
	if choice == nil {
		c.stats.Counter("selections_declined").Inc(1)
		return entity.Kit{}, false, nil
	}

	kit, ok := byTitle[choice.Title]
	if !ok {
		return entity.Kit{}, false, fmt.Errorf("unknown kit %q selected", choice.Title)
	}
	c.stats.Counter("selections").Inc(1)
	return kit, true, nil
}

func (c *controller) scan(ctx context.Context) ([]entity.Kit, error) {
	var (
		found []entity.Kit
		errs  error
	)
	for _, dir := range c.searchPaths {
		exists, err := c.fs.DirExists(dir)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !exists {
			continue
		}

		entries, err := c.fs.ReadDir(dir)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reading %q: %w", dir, err))
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !_compilerName.MatchString(entry.Name()) {
				continue
			}
			kit, err := c.probe(filepath.Join(dir, entry.Name()))
			if err != nil {
				c.logger.Debugw("skipping compiler", "path", filepath.Join(dir, entry.Name()), "error", err)
				continue
			}
			found = append(found, kit)
		}
	}

	found = mergeKits(nil, found)
	if len(found) == 0 && errs != nil {
		return nil, errs
	}

	c.mu.Lock()
	c.scanned = found
	all := mergeKits(c.userKits, c.scanned)
	c.mu.Unlock()

	c.stats.Gauge("count").Update(float64(len(all)))
	c.logger.Infow("kit scan finished", "found", len(found))
	c.changed.Fire(all)
	return found, nil
}

// probe builds a kit from a C compiler and its C++ sibling.
func (c *controller) probe(path string) (entity.Kit, error) {
	executable, err := c.fs.IsExecutable(path)
	if err != nil || !executable {
		return entity.Kit{}, fmt.Errorf("%q is not executable", path)
	}

	stdout, _, code, err := c.executor.Run(exec.Command(path, "--version"))
	if err != nil {
		return entity.Kit{}, err
	}
	if code != 0 {
		return entity.Kit{}, fmt.Errorf("%q --version exited with %d", path, code)
	}
	version := _version.FindString(firstLine(stdout))
	if version == "" {
		return entity.Kit{}, fmt.Errorf("no version in output of %q", path)
	}

	m := _compilerName.FindStringSubmatch(filepath.Base(path))
	family, suffix := m[1], m[2]
	name := "GCC"
	cxx := "g++" + suffix
	if family == "clang" {
		name = "Clang"
		cxx = "clang++" + suffix
	}

	kit := entity.Kit{
		Name:      fmt.Sprintf("%s %s", name, version),
		Compilers: map[string]string{"C": path},
	}
	cxxPath := filepath.Join(filepath.Dir(path), cxx)
	if ok, err := c.fs.IsExecutable(cxxPath); err == nil && ok {
		kit.Compilers["CXX"] = cxxPath
	}
	return kit, nil
}

func (c *controller) loadUserKits() error {
	data, err := c.fs.ReadFile(c.userKitsPath)
	if errors.Is(err, os.ErrNotExist) {
		data, err = nil, nil
	}
	if err != nil {
		return fmt.Errorf("reading user kits: %w", err)
	}

	var userKits []entity.Kit
	if err := yaml.Unmarshal(data, &userKits); err != nil {
		return fmt.Errorf("parsing user kits %q: %w", c.userKitsPath, err)
	}
	for i, kit := range userKits {
		if kit.Name == "" {
			return fmt.Errorf("user kit %d in %q has no name", i, c.userKitsPath)
		}
	}

	c.mu.Lock()
	c.userKits = userKits
	all := mergeKits(c.userKits, c.scanned)
	c.mu.Unlock()

	c.stats.Gauge("count").Update(float64(len(all)))
	c.changed.Fire(all)
	return nil
}

func (c *controller) onStart(ctx context.Context) error {
	if err := c.loadUserKits(); err != nil {
		c.logger.Warnw("user kits unavailable", "error", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		c.logger.Warnw("user kits will not be reloaded", "error", err)
		return nil
	}
	dir := filepath.Dir(c.userKitsPath)
	if err := watcher.Add(dir); err != nil {
		c.logger.Infow("not watching user kits", "dir", dir, "error", err)
		return watcher.Close()
	}

	c.watcher = watcher
	c.closer = make(chan struct{})
	c.wg.Add(1)
	go c.handleChanges()
	return nil
}

func (c *controller) onStop(ctx context.Context) error {
	if c.watcher == nil {
		return nil
	}
	close(c.closer)
	c.wg.Wait()
	return c.watcher.Close()
}

func (c *controller) handleChanges() {
	defer c.wg.Done()
	for {
		select {
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(c.userKitsPath) {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := c.loadUserKits(); err != nil {
				c.logger.Warnw("reloading user kits", "error", err)
				continue
			}
			c.logger.Infow("user kits reloaded", "path", c.userKitsPath)
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warnw("user kits watcher", "error", err)
		case <-c.closer:
			return
		}
	}
}

// mergeKits appends next to first, skipping names already present.
func mergeKits(first, next []entity.Kit) []entity.Kit {
	seen := make(map[string]struct{}, len(first)+len(next))
	result := make([]entity.Kit, 0, len(first)+len(next))
	for _, list := range [][]entity.Kit{first, next} {
		for _, kit := range list {
			if _, ok := seen[kit.Name]; ok {
				continue
			}
			seen[kit.Name] = struct{}{}
			result = append(result, kit)
		}
	}
	return result
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
