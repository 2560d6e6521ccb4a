package cmakedriver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/uber/cmake-lsp/src/cmake-lib/fileapi"
	"github.com/uber/cmake-lsp/src/cmake-lib/model"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
	"github.com/uber/cmake-lsp/src/cmaked/internal/event"
	"github.com/uber/cmake-lsp/src/cmaked/internal/executor"
	"github.com/uber/cmake-lsp/src/cmaked/internal/fs"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_configKeyCMake = "cmake"

	_cacheFile      = "CMakeCache.txt"
	_ctestFile      = "CTestTestfile.cmake"
	_allTarget      = "all"
	_cleanTarget    = "clean"
	_cacheBuildType = "CMAKE_BUILD_TYPE"

	_waitDelay = 5 * time.Second
)

var (
	_ctestSummary = regexp.MustCompile(`(\d+)% tests passed, (\d+) tests? failed out of (\d+)`)
	_ctestFailed  = regexp.MustCompile(`(?m)^\s*\d+\s+-\s+(\S+)\s+\((?:Failed|Timeout|Not Run|SEGFAULT|Exception|Subprocess aborted)\)`)
)

// Module is the Fx module for this package.
var Module = fx.Provide(NewFactory)

// Driver runs CMake for a single source folder and owns its build directory.
// Operations return the exit code of the tool; a non-nil error means the tool could not be run.
type Driver interface {
	// SetKit selects the toolchain used by the next configure and the environment of every later run.
	SetKit(kit entity.Kit)
	Configure(ctx context.Context, buildType string, out io.Writer) (int, error)
	// Build runs the given target, or the default one when target is empty.
	Build(ctx context.Context, buildType string, target string, out io.Writer) (int, error)
	Install(ctx context.Context, buildType string, out io.Writer) (int, error)
	CTest(ctx context.Context, buildType string, out io.Writer) (int, error)
	Clean(ctx context.Context, buildType string, out io.Writer) (int, error)
	// Stop terminates the running process, if any. It reports whether a process was running.
	Stop() bool

	// Configured reports whether the build directory holds a CMake cache.
	Configured() bool
	CodeModel() *model.CodeModel
	Targets() []string
	BuildDirectory() string
	CTestEnabled() bool

	CodeModelChanged() event.Source[*model.CodeModel]
	CTestEnabledChanged() event.Source[bool]
	TestResultsChanged() event.Source[entity.TestResults]

	// Dispose stops any running process. The driver must not be used afterwards.
	Dispose()
}

// Factory creates one Driver per folder.
type Factory interface {
	New(folder entity.FolderKey) (Driver, error)
}

// Config is the cmake block of the service configuration.
type Config struct {
	CMakePath        string   `yaml:"cmakePath"`
	CTestPath        string   `yaml:"ctestPath"`
	BuildDirectory   string   `yaml:"buildDirectory"`
	Generator        string   `yaml:"generator"`
	DefaultBuildType string   `yaml:"defaultBuildType"`
	ConfigureArgs    []string `yaml:"configureArgs"`
	BuildArgs        []string `yaml:"buildArgs"`
}

// Params define the dependencies of the Factory.
type Params struct {
	fx.In

	Config   config.Provider
	Executor executor.Executor
	FS       fs.FileSystem
	Logger   *zap.SugaredLogger
}

type factory struct {
	cfg      Config
	executor executor.Executor
	fs       fs.FileSystem
	logger   *zap.SugaredLogger
}

// NewFactory reads the cmake configuration block and returns a Factory of command line drivers.
func NewFactory(p Params) (Factory, error) {
	cfg := Config{
		CMakePath:        "cmake",
		CTestPath:        "ctest",
		BuildDirectory:   "build",
		DefaultBuildType: "Debug",
	}
	if err := p.Config.Get(_configKeyCMake).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyCMake, err)
	}
	return &factory{
		cfg:      cfg,
		executor: p.Executor,
		fs:       p.FS,
		logger:   p.Logger,
	}, nil
}

func (f *factory) New(folder entity.FolderKey) (Driver, error) {
	buildDir := f.cfg.BuildDirectory
	if !filepath.IsAbs(buildDir) {
		buildDir = filepath.Join(folder.String(), buildDir)
	}

	d := &cmakeDriver{
		folder:        folder,
		cfg:           f.cfg,
		buildDir:      buildDir,
		executor:      f.executor,
		fs:            f.fs,
		logger:        f.logger.With("folder", folder.String()),
		readCodeModel: fileapi.ReadCodeModel,
		writeQuery:    fileapi.WriteQuery,
		kit:           entity.UnspecifiedKit(),
	}

	// A build directory left by an earlier run already has replies to show.
	if d.Configured() {
		if cm, err := d.readCodeModel(buildDir); err == nil {
			d.codeModel = cm
		}
		d.ctestEnabled = d.hasTests()
	}
	return d, nil
}

type cmakeDriver struct {
	folder   entity.FolderKey
	cfg      Config
	buildDir string
	executor executor.Executor
	fs       fs.FileSystem
	logger   *zap.SugaredLogger

	readCodeModel func(buildDir string) (*model.CodeModel, error)
	writeQuery    func(buildDir string) error

	mu           sync.Mutex
	kit          entity.Kit
	runID        uint64
	cancel       context.CancelFunc
	codeModel    *model.CodeModel
	ctestEnabled bool

	codeModelChanged    event.Emitter[*model.CodeModel]
	ctestEnabledChanged event.Emitter[bool]
	testResultsChanged  event.Emitter[entity.TestResults]
}

func (d *cmakeDriver) SetKit(kit entity.Kit) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kit = kit
}

func (d *cmakeDriver) Configure(ctx context.Context, buildType string, out io.Writer) (int, error) {
	if err := d.writeQuery(d.buildDir); err != nil {
		return -1, fmt.Errorf("writing file api query: %w", err)
	}

	code, err := d.run(ctx, d.cfg.CMakePath, d.configureArgs(buildType), out)
	if err != nil || code != 0 {
		return code, err
	}

	cm, err := d.readCodeModel(d.buildDir)
	if err != nil {
		return -1, fmt.Errorf("reading code model: %w", err)
	}
	hasTests := d.hasTests()

	d.mu.Lock()
	d.codeModel = cm
	ctestChanged := d.ctestEnabled != hasTests
	d.ctestEnabled = hasTests
	d.mu.Unlock()

	d.codeModelChanged.Fire(cm)
	if ctestChanged {
		d.ctestEnabledChanged.Fire(hasTests)
	}
	return 0, nil
}

func (d *cmakeDriver) Build(ctx context.Context, buildType string, target string, out io.Writer) (int, error) {
	return d.run(ctx, d.cfg.CMakePath, d.buildArgs(buildType, target), out)
}

func (d *cmakeDriver) Clean(ctx context.Context, buildType string, out io.Writer) (int, error) {
	return d.run(ctx, d.cfg.CMakePath, d.buildArgs(buildType, _cleanTarget), out)
}

func (d *cmakeDriver) Install(ctx context.Context, buildType string, out io.Writer) (int, error) {
	args := []string{"--install", d.buildDir}
	if buildType = d.buildType(buildType); buildType != "" {
		args = append(args, "--config", buildType)
	}
	return d.run(ctx, d.cfg.CMakePath, args, out)
}

func (d *cmakeDriver) CTest(ctx context.Context, buildType string, out io.Writer) (int, error) {
	args := []string{"--test-dir", d.buildDir, "--output-on-failure"}
	if buildType = d.buildType(buildType); buildType != "" {
		args = append(args, "-C", buildType)
	}

	var captured bytes.Buffer
	code, err := d.run(ctx, d.cfg.CTestPath, args, io.MultiWriter(out, &captured))
	if err != nil {
		return code, err
	}

	if results, ok := ParseTestResults(captured.String()); ok {
		d.testResultsChanged.Fire(results)
	}
	return code, nil
}

// Stop kills the running process group. The run stays registered until the process has exited.
func (d *cmakeDriver) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel == nil {
		return false
	}
	d.cancel()
	return true
}

func (d *cmakeDriver) Configured() bool {
	exists, err := d.fs.FileExists(filepath.Join(d.buildDir, _cacheFile))
	return err == nil && exists
}

func (d *cmakeDriver) CodeModel() *model.CodeModel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.codeModel
}

// Targets lists the default target followed by every target of the code model.
func (d *cmakeDriver) Targets() []string {
	return append([]string{_allTarget}, d.CodeModel().TargetNames()...)
}

func (d *cmakeDriver) BuildDirectory() string {
	return d.buildDir
}

func (d *cmakeDriver) CTestEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctestEnabled
}

func (d *cmakeDriver) CodeModelChanged() event.Source[*model.CodeModel] {
	return &d.codeModelChanged
}

func (d *cmakeDriver) CTestEnabledChanged() event.Source[bool] {
	return &d.ctestEnabledChanged
}

func (d *cmakeDriver) TestResultsChanged() event.Source[entity.TestResults] {
	return &d.testResultsChanged
}

func (d *cmakeDriver) Dispose() {
	if d.Stop() {
		d.logger.Infow("stopped running process on dispose")
	}
}

// run starts one tool process. Only one process runs at a time per driver.
func (d *cmakeDriver) run(ctx context.Context, tool string, args []string, out io.Writer) (int, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.mu.Lock()
	if d.cancel != nil {
		d.mu.Unlock()
		return -1, fmt.Errorf("%s is already running in %s", tool, d.folder)
	}
	d.runID++
	id := d.runID
	d.cancel = cancel
	env := append(os.Environ(), d.kit.EnvironmentList()...)
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		if d.runID == id {
			d.cancel = nil
		}
		d.mu.Unlock()
	}()

	cmd := exec.CommandContext(runCtx, tool, args...)
	cmd.Dir = d.folder.String()
	// Children started by cmake --build are stopped with it.
	killProcessGroup(cmd)
	cmd.WaitDelay = _waitDelay
	code, err := d.executor.Stream(cmd, env, out)
	if err != nil {
		return code, fmt.Errorf("running %s: %w", tool, err)
	}
	return code, nil
}

func (d *cmakeDriver) configureArgs(buildType string) []string {
	args := []string{"-S", d.folder.String(), "-B", d.buildDir}

	d.mu.Lock()
	kit := d.kit
	d.mu.Unlock()

	generator := d.cfg.Generator
	if kit.Generator != "" {
		generator = kit.Generator
	}
	if generator != "" {
		args = append(args, "-G", generator)
	}

	defs := kit.CacheDefinitions()
	if buildType = d.buildType(buildType); buildType != "" {
		defs[_cacheBuildType+":STRING"] = buildType
	}
	keys := make([]string, 0, len(defs))
	for k := range defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, fmt.Sprintf("-D%s=%s", k, defs[k]))
	}
	return append(args, d.cfg.ConfigureArgs...)
}

func (d *cmakeDriver) buildArgs(buildType string, target string) []string {
	args := []string{"--build", d.buildDir}
	if buildType = d.buildType(buildType); buildType != "" {
		args = append(args, "--config", buildType)
	}
	if target != "" && target != _allTarget {
		args = append(args, "--target", target)
	}
	if len(d.cfg.BuildArgs) > 0 {
		args = append(args, "--")
		args = append(args, d.cfg.BuildArgs...)
	}
	return args
}

func (d *cmakeDriver) buildType(buildType string) string {
	if buildType != "" {
		return buildType
	}
	return d.cfg.DefaultBuildType
}

func (d *cmakeDriver) hasTests() bool {
	exists, err := d.fs.FileExists(filepath.Join(d.buildDir, _ctestFile))
	return err == nil && exists
}

// ParseTestResults reads the summary ctest prints at the end of a run.
func ParseTestResults(output string) (entity.TestResults, bool) {
	m := _ctestSummary.FindStringSubmatch(output)
	if m == nil {
		return entity.TestResults{}, false
	}
	failed, _ := strconv.Atoi(m[2])
	total, _ := strconv.Atoi(m[3])

	results := entity.TestResults{
		Passed: total - failed,
		Failed: failed,
		Total:  total,
	}
	for _, f := range _ctestFailed.FindAllStringSubmatch(output, -1) {
		results.FailedTests = append(results.FailedTests, f[1])
	}
	return results, true
}
