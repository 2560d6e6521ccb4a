// Package foldersession implements the per-folder build session.
package foldersession

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/uber/cmake-lsp/src/cmake-lib/model"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
	cmakedriver "github.com/uber/cmake-lsp/src/cmaked/gateway/cmake-driver"
	ideclient "github.com/uber/cmake-lsp/src/cmaked/gateway/ide-client"
	cmakeerrors "github.com/uber/cmake-lsp/src/cmaked/internal/errors"
	"github.com/uber/cmake-lsp/src/cmaked/internal/event"
	"github.com/uber/cmake-lsp/src/cmaked/internal/logfilewriter"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Operation names, also shown on the status line while running.
const (
	OperationConfigure = "configure"
	OperationBuild     = "build"
	OperationInstall   = "install"
	OperationCTest     = "ctest"
	OperationClean     = "clean"
)

const (
	_configKeyDefaultBuildType = "cmake.defaultBuildType"
	_defaultBuildType          = "Debug"
	_defaultTarget             = "all"

	_messageReady = "Ready"
)

// Module is the Fx module for this package.
var Module = fx.Provide(NewFactory)

// Factory creates Sessions. Sessions are owned by the caller, which must Dispose them.
type Factory interface {
	New(ctx context.Context, folder entity.FolderKey) (*Session, error)
}

// Params define the dependencies shared by every Session.
type Params struct {
	fx.In

	Config     config.Provider
	Drivers    cmakedriver.Factory
	Output     logfilewriter.Factory
	IdeGateway ideclient.Gateway
	Logger     *zap.SugaredLogger
}

type factory struct {
	drivers          cmakedriver.Factory
	output           logfilewriter.Factory
	ideGateway       ideclient.Gateway
	logger           *zap.SugaredLogger
	defaultBuildType string
}

// NewFactory returns a Factory for command line driven sessions.
func NewFactory(p Params) (Factory, error) {
	f := &factory{
		drivers:          p.Drivers,
		output:           p.Output,
		ideGateway:       p.IdeGateway,
		logger:           p.Logger,
		defaultBuildType: _defaultBuildType,
	}
	if err := p.Config.Get(_configKeyDefaultBuildType).Populate(&f.defaultBuildType); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyDefaultBuildType, err)
	}
	return f, nil
}

func (f *factory) New(ctx context.Context, folder entity.FolderKey) (*Session, error) {
	s := &Session{
		key:           folder,
		drivers:       f.drivers,
		output:        f.output,
		ideGateway:    f.ideGateway,
		logger:        f.logger.With("folder", folder.String()),
		buildType:     f.defaultBuildType,
		defaultTarget: _defaultTarget,
		message:       _messageReady,
	}
	s.statusChanged.Fire(s.Status())
	return s, nil
}

// Token marks the one mutating operation a Session is running.
type Token struct {
	ID        uuid.UUID
	Operation string
}

// Session is the build state of one folder. It owns the driver and the output log of the folder.
// Mutating operations are mutually exclusive; a second one is rejected rather than queued.
type Session struct {
	key        entity.FolderKey
	drivers    cmakedriver.Factory
	output     logfilewriter.Factory
	ideGateway ideclient.Gateway
	logger     *zap.SugaredLogger

	mu            sync.Mutex
	driver        cmakedriver.Driver
	outputLog     io.WriteCloser
	kit           *entity.Kit
	buildType     string
	defaultTarget string
	launchTarget  string
	pending       *Token
	// done is closed when the pending operation returns.
	done          chan struct{}
	message       string
	disposed      bool

	// Released once, at Dispose.
	subscriptions event.Disposables

	codeModelChanged     event.Emitter[*model.CodeModel]
	kitChanged           event.Emitter[entity.Kit]
	statusChanged        event.Emitter[entity.Status]
	busyChanged          event.Emitter[bool]
	defaultTargetChanged event.Emitter[string]
	launchTargetChanged  event.Emitter[string]
	buildTypeChanged     event.Emitter[string]
	ctestEnabledChanged  event.Emitter[bool]
	testResultsChanged   event.Emitter[entity.TestResults]
}

// Key returns the folder of the session.
func (s *Session) Key() entity.FolderKey {
	return s.key
}

// Configure runs CMake configure with the current kit and build type.
func (s *Session) Configure(ctx context.Context) (int, error) {
	token, err := s.acquire(OperationConfigure)
	if err != nil {
		return -1, err
	}
	defer s.release(token)

	return s.configure(ctx, token)
}

// Build builds target, or the default target when target is empty. A folder never configured is configured first.
func (s *Session) Build(ctx context.Context, target string) (int, error) {
	token, err := s.acquire(OperationBuild)
	if err != nil {
		return -1, err
	}
	defer s.release(token)

	d, err := s.getDriver()
	if err != nil {
		return -1, s.driverFailure(OperationBuild, err)
	}
	if !d.Configured() {
		if code, err := s.configure(ctx, token); err != nil || code != 0 {
			return code, err
		}
		s.setMessage(token, fmt.Sprintf("Running %s", OperationBuild))
	}

	if target == "" {
		target = s.DefaultTarget()
	}
	code, err := d.Build(ctx, s.BuildType(), target, s.operationOutput(ctx))
	return s.finish(token, code, err)
}

// Install runs the install step of the build directory.
func (s *Session) Install(ctx context.Context) (int, error) {
	return s.runDriver(ctx, OperationInstall, func(d cmakedriver.Driver, buildType string, out io.Writer) (int, error) {
		return d.Install(ctx, buildType, out)
	})
}

// CTest runs the tests of the build directory.
func (s *Session) CTest(ctx context.Context) (int, error) {
	return s.runDriver(ctx, OperationCTest, func(d cmakedriver.Driver, buildType string, out io.Writer) (int, error) {
		return d.CTest(ctx, buildType, out)
	})
}

// Clean removes build outputs.
func (s *Session) Clean(ctx context.Context) (int, error) {
	return s.runDriver(ctx, OperationClean, func(d cmakedriver.Driver, buildType string, out io.Writer) (int, error) {
		return d.Clean(ctx, buildType, out)
	})
}

// Stop terminates the running process and waits for the pending operation to return, which clears it.
// The session stays busy if ctx ends first. It reports whether anything was running.
func (s *Session) Stop(ctx context.Context) bool {
	s.mu.Lock()
	d := s.driver
	pending := s.pending
	done := s.done
	s.mu.Unlock()

	stopped := false
	if d != nil {
		stopped = d.Stop()
	}
	if pending == nil {
		return stopped
	}

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warnw("operation still running after stop", "operation", pending.Operation, "error", ctx.Err())
		return true
	}

	s.mu.Lock()
	stale := s.pending != nil
	if !stale {
		s.message = fmt.Sprintf("Stopped %s", pending.Operation)
	}
	s.mu.Unlock()
	s.logger.Infow("operation stopped", "operation", pending.Operation)
	if !stale {
		s.statusChanged.Fire(s.Status())
	}
	return true
}

// SetKit selects the toolchain of the folder.
func (s *Session) SetKit(ctx context.Context, kit entity.Kit) {
	s.mu.Lock()
	if s.kit != nil && s.kit.Equal(kit) {
		s.mu.Unlock()
		return
	}
	s.kit = &kit
	d := s.driver
	s.mu.Unlock()

	if d != nil {
		d.SetKit(kit)
	}
	s.logger.Infow("kit selected", "kit", kit.Name)
	s.kitChanged.Fire(kit)
	s.statusChanged.Fire(s.Status())
}

// SetDefaultTarget selects the target built when no target is named.
func (s *Session) SetDefaultTarget(ctx context.Context, target string) {
	if target == "" {
		target = _defaultTarget
	}
	if s.setString(&s.defaultTarget, target) {
		s.defaultTargetChanged.Fire(target)
		s.statusChanged.Fire(s.Status())
	}
}

// SetLaunchTarget selects the executable target used for run and debug.
func (s *Session) SetLaunchTarget(ctx context.Context, target string) {
	if s.setString(&s.launchTarget, target) {
		s.launchTargetChanged.Fire(target)
		s.statusChanged.Fire(s.Status())
	}
}

// SetBuildType selects the configuration (Debug, Release, ...) of later operations.
func (s *Session) SetBuildType(ctx context.Context, buildType string) {
	if buildType == "" {
		return
	}
	if s.setString(&s.buildType, buildType) {
		s.buildTypeChanged.Fire(buildType)
		s.statusChanged.Fire(s.Status())
	}
}

// Kit returns the selected kit, if any.
func (s *Session) Kit() (entity.Kit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kit == nil {
		return entity.Kit{}, false
	}
	return *s.kit, true
}

// BuildType returns the selected configuration.
func (s *Session) BuildType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildType
}

// DefaultTarget returns the target built when no target is named.
func (s *Session) DefaultTarget() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultTarget
}

// LaunchTarget returns the selected executable target, or an empty string.
func (s *Session) LaunchTarget() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launchTarget
}

// Pending returns the running mutating operation, if any.
func (s *Session) Pending() (Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Token{}, false
	}
	return *s.pending, true
}

// Busy reports whether a mutating operation is running.
func (s *Session) Busy() bool {
	_, ok := s.Pending()
	return ok
}

// CodeModel returns the last code model, or nil before the first configure.
func (s *Session) CodeModel() *model.CodeModel {
	if d := s.existingDriver(); d != nil {
		return d.CodeModel()
	}
	return nil
}

// Targets returns the buildable targets, starting with the default one.
func (s *Session) Targets() []string {
	if d := s.existingDriver(); d != nil {
		return d.Targets()
	}
	return []string{_defaultTarget}
}

// CTestEnabled reports whether the build directory has tests.
func (s *Session) CTestEnabled() bool {
	if d := s.existingDriver(); d != nil {
		return d.CTestEnabled()
	}
	return false
}

// BuildDirectory returns the build directory of the folder.
func (s *Session) BuildDirectory() (string, error) {
	d, err := s.getDriver()
	if err != nil {
		return "", err
	}
	return d.BuildDirectory(), nil
}

// LaunchTargetPath returns the first artifact of the launch target in the current build type.
func (s *Session) LaunchTargetPath() (string, bool) {
	name := s.LaunchTarget()
	if name == "" {
		return "", false
	}
	target, ok := s.CodeModel().FindTarget(s.BuildType(), name)
	if !ok || !target.IsExecutable() || len(target.Artifacts) == 0 {
		return "", false
	}
	return target.Artifacts[0], true
}

// Status returns the status line view of the session.
func (s *Session) Status() entity.Status {
	ctestEnabled := s.CTestEnabled()

	s.mu.Lock()
	defer s.mu.Unlock()
	status := entity.Status{
		Folder:        s.key,
		FolderName:    s.key.Name(),
		BuildType:     s.buildType,
		Busy:          s.pending != nil,
		Message:       s.message,
		DefaultTarget: s.defaultTarget,
		LaunchTarget:  s.launchTarget,
		CTestEnabled:  ctestEnabled,
	}
	if s.kit != nil {
		status.Kit = s.kit.DisplayName()
	}
	if s.pending != nil {
		status.Operation = s.pending.Operation
	}
	return status
}

// CodeModelChanged fires after every successful configure.
func (s *Session) CodeModelChanged() event.Source[*model.CodeModel] { return &s.codeModelChanged }

// KitChanged fires when a different kit is selected.
func (s *Session) KitChanged() event.Source[entity.Kit] { return &s.kitChanged }

// StatusChanged fires whenever any field of Status changes. The session fires its initial status on creation.
func (s *Session) StatusChanged() event.Source[entity.Status] { return &s.statusChanged }

// BusyChanged fires when a mutating operation starts and when it returns.
func (s *Session) BusyChanged() event.Source[bool] { return &s.busyChanged }

// DefaultTargetChanged fires with the new default target.
func (s *Session) DefaultTargetChanged() event.Source[string] { return &s.defaultTargetChanged }

// LaunchTargetChanged fires with the new launch target.
func (s *Session) LaunchTargetChanged() event.Source[string] { return &s.launchTargetChanged }

// BuildTypeChanged fires with the new build type.
func (s *Session) BuildTypeChanged() event.Source[string] { return &s.buildTypeChanged }

// CTestEnabledChanged fires when a configure adds or removes the tests of the build directory.
func (s *Session) CTestEnabledChanged() event.Source[bool] { return &s.ctestEnabledChanged }

// TestResultsChanged fires with the summary of every ctest run.
func (s *Session) TestResultsChanged() event.Source[entity.TestResults] { return &s.testResultsChanged }

// Dispose tears down the driver, waits for the pending operation to return, releases the
// forwarded subscriptions and closes the output log. Only the first call has an effect.
func (s *Session) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	d := s.driver
	outputLog := s.outputLog
	done := s.done
	s.mu.Unlock()

	if d != nil {
		d.Dispose()
	}
	if done != nil {
		<-done
	}
	s.subscriptions.Dispose()

	var err error
	if outputLog != nil {
		err = multierr.Append(err, outputLog.Close())
	}
	s.logger.Infow("session disposed")
	return err
}

func (s *Session) acquire(operation string) (Token, error) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return Token{}, fmt.Errorf("session for %q is disposed", s.key)
	}
	if s.pending != nil {
		pending := s.pending.Operation
		s.mu.Unlock()
		return Token{}, &cmakeerrors.SessionBusyError{Folder: s.key.String(), Pending: pending}
	}
	id, err := uuid.NewV4()
	if err != nil {
		s.mu.Unlock()
		return Token{}, err
	}
	token := Token{ID: id, Operation: operation}
	s.pending = &token
	s.done = make(chan struct{})
	s.message = fmt.Sprintf("Running %s", operation)
	s.mu.Unlock()

	s.busyChanged.Fire(true)
	s.statusChanged.Fire(s.Status())
	return token, nil
}

// release clears the pending operation when it still holds token and wakes Stop and Dispose.
func (s *Session) release(token Token) {
	s.mu.Lock()
	if s.pending == nil || s.pending.ID != token.ID {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	done := s.done
	s.done = nil
	s.mu.Unlock()
	defer close(done)

	s.busyChanged.Fire(false)
	s.statusChanged.Fire(s.Status())
}

func (s *Session) runDriver(ctx context.Context, operation string, run func(d cmakedriver.Driver, buildType string, out io.Writer) (int, error)) (int, error) {
	token, err := s.acquire(operation)
	if err != nil {
		return -1, err
	}
	defer s.release(token)

	d, err := s.getDriver()
	if err != nil {
		return -1, s.driverFailure(operation, err)
	}
	code, err := run(d, s.BuildType(), s.operationOutput(ctx))
	return s.finish(token, code, err)
}

// configure must be called with token held.
func (s *Session) configure(ctx context.Context, token Token) (int, error) {
	d, err := s.getDriver()
	if err != nil {
		return -1, s.driverFailure(OperationConfigure, err)
	}
	s.setMessage(token, fmt.Sprintf("Running %s", OperationConfigure))
	code, err := d.Configure(ctx, s.BuildType(), s.operationOutput(ctx))
	return s.finish(Token{ID: token.ID, Operation: OperationConfigure}, code, err)
}

func (s *Session) finish(token Token, code int, err error) (int, error) {
	operation := token.Operation
	switch {
	case err != nil:
		s.logger.Errorw("operation failed", "operation", operation, "error", err)
		s.setMessage(token, fmt.Sprintf("%s failed", operation))
		return code, s.driverFailure(operation, err)
	case code != 0:
		s.logger.Warnw("operation exited", "operation", operation, "exitCode", code)
		s.setMessage(token, fmt.Sprintf("%s failed with exit code %d", operation, code))
	default:
		s.logger.Infow("operation finished", "operation", operation)
		s.setMessage(token, _messageReady)
	}
	return code, nil
}

func (s *Session) driverFailure(operation string, err error) error {
	return &cmakeerrors.DriverFailureError{Folder: s.key.String(), Operation: operation, Err: err}
}

func (s *Session) existingDriver() cmakedriver.Driver {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver
}

// getDriver creates the driver on first use and forwards its change sources.
func (s *Session) getDriver() (cmakedriver.Driver, error) {
	s.mu.Lock()
	if s.driver != nil {
		d := s.driver
		s.mu.Unlock()
		return d, nil
	}
	if s.disposed {
		s.mu.Unlock()
		return nil, fmt.Errorf("session for %q is disposed", s.key)
	}

	d, err := s.drivers.New(s.key)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("creating driver: %w", err)
	}
	if s.kit != nil {
		d.SetKit(*s.kit)
	}
	s.driver = d

	outputLog, err := s.output.Open(s.key.Name())
	if err != nil {
		s.logger.Warnw("output log unavailable", "error", err)
	} else {
		s.outputLog = outputLog
	}
	s.mu.Unlock()

	s.subscriptions.Add(
		d.CodeModelChanged().Subscribe(event.FireLate, s.codeModelChanged.Fire),
		d.CTestEnabledChanged().Subscribe(event.FireLate, func(enabled bool) {
			s.ctestEnabledChanged.Fire(enabled)
			s.statusChanged.Fire(s.Status())
		}),
		d.TestResultsChanged().Subscribe(event.FireLate, s.testResultsChanged.Fire),
	)
	return d, nil
}

// operationOutput writes to the folder log and mirrors to the IDE output when the client is reachable.
func (s *Session) operationOutput(ctx context.Context) io.Writer {
	s.mu.Lock()
	outputLog := s.outputLog
	s.mu.Unlock()

	writers := []io.Writer{}
	if outputLog != nil {
		writers = append(writers, outputLog)
	}
	if w, err := s.ideGateway.GetLogMessageWriter(ctx, s.key.Name()); err == nil {
		writers = append(writers, lenientWriter{w})
	}
	return io.MultiWriter(writers...)
}

// setMessage updates the status message unless token was stopped.
func (s *Session) setMessage(token Token, message string) {
	s.mu.Lock()
	if s.pending == nil || s.pending.ID != token.ID || s.message == message {
		s.mu.Unlock()
		return
	}
	s.message = message
	s.mu.Unlock()
	s.statusChanged.Fire(s.Status())
}

func (s *Session) setString(field *string, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *field == value {
		return false
	}
	*field = value
	return true
}

// lenientWriter drops write errors so that a closed IDE connection never interrupts a running tool.
type lenientWriter struct {
	w io.Writer
}

func (l lenientWriter) Write(p []byte) (int, error) {
	l.w.Write(p)
	return len(p), nil
}
