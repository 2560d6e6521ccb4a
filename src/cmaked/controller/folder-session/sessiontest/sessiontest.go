// Package sessiontest builds folder sessions backed by scripted drivers, for tests of the components above them.
package sessiontest

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/uber/cmake-lsp/src/cmake-lib/model"
	foldersession "github.com/uber/cmake-lsp/src/cmaked/controller/folder-session"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
	cmakedriver "github.com/uber/cmake-lsp/src/cmaked/gateway/cmake-driver"
	"github.com/uber/cmake-lsp/src/cmaked/gateway/ide-client/ideclientmock"
	"github.com/uber/cmake-lsp/src/cmaked/internal/event"
	"github.com/uber/cmake-lsp/src/cmaked/internal/logfilewriter/logfilewritermock"
	"go.uber.org/config"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

// Harness creates sessions whose drivers are Drivers.
type Harness struct {
	Factory    foldersession.Factory
	IdeGateway *ideclientmock.MockGateway

	mu      sync.Mutex
	drivers map[entity.FolderKey]*Driver
}

// NewHarness returns a Harness. Output logs are discarded.
func NewHarness(t *testing.T, ctrl *gomock.Controller) *Harness {
	h := &Harness{
		IdeGateway: ideclientmock.NewMockGateway(ctrl),
		drivers:    make(map[entity.FolderKey]*Driver),
	}
	h.IdeGateway.EXPECT().GetLogMessageWriter(gomock.Any(), gomock.Any()).Return(io.Discard, nil).AnyTimes()

	output := logfilewritermock.NewMockFactory(ctrl)
	output.EXPECT().Open(gomock.Any()).Return(nopCloser{io.Discard}, nil).AnyTimes()

	provider, err := config.NewStaticProvider(map[string]interface{}{})
	if err != nil {
		t.Fatal(err)
	}
	f, err := foldersession.NewFactory(foldersession.Params{
		Config:     provider,
		Drivers:    h,
		Output:     output,
		IdeGateway: h.IdeGateway,
		Logger:     zap.NewNop().Sugar(),
	})
	if err != nil {
		t.Fatal(err)
	}
	h.Factory = f
	return h
}

// New implements cmakedriver.Factory.
func (h *Harness) New(folder entity.FolderKey) (cmakedriver.Driver, error) {
	return h.Driver(folder), nil
}

// Driver returns the driver of folder, creating it when needed.
func (h *Harness) Driver(folder entity.FolderKey) *Driver {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.drivers[folder]
	if !ok {
		d = &Driver{BuildDir: folder.String() + "/build", ExitCodes: map[string]int{}}
		h.drivers[folder] = d
	}
	return d
}

// Session creates a session for folder and disposes it when the test ends.
func (h *Harness) Session(t *testing.T, folder entity.FolderKey) *foldersession.Session {
	s, err := h.Factory.New(context.Background(), folder)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Dispose() })
	return s
}

// Driver is a scripted cmakedriver.Driver.
// Operations return ExitCodes[operation]; Hook, when set, runs first and replaces that result.
// The context passed to Hook ends when Stop or Dispose is called.
type Driver struct {
	BuildDir string
	// NextCodeModel becomes the code model after a successful configure.
	NextCodeModel *model.CodeModel
	ExitCodes     map[string]int
	Hook          func(ctx context.Context, operation string) (int, error)

	mu           sync.Mutex
	kit          entity.Kit
	calls        []string
	configured   bool
	codeModel    *model.CodeModel
	ctestEnabled bool
	stops        int
	disposed     bool
	cancel       context.CancelFunc

	codeModelChanged    event.Emitter[*model.CodeModel]
	ctestEnabledChanged event.Emitter[bool]
	testResultsChanged  event.Emitter[entity.TestResults]
}

var _ cmakedriver.Driver = (*Driver)(nil)

func (d *Driver) SetKit(kit entity.Kit) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kit = kit
}

func (d *Driver) Configure(ctx context.Context, buildType string, out io.Writer) (int, error) {
	code, err := d.run(ctx, foldersession.OperationConfigure)
	if err != nil || code != 0 {
		return code, err
	}

	d.mu.Lock()
	d.configured = true
	d.codeModel = d.NextCodeModel
	cm := d.codeModel
	d.mu.Unlock()

	d.codeModelChanged.Fire(cm)
	return 0, nil
}

func (d *Driver) Build(ctx context.Context, buildType string, target string, out io.Writer) (int, error) {
	return d.run(ctx, foldersession.OperationBuild+":"+target)
}

func (d *Driver) Install(ctx context.Context, buildType string, out io.Writer) (int, error) {
	return d.run(ctx, foldersession.OperationInstall)
}

func (d *Driver) CTest(ctx context.Context, buildType string, out io.Writer) (int, error) {
	return d.run(ctx, foldersession.OperationCTest)
}

func (d *Driver) Clean(ctx context.Context, buildType string, out io.Writer) (int, error) {
	return d.run(ctx, foldersession.OperationClean)
}

func (d *Driver) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	if d.cancel == nil {
		return false
	}
	d.cancel()
	return true
}

func (d *Driver) Configured() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configured
}

func (d *Driver) CodeModel() *model.CodeModel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.codeModel
}

func (d *Driver) Targets() []string {
	return append([]string{"all"}, d.CodeModel().TargetNames()...)
}

func (d *Driver) BuildDirectory() string {
	return d.BuildDir
}

func (d *Driver) CTestEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctestEnabled
}

func (d *Driver) CodeModelChanged() event.Source[*model.CodeModel] { return &d.codeModelChanged }

func (d *Driver) CTestEnabledChanged() event.Source[bool] { return &d.ctestEnabledChanged }

func (d *Driver) TestResultsChanged() event.Source[entity.TestResults] { return &d.testResultsChanged }

func (d *Driver) Dispose() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disposed = true
	if d.cancel != nil {
		d.cancel()
	}
}

// SetConfigured marks the build directory as configured with cm, without firing.
func (d *Driver) SetConfigured(cm *model.CodeModel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.configured = true
	d.codeModel = cm
}

// FireCodeModel replaces the code model and notifies subscribers, as a configure would.
func (d *Driver) FireCodeModel(cm *model.CodeModel) {
	d.SetConfigured(cm)
	d.codeModelChanged.Fire(cm)
}

// FireCTestEnabled changes whether the build directory has tests.
func (d *Driver) FireCTestEnabled(enabled bool) {
	d.mu.Lock()
	d.ctestEnabled = enabled
	d.mu.Unlock()
	d.ctestEnabledChanged.Fire(enabled)
}

// FireTestResults notifies subscribers of a finished test run.
func (d *Driver) FireTestResults(results entity.TestResults) {
	d.testResultsChanged.Fire(results)
}

// Calls returns the operations run so far, builds suffixed with ":target".
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Kit returns the last kit set.
func (d *Driver) Kit() entity.Kit {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.kit
}

// Stops returns the number of Stop calls.
func (d *Driver) Stops() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stops
}

// Disposed reports whether Dispose was called.
func (d *Driver) Disposed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disposed
}

// Subscribers returns the number of live subscriptions on the driver's change sources.
func (d *Driver) Subscribers() int {
	return d.codeModelChanged.Len() + d.ctestEnabledChanged.Len() + d.testResultsChanged.Len()
}

func (d *Driver) run(ctx context.Context, operation string) (int, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.mu.Lock()
	d.calls = append(d.calls, operation)
	code := d.ExitCodes[operation]
	hook := d.Hook
	d.cancel = cancel
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.cancel = nil
		d.mu.Unlock()
	}()

	if hook != nil {
		return hook(runCtx, operation)
	}
	return code, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
