package foldersession_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/cmake-lsp/src/cmake-lib/model"
	foldersession "github.com/uber/cmake-lsp/src/cmaked/controller/folder-session"
	"github.com/uber/cmake-lsp/src/cmaked/controller/folder-session/sessiontest"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
	"github.com/uber/cmake-lsp/src/cmaked/factory"
	cmakeerrors "github.com/uber/cmake-lsp/src/cmaked/internal/errors"
	"github.com/uber/cmake-lsp/src/cmaked/internal/event"
	"go.uber.org/config"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const _folder = entity.FolderKey("/src/app")

func TestNewFactory(t *testing.T) {
	tests := []struct {
		name      string
		cfg       map[string]interface{}
		buildType string
		wantErr   bool
	}{
		{
			name:      "default build type",
			cfg:       map[string]interface{}{},
			buildType: "Debug",
		},
		{
			name:      "configured build type",
			cfg:       map[string]interface{}{"cmake": map[string]interface{}{"defaultBuildType": "RelWithDebInfo"}},
			buildType: "RelWithDebInfo",
		},
		{
			name:    "invalid build type",
			cfg:     map[string]interface{}{"cmake": map[string]interface{}{"defaultBuildType": []string{"a"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := config.NewStaticProvider(tt.cfg)
			require.NoError(t, err)

			f, err := foldersession.NewFactory(foldersession.Params{
				Config: provider,
				Logger: zap.NewNop().Sugar(),
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			s, err := f.New(context.Background(), _folder)
			require.NoError(t, err)
			assert.Equal(t, _folder, s.Key())
			assert.Equal(t, tt.buildType, s.BuildType())
			assert.Equal(t, "all", s.DefaultTarget())
			assert.False(t, s.Busy())
			_, ok := s.Kit()
			assert.False(t, ok)
		})
	}
}

func TestConfigure(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		h := sessiontest.NewHarness(t, gomock.NewController(t))
		cm := factory.CodeModel(_folder, "app")
		h.Driver(_folder).NextCodeModel = cm
		s := h.Session(t, _folder)

		var models []*model.CodeModel
		s.CodeModelChanged().Subscribe(event.FireLate, func(m *model.CodeModel) { models = append(models, m) })

		code, err := s.Configure(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, code)
		assert.Equal(t, []*model.CodeModel{cm}, models)
		assert.Equal(t, cm, s.CodeModel())
		assert.Equal(t, []string{"all", "app"}, s.Targets())
		assert.Equal(t, "Ready", s.Status().Message)
		assert.False(t, s.Busy())
	})

	t.Run("non-zero exit", func(t *testing.T) {
		h := sessiontest.NewHarness(t, gomock.NewController(t))
		h.Driver(_folder).ExitCodes[foldersession.OperationConfigure] = 1
		s := h.Session(t, _folder)

		code, err := s.Configure(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, code)
		assert.Equal(t, "configure failed with exit code 1", s.Status().Message)
	})

	t.Run("driver failure", func(t *testing.T) {
		h := sessiontest.NewHarness(t, gomock.NewController(t))
		h.Driver(_folder).Hook = func(context.Context, string) (int, error) {
			return -1, errors.New("cmake not found")
		}
		s := h.Session(t, _folder)

		_, err := s.Configure(ctx)
		var failure *cmakeerrors.DriverFailureError
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, foldersession.OperationConfigure, failure.Operation)
		code, ok := cmakeerrors.ResultCode(err)
		assert.True(t, ok)
		assert.Equal(t, cmakeerrors.CodeDriverFailure, code)
		assert.False(t, s.Busy())
	})
}

func TestBuild(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		configured bool
		exitCodes  map[string]int
		target     string
		wantCode   int
		wantCalls  []string
	}{
		{
			name:      "configures first",
			wantCalls: []string{"configure", "build:all"},
		},
		{
			name:       "already configured",
			configured: true,
			target:     "app",
			wantCalls:  []string{"build:app"},
		},
		{
			name:      "failed configure skips build",
			exitCodes: map[string]int{"configure": 2},
			wantCode:  2,
			wantCalls: []string{"configure"},
		},
		{
			name:       "build exit code",
			configured: true,
			exitCodes:  map[string]int{"build:all": 3},
			wantCode:   3,
			wantCalls:  []string{"build:all"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := sessiontest.NewHarness(t, gomock.NewController(t))
			d := h.Driver(_folder)
			if tt.configured {
				d.SetConfigured(factory.CodeModel(_folder, "app"))
			}
			for op, code := range tt.exitCodes {
				d.ExitCodes[op] = code
			}
			s := h.Session(t, _folder)

			code, err := s.Build(ctx, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantCalls, d.Calls())
		})
	}
}

func TestOperations(t *testing.T) {
	ctx := context.Background()
	h := sessiontest.NewHarness(t, gomock.NewController(t))
	d := h.Driver(_folder)
	d.ExitCodes[foldersession.OperationCTest] = 8
	s := h.Session(t, _folder)

	code, err := s.Install(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	code, err = s.CTest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, code)

	code, err = s.Clean(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	assert.Equal(t, []string{"install", "ctest", "clean"}, d.Calls())
}

func TestSessionBusy(t *testing.T) {
	ctx := context.Background()
	h := sessiontest.NewHarness(t, gomock.NewController(t))
	d := h.Driver(_folder)

	started := make(chan struct{})
	release := make(chan struct{})
	d.Hook = func(ctx context.Context, op string) (int, error) {
		if op == foldersession.OperationConfigure {
			close(started)
			<-release
		}
		return 0, nil
	}
	s := h.Session(t, _folder)

	var busy []bool
	s.BusyChanged().Subscribe(event.FireLate, func(b bool) { busy = append(busy, b) })

	done := make(chan int)
	go func() {
		code, _ := s.Configure(ctx)
		done <- code
	}()
	<-started

	pending, ok := s.Pending()
	require.True(t, ok)
	assert.Equal(t, foldersession.OperationConfigure, pending.Operation)
	assert.True(t, s.Status().Busy)
	assert.Equal(t, foldersession.OperationConfigure, s.Status().Operation)

	_, err := s.Build(ctx, "")
	assert.True(t, cmakeerrors.IsSessionBusy(err))
	var busyErr *cmakeerrors.SessionBusyError
	require.ErrorAs(t, err, &busyErr)
	assert.Equal(t, "configure", busyErr.Pending)

	close(release)
	assert.Equal(t, 0, <-done)
	assert.False(t, s.Busy())
	assert.Equal(t, []bool{true, false}, busy)

	code, err := s.Build(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"configure", "build:all"}, d.Calls())
}

func TestStop(t *testing.T) {
	ctx := context.Background()
	h := sessiontest.NewHarness(t, gomock.NewController(t))
	d := h.Driver(_folder)

	started := make(chan string, 1)
	exited := make(chan struct{})
	d.Hook = func(ctx context.Context, op string) (int, error) {
		started <- op
		if op == foldersession.OperationConfigure {
			// The process keeps running for a while after it is killed.
			<-ctx.Done()
			<-exited
			return -1, nil
		}
		return 0, nil
	}
	s := h.Session(t, _folder)
	assert.False(t, s.Stop(ctx))

	var busy []bool
	s.BusyChanged().Subscribe(event.FireLate, func(b bool) { busy = append(busy, b) })

	configureDone := make(chan struct{})
	go func() {
		s.Configure(ctx)
		close(configureDone)
	}()
	assert.Equal(t, "configure", <-started)

	stopDone := make(chan bool)
	go func() { stopDone <- s.Stop(ctx) }()

	// Until the stopped configure returns, the build tree stays reserved.
	require.Eventually(t, func() bool { return d.Stops() == 1 }, time.Second, time.Millisecond)
	select {
	case <-stopDone:
		t.Fatal("stop returned before the operation exited")
	default:
	}
	assert.True(t, s.Busy())
	_, err := s.Install(ctx)
	assert.True(t, cmakeerrors.IsSessionBusy(err))
	assert.Equal(t, []string{"configure"}, d.Calls())

	close(exited)
	assert.True(t, <-stopDone)
	<-configureDone
	assert.False(t, s.Busy())
	assert.Equal(t, []bool{true, false}, busy)
	assert.Equal(t, "Stopped configure", s.Status().Message)

	code, err := s.Install(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "install", <-started)
	assert.Equal(t, []string{"configure", "install"}, d.Calls())
}

func TestStopContextDone(t *testing.T) {
	h := sessiontest.NewHarness(t, gomock.NewController(t))
	d := h.Driver(_folder)

	started := make(chan struct{})
	exited := make(chan struct{})
	d.Hook = func(ctx context.Context, op string) (int, error) {
		close(started)
		<-exited
		return 0, nil
	}
	s := h.Session(t, _folder)

	configureDone := make(chan struct{})
	go func() {
		s.Configure(context.Background())
		close(configureDone)
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, s.Stop(ctx))
	assert.True(t, s.Busy())

	close(exited)
	<-configureDone
	assert.False(t, s.Busy())
}

func TestSetKit(t *testing.T) {
	ctx := context.Background()
	h := sessiontest.NewHarness(t, gomock.NewController(t))
	s := h.Session(t, _folder)

	var kits []entity.Kit
	s.KitChanged().Subscribe(event.FireLate, func(k entity.Kit) { kits = append(kits, k) })

	gcc := factory.Kit("GCC 13")
	s.SetKit(ctx, gcc)
	s.SetKit(ctx, gcc)
	assert.Equal(t, []entity.Kit{gcc}, kits)

	kit, ok := s.Kit()
	require.True(t, ok)
	assert.Equal(t, gcc, kit)
	assert.Equal(t, "GCC 13", s.Status().Kit)

	// The kit reaches the driver when it is created.
	_, err := s.Configure(ctx)
	require.NoError(t, err)
	assert.Equal(t, gcc, h.Driver(_folder).Kit())

	s.SetKit(ctx, entity.UnspecifiedKit())
	assert.Equal(t, entity.UnspecifiedKitName, h.Driver(_folder).Kit().Name)
	assert.Equal(t, "[Unspecified]", s.Status().Kit)
}

func TestTargetsAndBuildType(t *testing.T) {
	ctx := context.Background()
	h := sessiontest.NewHarness(t, gomock.NewController(t))
	s := h.Session(t, _folder)

	var defaults, launches, buildTypes []string
	s.DefaultTargetChanged().Subscribe(event.FireLate, func(v string) { defaults = append(defaults, v) })
	s.LaunchTargetChanged().Subscribe(event.FireLate, func(v string) { launches = append(launches, v) })
	s.BuildTypeChanged().Subscribe(event.FireLate, func(v string) { buildTypes = append(buildTypes, v) })

	s.SetDefaultTarget(ctx, "tool")
	s.SetDefaultTarget(ctx, "tool")
	s.SetDefaultTarget(ctx, "")
	s.SetLaunchTarget(ctx, "app")
	s.SetBuildType(ctx, "Release")
	s.SetBuildType(ctx, "")

	assert.Equal(t, []string{"tool", "all"}, defaults)
	assert.Equal(t, []string{"app"}, launches)
	assert.Equal(t, []string{"Release"}, buildTypes)
	assert.Equal(t, "Release", s.BuildType())
}

func TestLaunchTargetPath(t *testing.T) {
	ctx := context.Background()
	h := sessiontest.NewHarness(t, gomock.NewController(t))
	h.Driver(_folder).NextCodeModel = factory.CodeModel(_folder, "app")
	s := h.Session(t, _folder)

	_, ok := s.LaunchTargetPath()
	assert.False(t, ok, "no launch target")

	s.SetLaunchTarget(ctx, "app")
	_, ok = s.LaunchTargetPath()
	assert.False(t, ok, "not configured")

	_, err := s.Configure(ctx)
	require.NoError(t, err)
	path, ok := s.LaunchTargetPath()
	require.True(t, ok)
	assert.Equal(t, "/src/app/build/app", path)

	s.SetLaunchTarget(ctx, "missing")
	_, ok = s.LaunchTargetPath()
	assert.False(t, ok)

	dir, err := s.BuildDirectory()
	require.NoError(t, err)
	assert.Equal(t, "/src/app/build", dir)
}

func TestStatusReplay(t *testing.T) {
	h := sessiontest.NewHarness(t, gomock.NewController(t))
	s := h.Session(t, _folder)

	var statuses []entity.Status
	s.StatusChanged().Subscribe(event.FireNow, func(st entity.Status) { statuses = append(statuses, st) })
	require.Len(t, statuses, 1)
	assert.Equal(t, entity.Status{
		Folder:        _folder,
		FolderName:    "app",
		BuildType:     "Debug",
		Message:       "Ready",
		DefaultTarget: "all",
	}, statuses[0])

	h.Driver(_folder).SetConfigured(nil)
	_, err := s.BuildDirectory()
	require.NoError(t, err)
	h.Driver(_folder).FireCTestEnabled(true)
	assert.True(t, statuses[len(statuses)-1].CTestEnabled)
}

func TestForwardedSources(t *testing.T) {
	h := sessiontest.NewHarness(t, gomock.NewController(t))
	s := h.Session(t, _folder)
	_, err := s.BuildDirectory()
	require.NoError(t, err)

	var results []entity.TestResults
	var ctest []bool
	s.TestResultsChanged().Subscribe(event.FireLate, func(r entity.TestResults) { results = append(results, r) })
	s.CTestEnabledChanged().Subscribe(event.FireLate, func(v bool) { ctest = append(ctest, v) })

	d := h.Driver(_folder)
	d.FireTestResults(entity.TestResults{Passed: 1, Total: 1})
	d.FireCTestEnabled(true)

	assert.Equal(t, []entity.TestResults{{Passed: 1, Total: 1}}, results)
	assert.Equal(t, []bool{true}, ctest)
	assert.True(t, s.CTestEnabled())
}

func TestDispose(t *testing.T) {
	ctx := context.Background()
	h := sessiontest.NewHarness(t, gomock.NewController(t))
	s := h.Session(t, _folder)
	d := h.Driver(_folder)

	_, err := s.Configure(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Subscribers())

	require.NoError(t, s.Dispose())
	assert.True(t, d.Disposed())
	assert.Equal(t, 0, d.Subscribers())

	require.NoError(t, s.Dispose())

	_, err = s.Configure(ctx)
	assert.Error(t, err)
}

func TestDisposeWaitsForOperation(t *testing.T) {
	h := sessiontest.NewHarness(t, gomock.NewController(t))
	d := h.Driver(_folder)

	started := make(chan struct{})
	exited := make(chan struct{})
	d.Hook = func(ctx context.Context, op string) (int, error) {
		close(started)
		<-ctx.Done()
		<-exited
		return -1, nil
	}
	s := h.Session(t, _folder)

	var busy []bool
	s.BusyChanged().Subscribe(event.FireLate, func(b bool) { busy = append(busy, b) })

	configureDone := make(chan struct{})
	go func() {
		s.Configure(context.Background())
		close(configureDone)
	}()
	<-started

	disposeDone := make(chan error)
	go func() { disposeDone <- s.Dispose() }()

	require.Eventually(t, d.Disposed, time.Second, time.Millisecond)
	select {
	case <-disposeDone:
		t.Fatal("dispose returned before the operation exited")
	default:
	}

	close(exited)
	require.NoError(t, <-disposeDone)
	<-configureDone
	assert.Equal(t, []bool{true, false}, busy)
	assert.False(t, s.Busy())
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
