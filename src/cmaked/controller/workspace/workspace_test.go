package workspace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"github.com/uber/cmake-lsp/src/cmaked/controller/folder-session/sessiontest"
	"github.com/uber/cmake-lsp/src/cmaked/controller/kits/kitsmock"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
	testfactory "github.com/uber/cmake-lsp/src/cmaked/factory"
	"github.com/uber/cmake-lsp/src/cmaked/gateway/ide-client/ideclientmock"
	"github.com/uber/cmake-lsp/src/cmaked/internal/clock/clocktest"
	cmakeerrors "github.com/uber/cmake-lsp/src/cmaked/internal/errors"
	"github.com/uber/cmake-lsp/src/cmaked/internal/event"
	"github.com/uber/cmake-lsp/src/cmaked/internal/fs/fsmock"
	"github.com/uber/cmake-lsp/src/cmaked/repository/state/statemock"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const (
	_root    = "/src"
	_folderA = entity.FolderKey("/src/a")
	_folderB = entity.FolderKey("/src/b")

	_cacheText = "CMAKE_CXX_COMPILER:FILEPATH=/usr/bin/g++\n"
)

var _gcc = testfactory.Kit("GCC 13.2.0")

func TestNewFactory(t *testing.T) {
	tests := []struct {
		name           string
		cfg            map[string]interface{}
		wantAutoSelect bool
		wantWindow     time.Duration
		wantErr        bool
	}{
		{
			name:           "defaults",
			cfg:            map[string]interface{}{},
			wantAutoSelect: true,
			wantWindow:     100 * time.Millisecond,
		},
		{
			name: "configured",
			cfg: map[string]interface{}{
				"workspace": map[string]interface{}{
					"autoSelectActiveFolder":  false,
					"codeModelCoalesceMillis": 0,
				},
			},
			wantWindow: 0,
		},
		{
			name: "invalid window",
			cfg: map[string]interface{}{
				"workspace": map[string]interface{}{"codeModelCoalesceMillis": "soon"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := config.NewStaticProvider(tt.cfg)
			require.NoError(t, err)

			f, err := NewFactory(Params{
				Config: provider,
				Logger: zap.NewNop().Sugar(),
				Stats:  tally.NoopScope,
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAutoSelect, f.(*factory).autoSelect)
			assert.Equal(t, tt.wantWindow, f.(*factory).coalesceWindow)
		})
	}
}

func TestConfigureThenBuild(t *testing.T) {
	ctx := context.Background()
	w, env := getTestWorkspace(t, entity.WorkspaceState{FolderKits: map[entity.FolderKey]string{_folderA: _gcc.Name}})
	env.kits.EXPECT().Lookup(_gcc.Name).Return(_gcc, true)
	require.NoError(t, w.AddFolder(ctx, _folderA))

	cm := testfactory.CodeModel(_folderA, "app", "tool")
	env.harness.Driver(_folderA).NextCodeModel = cm
	env.fs.EXPECT().ReadFile("/src/a/build/CMakeCache.txt").Return([]byte(_cacheText), nil)

	var outlines []entity.OutlineEntry
	env.ide.EXPECT().PublishOutline(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, entry entity.OutlineEntry) error {
		outlines = append(outlines, entry)
		return nil
	}).Times(1)
	env.ide.EXPECT().PublishNavigationData(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, data entity.NavigationData) error {
		assert.Equal(t, "/usr/bin/g++", data.CompilerPath)
		assert.Equal(t, _gcc.Name, data.Kit)
		return nil
	}).Times(1)

	result, err := w.ExecuteCommand(ctx, CommandConfigure, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result)

	result, err = w.ExecuteCommand(ctx, CommandBuild, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result)

	require.Len(t, outlines, 1)
	assert.Equal(t, []string{"app", "tool"}, outlines[0].CodeModel.TargetNames())
	assert.Equal(t, []string{"configure", "build:all"}, env.harness.Driver(_folderA).Calls())
}

func TestNoKitSelected(t *testing.T) {
	ctx := context.Background()
	w, env := getTestWorkspace(t, entity.WorkspaceState{})
	require.NoError(t, w.AddFolder(ctx, _folderA))
	env.kits.EXPECT().SelectKit(ctx, _folderA).Return(entity.Kit{}, false, nil)

	_, err := w.ExecuteCommand(ctx, CommandBuild, []interface{}{"app"})
	assert.True(t, cmakeerrors.IsNoKitSelected(err))
	assert.Empty(t, env.harness.Driver(_folderA).Calls())

	result, err := w.ExecuteCommand(ctx, CommandBuildKit, nil)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestMutatingCommands(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		command   string
		args      []interface{}
		exitCodes map[string]int
		want      interface{}
		wantCalls map[entity.FolderKey][]string
	}{
		{
			name:      "build target",
			command:   CommandBuild,
			args:      []interface{}{"tool"},
			wantCalls: map[entity.FolderKey][]string{_folderA: {"configure", "build:tool"}},
		},
		{
			name:      "build named folder",
			command:   CommandBuild,
			args:      []interface{}{map[string]interface{}{"folder": "file:///src/b"}},
			wantCalls: map[entity.FolderKey][]string{_folderB: {"configure", "build:all"}},
		},
		{
			name:    "install all",
			command: CommandInstallAll,
			wantCalls: map[entity.FolderKey][]string{
				_folderA: {"install"},
				_folderB: {"install"},
			},
		},
		{
			name:      "ctest all fails fast",
			command:   CommandCTestAll,
			exitCodes: map[string]int{"ctest": 8},
			want:      8,
			wantCalls: map[entity.FolderKey][]string{_folderA: {"ctest"}},
		},
		{
			name:      "clean rebuild",
			command:   CommandCleanRebuild,
			wantCalls: map[entity.FolderKey][]string{_folderA: {"clean", "configure", "build:all"}},
		},
		{
			name:      "clean rebuild stops after failed clean",
			command:   CommandCleanRebuildAll,
			exitCodes: map[string]int{"clean": 2},
			want:      2,
			wantCalls: map[entity.FolderKey][]string{_folderA: {"clean"}},
		},
		{
			name:    "configure all",
			command: CommandConfigureAll,
			wantCalls: map[entity.FolderKey][]string{
				_folderA: {"configure"},
				_folderB: {"configure"},
			},
		},
		{
			name:      "clean",
			command:   CommandClean,
			wantCalls: map[entity.FolderKey][]string{_folderA: {"clean"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := getTestWorkspace(t, entity.WorkspaceState{})
			env.allowOutlines()
			env.ide.EXPECT().PublishNavigationData(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
			env.fs.EXPECT().ReadFile(gomock.Any()).Return([]byte(_cacheText), nil).AnyTimes()
			env.state.EXPECT().SaveFolderKit(gomock.Any(), _root, gomock.Any(), _gcc.Name).Return(nil).AnyTimes()
			env.addWithKit(t, _folderA, _folderB)
			for op, code := range tt.exitCodes {
				env.harness.Driver(_folderA).ExitCodes[op] = code
			}

			want := tt.want
			if want == nil {
				want = 0
			}
			result, err := w.ExecuteCommand(ctx, tt.command, tt.args)
			require.NoError(t, err)
			assert.Equal(t, want, result)
			for _, folder := range []entity.FolderKey{_folderA, _folderB} {
				assert.Equal(t, tt.wantCalls[folder], env.harness.Driver(folder).Calls(), folder)
			}
		})
	}
}

func TestStop(t *testing.T) {
	ctx := context.Background()
	w, env := getTestWorkspace(t, entity.WorkspaceState{})

	_, err := w.ExecuteCommand(ctx, CommandStop, nil)
	var noActive *cmakeerrors.NoActiveFolderError
	assert.ErrorAs(t, err, &noActive)

	require.NoError(t, w.AddFolder(ctx, _folderA))
	require.NoError(t, w.AddFolder(ctx, _folderB))
	for _, key := range w.Folders() {
		_, err := w.ExecuteCommand(ctx, CommandBuildDirectory, []interface{}{map[string]interface{}{"folder": key.String()}})
		require.NoError(t, err)
	}

	result, err := w.ExecuteCommand(ctx, CommandStopAll, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result)
	assert.Equal(t, 1, env.harness.Driver(_folderA).Stops())
	assert.Equal(t, 1, env.harness.Driver(_folderB).Stops())
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	w, env := getTestWorkspace(t, entity.WorkspaceState{})
	env.allowOutlines()

	for _, name := range []string{CommandActiveFolderName, CommandBuildType, CommandLaunchTargetPath, CommandBuildKit} {
		result, err := w.ExecuteCommand(ctx, name, nil)
		require.NoError(t, err, name)
		assert.Nil(t, result, name)
	}
	result, err := w.ExecuteCommand(ctx, CommandBuildDirectoryAll, nil)
	require.NoError(t, err)
	assert.Empty(t, result)

	require.NoError(t, w.AddFolder(ctx, _folderA))
	require.NoError(t, w.AddFolder(ctx, _folderB))
	env.harness.Driver(_folderB).SetConfigured(testfactory.CodeModel(_folderB, "app"))
	b, ok := w.registry.Get(_folderB)
	require.True(t, ok)
	b.SetLaunchTarget(ctx, "app")

	result, err = w.ExecuteCommand(ctx, CommandActiveFolderName, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", *result.(*string))

	result, err = w.ExecuteCommand(ctx, CommandBuildType, nil)
	require.NoError(t, err)
	assert.Equal(t, "Debug", *result.(*string))

	result, err = w.ExecuteCommand(ctx, CommandBuildDirectoryAll, nil)
	require.NoError(t, err)
	dirs := result.([]*string)
	require.Len(t, dirs, 2)
	assert.Equal(t, "/src/a/build", *dirs[0])
	assert.Equal(t, "/src/b/build", *dirs[1])

	result, err = w.ExecuteCommand(ctx, CommandLaunchTargetPathAll, nil)
	require.NoError(t, err)
	paths := result.([]*string)
	require.Len(t, paths, 2, "one entry per folder")
	assert.Nil(t, paths[0])
	require.NotNil(t, paths[1])
	assert.Equal(t, "/src/b/build/app", *paths[1])

	result, err = w.ExecuteCommand(ctx, CommandLaunchTargetPath, []interface{}{map[string]interface{}{"folder": "/src/b"}})
	require.NoError(t, err)
	assert.Equal(t, "/src/b/build/app", *result.(*string))

	_, err = w.ExecuteCommand(ctx, CommandLaunchTargetPath, []interface{}{map[string]interface{}{"folder": "/src/c"}})
	_, notFound := cmakeerrors.NotFoundFolder(err)
	assert.True(t, notFound)
}

func TestKitCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("select kit", func(t *testing.T) {
		w, env := getTestWorkspace(t, entity.WorkspaceState{})
		env.allowOutlines()
		require.NoError(t, w.AddFolder(ctx, _folderA))
		env.kits.EXPECT().SelectKit(ctx, _folderA).Return(_gcc, true, nil)
		env.state.EXPECT().SaveFolderKit(gomock.Any(), _root, _folderA, _gcc.Name).Return(nil)

		result, err := w.ExecuteCommand(ctx, CommandSelectKit, nil)
		require.NoError(t, err)
		assert.Equal(t, _gcc.Name, *result.(*string))

		result, err = w.ExecuteCommand(ctx, CommandBuildKit, nil)
		require.NoError(t, err)
		assert.Equal(t, _gcc.Name, *result.(*string))
	})

	t.Run("select kit dismissed", func(t *testing.T) {
		w, env := getTestWorkspace(t, entity.WorkspaceState{})
		require.NoError(t, w.AddFolder(ctx, _folderA))
		env.kits.EXPECT().SelectKit(ctx, _folderA).Return(entity.Kit{}, false, nil)

		result, err := w.ExecuteCommand(ctx, CommandSelectKit, nil)
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("set kit by name", func(t *testing.T) {
		w, env := getTestWorkspace(t, entity.WorkspaceState{})
		env.allowOutlines()
		require.NoError(t, w.AddFolder(ctx, _folderA))
		require.NoError(t, w.AddFolder(ctx, _folderB))
		env.kits.EXPECT().Lookup(entity.UnspecifiedKitName).Return(entity.UnspecifiedKit(), true)
		env.state.EXPECT().SaveFolderKit(gomock.Any(), _root, _folderB, entity.UnspecifiedKitName).Return(errors.New("read-only file system"))

		result, err := w.ExecuteCommand(ctx, CommandSetKitByName, []interface{}{map[string]interface{}{"folder": "/src/b", "value": "[Unspecified]"}})
		require.NoError(t, err)
		assert.Equal(t, 0, result)

		b, _ := w.registry.Get(_folderB)
		kit, ok := b.Kit()
		require.True(t, ok)
		assert.True(t, kit.IsUnspecified())
	})

	t.Run("unknown kit", func(t *testing.T) {
		w, env := getTestWorkspace(t, entity.WorkspaceState{})
		require.NoError(t, w.AddFolder(ctx, _folderA))
		env.kits.EXPECT().Lookup("MSVC").Return(entity.Kit{}, false).Times(2)
		env.kits.EXPECT().ScanForKits(gomock.Any()).Return(nil, nil)

		_, err := w.ExecuteCommand(ctx, CommandSetKitByName, []interface{}{"MSVC"})
		assert.True(t, cmakeerrors.IsBadRequest(err))
	})

	t.Run("scan", func(t *testing.T) {
		w, env := getTestWorkspace(t, entity.WorkspaceState{})
		env.kits.EXPECT().ScanForKits(ctx).Return([]entity.Kit{_gcc, testfactory.Kit("Clang 17.0.6")}, nil)

		result, err := w.ExecuteCommand(ctx, CommandScanForKits, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, result)
	})
}

func TestRestoreKit(t *testing.T) {
	ctx := context.Background()
	w, env := getTestWorkspace(t, entity.WorkspaceState{FolderKits: map[entity.FolderKey]string{
		_folderA: "Clang 17.0.6",
		_folderB: "Removed Kit",
	}})
	clang := testfactory.Kit("Clang 17.0.6")
	gomock.InOrder(
		env.kits.EXPECT().Lookup("Clang 17.0.6").Return(entity.Kit{}, false),
		env.kits.EXPECT().ScanForKits(gomock.Any()).Return([]entity.Kit{clang}, nil),
		env.kits.EXPECT().Lookup("Clang 17.0.6").Return(clang, true),
	)
	env.kits.EXPECT().Lookup("Removed Kit").Return(entity.Kit{}, false).Times(2)
	env.kits.EXPECT().ScanForKits(gomock.Any()).Return([]entity.Kit{clang}, nil)

	require.NoError(t, w.AddFolder(ctx, _folderA))
	require.NoError(t, w.AddFolder(ctx, _folderB))

	a, _ := w.registry.Get(_folderA)
	kit, ok := a.Kit()
	require.True(t, ok)
	assert.Equal(t, clang, kit)

	b, _ := w.registry.Get(_folderB)
	_, ok = b.Kit()
	assert.False(t, ok)
}

func TestRefreshKits(t *testing.T) {
	w, env := getTestWorkspace(t, entity.WorkspaceState{})
	env.allowOutlines()
	env.state.EXPECT().SaveFolderKit(gomock.Any(), _root, _folderA, _gcc.Name).Return(nil).Times(2)
	env.addWithKit(t, _folderA)

	edited := _gcc
	edited.Environment = map[string]string{"CCACHE_DIR": "/tmp/ccache"}
	env.kitsChanged.Fire([]entity.Kit{edited, testfactory.Kit("Clang 17.0.6")})
	env.kitsChanged.Fire([]entity.Kit{edited})

	a, _ := w.registry.Get(_folderA)
	kit, _ := a.Kit()
	assert.True(t, edited.Equal(kit))
}

func TestSelectActiveFolder(t *testing.T) {
	ctx := context.Background()

	t.Run("folder argument", func(t *testing.T) {
		w, env := getTestWorkspace(t, entity.WorkspaceState{})
		require.NoError(t, w.AddFolder(ctx, _folderA))
		require.NoError(t, w.AddFolder(ctx, _folderB))
		env.state.EXPECT().SaveActiveFolder(ctx, _root, _folderB).Return(nil)

		result, err := w.ExecuteCommand(ctx, CommandSelectActiveFolder, []interface{}{"/src/b"})
		require.NoError(t, err)
		assert.Equal(t, "b", *result.(*string))
		active, ok := w.ActiveFolder()
		require.True(t, ok)
		assert.Equal(t, _folderB, active)

		require.NoError(t, w.RemoveFolder(ctx, _folderB))
		active, _ = w.ActiveFolder()
		assert.Equal(t, _folderA, active)
	})

	t.Run("prompt", func(t *testing.T) {
		w, env := getTestWorkspace(t, entity.WorkspaceState{})
		require.NoError(t, w.AddFolder(ctx, _folderA))
		require.NoError(t, w.AddFolder(ctx, _folderB))
		env.ide.EXPECT().ShowMessageRequest(ctx, &protocol.ShowMessageRequestParams{
			Type:    protocol.MessageTypeInfo,
			Message: "Select the active folder",
			Actions: []protocol.MessageActionItem{{Title: "/src/a"}, {Title: "/src/b"}},
		}).Return(&protocol.MessageActionItem{Title: "/src/b"}, nil)
		env.state.EXPECT().SaveActiveFolder(ctx, _root, _folderB).Return(nil)

		_, err := w.ExecuteCommand(ctx, CommandSelectActiveFolder, nil)
		require.NoError(t, err)
		active, _ := w.ActiveFolder()
		assert.Equal(t, _folderB, active)
	})

	t.Run("unknown folder", func(t *testing.T) {
		w, _ := getTestWorkspace(t, entity.WorkspaceState{})
		_, err := w.ExecuteCommand(ctx, CommandSelectActiveFolder, []interface{}{"/src/c"})
		_, notFound := cmakeerrors.NotFoundFolder(err)
		assert.True(t, notFound)
	})

	t.Run("persisted choice", func(t *testing.T) {
		w, _ := getTestWorkspace(t, entity.WorkspaceState{ActiveFolder: _folderB})
		require.NoError(t, w.AddFolder(ctx, _folderA))
		require.NoError(t, w.AddFolder(ctx, _folderB))
		active, _ := w.ActiveFolder()
		assert.Equal(t, _folderB, active)
	})
}

func TestSessionSettings(t *testing.T) {
	ctx := context.Background()
	w, env := getTestWorkspace(t, entity.WorkspaceState{})
	env.allowOutlines()
	env.ide.EXPECT().PublishNavigationData(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	env.fs.EXPECT().ReadFile("/src/a/build/CMakeCache.txt").Return([]byte(_cacheText), nil).AnyTimes()
	require.NoError(t, w.AddFolder(ctx, _folderA))
	env.harness.Driver(_folderA).SetConfigured(testfactory.CodeModel(_folderA, "app", "tool"))
	_, err := w.ExecuteCommand(ctx, CommandBuildDirectory, nil)
	require.NoError(t, err)

	result, err := w.ExecuteCommand(ctx, CommandSetDefaultTarget, []interface{}{"tool"})
	require.NoError(t, err)
	assert.Equal(t, "tool", *result.(*string))

	env.ide.EXPECT().ShowMessageRequest(ctx, &protocol.ShowMessageRequestParams{
		Type:    protocol.MessageTypeInfo,
		Message: "Select the launch target of a",
		Actions: []protocol.MessageActionItem{{Title: "app"}, {Title: "tool"}},
	}).Return(&protocol.MessageActionItem{Title: "app"}, nil)
	result, err = w.ExecuteCommand(ctx, CommandSetLaunchTarget, nil)
	require.NoError(t, err)
	assert.Equal(t, "app", *result.(*string))

	env.ide.EXPECT().ShowMessageRequest(ctx, gomock.Any()).Return(nil, nil)
	result, err = w.ExecuteCommand(ctx, CommandSetBuildType, nil)
	require.NoError(t, err)
	assert.Nil(t, result)

	result, err = w.ExecuteCommand(ctx, CommandSetBuildType, []interface{}{"Release"})
	require.NoError(t, err)
	assert.Equal(t, "Release", *result.(*string))

	a, _ := w.registry.Get(_folderA)
	assert.Equal(t, "tool", a.DefaultTarget())
	assert.Equal(t, "app", a.LaunchTarget())
	assert.Equal(t, "Release", a.BuildType())
}

func TestNotifications(t *testing.T) {
	ctx := context.Background()

	t.Run("test results", func(t *testing.T) {
		w, env := getTestWorkspace(t, entity.WorkspaceState{})
		require.NoError(t, w.AddFolder(ctx, _folderA))
		_, err := w.ExecuteCommand(ctx, CommandBuildDirectory, nil)
		require.NoError(t, err)

		results := entity.TestResults{Passed: 3, Failed: 1, Total: 4, FailedTests: []string{"slow"}}
		env.ide.EXPECT().PublishTestResults(gomock.Any(), _folderA, results).Return(errors.New("connection closed"))
		env.harness.Driver(_folderA).FireTestResults(results)
	})

	t.Run("cache failure", func(t *testing.T) {
		w, env := getTestWorkspace(t, entity.WorkspaceState{})
		env.state.EXPECT().SaveFolderKit(gomock.Any(), _root, _folderA, _gcc.Name).Return(nil)
		env.addWithKit(t, _folderA)
		env.harness.Driver(_folderA).NextCodeModel = testfactory.CodeModel(_folderA, "app")

		env.fs.EXPECT().ReadFile("/src/a/build/CMakeCache.txt").Return(nil, errors.New("permission denied"))
		env.ide.EXPECT().PublishOutline(gomock.Any(), gomock.Any()).Return(nil).Times(2)
		env.ide.EXPECT().ShowMessage(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, params *protocol.ShowMessageParams) error {
			assert.Equal(t, protocol.MessageTypeWarning, params.Type)
			assert.Contains(t, params.Message, "permission denied")
			return nil
		})

		result, err := w.ExecuteCommand(ctx, CommandConfigure, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, result, "a cache failure never fails the configure")
	})

	t.Run("status of active folder", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		env := newTestEnv(t, ctrl, entity.WorkspaceState{})
		var statuses []*entity.Status
		env.ide.EXPECT().PublishStatus(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, status *entity.Status) error {
			statuses = append(statuses, status)
			return nil
		}).AnyTimes()
		w := env.newWorkspace(t)

		require.NoError(t, w.AddFolder(ctx, _folderA))
		require.NoError(t, w.RemoveFolder(ctx, _folderA))

		require.GreaterOrEqual(t, len(statuses), 3)
		assert.Nil(t, statuses[0])
		assert.Equal(t, _folderA, statuses[1].Folder)
		assert.Nil(t, statuses[len(statuses)-1])
	})
}

func TestExecuteCommandErrors(t *testing.T) {
	ctx := context.Background()
	w, _ := getTestWorkspace(t, entity.WorkspaceState{})

	_, err := w.ExecuteCommand(ctx, "cmake.debugTarget", nil)
	code, ok := cmakeerrors.ResultCode(err)
	require.True(t, ok)
	assert.Equal(t, cmakeerrors.CodeUnknownCommand, code)

	_, err = w.ExecuteCommand(ctx, CommandBuild, []interface{}{42})
	assert.True(t, cmakeerrors.IsBadRequest(err))

	_, err = w.ExecuteCommand(ctx, CommandConfigure, nil)
	code, ok = cmakeerrors.ResultCode(err)
	require.True(t, ok)
	assert.Equal(t, cmakeerrors.CodeNoActiveFolder, code)

	require.NoError(t, w.AddFolder(ctx, _folderA))
	err = w.AddFolder(ctx, _folderA)
	code, ok = cmakeerrors.ResultCode(err)
	require.True(t, ok)
	assert.Equal(t, cmakeerrors.CodeDuplicateFolder, code)
}

func TestCommands(t *testing.T) {
	w, _ := getTestWorkspace(t, entity.WorkspaceState{})
	commands := w.Commands()
	assert.Len(t, commands, 28)
	assert.IsIncreasing(t, commands)
	for _, name := range []string{CommandConfigureAll, CommandCleanRebuildAll, CommandLaunchTargetPathAll, CommandBuildKit} {
		assert.Contains(t, commands, name)
	}
}

func TestDispose(t *testing.T) {
	ctx := context.Background()
	w, env := getTestWorkspace(t, entity.WorkspaceState{})
	require.NoError(t, w.AddFolder(ctx, _folderA))
	_, err := w.ExecuteCommand(ctx, CommandBuildDirectory, nil)
	require.NoError(t, err)

	require.NoError(t, w.Dispose(ctx))
	assert.True(t, env.harness.Driver(_folderA).Disposed())
	assert.Empty(t, w.Folders())
	assert.Empty(t, w.folderSubs)
	assert.Zero(t, env.kitsChanged.Len())
	require.NoError(t, w.Dispose(ctx))
}

type testEnv struct {
	harness     *sessiontest.Harness
	ide         *ideclientmock.MockGateway
	kits        *kitsmock.MockController
	state       *statemock.MockRepository
	fs          *fsmock.MockFileSystem
	kitsChanged *event.Emitter[[]entity.Kit]
	persisted   entity.WorkspaceState
	workspace   *Workspace
}

// allowOutlines accepts any number of outline updates.
func (e *testEnv) allowOutlines() {
	e.ide.EXPECT().PublishOutline(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

// addWithKit opens folders that already have a kit, so commands never prompt.
func (e *testEnv) addWithKit(t *testing.T, folders ...entity.FolderKey) {
	ctx := context.Background()
	for _, folder := range folders {
		w := e.workspace
		require.NoError(t, w.AddFolder(ctx, folder))
		s, _ := w.registry.Get(folder)
		s.SetKit(ctx, _gcc)
	}
}

func newTestEnv(t *testing.T, ctrl *gomock.Controller, persisted entity.WorkspaceState) *testEnv {
	h := sessiontest.NewHarness(t, ctrl)
	return &testEnv{
		harness:     h,
		ide:         h.IdeGateway,
		kits:        kitsmock.NewMockController(ctrl),
		state:       statemock.NewMockRepository(ctrl),
		fs:          fsmock.NewMockFileSystem(ctrl),
		kitsChanged: &event.Emitter[[]entity.Kit]{},
		persisted:   persisted,
	}
}

func (e *testEnv) newWorkspace(t *testing.T) *Workspace {
	provider, err := config.NewStaticProvider(map[string]interface{}{
		"workspace": map[string]interface{}{"codeModelCoalesceMillis": 0},
	})
	require.NoError(t, err)

	e.state.EXPECT().Load(gomock.Any(), _root).Return(e.persisted, nil)
	e.kits.EXPECT().Changed().Return(e.kitsChanged)

	f, err := NewFactory(Params{
		Config:     provider,
		Sessions:   e.harness.Factory,
		Kits:       e.kits,
		State:      e.state,
		IdeGateway: e.ide,
		FS:         e.fs,
		Clock:      clocktest.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		Logger:     zap.NewNop().Sugar(),
		Stats:      tally.NoopScope,
	})
	require.NoError(t, err)

	w, err := f.New(context.Background(), uuid.Must(uuid.NewV4()), _root)
	require.NoError(t, err)
	t.Cleanup(func() { w.Dispose(context.Background()) })
	e.workspace = w
	return w
}

func getTestWorkspace(t *testing.T, persisted entity.WorkspaceState) (*Workspace, *testEnv) {
	env := newTestEnv(t, gomock.NewController(t), persisted)
	env.ide.EXPECT().PublishStatus(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	return env.newWorkspace(t), env
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
