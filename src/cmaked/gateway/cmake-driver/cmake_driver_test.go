package cmakedriver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/cmake-lsp/src/cmake-lib/model"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
	testfactory "github.com/uber/cmake-lsp/src/cmaked/factory"
	"github.com/uber/cmake-lsp/src/cmaked/internal/event"
	"github.com/uber/cmake-lsp/src/cmaked/internal/executor/executormock"
	"github.com/uber/cmake-lsp/src/cmaked/internal/fs/fsmock"
	"go.uber.org/config"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const _folder = entity.FolderKey("/src/app")

func TestNewFactory(t *testing.T) {
	tests := []struct {
		name     string
		cfg      map[string]interface{}
		wantErr  bool
		buildDir string
	}{
		{
			name:     "defaults",
			cfg:      map[string]interface{}{},
			buildDir: "/src/app/build",
		},
		{
			name: "relative build directory",
			cfg: map[string]interface{}{
				"cmake": map[string]interface{}{"buildDirectory": "out/cmake"},
			},
			buildDir: "/src/app/out/cmake",
		},
		{
			name: "absolute build directory",
			cfg: map[string]interface{}{
				"cmake": map[string]interface{}{"buildDirectory": "/tmp/builds"},
			},
			buildDir: "/tmp/builds",
		},
		{
			name: "invalid block",
			cfg: map[string]interface{}{
				"cmake": "not a map",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			fs := fsmock.NewMockFileSystem(ctrl)
			fs.EXPECT().FileExists(gomock.Any()).Return(false, nil).AnyTimes()

			provider, err := config.NewStaticProvider(tt.cfg)
			require.NoError(t, err)

			f, err := NewFactory(Params{
				Config:   provider,
				Executor: executormock.NewMockExecutor(ctrl),
				FS:       fs,
				Logger:   zap.NewNop().Sugar(),
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			d, err := f.New(_folder)
			require.NoError(t, err)
			assert.Equal(t, tt.buildDir, d.BuildDirectory())
			assert.False(t, d.Configured())
			assert.Nil(t, d.CodeModel())
			assert.Equal(t, []string{"all"}, d.Targets())
		})
	}
}

func TestNewLoadsExistingBuildDirectory(t *testing.T) {
	ctrl := gomock.NewController(t)
	fs := fsmock.NewMockFileSystem(ctrl)
	fs.EXPECT().FileExists(gomock.Any()).Return(true, nil).AnyTimes()

	provider, err := config.NewStaticProvider(map[string]interface{}{})
	require.NoError(t, err)
	f, err := NewFactory(Params{
		Config:   provider,
		Executor: executormock.NewMockExecutor(ctrl),
		FS:       fs,
		Logger:   zap.NewNop().Sugar(),
	})
	require.NoError(t, err)

	// The directory has a cache but no file api replies.
	d, err := f.New(entity.FolderKey(t.TempDir()))
	require.NoError(t, err)
	assert.True(t, d.Configured())
	assert.True(t, d.CTestEnabled())
	assert.Nil(t, d.CodeModel())
}

func TestConfigure(t *testing.T) {
	cm := testfactory.CodeModel(_folder, "app", "tool")

	t.Run("success", func(t *testing.T) {
		d, mockExec, fs := getTestDriver(t)
		d.SetKit(entity.Kit{
			Name:          "GCC 13",
			Compilers:     map[string]string{"C": "/usr/bin/gcc", "CXX": "/usr/bin/g++"},
			Environment:   map[string]string{"CC": "gcc"},
			Generator:     "Ninja",
			ToolchainFile: "/src/app/toolchain.cmake",
		})
		d.readCodeModel = func(string) (*model.CodeModel, error) { return cm, nil }
		fs.EXPECT().FileExists("/src/app/build/CTestTestfile.cmake").Return(true, nil)

		mockExec.EXPECT().Stream(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(streamExpect(t, []string{
			"cmake", "-S", "/src/app", "-B", "/src/app/build", "-G", "Ninja",
			"-DCMAKE_BUILD_TYPE:STRING=Release",
			"-DCMAKE_CXX_COMPILER:FILEPATH=/usr/bin/g++",
			"-DCMAKE_C_COMPILER:FILEPATH=/usr/bin/gcc",
			"-DCMAKE_TOOLCHAIN_FILE:FILEPATH=/src/app/toolchain.cmake",
			"-Wno-dev",
		}, "CC=gcc", 0))

		var models []*model.CodeModel
		var ctest []bool
		d.CodeModelChanged().Subscribe(event.FireLate, func(m *model.CodeModel) { models = append(models, m) })
		d.CTestEnabledChanged().Subscribe(event.FireLate, func(v bool) { ctest = append(ctest, v) })

		code, err := d.Configure(context.Background(), "Release", io.Discard)
		require.NoError(t, err)
		assert.Equal(t, 0, code)
		assert.Equal(t, []*model.CodeModel{cm}, models)
		assert.Equal(t, []bool{true}, ctest)
		assert.Equal(t, cm, d.CodeModel())
		assert.Equal(t, []string{"all", "app", "tool"}, d.Targets())
		assert.True(t, d.CTestEnabled())
	})

	t.Run("non-zero exit keeps previous model", func(t *testing.T) {
		d, mockExec, _ := getTestDriver(t)
		d.readCodeModel = func(string) (*model.CodeModel, error) {
			t.Fatal("code model must not be read after a failed configure")
			return nil, nil
		}
		mockExec.EXPECT().Stream(gomock.Any(), gomock.Any(), gomock.Any()).Return(1, nil)

		fired := false
		d.CodeModelChanged().Subscribe(event.FireLate, func(*model.CodeModel) { fired = true })

		code, err := d.Configure(context.Background(), "", io.Discard)
		require.NoError(t, err)
		assert.Equal(t, 1, code)
		assert.False(t, fired)
	})

	t.Run("process start failure", func(t *testing.T) {
		d, mockExec, _ := getTestDriver(t)
		mockExec.EXPECT().Stream(gomock.Any(), gomock.Any(), gomock.Any()).Return(-1, errors.New("executable file not found"))

		_, err := d.Configure(context.Background(), "", io.Discard)
		assert.ErrorContains(t, err, "executable file not found")
	})

	t.Run("query write failure", func(t *testing.T) {
		d, _, _ := getTestDriver(t)
		d.writeQuery = func(string) error { return errors.New("read-only") }

		_, err := d.Configure(context.Background(), "", io.Discard)
		assert.ErrorContains(t, err, "writing file api query")
	})

	t.Run("unreadable reply", func(t *testing.T) {
		d, mockExec, _ := getTestDriver(t)
		d.readCodeModel = func(string) (*model.CodeModel, error) { return nil, errors.New("no reply") }
		mockExec.EXPECT().Stream(gomock.Any(), gomock.Any(), gomock.Any()).Return(0, nil)

		code, err := d.Configure(context.Background(), "", io.Discard)
		assert.Error(t, err)
		assert.Equal(t, -1, code)
	})
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{
			name: "default target",
			want: []string{"cmake", "--build", "/src/app/build", "--config", "Debug", "--", "-j4"},
		},
		{
			name:   "all target",
			target: "all",
			want:   []string{"cmake", "--build", "/src/app/build", "--config", "Debug", "--", "-j4"},
		},
		{
			name:   "named target",
			target: "app",
			want:   []string{"cmake", "--build", "/src/app/build", "--config", "Debug", "--target", "app", "--", "-j4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, mockExec, _ := getTestDriver(t)
			mockExec.EXPECT().Stream(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(streamExpect(t, tt.want, "", 2))

			code, err := d.Build(context.Background(), "", tt.target, io.Discard)
			require.NoError(t, err)
			assert.Equal(t, 2, code)
		})
	}
}

func TestClean(t *testing.T) {
	d, mockExec, _ := getTestDriver(t)
	mockExec.EXPECT().Stream(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(streamExpect(t,
		[]string{"cmake", "--build", "/src/app/build", "--config", "Release", "--target", "clean", "--", "-j4"}, "", 0))

	code, err := d.Clean(context.Background(), "Release", io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestInstall(t *testing.T) {
	d, mockExec, _ := getTestDriver(t)
	mockExec.EXPECT().Stream(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(streamExpect(t,
		[]string{"cmake", "--install", "/src/app/build", "--config", "Debug"}, "", 0))

	code, err := d.Install(context.Background(), "", io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestCTest(t *testing.T) {
	output := `Test project /src/app/build
    Start 1: lexer
1/3 Test #1: lexer ............................   Passed    0.01 sec
    Start 2: parser
2/3 Test #2: parser ...........................***Failed    0.02 sec
    Start 3: printer
3/3 Test #3: printer ..........................   Passed    0.01 sec

67% tests passed, 1 tests failed out of 3

The following tests FAILED:
	  2 - parser (Failed)
`
	d, mockExec, _ := getTestDriver(t)
	mockExec.EXPECT().Stream(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(cmd *exec.Cmd, env []string, w io.Writer) (int, error) {
			assert.Equal(t, []string{"ctest", "--test-dir", "/src/app/build", "--output-on-failure", "-C", "Debug"}, cmd.Args)
			_, err := io.WriteString(w, output)
			return 8, err
		})

	var results []entity.TestResults
	d.TestResultsChanged().Subscribe(event.FireLate, func(r entity.TestResults) { results = append(results, r) })

	var out bytes.Buffer
	code, err := d.CTest(context.Background(), "", &out)
	require.NoError(t, err)
	assert.Equal(t, 8, code)
	assert.Equal(t, output, out.String())
	assert.Equal(t, []entity.TestResults{{Passed: 2, Failed: 1, Total: 3, FailedTests: []string{"parser"}}}, results)
}

func TestParseTestResults(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   entity.TestResults
		ok     bool
	}{
		{
			name:   "all passed",
			output: "100% tests passed, 0 tests failed out of 4\n",
			want:   entity.TestResults{Passed: 4, Total: 4},
			ok:     true,
		},
		{
			name:   "single failure",
			output: "0% tests passed, 1 test failed out of 1\n\nThe following tests FAILED:\n\t  1 - smoke (Timeout)\n",
			want:   entity.TestResults{Failed: 1, Total: 1, FailedTests: []string{"smoke"}},
			ok:     true,
		},
		{
			name:   "no tests",
			output: "No tests were found!!!\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTestResults(tt.output)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunRejectsOverlap(t *testing.T) {
	d, mockExec, _ := getTestDriver(t)
	assert.False(t, d.Stop())

	started := make(chan struct{})
	exited := make(chan struct{})
	mockExec.EXPECT().Stream(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(cmd *exec.Cmd, env []string, w io.Writer) (int, error) {
			assert.Equal(t, _waitDelay, cmd.WaitDelay)
			close(started)
			<-exited
			return -1, nil
		})

	done := make(chan error)
	go func() {
		_, err := d.Build(context.Background(), "", "", io.Discard)
		done <- err
	}()
	<-started

	_, err := d.Build(context.Background(), "", "", io.Discard)
	assert.ErrorContains(t, err, "already running")

	// A stopped process keeps the driver reserved until it has exited.
	assert.True(t, d.Stop())
	assert.True(t, d.Stop())
	_, err = d.Build(context.Background(), "", "", io.Discard)
	assert.ErrorContains(t, err, "already running")

	close(exited)
	assert.NoError(t, <-done)
	assert.False(t, d.Stop())

	mockExec.EXPECT().Stream(gomock.Any(), gomock.Any(), gomock.Any()).Return(0, nil)
	code, err := d.Build(context.Background(), "", "", io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func streamExpect(t *testing.T, args []string, env string, code int) func(*exec.Cmd, []string, io.Writer) (int, error) {
	return func(cmd *exec.Cmd, environ []string, w io.Writer) (int, error) {
		assert.Equal(t, args, cmd.Args)
		assert.Equal(t, string(_folder), cmd.Dir)
		if env != "" {
			assert.Contains(t, environ, env)
		}
		return code, nil
	}
}

func getTestDriver(t *testing.T) (*cmakeDriver, *executormock.MockExecutor, *fsmock.MockFileSystem) {
	ctrl := gomock.NewController(t)
	mockExec := executormock.NewMockExecutor(ctrl)
	fs := fsmock.NewMockFileSystem(ctrl)

	d := &cmakeDriver{
		folder: _folder,
		cfg: Config{
			CMakePath:        "cmake",
			CTestPath:        "ctest",
			BuildDirectory:   "build",
			DefaultBuildType: "Debug",
			ConfigureArgs:    []string{"-Wno-dev"},
			BuildArgs:        []string{"-j4"},
		},
		buildDir:      filepath.Join(string(_folder), "build"),
		executor:      mockExec,
		fs:            fs,
		logger:        zap.NewNop().Sugar(),
		readCodeModel: func(string) (*model.CodeModel, error) { return nil, errors.New("no reply") },
		writeQuery:    func(string) error { return nil },
		kit:           entity.UnspecifiedKit(),
	}
	return d, mockExec, fs
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
