package executor

import (
	"bytes"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func fxExecutor(t *testing.T) (Executor, *observer.ObservedLogs) {
	var e Executor
	core, recorded := observer.New(zap.InfoLevel)
	logger := zap.New(core).Sugar()

	fxtest.New(t,
		fx.Supply(logger),
		Module,
		fx.Populate(&e),
	).RequireStart().RequireStop()

	return e, recorded
}

func requireBinary(t *testing.T, name string) {
	if _, err := exec.LookPath(name); errors.Is(err, exec.ErrNotFound) {
		t.Skipf("no %s available", name)
	}
}

func TestRunCommand(t *testing.T) {
	e, recorded := fxExecutor(t)

	t.Run("logs path and args", func(t *testing.T) {
		requireBinary(t, "true")
		binPath, _ := exec.LookPath("true")

		cmd := exec.Command("true", "--build", "build")
		cmd.Dir = "/"
		cmd.Stdin = strings.NewReader("input")
		assert.NoError(t, e.RunCommand(cmd, []string{"CC=clang"}))

		logs := recorded.TakeAll()
		require.Len(t, logs, 1)
		assert.Equal(t, map[string]interface{}{
			"component": "executor",
			"Path":      binPath,
			"Dir":       "/",
			"Args":      []interface{}{"--build", "build"},
			"Stdin":     "input",
		}, logs[0].ContextMap())
		assert.Equal(t, []string{"CC=clang"}, cmd.Env)
	})

	t.Run("missing exec func", func(t *testing.T) {
		e := NewExecutor(WithExecFunc(nil))
		assert.NoError(t, e.RunCommand(exec.Command("definitely-not-run"), nil))
	})
}

func TestRun(t *testing.T) {
	e, _ := fxExecutor(t)

	t.Run("captures output", func(t *testing.T) {
		requireBinary(t, "echo")
		stdout, stderr, code, err := e.Run(exec.Command("echo", "3.28.1"))
		assert.NoError(t, err)
		assert.Equal(t, "3.28.1\n", stdout)
		assert.Empty(t, stderr)
		assert.Equal(t, 0, code)
	})

	t.Run("unknown command", func(t *testing.T) {
		stdout, stderr, code, err := e.Run(exec.Command("no_valid_command_"))
		assert.Empty(t, stdout)
		assert.Empty(t, stderr)
		assert.Equal(t, -1, code)
		assert.Error(t, err)
	})
}

func TestStream(t *testing.T) {
	e, recorded := fxExecutor(t)

	t.Run("success", func(t *testing.T) {
		requireBinary(t, "sh")
		var out bytes.Buffer
		code, err := e.Stream(exec.Command("sh", "-c", "echo configured; echo warn 1>&2"), nil, &out)
		assert.NoError(t, err)
		assert.Equal(t, 0, code)
		assert.Contains(t, out.String(), "configured")
		assert.Contains(t, out.String(), "warn")
	})

	t.Run("non-zero exit is a result", func(t *testing.T) {
		requireBinary(t, "sh")
		recorded.TakeAll()
		var out bytes.Buffer
		code, err := e.Stream(exec.Command("sh", "-c", "exit 3"), []string{"A=B"}, &out)
		assert.NoError(t, err)
		assert.Equal(t, 3, code)
		assert.Equal(t, 1, recorded.FilterMessage("Exit").Len())
	})

	t.Run("start failure is an error", func(t *testing.T) {
		var out bytes.Buffer
		code, err := e.Stream(exec.Command("no_valid_command_"), nil, &out)
		assert.Error(t, err)
		assert.Equal(t, -1, code)
	})

	t.Run("custom exec func", func(t *testing.T) {
		e := NewExecutor(WithExecFunc(func(cmd *exec.Cmd) error {
			_, err := cmd.Stdout.Write([]byte("fake"))
			return err
		}))
		var out bytes.Buffer
		code, err := e.Stream(exec.Command("cmake"), nil, &out)
		assert.NoError(t, err)
		assert.Equal(t, 0, code)
		assert.Equal(t, "fake", out.String())
	})
}
