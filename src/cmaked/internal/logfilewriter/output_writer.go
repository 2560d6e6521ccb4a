package logfilewriter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/uber/cmake-lsp/src/cmaked/internal/fs"
	"github.com/uber/cmake-lsp/src/cmaked/internal/serverinfofile"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	_fmtOutputKey = "output:%s"
	_outputDir    = "cmaked-output"
)

var _unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// Factory opens human readable output logs, one per name.
// Each open log is advertised in the server info file so the editor can tail it.
type Factory interface {
	Open(name string) (io.WriteCloser, error)
}

// Params define the dependencies for the Factory.
type Params struct {
	fx.In

	FS             fs.FileSystem
	Lifecycle      fx.Lifecycle
	ServerInfoFile serverinfofile.ServerInfoFile
}

type factory struct {
	fs       fs.FileSystem
	infoFile serverinfofile.ServerInfoFile
	baseDir  string

	mu   sync.Mutex
	open map[*outputWriter]struct{}
}

// New creates a Factory. Logs still open at shutdown are closed and removed.
func New(p Params) Factory {
	f := &factory{
		fs:       p.FS,
		infoFile: p.ServerInfoFile,
		baseDir:  filepath.Join(os.TempDir(), _outputDir),
		open:     make(map[*outputWriter]struct{}),
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: f.onStop,
	})
	return f
}

// Open creates a new log file for name. Writes are split into lines and timestamped.
func (f *factory) Open(name string) (io.WriteCloser, error) {
	if err := f.fs.MkdirAll(f.baseDir); err != nil {
		return nil, err
	}

	logFile, err := f.fs.TempFile(f.baseDir, sanitize(name)+"-*.log")
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf(_fmtOutputKey, name)
	if err := f.infoFile.UpdateField(key, logFile.Name()); err != nil {
		logFile.Close()
		f.fs.Remove(logFile.Name())
		return nil, err
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(logFile),
		zap.InfoLevel,
	)

	w := &outputWriter{
		factory: f,
		key:     key,
		file:    logFile,
		logger:  zap.New(core).Sugar(),
	}

	f.mu.Lock()
	f.open[w] = struct{}{}
	f.mu.Unlock()
	return w, nil
}

func (f *factory) onStop(ctx context.Context) error {
	f.mu.Lock()
	writers := make([]*outputWriter, 0, len(f.open))
	for w := range f.open {
		writers = append(writers, w)
	}
	f.mu.Unlock()

	var errs error
	for _, w := range writers {
		errs = multierr.Append(errs, w.Close())
	}
	return errs
}

func sanitize(name string) string {
	s := strings.Trim(_unsafeChars.ReplaceAllString(name, "_"), "_")
	if s == "" {
		return "output"
	}
	return s
}

type outputWriter struct {
	factory *factory
	key     string
	file    *os.File
	logger  *zap.SugaredLogger

	closeOnce sync.Once
	closeErr  error
}

// Write logs each non-empty line of p individually.
func (o *outputWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) > 0 {
			o.logger.Info(line)
		}
	}
	return len(p), nil
}

// Close flushes and deletes the log file and withdraws it from the server info file.
func (o *outputWriter) Close() error {
	o.closeOnce.Do(func() {
		o.factory.mu.Lock()
		delete(o.factory.open, o)
		o.factory.mu.Unlock()

		// Sync on a closed or special file may fail spuriously.
		_ = o.logger.Sync()
		o.closeErr = multierr.Combine(
			o.file.Close(),
			o.factory.infoFile.RemoveField(o.key),
			o.factory.fs.Remove(o.file.Name()),
		)
	})
	return o.closeErr
}
