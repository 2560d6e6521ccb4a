// Package dispatcher runs commands against the active folder, a named folder or every open folder.
package dispatcher

import (
	"context"
	"fmt"

	"github.com/uber-go/tally"
	foldersession "github.com/uber/cmake-lsp/src/cmaked/controller/folder-session"
	"github.com/uber/cmake-lsp/src/cmaked/controller/kits"
	"github.com/uber/cmake-lsp/src/cmaked/controller/registry"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
	cmakeerrors "github.com/uber/cmake-lsp/src/cmaked/internal/errors"
	"go.uber.org/zap"
)

// Kind selects which folders a Scope covers.
type Kind int

const (
	// KindActive targets the active folder.
	KindActive Kind = iota
	// KindAll targets every open folder in registry order.
	KindAll
	// KindFolder targets one named folder.
	KindFolder
)

// Scope names the folders a command runs against. The zero value is the active folder.
type Scope struct {
	kind   Kind
	folder entity.FolderKey
}

// OnActive targets the active folder.
func OnActive() Scope {
	return Scope{kind: KindActive}
}

// OnAll targets every open folder.
func OnAll() Scope {
	return Scope{kind: KindAll}
}

// OnFolder targets the folder key.
func OnFolder(key entity.FolderKey) Scope {
	return Scope{kind: KindFolder, folder: key}
}

// Kind returns the kind of the scope.
func (s Scope) Kind() Kind {
	return s.kind
}

// Folder returns the named folder of a KindFolder scope.
func (s Scope) Folder() entity.FolderKey {
	return s.folder
}

func (s Scope) String() string {
	switch s.kind {
	case KindAll:
		return "all"
	case KindFolder:
		return "folder:" + s.folder.String()
	default:
		return "active"
	}
}

// Op is a mutating operation on one session. A non-zero result is a failure.
type Op func(ctx context.Context, s *foldersession.Session) (int, error)

// QueryFunc reads one value of a session. nil is reported as null.
type QueryFunc func(ctx context.Context, s *foldersession.Session) *string

// ActiveSessions resolves the active session.
type ActiveSessions interface {
	ActiveSession() (*foldersession.Session, bool)
}

// Params define the dependencies of a Dispatcher.
type Params struct {
	Registry *registry.Registry
	Active   ActiveSessions
	Kits     kits.Controller
	Logger   *zap.SugaredLogger
	Stats    tally.Scope
}

// Dispatcher is the single entry point for running operations against sessions.
// Multi-folder runs are sequential and stop at the first failure.
type Dispatcher struct {
	registry *registry.Registry
	active   ActiveSessions
	kits     kits.Controller
	logger   *zap.SugaredLogger
	stats    tally.Scope
}

// New creates a Dispatcher.
func New(p Params) *Dispatcher {
	return &Dispatcher{
		registry: p.Registry,
		active:   p.Active,
		kits:     p.Kits,
		logger:   p.Logger.With("component", "dispatcher"),
		stats:    p.Stats.SubScope("dispatcher"),
	}
}

// Run runs op on every session of scope after making sure each has a kit.
// It returns the first non-zero result or error; later sessions are not run.
func (d *Dispatcher) Run(ctx context.Context, scope Scope, name string, op Op) (code int, err error) {
	scoped := d.stats.Tagged(map[string]string{"operation": name})
	sw := scoped.Timer("latency").Start()
	defer func() {
		sw.Stop()
		switch {
		case cmakeerrors.IsSessionBusy(err):
			scoped.Counter("busy").Inc(1)
		case err != nil, code != 0:
			scoped.Counter("failed").Inc(1)
		default:
			scoped.Counter("ok").Inc(1)
		}
	}()

	sessions, err := d.Resolve(scope)
	if err != nil {
		return 0, err
	}
	for _, s := range sessions {
		if err := d.ensureKit(ctx, s); err != nil {
			return 0, err
		}
		code, err := op(ctx, s)
		if err != nil {
			d.logger.Infow("operation failed", "operation", name, "folder", s.Key(), "error", err)
			return code, err
		}
		if code != 0 {
			d.logger.Infow("operation returned non-zero", "operation", name, "folder", s.Key(), "code", code)
			return code, nil
		}
	}
	return 0, nil
}

// RunOnActive runs op on the active folder.
func (d *Dispatcher) RunOnActive(ctx context.Context, name string, op Op) (int, error) {
	return d.Run(ctx, OnActive(), name, op)
}

// RunOnAll runs op on every open folder in registry order. With no folders open it returns 0.
func (d *Dispatcher) RunOnAll(ctx context.Context, name string, op Op) (int, error) {
	return d.Run(ctx, OnAll(), name, op)
}

// RunOnFolder runs op on the folder key.
func (d *Dispatcher) RunOnFolder(ctx context.Context, key entity.FolderKey, name string, op Op) (int, error) {
	return d.Run(ctx, OnFolder(key), name, op)
}

// RunSequence runs ops one after another on each session of scope.
// The first non-zero result stops the sequence and is returned.
func (d *Dispatcher) RunSequence(ctx context.Context, scope Scope, name string, ops ...Op) (int, error) {
	return d.Run(ctx, scope, name, func(ctx context.Context, s *foldersession.Session) (int, error) {
		for _, op := range ops {
			if code, err := op(ctx, s); err != nil || code != 0 {
				return code, err
			}
		}
		return 0, nil
	})
}

// Query reads q from every session of scope, one entry per session.
// Queries never prompt for a kit.
func (d *Dispatcher) Query(ctx context.Context, scope Scope, q QueryFunc) ([]*string, error) {
	sessions, err := d.Resolve(scope)
	if err != nil {
		return nil, err
	}
	results := make([]*string, 0, len(sessions))
	for _, s := range sessions {
		results = append(results, q(ctx, s))
	}
	return results, nil
}

// Resolve returns the sessions scope covers.
func (d *Dispatcher) Resolve(scope Scope) ([]*foldersession.Session, error) {
	switch scope.kind {
	case KindActive:
		s, ok := d.active.ActiveSession()
		if !ok {
			return nil, &cmakeerrors.NoActiveFolderError{}
		}
		return []*foldersession.Session{s}, nil
	case KindAll:
		return d.registry.Sessions(), nil
	case KindFolder:
		s, ok := d.registry.Get(scope.folder)
		if !ok {
			return nil, &cmakeerrors.FolderNotFoundError{Folder: scope.folder.String()}
		}
		return []*foldersession.Session{s}, nil
	default:
		return nil, fmt.Errorf("unknown scope kind %d", scope.kind)
	}
}

// ensureKit prompts for a kit when the session has none.
func (d *Dispatcher) ensureKit(ctx context.Context, s *foldersession.Session) error {
	if _, ok := s.Kit(); ok {
		return nil
	}
	kit, ok, err := d.kits.SelectKit(ctx, s.Key())
	if err != nil {
		return fmt.Errorf("selecting kit for %q: %w", s.Key(), err)
	}
	if !ok {
		return &cmakeerrors.NoKitSelectedError{Folder: s.Key().String()}
	}
	s.SetKit(ctx, kit)
	return nil
}
