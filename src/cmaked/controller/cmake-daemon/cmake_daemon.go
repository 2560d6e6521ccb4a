// Package cmakedaemon implements the cmaked business logic for each editor connection.
package cmakedaemon

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/uber/cmake-lsp/src/cmaked/controller/workspace"
	ideclient "github.com/uber/cmake-lsp/src/cmaked/gateway/ide-client"
	"github.com/uber/cmake-lsp/src/cmaked/internal/clock"
	"github.com/uber/cmake-lsp/src/cmaked/internal/errors"
	"github.com/uber/cmake-lsp/src/cmaked/mapper"
	"github.com/uber/cmake-lsp/src/cmaked/repository/client"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_idleTimeoutMinutesKey = "idleTimeoutMinutes"

	_serverName = "CMake Tools Daemon"
)

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// Controller orchestrates the business logic for each request.
type Controller interface {
	// LSP Methods defined per protocol.
	Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error)
	Initialized(ctx context.Context, params *protocol.InitializedParams) error
	Shutdown(ctx context.Context) error
	Exit(ctx context.Context) error

	// Workspace related methods.
	DidChangeWorkspaceFolders(ctx context.Context, params *protocol.DidChangeWorkspaceFoldersParams) error
	DidChangeConfiguration(ctx context.Context, params *protocol.DidChangeConfigurationParams) error
	ExecuteCommand(ctx context.Context, params *protocol.ExecuteCommandParams) (interface{}, error)

	// Document related methods.
	DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error

	// Custom methods for use within this service.
	RequestFullShutdown(ctx context.Context) error
	InitSession(ctx context.Context, conn jsonrpc2.Conn) (uuid.UUID, error)
	EndSession(ctx context.Context, id uuid.UUID) error
}

// Params are inbound parameters to initialize a new controller.
type Params struct {
	fx.In

	Shutdowner fx.Shutdowner
	Clients    client.Repository
	IdeGateway ideclient.Gateway
	Workspaces workspace.Factory
	Clock      clock.Clock
	Config     config.Provider
	Logger     *zap.SugaredLogger
}

type controller struct {
	clients    client.Repository
	ideGateway ideclient.Gateway
	workspaces workspace.Factory
	shutdowner fx.Shutdowner
	clock      clock.Clock
	logger     *zap.SugaredLogger

	fullShutdown bool

	idleTimer   clock.Timer
	idleTimerMu sync.Mutex
	idleTimeout time.Duration

	mu     sync.Mutex
	active map[uuid.UUID]*workspace.Workspace
}

// New constructs a new top-level controller for the service.
func New(p Params) (Controller, error) {
	var timeoutMinutesRaw int64
	if err := p.Config.Get(_idleTimeoutMinutesKey).Populate(&timeoutMinutesRaw); err != nil || timeoutMinutesRaw == 0 {
		return nil, fmt.Errorf("unable to get idle timeout from config: %w", err)
	}

	c := &controller{
		clients:     p.Clients,
		ideGateway:  p.IdeGateway,
		workspaces:  p.Workspaces,
		shutdowner:  p.Shutdowner,
		clock:       p.Clock,
		logger:      p.Logger.With("component", "cmake-daemon"),
		idleTimeout: time.Duration(timeoutMinutesRaw) * time.Minute,
		active:      make(map[uuid.UUID]*workspace.Workspace),
	}
	c.refreshIdleTimer(context.Background())
	return c, nil
}

// workspaceFromContext returns the workspace of the client that sent the request.
func (c *controller) workspaceFromContext(ctx context.Context) (*workspace.Workspace, error) {
	id, err := mapper.ContextToClientUUID(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting client from context: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.active[id]
	if !ok {
		return nil, &errors.UUIDNotFoundError{UUID: id}
	}
	return w, nil
}

// refreshIdleTimer ensures that the service shuts down after a defined inactivity period with no connections.
func (c *controller) refreshIdleTimer(ctx context.Context) error {
	c.idleTimerMu.Lock()
	defer c.idleTimerMu.Unlock()

	// First call leaves the timer running prior to the first connection.
	if c.idleTimer == nil {
		c.idleTimer = c.clock.AfterFunc(c.idleTimeout, c.onIdle)
		return nil
	}

	count, err := c.clients.ClientCount(ctx)
	if err != nil {
		return fmt.Errorf("error resetting timeout: %w", err)
	}

	c.idleTimer.Stop()
	if count == 0 {
		c.idleTimer = c.clock.AfterFunc(c.idleTimeout, c.onIdle)
	}
	return nil
}

func (c *controller) onIdle() {
	c.logger.Info("Shutdown signal received.")
	if err := c.shutdowner.Shutdown(); err != nil {
		os.Exit(1)
	}
}
