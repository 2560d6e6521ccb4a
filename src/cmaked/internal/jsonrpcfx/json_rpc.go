package jsonrpcfx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/uber/cmake-lsp/src/cmaked/internal/serverinfofile"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_configKeyAddress = "jsonrpc.address"
	_outputKey        = "lsp-address"
)

// Module is an fx module to handle JSON-RPC requests.
var Module = fx.Provide(New)

// JSONRPCModule accepts editor connections over TCP and hands each one to the registered ConnectionManager.
type JSONRPCModule interface {
	OnStart(ctx context.Context) error
	OnStop(ctx context.Context) error
	ServeStream(ctx context.Context, conn jsonrpc2.Conn) error
	RegisterConnectionManager(connectionManager ConnectionManager) error
}

// Router handles the requests of a single connection.
type Router interface {
	HandleReq(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error
	UUID() uuid.UUID
}

// ConnectionManager creates a Router for every new connection and cleans up after it closes.
type ConnectionManager interface {
	NewConnection(ctx context.Context, conn jsonrpc2.Conn) (router Router, err error)
	RemoveConnection(ctx context.Context, id uuid.UUID)
}

type module struct {
	address string

	mu            sync.Mutex
	connectionMgr ConnectionManager
	ln            net.Listener
	closing       bool

	logger         *zap.SugaredLogger
	serverInfoFile serverinfofile.ServerInfoFile
	shutdowner     fx.Shutdowner
}

// Params define values to be used by JSONRPCModule.
type Params struct {
	fx.In

	Config         config.Provider
	Lifecycle      fx.Lifecycle
	Logger         *zap.SugaredLogger
	ServerInfoFile serverinfofile.ServerInfoFile
	Shutdowner     fx.Shutdowner `optional:"true"`
}

// New creates a module that will listen on jsonrpc.address once the application starts.
func New(p Params) (JSONRPCModule, error) {
	if p.Lifecycle == nil || p.Config == nil {
		return nil, errors.New("required parameters are missing")
	}

	m := &module{
		logger:         p.Logger,
		serverInfoFile: p.ServerInfoFile,
		shutdowner:     p.Shutdowner,
	}

	if err := m.processConfig(p.Config); err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: m.OnStart,
		OnStop:  m.OnStop,
	})
	return m, nil
}

// OnStart binds the listener, publishes the bound address and begins accepting connections.
func (m *module) OnStart(ctx context.Context) error {
	ln, err := m.listen()
	if err != nil {
		return err
	}

	// With port 0 the bound address differs from the configured one.
	bound := ln.Addr().String()
	if err := m.serverInfoFile.UpdateField(_outputKey, bound); err != nil {
		ln.Close()
		return err
	}

	m.logger.Warnw("started JSON-RPC inbound", "address", bound)
	go m.serve(ln)
	return nil
}

// OnStop stops accepting new connections.
func (m *module) OnStop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closing = true
	if m.ln == nil {
		return nil
	}
	return m.ln.Close()
}

// ServeStream runs a single connection until the peer goes away.
func (m *module) ServeStream(ctx context.Context, conn jsonrpc2.Conn) error {
	m.mu.Lock()
	mgr := m.connectionMgr
	m.mu.Unlock()

	if mgr == nil {
		m.logger.Errorw("cannot serve connection, no connection manager set")
		return errors.New("cannot serve connection, no connection manager set")
	}

	router, err := mgr.NewConnection(ctx, conn)
	if err != nil {
		return err
	}
	id := router.UUID()
	m.logger.Infow("client connected", "uuid", id.String())
	conn.Go(ctx, router.HandleReq)

	<-conn.Done()

	mgr.RemoveConnection(ctx, id)
	m.logger.Infow("client disconnected", "uuid", id.String())
	return conn.Err()
}

// RegisterConnectionManager sets the connection manager. Only one may be registered.
func (m *module) RegisterConnectionManager(connectionMgr ConnectionManager) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connectionMgr != nil {
		return errors.New("cannot register a duplicate connection manager")
	}
	m.connectionMgr = connectionMgr
	return nil
}

func (m *module) listen() (net.Listener, error) {
	if m.address == "" {
		return nil, errors.New("listen called before address is set")
	}

	ln, err := net.Listen("tcp", m.address)
	if err != nil {
		return nil, fmt.Errorf("listening on %q: %w", m.address, err)
	}

	m.mu.Lock()
	m.ln = ln
	m.mu.Unlock()
	return ln, nil
}

// serve blocks until the listener fails. An unexpected failure shuts the application down.
func (m *module) serve(ln net.Listener) {
	err := jsonrpc2.Serve(context.Background(), ln, m, 0)

	m.mu.Lock()
	closing := m.closing
	m.mu.Unlock()
	if closing || err == nil {
		return
	}

	m.logger.Errorw("JSON-RPC inbound stopped", "error", err)
	if m.shutdowner != nil {
		m.shutdowner.Shutdown(fx.ExitCode(1))
	}
}

func (m *module) processConfig(cfg config.Provider) error {
	if err := cfg.Get(_configKeyAddress).Populate(&m.address); err != nil {
		return fmt.Errorf("getting config field %q: %w", _configKeyAddress, err)
	}

	if m.address == "" {
		return fmt.Errorf("missing field %q in config", _configKeyAddress)
	}
	return nil
}
