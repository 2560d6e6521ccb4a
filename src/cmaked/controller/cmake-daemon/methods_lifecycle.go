package cmakedaemon

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
	"github.com/uber/cmake-lsp/src/cmaked/mapper"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/multierr"
)

// Initialize opens a workspace for the connection and a session for every folder it names.
func (c *controller) Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	cl, err := c.clients.GetFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting client from context: %w", err)
	}

	folders, err := mapper.InitializeParamsToFolderKeys(params)
	if err != nil {
		return nil, fmt.Errorf("mapping workspace folders: %w", err)
	}

	cl.InitializeParams = params
	if cl.WorkspaceRoot, err = workspaceRoot(params, folders); err != nil {
		return nil, err
	}
	if err := c.clients.Set(ctx, cl); err != nil {
		return nil, fmt.Errorf("setting updated client state: %w", err)
	}

	w, err := c.workspaces.New(ctx, cl.UUID, cl.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	for _, key := range folders {
		if err := w.AddFolder(ctx, key); err != nil {
			return nil, multierr.Append(fmt.Errorf("opening folder %q: %w", key, err), w.Dispose(ctx))
		}
	}

	c.mu.Lock()
	previous := c.active[cl.UUID]
	c.active[cl.UUID] = w
	c.mu.Unlock()
	if previous != nil {
		c.logger.Warnw("client initialized twice, replacing its workspace", "client", cl.UUID.String())
		if err := previous.Dispose(ctx); err != nil {
			c.logger.Warnw("disposing replaced workspace", "error", err)
		}
	}

	result := &protocol.InitializeResult{
		ServerInfo: &protocol.ServerInfo{
			Name: _serverName,
		},
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
			},
			Workspace: &protocol.ServerCapabilitiesWorkspace{
				WorkspaceFolders: &protocol.ServerCapabilitiesWorkspaceFolders{
					Supported:           true,
					ChangeNotifications: true,
				},
			},
		},
	}
	if err := mapper.InitializeResultAppendExecuteCommandProvider(result, w.Commands()); err != nil {
		return nil, fmt.Errorf("registering commands: %w", err)
	}

	c.logger.Infow("workspace opened", "client", cl.UUID.String(), "workspace", cl.WorkspaceRoot, "folders", len(folders))
	return result, nil
}

// Initialized is a no-op beyond logging, the workspace is ready once Initialize returns.
func (c *controller) Initialized(ctx context.Context, params *protocol.InitializedParams) error {
	w, err := c.workspaceFromContext(ctx)
	if err != nil {
		return err
	}

	active, ok := w.ActiveFolder()
	c.logger.Infow("client initialized", "workspace", w.Root(), "active", active, "hasActive", ok)
	return nil
}

// Shutdown stops the client's folder sessions. The connection stays usable until Exit.
func (c *controller) Shutdown(ctx context.Context) error {
	w, err := c.workspaceFromContext(ctx)
	if err != nil {
		return err
	}
	return w.Dispose(ctx)
}

// Exit will be used to either clean up from an individual connection, or shutdown the whole server.
func (c *controller) Exit(ctx context.Context) error {
	c.idleTimerMu.Lock()
	if c.fullShutdown {
		// Replace the timer with an expired one to trigger immediate shutdown.
		if c.idleTimer != nil {
			c.idleTimer.Stop()
		}
		c.idleTimer = c.clock.AfterFunc(0, c.onIdle)
		c.idleTimerMu.Unlock()
		return nil
	}
	c.idleTimerMu.Unlock()

	id, err := mapper.ContextToClientUUID(ctx)
	if err != nil {
		return fmt.Errorf("error during client exit: %w", err)
	}
	return c.EndSession(ctx, id)
}

// RequestFullShutdown will set the controller to treat subsequent Exit requests as requests to exit the entire process.
func (c *controller) RequestFullShutdown(ctx context.Context) error {
	c.idleTimerMu.Lock()
	defer c.idleTimerMu.Unlock()

	c.fullShutdown = true
	return nil
}

// InitSession registers a new connection and returns its UUID.
func (c *controller) InitSession(ctx context.Context, conn jsonrpc2.Conn) (uuid.UUID, error) {
	defer c.refreshIdleTimer(ctx)

	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}

	if err := c.ideGateway.RegisterClient(ctx, id, conn); err != nil {
		return uuid.Nil, err
	}
	if err := c.clients.Set(ctx, mapper.UUIDToClient(id, conn)); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// EndSession closes the client's workspace and forgets the connection. Safe to call more than once.
func (c *controller) EndSession(ctx context.Context, id uuid.UUID) error {
	defer c.refreshIdleTimer(ctx)

	c.mu.Lock()
	w, ok := c.active[id]
	delete(c.active, id)
	c.mu.Unlock()

	var err error
	if ok {
		err = w.Dispose(ctx)
	}
	if deregisterErr := c.ideGateway.DeregisterClient(ctx, id); deregisterErr != nil {
		c.logger.Errorw("deregistering client", "client", id.String(), "error", deregisterErr)
	}
	return multierr.Append(err, c.clients.Delete(ctx, id))
}

// workspaceRoot identifies the workspace by its root URI, falling back to its first folder.
func workspaceRoot(params *protocol.InitializeParams, folders []entity.FolderKey) (string, error) {
	if params.RootURI != "" {
		path, err := mapper.URIToPath(params.RootURI)
		if err != nil {
			return "", fmt.Errorf("mapping root URI: %w", err)
		}
		return path, nil
	}
	if len(folders) > 0 {
		return folders[0].String(), nil
	}
	return "", nil
}
