package mapper

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
	"github.com/uber/cmake-lsp/src/cmaked/internal/errors"
	"github.com/uber/cmake-lsp/src/cmaked/model"
	"go.lsp.dev/jsonrpc2"
)

// ClientToModel maps a Client entity to its model equivalent.
func ClientToModel(c *entity.Client) *model.Client {
	return &model.Client{
		UUID:             c.UUID,
		InitializeParams: c.InitializeParams,
		Conn:             c.Conn,
		WorkspaceRoot:    c.WorkspaceRoot,
		Env:              c.Env,
	}
}

// ModelToClient maps a model Client to its entity equivalent.
func ModelToClient(c *model.Client) (*entity.Client, error) {
	return &entity.Client{
		UUID:             c.UUID,
		InitializeParams: c.InitializeParams,
		Conn:             c.Conn,
		WorkspaceRoot:    c.WorkspaceRoot,
		Env:              c.Env,
	}, nil
}

// UUIDToClient initializes a new Client entity with the assigned uuid and connection.
func UUIDToClient(u uuid.UUID, conn jsonrpc2.Conn) *entity.Client {
	return &entity.Client{
		UUID: u,
		Conn: conn,
	}
}

// ContextToClientUUID extracts the client UUID from a context.
func ContextToClientUUID(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(entity.ClientContextKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, &errors.NoClientFoundError{}
	}
	return id, nil
}

// WorkspaceStateToModel maps persisted workspace choices to their on-disk form.
func WorkspaceStateToModel(s entity.WorkspaceState) model.WorkspaceState {
	m := model.WorkspaceState{ActiveFolder: string(s.ActiveFolder)}
	if len(s.FolderKits) > 0 {
		m.FolderKits = make(map[string]string, len(s.FolderKits))
		for folder, kit := range s.FolderKits {
			m.FolderKits[string(folder)] = kit
		}
	}
	return m
}

// ModelToWorkspaceState maps the on-disk form of workspace choices to the entity.
func ModelToWorkspaceState(m model.WorkspaceState) entity.WorkspaceState {
	s := entity.WorkspaceState{
		ActiveFolder: entity.FolderKey(m.ActiveFolder),
		FolderKits:   make(map[entity.FolderKey]string, len(m.FolderKits)),
	}
	for folder, kit := range m.FolderKits {
		s.FolderKits[entity.FolderKey(folder)] = kit
	}
	return s
}
