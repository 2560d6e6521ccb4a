package model

import (
	"github.com/gofrs/uuid"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// Client is the repository layer model for an individual editor connection.
type Client struct {
	UUID             uuid.UUID
	InitializeParams *protocol.InitializeParams
	Conn             jsonrpc2.Conn
	WorkspaceRoot    string
	Env              []string
}

// WorkspaceState is the on-disk form of one workspace's persisted choices.
type WorkspaceState struct {
	ActiveFolder string            `yaml:"activeFolder,omitempty"`
	FolderKits   map[string]string `yaml:"folderKits,omitempty"`
}

// StateFile is the on-disk layout of the state file, keyed by workspace identity.
type StateFile struct {
	Version    int                       `yaml:"version"`
	Workspaces map[string]WorkspaceState `yaml:"workspaces"`
}
