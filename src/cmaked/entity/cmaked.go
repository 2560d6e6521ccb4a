// Package entity contains the domain types shared across the cmaked service.
package entity

import (
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/uber/cmake-lsp/src/cmake-lib/model"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

type keyType string

// ClientContextKey indicates the key to be used to identify the client UUID in the context.
const ClientContextKey keyType = "ClientUUID"

// FolderKey identifies one opened project folder: an absolute, cleaned path without a trailing separator.
type FolderKey string

// String implements fmt.Stringer.
func (k FolderKey) String() string {
	return string(k)
}

// Name is the last path element, used as the display name of the folder.
func (k FolderKey) Name() string {
	return filepath.Base(string(k))
}

// Contains reports whether path lies inside the folder, or is the folder itself.
func (k FolderKey) Contains(path string) bool {
	root := string(k)
	if path == root {
		return true
	}
	if strings.HasSuffix(root, string(filepath.Separator)) {
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// Client entity representing a single connected editor.
type Client struct {
	UUID             uuid.UUID                  `json:"uuid" zap:"uuid"`
	InitializeParams *protocol.InitializeParams `json:"-" zap:"-"`
	Conn             jsonrpc2.Conn              `json:"-" zap:"-"`
	WorkspaceRoot    string                     `json:"workspaceRoot" zap:"workspaceRoot"`
	Env              []string                   `json:"-" zap:"-"`
}

// ClientName identifies the name that the will be set in the initialization parameters for a given client.
type ClientName string

const (
	// ClientNameVSCode is the name of the VSCode client.
	ClientNameVSCode ClientName = "Visual Studio Code"
	// ClientNameCursor is the name of the Cursor client.
	ClientNameCursor ClientName = "Cursor"
)

// IsVSCodeBased returns true if the client is a VS Code based client.
func (c ClientName) IsVSCodeBased() bool {
	return c == ClientNameVSCode || c == ClientNameCursor
}

// Status is the state of one folder session as shown on the status line.
type Status struct {
	Folder        FolderKey `json:"folder"`
	FolderName    string    `json:"folderName"`
	Kit           string    `json:"kit,omitempty"`
	BuildType     string    `json:"buildType"`
	Busy          bool      `json:"busy"`
	Operation     string    `json:"operation,omitempty"`
	Message       string    `json:"message,omitempty"`
	DefaultTarget string    `json:"defaultTarget,omitempty"`
	LaunchTarget  string    `json:"launchTarget,omitempty"`
	CTestEnabled  bool      `json:"ctestEnabled"`
}

// TestResults summarizes the last ctest run of a folder.
type TestResults struct {
	Passed      int      `json:"passed"`
	Failed      int      `json:"failed"`
	Total       int      `json:"total"`
	FailedTests []string `json:"failedTests,omitempty"`
}

// OutlineEntry is the per-folder input of the project outline.
type OutlineEntry struct {
	Folder           FolderKey        `json:"folder"`
	DefaultTarget    string           `json:"defaultTarget"`
	LaunchTargetName string           `json:"launchTargetName"`
	CodeModel        *model.CodeModel `json:"codeModel"`
}

// SourceInfo carries what a language server needs to compile one source file.
type SourceInfo struct {
	Target       string   `json:"target"`
	Language     string   `json:"language"`
	CompilerPath string   `json:"compilerPath,omitempty"`
	CompileFlags []string `json:"compileFlags,omitempty"`
	Includes     []string `json:"includes,omitempty"`
	Defines      []string `json:"defines,omitempty"`
	Sysroot      string   `json:"sysroot,omitempty"`
}

// NavigationData is the snapshot handed to the navigation-data provider for one folder.
// Cache, CodeModel and CompilerPath always come from the same configure run.
type NavigationData struct {
	Folder       FolderKey             `json:"folder"`
	Kit          string                `json:"kit"`
	CompilerPath string                `json:"compilerPath"`
	Cache        map[string]string     `json:"cache"`
	CodeModel    *model.CodeModel      `json:"codeModel"`
	Sources      map[string]SourceInfo `json:"sources"`
}

// WorkspaceState is persisted per workspace across daemon restarts.
type WorkspaceState struct {
	ActiveFolder FolderKey            `yaml:"activeFolder,omitempty"`
	FolderKits   map[FolderKey]string `yaml:"folderKits,omitempty"`
}
