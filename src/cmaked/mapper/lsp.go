package mapper

import (
	"encoding/json"
	"fmt"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// RequestToInitializeParams maps the parameters from a jsonrpc2.Request into protocol.InitializeParams.
func RequestToInitializeParams(req jsonrpc2.Request) (*protocol.InitializeParams, error) {
	params := protocol.InitializeParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToInitializedParams maps the parameters from a jsonrpc2.Request into protocol.InitializedParams.
func RequestToInitializedParams(req jsonrpc2.Request) (*protocol.InitializedParams, error) {
	params := protocol.InitializedParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToDidChangeWorkspaceFoldersParams maps the parameters from a jsonrpc2.Request into protocol.DidChangeWorkspaceFoldersParams.
func RequestToDidChangeWorkspaceFoldersParams(req jsonrpc2.Request) (*protocol.DidChangeWorkspaceFoldersParams, error) {
	params := protocol.DidChangeWorkspaceFoldersParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToDidOpenTextDocumentParams maps the parameters from a jsonrpc2.Request into protocol.DidOpenTextDocumentParams.
func RequestToDidOpenTextDocumentParams(req jsonrpc2.Request) (*protocol.DidOpenTextDocumentParams, error) {
	params := protocol.DidOpenTextDocumentParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToDidChangeConfigurationParams maps the parameters from a jsonrpc2.Request into protocol.DidChangeConfigurationParams.
func RequestToDidChangeConfigurationParams(req jsonrpc2.Request) (*protocol.DidChangeConfigurationParams, error) {
	params := protocol.DidChangeConfigurationParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToExecuteCommandParams maps the parameters from a jsonrpc2.Request into protocol.ExecuteCommandParams.
// Arguments are kept as raw JSON so that each command decodes them itself.
func RequestToExecuteCommandParams(req jsonrpc2.Request) (*protocol.ExecuteCommandParams, error) {
	params := protocol.ExecuteCommandParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}

	rawArgs := make([]interface{}, 0, len(params.Arguments))
	for _, arg := range params.Arguments {
		rawArg, err := json.Marshal(arg)
		if err != nil {
			return nil, wrapErrParse(err)
		}
		rawArgs = append(rawArgs, json.RawMessage(rawArg))
	}

	params.Arguments = rawArgs
	return &params, nil
}

// InitializeResultAppendExecuteCommandProvider appends commands to an InitializeResult, failing on duplicates.
func InitializeResultAppendExecuteCommandProvider(initResult *protocol.InitializeResult, commands []string) error {
	if initResult.Capabilities.ExecuteCommandProvider == nil {
		initResult.Capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{}
	}

	provider := initResult.Capabilities.ExecuteCommandProvider
	seen := make(map[string]struct{}, len(provider.Commands)+len(commands))
	for _, cmd := range provider.Commands {
		seen[cmd] = struct{}{}
	}
	for _, cmd := range commands {
		if _, ok := seen[cmd]; ok {
			return fmt.Errorf("command %q in ExecuteCommandOptions already exists and cannot be duplicated", cmd)
		}
		seen[cmd] = struct{}{}
		provider.Commands = append(provider.Commands, cmd)
	}
	return nil
}

// WorkspaceSettings are the client settings the daemon reacts to, under the "cmake" section.
// Nil fields were not sent.
type WorkspaceSettings struct {
	AutoSelectActiveFolder *bool `json:"autoSelectActiveFolder"`
}

type settingsJSON struct {
	CMake *WorkspaceSettings `json:"cmake"`
}

// SettingsToWorkspaceSettings decodes the settings of a workspace/didChangeConfiguration notification.
func SettingsToWorkspaceSettings(settings interface{}) (WorkspaceSettings, error) {
	if settings == nil {
		return WorkspaceSettings{}, nil
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return WorkspaceSettings{}, wrapErrParse(err)
	}
	var s settingsJSON
	if err := json.Unmarshal(raw, &s); err != nil {
		return WorkspaceSettings{}, wrapErrParse(err)
	}
	if s.CMake == nil {
		return WorkspaceSettings{}, nil
	}
	return *s.CMake, nil
}

func wrapErrParse(err error) error {
	return fmt.Errorf("%s: %w", jsonrpc2.ErrParse, err)
}
