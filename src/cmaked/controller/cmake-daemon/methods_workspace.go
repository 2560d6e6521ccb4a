package cmakedaemon

import (
	"context"
	"fmt"

	"github.com/uber/cmake-lsp/src/cmaked/mapper"
	"go.lsp.dev/protocol"
	"go.uber.org/multierr"
)

// DidChangeWorkspaceFolders closes the removed folders before opening the added ones.
func (c *controller) DidChangeWorkspaceFolders(ctx context.Context, params *protocol.DidChangeWorkspaceFoldersParams) error {
	w, err := c.workspaceFromContext(ctx)
	if err != nil {
		return err
	}

	removed, err := mapper.WorkspaceFoldersToKeys(params.Event.Removed)
	if err != nil {
		return fmt.Errorf("mapping removed folders: %w", err)
	}
	added, err := mapper.WorkspaceFoldersToKeys(params.Event.Added)
	if err != nil {
		return fmt.Errorf("mapping added folders: %w", err)
	}

	var errs error
	for _, key := range removed {
		errs = multierr.Append(errs, w.RemoveFolder(ctx, key))
	}
	for _, key := range added {
		errs = multierr.Append(errs, w.AddFolder(ctx, key))
	}
	return errs
}

// DidChangeConfiguration applies the settings the workspace reacts to. Unrelated settings are ignored.
func (c *controller) DidChangeConfiguration(ctx context.Context, params *protocol.DidChangeConfigurationParams) error {
	w, err := c.workspaceFromContext(ctx)
	if err != nil {
		return err
	}

	settings, err := mapper.SettingsToWorkspaceSettings(params.Settings)
	if err != nil {
		return err
	}
	if settings.AutoSelectActiveFolder != nil {
		w.SetAutoSelect(*settings.AutoSelectActiveFolder)
	}
	return nil
}

// ExecuteCommand runs one of the commands advertised in the initialize result.
func (c *controller) ExecuteCommand(ctx context.Context, params *protocol.ExecuteCommandParams) (interface{}, error) {
	w, err := c.workspaceFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return w.ExecuteCommand(ctx, params.Command, params.Arguments)
}
