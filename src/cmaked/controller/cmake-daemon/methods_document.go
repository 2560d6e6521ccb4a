package cmakedaemon

import (
	"context"

	"github.com/uber/cmake-lsp/src/cmaked/mapper"
	"go.lsp.dev/protocol"
)

// DidOpen lets the active folder follow the document the user opened.
func (c *controller) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	w, err := c.workspaceFromContext(ctx)
	if err != nil {
		return err
	}

	path, err := mapper.URIToPath(params.TextDocument.URI)
	if err != nil {
		// Untitled and virtual documents belong to no folder.
		return nil
	}
	w.FocusChanged(ctx, path)
	return nil
}
