package cmakedaemon

import (
	"context"

	"github.com/uber/cmake-lsp/src/cmaked/mapper"
	"go.lsp.dev/jsonrpc2"
)

func (r *jsonRPCRouter) DidOpen(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToDidOpenTextDocumentParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	err = r.cmakedaemon.DidOpen(ctx, params)
	return reply(ctx, nil, err)
}
