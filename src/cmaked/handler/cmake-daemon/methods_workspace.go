package cmakedaemon

import (
	"context"

	"github.com/uber/cmake-lsp/src/cmaked/mapper"
	"go.lsp.dev/jsonrpc2"
)

func (r *jsonRPCRouter) DidChangeWorkspaceFolders(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToDidChangeWorkspaceFoldersParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	err = r.cmakedaemon.DidChangeWorkspaceFolders(ctx, params)
	return reply(ctx, nil, err)
}

func (r *jsonRPCRouter) DidChangeConfiguration(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToDidChangeConfigurationParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	err = r.cmakedaemon.DidChangeConfiguration(ctx, params)
	return reply(ctx, nil, err)
}

// ExecuteCommand replies from its own goroutine. Commands may prompt the user, and the
// connection must keep reading to receive the answer.
func (r *jsonRPCRouter) ExecuteCommand(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToExecuteCommandParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()

		result, err := r.cmakedaemon.ExecuteCommand(ctx, params)
		if err != nil {
			r.logger.Infow("command failed", "command", params.Command, "error", err)
		}
		if replyErr := reply(ctx, result, mapper.ErrorToJSONRPC(err)); replyErr != nil {
			r.logger.Warnw("replying to command", "command", params.Command, "error", replyErr)
		}
	}()
	return nil
}
