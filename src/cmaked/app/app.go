// Package app assembles the cmaked application.
package app

import (
	"context"
	"time"

	"github.com/uber-go/tally"
	"github.com/uber/cmake-lsp/src/cmaked/gateway"
	"github.com/uber/cmake-lsp/src/cmaked/handler"
	"github.com/uber/cmake-lsp/src/cmaked/internal/clock"
	"github.com/uber/cmake-lsp/src/cmaked/internal/core"
	"github.com/uber/cmake-lsp/src/cmaked/internal/executor"
	"github.com/uber/cmake-lsp/src/cmaked/internal/fs"
	"github.com/uber/cmake-lsp/src/cmaked/internal/jsonrpcfx"
	"github.com/uber/cmake-lsp/src/cmaked/internal/logfilewriter"
	"github.com/uber/cmake-lsp/src/cmaked/internal/serverinfofile"
	"go.uber.org/fx"
)

// Module defines the cmaked application module.
var Module = fx.Options(
	gateway.Module, // outbounds
	handler.Module, // inbounds
	jsonrpcfx.Module,
	fs.Module,
	executor.Module,
	serverinfofile.Module,
	logfilewriter.Module,
	core.ConfigModule,
	core.LoggerModule,
	fx.Provide(clock.New),
	fx.Provide(func(lc fx.Lifecycle) tally.Scope {
		rs, closer := tally.NewRootScope(tally.ScopeOptions{
			Tags: map[string]string{
				"service": "cmaked",
			},
		}, 1*time.Second)

		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return closer.Close()
			},
		})

		return rs
	}),
	fx.Decorate(decorateEnvContext),
	fx.Decorate(decorateConfigProvider),
	fx.Provide(func() Context {
		return Context{
			Environment:        EnvLocal,
			RuntimeEnvironment: EnvLocal,
		}
	}),
)
