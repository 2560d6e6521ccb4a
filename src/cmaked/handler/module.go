package handler

import (
	controller "github.com/uber/cmake-lsp/src/cmaked/controller"
	cmakedaemon "github.com/uber/cmake-lsp/src/cmaked/controller/cmake-daemon"
	handler "github.com/uber/cmake-lsp/src/cmaked/handler/cmake-daemon"
	"github.com/uber/cmake-lsp/src/cmaked/repository/client"
	"github.com/uber/cmake-lsp/src/cmaked/repository/state"
	"go.uber.org/fx"
)

// Module provides the cmaked server into an Fx application.
var Module = fx.Options(
	controller.Module,
	fx.Provide(client.New),
	fx.Provide(state.New),
	fx.Provide(handler.New),
	fx.Invoke(func(m handler.Handler) {}),
	fx.Invoke(func(m cmakedaemon.Controller) {}),
)
