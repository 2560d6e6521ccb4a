package controller

import (
	cmakedaemon "github.com/uber/cmake-lsp/src/cmaked/controller/cmake-daemon"
	foldersession "github.com/uber/cmake-lsp/src/cmaked/controller/folder-session"
	"github.com/uber/cmake-lsp/src/cmaked/controller/kits"
	"github.com/uber/cmake-lsp/src/cmaked/controller/workspace"
	"go.uber.org/fx"
)

var Module = fx.Options(
	cmakedaemon.Module,
	foldersession.Module,
	kits.Module,
	workspace.Module,
)
