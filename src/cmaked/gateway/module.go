package gateway

import (
	cmakedriver "github.com/uber/cmake-lsp/src/cmaked/gateway/cmake-driver"
	ideclient "github.com/uber/cmake-lsp/src/cmaked/gateway/ide-client"
	"go.uber.org/fx"
)

// Module provides the outbound gateways: the editor connections and the CMake tool drivers.
var Module = fx.Options(
	fx.Provide(ideclient.New),
	cmakedriver.Module,
)
