package factory

import (
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/uber/cmake-lsp/src/cmake-lib/model"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
	"go.lsp.dev/jsonrpc2"
)

// UUID is a user-defined factory for a random uuid.UUID.
func UUID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

// JSONRPCRequest is a user-defined factory for a JSON-RPC request containing the specified method and parameters.
func JSONRPCRequest(method string, params interface{}) jsonrpc2.Request {
	req, _ := jsonrpc2.NewCall(jsonrpc2.NewNumberID(5), method, params)
	return req
}

// JSONRPCNotification is a factory for a JSON-RPC notification containing the specified method and parameters.
func JSONRPCNotification(method string, params interface{}) jsonrpc2.Request {
	req, _ := jsonrpc2.NewNotification(method, params)
	return req
}

// Kit is a factory for a kit with C and C++ compilers under /usr/bin.
func Kit(name string) entity.Kit {
	return entity.Kit{
		Name: name,
		Compilers: map[string]string{
			"C":   "/usr/bin/gcc",
			"CXX": "/usr/bin/g++",
		},
	}
}

// CodeModel is a factory for a single-configuration code model with the given executable targets.
func CodeModel(folder entity.FolderKey, targets ...string) *model.CodeModel {
	src := string(folder)
	build := src + "/build"

	project := model.Project{Name: folder.Name(), SourceDir: src}
	for _, name := range targets {
		project.Targets = append(project.Targets, model.Target{
			Name:      name,
			Type:      model.TargetTypeExecutable,
			SourceDir: src,
			BuildDir:  build,
			Artifacts: []string{fmt.Sprintf("%s/%s", build, name)},
			FileGroups: []model.FileGroup{{
				Language:     "CXX",
				CompileFlags: "-g -O0",
				Includes:     []string{src + "/include"},
				Sources:      []string{fmt.Sprintf("%s/%s.cpp", src, name)},
			}},
		})
	}

	return &model.CodeModel{
		SourceDir: src,
		BuildDir:  build,
		Configurations: []model.Configuration{{
			Name:     "Debug",
			Projects: []model.Project{project},
		}},
	}
}
