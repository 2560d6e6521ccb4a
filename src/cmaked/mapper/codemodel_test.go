package mapper

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/cmake-lsp/src/cmake-lib/cache"
	"github.com/uber/cmake-lsp/src/cmake-lib/model"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
	"github.com/uber/cmake-lsp/src/cmaked/factory"
)

const _sampleCache = `# This is the CMakeCache file.
CMAKE_BUILD_TYPE:STRING=Debug
CMAKE_CXX_COMPILER:FILEPATH=/opt/gcc/bin/g++
`

func TestCodeModelToOutline(t *testing.T) {
	cm := factory.CodeModel("/src/app", "app")
	entry := CodeModelToOutline("/src/app", "all", "app", cm)
	assert.Equal(t, entity.OutlineEntry{
		Folder:           "/src/app",
		DefaultTarget:    "all",
		LaunchTargetName: "app",
		CodeModel:        cm,
	}, entry)
}

func TestCodeModelToNavigation(t *testing.T) {
	c, err := cache.Parse(strings.NewReader(_sampleCache))
	require.NoError(t, err)

	cm := factory.CodeModel("/src/app", "app", "tool")
	cm.Configurations[0].Projects[0].Targets = append(cm.Configurations[0].Projects[0].Targets, model.Target{
		Name: "clib",
		Type: model.TargetTypeStaticLibrary,
		FileGroups: []model.FileGroup{
			{Language: "C", Defines: []string{"NDEBUG"}, Sources: []string{"/src/app/clib.c"}},
			{Sources: []string{"/src/app/README.md"}},
		},
	})
	kit := factory.Kit("GCC 13")

	nav := CodeModelToNavigation("/src/app", kit, c, cm, "Debug")

	assert.Equal(t, entity.FolderKey("/src/app"), nav.Folder)
	assert.Equal(t, "GCC 13", nav.Kit)
	assert.Equal(t, "/opt/gcc/bin/g++", nav.CompilerPath)
	assert.Equal(t, "Debug", nav.Cache["CMAKE_BUILD_TYPE"])
	assert.Same(t, cm, nav.CodeModel)

	want := map[string]entity.SourceInfo{
		"/src/app/app.cpp": {
			Target:       "app",
			Language:     "CXX",
			CompilerPath: "/opt/gcc/bin/g++",
			CompileFlags: []string{"-g", "-O0"},
			Includes:     []string{"/src/app/include"},
		},
		"/src/app/tool.cpp": {
			Target:       "tool",
			Language:     "CXX",
			CompilerPath: "/opt/gcc/bin/g++",
			CompileFlags: []string{"-g", "-O0"},
			Includes:     []string{"/src/app/include"},
		},
		"/src/app/clib.c": {
			Target:       "clib",
			Language:     "C",
			CompilerPath: "/usr/bin/gcc",
			CompileFlags: []string{},
			Defines:      []string{"NDEBUG"},
		},
	}
	if diff := cmp.Diff(want, nav.Sources); diff != "" {
		t.Errorf("unexpected sources (-want +got):\n%s", diff)
	}
}

func TestCodeModelToNavigationWithoutConfigurations(t *testing.T) {
	c, err := cache.Parse(strings.NewReader(""))
	require.NoError(t, err)

	nav := CodeModelToNavigation("/src/app", entity.UnspecifiedKit(), c, &model.CodeModel{}, "Debug")
	assert.Empty(t, nav.Sources)
	assert.Empty(t, nav.CompilerPath)
}
