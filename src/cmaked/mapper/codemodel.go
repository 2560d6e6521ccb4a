package mapper

import (
	"strings"

	"github.com/uber/cmake-lsp/src/cmake-lib/cache"
	"github.com/uber/cmake-lsp/src/cmake-lib/model"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
)

var _compilerLanguages = []string{"CXX", "C", "CUDA", "OBJCXX", "OBJC", "Fortran"}

// CodeModelToOutline builds the outline entry of a folder.
func CodeModelToOutline(folder entity.FolderKey, defaultTarget, launchTarget string, cm *model.CodeModel) entity.OutlineEntry {
	return entity.OutlineEntry{
		Folder:           folder,
		DefaultTarget:    defaultTarget,
		LaunchTargetName: launchTarget,
		CodeModel:        cm,
	}
}

// CodeModelToNavigation builds the navigation snapshot of a folder from one configure run.
// Compiler paths come from the cache first and the kit second.
func CodeModelToNavigation(folder entity.FolderKey, kit entity.Kit, c *cache.Cache, cm *model.CodeModel, buildType string) entity.NavigationData {
	nav := entity.NavigationData{
		Folder:    folder,
		Kit:       kit.Name,
		Cache:     c.Values(),
		CodeModel: cm,
		Sources:   make(map[string]entity.SourceInfo),
	}
	nav.CompilerPath = compilerFor(c, kit, "")

	cfg, ok := cm.Configuration(buildType)
	if !ok {
		return nav
	}
	for _, target := range cfg.Targets() {
		for _, group := range target.FileGroups {
			if group.Language == "" {
				continue
			}
			info := entity.SourceInfo{
				Target:       target.Name,
				Language:     group.Language,
				CompilerPath: compilerFor(c, kit, group.Language),
				CompileFlags: strings.Fields(group.CompileFlags),
				Includes:     group.Includes,
				Defines:      group.Defines,
				Sysroot:      group.Sysroot,
			}
			for _, src := range group.Sources {
				// First target wins for sources shared between targets.
				if _, ok := nav.Sources[src]; !ok {
					nav.Sources[src] = info
				}
			}
		}
	}
	return nav
}

func compilerFor(c *cache.Cache, kit entity.Kit, lang string) string {
	langs := _compilerLanguages
	if lang != "" {
		langs = []string{lang}
	}
	for _, l := range langs {
		if path := c.CompilerPath(l); path != "" {
			return path
		}
	}
	for _, l := range langs {
		if path, ok := kit.Compiler(l); ok {
			return path
		}
	}
	return ""
}
