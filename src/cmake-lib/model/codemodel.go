package model

import (
	"sort"
)

// TargetType mirrors the target kinds reported by CMake.
type TargetType string

const (
	TargetTypeExecutable    TargetType = "EXECUTABLE"
	TargetTypeStaticLibrary TargetType = "STATIC_LIBRARY"
	TargetTypeSharedLibrary TargetType = "SHARED_LIBRARY"
	TargetTypeModuleLibrary TargetType = "MODULE_LIBRARY"
	TargetTypeObjectLibrary TargetType = "OBJECT_LIBRARY"
	TargetTypeInterface     TargetType = "INTERFACE_LIBRARY"
	TargetTypeUtility       TargetType = "UTILITY"
)

// CodeModel is a snapshot of the targets CMake generated for one build directory.
// A CodeModel is never modified after it is returned by a reader; a new configure produces a new value.
type CodeModel struct {
	SourceDir      string          `json:"sourceDir"`
	BuildDir       string          `json:"buildDir"`
	Configurations []Configuration `json:"configurations"`
}

// Configuration holds the projects generated for one build type (e.g. Debug).
type Configuration struct {
	Name     string    `json:"name"`
	Projects []Project `json:"projects"`
}

// Project is a CMake project() and the targets declared in it.
type Project struct {
	Name      string   `json:"name"`
	SourceDir string   `json:"sourceDir"`
	Targets   []Target `json:"targets"`
}

// Target is a single buildable CMake target.
type Target struct {
	Name       string      `json:"name"`
	Type       TargetType  `json:"type"`
	SourceDir  string      `json:"sourceDir"`
	BuildDir   string      `json:"buildDir"`
	Artifacts  []string    `json:"artifacts,omitempty"`
	FileGroups []FileGroup `json:"fileGroups,omitempty"`
}

// FileGroup is a set of sources that share compile settings.
type FileGroup struct {
	Language     string   `json:"language,omitempty"`
	CompileFlags string   `json:"compileFlags,omitempty"`
	Includes     []string `json:"includes,omitempty"`
	Defines      []string `json:"defines,omitempty"`
	Sysroot      string   `json:"sysroot,omitempty"`
	Sources      []string `json:"sources"`
	IsGenerated  bool     `json:"isGenerated,omitempty"`
}

// IsExecutable reports whether the target produces a launchable binary.
func (t Target) IsExecutable() bool {
	return t.Type == TargetTypeExecutable
}

// Configuration returns the configuration with the given name, or the first one when the name is empty or missing.
func (c *CodeModel) Configuration(name string) (Configuration, bool) {
	if c == nil || len(c.Configurations) == 0 {
		return Configuration{}, false
	}
	for _, cfg := range c.Configurations {
		if cfg.Name == name {
			return cfg, true
		}
	}
	return c.Configurations[0], true
}

// Targets returns every target of the configuration, across projects, in declaration order.
func (c Configuration) Targets() []Target {
	var targets []Target
	for _, p := range c.Projects {
		targets = append(targets, p.Targets...)
	}
	return targets
}

// TargetNames returns the sorted, de-duplicated target names across all configurations.
func (c *CodeModel) TargetNames() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var names []string
	for _, cfg := range c.Configurations {
		for _, t := range cfg.Targets() {
			if _, ok := seen[t.Name]; ok {
				continue
			}
			seen[t.Name] = struct{}{}
			names = append(names, t.Name)
		}
	}
	sort.Strings(names)
	return names
}

// ExecutableTargets returns the executable targets of the named configuration.
func (c *CodeModel) ExecutableTargets(configuration string) []Target {
	cfg, ok := c.Configuration(configuration)
	if !ok {
		return nil
	}
	var result []Target
	for _, t := range cfg.Targets() {
		if t.IsExecutable() {
			result = append(result, t)
		}
	}
	return result
}

// FindTarget looks up a target by name within the named configuration.
func (c *CodeModel) FindTarget(configuration, name string) (Target, bool) {
	cfg, ok := c.Configuration(configuration)
	if !ok {
		return Target{}, false
	}
	for _, t := range cfg.Targets() {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}
