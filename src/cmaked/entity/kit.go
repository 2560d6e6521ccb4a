package entity

import (
	"sort"
)

// UnspecifiedKitName is the kit that leaves compiler selection to CMake.
const UnspecifiedKitName = "__unspec__"

// Kit is an immutable toolchain description.
type Kit struct {
	Name          string            `yaml:"name" json:"name"`
	Compilers     map[string]string `yaml:"compilers,omitempty" json:"compilers,omitempty"`
	Environment   map[string]string `yaml:"environmentVariables,omitempty" json:"environmentVariables,omitempty"`
	Generator     string            `yaml:"preferredGenerator,omitempty" json:"preferredGenerator,omitempty"`
	ToolchainFile string            `yaml:"toolchainFile,omitempty" json:"toolchainFile,omitempty"`
}

// UnspecifiedKit returns the kit that lets CMake pick a compiler.
func UnspecifiedKit() Kit {
	return Kit{Name: UnspecifiedKitName}
}

// IsUnspecified reports whether this is the kit that lets CMake pick a compiler.
func (k Kit) IsUnspecified() bool {
	return k.Name == UnspecifiedKitName
}

// DisplayName is shown to the user in place of the reserved unspecified kit name.
func (k Kit) DisplayName() string {
	if k.IsUnspecified() {
		return "[Unspecified]"
	}
	return k.Name
}

// Compiler returns the compiler path for lang ("C", "CXX", ...).
func (k Kit) Compiler(lang string) (string, bool) {
	c, ok := k.Compilers[lang]
	return c, ok && c != ""
}

// CacheDefinitions returns the -D cache entries the kit contributes to a configure, keyed by cache name.
func (k Kit) CacheDefinitions() map[string]string {
	defs := make(map[string]string, len(k.Compilers)+1)
	for lang, path := range k.Compilers {
		if path != "" {
			defs["CMAKE_"+lang+"_COMPILER:FILEPATH"] = path
		}
	}
	if k.ToolchainFile != "" {
		defs["CMAKE_TOOLCHAIN_FILE:FILEPATH"] = k.ToolchainFile
	}
	return defs
}

// EnvironmentList returns the kit environment as sorted KEY=VALUE pairs.
func (k Kit) EnvironmentList() []string {
	env := make([]string, 0, len(k.Environment))
	for key, val := range k.Environment {
		env = append(env, key+"="+val)
	}
	sort.Strings(env)
	return env
}

// Equal compares kits by value.
func (k Kit) Equal(other Kit) bool {
	return k.Name == other.Name &&
		k.Generator == other.Generator &&
		k.ToolchainFile == other.ToolchainFile &&
		equalMaps(k.Compilers, other.Compilers) &&
		equalMaps(k.Environment, other.Environment)
}

func equalMaps(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for key, val := range a {
		if other, ok := b[key]; !ok || other != val {
			return false
		}
	}
	return true
}
