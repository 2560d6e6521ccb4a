// Package fileapi writes CMake file API queries and reads their replies into a model.CodeModel.
package fileapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/uber/cmake-lsp/src/cmake-lib/model"
)

const (
	// ClientName is the file API client directory used for queries.
	ClientName = "client-cmaked"

	_apiDir        = ".cmake/api/v1"
	_queryFile     = "query.json"
	_indexPrefix   = "index-"
	_kindCodeModel = "codemodel"
)

// ErrNoReply is returned when the build directory has no file API reply, e.g. before the first configure.
var ErrNoReply = errors.New("no CMake file API reply found")

type query struct {
	Requests []request `json:"requests"`
}

type request struct {
	Kind    string `json:"kind"`
	Version int    `json:"version"`
}

// Index is the subset of the reply index this package consumes.
type Index struct {
	CMake struct {
		Version struct {
			String string `json:"string"`
		} `json:"version"`
		Generator struct {
			Name        string `json:"name"`
			MultiConfig bool   `json:"multiConfig"`
		} `json:"generator"`
	} `json:"cmake"`
	Objects []indexObject `json:"objects"`
}

type indexObject struct {
	Kind    string `json:"kind"`
	Version struct {
		Major int `json:"major"`
	} `json:"version"`
	JSONFile string `json:"jsonFile"`
}

type codeModelReply struct {
	Paths struct {
		Source string `json:"source"`
		Build  string `json:"build"`
	} `json:"paths"`
	Configurations []struct {
		Name     string `json:"name"`
		Projects []struct {
			Name             string `json:"name"`
			DirectoryIndexes []int  `json:"directoryIndexes"`
			TargetIndexes    []int  `json:"targetIndexes"`
		} `json:"projects"`
		Directories []struct {
			Source string `json:"source"`
			Build  string `json:"build"`
		} `json:"directories"`
		Targets []struct {
			Name     string `json:"name"`
			JSONFile string `json:"jsonFile"`
		} `json:"targets"`
	} `json:"configurations"`
}

type targetReply struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Paths struct {
		Source string `json:"source"`
		Build  string `json:"build"`
	} `json:"paths"`
	Artifacts []struct {
		Path string `json:"path"`
	} `json:"artifacts"`
	CompileGroups []struct {
		Language                string `json:"language"`
		CompileCommandFragments []struct {
			Fragment string `json:"fragment"`
		} `json:"compileCommandFragments"`
		Includes []struct {
			Path string `json:"path"`
		} `json:"includes"`
		Defines []struct {
			Define string `json:"define"`
		} `json:"defines"`
		Sysroot *struct {
			Path string `json:"path"`
		} `json:"sysroot"`
	} `json:"compileGroups"`
	Sources []struct {
		Path              string `json:"path"`
		CompileGroupIndex *int   `json:"compileGroupIndex"`
		IsGenerated       bool   `json:"isGenerated"`
	} `json:"sources"`
}

// QueryPath returns the query file location for buildDir.
func QueryPath(buildDir string) string {
	return filepath.Join(buildDir, _apiDir, "query", ClientName, _queryFile)
}

// ReplyDir returns the reply directory for buildDir.
func ReplyDir(buildDir string) string {
	return filepath.Join(buildDir, _apiDir, "reply")
}

// WriteQuery asks CMake to produce codemodel and cache replies on the next configure of buildDir.
func WriteQuery(buildDir string) error {
	q := query{Requests: []request{
		{Kind: _kindCodeModel, Version: 2},
		{Kind: "cache", Version: 2},
	}}
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}

	path := QueryPath(buildDir)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("creating query directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ReadIndex reads the newest reply index of buildDir.
func ReadIndex(buildDir string) (*Index, error) {
	dir := ReplyDir(buildDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoReply
		}
		return nil, err
	}

	var indexes []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), _indexPrefix) && strings.HasSuffix(e.Name(), ".json") {
			indexes = append(indexes, e.Name())
		}
	}
	if len(indexes) == 0 {
		return nil, ErrNoReply
	}
	// Index names embed a timestamp, so the lexically greatest is the newest.
	sort.Strings(indexes)

	var idx Index
	if err := readJSON(filepath.Join(dir, indexes[len(indexes)-1]), &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// ReadCodeModel converts the newest codemodel-v2 reply of buildDir.
func ReadCodeModel(buildDir string) (*model.CodeModel, error) {
	idx, err := ReadIndex(buildDir)
	if err != nil {
		return nil, err
	}

	var jsonFile string
	for _, obj := range idx.Objects {
		if obj.Kind == _kindCodeModel && obj.Version.Major == 2 {
			jsonFile = obj.JSONFile
		}
	}
	if jsonFile == "" {
		return nil, ErrNoReply
	}

	replyDir := ReplyDir(buildDir)
	var cmReply codeModelReply
	if err := readJSON(filepath.Join(replyDir, jsonFile), &cmReply); err != nil {
		return nil, err
	}

	cm := &model.CodeModel{
		SourceDir: cmReply.Paths.Source,
		BuildDir:  cmReply.Paths.Build,
	}
	for _, cfgReply := range cmReply.Configurations {
		cfg := model.Configuration{Name: cfgReply.Name}
		for _, projReply := range cfgReply.Projects {
			proj := model.Project{Name: projReply.Name}
			if len(projReply.DirectoryIndexes) > 0 && projReply.DirectoryIndexes[0] < len(cfgReply.Directories) {
				proj.SourceDir = resolve(cm.SourceDir, cfgReply.Directories[projReply.DirectoryIndexes[0]].Source)
			}
			for _, ti := range projReply.TargetIndexes {
				if ti < 0 || ti >= len(cfgReply.Targets) {
					return nil, fmt.Errorf("project %q references unknown target index %d", projReply.Name, ti)
				}
				target, err := readTarget(replyDir, cfgReply.Targets[ti].JSONFile, cm.SourceDir, cm.BuildDir)
				if err != nil {
					return nil, err
				}
				proj.Targets = append(proj.Targets, target)
			}
			cfg.Projects = append(cfg.Projects, proj)
		}
		cm.Configurations = append(cm.Configurations, cfg)
	}
	return cm, nil
}

func readTarget(replyDir, jsonFile, sourceDir, buildDir string) (model.Target, error) {
	var tr targetReply
	if err := readJSON(filepath.Join(replyDir, jsonFile), &tr); err != nil {
		return model.Target{}, err
	}

	t := model.Target{
		Name:      tr.Name,
		Type:      model.TargetType(tr.Type),
		SourceDir: resolve(sourceDir, tr.Paths.Source),
		BuildDir:  resolve(buildDir, tr.Paths.Build),
	}
	for _, a := range tr.Artifacts {
		t.Artifacts = append(t.Artifacts, resolve(buildDir, a.Path))
	}

	groups := make([]model.FileGroup, len(tr.CompileGroups))
	for i, cg := range tr.CompileGroups {
		var fragments []string
		for _, f := range cg.CompileCommandFragments {
			fragments = append(fragments, strings.TrimSpace(f.Fragment))
		}
		g := model.FileGroup{
			Language:     cg.Language,
			CompileFlags: strings.Join(fragments, " "),
		}
		for _, inc := range cg.Includes {
			g.Includes = append(g.Includes, resolve(sourceDir, inc.Path))
		}
		for _, d := range cg.Defines {
			g.Defines = append(g.Defines, d.Define)
		}
		if cg.Sysroot != nil {
			g.Sysroot = cg.Sysroot.Path
		}
		groups[i] = g
	}

	var ungrouped model.FileGroup
	for _, src := range tr.Sources {
		path := resolve(sourceDir, src.Path)
		if src.CompileGroupIndex == nil || *src.CompileGroupIndex >= len(groups) {
			ungrouped.Sources = append(ungrouped.Sources, path)
			continue
		}
		g := &groups[*src.CompileGroupIndex]
		g.Sources = append(g.Sources, path)
		g.IsGenerated = g.IsGenerated || src.IsGenerated
	}
	t.FileGroups = groups
	if len(ungrouped.Sources) > 0 {
		t.FileGroups = append(t.FileGroups, ungrouped)
	}
	return t, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return nil
}

func resolve(base, p string) string {
	if p == "" {
		return base
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
