package mapper

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/uber/cmake-lsp/src/cmaked/entity"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// URIToPath returns the filesystem path of a file URI.
func URIToPath(u uri.URI) (string, error) {
	if !strings.HasPrefix(string(u), uri.FileScheme+"://") {
		return "", fmt.Errorf("only file URIs are supported, got %q", u)
	}
	if _, err := url.ParseRequestURI(string(u)); err != nil {
		return "", fmt.Errorf("parsing URI %q: %w", u, err)
	}
	return filepath.Clean(u.Filename()), nil
}

// URIToFolderKey maps a folder URI to its folder identity.
func URIToFolderKey(u uri.URI) (entity.FolderKey, error) {
	path, err := URIToPath(u)
	if err != nil {
		return "", err
	}
	return PathToFolderKey(path)
}

// PathToFolderKey canonicalizes an absolute filesystem path into a folder identity.
// Symbolic links are not resolved.
func PathToFolderKey(path string) (entity.FolderKey, error) {
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("folder path %q is not absolute", path)
	}
	return entity.FolderKey(filepath.Clean(path)), nil
}

// WorkspaceFoldersToKeys maps workspace folders to folder keys, preserving order and dropping duplicates.
func WorkspaceFoldersToKeys(folders []protocol.WorkspaceFolder) ([]entity.FolderKey, error) {
	keys := make([]entity.FolderKey, 0, len(folders))
	seen := make(map[entity.FolderKey]struct{}, len(folders))
	for _, folder := range folders {
		key, err := URIToFolderKey(uri.URI(folder.URI))
		if err != nil {
			return nil, err
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys, nil
}

// InitializeParamsToFolderKeys returns the folders opened at startup, falling back to the root URI.
func InitializeParamsToFolderKeys(params *protocol.InitializeParams) ([]entity.FolderKey, error) {
	if len(params.WorkspaceFolders) > 0 {
		return WorkspaceFoldersToKeys(params.WorkspaceFolders)
	}
	if params.RootURI == "" {
		return nil, nil
	}
	key, err := URIToFolderKey(params.RootURI)
	if err != nil {
		return nil, err
	}
	return []entity.FolderKey{key}, nil
}
