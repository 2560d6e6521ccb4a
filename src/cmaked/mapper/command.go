package mapper

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/uber/cmake-lsp/src/cmaked/entity"
	"github.com/uber/cmake-lsp/src/cmaked/internal/errors"
	"go.lsp.dev/uri"
)

// CommandArgs are the decoded arguments of a workspace/executeCommand request.
// A command accepts either a bare string value or an object naming a folder.
type CommandArgs struct {
	Folder entity.FolderKey
	Value  string
}

type commandArgsJSON struct {
	Folder string `json:"folder"`
	Value  string `json:"value"`
}

// ArgumentsToCommandArgs decodes the first command argument.
func ArgumentsToCommandArgs(args []interface{}) (CommandArgs, error) {
	if len(args) == 0 {
		return CommandArgs{}, nil
	}

	raw, err := rawArgument(args[0])
	if err != nil {
		return CommandArgs{}, err
	}

	var value string
	if err := json.Unmarshal(raw, &value); err == nil {
		return CommandArgs{Value: value}, nil
	}

	var obj commandArgsJSON
	if err := json.Unmarshal(raw, &obj); err != nil {
		return CommandArgs{}, fmt.Errorf("%w: %v", errors.InvalidArgumentError, err)
	}

	result := CommandArgs{Value: obj.Value}
	if obj.Folder != "" {
		result.Folder, err = folderArgumentToKey(obj.Folder)
		if err != nil {
			return CommandArgs{}, fmt.Errorf("%w: %v", errors.InvalidArgumentError, err)
		}
	}
	return result, nil
}

func rawArgument(arg interface{}) (json.RawMessage, error) {
	switch a := arg.(type) {
	case json.RawMessage:
		return a, nil
	case []byte:
		return a, nil
	default:
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.InvalidArgumentError, err)
		}
		return raw, nil
	}
}

// folderArgumentToKey accepts both file URIs and absolute paths.
func folderArgumentToKey(folder string) (entity.FolderKey, error) {
	if strings.HasPrefix(folder, uri.FileScheme+"://") {
		return URIToFolderKey(uri.URI(folder))
	}
	return PathToFolderKey(folder)
}
