package workspace

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/uber/cmake-lsp/src/cmaked/controller/dispatcher"
	foldersession "github.com/uber/cmake-lsp/src/cmaked/controller/folder-session"
	"github.com/uber/cmake-lsp/src/cmaked/entity"
	cmakeerrors "github.com/uber/cmake-lsp/src/cmaked/internal/errors"
	"github.com/uber/cmake-lsp/src/cmaked/mapper"
	"go.lsp.dev/protocol"
)

// Commands accepted by workspace/executeCommand.
const (
	CommandConfigure           = "cmake.configure"
	CommandConfigureAll        = "cmake.configureAll"
	CommandBuild               = "cmake.build"
	CommandBuildAll            = "cmake.buildAll"
	CommandInstall             = "cmake.install"
	CommandInstallAll          = "cmake.installAll"
	CommandCTest               = "cmake.ctest"
	CommandCTestAll            = "cmake.ctestAll"
	CommandClean               = "cmake.clean"
	CommandCleanAll            = "cmake.cleanAll"
	CommandCleanRebuild        = "cmake.cleanRebuild"
	CommandCleanRebuildAll     = "cmake.cleanRebuildAll"
	CommandStop                = "cmake.stop"
	CommandStopAll             = "cmake.stopAll"
	CommandSelectKit           = "cmake.selectKit"
	CommandSetKitByName        = "cmake.setKitByName"
	CommandScanForKits         = "cmake.scanForKits"
	CommandSelectActiveFolder  = "cmake.selectActiveFolder"
	CommandSetDefaultTarget    = "cmake.setDefaultTarget"
	CommandSetLaunchTarget     = "cmake.setLaunchTarget"
	CommandSetBuildType        = "cmake.setBuildType"
	CommandLaunchTargetPath    = "cmake.launchTargetPath"
	CommandLaunchTargetPathAll = "cmake.launchTargetPathAll"
	CommandBuildDirectory      = "cmake.buildDirectory"
	CommandBuildDirectoryAll   = "cmake.buildDirectoryAll"
	CommandActiveFolderName    = "cmake.activeFolderName"
	CommandBuildType           = "cmake.buildType"
	CommandBuildKit            = "cmake.buildKit"
)

var _buildTypes = []string{"Debug", "Release", "RelWithDebInfo", "MinSizeRel"}

// command runs one named command. Mutating commands return an exit code, queries a *string or []*string.
type command func(ctx context.Context, args mapper.CommandArgs) (interface{}, error)

// Commands returns the names of all commands, sorted.
func (w *Workspace) Commands() []string {
	names := make([]string, 0, len(w.commands))
	for name := range w.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExecuteCommand runs the command name with the raw arguments of workspace/executeCommand.
func (w *Workspace) ExecuteCommand(ctx context.Context, name string, arguments []interface{}) (interface{}, error) {
	cmd, ok := w.commands[name]
	if !ok {
		return nil, &cmakeerrors.UnknownCommandError{Command: name}
	}
	args, err := mapper.ArgumentsToCommandArgs(arguments)
	if err != nil {
		return nil, fmt.Errorf("parsing arguments of %s: %w", name, err)
	}
	w.logger.Infow("executing command", "command", name, "folder", args.Folder)
	return cmd(ctx, args)
}

func (w *Workspace) commandTable() map[string]command {
	configure := func(ctx context.Context, s *foldersession.Session) (int, error) { return s.Configure(ctx) }
	install := func(ctx context.Context, s *foldersession.Session) (int, error) { return s.Install(ctx) }
	ctest := func(ctx context.Context, s *foldersession.Session) (int, error) { return s.CTest(ctx) }
	clean := func(ctx context.Context, s *foldersession.Session) (int, error) { return s.Clean(ctx) }
	launchTargetPath := func(ctx context.Context, s *foldersession.Session) *string {
		if path, ok := s.LaunchTargetPath(); ok {
			return &path
		}
		return nil
	}
	buildDirectory := func(ctx context.Context, s *foldersession.Session) *string {
		dir, err := s.BuildDirectory()
		if err != nil {
			return nil
		}
		return &dir
	}

	return map[string]command{
		CommandConfigure:       w.mutating(foldersession.OperationConfigure, false, fixed(configure)),
		CommandConfigureAll:    w.mutating(foldersession.OperationConfigure, true, fixed(configure)),
		CommandBuild:           w.mutating(foldersession.OperationBuild, false, build),
		CommandBuildAll:        w.mutating(foldersession.OperationBuild, true, build),
		CommandInstall:         w.mutating(foldersession.OperationInstall, false, fixed(install)),
		CommandInstallAll:      w.mutating(foldersession.OperationInstall, true, fixed(install)),
		CommandCTest:           w.mutating(foldersession.OperationCTest, false, fixed(ctest)),
		CommandCTestAll:        w.mutating(foldersession.OperationCTest, true, fixed(ctest)),
		CommandClean:           w.mutating(foldersession.OperationClean, false, fixed(clean)),
		CommandCleanAll:        w.mutating(foldersession.OperationClean, true, fixed(clean)),
		CommandCleanRebuild:    w.cleanRebuild(false),
		CommandCleanRebuildAll: w.cleanRebuild(true),
		CommandStop:            w.stop(false),
		CommandStopAll:         w.stop(true),

		CommandSelectKit:          w.selectKit,
		CommandSetKitByName:       w.setKitByName,
		CommandScanForKits:        w.scanForKits,
		CommandSelectActiveFolder: w.selectActiveFolder,
		CommandSetDefaultTarget:   w.setDefaultTarget,
		CommandSetLaunchTarget:    w.setLaunchTarget,
		CommandSetBuildType:       w.setBuildType,

		CommandLaunchTargetPath:    w.query(launchTargetPath, false),
		CommandLaunchTargetPathAll: w.query(launchTargetPath, true),
		CommandBuildDirectory:      w.query(buildDirectory, false),
		CommandBuildDirectoryAll:   w.query(buildDirectory, true),
		CommandActiveFolderName:    w.activeFolderName,
		CommandBuildType: w.query(func(ctx context.Context, s *foldersession.Session) *string {
			buildType := s.BuildType()
			return &buildType
		}, false),
		CommandBuildKit: w.query(func(ctx context.Context, s *foldersession.Session) *string {
			kit, ok := s.Kit()
			if !ok {
				return nil
			}
			name := kit.DisplayName()
			return &name
		}, false),
	}
}

// opFactory builds the session operation of a command from its arguments.
type opFactory func(args mapper.CommandArgs) dispatcher.Op

func fixed(op dispatcher.Op) opFactory {
	return func(mapper.CommandArgs) dispatcher.Op { return op }
}

func build(args mapper.CommandArgs) dispatcher.Op {
	return func(ctx context.Context, s *foldersession.Session) (int, error) {
		return s.Build(ctx, args.Value)
	}
}

// scope picks the folder argument when given, otherwise the active folder or every folder.
func scope(args mapper.CommandArgs, all bool) dispatcher.Scope {
	switch {
	case all:
		return dispatcher.OnAll()
	case args.Folder != "":
		return dispatcher.OnFolder(args.Folder)
	default:
		return dispatcher.OnActive()
	}
}

func (w *Workspace) mutating(name string, all bool, op opFactory) command {
	return func(ctx context.Context, args mapper.CommandArgs) (interface{}, error) {
		return w.dispatcher.Run(ctx, scope(args, all), name, op(args))
	}
}

func (w *Workspace) cleanRebuild(all bool) command {
	return func(ctx context.Context, args mapper.CommandArgs) (interface{}, error) {
		return w.dispatcher.RunSequence(ctx, scope(args, all), "cleanRebuild",
			func(ctx context.Context, s *foldersession.Session) (int, error) { return s.Clean(ctx) },
			build(args),
		)
	}
}

// stop never prompts for a kit and always succeeds once the folders are resolved.
func (w *Workspace) stop(all bool) command {
	return func(ctx context.Context, args mapper.CommandArgs) (interface{}, error) {
		sessions, err := w.dispatcher.Resolve(scope(args, all))
		if err != nil {
			return nil, err
		}
		for _, s := range sessions {
			s.Stop(ctx)
		}
		return 0, nil
	}
}

// query returns a single value, or one value per folder for the all variant.
// With no active folder the single variant returns null.
func (w *Workspace) query(q dispatcher.QueryFunc, all bool) command {
	return func(ctx context.Context, args mapper.CommandArgs) (interface{}, error) {
		results, err := w.dispatcher.Query(ctx, scope(args, all), q)
		if all {
			return results, err
		}
		var noActive *cmakeerrors.NoActiveFolderError
		if errors.As(err, &noActive) {
			return (*string)(nil), nil
		}
		if err != nil {
			return nil, err
		}
		return results[0], nil
	}
}

func (w *Workspace) activeFolderName(ctx context.Context, args mapper.CommandArgs) (interface{}, error) {
	key, ok := w.ActiveFolder()
	if !ok {
		return (*string)(nil), nil
	}
	name := key.Name()
	return &name, nil
}

// selectKit prompts for a kit and returns its display name, or null when the prompt was dismissed.
func (w *Workspace) selectKit(ctx context.Context, args mapper.CommandArgs) (interface{}, error) {
	s, err := w.single(args)
	if err != nil {
		return nil, err
	}
	kit, ok, err := w.kits.SelectKit(ctx, s.Key())
	if err != nil {
		return nil, err
	}
	if !ok {
		return (*string)(nil), nil
	}
	s.SetKit(ctx, kit)
	name := kit.DisplayName()
	return &name, nil
}

func (w *Workspace) setKitByName(ctx context.Context, args mapper.CommandArgs) (interface{}, error) {
	s, err := w.single(args)
	if err != nil {
		return nil, err
	}
	name := args.Value
	if name == "[Unspecified]" {
		name = entity.UnspecifiedKitName
	}
	kit, ok := w.lookupKit(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown kit %q", cmakeerrors.InvalidArgumentError, args.Value)
	}
	s.SetKit(ctx, kit)
	return 0, nil
}

// scanForKits returns the number of kits found.
func (w *Workspace) scanForKits(ctx context.Context, args mapper.CommandArgs) (interface{}, error) {
	found, err := w.kits.ScanForKits(ctx)
	if err != nil {
		return nil, err
	}
	return len(found), nil
}

// selectActiveFolder activates the folder argument, or asks the user to pick one of the open folders.
func (w *Workspace) selectActiveFolder(ctx context.Context, args mapper.CommandArgs) (interface{}, error) {
	key := args.Folder
	if key == "" && args.Value != "" {
		var err error
		if key, err = mapper.PathToFolderKey(args.Value); err != nil {
			return nil, fmt.Errorf("%w: %v", cmakeerrors.InvalidArgumentError, err)
		}
	}
	if key == "" {
		folders := w.Folders()
		names := make([]string, 0, len(folders))
		byName := make(map[string]entity.FolderKey, len(folders))
		for _, folder := range folders {
			names = append(names, folder.String())
			byName[folder.String()] = folder
		}
		choice, ok, err := w.pick(ctx, "Select the active folder", names)
		if err != nil || !ok {
			return (*string)(nil), err
		}
		key = byName[choice]
	}
	if err := w.arbiter.SetActive(ctx, key); err != nil {
		return nil, err
	}
	name := key.Name()
	return &name, nil
}

func (w *Workspace) setDefaultTarget(ctx context.Context, args mapper.CommandArgs) (interface{}, error) {
	s, err := w.single(args)
	if err != nil {
		return nil, err
	}
	target := args.Value
	if target == "" {
		choice, ok, err := w.pick(ctx, fmt.Sprintf("Select the default target of %s", s.Key().Name()), s.Targets())
		if err != nil || !ok {
			return (*string)(nil), err
		}
		target = choice
	}
	s.SetDefaultTarget(ctx, target)
	return &target, nil
}

func (w *Workspace) setLaunchTarget(ctx context.Context, args mapper.CommandArgs) (interface{}, error) {
	s, err := w.single(args)
	if err != nil {
		return nil, err
	}
	target := args.Value
	if target == "" {
		var executables []string
		for _, t := range s.CodeModel().ExecutableTargets(s.BuildType()) {
			executables = append(executables, t.Name)
		}
		if len(executables) == 0 {
			return (*string)(nil), nil
		}
		choice, ok, err := w.pick(ctx, fmt.Sprintf("Select the launch target of %s", s.Key().Name()), executables)
		if err != nil || !ok {
			return (*string)(nil), err
		}
		target = choice
	}
	s.SetLaunchTarget(ctx, target)
	return &target, nil
}

func (w *Workspace) setBuildType(ctx context.Context, args mapper.CommandArgs) (interface{}, error) {
	s, err := w.single(args)
	if err != nil {
		return nil, err
	}
	buildType := args.Value
	if buildType == "" {
		choice, ok, err := w.pick(ctx, fmt.Sprintf("Select the build type of %s", s.Key().Name()), _buildTypes)
		if err != nil || !ok {
			return (*string)(nil), err
		}
		buildType = choice
	}
	s.SetBuildType(ctx, buildType)
	return &buildType, nil
}

// single resolves the folder argument, or the active folder.
func (w *Workspace) single(args mapper.CommandArgs) (*foldersession.Session, error) {
	sessions, err := w.dispatcher.Resolve(scope(args, false))
	if err != nil {
		return nil, err
	}
	return sessions[0], nil
}

// pick shows options as a message request. ok is false when the user dismissed it.
func (w *Workspace) pick(ctx context.Context, message string, options []string) (string, bool, error) {
	actions := make([]protocol.MessageActionItem, 0, len(options))
	for _, option := range options {
		actions = append(actions, protocol.MessageActionItem{Title: option})
	}
	choice, err := w.ideGateway.ShowMessageRequest(ctx, &protocol.ShowMessageRequestParams{
		Type:    protocol.MessageTypeInfo,
		Message: message,
		Actions: actions,
	})
	if err != nil {
		return "", false, fmt.Errorf("prompting: %w", err)
	}
	if choice == nil {
		return "", false, nil
	}
	return choice.Title, true, nil
}
