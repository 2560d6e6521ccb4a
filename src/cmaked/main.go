package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/uber/cmake-lsp/src/cmaked/app"
	"github.com/uber/cmake-lsp/src/cmaked/internal/core"
	"go.uber.org/fx"
)

const _version = "(to be added by Bazel)"

var configDir string

var rootCmd = &cobra.Command{
	Use:   "cmaked",
	Short: "cmaked serves CMake project sessions to editors over JSON-RPC",
	Long: `cmaked is a daemon shared by editor processes. Each connection opens a workspace
with one CMake session per folder, and commands are routed to the active folder.`,
	Version:       _version,
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVar(&configDir, "config-dir", "", fmt.Sprintf("Directory holding meta.yaml, overrides %s", core.ConfigDirEnv))
}

func opts() fx.Option {
	return fx.Options(
		app.Module,
	)
}

func run(cmd *cobra.Command, args []string) error {
	if configDir != "" {
		if err := os.Setenv(core.ConfigDirEnv, configDir); err != nil {
			return fmt.Errorf("setting %s: %w", core.ConfigDirEnv, err)
		}
	}

	fx.New(opts()).Run()
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
