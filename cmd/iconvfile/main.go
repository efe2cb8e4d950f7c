// Command iconvfile reads and writes files with charset conversion.
//
// Logging:
//   - The logger is built once from --log-level and --log-format
//   - It is handed to the pipelines through their Config
//   - Logs go to stderr; stdout carries JSON lines only
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grokify/iconvfile"
	_ "github.com/grokify/iconvfile/backend/file"
	_ "github.com/grokify/iconvfile/backend/memory"
	_ "github.com/grokify/iconvfile/backend/s3"
	_ "github.com/grokify/iconvfile/backend/sftp"
)

var version = "dev"

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "iconvfile",
		Short:        "Read and write files with charset conversion",
		SilenceUsage: true,
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.String("backend", "file", "storage backend: "+strings.Join(iconvfile.Backends(), ", "))
	pf.StringToString("backend-opt", nil, "backend option as key=value (repeatable)")
	pf.String("log-level", "warn", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	rootCmd.AddCommand(newReadCmd(), newWriteCmd(), versionCmd)
	return rootCmd
}

func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	levelName, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, fmt.Errorf("log-level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), opts)), nil
	default:
		return nil, fmt.Errorf("log-format: unknown format %q", format)
	}
}

func openBackend(cmd *cobra.Command) (iconvfile.Backend, error) {
	name, _ := cmd.Flags().GetString("backend")
	opts, _ := cmd.Flags().GetStringToString("backend-opt")
	if opts == nil {
		opts = map[string]string{}
	}
	return iconvfile.Open(name, opts)
}

// configMap collects the flags the user set, keyed by pipeline config key.
// Unset flags are left out so ConfigFromMap keeps its defaults.
func configMap(cmd *cobra.Command, keys map[string]string) map[string]string {
	m := make(map[string]string, len(keys))
	for flag, key := range keys {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			m[key] = f.Value.String()
		}
	}
	return m
}
