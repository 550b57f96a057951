package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var defaultRules = []string{
	"detections/D001_tool_loop.yml",
	"detections/D002_retrieval_scope_violation.yml",
	"detections/D003_sensitive_egress.yml",
	"detections/D004_deny_then_exfil.yml",
}

// app carries settings shared by every subcommand. Flags, SOCLAB_* env
// vars and an optional config file all resolve through v.
type app struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "soclab",
		Short: "Agentic SOC lab toolkit",
		Long: `soclab replays agent session telemetry against a detection catalog.

Simulate sessions, verify hash-chained event logs, run detections,
export to Splunk or Sentinel, and keep case files and evidence packs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().String("config", "", "config file (yaml)")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "text", "log format: text, json")

	root.AddCommand(
		a.detectCmd(),
		a.simulateCmd(),
		a.verifyCmd(),
		a.exportCmd(),
		a.caseCmd(),
		a.evidenceCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	a.v.SetEnvPrefix("SOCLAB")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := a.v.BindPFlags(cmd.InheritedFlags()); err != nil {
		return err
	}

	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return a.setupLogging(cmd)
}

func (a *app) setupLogging(cmd *cobra.Command) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.v.GetString("log-level"))); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch a.v.GetString("log-format") {
	case "json":
		h = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	case "text", "":
		h = slog.NewTextHandler(cmd.ErrOrStderr(), opts)
	default:
		return fmt.Errorf("log-format: unknown format %q", a.v.GetString("log-format"))
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// required returns the named setting or an error when it is empty.
func (a *app) required(name string) (string, error) {
	s := a.v.GetString(name)
	if s == "" {
		return "", fmt.Errorf("--%s is required", name)
	}
	return s, nil
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
