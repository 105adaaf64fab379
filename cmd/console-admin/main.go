package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/troikatech/agent-console/internal/tenant"
	"github.com/troikatech/agent-console/pkg/env"
	"github.com/troikatech/agent-console/pkg/logger"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

// runtime holds what the commands open. Tests replace it.
type runtime struct {
	loadConfig func(envFile string) (*env.Config, error)
	openStore  func(ctx context.Context, cfg *env.Config, log *zap.Logger) (*tenant.Backend, error)
	newLogger  func(cfg *env.Config) *zap.Logger
}

func defaultRuntime() *runtime {
	return &runtime{
		loadConfig: env.Load,
		openStore:  tenant.Open,
		newLogger: func(cfg *env.Config) *zap.Logger {
			log, err := logger.New(cfg.LogLevel, cfg.AppEnv)
			if err != nil {
				return zap.NewNop()
			}
			return log
		},
	}
}

func newRootCmd(rt *runtime) *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:          "console-admin",
		Short:        "Operator tools for the agent console",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to .env file")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newResolveAgentCmd(rt, &envFile))
	cmd.AddCommand(newBackfillOwnersCmd(rt, &envFile))
	cmd.AddCommand(newIssueTokenCmd(rt, &envFile))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "console-admin %s (commit: %s)\n", Version, Commit)
		},
	}
}

// withStore loads config, opens the store and runs fn with a bounded context.
func withStore(cmd *cobra.Command, rt *runtime, envFile string, timeout time.Duration, fn func(ctx context.Context, store tenant.Store, log *zap.Logger) error) error {
	cfg, err := rt.loadConfig(envFile)
	if err != nil {
		return err
	}
	log := rt.newLogger(cfg)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	backend, err := rt.openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open tenant store: %w", err)
	}
	defer backend.Close(context.WithoutCancel(ctx))

	return fn(ctx, backend.Store, log)
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd(defaultRuntime())))
}
