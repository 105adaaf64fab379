package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/troikatech/agent-console/internal/tenant"
)

func newResolveAgentCmd(rt *runtime, envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve-agent <agent_id>",
		Short: "Print the tenant and workspace that own an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID := args[0]
			return withStore(cmd, rt, *envFile, 10*time.Second, func(ctx context.Context, store tenant.Store, log *zap.Logger) error {
				owner, err := tenant.NewResolver(store, log).Resolve(ctx, agentID)
				if errors.Is(err, tenant.ErrNotFound) {
					fmt.Fprintf(cmd.OutOrStdout(), "agent %s: not found\n", agentID)
					return err
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "agent %s: user %s workspace %s\n", agentID, owner.UserID, owner.WorkspaceID)
				return nil
			})
		},
	}
}

func newBackfillOwnersCmd(rt *runtime, envFile *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "backfill-owners",
		Short: "Rebuild the agent owner index from agent documents",
		Long: "Walks every agent document oldest first and writes its owner into the index, " +
			"so agents created before the index existed resolve by direct lookup.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rt, *envFile, timeout, func(ctx context.Context, store tenant.Store, log *zap.Logger) error {
				report, err := tenant.NewResolver(store, log).Backfill(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, indexed %d, corrupt %d\n", report.Scanned, report.Indexed, report.Corrupt)
				return err
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall time limit")
	return cmd
}
