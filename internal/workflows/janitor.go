package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// JanitorInput is the input for the session janitor workflow.
type JanitorInput struct {
	IdleTTLMinutes int
}

// JanitorWorkflow reaps sessions that have gone idle: their stored anchor
// records are purged, their cache entries dropped, the session row deleted,
// and an expiry event announced so live API instances evict them from the
// in-memory registry.
func JanitorWorkflow(ctx workflow.Context, input JanitorInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting janitor sweep", "idleTTLMinutes", input.IdleTTLMinutes)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Find idle sessions
	var idle []string
	err := workflow.ExecuteActivity(ctx, "ListIdleSessions", input.IdleTTLMinutes).Get(ctx, &idle)
	if err != nil {
		return err
	}
	if len(idle) == 0 {
		logger.Info("No idle sessions")
		return nil
	}

	// Step 2: Reap each session. A failure on one session doesn't block the
	// rest of the sweep; the session gets another chance next run.
	reaped := 0
	for _, sessionID := range idle {
		var purged int
		if err := workflow.ExecuteActivity(ctx, "PurgeSessionAnchors", sessionID).Get(ctx, &purged); err != nil {
			logger.Warn("anchor purge failed, skipping session", "session", sessionID, "error", err)
			continue
		}
		_ = workflow.ExecuteActivity(ctx, "DropSessionCache", sessionID).Get(ctx, nil)
		if err := workflow.ExecuteActivity(ctx, "DeleteSession", sessionID).Get(ctx, nil); err != nil {
			logger.Warn("session delete failed", "session", sessionID, "error", err)
			continue
		}
		_ = workflow.ExecuteActivity(ctx, "AnnounceExpiry", sessionID).Get(ctx, nil)
		reaped++
	}

	logger.Info("Janitor sweep complete", "idle", len(idle), "reaped", reaped)
	return nil
}
