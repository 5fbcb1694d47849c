package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

type AskInput struct {
	AskID string
}

type AskResult struct {
	Status string
}

// AskWorkflow drives one asynchronous answer request. Provider retries are
// bounded inside the ResolveAnswer activity itself, so the activity never
// retries at the Temporal layer.
func AskWorkflow(ctx workflow.Context, input AskInput) (AskResult, error) {
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)
	logger := workflow.GetLogger(ctx)

	var output ResolveOutput
	err := workflow.ExecuteActivity(ctx, "ResolveAnswer", ResolveInput{AskID: input.AskID}).Get(ctx, &output)
	if err == nil {
		return AskResult{Status: output.Status}, nil
	}

	if temporal.IsCanceledError(err) || ctx.Err() != nil {
		cleanupCtx, cancel := workflow.NewDisconnectedContext(ctx)
		defer cancel()
		cleanupCtx = workflow.WithActivityOptions(cleanupCtx, activityOptions)
		if markErr := workflow.ExecuteActivity(cleanupCtx, "MarkAskCancelled", AskStatusInput{AskID: input.AskID}).Get(cleanupCtx, nil); markErr != nil {
			logger.Error("failed to persist ask cancellation", "error", markErr)
		}
		return AskResult{Status: "cancelled"}, nil
	}

	logger.Error("resolve answer activity failed", "error", err)
	failure := AskFailureInput{
		AskID: input.AskID,
		Error: err.Error(),
	}
	if markErr := workflow.ExecuteActivity(ctx, "MarkAskFailed", failure).Get(ctx, nil); markErr != nil {
		logger.Error("failed to persist ask failure", "error", markErr)
	}
	return AskResult{Status: "failed"}, nil
}
