package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
)

type Service struct {
	client    client.Client
	taskQueue string
}

func NewService(client client.Client, taskQueue string) *Service {
	if taskQueue == "" {
		taskQueue = "answerd-asks"
	}
	return &Service{client: client, taskQueue: taskQueue}
}

func (s *Service) StartAsk(ctx context.Context, askID string) error {
	options := client.StartWorkflowOptions{
		ID:        workflowID(askID),
		TaskQueue: s.taskQueue,
	}
	_, err := s.client.ExecuteWorkflow(ctx, options, AskWorkflow, AskInput{AskID: askID})
	return err
}

func (s *Service) CancelAsk(ctx context.Context, askID string) error {
	return s.client.CancelWorkflow(ctx, workflowID(askID), "")
}

func workflowID(askID string) string {
	return fmt.Sprintf("ask:%s", askID)
}
