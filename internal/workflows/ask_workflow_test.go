package workflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/activity"
	tests "go.temporal.io/sdk/testsuite"
)

type AskWorkflowTestSuite struct {
	suite.Suite
	testSuite *tests.WorkflowTestSuite
	env       *tests.TestWorkflowEnvironment
}

func (s *AskWorkflowTestSuite) SetupTest() {
	s.testSuite = &tests.WorkflowTestSuite{}
	s.env = s.testSuite.NewTestWorkflowEnvironment()
	s.env.RegisterWorkflow(AskWorkflow)
	s.env.RegisterActivityWithOptions(func(ctx context.Context, input ResolveInput) (ResolveOutput, error) {
		return ResolveOutput{Status: "completed"}, nil
	}, activity.RegisterOptions{Name: "ResolveAnswer"})
	s.env.RegisterActivityWithOptions(func(ctx context.Context, input AskFailureInput) error {
		return nil
	}, activity.RegisterOptions{Name: "MarkAskFailed"})
	s.env.RegisterActivityWithOptions(func(ctx context.Context, input AskStatusInput) error {
		return nil
	}, activity.RegisterOptions{Name: "MarkAskCancelled"})
}

func (s *AskWorkflowTestSuite) TearDownTest() {
	s.env.AssertExpectations(s.T())
}

func (s *AskWorkflowTestSuite) TestAskWorkflow_Success() {
	askID := "ask-1"

	s.env.OnActivity("ResolveAnswer", mock.Anything, ResolveInput{AskID: askID}).
		Return(ResolveOutput{Status: "completed"}, nil).Once()

	s.env.ExecuteWorkflow(AskWorkflow, AskInput{AskID: askID})
	s.True(s.env.IsWorkflowCompleted())

	var result AskResult
	err := s.env.GetWorkflowResult(&result)
	s.NoError(err)
	s.Equal("completed", result.Status)
}

func (s *AskWorkflowTestSuite) TestAskWorkflow_FailurePersisted() {
	askID := "ask-2"
	activityErr := errors.New("provider exploded")

	s.env.OnActivity("ResolveAnswer", mock.Anything, ResolveInput{AskID: askID}).
		Return(ResolveOutput{}, activityErr).Once()
	s.env.OnActivity("MarkAskFailed", mock.Anything, mock.MatchedBy(func(input AskFailureInput) bool {
		return input.AskID == askID && input.Error != ""
	})).Return(nil).Once()

	s.env.ExecuteWorkflow(AskWorkflow, AskInput{AskID: askID})
	s.True(s.env.IsWorkflowCompleted())

	var result AskResult
	err := s.env.GetWorkflowResult(&result)
	s.NoError(err)
	s.Equal("failed", result.Status)
}

func (s *AskWorkflowTestSuite) TestAskWorkflow_NoActivityRetries() {
	askID := "ask-3"
	activityErr := errors.New("transient blip")

	// A single failure must not be retried by the workflow layer.
	s.env.OnActivity("ResolveAnswer", mock.Anything, ResolveInput{AskID: askID}).
		Return(ResolveOutput{}, activityErr).Once()
	s.env.OnActivity("MarkAskFailed", mock.Anything, mock.Anything).Return(nil).Once()

	s.env.ExecuteWorkflow(AskWorkflow, AskInput{AskID: askID})
	s.True(s.env.IsWorkflowCompleted())
}

func (s *AskWorkflowTestSuite) TestAskWorkflow_Cancellation() {
	askID := "ask-4"

	s.env.OnActivity("ResolveAnswer", mock.Anything, ResolveInput{AskID: askID}).
		Return(func(ctx context.Context, input ResolveInput) (ResolveOutput, error) {
			select {
			case <-ctx.Done():
				return ResolveOutput{}, ctx.Err()
			case <-time.After(10 * time.Second):
				return ResolveOutput{Status: "completed"}, nil
			}
		}).Once()
	s.env.OnActivity("MarkAskCancelled", mock.Anything, AskStatusInput{AskID: askID}).
		Return(nil).Once()
	s.env.RegisterDelayedCallback(func() {
		s.env.CancelWorkflow()
	}, time.Millisecond)

	s.env.ExecuteWorkflow(AskWorkflow, AskInput{AskID: askID})
	s.True(s.env.IsWorkflowCompleted())

	var result AskResult
	err := s.env.GetWorkflowResult(&result)
	s.NoError(err)
	s.Equal("cancelled", result.Status)
}

func TestAskWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(AskWorkflowTestSuite))
}
