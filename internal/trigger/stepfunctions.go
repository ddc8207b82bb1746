package trigger

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	sfntypes "github.com/aws/aws-sdk-go-v2/service/sfn/types"
	"github.com/google/uuid"

	"github.com/nucleus/lakehouse/internal/errs"
)

// SFNAPI is the subset of the Step Functions client the trigger needs.
type SFNAPI interface {
	StartExecution(ctx context.Context, in *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
	DescribeExecution(ctx context.Context, in *sfn.DescribeExecutionInput, optFns ...func(*sfn.Options)) (*sfn.DescribeExecutionOutput, error)
}

// StepFunctions triggers a state machine. The definition id is the state
// machine ARN and the execution id is the execution ARN.
type StepFunctions struct {
	API SFNAPI
	// Input is the JSON document handed to the execution. Defaults to "{}".
	Input string
}

// NewStepFunctions builds a trigger from the default AWS credential chain.
func NewStepFunctions(ctx context.Context, region string) (*StepFunctions, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errs.Wrap(errs.CodeTriggerFailed, false, fmt.Errorf("load aws config: %w", err))
	}
	return &StepFunctions{API: sfn.NewFromConfig(awsCfg)}, nil
}

func (s *StepFunctions) Start(ctx context.Context, definitionID string) (string, error) {
	if definitionID == "" {
		return "", errs.New(errs.CodeInvalidInput, false, "state machine arn is required")
	}
	input := s.Input
	if input == "" {
		input = "{}"
	}
	out, err := s.API.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(definitionID),
		Name:            aws.String("lakehouse-" + uuid.NewString()),
		Input:           aws.String(input),
	})
	if err != nil {
		return "", errs.Wrap(errs.CodeTriggerFailed, true, fmt.Errorf("start execution: %w", err))
	}
	return aws.ToString(out.ExecutionArn), nil
}

func (s *StepFunctions) Status(ctx context.Context, executionID string) (State, error) {
	out, err := s.API.DescribeExecution(ctx, &sfn.DescribeExecutionInput{ExecutionArn: aws.String(executionID)})
	if err != nil {
		return "", errs.Wrap(errs.CodeTriggerFailed, true, fmt.Errorf("describe execution %s: %w", executionID, err))
	}
	switch out.Status {
	case sfntypes.ExecutionStatusSucceeded:
		return StateSucceeded, nil
	case sfntypes.ExecutionStatusFailed:
		return StateFailed, nil
	case sfntypes.ExecutionStatusTimedOut:
		return StateTimedOut, nil
	case sfntypes.ExecutionStatusAborted:
		return StateAborted, nil
	default:
		return StateRunning, nil
	}
}
