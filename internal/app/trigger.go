package app

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/nucleus/lakehouse/internal/config"
	"github.com/nucleus/lakehouse/internal/errs"
	"github.com/nucleus/lakehouse/internal/logging"
	"github.com/nucleus/lakehouse/internal/orchestration"
	"github.com/nucleus/lakehouse/internal/trigger"
)

// DialTemporal connects to the Temporal frontend with a zap-backed logger.
func DialTemporal(cfg *config.Config, logger *zap.Logger) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    logging.NewTemporalLogger(logger.Named("temporal")),
	})
	if err != nil {
		return nil, errs.Wrap(errs.CodeTriggerFailed, true, fmt.Errorf("dial temporal %s: %w", cfg.TemporalAddress, err))
	}
	return c, nil
}

// Trigger builds the configured workflow trigger and the definition id it
// starts. The returned close func releases its connection.
func Trigger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (trigger.Trigger, string, func(), error) {
	switch cfg.TriggerKind {
	case config.TriggerStepFunctions:
		if cfg.StateMachineARN == "" {
			return nil, "", nil, errs.New(errs.CodeInvalidInput, false, "STATE_MACHINE_ARN is required for the stepfunctions trigger")
		}
		t, err := trigger.NewStepFunctions(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, "", nil, err
		}
		return t, cfg.StateMachineARN, func() {}, nil
	default:
		c, err := DialTemporal(cfg, logger)
		if err != nil {
			return nil, "", nil, err
		}
		t := &trigger.Temporal{
			Client:    c,
			TaskQueue: cfg.TemporalTaskQueue,
			Args: []interface{}{orchestration.PipelineInput{
				StorageLocation: cfg.DefaultStorageLocation(),
			}},
		}
		return t, orchestration.PipelineWorkflowName, c.Close, nil
	}
}

// TriggerPolicy is the Wait policy from configuration.
func TriggerPolicy(cfg *config.Config) trigger.Policy {
	return trigger.Policy{Interval: cfg.TriggerPollInterval, Timeout: cfg.TriggerTimeout}
}
