package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nucleus/lakehouse/internal/app"
	"github.com/nucleus/lakehouse/internal/trigger"
)

type triggerOutput struct {
	ExecutionID string        `json:"execution_id"`
	Definition  string        `json:"definition,omitempty"`
	State       trigger.State `json:"state,omitempty"`
}

func newTriggerCmd(opts *rootOptions) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Start the pipeline workflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := opts.load()
			defer func() { _ = logger.Sync() }()

			t, definition, closeFn, err := app.Trigger(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			if wait {
				id, state, err := trigger.Run(cmd.Context(), t, definition, app.TriggerPolicy(cfg), logger)
				if id == "" {
					return err
				}
				if perr := printJSON(cmd, triggerOutput{ExecutionID: id, Definition: definition, State: state}); perr != nil {
					return perr
				}
				return err
			}

			id, err := t.Start(cmd.Context(), definition)
			if err != nil {
				return err
			}
			logger.Info("workflow started", zap.String("definition", definition), zap.String("execution_id", id))
			out := triggerOutput{ExecutionID: id, Definition: definition, State: trigger.StateRunning}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the execution finishes (LAKEHOUSE_TRIGGER_POLL_INTERVAL, LAKEHOUSE_TRIGGER_TIMEOUT)")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <execution-id>",
		Short: "Show the state of a workflow execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := opts.load()
			defer func() { _ = logger.Sync() }()

			t, _, closeFn, err := app.Trigger(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			state, err := t.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, triggerOutput{ExecutionID: args[0], State: state})
		},
	}
}
