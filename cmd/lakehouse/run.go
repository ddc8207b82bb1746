package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nucleus/lakehouse/internal/app"
	"github.com/nucleus/lakehouse/internal/quality"
)

func newRunLayerCmd(opts *rootOptions) *cobra.Command {
	var location string
	cmd := &cobra.Command{
		Use:   "run-layer <layer>",
		Short: "Drop and recreate every model of a layer",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app.App) error {
			results, err := a.Transform.RunLayer(cmd.Context(), args[0], location)
			if err != nil {
				return err
			}
			return printJSON(cmd, results)
		}),
	}
	cmd.Flags().StringVar(&location, "storage-location", "", "s3:// prefix for table materializations (defaults to s3://$S3_BUCKET/curated)")
	return cmd
}

func newRunTestsCmd(opts *rootOptions) *cobra.Command {
	var failOnTestFailure bool
	cmd := &cobra.Command{
		Use:   "run-tests [layer]",
		Short: "Run the data-quality tests of a layer, or of every layer",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, a *app.App) error {
			layer := ""
			if len(args) == 1 {
				layer = args[0]
			}
			summary, err := a.Quality.RunTests(cmd.Context(), layer)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, summary); err != nil {
				return err
			}

			if summary.RecordingErr != nil {
				return summary.RecordingErr
			}
			switch summary.Status() {
			case quality.RunError:
				return fmt.Errorf("%d of %d tests errored", summary.Errors, summary.Total)
			case quality.RunTestsFailed:
				if failOnTestFailure {
					return fmt.Errorf("%d of %d tests failed", summary.Failed, summary.Total)
				}
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&failOnTestFailure, "fail-on-test-failure", false, "exit non-zero when any test fails")
	return cmd
}
