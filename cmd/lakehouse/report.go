package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nucleus/lakehouse/internal/app"
	"github.com/nucleus/lakehouse/internal/errs"
	"github.com/nucleus/lakehouse/internal/handler"
	"github.com/nucleus/lakehouse/internal/objectstore"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	var (
		out     string
		publish bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the test-results dashboard",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, a *app.App) error {
			html, err := a.Reports.Generate(cmd.Context())
			if err != nil {
				return err
			}

			if out != "" {
				if err := os.WriteFile(out, []byte(html), 0o644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
				a.Logger.Sugar().Infof("report written to %s", out)
			}
			if publish {
				if a.Store == nil {
					return errs.New(errs.CodeInvalidInput, false, "--publish needs OBJECT_STORE_BUCKET or S3_BUCKET")
				}
				bucket := a.Config.ObjectStoreBucket
				if err := a.Store.PutObject(cmd.Context(), bucket, handler.ReportKey, []byte(html), "text/html; charset=utf-8"); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), objectstore.URI(bucket, handler.ReportKey))
			}
			if out == "" && !publish {
				fmt.Fprint(cmd.OutOrStdout(), html)
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the HTML to this file")
	cmd.Flags().BoolVar(&publish, "publish", false, "upload the HTML to the object store")
	return cmd
}
