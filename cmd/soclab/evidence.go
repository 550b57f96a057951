package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/evidence"
)

func (a *app) evidenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Build a hashed evidence pack, optionally archived to S3",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logs, err := a.required("logs")
			if err != nil {
				return err
			}
			alerts, err := a.required("alerts")
			if err != nil {
				return err
			}
			outdir, err := a.required("outdir")
			if err != nil {
				return err
			}

			m, err := evidence.Build(logs, alerts, outdir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Evidence pack written to %s\n", outdir)

			bucket := a.v.GetString("s3-bucket")
			if bucket == "" {
				return nil
			}
			up, err := evidence.NewS3Uploader(cmd.Context(), evidence.S3Config{
				Bucket:          bucket,
				Prefix:          a.v.GetString("s3-prefix"),
				Region:          a.v.GetString("s3-region"),
				Endpoint:        a.v.GetString("s3-endpoint"),
				UsePathStyle:    a.v.GetBool("s3-path-style"),
				AccessKeyID:     a.v.GetString("s3-access-key-id"),
				SecretAccessKey: a.v.GetString("s3-secret-access-key"),
			})
			if err != nil {
				return err
			}
			keys, err := up.Upload(cmd.Context(), outdir, m)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d objects to s3://%s\n", len(keys), bucket)
			return nil
		},
	}
	cmd.Flags().String("logs", "", "event log JSONL")
	cmd.Flags().String("alerts", "", "alerts JSONL")
	cmd.Flags().String("outdir", "", "output evidence directory")
	cmd.Flags().String("s3-bucket", "", "archive the pack to this bucket")
	cmd.Flags().String("s3-prefix", "evidence", "object key prefix")
	cmd.Flags().String("s3-region", "", "AWS region")
	cmd.Flags().String("s3-endpoint", "", "S3-compatible endpoint URL")
	cmd.Flags().Bool("s3-path-style", false, "use path-style addressing")
	cmd.Flags().String("s3-access-key-id", "", "static access key (default AWS chain when empty)")
	cmd.Flags().String("s3-secret-access-key", "", "static secret key")
	return cmd
}
