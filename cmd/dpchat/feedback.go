package main

import (
	"dpchat/backend/pkg/exporter"

	"github.com/spf13/cobra"
)

func newFeedbackCmd(root *rootOptions) *cobra.Command {
	var (
		key     int
		comment string
	)

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Submit a feedback rating the way the feedback page does",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rating, err := exporter.RatingFromKey(key)
			if err != nil {
				return err
			}

			exp := exporter.NewFeedbackExporter(root.client())
			res, err := exp.Export(cmd.Context(), exporter.Feedback{
				Rating:          rating,
				WrittenFeedback: comment,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().IntVarP(&key, "rating", "r", 0, "rating key 1-5 (1 = Poor, 5 = Excellent!)")
	cmd.Flags().StringVarP(&comment, "comment", "c", "", "written feedback, at most 500 characters")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}
