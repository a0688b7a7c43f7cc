package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	dbFS "github.com/kailas-cloud/monkeys/internal/db/fs"
	"github.com/kailas-cloud/monkeys/internal/domain/corpus"
	corpusrepo "github.com/kailas-cloud/monkeys/internal/repository/corpus"
)

func newSegmentCmd(flags *globalFlags) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Split the corpus into cleaned works and write them to a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			raw, err := a.corpusSource().Read(cmd.Context())
			if err != nil {
				return err
			}
			works, err := corpus.Segment(raw, a.segmentOptions())
			if err != nil {
				return err
			}
			dst, err := dbFS.NewStore(out)
			if err != nil {
				return err
			}
			if err := corpusrepo.Export(cmd.Context(), dst, works); err != nil {
				return err
			}
			a.logger.Info("Corpus segmented", zap.Int("works", len(works)), zap.String("out", out))

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "TITLE\tCHARS")
			for _, w := range works {
				_, _ = fmt.Fprintf(tw, "%s\t%d\n", w.Name(), w.Len())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&out, "out", "stories", "output directory")
	return cmd
}

func newFilterCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Manage the membership filter",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "build",
		Short: "Load the filter for the configured corpus, building and persisting it if absent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			loader, err := a.loader("")
			if err != nil {
				return err
			}
			works, idx, err := loader.Corpus(cmd.Context())
			if err != nil {
				return err
			}
			f, err := loader.Filter(cmd.Context(), works, idx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d windows, estimated false positive rate %.6g\n",
				loader.FilterKey(idx).Name(), f.Inserted(), f.EstimatedFPR())
			return nil
		},
	})
	return cmd
}
