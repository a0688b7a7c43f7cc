package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/monkeys/internal/report"
	"github.com/kailas-cloud/monkeys/internal/repository/hitlog"
	"github.com/kailas-cloud/monkeys/internal/usecase/coverage"
	"github.com/kailas-cloud/monkeys/internal/usecase/replay"
)

var errNoCheckpoint = errors.New("no checkpoint to report on")

func newReportCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Regenerate report artifacts from the last checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			cp, err := a.coverageRepo().Load(cmd.Context())
			if err != nil {
				return err
			}
			if cp.Empty() {
				return errNoCheckpoint
			}
			view := cp.View()
			if err := a.publisher().Publish(cmd.Context(), view); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = out.Write(report.Progress(view.Iterations, a.cfg.Run.BatchSize))
			for _, w := range view.Works {
				_, _ = fmt.Fprintln(out, report.Summary(w.Coverage()))
			}
			return nil
		},
	}
}

func newReplayCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Rebuild coverage from the hit logs",
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
			tracker := coverage.New(a.coverageRepo(), works, "replay-"+uuid.NewString())
			if err := tracker.Load(cmd.Context()); err != nil {
				return err
			}

			svc := replay.New(hitlog.New(a.store), idx, a.cfg.Run.WindowLength, a.logger)
			rep, err := svc.Run(cmd.Context(), tracker)
			if err != nil {
				return err
			}
			if err := a.publisher().Publish(cmd.Context(), tracker.View()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(),
				"Replayed %d files: %d entries, %d malformed, %d rejected, %d new characters\n",
				rep.Files, rep.Entries, rep.Malformed, rep.Rejected, rep.NewChars)
			return nil
		},
	}
}
