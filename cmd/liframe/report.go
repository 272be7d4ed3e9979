package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/liframe/internal/monitor"
	"github.com/banshee-data/liframe/internal/security"
	"github.com/banshee-data/liframe/internal/store"
)

func newReportCommand() *cobra.Command {
	var dbPath, runID, out string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render an HTML report of a recorded run",
		Long:  "Chart per-frame point and label counts, pipeline time and stage failures of a run. The newest run is used when --run is omitted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			runs, err := st.Runs(ctx)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				return fmt.Errorf("no runs recorded in %s", dbPath)
			}
			run := runs[0]
			if runID != "" {
				found := false
				for _, r := range runs {
					if r.ID == runID {
						run, found = r, true
						break
					}
				}
				if !found {
					return fmt.Errorf("run %q not found in %s", runID, dbPath)
				}
			}

			if err := security.OutputPath(out); err != nil {
				return err
			}
			frames, err := st.Frames(ctx, run.ID)
			if err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := monitor.RenderRunReport(f, run, frames); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (run %s, %d frames)\n", out, run.ID, len(frames))
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "liframe.db", "run database")
	cmd.Flags().StringVar(&runID, "run", "", "run id (default newest)")
	cmd.Flags().StringVarP(&out, "out", "o", "report.html", "output HTML file")
	return cmd
}
