package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/liframe/internal/store"
)

func newMigrateCommand() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Manage the run database schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}
			st, err := store.OpenDB(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			switch action {
			case "up":
				err = st.MigrateUp()
			case "down":
				err = st.MigrateDown()
			}
			if err != nil {
				return err
			}
			v, dirty, err := st.MigrateVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", v, dirty)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "liframe.db", "run database")
	return cmd
}
