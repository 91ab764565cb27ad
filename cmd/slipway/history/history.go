// Package historycmd implements "slipway history": the local record of past
// deploy attempts.
package historycmd

import (
	"fmt"
	"strconv"
	"time"

	"slipway/cmd/slipway/ui"
	"slipway/internal/history"

	"github.com/spf13/cobra"
)

// Cmd returns the "slipway history" command.
func Cmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent deploys recorded on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := history.Open(history.DefaultPath())
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println(ui.InfoMsg("No deploys recorded yet."))
				return nil
			}

			var rows [][]string
			for _, rec := range records {
				outcome := ui.SuccessMsg("%s", rec.Outcome)
				if rec.Outcome != "succeeded" {
					outcome = ui.ErrorMsg("%s", rec.Outcome)
				}
				rows = append(rows, []string{
					rec.FinishedAt.Local().Format(time.DateTime),
					rec.Environment,
					rec.Service,
					strconv.Itoa(int(rec.Revision)),
					outcome,
					rec.FinishedAt.Sub(rec.StartedAt).Round(time.Second).String(),
				})
			}
			fmt.Println(ui.Table([]string{"FINISHED", "ENV", "SERVICE", "REV", "OUTCOME", "TOOK"}, rows))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records to show")
	return cmd
}
