package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"thingcode-go/services/journal"
)

type JournalOptions struct {
	*RootOptions
	N     int
	Thing string
}

func NewJournalCommand(root *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: root}
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recent wake cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Config.Journal.Path == "" {
				return errors.New("journal: journal.path is not configured")
			}
			j, err := journal.Open(opts.Config.Journal.Path)
			if err != nil {
				return err
			}
			defer j.Close()
			entries, err := j.Recent(cmd.Context(), opts.Thing, opts.N)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tTHING\tOUTCOME\tELAPSED\tSTATUS/CAUSE")
			for _, e := range entries {
				msg := e.Status
				if e.Cause != "" {
					msg = e.Cause
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.StartedAt.UTC().Format(time.RFC3339), e.Thing, e.Outcome, e.Elapsed, msg)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&opts.N, "limit", "n", 20, "number of cycles")
	cmd.Flags().StringVar(&opts.Thing, "thing", "", "only this thing")
	return cmd
}
