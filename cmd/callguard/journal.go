package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func (c *cli) newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the journal of blocked events",
		Long: `Inspect the journal of blocked events.

The stores are single-process: bbolt holds an exclusive lock on each
database file, so while serve runs these commands fail after about one
second waiting for it. Stop serve to edit the lists or clear the journal.`,
	}
	cmd.AddCommand(c.newJournalListCmd(), c.newJournalClearCmd())
	return cmd
}

func (c *cli) newJournalListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List blocked events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(app *Application) error {
				entries, err := app.journal.List(limit)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tKIND\tNUMBER\tNAME\tREASON\tBODY")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						e.Time.Format(time.RFC3339), e.Kind, e.Number, e.Name, e.Reason, e.Body)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to show; 0 shows all")
	return cmd
}

func (c *cli) newJournalClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every journal entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(app *Application) error {
				n, err := app.journal.Clear()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %d\n", n)
				return nil
			})
		},
	}
}
