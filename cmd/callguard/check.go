package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haukened/callguard/internal/guard/domain"
)

func (c *cli) newCheckCmd() *cobra.Command {
	var kind, body string
	cmd := &cobra.Command{
		Use:   "check <number>",
		Short: "Evaluate one event without journaling or notifying",
		Long: `Evaluate an event from <number> under the channel policy and print the
verdict. Nothing is journaled, notified or added to the message history.
Pass an empty string to check a withheld number.

Examples:
  callguard check 555-1111
  callguard check --kind call "+1 (555) 123-4567"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := domain.ParseEventKind(kind)
			if err != nil {
				return err
			}
			return c.withApp(func(app *Application) error {
				ev := domain.IncomingEvent{Kind: k, Origin: args[0], Timestamp: app.clock.Now().UTC()}
				if k == domain.EventSMS {
					ev.Body = body
				}
				v := app.screener.Check(cmd.Context(), ev)
				return printVerdict(cmd, v)
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "sms", "Event kind: sms or call")
	cmd.Flags().StringVar(&body, "body", "", "Message text (sms only)")
	return cmd
}

func printVerdict(cmd *cobra.Command, v domain.Verdict) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	status := "allowed"
	if v.Blocked {
		status = "blocked"
	}
	fmt.Fprintf(tw, "verdict:\t%s\n", status)
	fmt.Fprintf(tw, "reason:\t%s\n", v.Reason)
	if v.Number != "" {
		fmt.Fprintf(tw, "number:\t%s\n", v.Number)
	}
	if v.MatchedName != "" {
		fmt.Fprintf(tw, "name:\t%s\n", v.MatchedName)
	}
	return tw.Flush()
}
