package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haukened/callguard/internal/guard/domain"
)

func (c *cli) newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Maintain the message history",
		Long: `Maintain the history of numbers the user exchanged messages with. The
history feeds the BLOCK_NOT_FROM_SMS_HISTORY switch. Allowed inbound messages
are added by serve; messages the user sends are added here, or by serve for
events with "direction":"out".`,
	}
	cmd.AddCommand(c.newHistoryAddCmd())
	return cmd
}

func (c *cli) newHistoryAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <number>...",
		Short: "Record messages sent to one or more numbers",
		Long: `Record an outbound message to each number so later messages from it pass
the message history rule. Numbers are normalized first; ones without digits
are skipped.

Examples:
  callguard history add 555-1111
  callguard history add "+1 (555) 123-4567" 555-2222`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(app *Application) error {
				recorded := 0
				for _, n := range args {
					ev := domain.NewOutboundSMSEvent(n, app.clock.Now().UTC())
					if v := app.screener.HandleEvent(cmd.Context(), ev); v.Number != "" {
						recorded++
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "recorded %d\n", recorded)
				return nil
			})
		},
	}
}
