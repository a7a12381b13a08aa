package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/haukened/callguard/internal/guard/common/log"
	"github.com/haukened/callguard/internal/guard/domain"
	"github.com/haukened/callguard/internal/guard/repos/contacts/parsers"
)

func (c *cli) newContactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Manage the black and white lists",
		Long: `Manage the black and white lists.

Subcommands:
  add     - Add a contact with one or more numbers
  list    - List the contacts of one list
  move    - Move a contact to the opposite list
  remove  - Remove contacts
  import  - Import a plain number list
  stats   - Show store and cache counters

The stores are single-process: bbolt holds an exclusive lock on each
database file, so while serve runs these commands fail after about one
second waiting for it. Stop serve to edit the lists or clear the journal.`,
		// No RunE - requires a subcommand
	}
	cmd.AddCommand(
		c.newContactsAddCmd(),
		c.newContactsListCmd(),
		c.newContactsMoveCmd(),
		c.newContactsRemoveCmd(),
		c.newContactsImportCmd(),
		c.newContactsStatsCmd(),
	)
	return cmd
}

func listFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "list", "l", "", "Contact list: black or white")
}

func (c *cli) newContactsAddCmd() *cobra.Command {
	var list, name string
	var partial bool
	cmd := &cobra.Command{
		Use:   "add <number>...",
		Short: "Add a contact",
		Long: `Add one contact holding every given number. A number already held by the
same list is skipped; a number held by the opposite list fails the command
and nothing is written.

Examples:
  callguard contacts add --list black --name Spammer 555-1111
  callguard contacts add --list black --partial 0900`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lt, err := domain.ParseListType(list)
			if err != nil {
				return err
			}
			numbers := make([]domain.ContactNumber, 0, len(args))
			for _, a := range args {
				if partial {
					numbers = append(numbers, domain.Partial(a))
				} else {
					numbers = append(numbers, domain.Exact(a))
				}
			}
			return c.withApp(func(app *Application) error {
				e, err := app.contacts.Add(lt, name, numbers)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s to %s list: %s\n", e.ID, e.List, formatNumbers(e.Numbers))
				return nil
			})
		},
	}
	listFlag(cmd, &list)
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name")
	cmd.Flags().BoolVarP(&partial, "partial", "p", false, "Match numbers ending with the given digits")
	_ = cmd.MarkFlagRequired("list")
	return cmd
}

func (c *cli) newContactsListCmd() *cobra.Command {
	var list, filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the contacts of one list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lt, err := domain.ParseListType(list)
			if err != nil {
				return err
			}
			return c.withApp(func(app *Application) error {
				entries, err := app.contacts.FindByType(lt, filter)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tNUMBERS\tCREATED")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.DisplayName(), formatNumbers(e.Numbers), e.CreatedAt.Format("2006-01-02 15:04:05"))
				}
				return tw.Flush()
			})
		},
	}
	listFlag(cmd, &list)
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Only entries whose name or numbers contain this text")
	_ = cmd.MarkFlagRequired("list")
	return cmd
}

func (c *cli) newContactsMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id>",
		Short: "Move a contact to the opposite list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(app *Application) error {
				e, err := app.contacts.MoveToOppositeList(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "moved %s to %s list\n", e.ID, e.List)
				return nil
			})
		},
	}
}

func (c *cli) newContactsRemoveCmd() *cobra.Command {
	var list, filter string
	var all bool
	cmd := &cobra.Command{
		Use:   "remove [<id>...]",
		Short: "Remove contacts",
		Long: `Remove contacts by id, or every contact of a list with --all.

Examples:
  callguard contacts remove 0b4f...
  callguard contacts remove --all --list black --filter spam`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("give contact ids or --all, not both")
			}
			return c.withApp(func(app *Application) error {
				if all {
					lt, err := domain.ParseListType(list)
					if err != nil {
						return err
					}
					n, err := app.contacts.RemoveMany(nil, lt, filter)
					fmt.Fprintf(cmd.OutOrStdout(), "removed %d\n", n)
					return err
				}
				var errs error
				removed := 0
				for _, id := range args {
					if err := app.contacts.Remove(id); err != nil {
						errs = multierr.Append(errs, err)
						continue
					}
					removed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d\n", removed)
				return errs
			})
		},
	}
	listFlag(cmd, &list)
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "With --all, only entries whose name or numbers contain this text")
	cmd.Flags().BoolVar(&all, "all", false, "Remove every matching contact of --list")
	return cmd
}

func (c *cli) newContactsImportCmd() *cobra.Command {
	var list string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a plain number list",
		Long: `Import a newline-delimited list of "number[, name]" lines into one list.
Lines starting with "*" hold partial numbers; "#" starts a comment. Numbers
held by the opposite list are skipped and reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lt, err := domain.ParseListType(list)
			if err != nil {
				return err
			}
			// #nosec G304 -- path is a CLI argument
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open number list: %w", err)
			}
			defer f.Close()

			records, err := parsers.ParseNumberList(f, args[0], log.GetLogger())
			if err != nil {
				return err
			}
			return c.withApp(func(app *Application) error {
				imported, skipped := 0, 0
				for _, rec := range records {
					_, err := app.contacts.Add(lt, rec.Name, []domain.ContactNumber{rec.Number})
					var dup *domain.DuplicateNumberError
					switch {
					case errors.As(err, &dup):
						skipped++
						log.Warn(map[string]any{
							"line":   rec.Line,
							"number": dup.Number,
							"list":   dup.ExistingList.String(),
						}, "Number held by the opposite list")
					case err != nil:
						return fmt.Errorf("%s:%d: %w", args[0], rec.Line, err)
					default:
						imported++
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d\n", imported, skipped)
				return nil
			})
		},
	}
	listFlag(cmd, &list)
	_ = cmd.MarkFlagRequired("list")
	return cmd
}

func (c *cli) newContactsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store and cache counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(app *Application) error {
				s := app.contacts.Stats()
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "contacts:\t%d\n", s.Store.Contacts)
				fmt.Fprintf(tw, "numbers:\t%d\n", s.Store.Numbers)
				fmt.Fprintf(tw, "version:\t%d\n", s.Store.Version)
				fmt.Fprintf(tw, "cache capacity:\t%d\n", s.Cache.Capacity)
				return tw.Flush()
			})
		},
	}
}

// formatNumbers renders numbers in import syntax: partial numbers get a "*".
func formatNumbers(numbers []domain.ContactNumber) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		if n.Mode == domain.MatchPartial {
			parts[i] = "*" + n.Number
		} else {
			parts[i] = n.Number
		}
	}
	return strings.Join(parts, " ")
}
