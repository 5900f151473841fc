package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/shadowsync/internal/infrastructure/database"
	"github.com/nerrad567/shadowsync/internal/journal"
)

type journalListOptions struct {
	Status string
	Limit  int
	Offset int
	Format string
}

func newJournalCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect published shadow updates",
	}
	cmd.AddCommand(newJournalListCommand(opts))
	return cmd
}

func newJournalListCommand(opts *rootOptions) *cobra.Command {
	listOpts := &journalListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List published updates, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch listOpts.Format {
			case "text", "json":
			default:
				return fmt.Errorf("unknown format %q: use text or json", listOpts.Format)
			}

			return withDatabase(cmd.Context(), opts, func(db *database.DB) error {
				result, err := journal.NewSQLiteJournal(db.DB).List(cmd.Context(), journal.Filter{
					Status: listOpts.Status,
					Limit:  listOpts.Limit,
					Offset: listOpts.Offset,
				})
				if err != nil {
					return err
				}

				if listOpts.Format == "json" {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(result)
				}
				return printJournal(cmd, result)
			})
		},
	}

	cmd.Flags().StringVar(&listOpts.Status, "status", "", "filter by outcome: accepted, rejected, timeout or pending")
	cmd.Flags().IntVar(&listOpts.Limit, "limit", 20, "maximum entries to show")
	cmd.Flags().IntVar(&listOpts.Offset, "offset", 0, "entries to skip")
	cmd.Flags().StringVarP(&listOpts.Format, "format", "o", "text", "output format: text or json")

	return cmd
}

func printJournal(cmd *cobra.Command, result *journal.ListResult) error {
	out := cmd.OutOrStdout()
	if len(result.Entries) == 0 {
		fmt.Fprintln(out, "no journal entries")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SENT\tTOKEN\tSTATUS\tLATENCY\tFIELDS")
	for _, e := range result.Entries {
		latency := "-"
		if e.ResolvedAt != nil {
			latency = e.Latency.Round(time.Millisecond).String()
		}
		status := e.Status
		if e.Code != 0 {
			status = fmt.Sprintf("%s (%d %s)", e.Status, e.Code, e.Message)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.SentAt.Local().Format(time.DateTime), e.Token, status, latency, e.FieldsString())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	shown := result.Offset + len(result.Entries)
	fmt.Fprintf(out, "\n%d-%d of %d\n", result.Offset+1, shown, result.Total)
	return nil
}
