package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"studytimer/internal/storage"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historySince time.Duration
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent study sessions",
	RunE:  runHistory,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete study sessions from history",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHistoryDelete,
}

func init() {
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of sessions to show")
	historyCmd.Flags().DurationVar(&historySince, "since", 7*24*time.Hour, "Summary window")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("history is disabled in settings")
	}
	defer store.Close()

	ctx := cmd.Context()
	records, err := store.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	summary, err := store.Summarize(ctx, time.Now().Add(-historySince))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]any{"sessions": records, "summary": summary})
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tSTARTED\tPLANNED\tSTUDIED\tRESULT")
	for _, record := range records {
		result := "stopped"
		if record.Completed {
			result = "completed"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			record.ID,
			record.StartedAt.Local().Format("2006-01-02 15:04"),
			formatClock(record.Duration),
			formatClock(record.Studied),
			result)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nLast %s: %d sessions, %d completed, %s studied\n",
		historySince, summary.Sessions, summary.Completed,
		(time.Duration(summary.StudiedSeconds) * time.Second).String())
	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("history is disabled in settings")
	}
	defer store.Close()

	for _, id := range args {
		if err := store.Delete(cmd.Context(), id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%s: %w", id, err)
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
	}
	return nil
}
