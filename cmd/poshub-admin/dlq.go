package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"poshub/internal/bootstrap"
	"poshub/internal/platform/queue"

	"github.com/spf13/cobra"
)

// queueOpener returns the queue and a release func
type queueOpener func(ctx context.Context) (queue.Queue, func(), error)

func defaultOpener(ctx context.Context) (queue.Queue, func(), error) {
	env, err := bootstrap.Open(ctx, "poshub-admin")
	if err != nil {
		return nil, nil, err
	}
	return env.Queue, func() { env.Close(context.Background()) }, nil
}

func dlqCmd(open queueOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and redrive dead-lettered orders",
	}
	cmd.AddCommand(dlqListCmd(open), dlqRedriveCmd(open))
	return cmd
}

func dlqListCmd(open queueOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List parked messages, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")

			q, done, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			dead, err := q.DeadLetters(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), dead)
			}
			return writeTable(cmd.OutOrStdout(), dead)
		},
	}
	cmd.Flags().IntP("limit", "n", 100, "maximum messages to list")
	return cmd
}

func dlqRedriveCmd(open queueOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redrive [id...]",
		Short: "Move dead letters back to the order queue with a fresh receive budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if all == (len(args) > 0) {
				return fmt.Errorf("pass message ids or --all, not both")
			}

			q, done, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			ids := args
			if all {
				limit, _ := cmd.Flags().GetInt("limit")
				dead, err := q.DeadLetters(cmd.Context(), limit)
				if err != nil {
					return err
				}
				for _, d := range dead {
					ids = append(ids, d.ID)
				}
			}
			n, err := q.Redrive(cmd.Context(), ids...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "redriven %d of %d\n", n, len(ids))
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "redrive every listed dead letter")
	cmd.Flags().IntP("limit", "n", 100, "with --all, maximum messages to redrive")
	return cmd
}

type deadRow struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"orderId"`
	ReceiveCount int             `json:"receiveCount"`
	SentAt       time.Time       `json:"sentAt"`
	DeadAt       time.Time       `json:"deadAt"`
	Body         json.RawMessage `json:"body"`
}

func writeJSON(w io.Writer, dead []queue.DeadLetter) error {
	rows := make([]deadRow, 0, len(dead))
	for _, d := range dead {
		r := deadRow{ID: d.ID, OrderID: d.GroupKey, ReceiveCount: d.ReceiveCount, SentAt: d.SentAt, DeadAt: d.DeadAt}
		if json.Valid(d.Body) {
			r.Body = d.Body
		} else {
			r.Body, _ = json.Marshal(string(d.Body))
		}
		rows = append(rows, r)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func writeTable(w io.Writer, dead []queue.DeadLetter) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tORDER\tRECEIVES\tDEAD AT")
	for _, d := range dead {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.ID, d.GroupKey, d.ReceiveCount, d.DeadAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
