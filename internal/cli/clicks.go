package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/quititoday/clickstats/clicks"
	"github.com/quititoday/clickstats/sqs"
	"github.com/quititoday/clickstats/types"
)

type recordOutput struct {
	UserID         string `json:"userId"`
	CreateDateTime string `json:"createDateTime"`
	DateKey        string `json:"dateKey,omitempty"`
	RecordSort     string `json:"recordSort,omitempty"`
	ClickCount     int64  `json:"clickCount,omitempty"`
	TotalClicks    int64  `json:"totalClicks,omitempty"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func writeRecords(w io.Writer, records []*types.Record) error {
	out := make([]recordOutput, 0, len(records))
	for _, r := range records {
		out = append(out, recordOutput{
			UserID:         r.PartitionKey,
			CreateDateTime: r.SortKey,
			DateKey:        r.DateKey,
			RecordSort:     r.RecordSort,
			ClickCount:     r.ClickCount,
			TotalClicks:    r.TotalClicks,
		})
	}

	return writeJSON(w, out)
}

func newRecordCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "record <userId>",
		Short: "Record one click for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *clicks.Service) error {
				result, err := svc.RecordClick(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				return writeJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func newEnqueueCommand(a *app) *cobra.Command {
	var msg sqs.ClickMessage

	cmd := &cobra.Command{
		Use:   "enqueue <userId>",
		Short: "Send one click to the SQS queue for the worker to record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := a.queueClient(cmd.Context())
			if err != nil {
				return err
			}

			msg.UserID = args[0]

			if err := queue.SendClick(cmd.Context(), &msg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "queued click for %s\n", msg.UserID)

			return nil
		},
	}

	cmd.Flags().StringVar(&msg.RequestID, "request-id", "", "deduplication id; sends with the same id within five minutes are counted once")
	cmd.Flags().StringVar(&msg.SocialMediaType, "social-media-type", "", "referring social media type, logged by the worker")

	return cmd
}

func newTotalCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "total",
		Short: "Show the all-time click total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(cmd.Context(), func(svc *clicks.Service) error {
				total, err := svc.GetTotalClicks(cmd.Context())
				if err != nil {
					return err
				}

				return writeJSON(cmd.OutOrStdout(), map[string]int64{"totalClicks": total})
			})
		},
	}
}

func newListCommand(a *app) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "list <userId>",
		Short: "List a user's clicks, newest first",
		Long: `List a user's clicks, newest first.

--from and --to bound the listing inclusively. Each accepts a timestamp
(2025-10-02T08:00:00.000Z) or a date (2025-10-02), which covers the whole day.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (from == "") != (to == "") {
				return fmt.Errorf("--from and --to must be given together")
			}

			return a.withService(cmd.Context(), func(svc *clicks.Service) error {
				var (
					records []*types.Record
					err     error
				)

				if from == "" {
					records, err = svc.ListClicksForSubject(cmd.Context(), args[0])
				} else {
					records, err = svc.ListClicksInRange(cmd.Context(), args[0], from, to)
				}

				if err != nil {
					return err
				}

				return writeRecords(cmd.OutOrStdout(), records)
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "inclusive lower bound")
	cmd.Flags().StringVar(&to, "to", "", "inclusive upper bound")

	return cmd
}

func newByDateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "by-date <date>",
		Short: "List every click on a date (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *clicks.Service) error {
				records, err := svc.ListClicksByDate(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				return writeRecords(cmd.OutOrStdout(), records)
			})
		},
	}
}

func newStatCommand(a *app, kind, use, short string) *cobra.Command {
	var add int64

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *clicks.Service) error {
				ctx := cmd.Context()
				period := args[0]

				var (
					record *types.Record
					err    error
				)

				switch {
				case kind == "daily" && cmd.Flags().Changed("add"):
					record, err = svc.UpsertDailyStat(ctx, period, add)
				case kind == "daily":
					record, err = svc.GetDailyStat(ctx, period)
				case cmd.Flags().Changed("add"):
					record, err = svc.UpsertMonthlyStat(ctx, period, add)
				default:
					record, err = svc.GetMonthlyStat(ctx, period)
				}

				if err != nil {
					return err
				}

				var total int64
				if record != nil {
					total = record.TotalClicks
				}

				return writeJSON(cmd.OutOrStdout(), map[string]any{"period": period, "totalClicks": total})
			})
		},
	}

	cmd.Flags().Int64Var(&add, "add", 0, "add this many clicks to the total (at least 1)")

	return cmd
}
