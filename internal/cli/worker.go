package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quititoday/clickstats/clicks"
	"github.com/quititoday/clickstats/sqs"
)

func newWorkerCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Record clicks from the SQS queue",
		Long: `Consume click messages from the FIFO queue named by CLICKSTATS_SQS_QUEUE
and record each one. Stops on SIGINT or SIGTERM after in-flight messages
finish.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return a.work(ctx)
		},
	}
}

func (a *app) queueClient(ctx context.Context) (*sqs.Client, error) {
	if a.cfg.SQS.Queue == "" {
		return nil, errors.New("CLICKSTATS_SQS_QUEUE is not set")
	}

	awsCfg, err := loadAWSConfig(ctx, a.cfg, a.cfg.SQS.Endpoint)
	if err != nil {
		return nil, err
	}

	opts := []sqs.Option{sqs.WithMaxOutstandingMessages(a.cfg.SQS.Concurrency)}
	if a.cfg.SQS.Endpoint != "" {
		opts = append(opts, sqs.WithEndpoint(a.cfg.SQS.Endpoint))
	}

	return sqs.New(&awsCfg, a.cfg.SQS.Queue, a.logger, opts...).Init(ctx)
}

func (a *app) work(ctx context.Context) error {
	queue, err := a.queueClient(ctx)
	if err != nil {
		return err
	}

	b, err := a.open(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer b.close(context.WithoutCancel(ctx))

	if err := b.schema(ctx); err != nil {
		return err
	}

	svc, err := clicks.New(b.store,
		clicks.WithStoreTimeout(a.cfg.StoreTimeout),
		clicks.WithRollups(a.cfg.Rollups),
	)
	if err != nil {
		return fmt.Errorf("failed to create click service: %w", err)
	}

	var consumerOpts []sqs.ConsumerOption
	if a.cfg.DefaultSubjectID != "" {
		consumerOpts = append(consumerOpts, sqs.WithDefaultSubjectID(a.cfg.DefaultSubjectID))
	}

	err = sqs.NewConsumer(queue, svc, a.logger, consumerOpts...).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}
