// Package sqs carries click events through an AWS SQS FIFO queue.
//
// # Client
//
// [Client] sends click messages to the queue and receives them again. Each
// message uses the subject id as its MessageGroupId, so clicks for one
// subject are consumed in order, and a request id as its
// MessageDeduplicationId, so a retried send inside the five-minute
// deduplication window is counted once.
//
//	client, err := sqs.New(&awsCfg, "clicks.fifo", log).Init(ctx)
//
//	err = client.SendClick(ctx, &sqs.ClickMessage{UserID: "u1", RequestID: reqID})
//
// # Consumer
//
// [Consumer] drains the queue into a [Recorder], normally a
// [github.com/quititoday/clickstats/clicks.Service]. A message is deleted
// once its click is recorded. Messages that can never succeed (bad JSON or
// an invalid subject id) are logged and deleted. Store failures make the
// message visible again after [WithSqsNackVisibilityTimeout]. A message
// without a userId is recorded for the subject set by [WithDefaultSubjectID],
// or dropped as invalid when none is set.
//
//	consumer := sqs.NewConsumer(client, svc, log, sqs.WithDefaultSubjectID("anonymous"))
//	err := consumer.Run(ctx) // blocks until ctx is cancelled
//
// Delivery is at least once. A click whose event row was written but whose
// total increment failed is redelivered and written again with a new
// timestamp.
package sqs
