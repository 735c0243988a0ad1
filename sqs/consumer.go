package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/quititoday/clickstats/clicks"
	"github.com/quititoday/clickstats/internal/logger"
	"github.com/quititoday/clickstats/types"
)

// Recorder records one click. [clicks.Service] implements it.
type Recorder interface {
	RecordClick(ctx context.Context, subjectID string) (*clicks.ClickResult, error)
}

// Consumer records every click message received from a [Client].
type Consumer struct {
	client           *Client
	recorder         Recorder
	logger           logger.Logger
	defaultSubjectID string
}

// ConsumerOption is a functional option for configuring a [Consumer].
type ConsumerOption func(*Consumer)

// WithDefaultSubjectID sets the subject recorded for messages without a
// userId. Without it such messages are dropped as invalid.
func WithDefaultSubjectID(id string) ConsumerOption {
	return func(c *Consumer) {
		c.defaultSubjectID = id
	}
}

// NewConsumer creates a Consumer. client must be initialized before
// [Consumer.Run] is called.
func NewConsumer(client *Client, recorder Recorder, log logger.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		client:   client,
		recorder: recorder,
		logger:   log.With("component", "consumer", "queue_name", client.Name()),
	}

	for _, o := range opts {
		o(c)
	}

	return c
}

// Run consumes until ctx is cancelled. See [Client.Receive].
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Click consumer started")
	defer c.logger.Info("Click consumer exited")

	return c.client.Receive(ctx, c.handle)
}

func (c *Consumer) handle(ctx context.Context, msg *Message) error {
	var click ClickMessage

	if err := json.Unmarshal([]byte(msg.Body), &click); err != nil {
		c.logger.Error("Dropping malformed click message", "message_id", msg.ID, "error", err)
		return nil
	}

	subjectID := strings.TrimSpace(click.UserID)
	if subjectID == "" {
		subjectID = c.defaultSubjectID
	}

	result, err := c.recorder.RecordClick(ctx, subjectID)
	if errors.Is(err, types.ErrValidation) {
		c.logger.Warn("Dropping invalid click message", "message_id", msg.ID, "error", err)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to record click for %s: %w", subjectID, err)
	}

	c.logger.Debug("Click recorded",
		"message_id", msg.ID,
		"userId", result.SubjectID,
		"socialMediaType", click.SocialMediaType,
		"totalClicks", result.TotalClicks,
	)

	return nil
}
