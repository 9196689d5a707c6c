// internal/intake/sqs/consumer.go
package sqs

import (
	"context"
	"time"

	"bedrock-router/internal/common/aws"
	"bedrock-router/internal/common/config"
	"bedrock-router/internal/common/logger"
	"bedrock-router/internal/pipeline/batch"
)

// QueueAPI is the queue surface the consumer needs.
type QueueAPI interface {
	Receive(ctx context.Context, max int32, waitSeconds int32) ([]aws.QueueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Pipeline processes one batch of raw items to terminal outcomes.
type Pipeline interface {
	ProcessBatch(ctx context.Context, items []batch.RawItem) ([]batch.Outcome, error)
}

// Consumer long-polls the intake queue and feeds batches to the pipeline.
// Every outcome is terminal (the invoker already retried transient
// failures), so each processed message is acknowledged regardless of its
// outcome status; redelivery happens only when processing itself never ran.
type Consumer struct {
	queue       QueueAPI
	pipeline    Pipeline
	maxBatch    int
	waitSeconds int32
	idleBackoff time.Duration
	logger      logger.Logger
}

func NewConsumer(queue QueueAPI, pipeline Pipeline, cfg config.Config, log logger.Logger) *Consumer {
	return &Consumer{
		queue:       queue,
		pipeline:    pipeline,
		maxBatch:    cfg.Pipeline.MaxBatchSize,
		waitSeconds: int32(cfg.Intake.WaitTimeSeconds),
		idleBackoff: time.Duration(cfg.Intake.IdleBackoff) * time.Millisecond,
		logger:      log.WithFields(map[string]interface{}{"component": "intake"}),
	}
}

// Run polls until the context is cancelled. Receive errors back off and
// retry; they never stop the loop.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("intake consumer started", map[string]interface{}{
		"max_batch": c.maxBatch,
	})

	for {
		if err := ctx.Err(); err != nil {
			c.logger.Info("intake consumer stopping", nil)
			return nil
		}

		msgs, err := c.queue.Receive(ctx, int32(c.maxBatch), c.waitSeconds)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.WithError(err).Warn("receive failed, backing off", nil)
			select {
			case <-time.After(c.idleBackoff):
			case <-ctx.Done():
			}
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		c.processMessages(ctx, msgs)
	}
}

func (c *Consumer) processMessages(ctx context.Context, msgs []aws.QueueMessage) {
	items := make([]batch.RawItem, len(msgs))
	for i, m := range msgs {
		items[i] = batch.RawItem{ID: m.ID, Body: []byte(m.Body)}
	}

	outcomes, err := c.pipeline.ProcessBatch(ctx, items)
	if err != nil {
		// Whole-batch failure: leave every message for redelivery.
		c.logger.WithError(err).Error("batch processing failed", map[string]interface{}{
			"batch_size": len(items),
		})
		return
	}

	for i, o := range outcomes {
		if o.Status == batch.StatusError {
			c.logger.Warn("item completed with error outcome", map[string]interface{}{
				"item_id":     o.ItemID,
				"error_kind":  string(o.ErrorKind),
				"tracking_id": o.TrackingID,
			})
		}
		if err := c.queue.Delete(ctx, msgs[i].ReceiptHandle); err != nil {
			// The item was processed; a redelivered duplicate will hit the
			// cache and resolve idempotently.
			c.logger.WithError(err).Warn("failed to acknowledge message", map[string]interface{}{
				"item_id": o.ItemID,
			})
		}
	}
}
