package messagebus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	syncpkg "example.com/mci/services/delivery/internal/sync"
)

// Processor consumes row-change events from the remote store's change feed
// and applies them to the orchestrator's in-memory view
type Processor struct {
	client       Client
	orchestrator *syncpkg.Orchestrator
	queueName    string
	log          *logrus.Logger
}

// NewProcessor creates a new change-feed processor
func NewProcessor(client Client, orchestrator *syncpkg.Orchestrator, queueName string, log *logrus.Logger) *Processor {
	return &Processor{
		client:       client,
		orchestrator: orchestrator,
		queueName:    queueName,
		log:          log,
	}
}

// ProcessMessage decodes one change event and applies it
func (p *Processor) ProcessMessage(ctx context.Context, message Message) error {
	body, err := message.Body()
	if err != nil {
		return err
	}

	var event syncpkg.ChangeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("error unmarshalling change event: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"event_type": event.Type,
		"table":      event.Table,
	}).Info("Processing change event")

	return p.orchestrator.HandleRemoteChange(ctx, event)
}

// Run polls the queue until ctx is cancelled. Malformed messages are
// rejected so they land in the dead-letter queue instead of looping forever.
func (p *Processor) Run(ctx context.Context) error {
	p.log.WithField("queue", p.queueName).Info("Starting change-feed processor")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		messages, err := p.client.ReceiveMessages(ctx, p.queueName, 10)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.WithError(err).Warn("Failed to receive change events, backing off")
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for _, message := range messages {
			if err := p.ProcessMessage(ctx, message); err != nil {
				p.log.WithError(err).Error("Failed to process change event")
				if rejectErr := message.Reject(ctx); rejectErr != nil {
					p.log.WithError(rejectErr).Error("Failed to reject change event")
				}
				continue
			}
			if err := message.Complete(ctx); err != nil {
				p.log.WithError(err).Error("Failed to complete change event")
			}
		}
	}
}
