// Package queue publishes decision events to SQS for the presentation layer.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"courtwind/internal/config"
	"courtwind/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// DecisionPublisher sends one DecisionEvent per issued Advice. Message
// attributes carry location and outcome so subscribers can filter without
// parsing the body.
type DecisionPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewDecisionPublisher creates a DecisionPublisher for the decisions queue in
// awsCfg.
func NewDecisionPublisher(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *DecisionPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &DecisionPublisher{
		client:   client,
		queueURL: awsCfg.DecisionQueueURL,
		logger:   logger,
	}
}

// Publish wraps advice in a DecisionEvent and sends it.
func (p *DecisionPublisher) Publish(ctx context.Context, advice *types.Advice) error {
	ev := types.DecisionEvent{
		EventID:    uuid.New().String(),
		AdviceID:   advice.ID,
		LocationID: advice.LocationID,
		CanPlay:    advice.Decision.CanPlay,
		Reason:     advice.Decision.Reason,
		IssuedAt:   advice.IssuedAt,
		Advice:     *advice,
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal DecisionEvent: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"location_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(ev.LocationID),
			},
			"can_play": {
				DataType:    aws.String("String"),
				StringValue: aws.String(strconv.FormatBool(ev.CanPlay)),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamQueue, fmt.Sprintf("failed to publish decision to %s", p.queueURL), err)
	}

	p.logger.InfoContext(ctx, "decision event published",
		"event_id", ev.EventID,
		"advice_id", ev.AdviceID,
		"location_id", ev.LocationID,
		"can_play", ev.CanPlay,
	)
	return nil
}
