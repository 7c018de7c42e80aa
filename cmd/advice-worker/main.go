// Package main is the advice worker Lambda.
//
// It consumes advice requests from SQS, one AdviceRequest JSON document per
// message, and runs them through the advisor. Issued advice is logged and
// published to the decisions queue by the advisor itself. Requests that can
// never succeed (malformed, invalid series, bad thresholds) are acknowledged
// and dropped; transient failures are returned as batch item failures so SQS
// redelivers only those messages.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"courtwind/internal/app"
	"courtwind/internal/config"
	"courtwind/internal/core"
	"courtwind/internal/types"
)

// Advisor is the subset of the advisor service the worker needs.
type Advisor interface {
	Advise(ctx context.Context, req types.AdviceRequest) (*types.Advice, error)
}

// Handler processes SQS batches of advice requests.
type Handler struct {
	advisor   Advisor
	validator *core.Validator
	logger    *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(advisor Advisor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{advisor: advisor, validator: core.NewValidator(logger), logger: logger}
}

// Handle processes every record independently and reports retryable failures.
func (h *Handler) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	resp := events.SQSEventResponse{}
	issued := 0
	for _, record := range ev.Records {
		ok, err := h.processMessage(ctx, record)
		if err != nil {
			h.logger.ErrorContext(ctx, "advice request failed, will retry",
				"message_id", record.MessageId,
				"error", err,
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
			continue
		}
		if ok {
			issued++
		}
	}

	h.logger.InfoContext(ctx, "advice batch processed",
		"records", len(ev.Records),
		"issued", issued,
		"failures", len(resp.BatchItemFailures),
	)
	return resp, nil
}

// processMessage returns ok when advice was issued, and an error only when
// the message should be redelivered.
func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) (bool, error) {
	logger := h.logger.With("message_id", record.MessageId)

	var req types.AdviceRequest
	if err := json.Unmarshal([]byte(record.Body), &req); err != nil {
		logger.WarnContext(ctx, "dropping malformed advice request", "error", err)
		return false, nil
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		logger.WarnContext(ctx, "dropping invalid advice request", "error", err)
		return false, nil
	}

	logger = logger.With("location_id", req.LocationID)
	advice, err := h.advisor.Advise(types.WithLogger(ctx, logger), req)
	if err != nil {
		if !retryable(err) {
			logger.WarnContext(ctx, "dropping advice request that cannot succeed",
				"code", types.CodeOf(err),
				"error", err,
			)
			return false, nil
		}
		return false, err
	}

	logger.InfoContext(ctx, "advice issued from queue",
		"advice_id", advice.ID,
		"can_play", advice.Decision.CanPlay,
	)
	return true, nil
}

// retryable reports whether err is transient: server-side AppErrors and
// anything unclassified.
func retryable(err error) bool {
	code := types.CodeOf(err)
	if code == "" {
		return true
	}
	return code.HTTPStatus() >= http.StatusInternalServerError || code == types.ErrCodeUpstreamRateLimited
}

func main() {
	logger := app.NewLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("advice worker initializing (cold start)")

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	a, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to assemble advisor", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	lambda.Start(NewHandler(a.Service, logger).Handle)
}
