package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nimasrn/finance-tracker/internal/model"
	"github.com/nimasrn/finance-tracker/internal/queue"
	"github.com/nimasrn/finance-tracker/pkg/logger"
)

type InsightRefresher interface {
	Refresh(ctx context.Context, month model.Month) (string, error)
}

// RefreshProcessor regenerates the insights a transaction change made stale
// so the next request is served from cache.
type RefreshProcessor struct {
	refresher   InsightRefresher
	idempotency *IdempotencyService
}

func NewRefreshProcessor(refresher InsightRefresher, idempotency *IdempotencyService) *RefreshProcessor {
	return &RefreshProcessor{
		refresher:   refresher,
		idempotency: idempotency,
	}
}

func (p *RefreshProcessor) GetType() string {
	return "insight-refresh"
}

func (p *RefreshProcessor) Process(ctx context.Context, msg *queue.Message) error {
	var event model.TransactionEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("failed to unmarshal transaction event", "stream_id", msg.ID, "error", err)
		return fmt.Errorf("malformed event %s: %w", msg.ID, err)
	}
	if event.ID == "" {
		event.ID = msg.ID
	}

	months, err := event.AffectedMonths()
	if err != nil {
		logger.Error("event carries an invalid month", "event_id", event.ID, "month", event.Month, "error", err)
		return nil
	}
	if len(months) == 0 {
		return nil
	}

	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, event.ID)
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		logger.Info("event already processed, skipping", "event_id", event.ID)
		return nil
	case errors.Is(err, ErrMaxRetriesExceeded):
		logger.Error("max retries exceeded", "event_id", event.ID)
		return nil
	case err != nil:
		return err
	}
	defer func() {
		_ = p.idempotency.ReleaseLock(ctx, procCtx)
	}()

	for _, m := range months {
		if _, err := p.refresher.Refresh(ctx, m); err != nil {
			if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
				logger.Error("failed to mark failure", "event_id", event.ID, "error", markErr)
			}
			return fmt.Errorf("failed to refresh %s: %w", m, err)
		}
	}

	if err := p.idempotency.MarkSuccess(ctx, procCtx); err != nil {
		logger.Error("failed to mark success", "event_id", event.ID, "error", err)
	}

	logger.Info("insights refreshed",
		"event_id", event.ID,
		"type", event.Type,
		"transaction_id", event.TransactionID,
		"month", event.Month,
		"retry_count", procCtx.RetryCount)
	return nil
}
