package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/finance-tracker/internal/model"
	"github.com/nimasrn/finance-tracker/internal/repository"
	"github.com/nimasrn/finance-tracker/pkg/logger"
	"github.com/nimasrn/finance-tracker/pkg/prom"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidBudget = errors.New("invalid budget")
)

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	FindByID(ctx context.Context, id int64) (*model.Transaction, error)
	DeleteByID(ctx context.Context, id int64) (*model.Transaction, error)
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, error)
	FindByMonth(ctx context.Context, month model.Month) ([]*model.Transaction, error)
}

// EventPublisher is satisfied by *queue.Queue.
type EventPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type InsightInvalidator interface {
	Invalidate(ctx context.Context, months ...model.Month) error
}

type TransactionService struct {
	repo      TransactionRepository
	publisher EventPublisher
	cache     InsightInvalidator
	now       func() time.Time
}

// NewTransactionService wires the store with the optional change publisher
// and insight cache; either may be nil.
func NewTransactionService(repo TransactionRepository, publisher EventPublisher, cache InsightInvalidator) *TransactionService {
	return &TransactionService{
		repo:      repo,
		publisher: publisher,
		cache:     cache,
		now:       time.Now,
	}
}

func (s *TransactionService) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, error) {
	txs, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	if txs == nil {
		txs = []*model.Transaction{}
	}
	return txs, nil
}

func (s *TransactionService) Get(ctx context.Context, id int64) (*model.Transaction, error) {
	t, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %d: %w", id, err)
	}
	return t, nil
}

// Create stores t under a new id; an id supplied by the caller is discarded.
func (s *TransactionService) Create(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	in := *t
	in.ID = 0

	created, err := s.repo.Create(ctx, &in)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	s.changed(ctx, model.EventTransactionCreated, created)
	return created, nil
}

func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	deleted, err := s.repo.DeleteByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete transaction %d: %w", id, err)
	}

	s.changed(ctx, model.EventTransactionDeleted, deleted)
	return nil
}

func (s *TransactionService) Summary(ctx context.Context, month model.Month) (*model.MonthSummary, error) {
	txs, err := s.repo.FindByMonth(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", month, err)
	}
	return model.NewMonthSummary(month, txs), nil
}

// changed drops stale insights and announces the change. Neither step can
// fail the request that caused it.
func (s *TransactionService) changed(ctx context.Context, typ model.EventType, t *model.Transaction) {
	prom.IncTransactionEvent(string(typ))
	event := model.NewTransactionEvent(typ, t, s.now())

	if s.cache != nil {
		months, err := event.AffectedMonths()
		if err == nil && len(months) > 0 {
			if err := s.cache.Invalidate(ctx, months...); err != nil {
				logger.Warn("failed to invalidate insights", "transaction_id", t.ID, "month", event.Month, "error", err)
			}
		}
	}

	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.PublishJSON(ctx, event, map[string]string{"type": string(typ)}); err != nil {
		logger.Error("failed to publish transaction event", "event_id", event.ID, "type", typ, "transaction_id", t.ID, "error", err)
	}
}
