package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/finance-tracker/internal/insights"
	"github.com/nimasrn/finance-tracker/internal/model"
	"github.com/nimasrn/finance-tracker/pkg/logger"
	"github.com/nimasrn/finance-tracker/pkg/prom"
	"golang.org/x/sync/errgroup"
)

const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeEmpty    = "empty"
	OutcomeCached   = "cached"
)

type MonthReader interface {
	FindByMonth(ctx context.Context, month model.Month) ([]*model.Transaction, error)
}

type InsightCache interface {
	Get(ctx context.Context, strategy string, month model.Month) (string, bool, error)
	Set(ctx context.Context, strategy string, month model.Month, text string) error
}

type InsightService struct {
	repo      MonthReader
	generator insights.Generator
	cache     InsightCache
}

// NewInsightService serves insights from generator; cache may be nil.
func NewInsightService(repo MonthReader, generator insights.Generator, cache InsightCache) *InsightService {
	return &InsightService{
		repo:      repo,
		generator: generator,
		cache:     cache,
	}
}

func (s *InsightService) Strategy() string {
	return s.generator.Name()
}

// Insight returns the cached text for month when present, otherwise a fresh one.
func (s *InsightService) Insight(ctx context.Context, month model.Month) (*model.Insight, error) {
	strategy := s.generator.Name()
	if s.cache != nil {
		text, ok, err := s.cache.Get(ctx, strategy, month)
		if err != nil {
			logger.Warn("insight cache lookup failed", "strategy", strategy, "month", month.String(), "error", err)
		} else if ok {
			prom.IncInsightGenerated(strategy, OutcomeCached)
			return &model.Insight{Month: month.String(), Summary: text}, nil
		}
	}

	text, err := s.Refresh(ctx, month)
	if err != nil {
		return nil, err
	}
	return &model.Insight{Month: month.String(), Summary: text}, nil
}

// Refresh generates the text for month bypassing the cache lookup and stores
// the result.
func (s *InsightService) Refresh(ctx context.Context, month model.Month) (string, error) {
	current, previous, err := s.load(ctx, month)
	if err != nil {
		return "", err
	}

	strategy := s.generator.Name()
	start := time.Now()
	text := s.generator.Summarize(ctx, month, current, previous)
	prom.AddInsightDuration(time.Since(start).Seconds(), strategy)
	prom.IncInsightGenerated(strategy, outcome(month, text))

	if s.cache != nil {
		if err := s.cache.Set(ctx, strategy, month, text); err != nil {
			logger.Warn("failed to cache insight", "strategy", strategy, "month", month.String(), "error", err)
		}
	}
	return text, nil
}

func (s *InsightService) load(ctx context.Context, month model.Month) (current, previous []*model.Transaction, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := s.repo.FindByMonth(gctx, month)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", month, err)
		}
		current = txs
		return nil
	})
	g.Go(func() error {
		prev := month.Prev()
		txs, err := s.repo.FindByMonth(gctx, prev)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", prev, err)
		}
		previous = txs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return current, previous, nil
}

func outcome(month model.Month, text string) string {
	switch {
	case insights.IsEmptyMonthText(month, text):
		return OutcomeEmpty
	case insights.IsFallback(text):
		return OutcomeFallback
	default:
		return OutcomeOK
	}
}
