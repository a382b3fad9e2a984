package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/finance-tracker/internal/model"
	"github.com/nimasrn/finance-tracker/pkg/logger"
)

const (
	sampleMerchantLimit = 5
	defaultLLMTimeout   = 30 * time.Second
)

var errEmptyResponse = errors.New("empty response")

const promptTemplate = "You are a concise finance assistant. Given this month's totals, write ONE short sentence summarizing spending.\n" +
	"Include: top category, total amount, and one suggestion to optimize.\n\n" +
	"Month: %s\nTotal: $%s\nTop Category: %s\nSample Merchants: %s\n"

// TextGenerator is a text generation service that completes a single
// prompt without streaming.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Generative delegates the sentence to a TextGenerator and falls back to the
// rule-based text, marked with FallbackPrefix, on any failure.
type Generative struct {
	client   TextGenerator
	fallback *RuleBased
	timeout  time.Duration
}

func NewGenerative(client TextGenerator, timeout time.Duration) *Generative {
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	return &Generative{
		client:   client,
		fallback: NewRuleBased(),
		timeout:  timeout,
	}
}

func (*Generative) Name() string { return StrategyGenerative }

func (g *Generative) Summarize(ctx context.Context, month model.Month, current, previous []*model.Transaction) string {
	if len(current) == 0 {
		return emptyMonth(month)
	}

	out, err := g.generate(ctx, BuildPrompt(month, current))
	if err != nil {
		logger.Warn("[insights] text generation failed, using fallback", "month", month.String(), "error", err)
		return FallbackPrefix + g.fallback.Summarize(ctx, month, current, previous)
	}
	return out
}

func (g *Generative) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.client.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errEmptyResponse
	}
	return out, nil
}

// BuildPrompt renders the instruction sent to the text generation service.
func BuildPrompt(month model.Month, current []*model.Transaction) string {
	topCategory := "N/A"
	if top, ok := model.GroupBy(current, model.ByCategory).Top(); ok {
		topCategory = top.Key
	}
	return fmt.Sprintf(promptTemplate,
		month, model.Total(current).StringFixed(2), topCategory, strings.Join(sampleMerchants(current), ", "))
}

func sampleMerchants(txs []*model.Transaction) []string {
	out := make([]string, 0, sampleMerchantLimit)
	for _, t := range txs {
		if len(out) == sampleMerchantLimit {
			break
		}
		if t.Merchant != nil {
			out = append(out, *t.Merchant)
		}
	}
	return out
}
