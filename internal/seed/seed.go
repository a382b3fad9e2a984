// Package seed loads the initial transaction set from a CSV file.
package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nimasrn/finance-tracker/internal/model"
	"github.com/nimasrn/finance-tracker/pkg/logger"
)

const columns = 5

var ErrStoreNotEmpty = errors.New("transaction store is not empty")

type Store interface {
	Count(ctx context.Context) (int64, error)
	CreateBatch(ctx context.Context, txns []*model.Transaction) (int, error)
}

// Parse reads date,merchant,amount,category,notes rows after a header line.
// Short rows are skipped; unparseable dates and amounts become absent.
func Parse(r io.Reader) ([]*model.Transaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var txs []*model.Transaction
	header := true
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		if header {
			header = false
			continue
		}
		if len(record) < columns {
			logger.Debug("skipping short seed row", "line", line, "columns", len(record))
			continue
		}
		txs = append(txs, parseRecord(record))
	}
	return txs, nil
}

func parseRecord(record []string) *model.Transaction {
	field := func(i int) *string {
		v := strings.TrimSpace(record[i])
		if v == "" {
			return nil
		}
		return &v
	}

	t := &model.Transaction{
		Date:     model.ParseDatePtr(record[0]),
		Merchant: field(1),
		Category: field(3),
		Notes:    field(4),
	}
	if amount, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64); err == nil {
		t.Amount = &amount
	}
	return t
}

// Load inserts the rows of r when the store holds no transactions yet.
func Load(ctx context.Context, store Store, r io.Reader) (int, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	if count > 0 {
		return 0, ErrStoreNotEmpty
	}

	txs, err := Parse(r)
	if err != nil {
		return 0, err
	}

	n, err := store.CreateBatch(ctx, txs)
	if err != nil {
		return 0, fmt.Errorf("failed to store seed rows: %w", err)
	}
	logger.Info("seeded transactions", "count", n)
	return n, nil
}

func LoadFile(ctx context.Context, store Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return Load(ctx, store, f)
}
