package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/finance-tracker/internal/model"
	"github.com/nimasrn/finance-tracker/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
)

const batchSize = 100

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

// Create stores txn under a fresh id. Any id already set on txn is ignored.
func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)
	entity.ID = 0

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

// CreateBatch stores all transactions in one database transaction.
func (r *TransactionRepository) CreateBatch(ctx context.Context, txns []*model.Transaction) (int, error) {
	if len(txns) == 0 {
		return 0, nil
	}
	entities := make([]*TransactionEntity, len(txns))
	for i, t := range txns {
		entities[i] = toTransactionEntity(t)
		entities[i].ID = 0
	}

	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		return r.Write(ctx).CreateInBatches(entities, batchSize).Error
	})
	if err != nil {
		return 0, err
	}
	return len(entities), nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id int64) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

// DeleteByID removes the transaction and returns what was deleted, so callers
// can react to its date.
func (r *TransactionRepository) DeleteByID(ctx context.Context, id int64) (*model.Transaction, error) {
	var deleted *model.Transaction
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		var entity TransactionEntity
		err := r.Write(ctx).Where("id = ?", id).First(&entity).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		res := r.Write(ctx).Delete(&TransactionEntity{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		deleted = toTransactionModel(&entity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (r *TransactionRepository) ListAll(ctx context.Context) ([]*model.Transaction, error) {
	var entities []*TransactionEntity
	if err := r.Read(ctx).Order("id ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

// FindByDateRange returns transactions dated within [start, end], both ends
// inclusive, ordered by id.
func (r *TransactionRepository) FindByDateRange(ctx context.Context, start, end model.Date) ([]*model.Transaction, error) {
	var entities []*TransactionEntity
	err := r.Read(ctx).
		Where("date >= ? AND date < ?", start.String(), end.AddDays(1).String()).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

func (r *TransactionRepository) FindByMonth(ctx context.Context, month model.Month) ([]*model.Transaction, error) {
	return r.FindByDateRange(ctx, month.FirstDay(), month.LastDay())
}

// List applies the date bounds of f in SQL and the text criteria in memory,
// so matching stays identical across database engines.
func (r *TransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, error) {
	q := r.Read(ctx).Model(&TransactionEntity{})

	if f.From != nil {
		q = q.Where("date >= ?", f.From.String())
	}
	if f.To != nil {
		q = q.Where("date < ?", f.To.AddDays(1).String())
	}
	if f.Month != nil {
		q = q.Where("date >= ? AND date < ?", f.Month.FirstDay().String(), f.Month.Next().FirstDay().String())
	}

	var entities []*TransactionEntity
	if err := q.Order("id ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	return f.Apply(toTransactionModels(entities)), nil
}

func (r *TransactionRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.Read(ctx).Model(&TransactionEntity{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
