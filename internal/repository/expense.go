package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/expense-sync/internal/common"
	"github.com/joseph-ayodele/expense-sync/internal/entity"
)

const expensesTable = "expenses"

const (
	unsynced = 0
	synced   = 1
)

var expenseColumns = []string{
	"id", "category", "amount", "date", "icon_name",
	"user_id", "created_at", "updated_at", "sync_status",
}

// ExpenseRepository is the on-device cache of expense records keyed by id.
// Every call blocks the caller; writers are serialized internally.
type ExpenseRepository interface {
	// Save inserts a new row flagged as not synced.
	Save(ctx context.Context, e entity.Expense) error
	// Update overwrites the mutable fields of an existing row and clears its
	// sync flag. It reports false when no row has that id.
	Update(ctx context.Context, e entity.Expense) (bool, error)
	// Delete removes every row with the id and returns how many went away.
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Expense, error)
	FetchAll(ctx context.Context) ([]entity.Expense, error)
	FetchUnsynced(ctx context.Context) ([]entity.Expense, error)
	// FetchRange lists rows whose date falls in [from, to]; nil bounds are open.
	FetchRange(ctx context.Context, from, to *time.Time) ([]entity.Expense, error)
	MarkSynced(ctx context.Context, id uuid.UUID) error
	// MarkSyncedIfUnchanged marks the row synced only if it was not edited
	// after updatedAt. It reports whether the flag was set.
	MarkSyncedIfUnchanged(ctx context.Context, id uuid.UUID, updatedAt time.Time) (bool, error)
	// Replace overwrites a synced row with an authoritative server copy. Rows
	// with local edits still pending are left alone and false is returned.
	Replace(ctx context.Context, e entity.Expense) (bool, error)
	ClearAll(ctx context.Context) error
}

type expenseRepository struct {
	db     *sql.DB
	logger *slog.Logger

	mu sync.RWMutex
}

func NewExpenseRepository(db *sql.DB, logger *slog.Logger) ExpenseRepository {
	return &expenseRepository{
		db:     db,
		logger: logger,
	}
}

func (r *expenseRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func (r *expenseRepository) Save(ctx context.Context, e entity.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query, args := r.builder().Insert(expensesTable).
		Columns(expenseColumns...).
		Values(e.ID.String(), e.Category, e.Amount.String(), toNanos(e.Date), e.IconName,
			e.UserID, toNanos(e.CreatedAt), toNanos(e.UpdatedAt), unsynced).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to save expense", "expense_id", e.ID, "error", err)
		return common.LocalStorageError("save expense", err)
	}
	return nil
}

func (r *expenseRepository) Update(ctx context.Context, e entity.Expense) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	query, args := r.builder().Update(expensesTable).
		Set("category", e.Category).
		Set("amount", e.Amount.String()).
		Set("date", toNanos(e.Date)).
		Set("icon_name", e.IconName).
		Set("user_id", e.UserID).
		Set("updated_at", toNanos(e.UpdatedAt)).
		Set("sync_status", unsynced).
		Where(entsql.EQ("id", e.ID.String())).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to update expense", "expense_id", e.ID, "error", err)
		return false, common.LocalStorageError("update expense", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, common.LocalStorageError("update expense", err)
	}
	if n == 0 {
		r.logger.Debug("update skipped, expense not in local store", "expense_id", e.ID)
	}
	return n > 0, nil
}

func (r *expenseRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	query, args := r.builder().Delete(expensesTable).
		Where(entsql.EQ("id", id.String())).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to delete expense", "expense_id", id, "error", err)
		return 0, common.LocalStorageError("delete expense", err)
	}
	return res.RowsAffected()
}

func (r *expenseRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recs, err := r.query(ctx, "get expense", func(s *entsql.Selector) {
		s.Where(entsql.EQ("id", id.String()))
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, common.NotFound("expense " + id.String())
	}
	return &recs[0], nil
}

func (r *expenseRepository) FetchAll(ctx context.Context) ([]entity.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.query(ctx, "fetch expenses", nil)
}

func (r *expenseRepository) FetchUnsynced(ctx context.Context) ([]entity.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.query(ctx, "fetch unsynced expenses", func(s *entsql.Selector) {
		s.Where(entsql.EQ("sync_status", unsynced))
	})
}

func (r *expenseRepository) FetchRange(ctx context.Context, from, to *time.Time) ([]entity.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.query(ctx, "fetch expenses in range", func(s *entsql.Selector) {
		if from != nil {
			s.Where(entsql.GTE("date", toNanos(*from)))
		}
		if to != nil {
			s.Where(entsql.LTE("date", toNanos(*to)))
		}
	})
}

func (r *expenseRepository) MarkSynced(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query, args := r.builder().Update(expensesTable).
		Set("sync_status", synced).
		Where(entsql.EQ("id", id.String())).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to mark expense as synced", "expense_id", id, "error", err)
		return common.LocalStorageError("mark expense synced", err)
	}
	return nil
}

func (r *expenseRepository) MarkSyncedIfUnchanged(ctx context.Context, id uuid.UUID, updatedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	query, args := r.builder().Update(expensesTable).
		Set("sync_status", synced).
		Where(entsql.And(
			entsql.EQ("id", id.String()),
			entsql.EQ("updated_at", toNanos(updatedAt)),
		)).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to mark expense as synced", "expense_id", id, "error", err)
		return false, common.LocalStorageError("mark expense synced", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, common.LocalStorageError("mark expense synced", err)
	}
	return n > 0, nil
}

func (r *expenseRepository) Replace(ctx context.Context, e entity.Expense) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	query, args := r.builder().Update(expensesTable).
		Set("category", e.Category).
		Set("amount", e.Amount.String()).
		Set("date", toNanos(e.Date)).
		Set("icon_name", e.IconName).
		Set("user_id", e.UserID).
		Set("created_at", toNanos(e.CreatedAt)).
		Set("updated_at", toNanos(e.UpdatedAt)).
		Where(entsql.And(
			entsql.EQ("id", e.ID.String()),
			entsql.EQ("sync_status", synced),
		)).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to replace expense", "expense_id", e.ID, "error", err)
		return false, common.LocalStorageError("replace expense", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, common.LocalStorageError("replace expense", err)
	}
	return n > 0, nil
}

func (r *expenseRepository) ClearAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query, args := r.builder().Delete(expensesTable).Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to clear local store", "error", err)
		return common.LocalStorageError("clear expenses", err)
	}
	n, _ := res.RowsAffected()
	r.logger.Info("local store cleared", "rows", n)
	return nil
}

// query runs a select over all columns ordered by date, newest first.
// Callers hold the read lock.
func (r *expenseRepository) query(ctx context.Context, op string, where func(*entsql.Selector)) ([]entity.Expense, error) {
	b := r.builder()
	s := b.Select(expenseColumns...).From(b.Table(expensesTable))
	if where != nil {
		where(s)
	}
	query, args := s.OrderBy(entsql.Desc("date")).Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("local store query failed", "op", op, "error", err)
		return nil, common.LocalStorageError(op, err)
	}
	defer rows.Close()

	result := make([]entity.Expense, 0)
	for rows.Next() {
		var (
			e                          entity.Expense
			id, amount                 string
			date, createdAt, updatedAt int64
		)
		if err := rows.Scan(&id, &e.Category, &amount, &date, &e.IconName, &e.UserID, &createdAt, &updatedAt, &e.Synced); err != nil {
			return nil, common.LocalStorageError(op, err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			r.logger.Warn("skipping row with malformed id", "id", id, "error", err)
			continue
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			r.logger.Warn("skipping row with malformed amount", "expense_id", id, "amount", amount, "error", err)
			continue
		}
		e.Date = fromNanos(date)
		e.CreatedAt = fromNanos(createdAt)
		e.UpdatedAt = fromNanos(updatedAt)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, common.LocalStorageError(op, err)
	}
	return result, nil
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
