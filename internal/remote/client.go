package remote

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/expense-sync/internal/common"
	"github.com/joseph-ayodele/expense-sync/internal/entity"
	"github.com/joseph-ayodele/expense-sync/internal/utils"
)

// ExpenseClient is the CRUD surface for expense records. Every call is one
// round trip; nothing is retried here.
type ExpenseClient interface {
	// CreateExpense inserts the record under its caller-supplied id and
	// returns the stored row.
	CreateExpense(ctx context.Context, e entity.Expense) (entity.Expense, error)
	FetchExpenses(ctx context.Context, userID string) ([]entity.Expense, error)
	UpdateExpense(ctx context.Context, e entity.Expense) (entity.Expense, error)
	DeleteExpense(ctx context.Context, id uuid.UUID) error
}

// ProfileClient is the CRUD surface for user profiles.
type ProfileClient interface {
	CreateProfile(ctx context.Context, p entity.Profile) (entity.Profile, error)
	FetchProfile(ctx context.Context, id string) (entity.Profile, error)
	UpdateProfile(ctx context.Context, p entity.Profile) (entity.Profile, error)
}

type Client interface {
	ExpenseClient
	ProfileClient
}

const (
	insertExpenseSQL = `INSERT INTO expenses (id, category, amount, date, icon_name, user_id, created_at, updated_at)
SELECT id, category, amount, date, icon_name, user_id, created_at, updated_at
FROM jsonb_populate_record(NULL::expenses, $1::jsonb)
RETURNING row_to_json(expenses)`

	updateExpenseSQL = `UPDATE expenses AS e
SET category = p.category, amount = p.amount, date = p.date, icon_name = p.icon_name, updated_at = p.updated_at
FROM jsonb_populate_record(NULL::expenses, $1::jsonb) AS p
WHERE e.id = p.id
RETURNING row_to_json(e)`

	selectExpensesByUserSQL = `SELECT row_to_json(e) FROM expenses e WHERE e.user_id = $1 ORDER BY e.created_at DESC`

	selectExpenseByIDSQL = `SELECT row_to_json(e) FROM expenses e WHERE e.id = $1`

	selectExpensesByRangeSQL = `SELECT row_to_json(e) FROM expenses e
WHERE e.user_id = $1 AND e.date >= $2::timestamptz AND e.date <= $3::timestamptz
ORDER BY e.date DESC`

	deleteExpenseSQL = `DELETE FROM expenses WHERE id = $1`

	insertProfileSQL = `INSERT INTO profiles (id, email, first_name, last_name, phone_number, date_of_birth, profile_image_url, currency, timezone, created_at, updated_at)
SELECT id, email, first_name, last_name, phone_number, date_of_birth, profile_image_url, currency, timezone, created_at, updated_at
FROM jsonb_populate_record(NULL::profiles, $1::jsonb)
RETURNING row_to_json(profiles)`

	updateProfileSQL = `UPDATE profiles AS t
SET first_name = p.first_name, last_name = p.last_name, phone_number = p.phone_number,
	date_of_birth = p.date_of_birth, profile_image_url = p.profile_image_url,
	currency = p.currency, timezone = p.timezone, updated_at = p.updated_at
FROM jsonb_populate_record(NULL::profiles, $1::jsonb) AS p
WHERE t.id = p.id
RETURNING row_to_json(t)`

	selectProfileByIDSQL    = `SELECT row_to_json(p) FROM profiles p WHERE p.id = $1`
	selectProfileByEmailSQL = `SELECT row_to_json(p) FROM profiles p WHERE p.email = $1`
	profileExistsSQL        = `SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`
	deleteProfileSQL        = `DELETE FROM profiles WHERE id = $1`
)

// PostgresClient talks to the remote relational store.
type PostgresClient struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ Client = (*PostgresClient)(nil)

func NewPostgresClient(pool *pgxpool.Pool, logger *slog.Logger) *PostgresClient {
	return &PostgresClient{
		pool:   pool,
		logger: logger,
	}
}

// log tags records with the sync pass and user the call runs for.
func (c *PostgresClient) log(ctx context.Context) *slog.Logger {
	return common.LoggerFromContext(ctx, c.logger)
}

func (c *PostgresClient) CreateExpense(ctx context.Context, e entity.Expense) (entity.Expense, error) {
	payload, err := encodeExpense(e)
	if err != nil {
		return entity.Expense{}, err
	}
	var raw []byte
	if err := c.pool.QueryRow(ctx, insertExpenseSQL, string(payload)).Scan(&raw); err != nil {
		c.log(ctx).Warn("remote create expense failed", "expense_id", e.ID, "error", err)
		return entity.Expense{}, classify("create expense", err)
	}
	return decodeExpense(raw)
}

func (c *PostgresClient) FetchExpenses(ctx context.Context, userID string) ([]entity.Expense, error) {
	c.logger.Debug("fetching remote expenses", "user_id", userID)
	return c.queryExpenses(ctx, "fetch expenses", selectExpensesByUserSQL, userID)
}

func (c *PostgresClient) FetchExpense(ctx context.Context, id uuid.UUID) (entity.Expense, error) {
	var raw []byte
	if err := c.pool.QueryRow(ctx, selectExpenseByIDSQL, id.String()).Scan(&raw); err != nil {
		return entity.Expense{}, classify("fetch expense", err)
	}
	return decodeExpense(raw)
}

func (c *PostgresClient) FetchExpensesByDateRange(ctx context.Context, userID string, from, to time.Time) ([]entity.Expense, error) {
	return c.queryExpenses(ctx, "fetch expenses by date range", selectExpensesByRangeSQL,
		userID, utils.FormatTimestamp(from), utils.FormatTimestamp(to))
}

func (c *PostgresClient) UpdateExpense(ctx context.Context, e entity.Expense) (entity.Expense, error) {
	payload, err := encodeExpense(e)
	if err != nil {
		return entity.Expense{}, err
	}
	var raw []byte
	if err := c.pool.QueryRow(ctx, updateExpenseSQL, string(payload)).Scan(&raw); err != nil {
		c.log(ctx).Warn("remote update expense failed", "expense_id", e.ID, "error", err)
		return entity.Expense{}, classify("update expense", err)
	}
	return decodeExpense(raw)
}

func (c *PostgresClient) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	tag, err := c.pool.Exec(ctx, deleteExpenseSQL, id.String())
	if err != nil {
		return classify("delete expense", err)
	}
	if tag.RowsAffected() == 0 {
		return classify("delete expense", pgx.ErrNoRows)
	}
	return nil
}

func (c *PostgresClient) CreateProfile(ctx context.Context, p entity.Profile) (entity.Profile, error) {
	payload, err := encodeProfile(p)
	if err != nil {
		return entity.Profile{}, err
	}
	var raw []byte
	if err := c.pool.QueryRow(ctx, insertProfileSQL, string(payload)).Scan(&raw); err != nil {
		c.log(ctx).Warn("remote create profile failed", "profile_id", p.ID, "email", p.Email, "error", err)
		return entity.Profile{}, classify("create profile", err)
	}
	return decodeProfile(raw)
}

func (c *PostgresClient) FetchProfile(ctx context.Context, id string) (entity.Profile, error) {
	var raw []byte
	if err := c.pool.QueryRow(ctx, selectProfileByIDSQL, id).Scan(&raw); err != nil {
		return entity.Profile{}, classify("fetch profile", err)
	}
	return decodeProfile(raw)
}

// FetchProfileByEmail returns nil when no profile uses the address.
func (c *PostgresClient) FetchProfileByEmail(ctx context.Context, email string) (*entity.Profile, error) {
	var raw []byte
	err := c.pool.QueryRow(ctx, selectProfileByEmailSQL, email).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("fetch profile by email", err)
	}
	p, err := decodeProfile(raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *PostgresClient) ProfileExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := c.pool.QueryRow(ctx, profileExistsSQL, id).Scan(&exists); err != nil {
		return false, classify("profile exists", err)
	}
	return exists, nil
}

func (c *PostgresClient) UpdateProfile(ctx context.Context, p entity.Profile) (entity.Profile, error) {
	payload, err := encodeProfile(p)
	if err != nil {
		return entity.Profile{}, err
	}
	var raw []byte
	if err := c.pool.QueryRow(ctx, updateProfileSQL, string(payload)).Scan(&raw); err != nil {
		return entity.Profile{}, classify("update profile", err)
	}
	return decodeProfile(raw)
}

func (c *PostgresClient) DeleteProfile(ctx context.Context, id string) error {
	tag, err := c.pool.Exec(ctx, deleteProfileSQL, id)
	if err != nil {
		return classify("delete profile", err)
	}
	if tag.RowsAffected() == 0 {
		return classify("delete profile", pgx.ErrNoRows)
	}
	return nil
}

func (c *PostgresClient) queryExpenses(ctx context.Context, op, query string, args ...any) ([]entity.Expense, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	raws, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, classify(op, err)
	}

	out := make([]entity.Expense, 0, len(raws))
	for _, raw := range raws {
		e, err := decodeExpense(raw)
		if err != nil {
			c.log(ctx).Warn("skipping undecodable remote row", "op", op, "error", err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
