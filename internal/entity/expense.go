package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expense represents an expense record for data transfer between layers.
type Expense struct {
	ID        uuid.UUID       `json:"id"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	IconName  string          `json:"icon_name"`
	UserID    string          `json:"user_id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Synced    bool            `json:"sync_status"`
}

// NewExpense builds an unsynced expense with a freshly generated id.
// Ids are assigned on the device so that creation works offline.
func NewExpense(category string, amount decimal.Decimal, date time.Time, iconName, userID string) Expense {
	now := time.Now().UTC()
	return Expense{
		ID:        uuid.New(),
		Category:  category,
		Amount:    amount,
		Date:      date.UTC(),
		IconName:  iconName,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch bumps UpdatedAt, never letting it fall behind CreatedAt.
func (e *Expense) Touch(now time.Time) {
	now = now.UTC()
	if now.Before(e.CreatedAt) {
		now = e.CreatedAt
	}
	e.UpdatedAt = now
}
