package remote

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/expense-sync/internal/entity"
	"github.com/joseph-ayodele/expense-sync/internal/utils"
)

// ExpenseRow is the wire shape of an expense: snake_case keys, textual timestamps.
type ExpenseRow struct {
	ID        string          `json:"id"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"date"`
	IconName  string          `json:"icon_name"`
	UserID    string          `json:"user_id"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

// ProfileRow is the wire shape of a profile.
type ProfileRow struct {
	ID              string  `json:"id"`
	Email           string  `json:"email"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	PhoneNumber     *string `json:"phone_number"`
	DateOfBirth     *string `json:"date_of_birth"`
	ProfileImageURL *string `json:"profile_image_url"`
	Currency        string  `json:"currency"`
	Timezone        string  `json:"timezone"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func ToExpenseRow(e entity.Expense) ExpenseRow {
	return ExpenseRow{
		ID:        e.ID.String(),
		Category:  e.Category,
		Amount:    e.Amount,
		Date:      utils.FormatTimestamp(e.Date),
		IconName:  e.IconName,
		UserID:    e.UserID,
		CreatedAt: utils.FormatTimestamp(e.CreatedAt),
		UpdatedAt: utils.FormatTimestamp(e.UpdatedAt),
	}
}

// ToExpense converts a wire row back to the model. Rows coming from the
// remote store are accepted records, so the result is flagged synced.
func (r ExpenseRow) ToExpense() (entity.Expense, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return entity.Expense{}, fmt.Errorf("expense id %q: %w", r.ID, err)
	}
	date, err := utils.ParseTimestamp(r.Date)
	if err != nil {
		return entity.Expense{}, fmt.Errorf("expense %s date: %w", r.ID, err)
	}
	createdAt, err := utils.ParseTimestamp(r.CreatedAt)
	if err != nil {
		return entity.Expense{}, fmt.Errorf("expense %s created_at: %w", r.ID, err)
	}
	updatedAt, err := utils.ParseTimestamp(r.UpdatedAt)
	if err != nil {
		return entity.Expense{}, fmt.Errorf("expense %s updated_at: %w", r.ID, err)
	}
	return entity.Expense{
		ID:        id,
		Category:  r.Category,
		Amount:    r.Amount,
		Date:      date,
		IconName:  r.IconName,
		UserID:    r.UserID,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		Synced:    true,
	}, nil
}

func ToProfileRow(p entity.Profile) ProfileRow {
	return ProfileRow{
		ID:              p.ID,
		Email:           p.Email,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		PhoneNumber:     p.PhoneNumber,
		DateOfBirth:     utils.FormatTimestampPtr(p.DateOfBirth),
		ProfileImageURL: p.ProfileImageURL,
		Currency:        p.Currency,
		Timezone:        p.Timezone,
		CreatedAt:       utils.FormatTimestamp(p.CreatedAt),
		UpdatedAt:       utils.FormatTimestamp(p.UpdatedAt),
	}
}

func (r ProfileRow) ToProfile() (entity.Profile, error) {
	dob, err := utils.ParseTimestampPtr(r.DateOfBirth)
	if err != nil {
		return entity.Profile{}, fmt.Errorf("profile %s date_of_birth: %w", r.ID, err)
	}
	createdAt, err := utils.ParseTimestamp(r.CreatedAt)
	if err != nil {
		return entity.Profile{}, fmt.Errorf("profile %s created_at: %w", r.ID, err)
	}
	updatedAt, err := utils.ParseTimestamp(r.UpdatedAt)
	if err != nil {
		return entity.Profile{}, fmt.Errorf("profile %s updated_at: %w", r.ID, err)
	}
	return entity.Profile{
		ID:              r.ID,
		Email:           r.Email,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		PhoneNumber:     r.PhoneNumber,
		DateOfBirth:     dob,
		ProfileImageURL: r.ProfileImageURL,
		Currency:        r.Currency,
		Timezone:        r.Timezone,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}, nil
}

// encodeExpense marshals and validates an outgoing expense payload.
func encodeExpense(e entity.Expense) ([]byte, error) {
	b, err := json.Marshal(ToExpenseRow(e))
	if err != nil {
		return nil, fmt.Errorf("marshal expense: %w", err)
	}
	if err := validatePayload(expenseSchema(), b); err != nil {
		return nil, err
	}
	return b, nil
}

func encodeProfile(p entity.Profile) ([]byte, error) {
	b, err := json.Marshal(ToProfileRow(p))
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}
	if err := validatePayload(profileSchema(), b); err != nil {
		return nil, err
	}
	return b, nil
}

func decodeExpense(raw []byte) (entity.Expense, error) {
	var row ExpenseRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return entity.Expense{}, fmt.Errorf("unmarshal expense: %w", err)
	}
	return row.ToExpense()
}

func decodeProfile(raw []byte) (entity.Profile, error) {
	var row ProfileRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return entity.Profile{}, fmt.Errorf("unmarshal profile: %w", err)
	}
	return row.ToProfile()
}
