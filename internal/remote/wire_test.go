package remote

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/expense-sync/internal/common"
	"github.com/joseph-ayodele/expense-sync/internal/entity"
	"github.com/joseph-ayodele/expense-sync/internal/utils"
)

func sampleExpense() entity.Expense {
	e := entity.NewExpense("Food", decimal.RequireFromString("-12.34"), time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC), "fork.knife", "user-1")
	return e
}

func sampleProfile() entity.Profile {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return entity.Profile{
		ID:          uuid.NewString(),
		Email:       "ada@example.com",
		FirstName:   "Ada",
		LastName:    "Lovelace",
		PhoneNumber: utils.StrPtr("+44 20 0000"),
		Currency:    "GBP",
		Timezone:    "Europe/London",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestEncodeExpenseUsesSnakeCaseAndStrings(t *testing.T) {
	e := sampleExpense()
	payload, err := encodeExpense(e)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.Equal(t, e.ID.String(), raw["id"])
	assert.Equal(t, "-12.34", raw["amount"])
	assert.Equal(t, "fork.knife", raw["icon_name"])
	assert.Equal(t, "2025-02-03T10:00:00Z", raw["date"])
	assert.NotContains(t, raw, "sync_status")
}

func TestEncodeExpenseRejectsSubCentAmounts(t *testing.T) {
	e := sampleExpense()
	e.Amount = decimal.RequireFromString("12.345")
	_, err := encodeExpense(e)
	assert.ErrorIs(t, err, common.ErrValidation)

	e.Amount = decimal.RequireFromString("12.340")
	_, err = encodeExpense(e)
	assert.NoError(t, err)
}

func TestDecodeExpenseAcceptsPostgresShapes(t *testing.T) {
	id := uuid.New()
	raw := `{"id":"` + id.String() + `","category":"Rent","amount":1200.50,"date":"2025-03-01T00:00:00+00:00",
		"icon_name":"house","user_id":"u","created_at":"2025-03-01T08:15:30.123456+00:00","updated_at":"2025-03-02T08:15:30.123456+00:00"}`

	e, err := decodeExpense([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, id, e.ID)
	assert.True(t, e.Amount.Equal(decimal.RequireFromString("1200.5")))
	assert.True(t, e.Synced)
	assert.Equal(t, time.UTC, e.Date.Location())
	assert.True(t, e.UpdatedAt.After(e.CreatedAt))
}

func TestEncodeExpenseRejectsInvalidPayload(t *testing.T) {
	e := sampleExpense()
	e.UserID = ""
	_, err := encodeExpense(e)
	assert.ErrorIs(t, err, common.ErrValidation)

	e = sampleExpense()
	e.Category = ""
	_, err = encodeExpense(e)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestProfileWireRoundTrip(t *testing.T) {
	p := sampleProfile()
	dob := time.Date(1990, 12, 10, 0, 0, 0, 0, time.UTC)
	p.DateOfBirth = &dob

	payload, err := encodeProfile(p)
	require.NoError(t, err)
	got, err := decodeProfile(payload)
	require.NoError(t, err)

	assert.Equal(t, p.Email, got.Email)
	assert.Equal(t, "+44 20 0000", utils.StrOrEmpty(got.PhoneNumber))
	require.NotNil(t, got.DateOfBirth)
	assert.True(t, dob.Equal(*got.DateOfBirth))
	assert.Nil(t, got.ProfileImageURL)
	assert.Equal(t, "Ada Lovelace", got.FullName())
}

func TestEncodeProfileRejectsBadCurrency(t *testing.T) {
	p := sampleProfile()
	p.Currency = "pounds"
	_, err := encodeProfile(p)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestBuildSchemasCompile(t *testing.T) {
	assert.NotPanics(t, func() { expenseSchema() })
	assert.NotPanics(t, func() { profileSchema() })
	assert.Equal(t, false, BuildExpenseJSONSchema()["additionalProperties"])
}

func TestProbeAddr(t *testing.T) {
	addr, err := ProbeAddr("postgres://u:p@db.internal:6543/expenses?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, "db.internal:6543", addr)

	_, err = ProbeAddr("postgres://%zz")
	assert.Error(t, err)
}
