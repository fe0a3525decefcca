package syncer

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/expense-sync/internal/common"
	"github.com/joseph-ayodele/expense-sync/internal/entity"
)

const (
	maxCategoryLength = 50
	maxIconLength     = 64
	maxNameLength     = 100

	// matches the remote numeric(12,2) column
	amountScale = 2
)

func validateExpenseInput(category string, amount decimal.Decimal, date time.Time, iconName string) error {
	v := common.NewValidator().
		Field("category", category, common.Required, common.MaxLength(maxCategoryLength)).
		Field("amount", amount, common.MaxDecimalPlaces(amountScale)).
		Field("icon_name", iconName, common.Required, common.MaxLength(maxIconLength))
	if date.IsZero() {
		v.Field("date", nil, common.Required)
	}
	return common.ValidateAndReturnError(v)
}

func validateProfile(p entity.Profile) error {
	v := common.NewValidator().
		Field("id", p.ID, common.Required).
		Field("email", p.Email, common.Required, common.Email).
		Field("first_name", p.FirstName, common.MaxLength(maxNameLength)).
		Field("last_name", p.LastName, common.MaxLength(maxNameLength)).
		Field("currency", p.Currency, common.CurrencyCode).
		Field("timezone", p.Timezone, common.Required)
	return common.ValidateAndReturnError(v)
}
