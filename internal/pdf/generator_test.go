package pdf

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/coldstore/internal/model"
)

func TestGenerator_Generate(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	doc := model.BillDocument{
		Contract: model.StorageContract{
			ID:               "c-1",
			Owner:            model.Owner{FirstName: "Ali", LastName: "Khan", CNIC: "12345-1234567-1"},
			Details:          model.AppleDetails{TruckNumber: "LES-1"},
			Quantity:         0,
			OriginalQuantity: 10,
			StartDate:        start,
			Status:           model.ContractStatusCompleted,
			Withdrawals: []model.WithdrawalRecord{
				{ID: "w-1", Quantity: 10, WithdrawalDate: start.AddDate(0, 1, 14), BillAmount: decimal.NewFromInt(1500), IsPaid: true},
			},
		},
		Rate:      decimal.NewFromInt(100),
		Currency:  "PKR",
		AsOf:      start.AddDate(0, 1, 14),
		Amount:    decimal.NewFromInt(1500),
		Breakdown: "BILLING DETAILS:\n- January 2025 (First Month): 10 x 100 = 1000 PKR",
		Lines: []model.BillLine{
			{Label: "January 2025 (First Month)", Rule: "Full rate", Amount: decimal.NewFromInt(1000)},
			{Label: "February 2025 (Final Month)", Rule: "Half rate (days 4-18 of 28)", Amount: decimal.NewFromInt(500)},
		},
		Final:    true,
		IssuedAt: start.AddDate(0, 2, 0),
	}

	content, err := NewGenerator().Generate(doc)
	require.NoError(t, err)
	require.NotEmpty(t, content)
	assert.Equal(t, "%PDF", string(content[:4]))
}

func TestGenerator_GeneratePotatoWithoutLines(t *testing.T) {
	doc := model.BillDocument{
		Contract: model.StorageContract{
			ID:               "c-2",
			Details:          model.PotatoDetails{},
			Quantity:         5,
			OriginalQuantity: 5,
			StartDate:        time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
			Status:           model.ContractStatusActive,
		},
		Rate:     decimal.NewFromInt(1200),
		Currency: "PKR",
		Amount:   decimal.NewFromInt(6000),
	}

	content, err := NewGenerator().Generate(doc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(content[:4]))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "-", safeValue("  "))
	assert.Equal(t, "x", safeValue("x"))
	assert.Equal(t, "-", formatDate(time.Time{}))
	assert.Equal(t, "05.03.2025", formatDate(time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "1500.50 PKR", formatAmount(decimal.RequireFromString("1500.5"), "PKR"))
	assert.Equal(t, "10.00", formatAmount(decimal.NewFromInt(10), ""))
}
