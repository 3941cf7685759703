package excel

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/coldstore/internal/model"
)

func sampleReport() model.ContractReport {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	withdrawal := model.WithdrawalRecord{
		ID:             "w-1",
		Sequence:       1,
		ContractID:     "c-1",
		Class:          model.ClassApple,
		Quantity:       4,
		WithdrawalDate: start.AddDate(0, 1, 14),
		BillAmount:     decimal.NewFromInt(600),
		IsPaid:         true,
	}
	return model.ContractReport{
		Currency:    "PKR",
		Rates:       model.RateSettings{AppleRate: decimal.NewFromInt(100), PotatoRate: decimal.NewFromInt(1200)},
		GeneratedAt: time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC),
		Contracts: []model.StorageContract{
			{
				ID:               "c-1",
				Owner:            model.Owner{FirstName: "Ali", LastName: "Khan", CNIC: "12345-1234567-1"},
				Details:          model.AppleDetails{TruckNumber: "LES-1"},
				Quantity:         6,
				OriginalQuantity: 10,
				StartDate:        start,
				Status:           model.ContractStatusActive,
				Withdrawals:      []model.WithdrawalRecord{withdrawal},
			},
			{
				ID:               "c-2",
				Owner:            model.Owner{FirstName: "Sana"},
				Details:          model.PotatoDetails{},
				Quantity:         5,
				OriginalQuantity: 5,
				StartDate:        start,
				Status:           model.ContractStatusActive,
			},
		},
		Withdrawals: []model.WithdrawalRecord{withdrawal},
	}
}

func TestGenerator_Contracts(t *testing.T) {
	content, err := NewGenerator().Contracts(sampleReport())
	require.NoError(t, err)

	file, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, []string{"Summary", "Apples", "Potatoes"}, file.GetSheetList())

	value, err := file.GetCellValue("Summary", "B7")
	require.NoError(t, err)
	assert.Equal(t, "2", value)

	value, err = file.GetCellValue("Summary", "B9")
	require.NoError(t, err)
	assert.Equal(t, "600", value)

	value, err = file.GetCellValue("Apples", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Ali Khan", value)

	value, err = file.GetCellValue("Apples", "E2")
	require.NoError(t, err)
	assert.Equal(t, "LES-1", value)

	value, err = file.GetCellValue("Potatoes", "I2")
	require.NoError(t, err)
	assert.Equal(t, "1200", value)
}

func TestGenerator_Withdrawals(t *testing.T) {
	content, err := NewGenerator().Withdrawals(sampleReport())
	require.NoError(t, err)

	file, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, []string{"Summary", "Withdrawals"}, file.GetSheetList())

	rows, err := file.GetRows("Withdrawals")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "2025-02-15", "c-1", "apple", "4", "600", "Paid"}, rows[1])
}

func TestBuildSheetName(t *testing.T) {
	used := map[string]struct{}{"Apples": {}}
	assert.Equal(t, "Apples-2", buildSheetName(model.ClassApple, used))
	assert.Equal(t, "Potatoes", buildSheetName(model.ClassPotato, used))
	assert.Equal(t, "All", buildSheetName("", used))
	assert.Equal(t, "a-b", sanitizeSheetName(" a/b "))
	assert.Equal(t, "Sheet", sanitizeSheetName("  "))
}
