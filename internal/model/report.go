package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReportFormat string

const (
	ReportFormatXLSX ReportFormat = "xlsx"
	ReportFormatCSV  ReportFormat = "csv"
)

// BillLine is one itemised row of a bill.
type BillLine struct {
	Label  string
	Rule   string
	Amount decimal.Decimal
}

// BillDocument is everything the PDF renderer needs for one contract.
type BillDocument struct {
	Contract  StorageContract
	Rate      decimal.Decimal
	Currency  string
	AsOf      time.Time
	Amount    decimal.Decimal
	Breakdown string
	Lines     []BillLine
	Final     bool
	IssuedAt  time.Time
}

// ContractReport is the input of the tabular exporters.
type ContractReport struct {
	Class       CommodityClass
	Status      ContractStatus
	Currency    string
	Rates       RateSettings
	GeneratedAt time.Time
	Contracts   []StorageContract
	Withdrawals []WithdrawalRecord
}
